package service

import (
	"strings"

	"go.uber.org/zap"
)

// Named admin routes used by quick actions.
const (
	RouteEnrollmentAdd        = "enrollments_enrollment_add"
	RouteEnrollmentChangelist = "enrollments_enrollment_changelist"
	RoutePaymentAdd           = "finance_payment_add"
	RoutePaymentChangelist    = "finance_payment_changelist"
	RouteCourseAdd            = "courses_course_add"
	RouteBatchAdd             = "courses_batch_add"
	RouteUserChangelist       = "accounts_user_changelist"
)

var adminRoutes = map[string]string{
	RouteEnrollmentAdd:        "/enrollments/enrollment/add/",
	RouteEnrollmentChangelist: "/enrollments/enrollment/",
	RoutePaymentAdd:           "/finance/payment/add/",
	RoutePaymentChangelist:    "/finance/payment/",
	RouteCourseAdd:            "/courses/course/add/",
	RouteBatchAdd:             "/courses/batch/add/",
	RouteUserChangelist:       "/accounts/user/",
}

// UnresolvedLink is returned for route names missing from the table.
const UnresolvedLink = "#"

// LinkResolver maps named admin routes to URLs under a base path.
type LinkResolver struct {
	base   string
	routes map[string]string
	logger *zap.Logger
}

// NewLinkResolver builds a resolver over the admin route table.
func NewLinkResolver(baseURL string, logger *zap.Logger) *LinkResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkResolver{base: strings.TrimRight(baseURL, "/"), routes: adminRoutes, logger: logger}
}

// Resolve returns the URL for name, or UnresolvedLink when the name is unknown.
func (r *LinkResolver) Resolve(name string) string {
	path, ok := r.routes[name]
	if !ok {
		r.logger.Warn("unknown admin route", zap.String("route", name))
		return UnresolvedLink
	}
	return r.base + path
}
