package service

import "github.com/noah-isme/ict-admin-api/internal/models"

// Profile names a dashboard layout.
type Profile string

// Dashboard profiles.
const (
	ProfileFinance    Profile = "finance"
	ProfileRegistrar  Profile = "registrar"
	ProfileITAdmin    Profile = "it_admin"
	ProfileSuperAdmin Profile = "super_admin"
	ProfileStaff      Profile = "staff"
)

type profileRule struct {
	capability models.Capability
	profile    Profile
}

// profileRules is evaluated top to bottom and the first granted capability wins,
// so a user always gets exactly one profile.
var profileRules = []profileRule{
	{capability: models.CapFinance, profile: ProfileFinance},
	{capability: models.CapRegistrar, profile: ProfileRegistrar},
	{capability: models.CapITAdmin, profile: ProfileITAdmin},
	{capability: models.CapSuperAdmin, profile: ProfileSuperAdmin},
}

// SelectProfile picks the dashboard profile for perms.
func SelectProfile(perms models.Permissions) Profile {
	for _, rule := range profileRules {
		if perms.Has(rule.capability) {
			return rule.profile
		}
	}
	return ProfileStaff
}

type kpiKey string

const (
	kpiActiveEnrollments    kpiKey = "active_enrollments"
	kpiTotalEnrollments     kpiKey = "total_enrollments"
	kpiActiveBatches        kpiKey = "active_batches"
	kpiPaymentsToday        kpiKey = "payments_today"
	kpiPaymentsThisMonth    kpiKey = "payments_this_month"
	kpiOutstandingFees      kpiKey = "outstanding_fees"
	kpiNewEnrollmentsToday  kpiKey = "new_enrollments_today"
	kpiNewEnrollmentsWeek   kpiKey = "new_enrollments_this_week"
	kpiActiveCourses        kpiKey = "active_courses"
	kpiTotalEnrollmentsWide kpiKey = "total_enrollments_all_batches"
)

type dataSource int

const (
	sourceEnrollmentStats dataSource = iota
	sourceFinanceStats
	sourceNewToday
	sourceNewThisWeek
	sourceActiveCourses
)

var sourceLabels = map[dataSource]string{
	sourceEnrollmentStats: "enrollment_stats",
	sourceFinanceStats:    "finance_stats",
	sourceNewToday:        "new_enrollments_today",
	sourceNewThisWeek:     "new_enrollments_week",
	sourceActiveCourses:   "active_courses",
}

type kpiDefinition struct {
	label       string
	description string
	source      dataSource
	money       bool
	value       func(d *dashboardData) interface{}
}

var kpiDefinitions = map[kpiKey]kpiDefinition{
	kpiActiveEnrollments: {
		label:       "Active enrollments",
		description: "Students currently active in a batch.",
		source:      sourceEnrollmentStats,
		value:       func(d *dashboardData) interface{} { return d.enrollment.ActiveEnrollments },
	},
	kpiTotalEnrollments: {
		label:       "Total enrollments",
		description: "All historical enrollments in the system.",
		source:      sourceEnrollmentStats,
		value:       func(d *dashboardData) interface{} { return d.enrollment.TotalEnrollments },
	},
	kpiTotalEnrollmentsWide: {
		label:       "Total enrollments",
		description: "All enrollments across all batches.",
		source:      sourceEnrollmentStats,
		value:       func(d *dashboardData) interface{} { return d.enrollment.TotalEnrollments },
	},
	kpiActiveBatches: {
		label:       "Active batches",
		description: "Teaching groups currently configured.",
		source:      sourceEnrollmentStats,
		value:       func(d *dashboardData) interface{} { return d.enrollment.BatchCount },
	},
	kpiPaymentsToday: {
		label:       "Payments today",
		description: "Total amount received today.",
		source:      sourceFinanceStats,
		money:       true,
		value:       func(d *dashboardData) interface{} { return d.finance.PaymentsToday },
	},
	kpiPaymentsThisMonth: {
		label:       "Payments this month",
		description: "Total amount received this month.",
		source:      sourceFinanceStats,
		money:       true,
		value:       func(d *dashboardData) interface{} { return d.finance.PaymentsThisMonth },
	},
	kpiOutstandingFees: {
		label:       "Outstanding fees",
		description: "Sum of unpaid balances across all enrollments.",
		source:      sourceFinanceStats,
		money:       true,
		value:       func(d *dashboardData) interface{} { return d.finance.OutstandingTotal },
	},
	kpiNewEnrollmentsToday: {
		label:       "New enrollments today",
		description: "Enrollments created today.",
		source:      sourceNewToday,
		value:       func(d *dashboardData) interface{} { return d.newToday },
	},
	kpiNewEnrollmentsWeek: {
		label:       "New enrollments this week",
		description: "Enrollments created in the last 7 days.",
		source:      sourceNewThisWeek,
		value:       func(d *dashboardData) interface{} { return d.newThisWeek },
	},
	kpiActiveCourses: {
		label:       "Active courses",
		description: "Courses with scheduled batches.",
		source:      sourceActiveCourses,
		value:       func(d *dashboardData) interface{} { return d.activeCourses },
	},
}

type widgetKey string

const (
	widgetRecentPayments         widgetKey = "recent_payments"
	widgetTopDebtors             widgetKey = "top_debtors"
	widgetRecentEnrollments      widgetKey = "recent_enrollments"
	widgetApproachingEnrollments widgetKey = "approaching_enrollments"
	widgetCohortSizes            widgetKey = "cohort_sizes"
	widgetUpcomingBatches        widgetKey = "upcoming_batches"
	widgetRecentStaff            widgetKey = "recent_staff"
	widgetInstructorLoad         widgetKey = "instructor_load"
	widgetRevenueByCourse        widgetKey = "revenue_by_course"
)

type quickActionDefinition struct {
	label       string
	description string
	route       string
}

type profileLayout struct {
	kpis           []kpiKey
	quickActions   []quickActionDefinition
	widgets        []widgetKey
	widgetTitle    string
	secondaryTitle string
}

// sources lists the aggregate sources the layout's KPIs need, without duplicates.
func (l profileLayout) sources() []dataSource {
	seen := make(map[dataSource]bool)
	var out []dataSource
	for _, key := range l.kpis {
		src := kpiDefinitions[key].source
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out
}

var baseKPIs = []kpiKey{kpiActiveEnrollments, kpiTotalEnrollments, kpiActiveBatches}

var profileLayouts = map[Profile]profileLayout{
	ProfileFinance: {
		kpis: []kpiKey{kpiPaymentsToday, kpiPaymentsThisMonth, kpiOutstandingFees},
		quickActions: []quickActionDefinition{
			{label: "Log Payment", description: "Record a tuition payment against an enrollment.", route: RoutePaymentAdd},
			{label: "View Overdue Accounts", description: "See enrollments with outstanding balances.", route: RouteEnrollmentChangelist},
		},
		widgets:        []widgetKey{widgetRecentPayments, widgetTopDebtors},
		widgetTitle:    "Recent Payments",
		secondaryTitle: "Top Debtors",
	},
	ProfileRegistrar: {
		kpis: []kpiKey{kpiNewEnrollmentsToday, kpiNewEnrollmentsWeek, kpiActiveEnrollments},
		quickActions: []quickActionDefinition{
			{label: "Add Enrollment", description: "Register a new student into a batch.", route: RouteEnrollmentAdd},
			{label: "Search Students", description: "Find and manage student enrollments.", route: RouteEnrollmentChangelist},
		},
		widgets:        []widgetKey{widgetRecentEnrollments, widgetApproachingEnrollments, widgetCohortSizes},
		widgetTitle:    "Recent Enrollments",
		secondaryTitle: "Approaching Completion",
	},
	ProfileITAdmin: {
		kpis: []kpiKey{kpiActiveCourses, kpiActiveBatches, kpiTotalEnrollmentsWide},
		quickActions: []quickActionDefinition{
			{label: "Create Course", description: "Add a new course to the catalog.", route: RouteCourseAdd},
			{label: "Create Batch", description: "Schedule a new cohort for an existing course.", route: RouteBatchAdd},
			{label: "Manage Users", description: "Create or update staff and student accounts.", route: RouteUserChangelist},
		},
		widgets:        []widgetKey{widgetUpcomingBatches, widgetRecentStaff, widgetInstructorLoad},
		widgetTitle:    "Upcoming Batches",
		secondaryTitle: "Recently Created Staff",
	},
	ProfileSuperAdmin: {
		kpis: append(append([]kpiKey{}, baseKPIs...), kpiPaymentsThisMonth, kpiOutstandingFees, kpiPaymentsToday),
		quickActions: []quickActionDefinition{
			{label: "View Finance Reports", description: "Review institution-wide payment and arrears data.", route: RoutePaymentChangelist},
			{label: "View Enrollments", description: "Review all enrollments and student status.", route: RouteEnrollmentChangelist},
		},
		widgets:        []widgetKey{widgetRecentPayments, widgetRevenueByCourse},
		widgetTitle:    "Recent Payments",
		secondaryTitle: "Revenue by Course",
	},
	ProfileStaff: {
		kpis:           baseKPIs,
		widgets:        []widgetKey{widgetRecentEnrollments, widgetRecentPayments},
		widgetTitle:    "Recent Enrollments",
		secondaryTitle: "Recent Payments",
	},
}
