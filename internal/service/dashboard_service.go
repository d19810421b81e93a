package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ict-admin-api/internal/dto"
	"github.com/noah-isme/ict-admin-api/internal/models"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
	"github.com/noah-isme/ict-admin-api/pkg/middleware/requestid"
	"github.com/noah-isme/ict-admin-api/pkg/money"
)

const dateLayout = "2006-01-02"

type dashboardEnrollmentReader interface {
	Stats(ctx context.Context) (models.EnrollmentStats, error)
	Recent(ctx context.Context, limit int) ([]models.EnrollmentDetail, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	ApproachingCompletion(ctx context.Context, from, to time.Time, limit int) ([]models.EnrollmentDetail, error)
	ActivePerCourse(ctx context.Context) ([]models.CourseEnrollmentCount, error)
}

type dashboardPaymentReader interface {
	Totals(ctx context.Context, today, monthStart, monthEnd time.Time) (models.PaymentTotals, error)
	BalanceTotals(ctx context.Context) (models.BalanceTotals, error)
	Recent(ctx context.Context, limit int) ([]models.PaymentDetail, error)
	TopDebtors(ctx context.Context, limit int) ([]models.DebtorRow, error)
	RevenueByCourse(ctx context.Context) ([]models.CourseRevenue, error)
}

type dashboardCourseReader interface {
	ActiveCoursesCount(ctx context.Context) (int, error)
	UpcomingBatches(ctx context.Context, from, to time.Time, limit int) ([]models.BatchDetail, error)
	InstructorLoad(ctx context.Context) ([]models.InstructorLoad, error)
}

type dashboardStaffReader interface {
	RecentStaff(ctx context.Context, limit int) ([]models.StaffSummary, error)
}

type linkResolver interface {
	Resolve(name string) string
}

// DashboardServiceConfig tunes widget sizes and reporting windows.
type DashboardServiceConfig struct {
	WidgetLimit       int
	UpcomingBatchDays int
	ApproachingDays   int
	NewEnrollmentDays int
	OverdueAfterDays  int
	QueryTimeout      time.Duration
	Concurrent        bool
	Location          *time.Location
}

// DashboardService composes the role specific dashboard.
type DashboardService struct {
	enrollments dashboardEnrollmentReader
	payments    dashboardPaymentReader
	courses     dashboardCourseReader
	staff       dashboardStaffReader
	links       linkResolver
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Enrollments dashboardEnrollmentReader
	Payments    dashboardPaymentReader
	Courses     dashboardCourseReader
	Staff       dashboardStaffReader
	Links       linkResolver
	Metrics     *MetricsService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with defaults applied.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.WidgetLimit <= 0 {
		cfg.WidgetLimit = 5
	}
	if cfg.UpcomingBatchDays <= 0 {
		cfg.UpcomingBatchDays = 30
	}
	if cfg.ApproachingDays <= 0 {
		cfg.ApproachingDays = 14
	}
	if cfg.NewEnrollmentDays <= 0 {
		cfg.NewEnrollmentDays = 7
	}
	if cfg.OverdueAfterDays <= 0 {
		cfg.OverdueAfterDays = 30
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	links := params.Links
	if links == nil {
		links = NewLinkResolver("", logger)
	}
	return &DashboardService{
		enrollments: params.Enrollments,
		payments:    params.Payments,
		courses:     params.Courses,
		staff:       params.Staff,
		links:       links,
		metrics:     params.Metrics,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// reportWindow holds the calendar boundaries of one render, in the configured location.
type reportWindow struct {
	now            time.Time
	today          time.Time
	tomorrow       time.Time
	weekStart      time.Time
	monthStart     time.Time
	monthEnd       time.Time
	upcomingEnd    time.Time
	approachingEnd time.Time
}

func (s *DashboardService) window() reportWindow {
	now := s.now().In(s.cfg.Location)
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, s.cfg.Location)
	return reportWindow{
		now:            now,
		today:          today,
		tomorrow:       today.AddDate(0, 0, 1),
		weekStart:      today.AddDate(0, 0, -s.cfg.NewEnrollmentDays),
		monthStart:     monthStart,
		monthEnd:       monthStart.AddDate(0, 1, 0),
		upcomingEnd:    today.AddDate(0, 0, s.cfg.UpcomingBatchDays),
		approachingEnd: today.AddDate(0, 0, s.cfg.ApproachingDays),
	}
}

type dashboardData struct {
	enrollment    models.EnrollmentStats
	finance       models.FinanceStats
	newToday      int
	newThisWeek   int
	activeCourses int
}

type dashboardTask struct {
	label string
	run   func(ctx context.Context) error
}

// Render builds the dashboard for a user holding perms. Store failures abort the render.
func (s *DashboardService) Render(ctx context.Context, perms models.Permissions) (*dto.DashboardResponse, error) {
	profile := SelectProfile(perms)
	layout := profileLayouts[profile]
	win := s.window()

	data := &dashboardData{}
	resp := &dto.DashboardResponse{
		Profile:              string(profile),
		RoleFlags:            perms.Flags(),
		WidgetTitle:          layout.widgetTitle,
		SecondaryWidgetTitle: layout.secondaryTitle,
		GeneratedAt:          win.now,
	}

	tasks := make([]dashboardTask, 0, len(layout.kpis)+len(layout.widgets))
	for _, src := range layout.sources() {
		tasks = append(tasks, s.sourceTask(src, win, data))
	}
	for _, widget := range layout.widgets {
		tasks = append(tasks, s.widgetTask(widget, win, resp))
	}

	if err := s.runTasks(ctx, tasks); err != nil {
		return nil, appErrors.Internal(err, "failed to load dashboard")
	}

	resp.DashboardKPIs = buildKPIs(layout.kpis, data)
	resp.QuickActions = s.buildQuickActions(layout.quickActions)
	s.metrics.RecordDashboardRender(string(profile))
	return resp, nil
}

// FinanceStats returns the finance aggregates for the current calendar day and month.
func (s *DashboardService) FinanceStats(ctx context.Context) (models.FinanceStats, error) {
	win := s.window()
	return s.financeStats(ctx, win)
}

func (s *DashboardService) financeStats(ctx context.Context, win reportWindow) (models.FinanceStats, error) {
	totals, err := s.payments.Totals(ctx, win.today, win.monthStart, win.monthEnd)
	if err != nil {
		return models.FinanceStats{}, err
	}
	balances, err := s.payments.BalanceTotals(ctx)
	if err != nil {
		return models.FinanceStats{}, err
	}
	return models.FinanceStats{
		PaymentsToday:     totals.PaymentsToday,
		PaymentsThisMonth: totals.PaymentsThisMonth,
		OutstandingTotal:  balances.OutstandingTotal,
		CreditTotal:       balances.CreditTotal,
	}, nil
}

func (s *DashboardService) runTasks(ctx context.Context, tasks []dashboardTask) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	timed := func(ctx context.Context, task dashboardTask) error {
		start := time.Now()
		err := task.run(ctx)
		s.metrics.ObserveDBQuery(task.label, time.Since(start))
		if err != nil {
			s.logger.Error("dashboard aggregate failed",
				zap.String("query", task.label),
				zap.String("request_id", requestid.FromContext(ctx)),
				zap.Error(err))
		}
		return err
	}

	if !s.cfg.Concurrent {
		for _, task := range tasks {
			if err := timed(ctx, task); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error { return timed(gctx, task) })
	}
	return g.Wait()
}

func (s *DashboardService) sourceTask(src dataSource, win reportWindow, data *dashboardData) dashboardTask {
	task := dashboardTask{label: sourceLabels[src]}
	switch src {
	case sourceEnrollmentStats:
		task.run = func(ctx context.Context) (err error) {
			data.enrollment, err = s.enrollments.Stats(ctx)
			return err
		}
	case sourceFinanceStats:
		task.run = func(ctx context.Context) (err error) {
			data.finance, err = s.financeStats(ctx, win)
			return err
		}
	case sourceNewToday:
		task.run = func(ctx context.Context) (err error) {
			data.newToday, err = s.enrollments.CountCreatedBetween(ctx, win.today, win.tomorrow)
			return err
		}
	case sourceNewThisWeek:
		task.run = func(ctx context.Context) (err error) {
			data.newThisWeek, err = s.enrollments.CountCreatedBetween(ctx, win.weekStart, win.tomorrow)
			return err
		}
	case sourceActiveCourses:
		task.run = func(ctx context.Context) (err error) {
			data.activeCourses, err = s.courses.ActiveCoursesCount(ctx)
			return err
		}
	}
	return task
}

// widgetTask loads one widget. Each widget writes a distinct response field.
func (s *DashboardService) widgetTask(widget widgetKey, win reportWindow, resp *dto.DashboardResponse) dashboardTask {
	limit := s.cfg.WidgetLimit
	task := dashboardTask{label: string(widget)}
	switch widget {
	case widgetRecentPayments:
		task.run = func(ctx context.Context) error {
			rows, err := s.payments.Recent(ctx, limit)
			if err != nil {
				return err
			}
			items := make([]dto.PaymentItem, 0, len(rows))
			for _, row := range rows {
				items = append(items, paymentItem(row))
			}
			resp.RecentPayments = &items
			return nil
		}
	case widgetTopDebtors:
		overdueAfter := time.Duration(s.cfg.OverdueAfterDays) * 24 * time.Hour
		task.run = func(ctx context.Context) error {
			rows, err := s.payments.TopDebtors(ctx, limit)
			if err != nil {
				return err
			}
			items := make([]dto.DebtorItem, 0, len(rows))
			for _, row := range rows {
				if !row.Outstanding.IsPositive() {
					continue
				}
				items = append(items, debtorItem(row, win.now, overdueAfter))
			}
			resp.TopDebtors = &items
			return nil
		}
	case widgetRecentEnrollments:
		task.run = func(ctx context.Context) error {
			rows, err := s.enrollments.Recent(ctx, limit)
			if err != nil {
				return err
			}
			items := enrollmentItems(rows)
			resp.RecentEnrollments = &items
			return nil
		}
	case widgetApproachingEnrollments:
		task.run = func(ctx context.Context) error {
			rows, err := s.enrollments.ApproachingCompletion(ctx, win.today, win.approachingEnd, limit)
			if err != nil {
				return err
			}
			items := enrollmentItems(rows)
			resp.ApproachingEnrollments = &items
			return nil
		}
	case widgetCohortSizes:
		task.run = func(ctx context.Context) error {
			rows, err := s.enrollments.ActivePerCourse(ctx)
			if err != nil {
				return err
			}
			items := make([]dto.CohortSizeItem, 0, len(rows))
			for _, row := range rows {
				items = append(items, dto.CohortSizeItem{CourseCode: row.CourseCode, CourseTitle: row.CourseTitle, Count: row.Count})
			}
			resp.CohortSizes = &items
			return nil
		}
	case widgetUpcomingBatches:
		task.run = func(ctx context.Context) error {
			rows, err := s.courses.UpcomingBatches(ctx, win.today, win.upcomingEnd, limit)
			if err != nil {
				return err
			}
			items := make([]dto.BatchItem, 0, len(rows))
			for _, row := range rows {
				items = append(items, dto.BatchItem{
					ID:             row.ID,
					Name:           row.Name,
					CourseCode:     row.CourseCode,
					CourseTitle:    row.CourseTitle,
					InstructorName: row.InstructorName(),
					StartDate:      formatDate(row.StartDate),
					EndDate:        formatDate(row.EndDate),
				})
			}
			resp.UpcomingBatches = &items
			return nil
		}
	case widgetRecentStaff:
		task.run = func(ctx context.Context) error {
			rows, err := s.staff.RecentStaff(ctx, limit)
			if err != nil {
				return err
			}
			items := make([]dto.StaffItem, 0, len(rows))
			for _, row := range rows {
				user := models.User{Username: row.Username, FirstName: row.FirstName, LastName: row.LastName}
				items = append(items, dto.StaffItem{
					ID:          row.ID,
					Username:    row.Username,
					DisplayName: user.DisplayName(),
					Email:       row.Email,
					Role:        string(row.Role),
					DateJoined:  row.CreatedAt,
				})
			}
			resp.RecentStaff = &items
			return nil
		}
	case widgetInstructorLoad:
		task.run = func(ctx context.Context) error {
			rows, err := s.courses.InstructorLoad(ctx)
			if err != nil {
				return err
			}
			items := make([]dto.InstructorLoadItem, 0, len(rows))
			for _, row := range rows {
				user := models.User{Username: row.Username, FirstName: row.FirstName, LastName: row.LastName}
				items = append(items, dto.InstructorLoadItem{
					InstructorID: row.InstructorID,
					Username:     row.Username,
					DisplayName:  user.DisplayName(),
					BatchCount:   row.BatchCount,
				})
			}
			resp.InstructorLoad = &items
			return nil
		}
	case widgetRevenueByCourse:
		task.run = func(ctx context.Context) error {
			rows, err := s.payments.RevenueByCourse(ctx)
			if err != nil {
				return err
			}
			items := make([]dto.RevenueItem, 0, len(rows))
			for _, row := range rows {
				items = append(items, dto.RevenueItem{
					CourseCode:   row.CourseCode,
					CourseTitle:  row.CourseTitle,
					Total:        row.Total,
					TotalDisplay: money.FormatKES(row.Total),
				})
			}
			resp.RevenueByCourse = &items
			return nil
		}
	}
	return task
}

func buildKPIs(keys []kpiKey, data *dashboardData) []dto.KPI {
	kpis := make([]dto.KPI, 0, len(keys))
	for _, key := range keys {
		def := kpiDefinitions[key]
		value := def.value(data)
		display := money.FormatKES(value)
		if !def.money {
			display = formatCount(value)
		}
		kpis = append(kpis, dto.KPI{
			Key:         string(key),
			Label:       def.label,
			Value:       value,
			Display:     display,
			Description: def.description,
		})
	}
	return kpis
}

func (s *DashboardService) buildQuickActions(defs []quickActionDefinition) []dto.QuickAction {
	actions := make([]dto.QuickAction, 0, len(defs))
	for _, def := range defs {
		actions = append(actions, dto.QuickAction{
			Label:       def.label,
			Description: def.description,
			URL:         s.links.Resolve(def.route),
		})
	}
	return actions
}

func paymentItem(row models.PaymentDetail) dto.PaymentItem {
	return dto.PaymentItem{
		ID:              row.ID,
		EnrollmentID:    row.EnrollmentID,
		StudentName:     row.StudentName(),
		CourseCode:      row.CourseCode,
		CourseTitle:     row.CourseTitle,
		BatchName:       row.BatchName,
		Amount:          row.Amount,
		AmountDisplay:   money.FormatKES(row.Amount),
		Method:          string(row.Method),
		MethodLabel:     row.Method.Label(),
		ReferenceNumber: row.ReferenceNumber,
		PaymentDate:     formatDate(row.PaymentDate),
		CreatedAt:       row.CreatedAt,
	}
}

func debtorItem(row models.DebtorRow, now time.Time, overdueAfter time.Duration) dto.DebtorItem {
	return dto.DebtorItem{
		EnrollmentID:       row.ID,
		StudentName:        row.StudentName(),
		CourseCode:         row.CourseCode,
		CourseTitle:        row.CourseTitle,
		BatchName:          row.BatchName,
		AgreedFee:          row.AgreedFee,
		PaidAmount:         row.PaidAmount,
		Outstanding:        row.Outstanding,
		OutstandingDisplay: money.FormatKES(row.Outstanding),
		IsOverdue:          models.IsOverdue(row.Outstanding, row.CreatedAt, now, overdueAfter),
		EnrolledAt:         row.CreatedAt,
	}
}

func enrollmentItems(rows []models.EnrollmentDetail) []dto.EnrollmentItem {
	items := make([]dto.EnrollmentItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.EnrollmentItem{
			ID:           row.ID,
			StudentName:  row.StudentName(),
			CourseCode:   row.CourseCode,
			CourseTitle:  row.CourseTitle,
			BatchName:    row.BatchName,
			BatchEndDate: formatDate(row.BatchEndDate),
			Status:       string(row.Status),
			AgreedFee:    row.AgreedFee,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items
}

// formatDate renders a calendar date, or an empty string for the zero time.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatCount(value interface{}) string {
	if n, ok := value.(int); ok {
		return strconv.Itoa(n)
	}
	return "0"
}
