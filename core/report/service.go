package report

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/enrollment"
	"github.com/trezcool/skytraining/core/user"
)

const (
	RecentLimit   = 5
	PopularLimit  = 5
	LocationLimit = 10

	growthMonths     = 6
	trendMonths      = 12
	byEnrollmentDate = "enrollmentDate"
	byCreatedAt      = "createdAt"
)

var (
	// errors
	ErrInvalidExportType = core.NewError(core.KindValidation, "InvalidExportType", "Invalid export type. Use: students, enrollments, or courses")

	nowFunc = time.Now // mockable
)

type Service struct {
	users       user.Repository
	courses     course.Repository
	enrollments enrollment.Repository
}

func NewService(users user.Repository, courses course.Repository, enrollments enrollment.Repository) *Service {
	return &Service{users: users, courses: courses, enrollments: enrollments}
}

func (svc *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var dash Dashboard
	now := nowFunc().UTC()

	enrs, err := svc.summarizeEnrollments(ctx)
	if err != nil {
		return dash, err
	}
	students, err := svc.allStudents(ctx)
	if err != nil {
		return dash, err
	}
	crss, err := svc.allCourses(ctx)
	if err != nil {
		return dash, err
	}

	for _, s := range students {
		if s.IsActive {
			dash.Overview.TotalStudents++
		}
	}
	for _, c := range crss {
		if c.IsActive() {
			dash.Overview.TotalCourses++
		}
	}

	startOfMonth := monthStart(now)
	total, monthly := decimal.Zero, decimal.Zero
	for _, e := range enrs {
		paid := decimal.NewFromFloat(e.AmountPaid)
		total = total.Add(paid)
		if !e.EnrollmentDate.Before(startOfMonth) {
			monthly = monthly.Add(paid)
		}
		if e.IsActive() {
			dash.Overview.ActiveEnrollments++
		}
	}
	dash.Overview.TotalEnrollments = len(enrs)
	dash.Overview.TotalRevenue = total.InexactFloat64()
	dash.Overview.MonthlyRevenue = monthly.InexactFloat64()

	if dash.RecentEnrollments, err = svc.recentEnrollments(ctx); err != nil {
		return dash, err
	}
	dash.StudentGrowth = countByMonth(now, growthMonths, students, func(u user.User) time.Time { return u.CreatedAt })
	dash.PopularCourses = popularCourses(crss, enrs)
	dash.PaymentStats = amountBuckets(enrs, func(e enrollment.Summary) string { return e.PaymentStatus })
	return dash, nil
}

func (svc *Service) Analytics(ctx context.Context) (Analytics, error) {
	var an Analytics
	now := nowFunc().UTC()

	enrs, err := svc.summarizeEnrollments(ctx)
	if err != nil {
		return an, err
	}
	crss, err := svc.allCourses(ctx)
	if err != nil {
		return an, err
	}
	students, err := svc.allStudents(ctx)
	if err != nil {
		return an, err
	}

	// enrollment trends
	months := monthKeys(now, trendMonths)
	counts := make(map[int]int, trendMonths)
	revenue := make(map[int]decimal.Decimal, trendMonths)
	for _, e := range enrs {
		k := monthKey(e.EnrollmentDate)
		counts[k]++
		revenue[k] = revenue[k].Add(decimal.NewFromFloat(e.AmountPaid))
	}
	an.EnrollmentTrends = make([]MonthRevenue, len(months))
	for i, k := range months {
		an.EnrollmentTrends[i] = MonthRevenue{
			Year:    k / 12,
			Month:   k%12 + 1,
			Count:   counts[k],
			Revenue: revenue[k].InexactFloat64(),
		}
	}

	// completion rates
	totals := make(map[string]int)
	completed := make(map[string]int)
	for _, e := range enrs {
		totals[e.CourseID]++
		if e.Status == enrollment.StatusCompleted {
			completed[e.CourseID]++
		}
	}
	an.CompletionRates = make([]CompletionRate, 0, len(totals))
	for _, c := range crss {
		n := totals[c.ID]
		if n == 0 {
			continue
		}
		rate := decimal.NewFromInt(int64(completed[c.ID])).
			Div(decimal.NewFromInt(int64(n))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
		an.CompletionRates = append(an.CompletionRates, CompletionRate{
			ID:                   c.ID,
			Title:                c.Title,
			TotalEnrollments:     n,
			CompletedEnrollments: completed[c.ID],
			CompletionRate:       rate.InexactFloat64(),
		})
	}
	sort.SliceStable(an.CompletionRates, func(i, j int) bool {
		a, b := an.CompletionRates[i], an.CompletionRates[j]
		if a.CompletionRate != b.CompletionRate {
			return a.CompletionRate > b.CompletionRate
		}
		return a.Title < b.Title
	})

	an.PaymentAnalytics = amountBuckets(enrs, func(e enrollment.Summary) string { return e.PaymentMode })

	states := make([]string, 0, len(students))
	for _, s := range students {
		if s.Address.State != "" {
			states = append(states, s.Address.State)
		}
	}
	an.StudentsByLocation = countBuckets(states, true /* byCount */)
	if len(an.StudentsByLocation) > LocationLimit {
		an.StudentsByLocation = an.StudentsByLocation[:LocationLimit]
	}
	return an, nil
}

func (svc *Service) CourseStats(ctx context.Context) (CourseStats, error) {
	var cs CourseStats
	crss, err := svc.allCourses(ctx)
	if err != nil {
		return cs, err
	}
	enrs, err := svc.summarizeEnrollments(ctx)
	if err != nil {
		return cs, err
	}

	var categories, levels []string
	for _, c := range crss {
		switch c.Status {
		case course.StatusActive:
			cs.Overview.ActiveCourses++
			categories = append(categories, c.Category)
			levels = append(levels, c.Level)
		case course.StatusDraft:
			cs.Overview.DraftCourses++
		case course.StatusInactive:
			cs.Overview.InactiveCourses++
		}
	}
	cs.Overview.TotalCourses = len(crss)
	cs.CoursesByCategory = countBuckets(categories, false)
	cs.CoursesByLevel = countBuckets(levels, false)
	cs.PopularCourses = popularCourses(crss, enrs)
	return cs, nil
}

func (svc *Service) EnrollmentStats(ctx context.Context) (EnrollmentStats, error) {
	var es EnrollmentStats
	enrs, err := svc.summarizeEnrollments(ctx)
	if err != nil {
		return es, err
	}

	paymentStatuses := make([]string, len(enrs))
	for i, e := range enrs {
		switch {
		case e.IsActive():
			es.Overview.ActiveEnrollments++
		case e.Status == enrollment.StatusCompleted:
			es.Overview.CompletedEnrollments++
		case e.Status == enrollment.StatusDropped:
			es.Overview.DroppedEnrollments++
		}
		paymentStatuses[i] = e.PaymentStatus
	}
	es.Overview.TotalEnrollments = len(enrs)
	es.PaymentStats = countBuckets(paymentStatuses, false)
	es.EnrollmentsByMonth = countByMonth(nowFunc().UTC(), trendMonths, enrs, func(e enrollment.Summary) time.Time {
		return e.EnrollmentDate
	})
	if es.RecentEnrollments, err = svc.recentEnrollments(ctx); err != nil {
		return es, err
	}
	return es, nil
}

func (svc *Service) UserStats(ctx context.Context) (UserStats, error) {
	var us UserStats
	usrs, _, err := svc.users.QueryUsers(ctx, user.QueryFilter{}, core.QueryOptions{
		Orderings: []core.DBOrdering{{Field: byCreatedAt}},
	})
	if err != nil {
		return us, errors.Wrap(err, "querying users")
	}

	for _, u := range usrs {
		switch u.Role {
		case user.RoleStudent:
			us.Overview.TotalStudents++
		case user.RoleAdmin:
			us.Overview.TotalAdmins++
		}
		if u.IsActive {
			us.Overview.ActiveUsers++
		}
	}
	us.Overview.TotalUsers = len(usrs)
	us.RecentUsers = usrs
	if len(us.RecentUsers) > RecentLimit {
		us.RecentUsers = us.RecentUsers[:RecentLimit]
	}
	us.UsersByMonth = countByMonth(nowFunc().UTC(), trendMonths, usrs, func(u user.User) time.Time { return u.CreatedAt })
	return us, nil
}

// Students returns a page of students matching filter, newest first, along with their enrollments.
func (svc *Service) Students(ctx context.Context, filter user.QueryFilter, page core.Page) ([]Student, int, error) {
	filter.Roles = []string{user.RoleStudent}
	usrs, total, err := svc.users.QueryUsers(ctx, filter, page.Options(core.DBOrdering{Field: byCreatedAt}))
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying students")
	}

	ids := make([]string, len(usrs))
	for i, u := range usrs {
		ids[i] = u.ID
	}
	byStudent, err := svc.enrollmentsByStudent(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	students := make([]Student, len(usrs))
	for i, u := range usrs {
		enrs := byStudent[u.ID]
		s := Student{User: u, Enrollments: enrs, TotalCourses: len(enrs)}
		for _, e := range enrs {
			if e.IsActive() {
				s.ActiveCourses++
			}
		}
		students[i] = s
	}
	return students, total, nil
}

// StudentDetail fails with user.ErrNotFound if id is not a student.
func (svc *Service) StudentDetail(ctx context.Context, id string) (StudentDetail, error) {
	usr, err := svc.users.GetUserByID(ctx, id)
	if err != nil {
		return StudentDetail{}, err
	}
	if !usr.IsStudent() {
		return StudentDetail{}, user.ErrNotFound
	}

	byStudent, err := svc.enrollmentsByStudent(ctx, []string{usr.ID})
	if err != nil {
		return StudentDetail{}, err
	}
	sd := StudentDetail{User: usr, Enrollments: byStudent[usr.ID]}

	fees, paid := decimal.Zero, decimal.Zero
	for _, e := range sd.Enrollments {
		switch {
		case e.IsActive():
			sd.Statistics.ActiveCourses++
		case e.Status == enrollment.StatusCompleted:
			sd.Statistics.CompletedCourses++
		}
		fees = fees.Add(decimal.NewFromFloat(e.Payment.TotalAmount))
		paid = paid.Add(decimal.NewFromFloat(e.Payment.AmountPaid))
	}
	sd.Statistics.TotalCourses = len(sd.Enrollments)
	sd.Statistics.TotalCourseFees = fees.InexactFloat64()
	sd.Statistics.TotalPaid = paid.InexactFloat64()
	sd.Statistics.PendingAmount = fees.Sub(paid).InexactFloat64()
	return sd, nil
}

// Export dumps every record of typ: students, enrollments or courses.
func (svc *Service) Export(ctx context.Context, typ string) (Export, error) {
	exp := Export{Type: typ, Timestamp: nowFunc().UTC()}
	switch typ {
	case ExportStudents:
		students, err := svc.allStudents(ctx)
		if err != nil {
			return Export{}, err
		}
		exp.Data, exp.Count = students, len(students)
	case ExportEnrollments:
		enrs, err := svc.allEnrollments(ctx)
		if err != nil {
			return Export{}, err
		}
		details, err := enrollment.Describe(ctx, enrs, svc.users, svc.courses)
		if err != nil {
			return Export{}, err
		}
		exp.Data, exp.Count = details, len(details)
	case ExportCourses:
		crss, err := svc.allCourses(ctx)
		if err != nil {
			return Export{}, err
		}
		exp.Data, exp.Count = crss, len(crss)
	default:
		return Export{}, ErrInvalidExportType
	}
	return exp, nil
}

func (svc *Service) allStudents(ctx context.Context) ([]user.User, error) {
	usrs, _, err := svc.users.QueryUsers(ctx, user.QueryFilter{Roles: []string{user.RoleStudent}}, core.QueryOptions{
		Orderings: []core.DBOrdering{{Field: byCreatedAt}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return usrs, nil
}

func (svc *Service) allCourses(ctx context.Context) ([]course.Course, error) {
	crss, _, err := svc.courses.QueryCourses(ctx, course.QueryFilter{}, core.QueryOptions{
		Orderings: []core.DBOrdering{{Field: "title", Ascending: true}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return crss, nil
}

// allEnrollments returns every enrollment, most recent first.
func (svc *Service) allEnrollments(ctx context.Context) ([]enrollment.Enrollment, error) {
	enrs, _, err := svc.enrollments.QueryEnrollments(ctx, enrollment.QueryFilter{}, core.QueryOptions{
		Orderings: []core.DBOrdering{{Field: byEnrollmentDate}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrs, nil
}

// summarizeEnrollments returns the Summary of every enrollment, for aggregations that need no more.
func (svc *Service) summarizeEnrollments(ctx context.Context) ([]enrollment.Summary, error) {
	sums, err := svc.enrollments.SummarizeEnrollments(ctx, enrollment.QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "summarizing enrollments")
	}
	return sums, nil
}

// recentEnrollments describes the RecentLimit latest enrollments.
func (svc *Service) recentEnrollments(ctx context.Context) ([]enrollment.Detail, error) {
	enrs, _, err := svc.enrollments.QueryEnrollments(ctx, enrollment.QueryFilter{}, core.QueryOptions{
		Orderings: []core.DBOrdering{{Field: byEnrollmentDate}},
		Limit:     RecentLimit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying recent enrollments")
	}
	return enrollment.Describe(ctx, enrs, svc.users, svc.courses)
}

func (svc *Service) enrollmentsByStudent(ctx context.Context, studentIDs []string) (map[string][]enrollment.Detail, error) {
	enrs, _, err := svc.enrollments.QueryEnrollments(ctx, enrollment.QueryFilter{StudentIDs: studentIDs}, core.QueryOptions{
		Orderings: []core.DBOrdering{{Field: byEnrollmentDate}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	details, err := enrollment.Describe(ctx, enrs, nil, svc.courses)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string][]enrollment.Detail, len(studentIDs))
	for _, id := range studentIDs {
		byStudent[id] = []enrollment.Detail{}
	}
	for _, d := range details {
		byStudent[d.StudentID] = append(byStudent[d.StudentID], d)
	}
	return byStudent, nil
}
