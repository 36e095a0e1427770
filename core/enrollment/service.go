package enrollment

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/user"
)

const (
	expectedDuration = 365 * 24 * time.Hour
	RecentLimit      = 5
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("Enrollment")
	ErrDuplicate         = core.NewError(core.KindConflict, "DuplicateEnrollment", "You are already enrolled in this course")
	ErrInvalidAmount     = core.NewError(core.KindValidation, "InvalidAmount", "Payment amount must be greater than 0")
	ErrInvalidTransition = core.NewError(core.KindConflict, "InvalidStatusTransition", "A completed enrollment cannot change status")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateEnrollment fails with ErrDuplicate if the (student, course) pair is already enrolled.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollmentByID(ctx context.Context, id string) (Enrollment, error)
		FindEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter QueryFilter, opts core.QueryOptions) ([]Enrollment, int, error)
		CountEnrollments(ctx context.Context, filter QueryFilter) (int, error)
		// SummarizeEnrollments returns the Summary of every matching Enrollment, in no particular order.
		SummarizeEnrollments(ctx context.Context, filter QueryFilter) ([]Summary, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	}

	Service struct {
		repo    Repository
		courses course.Repository
		users   user.Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	courses course.Repository,
	users user.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{repo: repo, courses: courses, users: users, mailSvc: mailSvc, logger: logger}
}

// Create enrolls student in the Course of validated ne. The seat is reserved first with a single conditional
// update, then released again if the enrollment cannot be saved.
func (svc *Service) Create(ctx context.Context, student user.User, ne NewEnrollment) (Enrollment, error) {
	crs, err := svc.courses.GetCourseByID(ctx, ne.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !crs.IsActive() {
		return Enrollment{}, course.ErrCourseUnavailable
	}
	if _, err = svc.repo.FindEnrollment(ctx, student.ID, crs.ID); err == nil {
		return Enrollment{}, ErrDuplicate
	} else if errors.Cause(err) != ErrNotFound {
		return Enrollment{}, errors.Wrap(err, "finding enrollment")
	}

	now := nowFunc().UTC()
	if crs, err = svc.courses.ReserveSeat(ctx, crs.ID, now); err != nil {
		return Enrollment{}, err
	}

	enr := Enrollment{
		StudentID:      student.ID,
		CourseID:       crs.ID,
		EnrollmentDate: now,
		Status:         StatusEnrolled,
		Payment: Payment{
			Mode:          ne.PaymentMode,
			Installments:  ne.Installments,
			TotalAmount:   crs.PriceNumeric,
			PaymentStatus: PaymentPending,
			Schedule:      BuildSchedule(crs.PriceNumeric, ne.Installments, now),
		},
		AcademicInfo: AcademicInfo{
			StartDate:              now,
			ExpectedCompletionDate: now.Add(expectedDuration),
			Aircraft:               []AircraftLog{},
		},
		Progress: Progress{
			ModulesCompleted: []ModuleCompletion{},
			ExamResults:      []ExamResult{},
		},
		Schedule:  []Session{},
		Documents: []Document{},
		Notes:     []Note{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if enr, err = svc.repo.CreateEnrollment(ctx, enr); err != nil {
		svc.releaseSeat(ctx, crs.ID, now)
		if errors.Cause(err) == ErrDuplicate {
			return Enrollment{}, ErrDuplicate
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}

	if ne.Gender != "" && ne.Gender != student.Gender {
		student.Gender = ne.Gender
		student.UpdatedAt = now
		if _, err = svc.users.UpdateUser(ctx, student); err != nil {
			svc.logger.Error("updating student gender", errors.Wrap(err, "updating user"), student)
		}
	}

	svc.sendConfirmationMail(student, crs, enr)
	return enr, nil
}

func (svc *Service) releaseSeat(ctx context.Context, courseID string, at time.Time) {
	if err := svc.courses.ReleaseSeat(ctx, courseID, at); err != nil {
		svc.logger.Error("releasing course seat", errors.Wrap(err, "releasing seat"), map[string]interface{}{"courseId": courseID})
	}
}

func (svc *Service) sendConfirmationMail(student user.User, crs course.Course, enr Enrollment) {
	if svc.mailSvc == nil {
		return
	}
	type installment struct{ DueDate, Amount string }
	schedule := make([]installment, 0, len(enr.Payment.Schedule))
	for _, e := range enr.Payment.Schedule {
		schedule = append(schedule, installment{
			DueDate: e.DueDate.Format("2006-01-02"),
			Amount:  decimal.NewFromFloat(e.Amount).StringFixed(2),
		})
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.FullName(), Address: student.Email}},
		Subject:      "Enrollment confirmation: " + crs.Title,
		TemplateName: "enrollment_confirmation",
		TemplateData: map[string]interface{}{
			"StudentName":  student.FirstName,
			"CourseTitle":  crs.Title,
			"PaymentMode":  enr.Payment.Mode,
			"Installments": enr.Payment.Installments,
			"TotalAmount":  decimal.NewFromFloat(enr.Payment.TotalAmount).StringFixed(2),
			"Schedule":     schedule,
		},
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollmentByID(ctx, id)
}

// ListForStudent returns the enrollments of a student, newest first.
func (svc *Service) ListForStudent(ctx context.Context, studentID string) ([]Enrollment, error) {
	enrs, _, err := svc.repo.QueryEnrollments(
		ctx,
		QueryFilter{StudentIDs: []string{studentID}},
		core.QueryOptions{Orderings: []core.DBOrdering{{Field: "enrollmentDate"}}},
	)
	return enrs, err
}

// Query lists enrollments; search matches the name or email of the students.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, search string, opts core.QueryOptions) ([]Enrollment, int, error) {
	if search = core.CleanString(search); search != "" {
		students, _, err := svc.users.QueryUsers(ctx, user.QueryFilter{Search: search}, core.QueryOptions{})
		if err != nil {
			return nil, 0, errors.Wrap(err, "searching students")
		}
		ids := make([]string, 0, len(students))
		for _, s := range students {
			if filter.StudentIDs == nil || contains(filter.StudentIDs, s.ID) {
				ids = append(ids, s.ID)
			}
		}
		filter.StudentIDs = ids
	}
	if len(opts.Orderings) == 0 {
		opts.Orderings = []core.DBOrdering{{Field: "enrollmentDate"}}
	}
	return svc.repo.QueryEnrollments(ctx, filter, opts)
}

func (svc *Service) CountActiveEnrollments(ctx context.Context, courseID string) (int, error) {
	return svc.repo.CountEnrollments(ctx, QueryFilter{CourseIDs: []string{courseID}, Statuses: ActiveStatuses})
}

// ApplyPayment posts a payment on an enrollment. A missing transaction ID is generated.
func (svc *Service) ApplyPayment(ctx context.Context, id string, np NewPayment) (Enrollment, error) {
	if np.Amount <= 0 {
		return Enrollment{}, ErrInvalidAmount
	}
	enr, err := svc.repo.GetEnrollmentByID(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if np.TransactionID == "" {
		np.TransactionID = uuid.NewString()
	}
	now := nowFunc().UTC()
	applyPayment(&enr.Payment, np.Amount, np.TransactionID, now)
	enr.UpdatedAt = now
	return svc.repo.UpdateEnrollment(ctx, enr)
}

// UpdateProgress merges pp into the enrollment progress; reaching 100% completes the enrollment.
func (svc *Service) UpdateProgress(ctx context.Context, id string, pp ProgressPatch) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollmentByID(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	now := nowFunc().UTC()
	wasActive := enr.IsActive()

	pp.apply(&enr.Progress)
	for i := range enr.Progress.ModulesCompleted {
		if enr.Progress.ModulesCompleted[i].CompletedDate.IsZero() {
			enr.Progress.ModulesCompleted[i].CompletedDate = now
		}
	}
	if enr.Progress.OverallProgress >= 100 && !enr.Completion.IsCompleted {
		complete(&enr, now)
	}
	enr.UpdatedAt = now

	if enr, err = svc.repo.UpdateEnrollment(ctx, enr); err != nil {
		return Enrollment{}, err
	}
	if wasActive && !enr.IsActive() {
		svc.releaseSeat(ctx, enr.CourseID, now)
	}
	return enr, nil
}

// UpdateStatus sets the status of an enrollment. Completed enrollments are final.
// Leaving enrolled|in-progress releases the course seat; coming back reserves one.
func (svc *Service) UpdateStatus(ctx context.Context, id, status string) (Enrollment, error) {
	if !contains(AllStatuses, status) {
		return Enrollment{}, core.NewFieldError("status", "Invalid status")
	}
	enr, err := svc.repo.GetEnrollmentByID(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if enr.Status == status {
		return enr, nil
	}
	if enr.Status == StatusCompleted {
		return Enrollment{}, ErrInvalidTransition
	}

	now := nowFunc().UTC()
	wasActive := enr.IsActive()
	becomesActive := IsActiveStatus(status)
	if !wasActive && becomesActive {
		if _, err = svc.courses.ReserveSeat(ctx, enr.CourseID, now); err != nil {
			return Enrollment{}, err
		}
	}

	if status == StatusCompleted {
		complete(&enr, now)
	} else {
		enr.Status = status
	}
	enr.UpdatedAt = now

	updated, err := svc.repo.UpdateEnrollment(ctx, enr)
	if err != nil {
		if !wasActive && becomesActive {
			svc.releaseSeat(ctx, enr.CourseID, now)
		}
		return Enrollment{}, err
	}
	if wasActive && !becomesActive {
		svc.releaseSeat(ctx, updated.CourseID, now)
	}
	return updated, nil
}

// AddNote appends a timestamped note written by author.
func (svc *Service) AddNote(ctx context.Context, id string, author user.User, nn NewNote) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollmentByID(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	now := nowFunc().UTC()
	enr.Notes = append(enr.Notes, Note{
		ID:        uuid.NewString(),
		Date:      now,
		Author:    author.ID,
		Type:      nn.Type,
		Content:   nn.Content,
		IsPrivate: nn.IsPrivate,
	})
	enr.UpdatedAt = now
	return svc.repo.UpdateEnrollment(ctx, enr)
}

func complete(enr *Enrollment, at time.Time) {
	completedAt := at
	enr.Status = StatusCompleted
	enr.Completion.IsCompleted = true
	enr.Completion.CompletionDate = &completedAt
	enr.AcademicInfo.ActualCompletionDate = &completedAt
}
