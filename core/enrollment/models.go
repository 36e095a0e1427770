package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/skytraining/core"
)

// Statuses
const (
	StatusEnrolled   = "enrolled"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusDropped    = "dropped"
	StatusSuspended  = "suspended"
)

// Payment statuses
const (
	PaymentPending = "pending"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
	PaymentOverdue = "overdue"
)

// Installment plans
const (
	PlanDirect   = "Direct Payment"
	PlanMonths3  = "Within 3 months"
	PlanMonths6  = "Within 6 months"
	PlanMonths8  = "Within 8 months"
	NoteAcademic = "academic"
)

var (
	AllStatuses        = []string{StatusEnrolled, StatusInProgress, StatusCompleted, StatusDropped, StatusSuspended}
	ActiveStatuses     = []string{StatusEnrolled, StatusInProgress}
	AllPaymentStatuses = []string{PaymentPending, PaymentPartial, PaymentPaid, PaymentOverdue}
	AllPaymentModes    = []string{"Credit Card", "Debit Card", "Bank Transfer", "Check", "Cash"}
	AllPlans           = []string{PlanDirect, PlanMonths3, PlanMonths6, PlanMonths8}
	AllNoteTypes       = []string{NoteAcademic, "administrative", "disciplinary", "medical"}

	planMonths = map[string]int{PlanDirect: 0, PlanMonths3: 3, PlanMonths6: 6, PlanMonths8: 8}
)

// IsActiveStatus reports whether an enrollment in that status holds a seat in its course.
func IsActiveStatus(status string) bool {
	return status == StatusEnrolled || status == StatusInProgress
}

type (
	ScheduledPayment struct {
		DueDate       time.Time  `json:"dueDate" bson:"dueDate"`
		Amount        float64    `json:"amount" bson:"amount"`
		Status        string     `json:"status" bson:"status"`
		PaidDate      *time.Time `json:"paidDate,omitempty" bson:"paidDate,omitempty"`
		TransactionID string     `json:"transactionId,omitempty" bson:"transactionId,omitempty"`
	}

	Payment struct {
		Mode          string             `json:"mode" bson:"mode"`
		Installments  string             `json:"installments" bson:"installments"`
		TotalAmount   float64            `json:"totalAmount" bson:"totalAmount"`
		AmountPaid    float64            `json:"amountPaid" bson:"amountPaid"`
		PaymentStatus string             `json:"paymentStatus" bson:"paymentStatus"`
		Schedule      []ScheduledPayment `json:"paymentSchedule" bson:"paymentSchedule"`
	}

	AircraftLog struct {
		Registration string  `json:"registration" bson:"registration"`
		Type         string  `json:"type,omitempty" bson:"type,omitempty"`
		Hours        float64 `json:"hours" bson:"hours"`
	}

	AcademicInfo struct {
		StartDate              time.Time     `json:"startDate" bson:"startDate"`
		ExpectedCompletionDate time.Time     `json:"expectedCompletionDate" bson:"expectedCompletionDate"`
		ActualCompletionDate   *time.Time    `json:"actualCompletionDate,omitempty" bson:"actualCompletionDate,omitempty"`
		Instructor             string        `json:"instructor,omitempty" bson:"instructor,omitempty"`
		Aircraft               []AircraftLog `json:"aircraft" bson:"aircraft"`
	}

	ModuleCompletion struct {
		ModuleName    string    `json:"moduleName" bson:"moduleName" validate:"required"`
		CompletedDate time.Time `json:"completedDate" bson:"completedDate"`
		Score         *float64  `json:"score,omitempty" bson:"score,omitempty" validate:"omitempty,min=0,max=100"`
		Instructor    string    `json:"instructor,omitempty" bson:"instructor,omitempty"`
	}

	FlightHours struct {
		Dual         float64 `json:"dual" bson:"dual" validate:"min=0"`
		Solo         float64 `json:"solo" bson:"solo" validate:"min=0"`
		CrossCountry float64 `json:"crossCountry" bson:"crossCountry" validate:"min=0"`
		Night        float64 `json:"night" bson:"night" validate:"min=0"`
		Instrument   float64 `json:"instrument" bson:"instrument" validate:"min=0"`
		Total        float64 `json:"total" bson:"total" validate:"min=0"`
	}

	ExamResult struct {
		ExamType string    `json:"examType" bson:"examType" validate:"required"`
		Date     time.Time `json:"date" bson:"date"`
		Score    float64   `json:"score" bson:"score" validate:"min=0,max=100"`
		Passed   bool      `json:"passed" bson:"passed"`
		Attempts int       `json:"attempts" bson:"attempts" validate:"min=0"`
	}

	Progress struct {
		OverallProgress  float64            `json:"overallProgress" bson:"overallProgress"`
		ModulesCompleted []ModuleCompletion `json:"modulesCompleted" bson:"modulesCompleted"`
		FlightHours      FlightHours        `json:"flightHours" bson:"flightHours"`
		ExamResults      []ExamResult       `json:"examResults" bson:"examResults"`
	}

	Session struct {
		Date       time.Time `json:"date" bson:"date"`
		Type       string    `json:"type" bson:"type"`
		Duration   string    `json:"duration,omitempty" bson:"duration,omitempty"`
		Instructor string    `json:"instructor,omitempty" bson:"instructor,omitempty"`
		Status     string    `json:"status,omitempty" bson:"status,omitempty"`
	}

	Document struct {
		Name       string    `json:"name" bson:"name"`
		Type       string    `json:"type,omitempty" bson:"type,omitempty"`
		URL        string    `json:"url" bson:"url"`
		UploadedAt time.Time `json:"uploadedAt" bson:"uploadedAt"`
	}

	Note struct {
		ID        string    `json:"id" bson:"id"`
		Date      time.Time `json:"date" bson:"date"`
		Author    string    `json:"author" bson:"author"`
		Type      string    `json:"type" bson:"type"`
		Content   string    `json:"content" bson:"content"`
		IsPrivate bool      `json:"isPrivate" bson:"isPrivate"`
	}

	Completion struct {
		IsCompleted       bool       `json:"isCompleted" bson:"isCompleted"`
		CompletionDate    *time.Time `json:"completionDate,omitempty" bson:"completionDate,omitempty"`
		FinalGrade        string     `json:"finalGrade,omitempty" bson:"finalGrade,omitempty"`
		CertificateIssued bool       `json:"certificateIssued" bson:"certificateIssued"`
		CertificateNumber string     `json:"certificateNumber,omitempty" bson:"certificateNumber,omitempty"`
	}
)

type Enrollment struct {
	ID             string       `json:"id"`
	StudentID      string       `json:"studentId"`
	CourseID       string       `json:"courseId"`
	EnrollmentDate time.Time    `json:"enrollmentDate"`
	Status         string       `json:"status"`
	Payment        Payment      `json:"payment"`
	AcademicInfo   AcademicInfo `json:"academicInfo"`
	Progress       Progress     `json:"progress"`
	Schedule       []Session    `json:"schedule"`
	Documents      []Document   `json:"documents"`
	Notes          []Note       `json:"notes"`
	Completion     Completion   `json:"completion"`
	CreatedAt      time.Time    `json:"createdAt"` // UTC
	UpdatedAt      time.Time    `json:"updatedAt"` // UTC
}

func (e *Enrollment) IsActive() bool { return IsActiveStatus(e.Status) }

// PublicNotes returns the notes a student may see.
func (e *Enrollment) PublicNotes() []Note {
	notes := make([]Note, 0, len(e.Notes))
	for _, n := range e.Notes {
		if !n.IsPrivate {
			notes = append(notes, n)
		}
	}
	return notes
}

// Summary is the part of an Enrollment the admin reports aggregate over.
type Summary struct {
	ID             string
	StudentID      string
	CourseID       string
	EnrollmentDate time.Time
	Status         string
	PaymentMode    string
	PaymentStatus  string
	TotalAmount    float64
	AmountPaid     float64
}

func (s Summary) IsActive() bool { return IsActiveStatus(s.Status) }

func (e *Enrollment) Summary() Summary {
	return Summary{
		ID:             e.ID,
		StudentID:      e.StudentID,
		CourseID:       e.CourseID,
		EnrollmentDate: e.EnrollmentDate,
		Status:         e.Status,
		PaymentMode:    e.Payment.Mode,
		PaymentStatus:  e.Payment.PaymentStatus,
		TotalAmount:    e.Payment.TotalAmount,
		AmountPaid:     e.Payment.AmountPaid,
	}
}

// NewEnrollment contains information needed to enroll a student in a Course.
type NewEnrollment struct {
	CourseID     string `json:"courseId" validate:"required"`
	PaymentMode  string `json:"paymentMode" validate:"required,oneof='Credit Card' 'Debit Card' 'Bank Transfer' Check Cash"`
	Installments string `json:"installments" validate:"required,oneof='Direct Payment' 'Within 3 months' 'Within 6 months' 'Within 8 months'"`
	Gender       string `json:"gender" validate:"omitempty,oneof=male female other prefer-not-to-say"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.CourseID = core.CleanString(ne.CourseID)
	ne.PaymentMode = core.CleanString(ne.PaymentMode)
	ne.Installments = core.CleanString(ne.Installments)
	ne.Gender = core.CleanString(ne.Gender, true /* lower */)
	return validate.Struct(ne)
}

// ProgressPatch is merged into Enrollment.Progress; nil fields are left untouched.
type ProgressPatch struct {
	OverallProgress  *float64           `json:"overallProgress" validate:"omitempty,min=0,max=100"`
	ModulesCompleted []ModuleCompletion `json:"modulesCompleted" validate:"omitempty,dive"`
	FlightHours      *FlightHours       `json:"flightHours"`
	ExamResults      []ExamResult       `json:"examResults" validate:"omitempty,dive"`
}

func (pp *ProgressPatch) Validate(validate *validator.Validate) error {
	return validate.Struct(pp)
}

func (pp *ProgressPatch) apply(p *Progress) {
	if pp.OverallProgress != nil {
		p.OverallProgress = *pp.OverallProgress
	}
	if pp.ModulesCompleted != nil {
		p.ModulesCompleted = pp.ModulesCompleted
	}
	if pp.FlightHours != nil {
		p.FlightHours = *pp.FlightHours
	}
	if pp.ExamResults != nil {
		p.ExamResults = pp.ExamResults
	}
}

type NewPayment struct {
	Amount        float64 `json:"amount" validate:"required"`
	TransactionID string  `json:"transactionId"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.TransactionID = core.CleanString(np.TransactionID)
	return validate.Struct(np)
}

type StatusChange struct {
	Status string `json:"status" validate:"required,oneof=enrolled in-progress completed dropped suspended"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.Status = core.CleanString(sc.Status, true /* lower */)
	return validate.Struct(sc)
}

type NewNote struct {
	Content   string `json:"content" validate:"required,max=2000"`
	Type      string `json:"type" validate:"omitempty,oneof=academic administrative disciplinary medical"`
	IsPrivate bool   `json:"isPrivate"`
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.Content = core.CleanString(nn.Content)
	nn.Type = core.CleanString(nn.Type, true /* lower */)
	if nn.Type == "" {
		nn.Type = NoteAcademic
	}
	return validate.Struct(nn)
}

type QueryFilter struct {
	IDs           []string
	StudentIDs    []string
	CourseIDs     []string
	Statuses      []string
	PaymentStatus string
	EnrolledFrom  time.Time
}

// Match applies the filter in memory.
func (qf QueryFilter) Match(e Enrollment) bool {
	if qf.IDs != nil && !contains(qf.IDs, e.ID) {
		return false
	}
	if qf.StudentIDs != nil && !contains(qf.StudentIDs, e.StudentID) {
		return false
	}
	if qf.CourseIDs != nil && !contains(qf.CourseIDs, e.CourseID) {
		return false
	}
	if len(qf.Statuses) > 0 && !contains(qf.Statuses, e.Status) {
		return false
	}
	if qf.PaymentStatus != "" && e.Payment.PaymentStatus != qf.PaymentStatus {
		return false
	}
	if !qf.EnrolledFrom.IsZero() && e.EnrollmentDate.Before(qf.EnrolledFrom) {
		return false
	}
	return true
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
