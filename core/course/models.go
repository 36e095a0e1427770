package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/skytraining/core"
)

// Statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDraft    = "draft"
)

var (
	AllStatuses   = []string{StatusActive, StatusInactive, StatusDraft}
	AllCategories = []string{"license", "rating", "certification", "advanced"}
	AllLevels     = []string{"beginner", "intermediate", "advanced"}
)

type (
	CurriculumModule struct {
		Module   string   `json:"module" bson:"module" validate:"required"`
		Topics   []string `json:"topics,omitempty" bson:"topics,omitempty"`
		Duration string   `json:"duration,omitempty" bson:"duration,omitempty"`
	}

	CompletionTime struct {
		Weeks  int `json:"weeks,omitempty" bson:"weeks,omitempty" validate:"omitempty,min=0"`
		Months int `json:"months,omitempty" bson:"months,omitempty" validate:"omitempty,min=0"`
	}

	Material struct {
		Name     string `json:"name" bson:"name" validate:"required"`
		Type     string `json:"type,omitempty" bson:"type,omitempty"`
		Required bool   `json:"required" bson:"required"`
	}

	ExamRequirements struct {
		Written   bool `json:"written" bson:"written"`
		Practical bool `json:"practical" bson:"practical"`
		Oral      bool `json:"oral" bson:"oral"`
	}

	CertificationDetails struct {
		IssuingAuthority string `json:"issuingAuthority,omitempty" bson:"issuingAuthority,omitempty"`
		CertificateType  string `json:"certificateType,omitempty" bson:"certificateType,omitempty"`
		ValidityPeriod   string `json:"validityPeriod,omitempty" bson:"validityPeriod,omitempty"`
	}
)

type Course struct {
	ID                      string               `json:"id"`
	Title                   string               `json:"title"`
	Description             string               `json:"description"`
	Duration                string               `json:"duration"`
	Price                   string               `json:"price"`
	PriceNumeric            float64              `json:"priceNumeric"`
	Status                  string               `json:"status"`
	Category                string               `json:"category"`
	Level                   string               `json:"level"`
	Prerequisites           []string             `json:"prerequisites"`
	Curriculum              []CurriculumModule   `json:"curriculum"`
	InstructorRequirements  string               `json:"instructorRequirements,omitempty"`
	AircraftRequirements    []string             `json:"aircraftRequirements"`
	MaxStudents             int                  `json:"maxStudents"`
	CurrentEnrollments      int                  `json:"currentEnrollments"`
	EstimatedCompletionTime CompletionTime       `json:"estimatedCompletionTime"`
	Materials               []Material           `json:"materials"`
	ExamRequirements        ExamRequirements     `json:"examRequirements"`
	CertificationDetails    CertificationDetails `json:"certificationDetails"`
	Tags                    []string             `json:"tags"`
	Image                   string               `json:"image,omitempty"`
	Featured                bool                 `json:"featured"`
	CreatedBy               string               `json:"createdBy,omitempty"`
	LastModifiedBy          string               `json:"lastModifiedBy,omitempty"`
	CreatedAt               time.Time            `json:"createdAt"` // UTC
	UpdatedAt               time.Time            `json:"updatedAt"` // UTC
}

func (c *Course) IsActive() bool { return c.Status == StatusActive }
func (c *Course) IsFull() bool   { return c.CurrentEnrollments >= c.MaxStudents }

func (c *Course) IsAvailable() bool { return c.IsActive() && !c.IsFull() }

func (c *Course) EnrollmentPercentage() float64 {
	if c.MaxStudents <= 0 {
		return 0
	}
	return float64(c.CurrentEnrollments) / float64(c.MaxStudents) * 100
}

// NewCourse contains information needed to create a new Course.
// PriceNumeric is only used when Price cannot be parsed.
type NewCourse struct {
	Title                   string               `json:"title" validate:"required,min=5,max=100"`
	Description             string               `json:"description" validate:"required,min=10,max=1000"`
	Duration                string               `json:"duration" validate:"required"`
	Price                   string               `json:"price" validate:"required"`
	PriceNumeric            *float64             `json:"priceNumeric" validate:"omitempty,min=0"`
	Status                  string               `json:"status" validate:"omitempty,oneof=active inactive draft"`
	Category                string               `json:"category" validate:"required,oneof=license rating certification advanced"`
	Level                   string               `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Prerequisites           []string             `json:"prerequisites"`
	Curriculum              []CurriculumModule   `json:"curriculum" validate:"dive"`
	InstructorRequirements  string               `json:"instructorRequirements"`
	AircraftRequirements    []string             `json:"aircraftRequirements"`
	MaxStudents             int                  `json:"maxStudents" validate:"omitempty,min=1"`
	EstimatedCompletionTime CompletionTime       `json:"estimatedCompletionTime"`
	Materials               []Material           `json:"materials" validate:"dive"`
	ExamRequirements        ExamRequirements     `json:"examRequirements"`
	CertificationDetails    CertificationDetails `json:"certificationDetails"`
	Tags                    []string             `json:"tags"`
	Image                   string               `json:"image"`
	Featured                bool                 `json:"featured"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Duration = core.CleanString(nc.Duration)
	nc.Price = core.CleanString(nc.Price)
	nc.Category = core.CleanString(nc.Category, true /* lower */)
	nc.Level = core.CleanString(nc.Level, true /* lower */)
	nc.Status = core.CleanString(nc.Status, true /* lower */)
	nc.Tags = core.CleanStrings(nc.Tags, true /* lower */)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	if _, ok := ParsePrice(nc.Price); !ok && nc.PriceNumeric == nil {
		return core.NewFieldError("priceNumeric", "Price must be a valid number")
	}
	return nil
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Title                   *string               `json:"title" validate:"omitempty,min=5,max=100"`
	Description             *string               `json:"description" validate:"omitempty,min=10,max=1000"`
	Duration                *string               `json:"duration" validate:"omitempty,min=1"`
	Price                   *string               `json:"price" validate:"omitempty,min=1"`
	PriceNumeric            *float64              `json:"priceNumeric" validate:"omitempty,min=0"`
	Status                  *string               `json:"status" validate:"omitempty,oneof=active inactive draft"`
	Category                *string               `json:"category" validate:"omitempty,oneof=license rating certification advanced"`
	Level                   *string               `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Prerequisites           []string              `json:"prerequisites"`
	Curriculum              []CurriculumModule    `json:"curriculum" validate:"omitempty,dive"`
	InstructorRequirements  *string               `json:"instructorRequirements"`
	AircraftRequirements    []string              `json:"aircraftRequirements"`
	MaxStudents             *int                  `json:"maxStudents" validate:"omitempty,min=1"`
	EstimatedCompletionTime *CompletionTime       `json:"estimatedCompletionTime"`
	Materials               []Material            `json:"materials" validate:"omitempty,dive"`
	ExamRequirements        *ExamRequirements     `json:"examRequirements"`
	CertificationDetails    *CertificationDetails `json:"certificationDetails"`
	Tags                    []string              `json:"tags"`
	Image                   *string               `json:"image"`
	Featured                *bool                 `json:"featured"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	for _, s := range []*string{uc.Title, uc.Description, uc.Duration, uc.Price} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	for _, s := range []*string{uc.Status, uc.Category, uc.Level} {
		if s != nil {
			*s = core.CleanString(*s, true /* lower */)
		}
	}
	uc.Tags = core.CleanStrings(uc.Tags, true /* lower */)
	return validate.Struct(uc)
}

func (uc *UpdateCourse) apply(c *Course) {
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Duration != nil {
		c.Duration = *uc.Duration
	}
	if uc.Price != nil && *uc.Price != c.Price {
		c.Price = *uc.Price
		if num, ok := ParsePrice(c.Price); ok {
			c.PriceNumeric = num
		} else if uc.PriceNumeric != nil {
			c.PriceNumeric = *uc.PriceNumeric
		}
	} else if uc.PriceNumeric != nil {
		if _, ok := ParsePrice(c.Price); !ok {
			c.PriceNumeric = *uc.PriceNumeric
		}
	}
	if uc.Status != nil {
		c.Status = *uc.Status
	}
	if uc.Category != nil {
		c.Category = *uc.Category
	}
	if uc.Level != nil {
		c.Level = *uc.Level
	}
	if uc.Prerequisites != nil {
		c.Prerequisites = uc.Prerequisites
	}
	if uc.Curriculum != nil {
		c.Curriculum = uc.Curriculum
	}
	if uc.InstructorRequirements != nil {
		c.InstructorRequirements = *uc.InstructorRequirements
	}
	if uc.AircraftRequirements != nil {
		c.AircraftRequirements = uc.AircraftRequirements
	}
	if uc.MaxStudents != nil {
		c.MaxStudents = *uc.MaxStudents
	}
	if uc.EstimatedCompletionTime != nil {
		c.EstimatedCompletionTime = *uc.EstimatedCompletionTime
	}
	if uc.Materials != nil {
		c.Materials = uc.Materials
	}
	if uc.ExamRequirements != nil {
		c.ExamRequirements = *uc.ExamRequirements
	}
	if uc.CertificationDetails != nil {
		c.CertificationDetails = *uc.CertificationDetails
	}
	if uc.Tags != nil {
		c.Tags = uc.Tags
	}
	if uc.Image != nil {
		c.Image = *uc.Image
	}
	if uc.Featured != nil {
		c.Featured = *uc.Featured
	}
}

type QueryFilter struct {
	IDs      []string
	Statuses []string // empty: any status
	Category string
	Level    string
	Featured *bool
	Search   string // title, description or tags
}

func (qf *QueryFilter) Clean() {
	qf.Statuses = core.CleanStrings(qf.Statuses, true /* lower */)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Level = core.CleanString(qf.Level, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

// Match applies the filter in memory.
func (qf QueryFilter) Match(c Course) bool {
	if qf.IDs != nil && !contains(qf.IDs, c.ID) {
		return false
	}
	if len(qf.Statuses) > 0 && !contains(qf.Statuses, c.Status) {
		return false
	}
	if qf.Category != "" && c.Category != qf.Category {
		return false
	}
	if qf.Level != "" && c.Level != qf.Level {
		return false
	}
	if qf.Featured != nil && c.Featured != *qf.Featured {
		return false
	}
	if qf.Search != "" {
		found := core.ContainsFold(c.Title, qf.Search) || core.ContainsFold(c.Description, qf.Search)
		for _, tag := range c.Tags {
			found = found || core.ContainsFold(tag, qf.Search)
		}
		if !found {
			return false
		}
	}
	return true
}

// SortableFields are the Course fields listings can be ordered by.
var SortableFields = []string{"title", "createdAt", "updatedAt", "priceNumeric", "currentEnrollments", "level", "category"}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
