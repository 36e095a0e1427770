package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/skytraining/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

var (
	AllRoles   = []string{RoleStudent, RoleAdmin}
	AllGenders = []string{"male", "female", "other", "prefer-not-to-say"}

	DefaultPasswordHashCost = 12
)

type (
	Address struct {
		Street  string `json:"street,omitempty" bson:"street,omitempty"`
		City    string `json:"city,omitempty" bson:"city,omitempty"`
		State   string `json:"state,omitempty" bson:"state,omitempty"`
		ZipCode string `json:"zipCode,omitempty" bson:"zipCode,omitempty"`
		Country string `json:"country,omitempty" bson:"country,omitempty"`
	}

	EmergencyContact struct {
		Name         string `json:"name,omitempty" bson:"name,omitempty"`
		Relationship string `json:"relationship,omitempty" bson:"relationship,omitempty"`
		Phone        string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,phone"`
	}

	MedicalCertificate struct {
		Class      string     `json:"class,omitempty" bson:"class,omitempty"`
		IssueDate  *time.Time `json:"issueDate,omitempty" bson:"issueDate,omitempty"`
		ExpiryDate *time.Time `json:"expiryDate,omitempty" bson:"expiryDate,omitempty"`
	}
)

type User struct {
	ID                 string             `json:"id"`
	FirstName          string             `json:"firstName"`
	LastName           string             `json:"lastName"`
	Email              string             `json:"email"`
	PasswordHash       []byte             `json:"-"`
	Phone              string             `json:"phone"`
	Role               string             `json:"userType"`
	Gender             string             `json:"gender,omitempty"`
	FlightHours        float64            `json:"flightHours"`
	Certificates       int                `json:"certificates"`
	IsActive           bool               `json:"isActive"`
	ProfileImage       string             `json:"profileImage,omitempty"`
	Address            Address            `json:"address"`
	EmergencyContact   EmergencyContact   `json:"emergencyContact"`
	MedicalCertificate MedicalCertificate `json:"medicalCertificate"`
	LoginAttempts      int                `json:"-"`
	LockUntil          time.Time          `json:"-"` // UTC; zero when unlocked
	LastLogin          time.Time          `json:"lastLogin,omitempty"` // UTC
	CreatedAt          time.Time          `json:"createdAt"`           // UTC
	UpdatedAt          time.Time          `json:"updatedAt"`           // UTC
}

func (u *User) SetPassword(pwd string, cost ...int) error {
	c := DefaultPasswordHashCost
	if len(cost) > 0 && cost[0] > 0 {
		c = cost[0]
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), c)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

func (u *User) FullName() string { return u.FirstName + " " + u.LastName }

// IsLocked reports whether authentication must be refused at `now`.
func (u *User) IsLocked(now time.Time) bool {
	return !u.LockUntil.IsZero() && u.LockUntil.After(now)
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	Phone     string `json:"phone" validate:"required,phone"`
	UserType  string `json:"userType" validate:"required,oneof=student admin"`
	Gender    string `json:"gender" validate:"omitempty,oneof=male female other prefer-not-to-say"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)
	nu.UserType = core.CleanString(nu.UserType, true /* lower */)
	if nu.UserType == "" {
		nu.UserType = RoleStudent
	}
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// IsActive, FlightHours & Certificates are admin-only.
type UpdateUser struct {
	FirstName          *string             `json:"firstName" validate:"omitempty,min=2,max=50"`
	LastName           *string             `json:"lastName" validate:"omitempty,min=2,max=50"`
	Phone              *string             `json:"phone" validate:"omitempty,phone"`
	Gender             *string             `json:"gender" validate:"omitempty,oneof=male female other prefer-not-to-say"`
	ProfileImage       *string             `json:"profileImage"`
	Address            *Address            `json:"address"`
	EmergencyContact   *EmergencyContact   `json:"emergencyContact"`
	MedicalCertificate *MedicalCertificate `json:"medicalCertificate"`
	IsActive           *bool               `json:"isActive"`
	FlightHours        *float64            `json:"flightHours" validate:"omitempty,min=0"`
	Certificates       *int                `json:"certificates" validate:"omitempty,min=0"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	for _, s := range []*string{uu.FirstName, uu.LastName, uu.Phone, uu.Gender, uu.ProfileImage} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(uu)
}

func (uu *UpdateUser) HasAdminFields() bool {
	return uu.IsActive != nil || uu.FlightHours != nil || uu.Certificates != nil
}

func (uu *UpdateUser) apply(usr *User) {
	if uu.FirstName != nil {
		usr.FirstName = *uu.FirstName
	}
	if uu.LastName != nil {
		usr.LastName = *uu.LastName
	}
	if uu.Phone != nil {
		usr.Phone = *uu.Phone
	}
	if uu.Gender != nil {
		usr.Gender = *uu.Gender
	}
	if uu.ProfileImage != nil {
		usr.ProfileImage = *uu.ProfileImage
	}
	if uu.Address != nil {
		usr.Address = *uu.Address
	}
	if uu.EmergencyContact != nil {
		usr.EmergencyContact = *uu.EmergencyContact
	}
	if uu.MedicalCertificate != nil {
		usr.MedicalCertificate = *uu.MedicalCertificate
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.FlightHours != nil {
		usr.FlightHours = *uu.FlightHours
	}
	if uu.Certificates != nil {
		usr.Certificates = *uu.Certificates
	}
}

type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`

	usr User // to check attributes similarity
}

func (pc *PasswordChange) Validate(validate *validator.Validate, usr User) error {
	pc.usr = usr
	return validate.Struct(pc)
}

type QueryFilter struct {
	IDs         []string
	Search      string
	Roles       []string
	IsActive    *bool
	CreatedFrom time.Time
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Roles = core.CleanStrings(qf.Roles, true /* lower */)
}

// Match applies the filter in memory; Search matches first name, last name or email.
func (qf QueryFilter) Match(usr User) bool {
	if qf.IDs != nil && !contains(qf.IDs, usr.ID) {
		return false
	}
	if len(qf.Roles) > 0 && !contains(qf.Roles, usr.Role) {
		return false
	}
	if qf.IsActive != nil && usr.IsActive != *qf.IsActive {
		return false
	}
	if !qf.CreatedFrom.IsZero() && usr.CreatedAt.Before(qf.CreatedFrom) {
		return false
	}
	if qf.Search != "" &&
		!(core.ContainsFold(usr.FirstName, qf.Search) ||
			core.ContainsFold(usr.LastName, qf.Search) ||
			core.ContainsFold(usr.Email, qf.Search)) {
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
