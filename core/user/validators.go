package user

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/skytraining/core"
)

var (
	// password policy
	pwdMinLen     = 6
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least one uppercase letter, one lowercase letter, and one number"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"
)

// InitValidators registers the user validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(userStructValidation, NewUser{}, PasswordChange{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// userStructValidation does struct level validation on NewUser and PasswordChange structs.
func userStructValidation(sl validator.StructLevel) {
	switch data := sl.Current().Interface().(type) {
	case NewUser:
		validatePassword(data.Password, "password", "Password", sl, data.FirstName, data.LastName, data.Email)
	case PasswordChange:
		validatePassword(
			data.NewPassword, "newPassword", "NewPassword", sl,
			data.usr.FirstName, data.usr.LastName, data.usr.Email,
		)
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 6
// - complexity: 1 upper, 1 lower, 1 digit
// - no user attrs similarity
func validatePassword(pwd, field, structField string, sl validator.StructLevel, attrs ...string) {
	if pwd == "" {
		return // reported by `required`
	}
	reportErr := func(tag string) {
		sl.ReportError(pwd, field, structField, tag, "")
	}

	if len([]rune(pwd)) < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}

	var hasUpper, hasLower, hasDig bool
	for _, char := range pwd {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDig = true
		}
	}
	if !(hasUpper && hasLower && hasDig) {
		reportErr(pwdComplexityTag)
		return
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if passwordSimilarity(lpwd, strings.ToLower(attr)) >= pwdMaxSim {
			reportErr(pwdAttrSimTag)
			return
		}
	}
}

func passwordSimilarity(pwd, usrAttr string) float64 {
	if usrAttr == "" {
		return 0
	}
	return difflib.NewMatcher(strings.Split(pwd, ""), strings.Split(usrAttr, "")).QuickRatio()
}
