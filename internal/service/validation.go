package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"eventhub/internal/apperr"
	"eventhub/internal/models"
)

// bcrypt ignores input past 72 bytes
const maxPasswordBytes = 72

var (
	adminNameRegex = regexp.MustCompile(`^[A-Za-z]+$`)
	userNameRegex  = regexp.MustCompile(`^[A-Za-z ]*[A-Za-z][A-Za-z ]*$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("adminname", func(fl validator.FieldLevel) bool {
		return adminNameRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return userNameRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("pwbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	_ = v.RegisterValidation("strongpw", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.DateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("storable", func(fl validator.FieldLevel) bool {
		return storableText(fl.Field().String())
	})
	_ = v.RegisterValidation("costtype", func(fl validator.FieldLevel) bool {
		return models.CostType(fl.Field().String()).Valid()
	})
	return v
}

// storableText reports whether Postgres will accept s in a text column:
// valid UTF-8 with no NUL bytes.
func storableText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

func isStrongPassword(pw string) bool {
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// fieldMessages maps a failing field (and optionally tag) to client text.
// Lookups try "field.tag" first, then "field".
var fieldMessages = map[string]string{
	"name.adminname":    "Name must be alphabetic only",
	"name.username":     "Name must contain only letters and spaces",
	"name":              "Name is required",
	"email":             "Invalid email format",
	"password.min":      "Password must be at least 8 characters",
	"password.pwbytes":  "Password must be at most 72 bytes",
	"password.strongpw": "Password must include upper and lower case letters, a digit and a special character",
	"password":          "Password is required",
	"title.storable":    "Title contains invalid characters",
	"title":             "Title is required and must be 50 chars or less",
	"venue.storable":    "Venue contains invalid characters",
	"venue":             "Venue is required and must be 150 chars or less",
	"start_date":        "Start date must be a valid YYYY-MM-DD date",
	"end_date":          "End date must be a valid YYYY-MM-DD date",
	"time.storable":     "Time contains invalid characters",
	"time":              "Time is required",
	"cost_type":         `Cost type must be "free" or "paid"`,
}

// validateStruct runs the validator and turns the first failure into a
// Validation error.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) || len(vErrs) == 0 {
		return apperr.Wrap(apperr.KindInternal, "validate input", err)
	}

	fe := vErrs[0]
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return apperr.Validation(msg)
	}
	if msg, ok := fieldMessages[fe.Field()]; ok {
		return apperr.Validation(msg)
	}
	return apperr.Validation("Invalid " + fe.Field())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
