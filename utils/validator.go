package utils

import (
	"errors"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	// Format validation errors
	var msgs []string
	for _, err := range verrs {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, field+" must be at least "+param+" characters")
		case "max":
			msgs = append(msgs, field+" must be at most "+param+" characters")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "oneof":
			msgs = append(msgs, field+" must be one of "+param)
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}

	return errors.New(strings.Join(msgs, ", "))
}

// ValidateEmail checks the address syntax. No network lookups are made.
func ValidateEmail(email string) error {
	if err := checkmail.ValidateFormat(email); err != nil {
		return errors.New("email must be a valid email")
	}
	return nil
}
