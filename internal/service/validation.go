package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/coursemarket/internal/apperror"
)

const passwordSymbols = "@$!%*?&"

// Validator wraps go-playground/validator with the marketplace's custom
// tags and turns the first failure into an apperror.ErrValidation.
//
// Custom tags:
//
//	password    at least 8 chars from [A-Za-z0-9@$!%*?&] with one uppercase,
//	            one digit and one symbol
//	alphaspace  letters and spaces only, at least one letter
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// Registration cannot fail for these names; the error is ignored.
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return validPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("alphaspace", func(fl validator.FieldLevel) bool {
		return validName(fl.Field().String())
	})

	return &Validator{validate: v}
}

// Struct validates s and returns nil or an *apperror.AppError.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validating input: %w", err)
	}

	fe := verrs[0]
	return apperror.ValidationFailed(fe.Field(), messageFor(fe))
}

func messageFor(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", field)
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", field, fe.Param())
	case "url":
		return "Enter a valid URL."
	case "gt":
		return fmt.Sprintf("%s must be greater than %s.", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s.", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s.", field, fe.Param())
	case "eqfield":
		return "Passwords do not match."
	case "password":
		return "Password must be at least 8 characters long and contain at least one uppercase letter, one digit, and one special character."
	case "alphaspace":
		return "Name can only contain letters and spaces and should not have digits or symbols."
	default:
		return fmt.Sprintf("%s is invalid.", field)
	}
}

func validPassword(p string) bool {
	if len(p) < 8 {
		return false
	}
	var upper, digit, symbol bool
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		default:
			return false
		}
	}
	return upper && digit && symbol
}

func validName(name string) bool {
	letters := 0
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ':
		default:
			return false
		}
	}
	return letters > 0
}
