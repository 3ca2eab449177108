// Package validation checks submitted forms with go-playground/validator.
//
// Form structs carry a `msg` tag with the Slovak text shown when that field
// fails; the first failing field wins.
//
//	type registerForm struct {
//	    Email string `validate:"required,email" msg:"Zadaj platný e-mail."`
//	}
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"muzikuj/internal/apperr"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var (
	clockRe   = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	youtubeRe = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)
)

// YouTubeID extracts the 11 character video id from a YouTube URL.
func YouTubeID(url string) string {
	m := youtubeRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// Get returns the shared validator with the custom tags registered.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// HH:MM, 24 hour clock
		_ = validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			return clockRe.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("youtube", func(fl validator.FieldLevel) bool {
			return YouTubeID(fl.Field().String()) != ""
		})
	})
	return validate
}

// Struct validates s and returns an apperr validation error carrying the
// message of the first failing field.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation("invalid", "Neplatné údaje formulára.")
	}
	fe := fieldErrs[0]
	return apperr.Validation("invalid_"+strings.ToLower(fe.Field()), message(s, fe))
}

func message(s any, fe validator.FieldError) string {
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if m := f.Tag.Get("msg"); m != "" {
				return m
			}
		}
	}
	return "Pole " + fe.Field() + " je neplatné."
}
