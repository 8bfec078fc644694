package bookings

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"tutorbook/internal/shared/errs"
	"tutorbook/internal/slots"

	"github.com/go-playground/validator/v10"
)

var (
	deviceIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
	personNamePattern = regexp.MustCompile(`^[\p{L}\s\-.']+$`)
)

// ErrMissingDevice rejects booking attempts that carry no device token
var ErrMissingDevice = errs.Validation("Missing device identifier. Please reload the page and try again.")

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("slotid", func(fl validator.FieldLevel) bool {
		return slots.ValidateID(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("deviceid", func(fl validator.FieldLevel) bool {
		return deviceIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// validationError turns the first failed rule into a client message
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errs.Validation("Invalid request.")
	}

	fe := fieldErrs[0]
	if fe.Field() == "deviceId" && fe.Tag() == "required" {
		return ErrMissingDevice
	}

	switch fe.Tag() {
	case "required":
		return errs.Validation(fmt.Sprintf("%s is required.", fe.Field()))
	case "min":
		if fe.Kind() == reflect.String {
			return errs.Validation(fmt.Sprintf("%s must be at least %s characters.", fe.Field(), fe.Param()))
		}
		return errs.Validation(fmt.Sprintf("%s must be at least %s.", fe.Field(), fe.Param()))
	case "max":
		if fe.Kind() == reflect.String {
			return errs.Validation(fmt.Sprintf("%s must be at most %s characters.", fe.Field(), fe.Param()))
		}
		return errs.Validation(fmt.Sprintf("%s must be at most %s.", fe.Field(), fe.Param()))
	case "oneof":
		return errs.Validation(fmt.Sprintf("%s must be one of: %s.", fe.Field(), fe.Param()))
	default:
		return errs.Validation(fmt.Sprintf("%s is invalid.", fe.Field()))
	}
}

// normalize trims free text and applies defaults
func (r *CreateBookingRequest) normalize() {
	r.SlotID = strings.TrimSpace(r.SlotID)
	r.Name = strings.TrimSpace(r.Name)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	r.Room = strings.TrimSpace(r.Room)
	r.DeviceID = strings.TrimSpace(r.DeviceID)
	r.Department = strings.TrimSpace(r.Department)
	r.Phone = strings.TrimSpace(r.Phone)
	r.MeetingType = strings.ToLower(strings.TrimSpace(r.MeetingType))
	if r.MeetingType == "" {
		r.MeetingType = MeetingInPerson
	}
	if r.AttendeeCount == 0 {
		r.AttendeeCount = 1
	}
}
