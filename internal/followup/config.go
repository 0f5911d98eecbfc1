package followup

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Anchor names the patient event all schedule offsets are measured from.
type Anchor string

const (
	AnchorSurgery      Anchor = "surgery"
	AnchorDischarge    Anchor = "discharge"
	AnchorRegistration Anchor = "registration"
)

// ErrInvalidConfig wraps every schedule validation failure.
var ErrInvalidConfig = errors.New("invalid schedule config")

// Config is the per-form follow-up schedule. Field names are the JSON/YAML
// contract shared with the forms editor.
type Config struct {
	Anchor          Anchor `json:"anchor" yaml:"anchor" validate:"required,oneof=surgery discharge registration"`
	FirstAfterHours int    `json:"firstAfterHours" yaml:"firstAfterHours" validate:"gte=0"`
	CadenceHours    *int   `json:"cadenceHours,omitempty" yaml:"cadenceHours,omitempty" validate:"omitempty,gt=0"`
	EndAfterHours   *int   `json:"endAfterHours,omitempty" yaml:"endAfterHours,omitempty" validate:"omitempty,gt=0"`
	QuietHoursStart string `json:"quietHoursStart,omitempty" yaml:"quietHoursStart,omitempty" validate:"omitempty,datetime=15:04"`
	QuietHoursEnd   string `json:"quietHoursEnd,omitempty" yaml:"quietHoursEnd,omitempty" validate:"omitempty,datetime=15:04"`
	Timezone        string `json:"timezone,omitempty" yaml:"timezone,omitempty" validate:"omitempty,timezone"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report contract names (firstAfterHours) rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the config the way the forms editor must before saving it.
// Plan never calls it.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, describe(fe)))
		}
	}

	// quiet hours only make sense as a pair
	if (c.QuietHoursStart == "") != (c.QuietHoursEnd == "") {
		errs = append(errs, fmt.Errorf("%w: quietHoursStart and quietHoursEnd must be set together", ErrInvalidConfig))
	} else if c.QuietHoursStart != "" && c.QuietHoursStart == c.QuietHoursEnd {
		errs = append(errs, fmt.Errorf("%w: quiet hours window is empty (%s-%s)", ErrInvalidConfig, c.QuietHoursStart, c.QuietHoursEnd))
	}

	if c.EndAfterHours != nil && c.FirstAfterHours > *c.EndAfterHours {
		errs = append(errs, fmt.Errorf("%w: firstAfterHours %d is after endAfterHours %d", ErrInvalidConfig, c.FirstAfterHours, *c.EndAfterHours))
	}

	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to fallback when unset or unknown.
func (c *Config) Location(fallback *time.Location) *time.Location {
	if c.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// Hours is a convenience for building optional hour fields.
func Hours(h int) *int { return &h }

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return field + " must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return field + " must be greater than or equal to " + fe.Param()
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "datetime":
		return field + " must be HH:MM"
	case "timezone":
		return field + " must be an IANA time zone"
	default:
		return field + " is invalid"
	}
}
