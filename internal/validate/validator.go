package validate

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	"github.com/hamed0406/uptimeworker/internal/domain"
)

// IDLength is the fixed length of a check id.
const IDLength = 20

var ErrMalformedRecord = errors.New("malformed check record")

// Validator turns untrusted records into checks. It holds no state besides
// the compiled rules and is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("whole", validateWhole) //nolint:errcheck
	v.RegisterTagNameFunc(jsonFieldName)
	return &Validator{validate: v}
}

// checkFields mirrors RawCheck after normalization; the tags carry the rules.
type checkFields struct {
	ID             string  `json:"id" validate:"required,len=20"`
	OwnerContact   string  `json:"ownerContact" validate:"required"`
	Protocol       string  `json:"protocol" validate:"required,oneof=http https"`
	Host           string  `json:"host" validate:"required"`
	Method         string  `json:"method" validate:"required,oneof=get post put delete"`
	AcceptedCodes  []int   `json:"acceptedCodes" validate:"required,min=1,dive,min=100,max=599"`
	TimeoutSeconds float64 `json:"timeoutSeconds" validate:"required,whole,min=1,max=5"`
}

func validateWhole(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		f := fl.Field().Float()
		return f == math.Trunc(f)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

// Validate normalizes raw and checks every field. Any violation rejects the
// whole record with an error wrapping ErrMalformedRecord.
func (v *Validator) Validate(raw domain.RawCheck) (domain.Check, error) {
	f := checkFields{
		ID:             strings.TrimSpace(raw.ID),
		OwnerContact:   strings.TrimSpace(raw.OwnerContact),
		Protocol:       strings.ToLower(strings.TrimSpace(raw.Protocol)),
		Host:           strings.TrimSpace(raw.Host),
		Method:         strings.ToLower(strings.TrimSpace(raw.Method)),
		AcceptedCodes:  raw.AcceptedCodes,
		TimeoutSeconds: raw.TimeoutSeconds,
	}
	if err := v.validate.Struct(f); err != nil {
		return domain.Check{}, reject(err)
	}

	codes := slices.Clone(f.AcceptedCodes)
	slices.Sort(codes)
	codes = slices.Compact(codes)

	c := domain.Check{
		ID:             f.ID,
		OwnerContact:   f.OwnerContact,
		Protocol:       domain.Protocol(f.Protocol),
		Host:           f.Host,
		Method:         domain.Method(f.Method),
		AcceptedCodes:  codes,
		TimeoutSeconds: int(f.TimeoutSeconds),
	}
	if s, ok := domain.ParseState(raw.State); ok {
		c.State = &s
	}
	if raw.LastCheckedAt > 0 {
		at := time.UnixMilli(raw.LastCheckedAt).UTC()
		c.LastCheckedAt = &at
	}
	return c, nil
}

// MalformedError names every field that failed. It matches
// ErrMalformedRecord under errors.Is.
type MalformedError struct {
	Fields []string
	Err    error
}

func (e *MalformedError) Error() string {
	return ErrMalformedRecord.Error() + ": " + e.Err.Error()
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedRecord }

func reject(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &MalformedError{Err: err}
	}
	out := &MalformedError{}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, fe.Field())
		out.Err = multierr.Append(out.Err, fmt.Errorf("%s: failed %q", fe.Field(), fe.Tag()))
	}
	return out
}
