package request

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("zippattern", validateZipPattern)
	})
	return validate
}

// validateZipPattern accepts an empty string (pattern unset) or anything
// that compiles as a Go regexp, since ZipPattern ultimately selects a
// member out of a ZIP archive by name match.
func validateZipPattern(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := regexp.Compile(s)
	return err == nil
}

// validatableProperties mirrors Properties' exported fields with the
// validator tags the library needs; validator ignores unexported fields,
// so the mutually-exclusive mapping fields (held privately) are validated
// separately by New's own option-application order.
type validatableProperties struct {
	AdditionalTags    []string `validate:"dive,required"`
	DropByTags        []string `validate:"dive,required"`
	IngestByTags      []string `validate:"dive,required"`
	IngestIfNotExists []string `validate:"dive,required"`
	ZipPattern        string   `validate:"zippattern"`
}

// Validate reports whether p's pass-through hints are well-formed: no
// blank tag strings, and a ZipPattern (if set) that compiles as a regexp.
// It does not reach into the engine — a well-formed request can still be
// rejected server-side.
func (p Properties) Validate() error {
	return getValidator().Struct(validatableProperties{
		AdditionalTags:    p.AdditionalTags,
		DropByTags:        p.DropByTags,
		IngestByTags:      p.IngestByTags,
		IngestIfNotExists: p.IngestIfNotExists,
		ZipPattern:        p.ZipPattern,
	})
}
