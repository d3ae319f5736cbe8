package connstring

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// validatableInfo carries the validator tags; ConnectionInfo itself stays
// tag-free since Parse is the primary way callers build one.
type validatableInfo struct {
	DataSource          string `validate:"required"`
	ApplicationClientID string `validate:"required_with=ApplicationKey"`
	ApplicationKey      string `validate:"required_with=ApplicationClientID"`
}

// Validate checks cross-field requirements Parse's grammar can't express:
// a data source is always required, and an application client ID and key
// must be supplied together or not at all.
func (i *ConnectionInfo) Validate() error {
	return validate.Struct(validatableInfo{
		DataSource:          i.DataSource,
		ApplicationClientID: i.ApplicationClientID,
		ApplicationKey:      i.ApplicationKey,
	})
}
