package models

import (
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidID is returned for identifiers that do not have the platform snowflake shape.
var ErrInvalidID = errors.New("invalid platform ID")

var validate = validator.New()

// ValidateID checks that id is a 17-19 digit snowflake.
func ValidateID(id string) error {
	if err := validate.Var(id, "required,numeric,min=17,max=19"); err != nil {
		return errors.Wrapf(ErrInvalidID, "%q", id)
	}
	// numeric also admits signs and decimals.
	for _, r := range id {
		if r < '0' || r > '9' {
			return errors.Wrapf(ErrInvalidID, "%q", id)
		}
	}
	return nil
}
