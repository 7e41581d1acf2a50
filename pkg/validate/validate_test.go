package validate_test

import (
	"testing"

	"github.com/Astemirdum/library-catalog/pkg/validate"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name   string `json:"name" validate:"required,min=2"`
	Author string `json:"author,omitempty" validate:"required"`
	Cover  string `json:"coverImageUrl" validate:"omitempty,url"`
}

func TestCustomValidator(t *testing.T) {
	v := validate.NewCustomValidator()

	require.NoError(t, v.Validate(payload{Name: "Dune", Author: "Herbert"}))

	err := v.Validate(payload{Name: "D", Cover: "not a url"})
	var fe validate.FieldErrors
	require.True(t, errors.As(err, &fe))
	require.Equal(t, validate.FieldErrors{
		"name":          "must be at least 2 characters",
		"author":        "is required",
		"coverImageUrl": "must be a valid URL",
	}, fe)
}
