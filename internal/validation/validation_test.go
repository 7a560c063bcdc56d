package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventBody struct {
	Start    string `validate:"omitempty,timeofday"`
	Category string `validate:"required,eventcategory"`
}

func TestRules(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	cases := []struct {
		body eventBody
		ok   bool
	}{
		{eventBody{Start: "09:00", Category: "teknologi"}, true},
		{eventBody{Start: "09:00:30", Category: "sosial"}, true},
		{eventBody{Category: "akademik"}, true},
		{eventBody{Start: "25:00", Category: "teknologi"}, false},
		{eventBody{Start: "9am", Category: "teknologi"}, false},
		{eventBody{Start: "09:00", Category: "music"}, false},
	}
	for _, tc := range cases {
		err := v.Struct(tc.body)
		if tc.ok {
			assert.NoError(t, err, tc.body)
		} else {
			assert.Error(t, err, tc.body)
		}
	}
}

func TestRegisterGin(t *testing.T) {
	assert.NoError(t, RegisterGin())
}
