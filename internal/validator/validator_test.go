package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestValidator(t *testing.T) {
	tests := map[string]struct {
		value interface{}
		tag   string
		err   bool
	}{
		"starter tier":        {value: "STARTER", tag: "tier", err: false},
		"professional tier":   {value: "PROFESSIONAL", tag: "tier", err: false},
		"agency tier":         {value: "AGENCY", tag: "tier", err: false},
		"lower-case tier":     {value: "starter", tag: "tier", err: true},
		"unknown tier":        {value: "ENTERPRISE", tag: "tier", err: true},
		"skool bump":          {value: "skool_mastermind", tag: "bump", err: false},
		"credits bump":        {value: "credits_bundle", tag: "bump", err: false},
		"blueprint bump":      {value: "fuegenix_blueprint", tag: "bump", err: false},
		"unknown bump":        {value: "mystery_box", tag: "bump", err: true},
		"empty bump":          {value: "", tag: "bump", err: true},
		"non-string tier":     {value: 7, tag: "tier", err: true},
		"bump list":           {value: []string{"credits_bundle", "skool_mastermind"}, tag: "dive,bump", err: false},
		"bump list w/ bad op": {value: []string{"credits_bundle", "nope"}, tag: "dive,bump", err: true},
	}
	for name, test := range tests {
		test := test

		t.Run(name, func(t *testing.T) {
			valid := New()
			err := valid.Var(test.value, test.tag)
			if test.err {
				errors := make(validator.ValidationErrors, 0)
				assert.ErrorAs(t, err, &errors)
				return
			}
			assert.Nil(t, err)
		})
	}
}
