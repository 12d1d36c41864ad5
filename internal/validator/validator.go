package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/whatsagent/landing/internal/pricing"
)

// New creates a new validator instance.
func New() *validator.Validate {
	valid := validator.New()
	if err := RegisterTierValidation(valid); err != nil {
		panic(fmt.Sprintf("validator initialization; error: %s", err))
	}
	if err := RegisterBumpValidation(valid); err != nil {
		panic(fmt.Sprintf("validator initialization; error: %s", err))
	}

	return valid
}

// RegisterTierValidation registers the "tier" field validator with the
// validator instance.
func RegisterTierValidation(validator *validator.Validate) error {
	return validator.RegisterValidation("tier", tier)
}

// tier matches strings naming a WhatsAgent tier, e.g. "STARTER".
func tier(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return pricing.IsTier(val)
}

// RegisterBumpValidation registers the "bump" field validator with the
// validator instance. Use it with "dive" to validate a list of bumps.
func RegisterBumpValidation(validator *validator.Validate) error {
	return validator.RegisterValidation("bump", bump)
}

// bump matches strings naming an order bump, e.g. "credits_bundle".
func bump(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return pricing.IsBump(val)
}
