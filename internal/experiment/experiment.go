// Package experiment assigns landing page visitors to experiment variants.
// Variants are sampled by cumulative weight and an assignment, once stored, is
// never changed.
package experiment

import (
	"errors"
)

var (
	// ErrUnknownExperiment indicates the experiment key is not registered.
	ErrUnknownExperiment = errors.New("unknown experiment")

	// ErrNotAssigned indicates the visitor has not been assigned a variant of
	// the experiment.
	ErrNotAssigned = errors.New("visitor not assigned to experiment")
)

// Variant is a single arm of an Experiment.
type Variant struct {
	Key    string `json:"key"`
	Weight int    `json:"weight"`
}

// Experiment is a named set of weighted variants.
type Experiment struct {
	Key      string    `json:"key"`
	Variants []Variant `json:"variants"`
}

// Registry lists the experiments currently running on the landing page.
var Registry = []Experiment{
	{
		Key: "landing_variant",
		Variants: []Variant{
			{Key: "control", Weight: 34},
			{Key: "urgency", Weight: 33},
			{Key: "social_proof", Weight: 33},
		},
	},
	{
		Key: "pricing_layout",
		Variants: []Variant{
			{Key: "three_column", Weight: 50},
			{Key: "comparison_table", Weight: 50},
		},
	},
	{
		Key: "checkout_flow",
		Variants: []Variant{
			{Key: "embedded", Weight: 50},
			{Key: "hosted", Weight: 50},
		},
	},
	{
		Key: "order_bump_copy",
		Variants: []Variant{
			{Key: "savings", Weight: 70},
			{Key: "scarcity", Weight: 30},
		},
	},
}

// Lookup retrieves the experiment registered with key from experiments.
func Lookup(experiments []Experiment, key string) (Experiment, error) {
	for _, exp := range experiments {
		if exp.Key == key {
			return exp, nil
		}
	}
	return Experiment{}, ErrUnknownExperiment
}

// TotalWeight sums the weights of variants, ignoring negative weights.
func TotalWeight(variants []Variant) int {
	var total int
	for _, v := range variants {
		if v.Weight > 0 {
			total += v.Weight
		}
	}
	return total
}

// Pick selects a variant by walking the cumulative weights of variants until r
// falls within one. r must be in [0, TotalWeight(variants)). Variants with a
// non-positive weight are never picked. If every weight is zero the first
// variant is picked.
func Pick(variants []Variant, r int) string {
	if len(variants) == 0 {
		return ""
	}

	var cumulative int
	for _, v := range variants {
		if v.Weight <= 0 {
			continue
		}
		cumulative += v.Weight
		if r < cumulative {
			return v.Key
		}
	}

	if TotalWeight(variants) == 0 {
		return variants[0].Key
	}

	// r was out of range; fall back to the last variant that can be picked.
	for i := len(variants) - 1; i >= 0; i-- {
		if variants[i].Weight > 0 {
			return variants[i].Key
		}
	}
	return variants[0].Key
}
