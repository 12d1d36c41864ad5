package pricing

import "fmt"

// Bump is an optional add-on offered during checkout.
type Bump string

const (
	BumpSkoolMastermind   Bump = "skool_mastermind"
	BumpCreditsBundle     Bump = "credits_bundle"
	BumpFuegenixBlueprint Bump = "fuegenix_blueprint"
)

// BumpInfo describes an order bump. Savings is advertised copy only and never
// affects what is charged.
type BumpInfo struct {
	Bump        Bump   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Savings     int64  `json:"savings"`
}

// Bumps lists the order bump catalog in display order.
var Bumps = []BumpInfo{
	{
		Bump:        BumpSkoolMastermind,
		Name:        "Skool Mastermind Access",
		Description: "Private community and weekly implementation calls.",
		Price:       dollars(197),
		Savings:     dollars(800),
	},
	{
		Bump:        BumpCreditsBundle,
		Name:        "AI Credits Bundle",
		Description: "Prepaid AI credits for agents that do not bring their own key.",
		Price:       dollars(197),
		Savings:     dollars(103),
	},
	{
		Bump:        BumpFuegenixBlueprint,
		Name:        "Fuegenix Blueprint",
		Description: "Done-for-you agent templates and launch playbook.",
		Price:       dollars(97),
		Savings:     dollars(400),
	},
}

// LookupBump retrieves the catalog entry of b.
func LookupBump(b Bump) (BumpInfo, error) {
	for _, info := range Bumps {
		if info.Bump == b {
			return info, nil
		}
	}
	return BumpInfo{}, fmt.Errorf("while looking up %q: %w", b, ErrUnknownBump)
}

// IsBump indicates if s names a known order bump.
func IsBump(s string) bool {
	_, err := LookupBump(Bump(s))
	return err == nil
}
