package tier

import "strings"

// Tier classifies a user for feature access. Tiers are ordered and each
// higher tier implies every lower tier's directory groups.
type Tier string

const (
	Basic   Tier = "basic"
	Premium Tier = "premium"
	Editor  Tier = "editor"
	Admin   Tier = "admin"
)

// Directory group names. There is intentionally no group for the basic tier.
const (
	GroupPremium = "premium"
	GroupEditor  = "editor"
	GroupAdmin   = "admin"
)

// All lists the valid tiers in ascending order of privilege.
var All = []Tier{Basic, Premium, Editor, Admin}

// Parse normalizes s into a Tier. The second return value reports whether
// s named a known tier.
func Parse(s string) (Tier, bool) {
	t := Tier(strings.TrimSpace(strings.ToLower(s)))
	switch t {
	case Basic, Premium, Editor, Admin:
		return t, true
	default:
		return "", false
	}
}

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	_, ok := Parse(string(t))
	return ok
}

// Groups returns the cumulative directory group set implied by t.
// Unknown tiers map to no groups at all: an unrecognized value degrades
// to least privilege instead of failing.
func Groups(t Tier) []string {
	switch t {
	case Basic:
		return []string{}
	case Premium:
		return []string{GroupPremium}
	case Editor:
		return []string{GroupPremium, GroupEditor}
	case Admin:
		return []string{GroupPremium, GroupEditor, GroupAdmin}
	default:
		return []string{}
	}
}
