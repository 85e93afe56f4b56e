package identity

import (
	"strings"

	"lunar-card/internal/model"
)

// Aliases configures which profiles the matcher singles out.
// Every value is folded before use, so configuration may carry diacritics.
type Aliases struct {
	// ExemptKeys are keys of the exempt identity (for example "ethereal", "aq").
	ExemptKeys []string
	// ExemptLabels are exact labels of the exempt identity.
	ExemptLabels []string
	// ExemptLabelFragments mark the exempt identity when contained in a label.
	ExemptLabelFragments []string
	// RingLabelFragment marks the ring winner when contained in a label.
	RingLabelFragment string
	// BraceletKey is the exact key of the bracelet winner.
	BraceletKey string
	// MiddleTierFragment marks the middle reward tier when contained in a label.
	MiddleTierFragment string
}

// DefaultAliases returns the aliases the card ships with.
func DefaultAliases() Aliases {
	return Aliases{
		ExemptKeys:           []string{"ethereal", "aq"},
		ExemptLabels:         []string{"aq"},
		ExemptLabelFragments: []string{"anh quynh"},
		RingLabelFragment:    "hong nhung",
		BraceletKey:          "bexinh",
		MiddleTierFragment:   "gia truong",
	}
}

// Matcher answers identity questions about profiles.
// It is safe for concurrent use; it holds no mutable state.
type Matcher struct {
	exemptKeys      map[string]struct{}
	exemptLabels    map[string]struct{}
	exemptFragments []string
	ring            string
	bracelet        string
	middle          string
}

// NewMatcher creates a Matcher from the given aliases.
func NewMatcher(a Aliases) *Matcher {
	m := &Matcher{
		exemptKeys:   make(map[string]struct{}, len(a.ExemptKeys)),
		exemptLabels: make(map[string]struct{}, len(a.ExemptLabels)),
		ring:         Fold(a.RingLabelFragment),
		bracelet:     strings.TrimSpace(a.BraceletKey),
		middle:       Fold(a.MiddleTierFragment),
	}
	for _, k := range a.ExemptKeys {
		if f := Fold(k); f != "" {
			m.exemptKeys[f] = struct{}{}
		}
	}
	for _, l := range a.ExemptLabels {
		if f := Fold(l); f != "" {
			m.exemptLabels[f] = struct{}{}
		}
	}
	for _, frag := range a.ExemptLabelFragments {
		if f := Fold(frag); f != "" {
			m.exemptFragments = append(m.exemptFragments, f)
		}
	}
	return m
}

// IsExempt reports whether p is the designated exempt identity.
// The exempt identity bypasses the unlock gate, may re-spin the wheel
// and receives the top reward tier.
func (m *Matcher) IsExempt(p *model.Profile) bool {
	if p == nil {
		return false
	}
	if _, ok := m.exemptKeys[Fold(p.Key)]; ok {
		return true
	}
	label := Fold(p.Label)
	if _, ok := m.exemptLabels[label]; ok {
		return true
	}
	for _, frag := range m.exemptFragments {
		if strings.Contains(label, frag) {
			return true
		}
	}
	return false
}

// CanRepeat reports whether p may replay exempt-only actions: the owner
// role or the exempt identity.
func (m *Matcher) CanRepeat(p *model.Profile) bool {
	return p.IsOwner() || m.IsExempt(p)
}

// IsRingWinner reports whether p's label contains the ring winner's name.
func (m *Matcher) IsRingWinner(p *model.Profile) bool {
	if p == nil || m.ring == "" {
		return false
	}
	return strings.Contains(Fold(p.Label), m.ring)
}

// IsBraceletWinner reports whether p's key equals the bracelet key exactly.
func (m *Matcher) IsBraceletWinner(p *model.Profile) bool {
	return p != nil && m.bracelet != "" && p.Key == m.bracelet
}

// IsMiddleTier reports whether p's label contains the middle-tier fragment.
func (m *Matcher) IsMiddleTier(p *model.Profile) bool {
	if p == nil || m.middle == "" {
		return false
	}
	return strings.Contains(Fold(p.Label), m.middle)
}
