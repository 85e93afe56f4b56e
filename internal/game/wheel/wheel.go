// Package wheel implements the prize wheel: outcome assignment per player,
// segment selection and the landing rotation.
package wheel

import (
	"lunar-card/internal/game"
	"lunar-card/internal/identity"
	"lunar-card/internal/model"
)

// Outcome is the prize a spin lands on.
type Outcome string

// Wheel outcomes.
const (
	OutcomeNone     Outcome = "none"
	OutcomeRing     Outcome = "ring"
	OutcomeBracelet Outcome = "bracelet"
)

// Segment is one slice of the wheel.
type Segment struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Prize bool   `json:"prize"`
}

// segmentTry is the id of the no-win segments.
const segmentTry = "try"

// Segments is the wheel layout, clockwise from the pointer.
var Segments = []Segment{
	{ID: segmentTry, Label: "Chúc may mắn"},
	{ID: string(OutcomeRing), Label: "Nhẫn Pandora", Prize: true},
	{ID: segmentTry, Label: "Chúc may mắn"},
	{ID: segmentTry, Label: "Chúc may mắn"},
	{ID: string(OutcomeBracelet), Label: "Vòng tay Pandora", Prize: true},
	{ID: segmentTry, Label: "Chúc may mắn"},
	{ID: segmentTry, Label: "Chúc may mắn"},
	{ID: segmentTry, Label: "Chúc may mắn"},
}

// SegmentAngle is the width of one segment in degrees.
var SegmentAngle = 360.0 / float64(len(Segments))

// Rotation tuning.
const (
	MinTurns    = 6
	ExtraTurns  = 3
	JitterRatio = 0.3
)

// Spin is the result of one spin.
type Spin struct {
	Outcome  Outcome `json:"outcome"`
	Segment  int     `json:"segment"`
	Rotation float64 `json:"rotation"`
	Text     string  `json:"text"`
}

// Wheel assigns outcomes and picks landing segments.
type Wheel struct {
	matcher *identity.Matcher
	rnd     game.Random
}

// New creates a Wheel. A nil rnd uses game.DefaultRandom.
func New(matcher *identity.Matcher, rnd game.Random) *Wheel {
	if rnd == nil {
		rnd = game.DefaultRandom
	}
	return &Wheel{matcher: matcher, rnd: rnd}
}

// OutcomeFor returns the outcome the player is due. It depends only on the
// profile: the ring winner first, then the bracelet key, else none.
func (w *Wheel) OutcomeFor(p *model.Profile) Outcome {
	switch {
	case w.matcher.IsRingWinner(p):
		return OutcomeRing
	case w.matcher.IsBraceletWinner(p):
		return OutcomeBracelet
	default:
		return OutcomeNone
	}
}

// Matches reports whether segment i belongs to outcome.
func Matches(outcome Outcome, i int) bool {
	if outcome == OutcomeNone {
		return Segments[i].ID == segmentTry
	}
	return Segments[i].ID == string(outcome)
}

// SegmentFor picks uniformly among the segments matching outcome.
// It falls back to segment 0 when nothing matches.
func (w *Wheel) SegmentFor(outcome Outcome) int {
	candidates := game.Candidates(len(Segments), func(i int) bool {
		return Matches(outcome, i)
	})
	idx, _ := game.Sample(w.rnd, candidates)
	return idx
}

// RotationFor returns the final wheel rotation in degrees that lands on
// segment idx after several full turns plus a small jitter.
func (w *Wheel) RotationFor(idx int) float64 {
	turns := MinTurns + w.rnd.Intn(ExtraTurns)
	jitter := w.rnd.Float64()*(SegmentAngle*2*JitterRatio) - SegmentAngle*JitterRatio
	target := 360 - float64(idx)*SegmentAngle
	for target >= 360 {
		target -= 360
	}
	return float64(turns)*360 + target + jitter
}

// Spin computes a complete spin for the player.
func (w *Wheel) Spin(p *model.Profile) Spin {
	outcome := w.OutcomeFor(p)
	idx := w.SegmentFor(outcome)
	return Spin{
		Outcome:  outcome,
		Segment:  idx,
		Rotation: w.RotationFor(idx),
		Text:     ResultText(outcome),
	}
}

// ResultText returns the message shown under the wheel for outcome.
func ResultText(outcome Outcome) string {
	switch outcome {
	case OutcomeRing:
		return "🎉 Chúc mừng! Bạn đã quay trúng: NHẪN PANDORA 💍"
	case OutcomeBracelet:
		return "🎉 Chúc mừng! Bạn đã quay trúng: VÒNG TAY PANDORA ✨"
	default:
		return "😄 Chưa trúng giải lớn lần này.\n\nĐừng lo, mình còn có “lắc quẻ may mắn” để nhận lộc đầu năm 🧧"
	}
}
