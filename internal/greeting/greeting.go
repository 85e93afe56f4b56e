// Package greeting selects and renders the card greeting shown to a target.
package greeting

import (
	"strings"
	"unicode"

	"lunar-card/internal/game"
	"lunar-card/internal/model"
)

// Template tokens.
const (
	TokenName = "{name}"
	TokenYear = "{year}"
)

// FallbackName is used when a target has no label or name override.
const FallbackName = "bạn"

// GlobalWishes is the shared multilingual greeting pool.
var GlobalWishes = []string{
	"Chúc {name} năm {year} luôn bình an và được yêu thương thật nhiều 💖",
	"May {year} bring you calm days and bright nights, {name}. ✨",
	"{year}년에는 {name}님에게 행복이 가득하길 바라요 🌸",
	"Năm {year} chúc {name} mọi điều tốt đẹp tự tìm đến! 🍀",
	"Wishing you a year full of gentle wins, {name}. 💪",
	"{name}님, {year}년은 웃음이 더 많아지는 한 해가 되길 😊",
	"Chúc {name} {year} tiền vào như nước, tiền ra nhỏ giọt thôi nha 💰😄",
	"New year, new energy, go shine, {name}! 🌟",
	"{year}년, {name}님 꿈이 하나씩 이루어지길 🎯",
	"Năm {year} chúc {name} sức khỏe dồi dào, tinh thần lúc nào cũng sáng! 🔋",
	"May your {year} be full of good surprises, {name}. 🎁",
	"{name}님, {year}년엔 좋은 사람들과 좋은 일만 가득하길 🫶",
	"Chúc {name} {year} mọi deadline đều qua nhẹ như lông hồng ⏳🪽",
	"In {year}, may you feel proud of yourself more often, {name}. 🌈",
	"{year}년에도 {name}님이 원하는 길로 쭉 나아가길 🚀",
	"Năm {year} chúc {name} đi đâu cũng gặp điều lành, về đâu cũng thấy yên 🏡✨",
	"May {year} be kind to you, {name}. 🤍",
	"{name}님, {year}년엔 마음이 늘 편안하길 🌿",
	"Chúc {name} năm {year} rực rỡ theo cách của riêng mình 🌟",
	"Wishing {name} a {year} filled with love, laughter, and peace. 🕊️",
	"Năm {year} chúc {name} may mắn tới tấp, niềm vui ngập tràn 🎉",
}

// Pool returns the greeting templates to draw from for target.
func Pool(target *model.Profile) []string {
	if target == nil || target.UseGlobalRandomOnly || len(target.Wishes) == 0 {
		return GlobalWishes
	}
	return target.Wishes
}

// DisplayName returns the name substituted into a greeting for target.
func DisplayName(target *model.Profile) string {
	if target == nil {
		return FallbackName
	}
	if override := strings.TrimSpace(target.NameOverride); override != "" {
		return override
	}
	if target.Label != "" {
		return target.Label
	}
	return FallbackName
}

// Substitute replaces every name and year token in template.
func Substitute(template, name, year string) string {
	return strings.NewReplacer(TokenName, name, TokenYear, year).Replace(template)
}

// Render fills template for target and appends the target's suffix, if any.
func Render(template string, target *model.Profile, year string) string {
	text := Substitute(template, DisplayName(target), strings.TrimSpace(year))
	if target != nil {
		if suffix := strings.TrimSpace(target.Suffix); suffix != "" {
			text += " " + suffix
		}
	}
	return text
}

// NormalizeYear keeps the digits of input, at most four of them.
// When none remain, current is returned unchanged.
func NormalizeYear(input, current string) string {
	var b strings.Builder
	for _, r := range input {
		if b.Len() == 4 {
			break
		}
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return current
	}
	return b.String()
}

// Rotation remembers what one visit has already been shown: the index of
// the previous random pick and the targets whose first-visit greeting is spent.
// A Rotation is not safe for concurrent use; callers serialize per visit.
type Rotation struct {
	rnd   game.Random
	last  int
	shown map[string]struct{}
}

// NewRotation creates an empty Rotation. A nil rnd uses game.DefaultRandom.
func NewRotation(rnd game.Random) *Rotation {
	if rnd == nil {
		rnd = game.DefaultRandom
	}
	return &Rotation{rnd: rnd, last: -1, shown: make(map[string]struct{})}
}

// Pick draws a template from pool uniformly, never repeating the previous
// pick while pool has more than one entry.
func (r *Rotation) Pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	candidates := game.Candidates(len(pool), func(i int) bool {
		return len(pool) == 1 || i != r.last
	})
	idx, _ := game.Sample(r.rnd, candidates)
	r.last = idx
	return pool[idx]
}

// Greet returns the rendered greeting for target. The target's first-visit
// greeting is shown verbatim once per rotation; later calls pick at random.
func (r *Rotation) Greet(target *model.Profile, year string) string {
	if target != nil && target.FirstWish != "" {
		if _, seen := r.shown[target.Key]; !seen {
			r.shown[target.Key] = struct{}{}
			return Render(target.FirstWish, target, year)
		}
	}
	return r.Next(target, year)
}

// Next returns a random rendered greeting for target, skipping the first-visit greeting.
func (r *Rotation) Next(target *model.Profile, year string) string {
	return Render(r.Pick(Pool(target)), target, year)
}

// Forget clears the first-visit memory. The previous-pick index survives.
func (r *Rotation) Forget() {
	clear(r.shown)
}
