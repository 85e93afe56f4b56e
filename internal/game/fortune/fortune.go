// Package fortune implements the lucky envelope: the reward tier of a player
// and the message that comes with it.
package fortune

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"lunar-card/internal/greeting"
	"lunar-card/internal/identity"
	"lunar-card/internal/model"
)

// Reward tiers in VND.
const (
	AmountLow    int64 = 50000
	AmountMiddle int64 = 200000
	AmountHigh   int64 = 500000
)

// Messages holds the message pool per reward tier.
var Messages = map[int64][]string{
	AmountLow: {
		"{name} ơi, lộc nhỏ nhưng vui to – năm {year} cười nhiều hơn lo! 😊",
		"{year} chúc {name} gặp đúng người, đúng việc, đúng thời điểm 🎯",
		"Lộc nhỏ đầu năm: chúc {name} {year} nhẹ nhàng mà rực rỡ 🌟",
	},
	AmountMiddle: {
		"{name} nhận lộc 200k – chúc {year} tiền vào như nước, niềm vui ngập tràn 🎉💰",
		"Lộc 200k gửi {name}: chúc {year} mọi điều như ý, an yên và đủ đầy 🤍",
	},
	AmountHigh: {
		"{name} nhận lộc 500k – chúc năm {year} bùng nổ tài lộc, làm đâu thắng đó 💥💰",
		"Lộc 500k gửi {name}: chúc {year} phát tài phát lộc, mọi việc hanh thông 🎉",
	},
}

// Reveal is the envelope content for one player.
type Reveal struct {
	Amount  int64  `json:"amount"`
	Money   string `json:"money"`
	Message string `json:"message"`
}

// Envelope computes rewards. It holds no mutable state.
type Envelope struct {
	matcher *identity.Matcher
}

// New creates an Envelope using matcher for the tier rules.
func New(matcher *identity.Matcher) *Envelope {
	return &Envelope{matcher: matcher}
}

// AmountFor returns the reward tier of p.
func (e *Envelope) AmountFor(p *model.Profile) int64 {
	switch {
	case e.matcher.IsExempt(p):
		return AmountHigh
	case e.matcher.IsMiddleTier(p):
		return AmountMiddle
	default:
		return AmountLow
	}
}

// Open returns the reveal for p. The same profile and year always give the
// same amount and message.
func (e *Envelope) Open(p *model.Profile, year string) Reveal {
	amount := e.AmountFor(p)
	pool, ok := Messages[amount]
	if !ok {
		pool = Messages[AmountLow]
	}
	idx := Hash32(seed(p, amount)) % uint32(len(pool))
	return Reveal{
		Amount:  amount,
		Money:   FormatVND(amount),
		Message: greeting.Substitute(pool[idx], name(p), strings.TrimSpace(year)),
	}
}

func seed(p *model.Profile, amount int64) string {
	id := ""
	if p != nil {
		id = p.Key
		if id == "" {
			id = p.Label
		}
	}
	return id + "|" + strconv.FormatInt(amount, 10)
}

func name(p *model.Profile) string {
	if p == nil {
		return greeting.FallbackName
	}
	n := p.Label
	if n == "" {
		n = p.Key
	}
	if n = strings.TrimSpace(n); n == "" {
		return greeting.FallbackName
	}
	return n
}

// FNV-1a 32-bit parameters.
const (
	fnvOffset32 uint32 = 0x811c9dc5
	fnvPrime32  uint32 = 0x01000193
)

// Hash32 is FNV-1a over the UTF-16 code units of s.
// For ASCII input it equals hash/fnv's New32a.
func Hash32(s string) uint32 {
	h := fnvOffset32
	for _, unit := range utf16.Encode([]rune(s)) {
		h ^= uint32(unit)
		h *= fnvPrime32
	}
	return h
}

var vnd = message.NewPrinter(language.Vietnamese)

// FormatVND formats amount as Vietnamese money, for example "50.000đ".
// Zero and negative amounts format as "0đ".
func FormatVND(amount int64) string {
	if amount <= 0 {
		return "0đ"
	}
	return vnd.Sprintf("%d", amount) + "đ"
}
