package greeting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"lunar-card/internal/game/gametest"
	"lunar-card/internal/model"
)

func TestRender_ReplacesTokens(t *testing.T) {
	target := &model.Profile{Key: "mai", Label: "Mai"}
	got := Render("Chúc {name} năm {year} vui, {name}!", target, "2026")

	assert.Equal(t, "Chúc Mai năm 2026 vui, Mai!", got)
	assert.NotContains(t, got, TokenName)
	assert.NotContains(t, got, TokenYear)
}

func TestRender_NoTokensLeft(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[A-Za-z ]{1,12}`).Draw(t, "name")
		year := rapid.StringMatching(`[0-9]{4}`).Draw(t, "year")
		tmpl := rapid.SampledFrom(GlobalWishes).Draw(t, "tmpl")

		out := Render(tmpl, &model.Profile{Key: "k", Label: name}, year)
		if strings.Contains(out, TokenName) || strings.Contains(out, TokenYear) {
			t.Fatalf("tokens left in %q", out)
		}
		if strings.Contains(tmpl, TokenYear) && !strings.Contains(out, year) {
			t.Fatalf("year %q missing from %q", year, out)
		}
	})
}

func TestRender_TemplateWithoutYear(t *testing.T) {
	var tmpl string
	for _, w := range GlobalWishes {
		if !strings.Contains(w, TokenYear) {
			tmpl = w
			break
		}
	}
	require.NotEmpty(t, tmpl, "global pool has a template without a year")

	out := Render(tmpl, &model.Profile{Key: "mai", Label: "Mai"}, "2026")

	assert.NotContains(t, out, "2026")
	assert.NotContains(t, out, TokenName)
	assert.NotContains(t, out, TokenYear)
}

func TestRender_SuffixAndName(t *testing.T) {
	tests := []struct {
		name   string
		target *model.Profile
		want   string
	}{
		{"label", &model.Profile{Label: "Mai"}, "Hi Mai"},
		{"override", &model.Profile{Label: "Mai", NameOverride: " Em Mai "}, "Hi Em Mai"},
		{"suffix", &model.Profile{Label: "Mai", Suffix: " 💖 "}, "Hi Mai 💖"},
		{"no label", &model.Profile{Key: "x"}, "Hi bạn"},
		{"nil", nil, "Hi bạn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render("Hi {name}", tt.target, "2026"))
		})
	}
}

func TestPool(t *testing.T) {
	custom := []string{"a", "b"}

	assert.Equal(t, GlobalWishes, Pool(nil))
	assert.Equal(t, custom, Pool(&model.Profile{Wishes: custom}))
	assert.Equal(t, GlobalWishes, Pool(&model.Profile{Wishes: custom, UseGlobalRandomOnly: true}))
	assert.Equal(t, GlobalWishes, Pool(&model.Profile{Wishes: []string{}}))
}

func TestNormalizeYear(t *testing.T) {
	tests := []struct {
		input, current, want string
	}{
		{"2027", "2026", "2027"},
		{"20a2b7", "2026", "2027"},
		{"202788", "2026", "2027"},
		{"", "2026", "2026"},
		{"abc", "2026", "2026"},
		{"٢٠٢٧", "2026", "2026"},
		{"99", "2026", "99"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeYear(tt.input, tt.current))
		})
	}
}

func TestRotation_NeverRepeatsPrevious(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 10).Draw(t, "n")
		pool := make([]string, n)
		for i := range pool {
			pool[i] = strings.Repeat("x", i+1)
		}
		r := NewRotation(nil)

		prev := ""
		for i := 0; i < 30; i++ {
			got := r.Pick(pool)
			if got == prev {
				t.Fatalf("repeated %q on pick %d", got, i)
			}
			prev = got
		}
	})
}

func TestRotation_SingleEntryRepeats(t *testing.T) {
	r := NewRotation(nil)
	assert.Equal(t, "only", r.Pick([]string{"only"}))
	assert.Equal(t, "only", r.Pick([]string{"only"}))
}

func TestRotation_SkipsPreviousWithFixedRandom(t *testing.T) {
	// Always asks for candidate 0; after picking index 0 the candidates
	// become [1, 2] so the next pick is index 1.
	r := NewRotation(&gametest.Sequence{Ints: []int{0}})
	pool := []string{"a", "b", "c"}

	assert.Equal(t, "a", r.Pick(pool))
	assert.Equal(t, "b", r.Pick(pool))
	assert.Equal(t, "a", r.Pick(pool))
}

func TestRotation_FirstWishOncePerTarget(t *testing.T) {
	r := NewRotation(&gametest.Sequence{Ints: []int{0}})
	target := &model.Profile{
		Key:       "hn",
		Label:     "Nhung",
		FirstWish: "Lần đầu gặp {name}",
		Wishes:    []string{"Chúc {name} {year}", "Mừng {name}"},
	}

	assert.Equal(t, "Lần đầu gặp Nhung", r.Greet(target, "2026"))
	assert.Equal(t, "Chúc Nhung 2026", r.Greet(target, "2026"))

	r.Forget()
	assert.Equal(t, "Lần đầu gặp Nhung", r.Greet(target, "2026"))
}

func TestRotation_NextIgnoresFirstWish(t *testing.T) {
	r := NewRotation(&gametest.Sequence{Ints: []int{0}})
	target := &model.Profile{Key: "hn", Label: "Nhung", FirstWish: "first", Wishes: []string{"w {name}"}}

	require.Equal(t, "w Nhung", r.Next(target, "2026"))
	assert.Equal(t, "first", r.Greet(target, "2026"))
}
