package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"lunar-card/internal/apperr"
	"lunar-card/internal/model"
	"lunar-card/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	r, err := registry.Parse([]byte(`[
		{"key": "bexinh", "label": "Bé Xinh", "pass": "1234", "role": "guest"},
		{"key": "boss", "label": "Chủ", "pass": "owner", "role": "owner"},
		{"key": "mai", "label": "Mai", "pass": "Mai"}
	]`))
	require.NoError(t, err)
	return r
}

func TestAuthenticate_Scenario(t *testing.T) {
	s := New()
	p, err := s.Select(testRegistry(t), "bexinh")
	require.NoError(t, err)

	require.NoError(t, s.Authenticate(p, "1234"))
	assert.True(t, s.LoggedIn())
	assert.Equal(t, "bexinh", s.Viewer().Key)
	assert.Same(t, s.Viewer(), s.Target())
}

func TestAuthenticate_TrimsButIsCaseSensitive(t *testing.T) {
	r := testRegistry(t)

	s := New()
	p, err := s.Select(r, "mai")
	require.NoError(t, err)

	err = s.Authenticate(p, "mai")
	assert.ErrorIs(t, err, ErrPassphraseMismatch)
	assert.ErrorIs(t, err, apperr.ErrAuth)
	assert.False(t, s.LoggedIn())

	require.NoError(t, s.Authenticate(p, "  Mai\n"))
	assert.True(t, s.LoggedIn())
}

func TestAuthenticate_Validation(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Authenticate(nil, "x"), ErrNoCandidate)

	p := &model.Profile{Key: "a", Label: "A", Pass: "p"}
	err := s.Authenticate(p, "   ")
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.False(t, s.LoggedIn())
}

func TestAuthenticate_FailureKeepsSession(t *testing.T) {
	r := testRegistry(t)
	s := New()
	p, _ := s.Select(r, "bexinh")
	require.NoError(t, s.Authenticate(p, "1234"))

	other, _ := s.Select(r, "mai")
	assert.Error(t, s.Authenticate(other, "wrong"))
	assert.Equal(t, "bexinh", s.Viewer().Key)
	assert.Equal(t, "bexinh", s.Target().Key)
}

func TestAuthenticate_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pass := rapid.StringMatching(`[A-Za-z0-9]{1,12}`).Draw(t, "pass")
		other := rapid.StringMatching(`[A-Za-z0-9]{1,12}`).Draw(t, "other")
		p := &model.Profile{Key: "k", Label: "L", Pass: pass}

		if err := New().Authenticate(p, pass); err != nil {
			t.Fatalf("own passphrase rejected: %v", err)
		}
		if other != pass {
			if err := New().Authenticate(p, other); err == nil {
				t.Fatalf("passphrase %q accepted for %q", other, pass)
			}
		}
	})
}

func TestSelect_Unknown(t *testing.T) {
	s := New()
	_, err := s.Select(testRegistry(t), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Nil(t, s.Candidate())
}

func TestOverrideTarget(t *testing.T) {
	r := testRegistry(t)

	guest := New()
	p, _ := guest.Select(r, "mai")
	require.NoError(t, guest.Authenticate(p, "Mai"))
	other, _ := r.FindByKey("bexinh")
	err := guest.OverrideTarget(other)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.ErrorIs(t, err, apperr.ErrPermission)
	assert.Equal(t, "mai", guest.Target().Key)

	owner := New()
	p, _ = owner.Select(r, "boss")
	require.NoError(t, owner.Authenticate(p, "owner"))
	require.NoError(t, owner.OverrideTarget(other))
	assert.Equal(t, "boss", owner.Viewer().Key)
	assert.Equal(t, "bexinh", owner.Target().Key)

	assert.ErrorIs(t, New().OverrideTarget(other), ErrNotOwner)
}

func TestLogout(t *testing.T) {
	s := New()
	p, _ := s.Select(testRegistry(t), "boss")
	require.NoError(t, s.Authenticate(p, "owner"))

	s.Logout()
	assert.False(t, s.LoggedIn())
	assert.Nil(t, s.Viewer())
	assert.Nil(t, s.Target())
	assert.Nil(t, s.Candidate())
	assert.False(t, s.IsOwner())
}
