// Package session holds the authentication state of one visit: who is
// viewing and whose card is shown.
package session

import (
	"fmt"
	"strings"

	"lunar-card/internal/apperr"
	"lunar-card/internal/model"
)

// Session errors.
var (
	// ErrNoCandidate is returned when unlocking without a selected profile.
	ErrNoCandidate = fmt.Errorf("%w: no profile selected", apperr.ErrValidation)

	// ErrEmptyPassphrase is returned when the supplied passphrase is blank.
	ErrEmptyPassphrase = fmt.Errorf("%w: passphrase is required", apperr.ErrValidation)

	// ErrPassphraseMismatch is returned when the passphrase does not match.
	ErrPassphraseMismatch = fmt.Errorf("%w: passphrase mismatch", apperr.ErrAuth)

	// ErrNotOwner is returned when a non-owner tries to view another card.
	ErrNotOwner = fmt.Errorf("%w: only the owner may view other cards", apperr.ErrPermission)
)

// Directory looks up profiles by key.
type Directory interface {
	FindByKey(key string) (*model.Profile, error)
}

// Session is the authentication state of one visit.
// Target is nil unless LoggedIn; for non-owners Target always equals Viewer.
type Session struct {
	candidate *model.Profile
	loggedIn  bool
	viewer    *model.Profile
	target    *model.Profile
}

// New returns an empty, logged-out session.
func New() *Session {
	return &Session{}
}

// Select stages the profile with key for authentication.
// It does not change who is logged in.
func (s *Session) Select(dir Directory, key string) (*model.Profile, error) {
	p, err := dir.FindByKey(strings.TrimSpace(key))
	if err != nil {
		return nil, err
	}
	s.candidate = p
	return p, nil
}

// Candidate returns the staged profile, or nil.
func (s *Session) Candidate() *model.Profile {
	return s.candidate
}

// Authenticate logs candidate in when passphrase, trimmed, equals its
// passphrase byte for byte. On failure the session is unchanged.
func (s *Session) Authenticate(candidate *model.Profile, passphrase string) error {
	if candidate == nil {
		return ErrNoCandidate
	}
	pw := strings.TrimSpace(passphrase)
	if pw == "" {
		return ErrEmptyPassphrase
	}
	if pw != candidate.Pass {
		return ErrPassphraseMismatch
	}
	s.loggedIn = true
	s.viewer = candidate
	s.target = candidate
	return nil
}

// OverrideTarget shows target's card to an owner without target's passphrase.
func (s *Session) OverrideTarget(target *model.Profile) error {
	if !s.IsOwner() {
		return ErrNotOwner
	}
	if target == nil {
		return ErrNoCandidate
	}
	s.target = target
	return nil
}

// Logout clears the session, including the staged candidate.
func (s *Session) Logout() {
	*s = Session{}
}

// LoggedIn reports whether a profile has authenticated.
func (s *Session) LoggedIn() bool {
	return s.loggedIn
}

// Viewer returns the authenticated profile, or nil.
func (s *Session) Viewer() *model.Profile {
	return s.viewer
}

// Target returns the profile whose card is shown, or nil.
func (s *Session) Target() *model.Profile {
	return s.target
}

// IsOwner reports whether the logged-in viewer has the owner role.
func (s *Session) IsOwner() bool {
	return s.loggedIn && s.viewer.IsOwner()
}
