package service

import (
	"time"

	"lunar-card/internal/flow"
	"lunar-card/internal/greeting"
	"lunar-card/internal/model"
	"lunar-card/internal/notify"
	"lunar-card/internal/registry"
	"lunar-card/internal/session"
)

// visit is the server-side state of one browsing context.
// Access is serialized by CardService's per-visit lock.
type visit struct {
	id        string
	userAgent string
	lastSeen  time.Time

	session  *session.Session
	rotation *greeting.Rotation
	year     string
	greeting string
	canEnter bool
	ticket   notify.ViewTicket
	run      *flow.Run
	pending  flow.Pending
}

// ProfileView is the public part of a profile.
type ProfileView struct {
	Key     string     `json:"key"`
	Label   string     `json:"label"`
	Role    model.Role `json:"role"`
	Avatars []string   `json:"avatars"`
}

func newProfileView(p *model.Profile) *ProfileView {
	if p == nil {
		return nil
	}
	return &ProfileView{
		Key:     p.Key,
		Label:   p.Label,
		Role:    p.Role,
		Avatars: registry.AvatarCandidates(p),
	}
}

// Snapshot is what a client needs to render a visit.
type Snapshot struct {
	VisitID     string       `json:"visitId"`
	LoggedIn    bool         `json:"loggedIn"`
	Candidate   *ProfileView `json:"candidate,omitempty"`
	Viewer      *ProfileView `json:"viewer,omitempty"`
	Target      *ProfileView `json:"target,omitempty"`
	IsOwner     bool         `json:"isOwner"`
	Greeting    string       `json:"greeting,omitempty"`
	Year        string       `json:"year"`
	CanEnter    bool         `json:"canEnterMinigame"`
	PendingWish bool         `json:"pendingWish"`
	Flow        *flow.Run    `json:"flow,omitempty"`
}

func (v *visit) snapshot() *Snapshot {
	s := &Snapshot{
		VisitID:     v.id,
		LoggedIn:    v.session.LoggedIn(),
		Candidate:   newProfileView(v.session.Candidate()),
		Viewer:      newProfileView(v.session.Viewer()),
		Target:      newProfileView(v.session.Target()),
		IsOwner:     v.session.IsOwner(),
		Greeting:    v.greeting,
		Year:        v.year,
		CanEnter:    v.canEnter,
		PendingWish: v.pending.Message() != "",
	}
	if v.run.Active() {
		run := *v.run
		s.Flow = &run
	}
	return s
}
