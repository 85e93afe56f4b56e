// Package service ties the card's components together behind one
// visit-scoped API.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lunar-card/internal/apperr"
	"lunar-card/internal/flow"
	"lunar-card/internal/game"
	"lunar-card/internal/game/fortune"
	"lunar-card/internal/game/wheel"
	"lunar-card/internal/greeting"
	"lunar-card/internal/model"
	"lunar-card/internal/notify"
	"lunar-card/internal/pkg/lock"
	"lunar-card/internal/registry"
	"lunar-card/internal/session"
	"lunar-card/internal/unlock"
)

// Card service errors.
var (
	ErrVisitNotFound = fmt.Errorf("%w: visit not found or expired", apperr.ErrNotFound)
	ErrNotLoggedIn   = fmt.Errorf("%w: unlock a card first", apperr.ErrAuth)
	ErrEmptyMessage  = fmt.Errorf("%w: message is required", apperr.ErrValidation)
	ErrWishNotSaved  = fmt.Errorf("%w: the wish could not be saved, please try again", apperr.ErrPersistence)
	ErrNoRun         = fmt.Errorf("%w: the minigame is not open", apperr.ErrConflict)
)

const defaultLockTimeout = 10 * time.Second

// Gateway is the part of notify.Gateway the card service uses.
type Gateway interface {
	StartView(viewer, target *model.Profile, userAgent string) notify.ViewTicket
	StopView(t notify.ViewTicket)
	SendWish(ctx context.Context, req notify.WishRequest) notify.WishResult
}

// Options configures a CardService.
type Options struct {
	// Year is the greeting year of new visits.
	Year string
	// VisitTTL is how long an idle visit is kept.
	VisitTTL time.Duration
	// Random drives greeting rotation. Nil uses game.DefaultRandom.
	Random game.Random
}

// WishOutcome is the result of submitting a wish.
type WishOutcome struct {
	Saved    bool      `json:"saved"`
	Unlocked bool      `json:"unlocked"`
	Visit    *Snapshot `json:"visit"`
}

// FinishOutcome is the result of finishing the minigame.
type FinishOutcome struct {
	flow.FinishResult
	Visit *Snapshot `json:"visit"`
}

// CardService manages visits: login, greetings, wishes and the minigame.
type CardService struct {
	registry *registry.Registry
	ledger   *unlock.Ledger
	flow     *flow.Controller
	gateway  Gateway
	locks    *lock.KeyLock

	rnd     game.Random
	year    string
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	visits map[string]*visit
}

// NewCardService creates a new CardService instance.
func NewCardService(
	reg *registry.Registry,
	ledger *unlock.Ledger,
	controller *flow.Controller,
	gw Gateway,
	locks *lock.KeyLock,
	opts Options,
) *CardService {
	if opts.Random == nil {
		opts.Random = game.DefaultRandom
	}
	if opts.Year == "" {
		opts.Year = fmt.Sprint(time.Now().Year())
	}
	if opts.VisitTTL <= 0 {
		opts.VisitTTL = 6 * time.Hour
	}
	return &CardService{
		registry: reg,
		ledger:   ledger,
		flow:     controller,
		gateway:  gw,
		locks:    locks,
		rnd:      opts.Random,
		year:     opts.Year,
		ttl:      opts.VisitTTL,
		timeout:  defaultLockTimeout,
		now:      time.Now,
		visits:   make(map[string]*visit),
	}
}

// CreateVisit starts a new logged-out visit.
func (s *CardService) CreateVisit(userAgent string) *Snapshot {
	v := &visit{
		id:        uuid.NewString(),
		userAgent: userAgent,
		lastSeen:  s.now(),
		session:   session.New(),
		rotation:  greeting.NewRotation(s.rnd),
		year:      s.year,
	}

	s.mu.Lock()
	s.visits[v.id] = v
	s.mu.Unlock()

	log.Debug().Str("visit_id", v.id).Msg("Visit created")
	return v.snapshot()
}

// withVisit runs fn while holding the lock of visit id.
// lastSeen is only read and written under s.mu.
func (s *CardService) withVisit(ctx context.Context, id string, fn func(v *visit) error) error {
	v, ok := s.touch(id)
	if !ok {
		return ErrVisitNotFound
	}
	return s.locks.WithLock(ctx, id, s.timeout, func() error {
		return fn(v)
	})
}

// touch looks up a live visit and marks it as seen now.
func (s *CardService) touch(id string) (*visit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	v, ok := s.visits[id]
	if !ok || now.Sub(v.lastSeen) > s.ttl {
		return nil, false
	}
	v.lastSeen = now
	return v, true
}

// Snapshot returns the current state of a visit.
func (s *CardService) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.withVisit(ctx, id, func(v *visit) error {
		snap = v.snapshot()
		return nil
	})
	return snap, err
}

// EndVisit logs the visit out and forgets it.
func (s *CardService) EndVisit(ctx context.Context, id string) error {
	err := s.withVisit(ctx, id, func(v *visit) error {
		s.logout(v)
		return nil
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.visits, id)
	s.mu.Unlock()
	return nil
}

// Sweep drops visits idle for longer than the TTL and closes their view
// records. It returns the number of visits dropped.
func (s *CardService) Sweep() int {
	now := s.now()
	var expired []*visit

	s.mu.Lock()
	for id, v := range s.visits {
		if s.locks.IsLocked(id) {
			continue
		}
		if now.Sub(v.lastSeen) > s.ttl {
			expired = append(expired, v)
			delete(s.visits, id)
		}
	}
	s.mu.Unlock()

	for _, v := range expired {
		err := s.locks.WithLock(context.Background(), v.id, s.timeout, func() error {
			s.gateway.StopView(v.ticket)
			v.ticket = notify.ViewTicket{}
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("visit_id", v.id).Msg("Failed to close view of expired visit")
		}
	}
	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("Expired visits dropped")
	}
	return len(expired)
}

// RunJanitor sweeps expired visits every interval until ctx is done.
func (s *CardService) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// SearchProfiles lists the profiles matching query for the profile menu.
func (s *CardService) SearchProfiles(query string) []ProfileView {
	found := s.registry.Search(query)
	out := make([]ProfileView, 0, len(found))
	for i := range found {
		out = append(out, *newProfileView(&found[i]))
	}
	return out
}

// Hint returns the passphrase of the profile with key.
func (s *CardService) Hint(key string) (string, error) {
	return s.registry.Hint(strings.TrimSpace(key))
}

// Select stages the profile with key for unlocking.
func (s *CardService) Select(ctx context.Context, id, key string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.withVisit(ctx, id, func(v *visit) error {
		if _, err := v.session.Select(s.registry, key); err != nil {
			return err
		}
		snap = v.snapshot()
		return nil
	})
	return snap, err
}

// Unlock authenticates the staged profile with passphrase. On success the
// greeting is chosen, the view record starts and the unlock state refreshes.
func (s *CardService) Unlock(ctx context.Context, id, passphrase string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.withVisit(ctx, id, func(v *visit) error {
		previous := v.session.Viewer()
		if err := v.session.Authenticate(v.session.Candidate(), passphrase); err != nil {
			return err
		}

		viewer := v.session.Viewer()
		if previous == nil || previous.Key != viewer.Key {
			v.pending.Take()
		}
		s.flow.Exit(v.run)
		v.run = nil

		s.showTarget(ctx, v)
		log.Info().Str("visit_id", v.id).Str("viewer_key", viewer.Key).Msg("Card unlocked")
		snap = v.snapshot()
		return nil
	})
	return snap, err
}

// OwnerView lets an owner open the card of the profile with key.
func (s *CardService) OwnerView(ctx context.Context, id, key string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.withVisit(ctx, id, func(v *visit) error {
		if !v.session.LoggedIn() {
			return ErrNotLoggedIn
		}
		if !v.session.IsOwner() {
			return session.ErrNotOwner
		}
		target, err := s.registry.FindByKey(strings.TrimSpace(key))
		if err != nil {
			return err
		}
		if err := v.session.OverrideTarget(target); err != nil {
			return err
		}

		s.flow.Exit(v.run)
		v.run = nil
		s.showTarget(ctx, v)
		snap = v.snapshot()
		return nil
	})
	return snap, err
}

// showTarget runs the side effects of a new target: greeting, view record
// and unlock state.
func (s *CardService) showTarget(ctx context.Context, v *visit) {
	viewer, target := v.session.Viewer(), v.session.Target()

	v.greeting = v.rotation.Greet(target, v.year)

	s.gateway.StopView(v.ticket)
	v.ticket = s.gateway.StartView(viewer, target, v.userAgent)

	can, err := s.ledger.CanEnterMinigame(ctx, viewer)
	if err != nil {
		log.Warn().Err(err).Str("op", "refresh_unlock").Str("viewer_key", viewer.Key).Msg("Failed to read unlock state")
	}
	v.canEnter = can
}

// Logout resets the visit to logged out.
func (s *CardService) Logout(ctx context.Context, id string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.withVisit(ctx, id, func(v *visit) error {
		s.logout(v)
		snap = v.snapshot()
		return nil
	})
	return snap, err
}

func (s *CardService) logout(v *visit) {
	s.gateway.StopView(v.ticket)
	v.ticket = notify.ViewTicket{}
	v.rotation.Forget()
	v.session.Logout()
	s.flow.Exit(v.run)
	v.run = nil
	v.pending.Take()
	v.greeting = ""
	v.canEnter = false
}

// NextGreeting draws another greeting for the current target.
func (s *CardService) NextGreeting(ctx context.Context, id string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.withVisit(ctx, id, func(v *visit) error {
		if !v.session.LoggedIn() {
			return ErrNotLoggedIn
		}
		v.greeting = v.rotation.Next(v.session.Target(), v.year)
		snap = v.snapshot()
		return nil
	})
	return snap, err
}

// SetYear changes the greeting year. Non-digits are dropped, at most four
// digits are kept and empty input keeps the current year. The greeting
// on screen is not re-rendered; the next one uses the new year.
func (s *CardService) SetYear(ctx context.Context, id, input string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.withVisit(ctx, id, func(v *visit) error {
		v.year = greeting.NormalizeYear(input, v.year)
		snap = v.snapshot()
		return nil
	})
	return snap, err
}

// SubmitWish saves the viewer's wish without emailing it and keeps it
// pending for the end of the minigame. A saved wish unlocks the minigame
// for the viewer; an unsaved one never does.
// The message becomes pending before the save is attempted, so a wish whose
// save failed is still emailed by a later Finish.
func (s *CardService) SubmitWish(ctx context.Context, id, message string) (*WishOutcome, error) {
	var out *WishOutcome
	err := s.withVisit(ctx, id, func(v *visit) error {
		if !v.session.LoggedIn() {
			return ErrNotLoggedIn
		}
		msg := strings.TrimSpace(message)
		if msg == "" {
			return ErrEmptyMessage
		}

		viewer, target := v.session.Viewer(), v.session.Target()
		v.pending.Set(msg)

		res := s.gateway.SendWish(ctx, notify.WishRequest{
			ViewerKey:   viewer.Key,
			ViewerLabel: viewer.Label,
			TargetKey:   target.Key,
			TargetLabel: target.Label,
			Message:     msg,
			SendEmail:   false,
		})
		if !res.Saved {
			return ErrWishNotSaved
		}

		if err := s.ledger.Grant(ctx, viewer.Key); err != nil {
			log.Warn().Err(err).Str("op", "grant_unlock").Str("viewer_key", viewer.Key).Msg("Failed to grant unlock")
		}
		can, err := s.ledger.CanEnterMinigame(ctx, viewer)
		if err != nil {
			log.Warn().Err(err).Str("op", "refresh_unlock").Str("viewer_key", viewer.Key).Msg("Failed to read unlock state")
		}
		v.canEnter = can

		out = &WishOutcome{Saved: true, Unlocked: can, Visit: v.snapshot()}
		return nil
	})
	return out, err
}

// EnterLuck opens a fresh minigame run for the current target, provided
// the viewer may play.
func (s *CardService) EnterLuck(ctx context.Context, id string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.withVisit(ctx, id, func(v *visit) error {
		if !v.session.LoggedIn() {
			return ErrNotLoggedIn
		}
		viewer := v.session.Viewer()
		can, err := s.ledger.CanEnterMinigame(ctx, viewer)
		if err != nil {
			return fmt.Errorf("failed to check unlock state: %w", err)
		}
		v.canEnter = can
		if !can {
			return unlock.ErrLocked
		}

		s.flow.Exit(v.run)
		v.run = s.flow.Enter(ctx, viewer, v.session.Target())
		snap = v.snapshot()
		return nil
	})
	return snap, err
}

// withRun runs fn on the active run of visit id.
func (s *CardService) withRun(ctx context.Context, id string, fn func(v *visit) error) (*Snapshot, error) {
	var snap *Snapshot
	err := s.withVisit(ctx, id, func(v *visit) error {
		if !v.run.Active() {
			return ErrNoRun
		}
		if err := fn(v); err != nil {
			return err
		}
		snap = v.snapshot()
		return nil
	})
	return snap, err
}

// StartFlow leaves the minigame intro.
func (s *CardService) StartFlow(ctx context.Context, id string) (*Snapshot, error) {
	return s.withRun(ctx, id, func(v *visit) error {
		return s.flow.Start(v.run)
	})
}

// BackFlow returns to the previous minigame stage.
func (s *CardService) BackFlow(ctx context.Context, id string) (*Snapshot, error) {
	return s.withRun(ctx, id, func(v *visit) error {
		return s.flow.Back(v.run)
	})
}

// ConfirmBank confirms the bank info and moves on to the wheel.
func (s *CardService) ConfirmBank(ctx context.Context, id, bankName, bankAccount string) (*Snapshot, error) {
	return s.withRun(ctx, id, func(v *visit) error {
		return s.flow.ConfirmBank(ctx, v.run, bankName, bankAccount)
	})
}

// Spin spins the wheel.
func (s *CardService) Spin(ctx context.Context, id string) (*wheel.Spin, *Snapshot, error) {
	var spin *wheel.Spin
	snap, err := s.withRun(ctx, id, func(v *visit) error {
		var err error
		spin, err = s.flow.Spin(v.run)
		return err
	})
	return spin, snap, err
}

// NextFlow moves from the wheel to the envelope.
func (s *CardService) NextFlow(ctx context.Context, id string) (*Snapshot, error) {
	return s.withRun(ctx, id, func(v *visit) error {
		return s.flow.Next(v.run)
	})
}

// Shake opens the red envelope.
func (s *CardService) Shake(ctx context.Context, id string) (*fortune.Reveal, *Snapshot, error) {
	var reveal *fortune.Reveal
	snap, err := s.withRun(ctx, id, func(v *visit) error {
		var err error
		reveal, err = s.flow.Shake(v.run, v.year)
		return err
	})
	return reveal, snap, err
}

// Finish ends the minigame and emails the pending wish, if any.
func (s *CardService) Finish(ctx context.Context, id string) (*FinishOutcome, error) {
	var res flow.FinishResult
	snap, err := s.withRun(ctx, id, func(v *visit) error {
		var err error
		res, err = s.flow.Finish(ctx, v.run, v.session.Target(), &v.pending)
		if err != nil {
			return err
		}
		v.run = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &FinishOutcome{FinishResult: res, Visit: snap}, nil
}

// ExitFlow abandons the minigame.
func (s *CardService) ExitFlow(ctx context.Context, id string) (*Snapshot, error) {
	return s.withRun(ctx, id, func(v *visit) error {
		s.flow.Exit(v.run)
		v.run = nil
		return nil
	})
}
