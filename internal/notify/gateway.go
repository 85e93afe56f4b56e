// Package notify records card activity and delivers the owner notifications.
//
// Telemetry and fortune recording are best effort: failures are logged and
// never reach the caller. Saving a wish reports its outcome, and the
// administrative listings are guarded by the admin context of package auth.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"lunar-card/internal/apperr"
	"lunar-card/internal/auth"
	"lunar-card/internal/mail"
	"lunar-card/internal/model"
)

// Gateway errors.
var (
	// ErrMissingID is returned when a delete names no record.
	ErrMissingID = fmt.Errorf("%w: missing record id", apperr.ErrValidation)

	// ErrUnknownKind is returned for record kinds other than views, wishes and fortunes.
	ErrUnknownKind = fmt.Errorf("%w: unknown record kind", apperr.ErrValidation)
)

// Store persists the card records.
type Store interface {
	CreateView(ctx context.Context, v *model.View) error
	CloseView(ctx context.Context, id string, endedAt time.Time, durationSec int64) error
	CreateWish(ctx context.Context, w *model.Wish) error
	CreateFortune(ctx context.Context, f *model.Fortune) error
	ListViews(ctx context.Context, ownerKey string, limit int) ([]*model.View, error)
	ListWishes(ctx context.Context, ownerKey string, limit int) ([]*model.Wish, error)
	ListFortunes(ctx context.Context, ownerKey string, limit int) ([]*model.Fortune, error)
	Delete(ctx context.Context, kind model.RecordKind, id string) error
}

// Mailer delivers the wish email.
type Mailer interface {
	SendWish(ctx context.Context, e mail.WishEmail) error
}

// OwnerNotifier pings the owner when a wish is emailed.
type OwnerNotifier interface {
	NotifyWish(ctx context.Context, w *model.Wish) error
}

// WishRequest is one wish to save and optionally email.
type WishRequest struct {
	ViewerKey     string
	ViewerLabel   string
	TargetKey     string
	TargetLabel   string
	Message       string
	FortuneAmount int64
	BankName      string
	BankAccount   string
	SendEmail     bool
}

// WishResult reports which steps of SendWish succeeded.
type WishResult struct {
	Saved   bool `json:"saved"`
	Emailed bool `json:"emailed"`
}

// FortuneRequest is one revealed fortune to record.
type FortuneRequest struct {
	ViewerKey   string
	ViewerLabel string
	Amount      int64
	BankName    string
	BankAccount string
}

// ViewTicket identifies an open view record.
type ViewTicket struct {
	ID        string
	StartedAt time.Time

	start *viewStart
}

// viewStart reports the outcome of the detached insert of a view.
// ok is written before done is closed.
type viewStart struct {
	done chan struct{}
	ok   bool
}

// Options configures optional collaborators of a Gateway.
type Options struct {
	OwnerKey string
	Mailer   Mailer
	Notifier OwnerNotifier
}

// Gateway is the single entry point for persistence and notifications.
type Gateway struct {
	store    Store
	tasks    *Tasks
	ownerKey string
	mailer   Mailer
	notifier OwnerNotifier
	now      func() time.Time
	newID    func() (string, error)
}

// NewGateway creates a Gateway. Detached work runs on tasks.
func NewGateway(store Store, tasks *Tasks, opts Options) *Gateway {
	return &Gateway{
		store:    store,
		tasks:    tasks,
		ownerKey: opts.OwnerKey,
		mailer:   opts.Mailer,
		notifier: opts.Notifier,
		now:      time.Now,
		newID:    func() (string, error) { return gonanoid.New() },
	}
}

// StartView opens a view record in the background and returns its ticket.
// A zero ticket means no record was started.
func (g *Gateway) StartView(viewer, target *model.Profile, userAgent string) ViewTicket {
	id, err := g.newID()
	if err != nil {
		log.Warn().Err(err).Str("op", "start_view").Msg("Failed to generate view id")
		return ViewTicket{}
	}
	v := &model.View{
		ID:        id,
		OwnerKey:  g.ownerKey,
		UserAgent: userAgent,
		StartedAt: g.now(),
	}
	if viewer != nil {
		v.ViewerKey, v.ViewerLabel = viewer.Key, viewer.Label
	}
	if target != nil {
		v.TargetKey, v.TargetLabel = target.Key, target.Label
	}

	start := &viewStart{done: make(chan struct{})}
	g.tasks.Go("start_view", func(ctx context.Context) {
		defer close(start.done)
		if err := g.store.CreateView(ctx, v); err != nil {
			log.Warn().Err(err).
				Str("op", "start_view").
				Str("viewer_key", v.ViewerKey).
				Str("target_key", v.TargetKey).
				Msg("Failed to record view")
			return
		}
		start.ok = true
	})
	return ViewTicket{ID: id, StartedAt: v.StartedAt, start: start}
}

// StopView closes the view record of t in the background. The close waits
// for the insert started by StartView and is skipped when that insert failed.
func (g *Gateway) StopView(t ViewTicket) {
	if t.ID == "" {
		return
	}
	ended := g.now()
	duration := int64(ended.Sub(t.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	g.tasks.Go("stop_view", func(ctx context.Context) {
		if t.start != nil {
			select {
			case <-t.start.done:
			case <-ctx.Done():
				log.Warn().Err(ctx.Err()).Str("op", "stop_view").Str("view_id", t.ID).Msg("Gave up waiting for view insert")
				return
			}
			if !t.start.ok {
				return
			}
		}
		if err := g.store.CloseView(ctx, t.ID, ended, duration); err != nil {
			log.Warn().Err(err).Str("op", "stop_view").Str("view_id", t.ID).Msg("Failed to close view")
		}
	})
}

// RecordFortune saves a revealed fortune and reports whether it was saved.
func (g *Gateway) RecordFortune(ctx context.Context, req FortuneRequest) bool {
	id, err := g.newID()
	if err == nil {
		err = g.store.CreateFortune(ctx, &model.Fortune{
			ID:          id,
			OwnerKey:    g.ownerKey,
			ViewerKey:   req.ViewerKey,
			ViewerLabel: req.ViewerLabel,
			Amount:      req.Amount,
			BankName:    req.BankName,
			BankAccount: req.BankAccount,
			CreatedAt:   g.now(),
		})
	}
	if err != nil {
		log.Warn().Err(err).
			Str("op", "record_fortune").
			Str("viewer_key", req.ViewerKey).
			Int64("amount", req.Amount).
			Msg("Failed to record fortune")
		return false
	}
	return true
}

// SendWish always tries to save the wish and, when requested, emails it.
// A failed save and a failed email are independent; neither is returned
// as an error.
func (g *Gateway) SendWish(ctx context.Context, req WishRequest) WishResult {
	var res WishResult
	w := &model.Wish{
		OwnerKey:      g.ownerKey,
		ViewerKey:     req.ViewerKey,
		ViewerLabel:   req.ViewerLabel,
		TargetKey:     req.TargetKey,
		TargetLabel:   req.TargetLabel,
		Message:       req.Message,
		FortuneAmount: req.FortuneAmount,
		BankName:      req.BankName,
		BankAccount:   req.BankAccount,
		CreatedAt:     g.now(),
	}

	id, err := g.newID()
	if err == nil {
		w.ID = id
		err = g.store.CreateWish(ctx, w)
	}
	if err != nil {
		log.Warn().Err(err).
			Str("op", "save_wish").
			Str("viewer_key", req.ViewerKey).
			Str("target_key", req.TargetKey).
			Msg("Failed to save wish")
	} else {
		res.Saved = true
	}

	if !req.SendEmail {
		return res
	}

	res.Emailed = g.email(ctx, w)
	if g.notifier != nil {
		g.tasks.Go("notify_owner", func(ctx context.Context) {
			if err := g.notifier.NotifyWish(ctx, w); err != nil {
				log.Warn().Err(err).Str("op", "notify_owner").Str("viewer_key", w.ViewerKey).Msg("Failed to notify owner")
			}
		})
	}
	return res
}

func (g *Gateway) email(ctx context.Context, w *model.Wish) bool {
	if g.mailer == nil {
		log.Warn().Str("op", "email_wish").Str("viewer_key", w.ViewerKey).Msg("Mailer disabled, wish not emailed")
		return false
	}

	target := w.TargetLabel
	if target == "" {
		target = w.TargetKey
	}
	err := g.mailer.SendWish(ctx, mail.WishEmail{
		FromName:      w.ViewerLabel,
		FromKey:       w.ViewerKey,
		CardTarget:    target,
		Time:          w.CreatedAt,
		Message:       w.Message,
		FortuneAmount: w.FortuneAmount,
		BankName:      w.BankName,
		BankAccount:   w.BankAccount,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("op", "email_wish").
			Str("viewer_key", w.ViewerKey).
			Str("target_key", w.TargetKey).
			Msg("Failed to email wish")
		return false
	}
	return true
}

// ListViews returns the latest views of the owner, newest first. Admin only.
func (g *Gateway) ListViews(ctx context.Context, n int) ([]*model.View, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	views, err := g.store.ListViews(ctx, g.ownerKey, model.ClampListN(n))
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	return views, nil
}

// ListWishes returns the latest wishes of the owner, newest first. Admin only.
func (g *Gateway) ListWishes(ctx context.Context, n int) ([]*model.Wish, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	wishes, err := g.store.ListWishes(ctx, g.ownerKey, model.ClampListN(n))
	if err != nil {
		return nil, fmt.Errorf("failed to list wishes: %w", err)
	}
	return wishes, nil
}

// ListFortunes returns the latest fortunes of the owner, newest first. Admin only.
func (g *Gateway) ListFortunes(ctx context.Context, n int) ([]*model.Fortune, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	fortunes, err := g.store.ListFortunes(ctx, g.ownerKey, model.ClampListN(n))
	if err != nil {
		return nil, fmt.Errorf("failed to list fortunes: %w", err)
	}
	return fortunes, nil
}

// Delete removes one record of kind. Admin only.
func (g *Gateway) Delete(ctx context.Context, kind model.RecordKind, id string) error {
	if err := auth.RequireAdmin(ctx); err != nil {
		return err
	}
	switch kind {
	case model.KindViews, model.KindWishes, model.KindFortunes:
	default:
		return ErrUnknownKind
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrMissingID
	}
	if err := g.store.Delete(ctx, kind, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	return nil
}
