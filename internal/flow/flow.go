// Package flow drives the minigame: intro, bank info, wheel, fortune and finish.
//
// A Run holds the state of one pass through the stages. The Controller is
// stateless; every transition takes the Run it acts on. Runs are not safe
// for concurrent use, callers serialize transitions per visit.
package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lunar-card/internal/apperr"
	"lunar-card/internal/game/fortune"
	"lunar-card/internal/game/wheel"
	"lunar-card/internal/identity"
	"lunar-card/internal/model"
	"lunar-card/internal/notify"
)

// Stage is a step of the minigame.
type Stage string

// Stages in order. StageExited means the run is over.
const (
	StageIntro   Stage = "intro"
	StageBank    Stage = "bank"
	StageWheel   Stage = "wheel"
	StageFortune Stage = "fortune"
	StageExited  Stage = "exited"
)

// Flow errors.
var (
	// ErrWrongStage is returned when a transition is attempted from another stage.
	ErrWrongStage = fmt.Errorf("%w: not available at this stage", apperr.ErrConflict)

	// ErrBankInfoRequired is returned when the bank name or account is blank.
	ErrBankInfoRequired = fmt.Errorf("%w: bank name and account number are required", apperr.ErrValidation)

	// ErrSpinUsed is returned when a non-exempt player spins a second time.
	ErrSpinUsed = fmt.Errorf("%w: the wheel has already been spun", apperr.ErrConflict)

	// ErrNotSpun is returned when leaving the wheel before spinning it.
	ErrNotSpun = fmt.Errorf("%w: spin the wheel first", apperr.ErrConflict)

	// ErrNotRevealed is returned when finishing before the envelope is shaken.
	ErrNotRevealed = fmt.Errorf("%w: shake the envelope first", apperr.ErrConflict)
)

// BankStore persists the bank info of each profile.
type BankStore interface {
	LoadBank(ctx context.Context, profileKey string) (*model.BankInfo, error)
	SaveBank(ctx context.Context, profileKey string, info model.BankInfo) error
}

// Gateway is the part of notify.Gateway the flow uses.
type Gateway interface {
	RecordFortune(ctx context.Context, req notify.FortuneRequest) bool
	SendWish(ctx context.Context, req notify.WishRequest) notify.WishResult
}

// Detacher runs best-effort work in the background.
type Detacher interface {
	Go(op string, fn func(ctx context.Context))
}

// Pending is the wish message waiting to be emailed when a run finishes.
type Pending struct {
	message string
}

// Set replaces the pending message.
func (p *Pending) Set(message string) {
	p.message = strings.TrimSpace(message)
}

// Take returns the pending message and clears it.
func (p *Pending) Take() string {
	m := p.message
	p.message = ""
	return m
}

// Message returns the pending message without clearing it.
func (p *Pending) Message() string {
	return p.message
}

// Run is the state of one minigame run.
type Run struct {
	Stage         Stage           `json:"stage"`
	Viewer        *model.Profile  `json:"-"`
	Person        *model.Profile  `json:"-"`
	Bank          model.BankInfo  `json:"bank"`
	BankConfirmed bool            `json:"bankConfirmed"`
	WheelSpins    int             `json:"wheelSpins"`
	LastSpin      *wheel.Spin     `json:"lastSpin,omitempty"`
	FortuneDone   bool            `json:"fortuneDone"`
	Reveal        *fortune.Reveal `json:"reveal,omitempty"`
	RevealedAt    time.Time       `json:"revealedAt,omitzero"`
	CanRespin     bool            `json:"canRespin"`
}

// Active reports whether the run has not exited.
func (r *Run) Active() bool {
	return r != nil && r.Stage != StageExited
}

// Outcome returns the outcome of the last spin, or "" before any spin.
func (r *Run) Outcome() wheel.Outcome {
	if r.LastSpin == nil {
		return ""
	}
	return r.LastSpin.Outcome
}

// FinishResult reports what finishing a run sent.
type FinishResult struct {
	Sent    bool `json:"sent"`
	Saved   bool `json:"saved"`
	Emailed bool `json:"emailed"`
}

// Controller performs the stage transitions.
type Controller struct {
	wheel    *wheel.Wheel
	envelope *fortune.Envelope
	matcher  *identity.Matcher
	banks    BankStore
	gateway  Gateway
	tasks    Detacher
	now      func() time.Time
}

// NewController creates a Controller.
func NewController(w *wheel.Wheel, e *fortune.Envelope, m *identity.Matcher, banks BankStore, gw Gateway, tasks Detacher) *Controller {
	return &Controller{
		wheel:    w,
		envelope: e,
		matcher:  m,
		banks:    banks,
		gateway:  gw,
		tasks:    tasks,
		now:      time.Now,
	}
}

// Enter starts a fresh run for person, watched by viewer. Bank info
// remembered for person is pre-filled but not confirmed.
func (c *Controller) Enter(ctx context.Context, viewer, person *model.Profile) *Run {
	run := &Run{
		Stage:     StageIntro,
		Viewer:    viewer,
		Person:    person,
		CanRespin: c.matcher.CanRepeat(viewer),
	}
	if person == nil {
		return run
	}
	info, err := c.banks.LoadBank(ctx, person.Key)
	if err != nil {
		log.Warn().Err(err).Str("op", "load_bank").Str("target_key", person.Key).Msg("Failed to load bank info")
	} else if info != nil {
		run.Bank = *info
	}
	return run
}

// Start leaves the intro for the bank info stage.
func (c *Controller) Start(run *Run) error {
	if run.Stage != StageIntro {
		return ErrWrongStage
	}
	run.Stage = StageBank
	return nil
}

// Back returns to the previous stage. The wheel result and the fortune
// reveal survive going back.
func (c *Controller) Back(run *Run) error {
	switch run.Stage {
	case StageBank:
		run.Stage = StageIntro
	case StageWheel:
		run.Stage = StageBank
	case StageFortune:
		run.Stage = StageWheel
	default:
		return ErrWrongStage
	}
	return nil
}

// ConfirmBank validates and remembers the bank info, then moves to the wheel.
// On a validation error the stage is unchanged.
func (c *Controller) ConfirmBank(ctx context.Context, run *Run, bankName, bankAccount string) error {
	if run.Stage != StageBank {
		return ErrWrongStage
	}
	info := model.BankInfo{
		BankName:    strings.TrimSpace(bankName),
		BankAccount: strings.TrimSpace(bankAccount),
	}
	if info.BankName == "" || info.BankAccount == "" {
		return ErrBankInfoRequired
	}

	if run.Person != nil {
		if err := c.banks.SaveBank(ctx, run.Person.Key, info); err != nil {
			log.Warn().Err(err).Str("op", "save_bank").Str("target_key", run.Person.Key).Msg("Failed to save bank info")
		}
	}
	run.Bank = info
	run.BankConfirmed = true
	run.Stage = StageWheel
	return nil
}

// Spin spins the wheel for the run's person. Only the owner and the exempt
// identity may spin more than once per run.
func (c *Controller) Spin(run *Run) (*wheel.Spin, error) {
	if run.Stage != StageWheel {
		return nil, ErrWrongStage
	}
	if run.WheelSpins > 0 && !run.CanRespin {
		return nil, ErrSpinUsed
	}
	spin := c.wheel.Spin(run.Person)
	run.WheelSpins++
	run.LastSpin = &spin
	return &spin, nil
}

// Next moves from a spun wheel to the fortune stage.
func (c *Controller) Next(run *Run) error {
	if run.Stage != StageWheel {
		return ErrWrongStage
	}
	if run.WheelSpins == 0 {
		return ErrNotSpun
	}
	run.Stage = StageFortune
	return nil
}

// Shake opens the envelope. Shaking again in the same run returns the first
// reveal and records nothing. The fortune is recorded in the background.
func (c *Controller) Shake(run *Run, year string) (*fortune.Reveal, error) {
	if run.Stage != StageFortune {
		return nil, ErrWrongStage
	}
	if run.FortuneDone {
		return run.Reveal, nil
	}

	reveal := c.envelope.Open(run.Person, year)
	run.Reveal = &reveal
	run.RevealedAt = c.now()
	run.FortuneDone = true

	req := notify.FortuneRequest{
		Amount:      reveal.Amount,
		BankName:    run.Bank.BankName,
		BankAccount: run.Bank.BankAccount,
	}
	if run.Person != nil {
		req.ViewerKey = run.Person.Key
		req.ViewerLabel = run.Person.Label
		if req.ViewerLabel == "" {
			req.ViewerLabel = run.Person.Key
		}
	}
	c.tasks.Go("record_fortune", func(ctx context.Context) {
		c.gateway.RecordFortune(ctx, req)
	})
	return &reveal, nil
}

// Finish ends a revealed run. A pending wish is emailed together with the
// reward and bank info, and is cleared whatever the delivery outcome so a
// second finish cannot email again. Before the reveal nothing changes.
func (c *Controller) Finish(ctx context.Context, run *Run, target *model.Profile, pending *Pending) (FinishResult, error) {
	if run.Stage != StageFortune {
		return FinishResult{}, ErrWrongStage
	}
	if !run.FortuneDone {
		return FinishResult{}, ErrNotRevealed
	}

	var res FinishResult
	if msg := pending.Take(); msg != "" {
		req := notify.WishRequest{
			Message:     msg,
			BankName:    run.Bank.BankName,
			BankAccount: run.Bank.BankAccount,
			SendEmail:   true,
		}
		if run.Reveal != nil {
			req.FortuneAmount = run.Reveal.Amount
		}
		if run.Viewer != nil {
			req.ViewerKey, req.ViewerLabel = run.Viewer.Key, run.Viewer.Label
		}
		if target != nil {
			req.TargetKey, req.TargetLabel = target.Key, target.Label
		}
		wr := c.gateway.SendWish(ctx, req)
		res = FinishResult{Sent: true, Saved: wr.Saved, Emailed: wr.Emailed}
	}

	run.Stage = StageExited
	return res, nil
}

// Exit abandons the run without sending anything.
func (c *Controller) Exit(run *Run) {
	if run != nil {
		run.Stage = StageExited
	}
}
