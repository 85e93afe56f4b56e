// Package bot runs the owner's Telegram dashboard and delivers wish alerts.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"lunar-card/internal/apperr"
	"lunar-card/internal/config"
	"lunar-card/internal/handler"
	"lunar-card/internal/model"
)

// ErrNoRecipients is returned when a wish alert has no admin to go to.
var ErrNoRecipients = fmt.Errorf("%w: no telegram admins configured", apperr.ErrNotification)

// Bot wraps the telebot instance with the dashboard handlers.
type Bot struct {
	bot              *tele.Bot
	cfg              *config.Config
	dashboardHandler *handler.DashboardHandler
}

// New creates a new Bot. Handlers are registered by Mount.
func New(cfg *config.Config) (*Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{bot: teleBot, cfg: cfg}
	b.registerMiddleware()
	return b, nil
}

// Mount registers the dashboard handlers backed by records.
func (b *Bot) Mount(records handler.Records) {
	b.dashboardHandler = handler.NewDashboardHandler(records)
	b.registerHandlers()
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/start", b.dashboardHandler.HandleStart)
	adminGroup.Handle("/views", b.dashboardHandler.HandleViews)
	adminGroup.Handle("/wishes", b.dashboardHandler.HandleWishes)
	adminGroup.Handle("/fortunes", b.dashboardHandler.HandleFortunes)
	adminGroup.Handle("/del", b.dashboardHandler.HandleDelete)
	adminGroup.Handle(&tele.Btn{Unique: handler.CallbackDelete}, b.dashboardHandler.HandleDeleteCallback)
}

// NotifyWish sends a wish alert to every configured admin.
func (b *Bot) NotifyWish(ctx context.Context, w *model.Wish) error {
	if len(b.cfg.Admin.IDs) == 0 {
		return ErrNoRecipients
	}

	text := handler.FormatWishAlert(w)
	var errs []error
	for _, id := range b.cfg.Admin.IDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := b.bot.Send(&tele.User{ID: id}, text); err != nil {
			log.Warn().Err(err).Int64("admin_id", id).Msg("Failed to deliver wish alert")
			errs = append(errs, fmt.Errorf("admin %d: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", apperr.ErrNotification, errors.Join(errs...))
	}
	return nil
}

// Start starts the bot polling. It blocks until Stop.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
