// Package bot provides the Telegram transport: bot initialization,
// middleware, event normalization and callback routing into the game
// engine.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"quiz-game-bot/internal/config"
	"quiz-game-bot/internal/game"
	"quiz-game-bot/internal/pkg/lock"
	"quiz-game-bot/internal/pkg/scheduler"
	"quiz-game-bot/internal/repository"
	"quiz-game-bot/internal/service"
	"quiz-game-bot/internal/state"
)

// Bot wraps the telebot instance with the game engine.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	machine *game.Machine
	stats   *service.StatsService
}

// Dependencies holds everything the bot needs.
type Dependencies struct {
	Config    *config.Config
	Quiz      *repository.QuizRepository
	Games     *repository.GameRepository
	Stats     *service.StatsService
	State     *state.Store
	Locks     *lock.ChatLock
	Scheduler *scheduler.Scheduler
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	messenger := NewMessenger(teleBot, deps.State, deps.Config.Flood.RetryInterval)
	machine := game.New(game.Options{
		Messenger:     messenger,
		Questions:     deps.Quiz,
		Ledger:        deps.Games,
		State:         deps.State,
		Locks:         deps.Locks,
		Scheduler:     deps.Scheduler,
		Game:          deps.Config.Game,
		FloodCooldown: deps.Config.Flood.Cooldown,
	})

	b := &Bot{
		bot:     teleBot,
		cfg:     deps.Config,
		machine: machine,
		stats:   deps.Stats,
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleInvite)
	b.bot.Handle(tele.OnAddedToGroup, b.handleInvite)
	b.bot.Handle("/stats", b.handleStats)
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleInvite greets a conversation: the bot was added to a group or
// someone issued /start.
func (b *Bot) handleInvite(c tele.Context) error {
	ev, ok := eventFrom(c)
	if !ok {
		return nil
	}
	if err := b.machine.Dispatch(context.Background(), ev, game.Payload{Action: game.ActionInvite}); err != nil {
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Invite failed")
	}
	return nil
}

// handleCallback decodes a button press and feeds it to the engine.
// Foreign or malformed callback data is answered silently so the button
// does not spin.
func (b *Bot) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}

	// Telebot may prefix callback data with \f.
	data := strings.TrimPrefix(cb.Data, "\f")
	payload, err := game.DecodePayload(data)
	if err != nil {
		log.Debug().Str("data", data).Msg("Ignoring foreign callback data")
		return c.Respond()
	}

	ev, ok := eventFrom(c)
	if !ok {
		return nil
	}
	if err := b.machine.Dispatch(context.Background(), ev, payload); err != nil {
		log.Error().Err(err).
			Int64("chat_id", ev.ChatID).
			Str("action", string(payload.Action)).
			Msg("Action failed")
	}
	return nil
}

// handleStats reports aggregated statistics over finished games.
func (b *Bot) handleStats(c tele.Context) error {
	stats, err := b.stats.Stats(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("Failed to aggregate stats")
		return c.Send("Statistics are unavailable right now.")
	}
	return c.Send(formatStats(stats))
}

// eventFrom normalizes a telebot context into an engine event.
func eventFrom(c tele.Context) (game.Event, bool) {
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return game.Event{}, false
	}

	ev := game.Event{
		ChatID:    chat.ID,
		UserID:    sender.ID,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
	}
	if cb := c.Callback(); cb != nil {
		ev.CallbackID = cb.ID
		if cb.Message != nil {
			ev.Message = game.MessageRef{ChatID: chat.ID, MessageID: cb.Message.ID}
		}
	}
	return ev, true
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
