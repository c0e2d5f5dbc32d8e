package bot

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"quiz-game-bot/internal/game"
	"quiz-game-bot/internal/state"
)

// Telegram is the slice of the telebot API the messenger drives.
// *tele.Bot implements it; tests substitute a scripted one.
type Telegram interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// Messenger renders game screens through the Telegram API with flood
// handling: a rate-limited send or edit is retried until it goes through,
// while the conversation's flood flag gates further game events. The
// first rate limit of a burst answers the triggering callback with an
// apology so the press does not look ignored.
type Messenger struct {
	bot   Telegram
	st    *state.Store
	retry time.Duration
}

// NewMessenger creates a Messenger. retry is the minimum sleep between
// attempts; Telegram's own retry_after wins when it is longer.
func NewMessenger(bot Telegram, st *state.Store, retry time.Duration) *Messenger {
	return &Messenger{bot: bot, st: st, retry: retry}
}

// Send posts a message, retrying through rate limits.
func (m *Messenger) Send(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (game.MessageRef, error) {
	var msg *tele.Message
	err := m.withFloodRetry(ctx, chatID, func() error {
		var err error
		if markup != nil {
			msg, err = m.bot.Send(tele.ChatID(chatID), text, markup)
		} else {
			msg, err = m.bot.Send(tele.ChatID(chatID), text)
		}
		return err
	})
	if err != nil {
		return game.MessageRef{}, err
	}
	return game.MessageRef{ChatID: chatID, MessageID: msg.ID}, nil
}

// Edit replaces a message's text and keyboard, retrying through rate
// limits. A nil markup drops the keyboard.
func (m *Messenger) Edit(ctx context.Context, ref game.MessageRef, text string, markup *tele.ReplyMarkup) error {
	return m.withFloodRetry(ctx, ref.ChatID, func() error {
		var err error
		if markup != nil {
			_, err = m.bot.Edit(editable(ref), text, markup)
		} else {
			_, err = m.bot.Edit(editable(ref), text)
		}
		// The engine occasionally re-renders an unchanged screen;
		// Telegram reports that as an error, the chat looks right.
		if err != nil && errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
		return err
	})
}

// Delete removes a message.
func (m *Messenger) Delete(ctx context.Context, ref game.MessageRef) error {
	return m.withFloodRetry(ctx, ref.ChatID, func() error {
		return m.bot.Delete(editable(ref))
	})
}

// Notify answers a callback with an ephemeral snackbar. Events without a
// callback get nothing.
func (m *Messenger) Notify(_ context.Context, ev game.Event, text string) error {
	if !ev.IsCallback() {
		return nil
	}
	return m.bot.Respond(&tele.Callback{ID: ev.CallbackID}, &tele.CallbackResponse{Text: text})
}

// Ack closes a callback's progress indicator.
func (m *Messenger) Ack(_ context.Context, ev game.Event) error {
	if !ev.IsCallback() {
		return nil
	}
	return m.bot.Respond(&tele.Callback{ID: ev.CallbackID})
}

// withFloodRetry runs op, retrying for as long as Telegram reports a rate
// limit. The first rate limit marks the conversation flooded (gating
// further game events) and answers the triggering callback, carried in
// the context, exactly once. Success clears the flag.
func (m *Messenger) withFloodRetry(ctx context.Context, chatID int64, op func() error) error {
	for {
		err := op()
		if err == nil {
			m.st.ClearFlood(chatID)
			return nil
		}

		var flood tele.FloodError
		if !errors.As(err, &flood) {
			return err
		}

		if m.st.MarkFlood(chatID) {
			if ev, ok := game.EventFromContext(ctx); ok {
				if respErr := m.Notify(ctx, ev, game.NoticeFlood); respErr != nil {
					log.Warn().Err(respErr).Int64("chat_id", chatID).Msg("Failed to answer flooded callback")
				}
			}
		}

		wait := m.retry
		if after := time.Duration(flood.RetryAfter) * time.Second; after > wait {
			wait = after
		}
		log.Warn().Int64("chat_id", chatID).Dur("wait", wait).Msg("Rate limited, retrying")

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// editable adapts a MessageRef to telebot's Editable.
func editable(ref game.MessageRef) tele.Editable {
	return &tele.StoredMessage{
		MessageID: strconv.Itoa(ref.MessageID),
		ChatID:    ref.ChatID,
	}
}
