package game

import (
	"context"

	tele "gopkg.in/telebot.v3"

	"quiz-game-bot/internal/model"
)

// MessageRef identifies a message the bot rendered into a conversation.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Event is a platform event normalized for the engine: either a callback
// press on one of the bot's keyboards, or a text/invite event.
type Event struct {
	ChatID    int64
	UserID    int64
	FirstName string
	LastName  string
	// Message is the message carrying the pressed keyboard. Zero for
	// text and invite events.
	Message MessageRef
	// CallbackID is the platform callback id used for ephemeral notices.
	// Empty for text and invite events.
	CallbackID string
}

// IsCallback reports whether the event came from a keyboard press.
func (e Event) IsCallback() bool { return e.CallbackID != "" }

// Messenger renders the game into a conversation. The production
// implementation wraps the Telegram transport with flood control; tests
// use an in-memory fake.
type Messenger interface {
	// Send posts a new message and returns a reference to it.
	Send(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (MessageRef, error)
	// Edit replaces the text and keyboard of an existing message.
	// A nil markup drops the keyboard.
	Edit(ctx context.Context, ref MessageRef, text string, markup *tele.ReplyMarkup) error
	// Delete removes a message.
	Delete(ctx context.Context, ref MessageRef) error
	// Notify shows an ephemeral notice to the acting user. For callback
	// events this is a snackbar; for other events it is a no-op.
	Notify(ctx context.Context, ev Event, text string) error
	// Ack closes the callback's progress indicator without a notice.
	Ack(ctx context.Context, ev Event) error
}

// QuestionSource supplies themes and per-game unasked questions, and
// records round outcomes. Implemented by repository.QuizRepository.
type QuestionSource interface {
	ListThemes(ctx context.Context) ([]model.Theme, error)
	ListUnasked(ctx context.Context, gameID, themeID int64) ([]model.Question, error)
	MarkAsked(ctx context.Context, gameID, questionID int64) error
	SetOutcome(ctx context.Context, gameID, questionID int64, answered bool) error
}

// ScoreLedger is the durable game and score store. Implemented by
// repository.GameRepository.
type ScoreLedger interface {
	RegisterChat(ctx context.Context, chatID int64) error
	CreateGame(ctx context.Context, chatID int64, players []model.Player) (int64, error)
	Credit(ctx context.Context, gameID, userID int64, delta int) error
	Debit(ctx context.Context, gameID, userID int64, delta int) error
	Scores(ctx context.Context, gameID int64) ([]model.ScoreRow, error)
	Finish(ctx context.Context, gameID int64) error
	StopAll(ctx context.Context, chatID int64) error
}

type eventCtxKey struct{}

// WithEvent attaches the triggering event to a context so the transport
// layer can reach the callback for flood notices raised mid-send.
func WithEvent(ctx context.Context, ev Event) context.Context {
	return context.WithValue(ctx, eventCtxKey{}, ev)
}

// EventFromContext returns the event attached by WithEvent.
func EventFromContext(ctx context.Context) (Event, bool) {
	ev, ok := ctx.Value(eventCtxKey{}).(Event)
	return ev, ok
}
