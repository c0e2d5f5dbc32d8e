package game

import (
	"context"
	"fmt"
	"sync"

	tele "gopkg.in/telebot.v3"

	"quiz-game-bot/internal/model"
)

// renderedMessage is one message the fake messenger holds, mutated in
// place by edits like a real chat would be.
type renderedMessage struct {
	Ref    MessageRef
	Text   string
	Markup *tele.ReplyMarkup
}

// fakeMessenger records everything the engine renders. Safe for use from
// the round timeout goroutine.
type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int
	messages []renderedMessage
	deleted  []MessageRef
	notices  []string
	acks     int
}

func newFakeMessenger() *fakeMessenger { return &fakeMessenger{} }

func (f *fakeMessenger) Send(_ context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ref := MessageRef{ChatID: chatID, MessageID: f.nextID}
	f.messages = append(f.messages, renderedMessage{Ref: ref, Text: text, Markup: markup})
	return ref, nil
}

func (f *fakeMessenger) Edit(_ context.Context, ref MessageRef, text string, markup *tele.ReplyMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].Ref == ref {
			f.messages[i].Text = text
			f.messages[i].Markup = markup
			return nil
		}
	}
	return fmt.Errorf("edit of unknown message %+v", ref)
}

func (f *fakeMessenger) Delete(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeMessenger) Notify(_ context.Context, _ Event, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
	return nil
}

func (f *fakeMessenger) Ack(context.Context, Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

// last returns the most recently sent message.
func (f *fakeMessenger) last() renderedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return renderedMessage{}
	}
	return f.messages[len(f.messages)-1]
}

// lastWithMarkup returns the most recent message that still carries a
// keyboard.
func (f *fakeMessenger) lastWithMarkup() (renderedMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].Markup != nil {
			return f.messages[i], true
		}
	}
	return renderedMessage{}, false
}

func (f *fakeMessenger) lastNotice() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.notices) == 0 {
		return ""
	}
	return f.notices[len(f.notices)-1]
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = m.Text
	}
	return out
}

// fakeQuiz serves a fixed catalogue and tracks asked questions per game.
type fakeQuiz struct {
	mu       sync.Mutex
	themes   []model.Theme
	byTheme  map[int64][]model.Question
	asked    map[int64]map[int64]bool // gameID -> questionID
	outcomes map[int64]bool           // questionID -> answered

	failList error  // the next ListUnasked fails once with this
	failMark error  // the next MarkAsked fails once with this
	listHook func() // runs at the start of ListUnasked, outside the lock
}

func newFakeQuiz() *fakeQuiz {
	return &fakeQuiz{
		byTheme:  make(map[int64][]model.Question),
		asked:    make(map[int64]map[int64]bool),
		outcomes: make(map[int64]bool),
	}
}

func (f *fakeQuiz) addTheme(id int64, title string, questions ...model.Question) {
	f.themes = append(f.themes, model.Theme{ID: id, Title: title})
	f.byTheme[id] = questions
}

func (f *fakeQuiz) ListThemes(context.Context) ([]model.Theme, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Theme(nil), f.themes...), nil
}

func (f *fakeQuiz) ListUnasked(_ context.Context, gameID, themeID int64) ([]model.Question, error) {
	f.mu.Lock()
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		err := f.failList
		f.failList = nil
		return nil, err
	}
	var out []model.Question
	for _, q := range f.byTheme[themeID] {
		if !f.asked[gameID][q.ID] {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuiz) MarkAsked(_ context.Context, gameID, questionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMark != nil {
		err := f.failMark
		f.failMark = nil
		return err
	}
	if f.asked[gameID] == nil {
		f.asked[gameID] = make(map[int64]bool)
	}
	f.asked[gameID][questionID] = true
	return nil
}

func (f *fakeQuiz) SetOutcome(_ context.Context, _, questionID int64, answered bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[questionID] = answered
	return nil
}

func (f *fakeQuiz) outcome(questionID int64) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.outcomes[questionID]
	return v, ok
}

type scoreDelta struct {
	GameID int64
	UserID int64
	Delta  int
}

// fakeLedger keeps scores in memory the way the SQL repository would.
type fakeLedger struct {
	mu       sync.Mutex
	nextGame int64
	players  map[int64][]model.Player // gameID -> roster
	scores   map[int64]map[int64]*model.ScoreRow
	credits  []scoreDelta
	debits   []scoreDelta
	finished map[int64]bool
	chats    map[int64]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		players:  make(map[int64][]model.Player),
		scores:   make(map[int64]map[int64]*model.ScoreRow),
		finished: make(map[int64]bool),
		chats:    make(map[int64]bool),
	}
}

func (f *fakeLedger) RegisterChat(_ context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[chatID] = true
	return nil
}

func (f *fakeLedger) CreateGame(_ context.Context, _ int64, players []model.Player) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextGame++
	id := f.nextGame
	f.players[id] = append([]model.Player(nil), players...)
	f.scores[id] = make(map[int64]*model.ScoreRow)
	for _, p := range players {
		f.scores[id][p.ID] = &model.ScoreRow{UserID: p.ID, FirstName: p.FirstName, LastName: p.LastName}
	}
	return id, nil
}

func (f *fakeLedger) Credit(_ context.Context, gameID, userID int64, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.scores[gameID][userID]
	if !ok {
		return fmt.Errorf("no score row for game %d user %d", gameID, userID)
	}
	row.Score += delta
	row.Correct++
	f.credits = append(f.credits, scoreDelta{gameID, userID, delta})
	return nil
}

func (f *fakeLedger) Debit(_ context.Context, gameID, userID int64, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.scores[gameID][userID]
	if !ok {
		return fmt.Errorf("no score row for game %d user %d", gameID, userID)
	}
	row.Score -= delta
	row.Wrong++
	f.debits = append(f.debits, scoreDelta{gameID, userID, delta})
	return nil
}

func (f *fakeLedger) Scores(_ context.Context, gameID int64) ([]model.ScoreRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ScoreRow
	for _, p := range f.players[gameID] {
		out = append(out, *f.scores[gameID][p.ID])
	}
	return out, nil
}

func (f *fakeLedger) Finish(_ context.Context, gameID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[gameID] = true
	return nil
}

func (f *fakeLedger) StopAll(context.Context, int64) error { return nil }

func (f *fakeLedger) creditList() []scoreDelta {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scoreDelta(nil), f.credits...)
}

func (f *fakeLedger) debitList() []scoreDelta {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scoreDelta(nil), f.debits...)
}

func (f *fakeLedger) isFinished(gameID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished[gameID]
}
