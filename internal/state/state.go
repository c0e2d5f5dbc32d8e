// Package state implements the ephemeral per-conversation game state store.
//
// State is held in process memory only; the durable score ledger lives in
// PostgreSQL. Each conversation owns a single typed record that is created
// lazily on first write and survives across rounds and games until an
// explicit reset. There is no automatic expiry.
package state

import (
	"sync"
	"time"

	"quiz-game-bot/internal/model"
)

// Phase is the game state machine phase of one conversation.
type Phase string

// Phases, in rough lifecycle order. MainMenu is also reachable directly
// via reset. Finished is terminal.
const (
	PhaseNone              Phase = ""
	PhaseInvite            Phase = "invite"
	PhaseMainMenu          Phase = "main_menu"
	PhaseGameRules         Phase = "game_rules"
	PhaseBotInfo           Phase = "bot_info"
	PhaseJoining           Phase = "joining_users"
	PhaseChooseTheme       Phase = "choose_theme"
	PhaseChooseQuestion    Phase = "choose_question"
	PhaseSendQuestion      Phase = "send_question"
	PhaseCollectingAnswers Phase = "collecting_answers"
	PhaseShowAnswer        Phase = "show_answer"
	PhaseShowScoreboard    Phase = "show_scoreboard"
	PhaseConfirmStop       Phase = "confirm_stop"
	PhaseFinished          Phase = "finished"
)

// PriceTiers is the number of price slots per theme. Each slot is usable
// once per game.
const PriceTiers = 5

// chatState is the single typed record of one conversation. All fields are
// optional until set. In-flight round fields (question, correct, price,
// answered, roundTaskID) exist only between SendQuestion and ShowAnswer and
// are cleared together by ResetRound.
type chatState struct {
	mu          sync.RWMutex
	phase       Phase
	gameID      int64
	hasGameID   bool
	joined      []model.Player
	turnOwner   int64
	hasTurn     bool
	consumed    map[int64][PriceTiers]bool
	question    *model.Question
	correct     *model.Answer
	price       int
	hasPrice    bool
	answered    []int64
	lastText    string
	roundTaskID string
	floodSince  time.Time
	hasFlood    bool
}

// Store holds the ephemeral state of all conversations.
type Store struct {
	chats sync.Map // map[int64]*chatState
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) chat(chatID int64) *chatState {
	if v, ok := s.chats.Load(chatID); ok {
		return v.(*chatState)
	}
	v, _ := s.chats.LoadOrStore(chatID, &chatState{consumed: make(map[int64][PriceTiers]bool)})
	return v.(*chatState)
}

// Phase returns the conversation's current phase, PhaseNone if never set.
func (s *Store) Phase(chatID int64) Phase {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.phase
}

// SetPhase sets the conversation's phase. Callers must hold the
// conversation's status lock.
func (s *Store) SetPhase(chatID int64, p Phase) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.phase = p
}

// GameID returns the live game id, if any.
func (s *Store) GameID(chatID int64) (int64, bool) {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.gameID, cs.hasGameID
}

// SetGameID records the live game id.
func (s *Store) SetGameID(chatID, gameID int64) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.gameID = gameID
	cs.hasGameID = true
}

// JoinedUsers returns a copy of the pre-game roster in join order.
func (s *Store) JoinedUsers(chatID int64) []model.Player {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]model.Player, len(cs.joined))
	copy(out, cs.joined)
	return out
}

// SetJoinedUsers replaces the roster. Callers must hold the conversation's
// roster lock.
func (s *Store) SetJoinedUsers(chatID int64, users []model.Player) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.joined = users
}

// TurnOwner returns the user currently entitled to pick a theme/question.
func (s *Store) TurnOwner(chatID int64) (int64, bool) {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.turnOwner, cs.hasTurn
}

// SetTurnOwner records the turn owner. Callers must hold the conversation's
// status lock.
func (s *Store) SetTurnOwner(chatID, userID int64) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.turnOwner = userID
	cs.hasTurn = true
}

// PriceMatrix returns a copy of the theme price matrix: theme id to a
// consumed/open vector, one slot per price tier.
func (s *Store) PriceMatrix(chatID int64) map[int64][PriceTiers]bool {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[int64][PriceTiers]bool, len(cs.consumed))
	for k, v := range cs.consumed {
		out[k] = v
	}
	return out
}

// ConsumeSlot marks one (theme, price tier) slot consumed. Returns false if
// the slot was already consumed.
func (s *Store) ConsumeSlot(chatID, themeID int64, tier int) bool {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	slots := cs.consumed[themeID]
	if slots[tier] {
		return false
	}
	slots[tier] = true
	cs.consumed[themeID] = slots
	return true
}

// ReopenSlot reverts ConsumeSlot, making the (theme, price tier) slot
// pickable again. Used when the question draw behind a consumed slot
// fails before a question was shown.
func (s *Store) ReopenSlot(chatID, themeID int64, tier int) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	slots := cs.consumed[themeID]
	slots[tier] = false
	cs.consumed[themeID] = slots
}

// ExhaustTheme marks every slot of a theme consumed, removing it from
// future offers. Used when a theme runs out of questions early.
func (s *Store) ExhaustTheme(chatID, themeID int64) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	var all [PriceTiers]bool
	for i := range all {
		all[i] = true
	}
	cs.consumed[themeID] = all
}

// SetCurrentQuestion stores the round's question snapshot with its answers
// already shuffled for display, plus the correct answer and price.
func (s *Store) SetCurrentQuestion(chatID int64, q model.Question, correct model.Answer, price int) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.question = &q
	cs.correct = &correct
	cs.price = price
	cs.hasPrice = true
}

// CurrentQuestion returns the round's question snapshot, if a round is in
// flight.
func (s *Store) CurrentQuestion(chatID int64) (model.Question, bool) {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.question == nil {
		return model.Question{}, false
	}
	return *cs.question, true
}

// CurrentAnswer returns the round's correct answer, if a round is in flight.
func (s *Store) CurrentAnswer(chatID int64) (model.Answer, bool) {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.correct == nil {
		return model.Answer{}, false
	}
	return *cs.correct, true
}

// CurrentPrice returns the round's price. Absent outside a round; callers
// that read it between SendQuestion and ShowAnswer may treat absence as a
// state machine bug.
func (s *Store) CurrentPrice(chatID int64) (int, bool) {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.price, cs.hasPrice
}

// AnsweredUsers returns the ids of users who already answered this round.
func (s *Store) AnsweredUsers(chatID int64) []int64 {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]int64, len(cs.answered))
	copy(out, cs.answered)
	return out
}

// MarkAnswered appends a user to the answered list if absent. Returns false
// if the user had already answered this round. Callers must hold the
// conversation's status lock.
func (s *Store) MarkAnswered(chatID, userID int64) bool {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, id := range cs.answered {
		if id == userID {
			return false
		}
	}
	cs.answered = append(cs.answered, userID)
	return true
}

// LastText returns the last rendered message text.
func (s *Store) LastText(chatID int64) string {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.lastText
}

// SetLastText stores the last rendered message text.
func (s *Store) SetLastText(chatID int64, text string) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.lastText = text
}

// RoundTaskID returns the scheduler id of the round's timeout timer.
func (s *Store) RoundTaskID(chatID int64) string {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.roundTaskID
}

// SetRoundTaskID stores the scheduler id of the round's timeout timer.
func (s *Store) SetRoundTaskID(chatID int64, id string) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.roundTaskID = id
}

// ResetRound clears the in-flight round fields atomically. The price
// matrix, roster, turn owner and game id survive.
func (s *Store) ResetRound(chatID int64) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.resetRoundLocked()
}

func (cs *chatState) resetRoundLocked() {
	cs.question = nil
	cs.correct = nil
	cs.price = 0
	cs.hasPrice = false
	cs.answered = nil
	cs.roundTaskID = ""
}

// ResetToMenu wipes the conversation back to the main menu: every game
// field is cleared and the phase becomes PhaseMainMenu. The flood flag and
// last rendered text are deliberately kept.
func (s *Store) ResetToMenu(chatID int64) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.phase = PhaseMainMenu
	cs.gameID = 0
	cs.hasGameID = false
	cs.joined = nil
	cs.turnOwner = 0
	cs.hasTurn = false
	cs.consumed = make(map[int64][PriceTiers]bool)
	cs.resetRoundLocked()
}

// MarkFlood records that the platform reported a rate limit for this
// conversation, if not flagged already. Returns true when this call set the
// flag (the caller should notify the acting user exactly once).
func (s *Store) MarkFlood(chatID int64) bool {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.hasFlood {
		return false
	}
	cs.floodSince = time.Now()
	cs.hasFlood = true
	return true
}

// ClearFlood removes the flood flag after a successful send.
func (s *Store) ClearFlood(chatID int64) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.hasFlood = false
	cs.floodSince = time.Time{}
}

// SetFloodSince overrides the flood timestamp. Intended for tests.
func (s *Store) SetFloodSince(chatID int64, t time.Time) {
	cs := s.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.floodSince = t
	cs.hasFlood = true
}

// IsFlooded reports whether the conversation is currently gated by flood
// control. A flag older than the cooldown window counts as expired; the
// check is lazy, no background sweep clears the flag.
func (s *Store) IsFlooded(chatID int64, cooldown time.Duration) bool {
	cs := s.chat(chatID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if !cs.hasFlood {
		return false
	}
	return time.Since(cs.floodSince) < cooldown
}
