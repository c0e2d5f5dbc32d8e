package game

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/rs/zerolog/log"

	"quiz-game-bot/internal/config"
	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/pkg/lock"
	"quiz-game-bot/internal/pkg/scheduler"
	"quiz-game-bot/internal/state"
)

// Machine is the per-conversation game state machine. One instance serves
// all conversations; isolation comes from per-conversation locks and the
// per-conversation state records.
//
// Every phase transition is a check-and-set under the conversation's
// status lock; rendering and persistence happen outside the lock. Stale
// callbacks (an old game id, a wrong phase, a user out of turn) are
// answered with an ephemeral notice and change nothing.
type Machine struct {
	msgr   Messenger
	quiz   QuestionSource
	ledger ScoreLedger
	st     *state.Store
	locks  *lock.ChatLock
	sched  *scheduler.Scheduler
	pick   *picker

	game          config.GameConfig
	floodCooldown time.Duration
}

// Options configures a Machine.
type Options struct {
	Messenger Messenger
	Questions QuestionSource
	Ledger    ScoreLedger
	State     *state.Store
	Locks     *lock.ChatLock
	Scheduler *scheduler.Scheduler
	Game      config.GameConfig
	// FloodCooldown gates all events of a conversation after a reported
	// rate limit.
	FloodCooldown time.Duration
	// Rand overrides the random source. Nil gets a time-seeded one.
	Rand *rand.Rand
}

// New creates a Machine.
func New(opts Options) *Machine {
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Machine{
		msgr:          opts.Messenger,
		quiz:          opts.Questions,
		ledger:        opts.Ledger,
		st:            opts.State,
		locks:         opts.Locks,
		sched:         opts.Scheduler,
		pick:          newPicker(rnd),
		game:          opts.Game,
		floodCooldown: opts.FloodCooldown,
	}
}

// Dispatch routes one normalized event through the state machine. Events
// of conversations under flood cooldown are dropped; callbacks among them
// get a notice so the press does not spin forever.
func (m *Machine) Dispatch(ctx context.Context, ev Event, p Payload) error {
	ctx = WithEvent(ctx, ev)

	if m.st.IsFlooded(ev.ChatID, m.floodCooldown) {
		if ev.IsCallback() {
			return m.msgr.Notify(ctx, ev, NoticeFlood)
		}
		return nil
	}

	switch p.Action {
	case ActionInvite:
		return m.handleInvite(ctx, ev)
	case ActionMainMenu:
		return m.handleMainMenu(ctx, ev, p)
	case ActionGameRules:
		return m.handleInfoScreen(ctx, ev, state.PhaseGameRules, textRules)
	case ActionBotInfo:
		return m.handleInfoScreen(ctx, ev, state.PhaseBotInfo, textAbout)
	case ActionCreateNewGame:
		return m.handleCreateNewGame(ctx, ev)
	case ActionJoinUsers:
		return m.handleJoinUsers(ctx, ev)
	case ActionStartGame:
		return m.handleStartGame(ctx, ev)
	case ActionChooseTheme:
		return m.handleChooseTheme(ctx, ev, p)
	case ActionChooseQuest:
		return m.handleChooseQuestion(ctx, ev, p)
	case ActionSendQuestion:
		return m.handleSendQuestion(ctx, ev, p)
	case ActionGetAnswer:
		return m.handleGetAnswer(ctx, ev, p)
	case ActionScoreboard:
		return m.handleScoreboard(ctx, ev, p)
	case ActionConfirmStop:
		return m.handleConfirmStop(ctx, ev, p)
	case ActionStopGame:
		return m.handleStopGame(ctx, ev, p)
	default:
		return fmt.Errorf("%w: unroutable action %q", ErrBadPayload, p.Action)
	}
}

// send posts a message and remembers its text as the conversation's last
// rendered screen.
func (m *Machine) send(ctx context.Context, chatID int64, text string, kb *tele.ReplyMarkup) (MessageRef, error) {
	ref, err := m.msgr.Send(ctx, chatID, text, kb)
	if err != nil {
		return MessageRef{}, err
	}
	m.st.SetLastText(chatID, text)
	return ref, nil
}

// edit replaces a message and remembers its new text.
func (m *Machine) edit(ctx context.Context, ref MessageRef, text string, kb *tele.ReplyMarkup) error {
	if err := m.msgr.Edit(ctx, ref, text, kb); err != nil {
		return err
	}
	m.st.SetLastText(ref.ChatID, text)
	return nil
}

// render shows a screen. With fresh set, the previous keyboard is detached
// first (the old message is edited down to its bare text) and the screen
// goes out as a new message; otherwise the triggering message is edited in
// place. Events without a message always produce a new message.
func (m *Machine) render(ctx context.Context, ev Event, text string, kb *tele.ReplyMarkup, fresh bool) error {
	if ev.Message.MessageID == 0 {
		_, err := m.send(ctx, ev.ChatID, text, kb)
		return err
	}
	if !fresh {
		return m.edit(ctx, ev.Message, text, kb)
	}
	if prev := m.st.LastText(ev.ChatID); prev != "" {
		if err := m.msgr.Edit(ctx, ev.Message, prev, nil); err != nil {
			log.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to detach old keyboard")
		}
	}
	_, err := m.send(ctx, ev.ChatID, text, kb)
	return err
}

// gameMatches reports whether a callback belongs to the conversation's
// live game. Callbacks of finished or replaced games are stale.
func (m *Machine) gameMatches(ev Event, gameID int64) bool {
	cur, ok := m.st.GameID(ev.ChatID)
	return ok && cur == gameID
}

// ownsTurn reports whether the acting user holds the pick turn.
func (m *Machine) ownsTurn(ev Event) bool {
	owner, ok := m.st.TurnOwner(ev.ChatID)
	return ok && owner == ev.UserID
}

// turnOwnerName resolves the turn owner's display name from the roster.
func (m *Machine) turnOwnerName(chatID int64) string {
	owner, ok := m.st.TurnOwner(chatID)
	if !ok {
		return "player"
	}
	for _, p := range m.st.JoinedUsers(chatID) {
		if p.ID == owner {
			return p.Name()
		}
	}
	return "player"
}

// revertPhase undoes a handler's own transition after a failed side
// effect, so the user's next press can retry the step. The rollback only
// applies while the conversation still sits in the phase the handler set;
// a concurrent transition (a menu reset, the round timer) wins and stays.
func (m *Machine) revertPhase(chatID int64, from, to state.Phase) {
	_ = m.locks.WithStatus(chatID, func() error {
		if m.st.Phase(chatID) == from {
			m.st.SetPhase(chatID, to)
		}
		return nil
	})
}

// pause sleeps for the stage delay unless the context ends first.
func (m *Machine) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// handleInvite greets a conversation the bot was invited into (or that
// issued /start) and registers it in the ledger. Repeated invites while
// the greeting is already up are ignored.
func (m *Machine) handleInvite(ctx context.Context, ev Event) error {
	var already bool
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) == state.PhaseInvite {
			already = true
			return nil
		}
		m.st.SetPhase(ev.ChatID, state.PhaseInvite)
		return nil
	})
	if already {
		return nil
	}

	if err := m.ledger.RegisterChat(ctx, ev.ChatID); err != nil {
		return fmt.Errorf("failed to register chat %d: %w", ev.ChatID, err)
	}
	_, err := m.send(ctx, ev.ChatID, textInvite, inviteKeyboard())
	return err
}

// handleMainMenu resets the conversation to the main menu: ephemeral game
// state is wiped and any unfinished games are stopped in the ledger.
func (m *Machine) handleMainMenu(ctx context.Context, ev Event, p Payload) error {
	var already bool
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) == state.PhaseMainMenu {
			already = true
			return nil
		}
		m.st.ResetToMenu(ev.ChatID)
		return nil
	})
	if already {
		return m.msgr.Ack(ctx, ev)
	}

	if err := m.ledger.StopAll(ctx, ev.ChatID); err != nil {
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to stop games on menu reset")
		return m.msgr.Notify(ctx, ev, noticeTryAgain)
	}
	return m.render(ctx, ev, textMainMenu, mainMenuKeyboard(), p.New)
}

// handleInfoScreen shows the rules or about screen with a back button.
func (m *Machine) handleInfoScreen(ctx context.Context, ev Event, phase state.Phase, text string) error {
	var already bool
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) == phase {
			already = true
			return nil
		}
		m.st.SetPhase(ev.ChatID, phase)
		return nil
	})
	if already {
		return m.msgr.Ack(ctx, ev)
	}
	return m.render(ctx, ev, text, backKeyboard(), false)
}

// handleCreateNewGame opens the joining screen.
func (m *Machine) handleCreateNewGame(ctx context.Context, ev Event) error {
	var notice string
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) != state.PhaseMainMenu {
			notice = noticeGameStarted
			return nil
		}
		m.st.SetPhase(ev.ChatID, state.PhaseJoining)
		return nil
	})
	if notice != "" {
		return m.msgr.Notify(ctx, ev, notice)
	}
	return m.render(ctx, ev, textRoster(nil), joinKeyboard(), false)
}

// handleJoinUsers adds the acting user to the pre-game roster. The first
// join wins; later presses by the same user only get a notice. The roster
// is guarded by its own lock so concurrent joins serialize without
// blocking phase transitions.
func (m *Machine) handleJoinUsers(ctx context.Context, ev Event) error {
	var notice string
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) != state.PhaseJoining {
			notice = noticeGameStarted
		}
		return nil
	})
	if notice != "" {
		return m.msgr.Notify(ctx, ev, notice)
	}

	var roster []model.Player
	_ = m.locks.WithRoster(ev.ChatID, func() error {
		roster = m.st.JoinedUsers(ev.ChatID)
		for _, p := range roster {
			if p.ID == ev.UserID {
				notice = noticeAlreadyJoined
				return nil
			}
		}
		roster = append(roster, model.Player{
			ID:        ev.UserID,
			FirstName: ev.FirstName,
			LastName:  ev.LastName,
		})
		m.st.SetJoinedUsers(ev.ChatID, roster)
		return nil
	})
	if notice != "" {
		return m.msgr.Notify(ctx, ev, notice)
	}
	return m.render(ctx, ev, textRoster(roster), joinKeyboard(), false)
}

// handleStartGame freezes the roster, creates the durable game with zero
// score rows, and hands the first pick to the user who pressed Start.
// Only a joined user may start.
func (m *Machine) handleStartGame(ctx context.Context, ev Event) error {
	var notice string
	var players []model.Player
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) != state.PhaseJoining {
			notice = noticeGameStarted
			return nil
		}
		players = m.st.JoinedUsers(ev.ChatID)
		if len(players) == 0 {
			notice = noticeNobodyJoined
			return nil
		}
		joined := false
		for _, p := range players {
			if p.ID == ev.UserID {
				joined = true
				break
			}
		}
		if !joined {
			notice = noticeFirstlyJoin
			return nil
		}
		m.st.SetPhase(ev.ChatID, state.PhaseChooseTheme)
		m.st.SetTurnOwner(ev.ChatID, ev.UserID)
		return nil
	})
	if notice != "" {
		return m.msgr.Notify(ctx, ev, notice)
	}

	gameID, err := m.ledger.CreateGame(ctx, ev.ChatID, players)
	if err != nil {
		m.revertPhase(ev.ChatID, state.PhaseChooseTheme, state.PhaseJoining)
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to create game")
		return m.msgr.Notify(ctx, ev, noticeTryAgain)
	}
	m.st.SetGameID(ev.ChatID, gameID)

	log.Info().Int64("chat_id", ev.ChatID).Int64("game_id", gameID).
		Int("players", len(players)).Msg("Game started")

	return m.handleChooseTheme(ctx, ev, Payload{Action: ActionChooseTheme, GameID: gameID})
}
