package game

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/state"
)

// handleChooseTheme shows the theme board to the turn owner. Themes whose
// five price slots are all consumed are dropped from the board; an empty
// board ends the game.
func (m *Machine) handleChooseTheme(ctx context.Context, ev Event, p Payload) error {
	if !m.gameMatches(ev, p.GameID) {
		return m.msgr.Notify(ctx, ev, noticeOldRound)
	}

	var notice string
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) != state.PhaseChooseTheme {
			notice = noticeOldRound
			return nil
		}
		m.st.SetPhase(ev.ChatID, state.PhaseChooseQuestion)
		return nil
	})
	if notice != "" {
		return m.msgr.Notify(ctx, ev, notice)
	}

	themes, err := m.quiz.ListThemes(ctx)
	if err != nil {
		m.revertPhase(ev.ChatID, state.PhaseChooseQuestion, state.PhaseChooseTheme)
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to list themes")
		return m.msgr.Notify(ctx, ev, noticeTryAgain)
	}

	matrix := m.st.PriceMatrix(ev.ChatID)
	open := themes[:0:0]
	for _, t := range themes {
		if !allConsumed(matrix[t.ID]) {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		// Board exhausted: the game ends on its own.
		return m.handleStopGame(ctx, ev, Payload{Action: ActionStopGame, GameID: p.GameID, New: true})
	}

	name := m.turnOwnerName(ev.ChatID)
	return m.render(ctx, ev, textChooseTheme(name), themesKeyboard(p.GameID, open), p.New)
}

func allConsumed(slots [state.PriceTiers]bool) bool {
	for _, used := range slots {
		if !used {
			return false
		}
	}
	return true
}

// handleChooseQuestion shows the price row of the picked theme. Only the
// turn owner may pick.
func (m *Machine) handleChooseQuestion(ctx context.Context, ev Event, p Payload) error {
	if !m.gameMatches(ev, p.GameID) {
		return m.msgr.Notify(ctx, ev, noticeOldRound)
	}
	if !m.ownsTurn(ev) {
		return m.msgr.Notify(ctx, ev, noticeNotYourTurn)
	}

	var notice string
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) != state.PhaseChooseQuestion {
			notice = noticeOldRound
			return nil
		}
		m.st.SetPhase(ev.ChatID, state.PhaseSendQuestion)
		return nil
	})
	if notice != "" {
		return m.msgr.Notify(ctx, ev, notice)
	}

	themes, err := m.quiz.ListThemes(ctx)
	if err != nil {
		m.revertPhase(ev.ChatID, state.PhaseSendQuestion, state.PhaseChooseQuestion)
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to list themes")
		return m.msgr.Notify(ctx, ev, noticeTryAgain)
	}
	title := ""
	for _, t := range themes {
		if t.ID == p.ThemeID {
			title = t.Title
			break
		}
	}
	if title == "" {
		m.revertPhase(ev.ChatID, state.PhaseSendQuestion, state.PhaseChooseQuestion)
		return m.msgr.Notify(ctx, ev, noticeTryAgain)
	}

	if err := m.edit(ctx, ev.Message, textThemeChosen(title), nil); err != nil {
		return err
	}
	slots := m.st.PriceMatrix(ev.ChatID)[p.ThemeID]
	name := m.turnOwnerName(ev.ChatID)
	_, err = m.send(ctx, ev.ChatID, textChoosePrice(name), pricesKeyboard(p.GameID, p.ThemeID, slots))
	return err
}

// handleSendQuestion consumes the picked price slot, draws a random
// unasked question of the theme, shows it, reveals the shuffled answer
// variants after a short delay and arms the round timeout. A failed draw
// reopens the slot, so the same press can retry. A consumed slot's dash
// button carries tier -1 and is only acknowledged.
func (m *Machine) handleSendQuestion(ctx context.Context, ev Event, p Payload) error {
	if p.Tier < 0 || p.Tier >= state.PriceTiers {
		return m.msgr.Ack(ctx, ev)
	}
	if !m.gameMatches(ev, p.GameID) {
		return m.msgr.Notify(ctx, ev, noticeOldRound)
	}
	if !m.ownsTurn(ev) {
		return m.msgr.Notify(ctx, ev, noticeNotYourTurn)
	}

	var notice string
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) != state.PhaseSendQuestion {
			notice = noticeOldRound
			return nil
		}
		if !m.st.ConsumeSlot(ev.ChatID, p.ThemeID, p.Tier) {
			notice = noticeOldRound
			return nil
		}
		m.st.SetPhase(ev.ChatID, state.PhaseCollectingAnswers)
		return nil
	})
	if notice != "" {
		return m.msgr.Notify(ctx, ev, notice)
	}

	questions, err := m.quiz.ListUnasked(ctx, p.GameID, p.ThemeID)
	if err != nil {
		m.st.ReopenSlot(ev.ChatID, p.ThemeID, p.Tier)
		m.revertPhase(ev.ChatID, state.PhaseCollectingAnswers, state.PhaseSendQuestion)
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to list questions")
		return m.msgr.Notify(ctx, ev, noticeTryAgain)
	}
	if len(questions) == 0 {
		// The theme ran dry before its slots did. Retire it and reopen
		// the board.
		m.st.ExhaustTheme(ev.ChatID, p.ThemeID)
		m.revertPhase(ev.ChatID, state.PhaseCollectingAnswers, state.PhaseChooseTheme)
		return m.handleChooseTheme(ctx, ev, Payload{Action: ActionChooseTheme, GameID: p.GameID})
	}

	q := m.pick.question(questions)
	if err := m.quiz.MarkAsked(ctx, p.GameID, q.ID); err != nil {
		m.st.ReopenSlot(ev.ChatID, p.ThemeID, p.Tier)
		m.revertPhase(ev.ChatID, state.PhaseCollectingAnswers, state.PhaseSendQuestion)
		log.Error().Err(err).Int64("game_id", p.GameID).Int64("question_id", q.ID).
			Msg("Failed to mark question asked")
		return m.msgr.Notify(ctx, ev, noticeTryAgain)
	}

	q.Answers = m.pick.shuffleAnswers(q.Answers)
	correct, ok := correctAnswer(q)
	if !ok {
		// The broken question is already marked asked and will not be
		// drawn again; the slot can retry with another one.
		m.st.ReopenSlot(ev.ChatID, p.ThemeID, p.Tier)
		m.revertPhase(ev.ChatID, state.PhaseCollectingAnswers, state.PhaseSendQuestion)
		return fmt.Errorf("question %d has no correct answer", q.ID)
	}
	price := Prices[p.Tier]
	m.st.SetCurrentQuestion(ev.ChatID, q, correct, price)

	if err := m.edit(ctx, ev.Message, textQuestion(price, q.Title), nil); err != nil {
		return err
	}
	m.pause(ctx, m.game.VariantsDelay)
	if err := m.edit(ctx, ev.Message, textQuestion(price, q.Title), answersKeyboard(p.GameID, q.Answers)); err != nil {
		return err
	}

	taskID := uuid.NewString()
	m.st.SetRoundTaskID(ev.ChatID, taskID)
	m.sched.Schedule(taskID, m.game.AnswerTimeout, func() {
		m.roundTimeout(ev, p.GameID)
	})
	return nil
}

// roundTimeout fires when nobody answered correctly in time. It races the
// winning answer for the CollectingAnswers phase; whoever moves the phase
// to ShowAnswer first owns the reveal.
func (m *Machine) roundTimeout(ev Event, gameID int64) {
	var fire bool
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) == state.PhaseCollectingAnswers && m.gameMatches(ev, gameID) {
			m.st.SetPhase(ev.ChatID, state.PhaseShowAnswer)
			fire = true
		}
		return nil
	})
	if !fire {
		return
	}

	// Detach the triggering callback: the timer answers nobody.
	tev := ev
	tev.CallbackID = ""
	if err := m.revealAnswer(context.Background(), tev, gameID, nil); err != nil {
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Int64("game_id", gameID).
			Msg("Round timeout reveal failed")
	}
}

// handleGetAnswer processes one player's answer. Each player answers at
// most once per round; the first correct answer closes the round and
// cancels the timeout.
func (m *Machine) handleGetAnswer(ctx context.Context, ev Event, p Payload) error {
	if !m.gameMatches(ev, p.GameID) {
		return m.msgr.Notify(ctx, ev, noticeOldRound)
	}

	var notice string
	var won bool
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) != state.PhaseCollectingAnswers {
			notice = noticeTooLate
			return nil
		}
		// Round state first: in the sliver between the phase moving to
		// CollectingAnswers and the question snapshot landing, a press
		// must not burn the player's single attempt.
		q, okQ := m.st.CurrentQuestion(ev.ChatID)
		correct, okA := m.st.CurrentAnswer(ev.ChatID)
		if !okQ || !okA {
			notice = noticeTryAgain
			return nil
		}
		if !m.st.MarkAnswered(ev.ChatID, ev.UserID) {
			notice = noticeAlreadyAnswered
			return nil
		}
		if p.AnswerIdx < 0 || p.AnswerIdx >= len(q.Answers) || q.Answers[p.AnswerIdx].ID != correct.ID {
			notice = noticeWrongAnswer
			return nil
		}
		m.st.SetPhase(ev.ChatID, state.PhaseShowAnswer)
		won = true
		return nil
	})
	if !won {
		return m.msgr.Notify(ctx, ev, notice)
	}

	m.sched.Cancel(m.st.RoundTaskID(ev.ChatID))
	if err := m.msgr.Notify(ctx, ev, noticeCorrectAnswer); err != nil {
		log.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to answer winning callback")
	}
	winner := ev.UserID
	return m.revealAnswer(ctx, ev, p.GameID, &winner)
}

// revealAnswer closes the round: it settles the scores (the winner gains
// the price, every wrong answer loses it), records the outcome, announces
// the correct answer and the round results, passes the turn, and moves on
// to the scoreboard. Called with the phase already at ShowAnswer.
func (m *Machine) revealAnswer(ctx context.Context, ev Event, gameID int64, winner *int64) error {
	chatID := ev.ChatID
	q, okQ := m.st.CurrentQuestion(chatID)
	correct, okA := m.st.CurrentAnswer(chatID)
	price, okP := m.st.CurrentPrice(chatID)
	if !okQ || !okA || !okP {
		return fmt.Errorf("round state missing for chat %d", chatID)
	}

	var wrong []int64
	for _, id := range m.st.AnsweredUsers(chatID) {
		if winner != nil && id == *winner {
			continue
		}
		wrong = append(wrong, id)
	}

	if ev.Message.MessageID != 0 {
		if err := m.edit(ctx, ev.Message, textReveal(q.Title), nil); err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to detach answer keyboard")
		}
	}
	m.pause(ctx, m.game.RevealPause)

	if winner != nil {
		if err := m.ledger.Credit(ctx, gameID, *winner, price); err != nil {
			log.Error().Err(err).Int64("game_id", gameID).Int64("user_id", *winner).Msg("Failed to credit winner")
		}
	}
	for _, id := range wrong {
		if err := m.ledger.Debit(ctx, gameID, id, price); err != nil {
			log.Error().Err(err).Int64("game_id", gameID).Int64("user_id", id).Msg("Failed to debit player")
		}
	}
	if err := m.quiz.SetOutcome(ctx, gameID, q.ID, winner != nil); err != nil {
		log.Error().Err(err).Int64("game_id", gameID).Int64("question_id", q.ID).Msg("Failed to record outcome")
	}

	players := m.st.JoinedUsers(chatID)
	names := make(map[int64]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name()
	}

	if _, err := m.send(ctx, chatID, textCorrectAnswer(correct.Title), nil); err != nil {
		return err
	}
	if _, err := m.send(ctx, chatID, textRoundResults(winner, wrong, price, names), nil); err != nil {
		return err
	}

	next := m.nextTurnOwner(players, winner)
	var moved bool
	_ = m.locks.WithStatus(chatID, func() error {
		// A menu reset pressed during the reveal pause wins; the game it
		// belonged to is gone and there is no scoreboard to show.
		if m.st.Phase(chatID) != state.PhaseShowAnswer {
			return nil
		}
		m.st.SetTurnOwner(chatID, next)
		m.st.SetPhase(chatID, state.PhaseShowScoreboard)
		moved = true
		return nil
	})
	m.st.ResetRound(chatID)
	if !moved {
		return nil
	}

	return m.handleScoreboard(ctx, ev, Payload{Action: ActionScoreboard, GameID: gameID, New: true})
}

// nextTurnOwner keeps the turn with the winner, or picks a random joined
// player when the round had none.
func (m *Machine) nextTurnOwner(players []model.Player, winner *int64) int64 {
	if winner != nil {
		return *winner
	}
	if len(players) == 0 {
		return 0
	}
	return m.pick.turnOwner(players).ID
}

// handleScoreboard shows the between-rounds standings with continue and
// finish buttons. It is also the "No" exit of the stop confirmation.
func (m *Machine) handleScoreboard(ctx context.Context, ev Event, p Payload) error {
	if !m.gameMatches(ev, p.GameID) {
		return m.msgr.Notify(ctx, ev, noticeOldRound)
	}

	var notice string
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		ph := m.st.Phase(ev.ChatID)
		if ph != state.PhaseShowScoreboard && ph != state.PhaseConfirmStop {
			notice = noticeOldRound
			return nil
		}
		m.st.SetPhase(ev.ChatID, state.PhaseChooseTheme)
		return nil
	})
	if notice != "" {
		return m.msgr.Notify(ctx, ev, notice)
	}

	scores, err := m.ledger.Scores(ctx, p.GameID)
	if err != nil {
		m.revertPhase(ev.ChatID, state.PhaseChooseTheme, state.PhaseShowScoreboard)
		log.Error().Err(err).Int64("game_id", p.GameID).Msg("Failed to load scores")
		return m.msgr.Notify(ctx, ev, noticeTryAgain)
	}
	sortScores(scores)

	text := textScoreboard(scores, m.game.ScoreboardSize)
	return m.render(ctx, ev, text, scoreboardKeyboard(p.GameID), p.New)
}

// sortScores orders rows by score descending, keeping the repository's
// stable insertion order among ties.
func sortScores(scores []model.ScoreRow) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
}

// handleConfirmStop replaces the scoreboard with a yes/no confirmation.
// Any player may finish the game, not just the turn owner.
func (m *Machine) handleConfirmStop(ctx context.Context, ev Event, p Payload) error {
	if !m.gameMatches(ev, p.GameID) {
		return m.msgr.Notify(ctx, ev, noticeOldRound)
	}

	var notice string
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) != state.PhaseChooseTheme {
			notice = noticeTooLate
			return nil
		}
		m.st.SetPhase(ev.ChatID, state.PhaseConfirmStop)
		return nil
	})
	if notice != "" {
		return m.msgr.Notify(ctx, ev, notice)
	}

	if err := m.msgr.Delete(ctx, ev.Message); err != nil {
		log.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to delete scoreboard")
	}
	ev.Message = MessageRef{}
	return m.render(ctx, ev, textConfirmStop, confirmStopKeyboard(p.GameID), false)
}

// handleStopGame finishes the game: the ledger closes it and the final
// standings go out with medals for the top three. Reached from the stop
// confirmation or from an exhausted board.
func (m *Machine) handleStopGame(ctx context.Context, ev Event, p Payload) error {
	if !m.gameMatches(ev, p.GameID) {
		return m.msgr.Notify(ctx, ev, noticeOldRound)
	}

	var notice string
	_ = m.locks.WithStatus(ev.ChatID, func() error {
		if m.st.Phase(ev.ChatID) == state.PhaseFinished {
			notice = noticeGameStopped
			return nil
		}
		m.st.SetPhase(ev.ChatID, state.PhaseFinished)
		return nil
	})
	if notice != "" {
		return m.msgr.Notify(ctx, ev, notice)
	}

	if err := m.ledger.Finish(ctx, p.GameID); err != nil {
		log.Error().Err(err).Int64("game_id", p.GameID).Msg("Failed to finish game")
		return m.msgr.Notify(ctx, ev, noticeTryAgain)
	}
	scores, err := m.ledger.Scores(ctx, p.GameID)
	if err != nil {
		log.Error().Err(err).Int64("game_id", p.GameID).Msg("Failed to load final scores")
		return m.msgr.Notify(ctx, ev, noticeTryAgain)
	}
	sortScores(scores)

	log.Info().Int64("chat_id", ev.ChatID).Int64("game_id", p.GameID).Msg("Game finished")
	return m.render(ctx, ev, textFinalStandings(scores), finalKeyboard(), p.New)
}
