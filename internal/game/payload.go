// Package game implements the per-conversation trivia game engine: the
// callback payload codec, keyboards, and the phase state machine.
package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action identifies one of the closed set of game actions a callback
// button can trigger. Dispatch is an exhaustive switch over this set, so
// the reachable transitions stay statically checkable.
type Action string

// Callback actions. ActionInvite is internal: it is produced by chat
// invites and the /start command, never by a button.
const (
	ActionInvite        Action = "invite"
	ActionMainMenu      Action = "main_menu"
	ActionGameRules     Action = "game_rules"
	ActionBotInfo       Action = "bot_info"
	ActionCreateNewGame Action = "create_new_game"
	ActionJoinUsers     Action = "join_users"
	ActionStartGame     Action = "start_game"
	ActionChooseTheme   Action = "choose_theme"
	ActionChooseQuest   Action = "choose_question"
	ActionSendQuestion  Action = "send_question"
	ActionGetAnswer     Action = "get_answer"
	ActionScoreboard    Action = "show_scoreboard"
	ActionConfirmStop   Action = "confirm_stop_game"
	ActionStopGame      Action = "stop_game"
)

// callbackPrefix namespaces the bot's callback data.
const callbackPrefix = "qz"

// payloadSep separates payload fields. Telegram limits callback data to 64
// bytes, so fields are kept numeric where possible.
const payloadSep = "|"

// ErrBadPayload is returned for callback data this bot did not produce.
var ErrBadPayload = errors.New("malformed callback payload")

// Payload is the decoded structured payload of a callback event. Which
// fields are meaningful depends on the action.
type Payload struct {
	Action  Action
	GameID  int64
	ThemeID int64
	// Tier is the price tier index (0-based); -1 marks a consumed slot
	// whose button only acknowledges the press.
	Tier int
	// AnswerIdx indexes the shuffled answers of the current question.
	AnswerIdx int
	// New requests a fresh message instead of editing in place.
	New bool
}

func encodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Encode serializes a payload into callback data.
func (p Payload) Encode() string {
	fields := []string{callbackPrefix, string(p.Action)}
	switch p.Action {
	case ActionMainMenu:
		fields = append(fields, encodeBool(p.New))
	case ActionChooseTheme, ActionScoreboard, ActionStopGame:
		fields = append(fields, strconv.FormatInt(p.GameID, 10), encodeBool(p.New))
	case ActionChooseQuest:
		fields = append(fields, strconv.FormatInt(p.GameID, 10), strconv.FormatInt(p.ThemeID, 10))
	case ActionSendQuestion:
		fields = append(fields, strconv.FormatInt(p.GameID, 10), strconv.FormatInt(p.ThemeID, 10), strconv.Itoa(p.Tier))
	case ActionGetAnswer:
		fields = append(fields, strconv.FormatInt(p.GameID, 10), strconv.Itoa(p.AnswerIdx))
	case ActionConfirmStop:
		fields = append(fields, strconv.FormatInt(p.GameID, 10))
	}
	return strings.Join(fields, payloadSep)
}

// DecodePayload parses callback data produced by Encode.
func DecodePayload(data string) (Payload, error) {
	fields := strings.Split(data, payloadSep)
	if len(fields) < 2 || fields[0] != callbackPrefix {
		return Payload{}, ErrBadPayload
	}

	p := Payload{Action: Action(fields[1])}
	args := fields[2:]

	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%w: action %s wants %d args, got %d", ErrBadPayload, p.Action, n, len(args))
		}
		return nil
	}

	var err error
	switch p.Action {
	case ActionGameRules, ActionBotInfo, ActionCreateNewGame, ActionJoinUsers, ActionStartGame:
		err = need(0)
	case ActionMainMenu:
		if err = need(1); err == nil {
			p.New = args[0] == "1"
		}
	case ActionChooseTheme, ActionScoreboard, ActionStopGame:
		if err = need(2); err == nil {
			p.GameID, err = strconv.ParseInt(args[0], 10, 64)
			p.New = args[1] == "1"
		}
	case ActionChooseQuest:
		if err = need(2); err == nil {
			if p.GameID, err = strconv.ParseInt(args[0], 10, 64); err == nil {
				p.ThemeID, err = strconv.ParseInt(args[1], 10, 64)
			}
		}
	case ActionSendQuestion:
		if err = need(3); err == nil {
			if p.GameID, err = strconv.ParseInt(args[0], 10, 64); err == nil {
				if p.ThemeID, err = strconv.ParseInt(args[1], 10, 64); err == nil {
					p.Tier, err = strconv.Atoi(args[2])
				}
			}
		}
	case ActionGetAnswer:
		if err = need(2); err == nil {
			if p.GameID, err = strconv.ParseInt(args[0], 10, 64); err == nil {
				p.AnswerIdx, err = strconv.Atoi(args[1])
			}
		}
	case ActionConfirmStop:
		if err = need(1); err == nil {
			p.GameID, err = strconv.ParseInt(args[0], 10, 64)
		}
	default:
		return Payload{}, fmt.Errorf("%w: unknown action %q", ErrBadPayload, fields[1])
	}
	if err != nil {
		if !errors.Is(err, ErrBadPayload) {
			err = fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return Payload{}, err
	}
	return p, nil
}
