package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPayloadRoundTrip(t *testing.T) {
	payloads := []Payload{
		{Action: ActionMainMenu, New: true},
		{Action: ActionMainMenu, New: false},
		{Action: ActionGameRules},
		{Action: ActionBotInfo},
		{Action: ActionCreateNewGame},
		{Action: ActionJoinUsers},
		{Action: ActionStartGame},
		{Action: ActionChooseTheme, GameID: 42, New: true},
		{Action: ActionChooseQuest, GameID: 42, ThemeID: 7},
		{Action: ActionSendQuestion, GameID: 42, ThemeID: 7, Tier: 4},
		{Action: ActionSendQuestion, GameID: 42, ThemeID: 7, Tier: -1},
		{Action: ActionGetAnswer, GameID: 42, AnswerIdx: 3},
		{Action: ActionScoreboard, GameID: 42, New: false},
		{Action: ActionConfirmStop, GameID: 42},
		{Action: ActionStopGame, GameID: 42, New: true},
	}
	for _, p := range payloads {
		got, err := DecodePayload(p.Encode())
		require.NoError(t, err, "payload %+v", p)
		assert.Equal(t, p, got)
	}
}

func TestDecodeRejectsForeignData(t *testing.T) {
	for _, data := range []string{
		"",
		"hello",
		"qz",
		"qz|no_such_action",
		"qz|get_answer",             // missing args
		"qz|get_answer|42",          // not enough args
		"qz|get_answer|42|3|extra",  // too many args
		"qz|get_answer|42|x",        // non-numeric index
		"qz|send_question|a|7|0",    // non-numeric game id
		"xx|main_menu|1",            // wrong prefix
		"qz|start_game|unexpected",  // args for an argless action
	} {
		_, err := DecodePayload(data)
		assert.ErrorIs(t, err, ErrBadPayload, "data %q", data)
	}
}

// Telegram rejects callback data over 64 bytes, so every payload the
// keyboards can produce has to stay under the cap even with worst-case
// numeric fields.
func TestPayloadFitsCallbackDataLimit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := Payload{
			Action:    rapid.SampledFrom([]Action{
				ActionMainMenu, ActionChooseTheme, ActionChooseQuest,
				ActionSendQuestion, ActionGetAnswer, ActionScoreboard,
				ActionConfirmStop, ActionStopGame,
			}).Draw(t, "action"),
			GameID:    rapid.Int64().Draw(t, "game_id"),
			ThemeID:   rapid.Int64().Draw(t, "theme_id"),
			Tier:      rapid.IntRange(-1, 4).Draw(t, "tier"),
			AnswerIdx: rapid.IntRange(0, 3).Draw(t, "answer_idx"),
			New:       rapid.Bool().Draw(t, "new"),
		}
		data := p.Encode()
		if len(data) > 64 {
			t.Fatalf("callback data %q is %d bytes", data, len(data))
		}
	})
}
