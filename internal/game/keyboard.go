package game

import (
	"strconv"

	tele "gopkg.in/telebot.v3"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/state"
)

// answerButtonLimit caps answer button labels; Telegram truncates long
// button texts unpredictably, so we do it ourselves.
const answerButtonLimit = 40

func btn(text string, p Payload) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: p.Encode()}
}

func markup(rows ...[]tele.InlineButton) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func inviteKeyboard() *tele.ReplyMarkup {
	return markup(
		[]tele.InlineButton{btn("🎲 Open menu", Payload{Action: ActionMainMenu, New: false})},
	)
}

func mainMenuKeyboard() *tele.ReplyMarkup {
	return markup(
		[]tele.InlineButton{btn("🎮 New game", Payload{Action: ActionCreateNewGame})},
		[]tele.InlineButton{btn("📖 Rules", Payload{Action: ActionGameRules})},
		[]tele.InlineButton{btn("ℹ️ About", Payload{Action: ActionBotInfo})},
	)
}

// backKeyboard leads from an info screen back to the menu, editing the
// screen in place.
func backKeyboard() *tele.ReplyMarkup {
	return markup(
		[]tele.InlineButton{btn("⬅️ Back", Payload{Action: ActionMainMenu, New: false})},
	)
}

func joinKeyboard() *tele.ReplyMarkup {
	return markup(
		[]tele.InlineButton{btn("➕ Join", Payload{Action: ActionJoinUsers})},
		[]tele.InlineButton{btn("▶️ Start", Payload{Action: ActionStartGame})},
		[]tele.InlineButton{btn("🏠 Main menu", Payload{Action: ActionMainMenu, New: true})},
	)
}

func themesKeyboard(gameID int64, themes []model.Theme) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(themes))
	for _, t := range themes {
		rows = append(rows, []tele.InlineButton{
			btn("📗 "+t.Title, Payload{Action: ActionChooseQuest, GameID: gameID, ThemeID: t.ID}),
		})
	}
	return markup(rows...)
}

// pricesKeyboard lays the five price tiers out as a row of three and a row
// of two. Consumed slots render as a dash and carry tier -1, which the
// handler only acknowledges.
func pricesKeyboard(gameID, themeID int64, slots [state.PriceTiers]bool) *tele.ReplyMarkup {
	buttons := make([]tele.InlineButton, 0, state.PriceTiers)
	for tier, price := range Prices {
		text, t := strconv.Itoa(price), tier
		if slots[tier] {
			text, t = "——", -1
		}
		buttons = append(buttons, btn(text, Payload{
			Action: ActionSendQuestion, GameID: gameID, ThemeID: themeID, Tier: t,
		}))
	}
	return markup(buttons[:3], buttons[3:])
}

func answersKeyboard(gameID int64, answers []model.Answer) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(answers))
	for i, a := range answers {
		title := a.Title
		if len([]rune(title)) > answerButtonLimit {
			title = string([]rune(title)[:answerButtonLimit-1]) + "…"
		}
		rows = append(rows, []tele.InlineButton{
			btn(title, Payload{Action: ActionGetAnswer, GameID: gameID, AnswerIdx: i}),
		})
	}
	return markup(rows...)
}

func scoreboardKeyboard(gameID int64) *tele.ReplyMarkup {
	return markup(
		[]tele.InlineButton{btn("▶️ Continue", Payload{Action: ActionChooseTheme, GameID: gameID, New: true})},
		[]tele.InlineButton{btn("⛔ Finish game", Payload{Action: ActionConfirmStop, GameID: gameID})},
	)
}

func confirmStopKeyboard(gameID int64) *tele.ReplyMarkup {
	return markup(
		[]tele.InlineButton{
			btn("✅ Yes", Payload{Action: ActionStopGame, GameID: gameID, New: false}),
			btn("↩️ No", Payload{Action: ActionScoreboard, GameID: gameID, New: false}),
		},
	)
}

func finalKeyboard() *tele.ReplyMarkup {
	return markup(
		[]tele.InlineButton{btn("🏠 Main menu", Payload{Action: ActionMainMenu, New: true})},
	)
}
