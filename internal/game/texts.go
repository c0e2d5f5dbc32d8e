package game

import (
	"fmt"
	"strings"

	"quiz-game-bot/internal/model"
)

// Screen texts.
const (
	textInvite = "Hi there! 👋\n" +
		"I host a trivia game for this chat: pick a theme, pick a price, " +
		"and answer before the timer runs out.\n" +
		"Press the button below to open the menu."

	textMainMenu = "🎲 Main menu\nWhat shall we do?"

	textRules = "📖 Rules\n\n" +
		"1. Everyone who wants to play presses Join, then someone presses Start.\n" +
		"2. The player whose turn it is picks a theme and a price.\n" +
		"3. A question appears, the answer options follow a moment later.\n" +
		"4. The first correct answer wins the question's points. " +
		"A wrong answer costs the same amount, and one answer per player per question.\n" +
		"5. If nobody answers in time, nobody scores and a random player picks next.\n" +
		"6. Each theme/price cell can be played once. The game ends when the " +
		"board is empty or when you finish it from the scoreboard."

	textAbout = "ℹ️ About\n\n" +
		"A trivia quiz for group chats. Scores are kept per game; " +
		"finish a game to get the final standings with medals."

	textNobodyJoined = "Press ➕ Join to enter the game:\n\nNobody has joined yet."

	textConfirmStop = "Finish the game and show the final standings?"
)

// Ephemeral notices shown as callback snackbars.
const (
	noticeOldRound        = "This round is already over."
	noticeNotYourTurn     = "It's not your turn to pick."
	noticeAlreadyJoined   = "You have already joined."
	noticeAlreadyAnswered = "You have already answered this question."
	noticeTooLate         = "Too late, the answer is in!"
	noticeWrongAnswer     = "Wrong! ❌"
	noticeCorrectAnswer   = "Correct! 🎉"
	noticeNobodyJoined    = "Nobody has joined yet."
	noticeFirstlyJoin     = "Join the game before starting it."
	noticeGameStarted     = "The game has already started."
	noticeGameStopped     = "The game is already over."
	noticeTryAgain        = "Something went wrong, try again."
)

// NoticeFlood is shown when a conversation is gated by flood control. It
// is exported because the transport raises it too, when a rate limit
// surfaces mid-send.
const NoticeFlood = "Telegram is rate-limiting me, give me a few minutes. 🙏"

func textRoster(players []model.Player) string {
	if len(players) == 0 {
		return textNobodyJoined
	}
	var b strings.Builder
	b.WriteString("Press ➕ Join to enter the game:\n\n")
	for _, p := range players {
		fmt.Fprintf(&b, "👤 %s\n", p.Name())
	}
	return b.String()
}

func textChooseTheme(picker string) string {
	return fmt.Sprintf("👉 %s, pick a theme:", picker)
}

func textThemeChosen(title string) string {
	return fmt.Sprintf("Theme: 📗 %s", title)
}

func textChoosePrice(picker string) string {
	return fmt.Sprintf("👉 %s, pick a question:", picker)
}

func textQuestion(price int, title string) string {
	return fmt.Sprintf("Question for %d points:\n\n🔎 %s", price, title)
}

func textReveal(title string) string {
	return fmt.Sprintf("Question:\n🔎 %s", title)
}

func textCorrectAnswer(title string) string {
	return fmt.Sprintf("Correct answer:\n💡 %s", title)
}

// textRoundResults lists the winner's gain and every loss of the round.
// names maps user ids to display names.
func textRoundResults(winner *int64, wrong []int64, price int, names map[int64]string) string {
	var b strings.Builder
	b.WriteString("Round results:\n")
	if winner != nil {
		fmt.Fprintf(&b, "🏆 %s: +%d\n", names[*winner], price)
	}
	for _, id := range wrong {
		fmt.Fprintf(&b, "👤 %s: -%d\n", names[id], price)
	}
	if winner == nil && len(wrong) == 0 {
		b.WriteString("Nobody answered in time... 💤\n")
	}
	return b.String()
}

func textScoreboard(scores []model.ScoreRow, limit int) string {
	var b strings.Builder
	b.WriteString("📊 Scoreboard:\n")
	for i, s := range scores {
		if limit > 0 && i >= limit {
			break
		}
		fmt.Fprintf(&b, "👤 %s: %d\n", s.Name(), s.Score)
	}
	return b.String()
}

var medals = [3]string{"🥇", "🥈", "🥉"}

// textFinalStandings renders the end-of-game table with medals for the
// top three places.
func textFinalStandings(scores []model.ScoreRow) string {
	var b strings.Builder
	b.WriteString("🏁 The game is over!\n\nFinal standings:\n")
	for i, s := range scores {
		mark := "👤"
		if i < len(medals) {
			mark = medals[i]
		}
		fmt.Fprintf(&b, "%s %s: %d (✅%d ❌%d)\n", mark, s.Name(), s.Score, s.Correct, s.Wrong)
	}
	return b.String()
}
