package game

import (
	"math/rand"
	"sync"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/state"
)

// Prices are the point values of the five price tiers, cheapest first.
var Prices = [state.PriceTiers]int{500, 1000, 1500, 2000, 2500}

// picker wraps a rand.Rand with a mutex; handlers run concurrently and
// rand.Rand is not safe for concurrent use.
type picker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newPicker(rnd *rand.Rand) *picker {
	return &picker{rnd: rnd}
}

func (p *picker) intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Intn(n)
}

// question picks a uniformly random question from a non-empty candidate
// list.
func (p *picker) question(qs []model.Question) model.Question {
	return qs[p.intn(len(qs))]
}

// shuffleAnswers returns a shuffled copy of the answers, so the correct
// option's position never betrays it.
func (p *picker) shuffleAnswers(answers []model.Answer) []model.Answer {
	out := make([]model.Answer, len(answers))
	copy(out, answers)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// turnOwner picks a uniformly random player from a non-empty roster.
func (p *picker) turnOwner(players []model.Player) model.Player {
	return players[p.intn(len(players))]
}

// correctAnswer finds the answer flagged correct.
func correctAnswer(q model.Question) (model.Answer, bool) {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a, true
		}
	}
	return model.Answer{}, false
}
