package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"quiz-game-bot/internal/game"
	"quiz-game-bot/internal/state"
)

const floodChat int64 = 42

// fakeTelegram scripts per-call errors; a nil entry (or an exhausted
// script) means success.
type fakeTelegram struct {
	sendErrs []error
	editErrs []error

	sends     int
	edits     int
	deletes   int
	responses []*tele.CallbackResponse
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeTelegram) Send(tele.Recipient, interface{}, ...interface{}) (*tele.Message, error) {
	f.sends++
	if err := popErr(&f.sendErrs); err != nil {
		return nil, err
	}
	return &tele.Message{ID: f.sends}, nil
}

func (f *fakeTelegram) Edit(tele.Editable, interface{}, ...interface{}) (*tele.Message, error) {
	f.edits++
	if err := popErr(&f.editErrs); err != nil {
		return nil, err
	}
	return &tele.Message{}, nil
}

func (f *fakeTelegram) Delete(tele.Editable) error {
	f.deletes++
	return nil
}

func (f *fakeTelegram) Respond(_ *tele.Callback, resp ...*tele.CallbackResponse) error {
	if len(resp) > 0 {
		f.responses = append(f.responses, resp[0])
	} else {
		f.responses = append(f.responses, nil)
	}
	return nil
}

// callbackCtx carries a callback event the way Dispatch does, so the
// retry loop has someone to apologize to.
func callbackCtx() context.Context {
	ev := game.Event{ChatID: floodChat, UserID: 1, CallbackID: "cb"}
	return game.WithEvent(context.Background(), ev)
}

func TestSendRetriesThroughRateLimit(t *testing.T) {
	tg := &fakeTelegram{sendErrs: []error{
		tele.FloodError{RetryAfter: 0},
		tele.FloodError{RetryAfter: 0},
		nil,
	}}
	st := state.NewStore()
	m := NewMessenger(tg, st, time.Millisecond)

	ref, err := m.Send(callbackCtx(), floodChat, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, tg.sends)
	assert.Equal(t, floodChat, ref.ChatID)

	// One apology for the whole burst, and the success at the end clears
	// the conversation's flood flag.
	require.Len(t, tg.responses, 1)
	assert.Equal(t, game.NoticeFlood, tg.responses[0].Text)
	assert.False(t, st.IsFlooded(floodChat, time.Hour))
}

func TestSendReturnsNonFloodErrors(t *testing.T) {
	boom := errors.New("telegram is down")
	tg := &fakeTelegram{sendErrs: []error{boom}}
	st := state.NewStore()
	m := NewMessenger(tg, st, time.Millisecond)

	_, err := m.Send(callbackCtx(), floodChat, "hello", nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, tg.sends)
	assert.Empty(t, tg.responses)
	assert.False(t, st.IsFlooded(floodChat, time.Hour))
}

func TestRetryStopsWhenContextEnds(t *testing.T) {
	tg := &fakeTelegram{sendErrs: []error{tele.FloodError{RetryAfter: 1}}}
	st := state.NewStore()
	m := NewMessenger(tg, st, time.Hour)

	ctx, cancel := context.WithCancel(callbackCtx())
	cancel()
	_, err := m.Send(ctx, floodChat, "hello", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tg.sends)

	// Nothing went through, the conversation stays gated.
	assert.True(t, st.IsFlooded(floodChat, time.Hour))
}

func TestEditAcceptsUnchangedContent(t *testing.T) {
	tg := &fakeTelegram{editErrs: []error{tele.ErrSameMessageContent}}
	st := state.NewStore()
	m := NewMessenger(tg, st, time.Millisecond)

	ref := game.MessageRef{ChatID: floodChat, MessageID: 7}
	require.NoError(t, m.Edit(context.Background(), ref, "same text", nil))
	assert.Equal(t, 1, tg.edits)
}

func TestNotifyWithoutCallbackIsSilent(t *testing.T) {
	tg := &fakeTelegram{}
	m := NewMessenger(tg, state.NewStore(), time.Millisecond)

	require.NoError(t, m.Notify(context.Background(), game.Event{ChatID: floodChat}, "notice"))
	assert.Empty(t, tg.responses)
}
