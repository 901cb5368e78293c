package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIntent(kind IntentKind, name string) Intent {
	return Intent{
		ID:        name + "-" + string(kind),
		Kind:      kind,
		GuildID:   testGuildID,
		ChannelID: testChannelID,
		ActorID:   testActorID,
		Name:      name,
	}
}

func TestCollector_DeliverRunsContinuation(t *testing.T) {
	collector := NewCollector(time.Minute)
	prompt := testIntent(IntentKindCommand, "transfer")

	collector.Await(prompt.Key(), func(ctx context.Context, reply Intent) (*Result, error) {
		return &Result{Message: "got " + reply.Name}, nil
	}, nil)
	require.True(t, collector.IsWaiting(prompt.Key()))

	result, err := collector.Deliver(context.Background(), testIntent(IntentKindButton, ButtonConfirm))
	require.NoError(t, err)
	assert.Equal(t, "got "+ButtonConfirm, result.Message)

	// A prompt takes exactly one reply
	_, err = collector.Deliver(context.Background(), testIntent(IntentKindButton, ButtonConfirm))
	assert.ErrorIs(t, err, ErrNoPendingPrompt)
	assert.Eventually(t, func() bool { return collector.Pending() == 0 }, time.Second, 10*time.Millisecond)
}

func TestCollector_TimeoutRunsNotice(t *testing.T) {
	collector := NewCollector(20 * time.Millisecond)
	key := testIntent(IntentKindCommand, "transfer").Key()
	timedOut := make(chan struct{})

	collector.Await(key, func(ctx context.Context, reply Intent) (*Result, error) {
		t.Error("continuation must not run after a timeout")
		return nil, nil
	}, func() { close(timedOut) })

	select {
	case <-timedOut:
	case <-time.After(time.Second):
		t.Fatal("timeout notice never ran")
	}

	assert.Eventually(t, func() bool { return !collector.IsWaiting(key) }, time.Second, 10*time.Millisecond)
	_, err := collector.Deliver(context.Background(), testIntent(IntentKindButton, ButtonConfirm))
	assert.ErrorIs(t, err, ErrNoPendingPrompt)
}

func TestCollector_NewPromptReplacesOld(t *testing.T) {
	collector := NewCollector(time.Minute)
	key := testIntent(IntentKindCommand, "transfer").Key()
	firstTimedOut := false

	collector.Await(key, func(ctx context.Context, reply Intent) (*Result, error) {
		return &Result{Message: "first"}, nil
	}, func() { firstTimedOut = true })
	collector.Await(key, func(ctx context.Context, reply Intent) (*Result, error) {
		return &Result{Message: "second"}, nil
	}, nil)

	result, err := collector.Deliver(context.Background(), testIntent(IntentKindFreeText, "reply"))
	require.NoError(t, err)
	assert.Equal(t, "second", result.Message)
	assert.False(t, firstTimedOut)
}

func TestCollector_OtherActorsDoNotMatch(t *testing.T) {
	collector := NewCollector(time.Minute)
	collector.Await(testIntent(IntentKindCommand, "transfer").Key(), func(ctx context.Context, reply Intent) (*Result, error) {
		return &Result{}, nil
	}, nil)

	other := testIntent(IntentKindButton, ButtonConfirm)
	other.ActorID = testPeerID
	_, err := collector.Deliver(context.Background(), other)
	assert.ErrorIs(t, err, ErrNoPendingPrompt)
	assert.Equal(t, 1, collector.Pending())

	collector.Cancel(testIntent(IntentKindCommand, "transfer").Key())
	assert.Equal(t, 0, collector.Pending())
}
