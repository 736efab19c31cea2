package progression

import (
	"context"
	"testing"
	"time"

	"github.com/nosgoth/eldergod/plugin/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwap_AcceptedExchangesLevels(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	initiator := e.player(t, 1, 25)
	target := e.player(t, 2, 10)

	var completed hook.SwapResult
	e.hooks.Register(hook.OnSwapCompleted, 0, "spy", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		completed = d.(hook.SwapResult)
		return d, nil
	})

	p, err := e.coord.ProposeSwap(ctx, initiator, target)
	require.NoError(t, err)
	assert.Equal(t, 25, p.InitiatorLevel)
	assert.Equal(t, 10, p.TargetLevel)
	assert.True(t, p.ExpiresAt.Equal(now.Add(2*time.Second)))

	done := make(chan *SwapResult, 1)
	go func() {
		res, err := e.coord.AwaitSwap(ctx, p)
		assert.NoError(t, err)
		done <- res
	}()

	_, err = e.coord.AnswerSwap(ctx, p.ID, target.ID, true)
	require.NoError(t, err)

	var res *SwapResult
	select {
	case res = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("swap did not complete")
	}
	require.NotNil(t, res)
	assert.True(t, res.Accepted)
	assert.Equal(t, 10, res.InitiatorLevel)
	assert.Equal(t, 25, res.TargetLevel)
	assert.Equal(t, 10, e.level(t, 1))
	assert.Equal(t, 25, e.level(t, 2))

	require.NotNil(t, res.InitiatorChange)
	assert.Equal(t, "zephonim", res.InitiatorChange.To.Key)
	require.NotNil(t, res.TargetChange)
	assert.Equal(t, "turelim", res.TargetChange.To.Key)
	assert.Len(t, res.TargetChange.Unlocked, 2, "swap and swim")
	assert.True(t, e.guild.has(1, "Zephonim"))
	assert.True(t, e.guild.has(2, "Turelim"))

	assert.True(t, completed.Accepted)
	assert.Equal(t, p.ID, completed.ProposalID)
	assert.ElementsMatch(t, []string{"swap with 2", "swap with 1"}, e.audit.actions())

	_, err = e.coord.Proposal(ctx, p.ID)
	requireUserErr(t, err, ErrSwapUnknown)
}

func TestSwap_AnsweredBeforeWaiting(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	initiator := e.player(t, 1, 15)
	target := e.player(t, 2, 3)

	p, err := e.coord.ProposeSwap(ctx, initiator, target)
	require.NoError(t, err)
	_, err = e.coord.AnswerSwap(ctx, p.ID, target.ID, true)
	require.NoError(t, err)

	res, err := e.coord.AwaitSwap(ctx, p)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, 3, e.level(t, 1))
	assert.Equal(t, 15, e.level(t, 2))
}

func TestSwap_Declined(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	initiator := e.player(t, 1, 20)
	target := e.player(t, 2, 30)

	p, err := e.coord.ProposeSwap(ctx, initiator, target)
	require.NoError(t, err)
	_, err = e.coord.AnswerSwap(ctx, p.ID, target.ID, false)
	require.NoError(t, err)

	_, err = e.coord.AnswerSwap(ctx, p.ID, target.ID, true)
	requireUserErr(t, err, ErrSwapUnknown)

	res, err := e.coord.AwaitSwap(ctx, p)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.False(t, res.TimedOut)
	assert.Equal(t, 20, e.level(t, 1))
	assert.Equal(t, 30, e.level(t, 2))
	assert.Equal(t, []string{"swap declined"}, e.audit.actions())

	// the pending slot is free again
	_, err = e.coord.ProposeSwap(ctx, initiator, target)
	require.NoError(t, err)
}

func TestSwap_TimesOut(t *testing.T) {
	e := setup(t, func(o *Options) { o.SwapTimeout = 50 * time.Millisecond })
	ctx := context.Background()
	initiator := e.player(t, 1, 18)
	target := e.player(t, 2, 4)

	p, err := e.coord.ProposeSwap(ctx, initiator, target)
	require.NoError(t, err)

	res, err := e.coord.AwaitSwap(ctx, p)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.False(t, res.Accepted)
	assert.Equal(t, 18, e.level(t, 1))
	assert.Equal(t, 4, e.level(t, 2))

	_, err = e.coord.AnswerSwap(ctx, p.ID, target.ID, true)
	requireUserErr(t, err, ErrSwapUnknown)
}

func TestSwap_CancelledContext(t *testing.T) {
	e := setup(t)
	initiator := e.player(t, 1, 18)
	target := e.player(t, 2, 4)

	p, err := e.coord.ProposeSwap(context.Background(), initiator, target)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.coord.AwaitSwap(ctx, p)
	require.Error(t, err)
	assert.Equal(t, 18, e.level(t, 1))
}

func TestSwap_Validation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	initiator := e.player(t, 1, 15)
	target := e.player(t, 2, 1)

	_, err := e.coord.ProposeSwap(ctx, initiator, initiator)
	requireUserErr(t, err, ErrSelfTarget)

	_, err = e.coord.ProposeSwap(ctx, initiator, Member{ID: 3, Name: "outsider"})
	requireUserErr(t, err, ErrNotPlayer)

	low := e.player(t, 4, 14)
	_, err = e.coord.ProposeSwap(ctx, low, target)
	msg := requireUserErr(t, err, ErrLevelTooLow)
	assert.Contains(t, msg, "15")

	p, err := e.coord.ProposeSwap(ctx, initiator, target)
	require.NoError(t, err)
	_, err = e.coord.ProposeSwap(ctx, initiator, target)
	requireUserErr(t, err, ErrSwapPending)

	_, err = e.coord.AnswerSwap(ctx, p.ID, initiator.ID, true)
	requireUserErr(t, err, ErrNotSwapTarget)

	_, err = e.coord.AnswerSwap(ctx, "missing", target.ID, true)
	requireUserErr(t, err, ErrSwapUnknown)
}

func TestSwap_LazilyCreatesTarget(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	initiator := e.player(t, 1, 16)
	target := e.player(t, 2, 0)

	p, err := e.coord.ProposeSwap(ctx, initiator, target)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TargetLevel)

	exists, err := e.chars.Exists(ctx, 2)
	require.NoError(t, err)
	assert.True(t, exists)
}
