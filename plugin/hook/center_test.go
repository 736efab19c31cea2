package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nop() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func pass(_ context.Context, _ string, d interface{}) (interface{}, error) { return d, nil }

func TestNewCenter(t *testing.T) {
	require.NotNil(t, NewCenter(nil))
}

func TestTrigger_NoHandlers(t *testing.T) {
	c := NewCenter(nop())
	out, err := c.Trigger(context.Background(), "noop", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestTrigger_RequestModified(t *testing.T) {
	c := NewCenter(nop())
	c.Register(BeforeLevelup, 0, "blessing", func(_ context.Context, event string, d interface{}) (interface{}, error) {
		assert.Equal(t, BeforeLevelup, event)
		req := d.(*LevelupRequest)
		req.Modifier += 10
		return req, nil
	})
	c.Register(BeforeLevelup, 1, "halve", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		req := d.(*LevelupRequest)
		req.Modifier /= 2
		return req, nil
	})

	req := &LevelupRequest{UserID: 1, Level: 3, Modifier: 4}
	out, err := c.Trigger(context.Background(), BeforeLevelup, req)
	require.NoError(t, err)
	assert.Equal(t, 7, out.(*LevelupRequest).Modifier)
}

func TestTrigger_PriorityOrder(t *testing.T) {
	c := NewCenter(nop())
	var order []string
	record := func(name string) Fn {
		return func(_ context.Context, _ string, d interface{}) (interface{}, error) {
			order = append(order, name)
			return d, nil
		}
	}
	c.Register("ev", 10, "high", record("high"))
	c.Register("ev", 1, "low", record("low"))
	c.Register("ev", 5, "mid-a", record("mid-a"))
	c.Register("ev", 5, "mid-b", record("mid-b"))
	_, _ = c.Trigger(context.Background(), "ev", nil)
	assert.Equal(t, []string{"low", "mid-a", "mid-b", "high"}, order)
}

func TestTrigger_ErrInterrupt(t *testing.T) {
	c := NewCenter(nop())
	var secondCalled bool
	c.Register(BeforeLevelup, 0, "veto", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		return d, ErrInterrupt
	})
	c.Register(BeforeLevelup, 1, "should_not_run", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		secondCalled = true
		return d, nil
	})
	_, err := c.Trigger(context.Background(), BeforeLevelup, &LevelupRequest{})
	assert.True(t, errors.Is(err, ErrInterrupt))
	assert.False(t, secondCalled)
}

func TestTrigger_FailingHandlerSkipped(t *testing.T) {
	c := NewCenter(nop())
	var secondCalled bool
	c.Register("ev", 0, "broken", func(_ context.Context, _ string, _ interface{}) (interface{}, error) {
		return "garbage", errors.New("boom")
	})
	c.Register("ev", 1, "second", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		secondCalled = true
		return d, nil
	})
	out, err := c.Trigger(context.Background(), "ev", "payload")
	require.NoError(t, err)
	assert.True(t, secondCalled)
	assert.Equal(t, "payload", out)
}

func TestUnregister_OnlyNamed(t *testing.T) {
	c := NewCenter(nop())
	var c1, c2 bool
	c.Register("ev", 0, "h1", func(_ context.Context, _ string, d interface{}) (interface{}, error) { c1 = true; return d, nil })
	c.Register("ev", 1, "h2", func(_ context.Context, _ string, d interface{}) (interface{}, error) { c2 = true; return d, nil })
	c.Unregister("ev", "h1")
	_, _ = c.Trigger(context.Background(), "ev", nil)
	assert.False(t, c1)
	assert.True(t, c2)
	assert.Equal(t, 1, c.Count("ev"))
}

func TestUnregisterAll(t *testing.T) {
	c := NewCenter(nop())
	c.Register(AfterLevelup, 0, "plugin", pass)
	c.Register(OnClanChanged, 0, "plugin", pass)
	c.Register(OnClanChanged, 1, "other", pass)
	c.UnregisterAll("plugin")
	assert.Equal(t, 0, c.Count(AfterLevelup))
	assert.Equal(t, 1, c.Count(OnClanChanged))
}
