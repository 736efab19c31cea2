// Package hook lets optional components observe or adjust progression
// events without the coordinator knowing about them.
package hook

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrInterrupt signals that a handler wants to stop further processing.
// On a Before* event it also vetoes the action.
var ErrInterrupt = errors.New("hook interrupted")

// Fn is a hook handler. It returns the (possibly modified) payload.
type Fn func(ctx context.Context, event string, data interface{}) (interface{}, error)

type entry struct {
	priority int
	seq      int
	fn       Fn
	name     string
}

// Center manages event hook registrations.
type Center struct {
	mu     sync.RWMutex
	hooks  map[string][]*entry
	seq    int
	logger *zap.Logger
}

// NewCenter creates an empty Center. A nil logger discards handler errors.
func NewCenter(logger *zap.Logger) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{hooks: make(map[string][]*entry), logger: logger}
}

// Register adds fn for event. Lower priority runs first; equal priorities run
// in registration order. name is used for Unregister.
func (c *Center) Register(event string, priority int, name string, fn Fn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	entries := append(c.hooks[event], &entry{priority: priority, seq: c.seq, fn: fn, name: name})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	c.hooks[event] = entries
}

// Unregister removes all hooks with the given name for the given event.
func (c *Center) Unregister(event, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks[event] = without(c.hooks[event], name)
}

// UnregisterAll removes all hooks registered with the given name across all events.
func (c *Center) UnregisterAll(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for event, entries := range c.hooks {
		c.hooks[event] = without(entries, name)
	}
}

// Count returns the number of handlers registered for event.
func (c *Center) Count(event string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hooks[event])
}

func without(entries []*entry, name string) []*entry {
	out := entries[:0]
	for _, e := range entries {
		if e.name != name {
			out = append(out, e)
		}
	}
	return out
}

// Trigger runs the handlers of event in priority order, threading data
// through them. A handler returning ErrInterrupt stops the chain and the
// error is returned. Any other error is logged and that handler's output is
// discarded.
func (c *Center) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	c.mu.RLock()
	entries := make([]*entry, len(c.hooks[event]))
	copy(entries, c.hooks[event])
	c.mu.RUnlock()

	for _, e := range entries {
		out, err := e.fn(ctx, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err != nil {
			c.logger.Warn("hook failed",
				zap.String("event", event), zap.String("hook", e.name), zap.Error(err))
			continue
		}
		data = out
	}
	return data, nil
}
