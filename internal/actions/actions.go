// Package actions holds the side-effecting device actions that remote
// commands can trigger.
package actions

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/util"
)

// Params are the action-specific parameters of a command.
type Params map[string]interface{}

// String returns the string parameter at key, or def when missing or empty.
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return def
	}
	return s
}

// Int returns the integer parameter at key. JSON numbers and numeric strings
// are accepted; a missing key yields def.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%s must be a whole number, got %v", key, n)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%s must be a whole number, got %q", key, n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%s must be a whole number, got %T", key, v)
}

// Handler performs one action.
type Handler struct {
	// Timeout bounds a single execution. Zero leaves it to the caller.
	Timeout time.Duration
	Run     func(ctx context.Context, params Params) error
}

// Executor runs named actions.
type Executor interface {
	Known(action string) bool
	Execute(ctx context.Context, action string, params Params) error
}

// Registry is an Executor backed by a table of handlers. Safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds or replaces the handler for action.
func (r *Registry) Register(action string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
}

// Known reports whether action has a handler.
func (r *Registry) Known(action string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[action]
	return ok
}

// Names lists registered actions in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suggest returns a hint for an unknown action: the closest registered names
// if any are near, otherwise the full list.
func (r *Registry) Suggest(action string) string {
	names := r.Names()
	if similar := util.SuggestSimilar(action, names, 2); len(similar) > 0 {
		return fmt.Sprintf("Did you mean %s?", strings.Join(quoteAll(similar), " or "))
	}
	return "Known actions: " + util.JoinOrNone(names)
}

func quoteAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = strconv.Quote(s)
	}
	return out
}

// Execute runs action under its own timeout, if it has one.
func (r *Registry) Execute(ctx context.Context, action string, params Params) error {
	r.mu.RLock()
	h, ok := r.handlers[action]
	r.mu.RUnlock()
	if !ok {
		return errors.New(errors.ErrCommand,
			fmt.Sprintf("Unknown action %q", action),
			r.Suggest(action))
	}

	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	if params == nil {
		params = Params{}
	}
	return h.Run(ctx, params)
}
