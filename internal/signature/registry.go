// Package signature runs analysis handlers over the cached log trees of
// triage tickets. Handlers are registered explicitly on a Registry.
package signature

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielolaszy/triage/internal/logging"
	"github.com/danielolaszy/triage/pkg/models"
)

// ErrDuplicateHandler is returned when a name is registered twice.
var ErrDuplicateHandler = errors.New("handler already registered")

// ErrUnknownHandler is returned when a requested handler is not registered.
var ErrUnknownHandler = errors.New("unknown handler")

// Result is what a handler found in one ticket's logs.
type Result struct {
	Handler string   `json:"handler" yaml:"handler"`
	Ticket  string   `json:"ticket" yaml:"ticket"`
	Matched bool     `json:"matched" yaml:"matched"`
	Paths   []string `json:"paths,omitempty" yaml:"paths,omitempty"`
	Detail  string   `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Handler inspects the logs of a ticket.
type Handler interface {
	// Title is a human readable description of the handler.
	Title() string
	// Process examines logDir, the cache entry of ticket.
	Process(ctx context.Context, ticket *models.Ticket, logDir string) (*Result, error)
}

// Registry holds named handlers in registration order.
type Registry struct {
	handlers map[string]Handler
	order    []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// DefaultRegistry returns a Registry with the built-in handlers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(MustGatherName, NewMustGatherHandler())
	return r
}

// Register adds h under name.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("register %q: name and handler are required", name)
	}
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateHandler)
	}
	r.handlers[name] = h
	r.order = append(r.order, name)
	return nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Run processes ticket with the named handlers, or with every handler when
// no names are given. A failing handler does not stop the others; all
// failures are returned together.
func (r *Registry) Run(ctx context.Context, ticket *models.Ticket, logDir string, names ...string) ([]Result, error) {
	if len(names) == 0 {
		names = r.order
	}

	var (
		results []Result
		errs    []error
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		h, ok := r.handlers[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%q: %w", name, ErrUnknownHandler))
			continue
		}

		start := time.Now()
		result, err := h.Process(ctx, ticket, logDir)
		if err != nil {
			logging.Error("signature handler failed",
				"handler", name,
				"ticket", ticket.Key,
				"error", err)
			errs = append(errs, fmt.Errorf("handler %s on %s: %w", name, ticket.Key, err))
			continue
		}
		if result == nil {
			result = &Result{}
		}
		result.Handler, result.Ticket = name, ticket.Key

		logging.Debug("signature handler finished",
			"handler", name,
			"ticket", ticket.Key,
			"matched", result.Matched,
			"duration", time.Since(start).Round(time.Millisecond))
		results = append(results, *result)
	}
	return results, errors.Join(errs...)
}
