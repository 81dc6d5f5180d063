package triggers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dreka/internal/metrics"

	"go.uber.org/zap"
)

type registration struct {
	name string
	fn   HandlerFunc
}

type Dispatcher struct {
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	handlers map[EventSpec][]registration
}

func NewDispatcher(logger *zap.SugaredLogger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		metrics:  m,
		handlers: make(map[EventSpec][]registration),
	}
}

func (d *Dispatcher) RegisterHandler(spec EventSpec, name string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[spec] = append(d.handlers[spec], registration{name: name, fn: fn})
	d.logger.Infow("trigger handler registered", "handler", name, "collection", spec.Collection, "kind", spec.Kind)
}

// Handlers returns the names registered for spec, in registration order.
func (d *Dispatcher) Handlers(spec EventSpec) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers[spec]))
	for _, r := range d.handlers[spec] {
		names = append(names, r.name)
	}
	return names
}

// Collections returns every collection some handler listens on.
func (d *Dispatcher) Collections() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for spec := range d.handlers {
		if _, ok := seen[spec.Collection]; ok {
			continue
		}
		seen[spec.Collection] = struct{}{}
		out = append(out, spec.Collection)
	}
	return out
}

// Dispatch runs every handler registered for the event's collection and
// kind once, in registration order. A panicking handler is logged and does
// not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	d.mu.RLock()
	regs := d.handlers[ev.Spec()]
	d.mu.RUnlock()

	d.metrics.ObserveEvent(ev.Collection, string(ev.Kind))
	if len(regs) == 0 {
		return
	}

	for _, r := range regs {
		d.invoke(ctx, r, ev)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, r registration, ev Event) {
	start := time.Now()
	defer func() {
		d.metrics.ObserveHandler(r.name, time.Since(start))
		if p := recover(); p != nil {
			d.metrics.ObservePanic(r.name)
			d.logger.Errorw("trigger handler panicked",
				"handler", r.name,
				"event", ev.ID,
				"document", ev.DocumentID,
				"panic", fmt.Sprint(p),
			)
		}
	}()
	r.fn(ctx, ev)
}

// Run pumps src into the dispatcher until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, src Source) error {
	return src.Run(ctx, func(ctx context.Context, ev Event) error {
		d.Dispatch(ctx, ev)
		return nil
	})
}
