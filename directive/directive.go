// Package directive binds the fit resolver to an element's lifecycle: attach,
// update after re-render, detach. Bindings are keyed weakly so an element that
// is dropped without Detach does not stay alive because of its binding.
package directive

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"weak"

	"github.com/ByLCY/fitbox/dom"
	"github.com/ByLCY/fitbox/fit"
)

// ErrNotAttached is returned by Update for an element without a binding.
var ErrNotAttached = errors.New("directive: element is not attached")

// Hooks is the lifecycle a view framework drives for a directive.
type Hooks interface {
	// Attach is called once the element is in the tree.
	Attach(el *dom.Element) error
	// Update is called after the element and its children re-rendered.
	Update(el *dom.Element) error
	// Detach is called before the element leaves the tree.
	Detach(el *dom.Element) error
}

// Trigger selects which events re-run the fit besides explicit updates.
type Trigger uint8

const (
	TriggerUpdate Trigger = 1 << iota
	TriggerResize
	TriggerMutation
)

func (t Trigger) String() string {
	var parts []string
	if t&TriggerUpdate != 0 {
		parts = append(parts, "update")
	}
	if t&TriggerResize != 0 {
		parts = append(parts, "resize")
	}
	if t&TriggerMutation != 0 {
		parts = append(parts, "mutation")
	}
	return strings.Join(parts, ",")
}

// ParseTriggers parses a comma separated list such as "update,resize".
func ParseTriggers(v string) (Trigger, error) {
	var t Trigger
	for _, part := range strings.Split(v, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "update":
			t |= TriggerUpdate
		case "resize":
			t |= TriggerResize
		case "mutation":
			t |= TriggerMutation
		default:
			return 0, fmt.Errorf("directive: unknown trigger %q", part)
		}
	}
	return t, nil
}

// Options configures OverflowResize.
type Options struct {
	// Triggers defaults to TriggerUpdate. Without TriggerUpdate, Update only
	// checks the attachment and the fit runs on the other triggers alone.
	Triggers Trigger
	// FitOnAttach runs the fit once right after Attach.
	FitOnAttach bool
	// OnFit, when set, receives every outcome.
	OnFit  func(el *dom.Element, out fit.Outcome)
	Logger *slog.Logger
}

type binding struct {
	handler func() error
	release func()
}

// OverflowResize shrinks the element's font size to its max-width/max-height
// whenever it is updated (and, optionally, resized or mutated).
type OverflowResize struct {
	fit  *fit.Resolver
	doc  *dom.Document
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	bindings map[weak.Pointer[dom.Element]]*binding
	orphaned []func()
}

var _ Hooks = (*OverflowResize)(nil)

// NewOverflowResize creates the directive for elements of doc.
func NewOverflowResize(doc *dom.Document, resolver *fit.Resolver, opts Options) *OverflowResize {
	if opts.Triggers == 0 {
		opts.Triggers = TriggerUpdate
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &OverflowResize{
		fit:      resolver,
		doc:      doc,
		opts:     opts,
		log:      log.With("directive", "overflow-resize"),
		bindings: map[weak.Pointer[dom.Element]]*binding{},
	}
}

// Attach records the binding and registers the configured triggers.
// Attaching an element twice replaces the earlier binding.
func (d *OverflowResize) Attach(el *dom.Element) error {
	if el == nil {
		return fmt.Errorf("directive: attach nil element")
	}
	d.sweep()
	key := weak.Make(el)
	if prev := d.take(key); prev != nil {
		prev.release()
	}

	b := &binding{}
	b.handler = func() error {
		target := key.Value()
		if target == nil {
			return ErrNotAttached
		}
		out, err := d.fit.Apply(target)
		if err != nil {
			return fmt.Errorf("directive: fit %s: %w", target.ID(), err)
		}
		if d.opts.OnFit != nil {
			d.opts.OnFit(target, out)
		}
		d.log.Debug("fit applied", "id", target.ID(), "applied", out.Applied, "ratio", out.Final, "font_size", out.FontSize)
		return nil
	}

	var releases []func()
	if d.opts.Triggers&TriggerResize != 0 {
		var remove func()
		remove = d.doc.OnResize(func(w, h float64) {
			if key.Value() == nil {
				remove()
				return
			}
			d.run(b, "resize")
		})
		releases = append(releases, remove)
	}
	if d.opts.Triggers&TriggerMutation != 0 {
		// 观察期间 observer 持有元素，Detach 之前元素不会被回收
		obs := d.doc.Observe(el, func([]dom.Mutation) { d.run(b, "mutation") })
		releases = append(releases, obs.Disconnect)
	}
	b.release = func() {
		for _, fn := range releases {
			fn()
		}
	}

	d.mu.Lock()
	d.bindings[key] = b
	d.mu.Unlock()
	runtime.AddCleanup(el, d.forget, key)

	if d.opts.FitOnAttach {
		return b.handler()
	}
	return nil
}

// Update re-runs the fit for an attached element when TriggerUpdate is set.
func (d *OverflowResize) Update(el *dom.Element) error {
	if el == nil {
		return ErrNotAttached
	}
	d.sweep()
	d.mu.Lock()
	b, ok := d.bindings[weak.Make(el)]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAttached, el.ID())
	}
	if d.opts.Triggers&TriggerUpdate == 0 {
		return nil
	}
	return b.handler()
}

// Detach releases the binding's registrations. Unknown elements are ignored.
func (d *OverflowResize) Detach(el *dom.Element) error {
	if el == nil {
		return nil
	}
	d.sweep()
	if b := d.take(weak.Make(el)); b != nil {
		b.release()
	}
	return nil
}

// Bound reports whether el currently has a binding.
func (d *OverflowResize) Bound(el *dom.Element) bool {
	if el == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.bindings[weak.Make(el)]
	return ok
}

// Len returns the number of live bindings.
func (d *OverflowResize) Len() int {
	d.sweep()
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bindings)
}

func (d *OverflowResize) run(b *binding, source string) {
	if err := b.handler(); err != nil && !errors.Is(err, ErrNotAttached) {
		d.log.Warn("fit failed", "trigger", source, "error", err)
	}
}

func (d *OverflowResize) take(key weak.Pointer[dom.Element]) *binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.bindings[key]
	if !ok {
		return nil
	}
	delete(d.bindings, key)
	return b
}

// forget runs on the runtime's cleanup goroutine: it only drops the entry and
// defers releasing registrations to the caller's goroutine.
func (d *OverflowResize) forget(key weak.Pointer[dom.Element]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.bindings[key]; ok {
		delete(d.bindings, key)
		d.orphaned = append(d.orphaned, b.release)
	}
}

func (d *OverflowResize) sweep() {
	d.mu.Lock()
	pending := d.orphaned
	d.orphaned = nil
	d.mu.Unlock()
	for _, release := range pending {
		release()
	}
}
