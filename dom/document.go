package dom

import (
	"fmt"
	"io"

	"github.com/xlab/treeprint"
)

// MutationType names the kind of subtree change.
type MutationType int

const (
	MutationCharacterData MutationType = iota
	MutationChildList
)

func (t MutationType) String() string {
	if t == MutationChildList {
		return "childList"
	}
	return "characterData"
}

// Mutation records one change below an observed element.
type Mutation struct {
	Type     MutationType
	Target   *Element
	Added    []*Element
	Removed  []*Element
	OldValue string
}

// Document owns the element tree and the viewport.
type Document struct {
	root   *Element
	width  float64
	height float64
	byID   map[string]*Element

	nextListener int
	resize       map[int]func(width, height float64)
	observers    []*Observer
}

// NewDocument creates a document with an empty root element sized to the
// viewport (px).
func NewDocument(width, height float64) *Document {
	d := &Document{
		width:  width,
		height: height,
		byID:   map[string]*Element{},
		resize: map[int]func(float64, float64){},
	}
	d.root = newElement(d, "view", "root", nil)
	d.byID[d.root.ID()] = d.root
	return d
}

// CreateElement makes a detached element; an empty id gets a generated one.
func (d *Document) CreateElement(tag, id string, classes ...string) *Element {
	return newElement(d, tag, id, classes)
}

// Root returns the root element.
func (d *Document) Root() *Element { return d.root }

// ByID returns a connected element by id.
func (d *Document) ByID(id string) (*Element, bool) {
	e, ok := d.byID[id]
	return e, ok
}

// Viewport returns the viewport size in px.
func (d *Document) Viewport() (float64, float64) { return d.width, d.height }

// SetViewport resizes the viewport and notifies resize listeners.
func (d *Document) SetViewport(width, height float64) {
	if width == d.width && height == d.height {
		return
	}
	d.width, d.height = width, height
	listeners := make([]func(float64, float64), 0, len(d.resize))
	for i := 0; i < d.nextListener; i++ {
		if fn, ok := d.resize[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	for _, fn := range listeners {
		fn(width, height)
	}
}

// OnResize registers fn for viewport changes; the returned func removes it.
func (d *Document) OnResize(fn func(width, height float64)) (remove func()) {
	id := d.nextListener
	d.nextListener++
	d.resize[id] = fn
	return func() { delete(d.resize, id) }
}

// ResizeListeners returns the number of registered resize listeners.
func (d *Document) ResizeListeners() int { return len(d.resize) }

// Observer delivers subtree mutations of one element.
type Observer struct {
	doc    *Document
	target *Element
	fn     func([]Mutation)
}

// Observe watches character data and child list changes in el's subtree.
func (d *Document) Observe(el *Element, fn func([]Mutation)) *Observer {
	o := &Observer{doc: d, target: el, fn: fn}
	d.observers = append(d.observers, o)
	return o
}

// Disconnect stops delivery. It is safe to call more than once.
func (o *Observer) Disconnect() {
	if o == nil || o.doc == nil {
		return
	}
	obs := o.doc.observers
	for i, x := range obs {
		if x == o {
			o.doc.observers = append(obs[:i:i], obs[i+1:]...)
			break
		}
	}
	o.doc = nil
}

// Observers returns the number of active observers.
func (d *Document) Observers() int { return len(d.observers) }

func (d *Document) notify(m Mutation) {
	if d == nil || !m.Target.Connected() {
		return
	}
	active := make([]*Observer, len(d.observers))
	copy(active, d.observers)
	for _, o := range active {
		if o.doc == nil || !o.target.Contains(m.Target) {
			continue
		}
		o.fn([]Mutation{m})
	}
}

func (d *Document) index(el *Element) {
	if !el.Connected() {
		return
	}
	el.Walk(func(e *Element) bool {
		d.byID[e.ID()] = e
		return true
	})
}

func (d *Document) unindex(el *Element) {
	el.Walk(func(e *Element) bool {
		if d.byID[e.ID()] == e {
			delete(d.byID, e.ID())
		}
		return true
	})
}

// Dump prints the tree. label adds per-element detail and may be nil.
func (d *Document) Dump(w io.Writer, label func(*Element) string) error {
	tree := treeprint.New()
	tree.SetValue(describe(d.root, label))
	var add func(branch treeprint.Tree, e *Element)
	add = func(branch treeprint.Tree, e *Element) {
		for _, c := range e.children {
			if len(c.children) == 0 {
				branch.AddNode(describe(c, label))
				continue
			}
			add(branch.AddBranch(describe(c, label)), c)
		}
	}
	add(tree, d.root)
	_, err := io.WriteString(w, tree.String())
	return err
}

func describe(e *Element, label func(*Element) string) string {
	s := fmt.Sprintf("%s#%s", e.Tag(), e.ID())
	if txt := e.text; txt != "" {
		s += fmt.Sprintf(" %q", txt)
	}
	if label != nil {
		if extra := label(e); extra != "" {
			s += " " + extra
		}
	}
	return s
}
