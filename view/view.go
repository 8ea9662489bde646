// Package view mounts a parsed document as an element tree and drives the
// directives named by `use`: attach on mount, update after every render,
// detach on removal.
package view

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ByLCY/fitbox/binding"
	"github.com/ByLCY/fitbox/directive"
	"github.com/ByLCY/fitbox/dom"
	"github.com/ByLCY/fitbox/dsl"
	"github.com/ByLCY/fitbox/layout"
	"github.com/ByLCY/fitbox/style"
)

var (
	// ErrUnknownDirective is returned by Mount for a `use` name missing from the registry.
	ErrUnknownDirective = errors.New("view: unknown directive")
	// ErrUnmounted is returned by operations on an unmounted view.
	ErrUnmounted = errors.New("view: unmounted")
)

const (
	defaultWidth  = 640.0
	defaultHeight = 480.0
)

// Options configures Mount.
type Options struct {
	Registry   *Registry
	Typesetter layout.Typesetter
	// BaseDir 用于解析样式表等相对路径
	BaseDir string
	Logger  *slog.Logger
}

// View is a mounted document.
type View struct {
	doc    *dom.Document
	engine *layout.Engine
	log    *slog.Logger

	data    any
	nodes   []*node // 先父后子
	byEl    map[*dom.Element]*node
	mounted bool
}

type node struct {
	el       *dom.Element
	template string
	uses     []use
}

type use struct {
	name  string
	hooks directive.Hooks
}

// Mount builds the element tree of doc's view section, interpolates texts with
// data and attaches the directives in tree order.
func Mount(doc *dsl.Document, data any, opts Options) (*View, error) {
	if doc == nil {
		return nil, fmt.Errorf("view: 文档为空")
	}
	section := doc.View()
	if section == nil {
		return nil, fmt.Errorf("view: 文档 %s 缺少 view 段", doc.Name)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	res, err := collectResources(doc, opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("view: 收集资源失败: %w", err)
	}
	width, height, err := viewportSize(section.Size)
	if err != nil {
		return nil, err
	}

	d := dom.NewDocument(width, height)
	engine, err := layout.NewEngine(d, layout.Options{
		Typesetter: opts.Typesetter,
		Sheet:      res.sheet,
		Fonts:      res.fonts,
		Colors:     res.colors,
		Meta:       res.meta,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	v := &View{
		doc:     d,
		engine:  engine,
		log:     log,
		data:    data,
		byEl:    map[*dom.Element]*node{},
		mounted: true,
	}
	b := &builder{
		view:     v,
		registry: opts.Registry,
		env:      Env{Document: d, Engine: engine, Logger: log},
		hooks:    map[string]directive.Hooks{},
	}
	root := v.track(d.Root())
	if err := b.block(section.Block, root); err != nil {
		return nil, err
	}

	for i, n := range v.nodes {
		for _, u := range n.uses {
			if err := u.hooks.Attach(n.el); err != nil {
				// 回滚已挂载的指令
				v.detachAll(v.nodes[:i+1])
				return nil, fmt.Errorf("view: 挂载指令 %s 到 %s 失败: %w", u.name, n.el.ID(), err)
			}
		}
	}
	log.Debug("view mounted", "doc", doc.Name, "elements", len(v.nodes), "width", width, "height", height)
	return v, nil
}

// Render re-interpolates bound texts whose output differs from the previous
// data, then updates every directive-bearing element, parents before children.
func (v *View) Render(data any) error {
	if !v.mounted {
		return ErrUnmounted
	}
	previous := v.data
	v.data = data
	for _, n := range v.nodes {
		if !binding.Changed(n.template, data, previous) {
			continue
		}
		v.log.Debug("text rebound", "id", n.el.ID(), "paths", binding.Paths(n.template))
		n.el.SetText(binding.Interpolate(n.template, data))
	}
	var errs []error
	for _, n := range v.nodes {
		for _, u := range n.uses {
			if err := u.hooks.Update(n.el); err != nil {
				errs = append(errs, fmt.Errorf("%s(%s): %w", u.name, n.el.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Resize changes the viewport; resize-triggered directives react synchronously.
func (v *View) Resize(width, height float64) error {
	if !v.mounted {
		return ErrUnmounted
	}
	v.doc.SetViewport(width, height)
	return nil
}

// Remove detaches the directives in el's subtree, children first, then
// removes el from the tree.
func (v *View) Remove(el *dom.Element) error {
	if !v.mounted {
		return ErrUnmounted
	}
	if el == nil || el == v.doc.Root() {
		return fmt.Errorf("view: 不能移除根元素")
	}
	if _, ok := v.byEl[el]; !ok || el.Parent() == nil {
		return fmt.Errorf("view: 元素 %s 不属于该视图", el.ID())
	}

	var removed, kept []*node
	for _, n := range v.nodes {
		if el.Contains(n.el) {
			removed = append(removed, n)
		} else {
			kept = append(kept, n)
		}
	}
	err := v.detachAll(removed)
	el.Parent().RemoveChild(el)
	for _, n := range removed {
		delete(v.byEl, n.el)
	}
	v.nodes = kept
	return err
}

// Unmount detaches every directive. The view cannot be used afterwards.
func (v *View) Unmount() error {
	if !v.mounted {
		return nil
	}
	v.mounted = false
	return v.detachAll(v.nodes)
}

// Document returns the mounted document.
func (v *View) Document() *dom.Document { return v.doc }

// Engine returns the layout engine measuring the document.
func (v *View) Engine() *layout.Engine { return v.engine }

// Data returns the data of the last render.
func (v *View) Data() any { return v.data }

// Element looks up a mounted element by id.
func (v *View) Element(id string) (*dom.Element, bool) { return v.doc.ByID(id) }

// Directives returns the directive names used on el in declaration order.
func (v *View) Directives(el *dom.Element) []string {
	n, ok := v.byEl[el]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(n.uses))
	for _, u := range n.uses {
		out = append(out, u.name)
	}
	return out
}

// Layout lays out the whole document for rendering.
func (v *View) Layout() (*layout.Result, error) { return v.engine.Layout() }

// detachAll 按子先于父的顺序卸载指令。
func (v *View) detachAll(nodes []*node) error {
	var errs []error
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		for j := len(n.uses) - 1; j >= 0; j-- {
			if err := n.uses[j].hooks.Detach(n.el); err != nil {
				errs = append(errs, fmt.Errorf("%s(%s): %w", n.uses[j].name, n.el.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (v *View) track(el *dom.Element) *node {
	n := &node{el: el}
	v.nodes = append(v.nodes, n)
	v.byEl[el] = n
	return n
}

// builder 将 view 段的语句转换为元素树。
type builder struct {
	view     *View
	registry *Registry
	env      Env
	hooks    map[string]directive.Hooks
}

func (b *builder) block(block *dsl.Block, n *node) error {
	if block == nil {
		return nil
	}
	var text strings.Builder
	for _, stmt := range block.Statements {
		switch {
		case stmt.Assignment != nil:
			n.el.SetInlineStyle(stmt.Assignment.Key, valueToString(stmt.Assignment.Value))
		case stmt.Text != nil:
			text.WriteString(string(stmt.Text.Value))
		case stmt.Command != nil && stmt.Command.Name == "use":
			if err := b.use(stmt.Command, n); err != nil {
				return err
			}
		case stmt.Command != nil:
			if err := b.element(stmt.Command, n); err != nil {
				return err
			}
		}
	}
	if text.Len() > 0 {
		n.template = text.String()
		n.el.SetText(binding.Interpolate(n.template, b.view.data))
	}
	return nil
}

func (b *builder) element(cmd *dsl.Command, parent *node) error {
	attrs := parseArgs(cmd.Args)
	var classes []string
	if c := attrs["class"]; c != "" {
		classes = strings.Fields(c)
	}
	el := b.view.doc.CreateElement(cmd.Name, attrs["id"], classes...)
	if _, dup := b.view.doc.ByID(el.ID()); dup {
		return fmt.Errorf("view: %s 元素 id %q 重复", cmd.Pos, el.ID())
	}
	parent.el.AppendChild(el)
	return b.block(cmd.Block, b.view.track(el))
}

func (b *builder) use(cmd *dsl.Command, n *node) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("view: %s use 缺少指令名", cmd.Pos)
	}
	for _, arg := range cmd.Args {
		name := arg.Value
		hooks, ok := b.hooks[name]
		if !ok {
			factory, found := b.registry.lookup(name)
			if !found {
				return fmt.Errorf("%w: %q at %s", ErrUnknownDirective, name, arg.Pos)
			}
			var err error
			hooks, err = factory(b.env)
			if err != nil {
				return fmt.Errorf("view: 创建指令 %s 失败: %w", name, err)
			}
			b.hooks[name] = hooks
		}
		n.uses = append(n.uses, use{name: name, hooks: hooks})
	}
	return nil
}

// parseArgs 把 `id title class "a b"` 形式的参数解析为键值对，落单的末尾参数被忽略。
func parseArgs(args []*dsl.Lexeme) map[string]string {
	out := map[string]string{}
	for i := 0; i+1 < len(args); i += 2 {
		out[args[i].Value] = args[i+1].Value
	}
	return out
}

// viewportSize 解析 `view 640px 480px`，缺省时使用 640x480。
func viewportSize(size []string) (float64, float64, error) {
	dims := []float64{defaultWidth, defaultHeight}
	for i, raw := range size {
		if i >= len(dims) {
			return 0, 0, fmt.Errorf("view: 视口尺寸参数过多: %v", size)
		}
		l, err := style.ParseLength(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("view: 视口尺寸: %w", err)
		}
		if !l.Absolute() && l.Unit != style.UnitNone {
			return 0, 0, fmt.Errorf("view: 视口尺寸必须是绝对长度: %s", raw)
		}
		if px := l.ToPX(0, 0); px > 0 {
			dims[i] = px
		}
	}
	return dims[0], dims[1], nil
}
