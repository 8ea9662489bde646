package view

import (
	"log/slog"
	"sort"

	"github.com/ByLCY/fitbox/directive"
	"github.com/ByLCY/fitbox/dom"
	"github.com/ByLCY/fitbox/fit"
	"github.com/ByLCY/fitbox/layout"
)

// Env 是挂载时传给指令工厂的上下文。
type Env struct {
	Document *dom.Document
	Engine   *layout.Engine
	Logger   *slog.Logger
}

// Factory 为一次挂载创建指令实例，同一视图内每个名字只调用一次。
type Factory func(env Env) (directive.Hooks, error)

// Registry 保存按名字注册的指令，`use <name>` 在这里查找。
type Registry struct {
	factories map[string]Factory
}

// NewRegistry 创建空的指令注册表。
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register 注册指令工厂，同名覆盖。
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// RegisterHooks 注册一个所有视图共享的指令实例。
func (r *Registry) RegisterHooks(name string, hooks directive.Hooks) {
	r.Register(name, func(Env) (directive.Hooks, error) { return hooks, nil })
}

// Names 返回已注册的指令名，按字母排序。
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) lookup(name string) (Factory, bool) {
	if r == nil {
		return nil, false
	}
	f, ok := r.factories[name]
	return f, ok
}

// OverflowResize 返回 overflow-resize 指令的工厂，每个视图拥有独立的 Resolver。
func OverflowResize(fitOpts fit.Options, opts directive.Options) Factory {
	return func(env Env) (directive.Hooks, error) {
		if fitOpts.Logger == nil {
			fitOpts.Logger = env.Logger
		}
		if opts.Logger == nil {
			opts.Logger = env.Logger
		}
		return directive.NewOverflowResize(env.Document, fit.New(env.Engine, fitOpts), opts), nil
	}
}
