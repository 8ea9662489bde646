package view_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/fitbox/directive"
	"github.com/ByLCY/fitbox/dom"
	"github.com/ByLCY/fitbox/dsl"
	"github.com/ByLCY/fitbox/fit"
	"github.com/ByLCY/fitbox/layout"
	"github.com/ByLCY/fitbox/style"
	"github.com/ByLCY/fitbox/view"
)

type monoTypesetter struct{}

func (monoTypesetter) LayoutLines(content string, _ float64, _ layout.FontResource, fontSize, _ float64, _ string) ([]layout.TextLine, error) {
	w := float64(utf8.RuneCountInString(content)) * fontSize * 0.5
	return []layout.TextLine{{Content: content, Width: w, Height: fontSize}}, nil
}

// recorder 记录钩子调用顺序。
type recorder struct {
	calls []string
	fail  error
}

func (r *recorder) Attach(el *dom.Element) error {
	r.calls = append(r.calls, "attach:"+el.ID())
	return nil
}

func (r *recorder) Update(el *dom.Element) error {
	r.calls = append(r.calls, "update:"+el.ID())
	return r.fail
}

func (r *recorder) Detach(el *dom.Element) error {
	r.calls = append(r.calls, "detach:"+el.ID())
	return nil
}

const cardDSL = `
doc Card v1 {
  meta { title: "Badge" author: "ops" }
  resources {
    font Body { src: "builtin:lmsans10" }
    color Accent = #0F62FE
    stylesheet { source: ".title { font-size: 20px; line-height: 1; max-width: 100px; white-space: nowrap; color: Accent }" }
  }
  view 400px 300px {
    box id card {
      use trace
      box id title class "title" {
        use overflow-resize trace
        "Hello, ${user.name}"
      }
      box id note { use trace; "static" }
    }
  }
}
`

func mountCard(t *testing.T, data any) (*view.View, *recorder) {
	t.Helper()
	doc, err := dsl.ParseString(cardDSL)
	require.NoError(t, err)

	rec := &recorder{}
	reg := view.NewRegistry()
	reg.RegisterHooks("trace", rec)
	reg.Register("overflow-resize", view.OverflowResize(fit.Options{}, directive.Options{}))

	v, err := view.Mount(doc, data, view.Options{Registry: reg, Typesetter: monoTypesetter{}})
	require.NoError(t, err)
	return v, rec
}

func user(name string) map[string]any {
	return map[string]any{"user": map[string]any{"name": name}}
}

func TestMountBuildsTree(t *testing.T) {
	v, rec := mountCard(t, user("Ada"))

	title, ok := v.Element("title")
	require.True(t, ok)
	assert.Equal(t, "Hello, Ada", title.Text())
	assert.Equal(t, []string{"title"}, title.Classes())
	assert.Equal(t, []string{"overflow-resize", "trace"}, v.Directives(title))

	w, h := v.Document().Viewport()
	assert.Equal(t, 400.0, w)
	assert.Equal(t, 300.0, h)
	assert.Equal(t, []string{"attach:card", "attach:title", "attach:note"}, rec.calls)

	res, err := v.Layout()
	require.NoError(t, err)
	assert.Equal(t, "Badge", res.Meta.Title)
	box, ok := res.Find("title")
	require.True(t, ok)
	assert.Equal(t, layout.Color{R: 0x0F, G: 0x62, B: 0xFE}, box.Color)
}

func TestRenderFitsAndUpdatesParentsFirst(t *testing.T) {
	v, rec := mountCard(t, user("Ada"))
	title, _ := v.Element("title")

	rec.calls = nil
	require.NoError(t, v.Render(user("Ada")))
	// "Hello, Ada" 10 个字符 = 100px，恰好放下
	assert.Empty(t, title.InlineStyle(style.FontSize))
	assert.Equal(t, []string{"update:card", "update:title", "update:note"}, rec.calls)

	// "Hello, Ada Lovelace" 19 个字符 = 190px
	require.NoError(t, v.Render(user("Ada Lovelace")))
	assert.Equal(t, "Hello, Ada Lovelace", title.Text())
	assert.Equal(t, style.FormatPX(20*100.0/190.0), title.InlineStyle(style.FontSize))

	require.NoError(t, v.Render(user("Bo")))
	assert.Empty(t, title.InlineStyle(style.FontSize), "short text goes back to the natural size")
}

func TestRenderRebindsOnlyChangedTexts(t *testing.T) {
	v, _ := mountCard(t, user("Ada"))
	title, _ := v.Element("title")
	note, _ := v.Element("note")

	var changed []string
	obs := v.Document().Observe(v.Document().Root(), func(ms []dom.Mutation) {
		for _, m := range ms {
			changed = append(changed, m.Target.ID())
		}
	})
	defer obs.Disconnect()

	// 数据未变时不重新插值，外部改写的文本保留
	title.SetText("edited")
	changed = nil
	require.NoError(t, v.Render(user("Ada")))
	assert.Equal(t, "edited", title.Text())
	assert.Empty(t, changed)

	require.NoError(t, v.Render(user("Grace")))
	assert.Equal(t, "Hello, Grace", title.Text())
	assert.Equal(t, "static", note.Text())
	assert.Equal(t, []string{"title"}, changed)
}

func TestRenderJoinsUpdateErrors(t *testing.T) {
	v, rec := mountCard(t, nil)
	boom := errors.New("boom")
	rec.fail = boom
	err := v.Render(user("Ada"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRemoveDetachesChildrenFirst(t *testing.T) {
	v, rec := mountCard(t, nil)
	card, _ := v.Element("card")
	rec.calls = nil

	require.NoError(t, v.Remove(card))
	assert.Equal(t, []string{"detach:note", "detach:title", "detach:card"}, rec.calls)
	_, ok := v.Element("title")
	assert.False(t, ok)

	rec.calls = nil
	require.NoError(t, v.Render(nil))
	assert.Empty(t, rec.calls)

	assert.Error(t, v.Remove(v.Document().Root()))
	assert.Error(t, v.Remove(card), "already removed")
}

func TestResizeAndUnmount(t *testing.T) {
	v, rec := mountCard(t, nil)
	require.NoError(t, v.Resize(800, 600))
	w, _ := v.Document().Viewport()
	assert.Equal(t, 800.0, w)

	rec.calls = nil
	require.NoError(t, v.Unmount())
	assert.Equal(t, []string{"detach:note", "detach:title", "detach:card"}, rec.calls)
	assert.ErrorIs(t, v.Render(nil), view.ErrUnmounted)
	assert.ErrorIs(t, v.Resize(1, 1), view.ErrUnmounted)
	assert.NoError(t, v.Unmount())
}

func TestUnknownDirective(t *testing.T) {
	doc, err := dsl.ParseString(`doc T v1 { view { box { use nope } } }`)
	require.NoError(t, err)
	_, err = view.Mount(doc, nil, view.Options{Registry: view.NewRegistry(), Typesetter: monoTypesetter{}})
	assert.ErrorIs(t, err, view.ErrUnknownDirective)
}

func TestDuplicateID(t *testing.T) {
	doc, err := dsl.ParseString(`doc T v1 { view { box id a { } box id a { } } }`)
	require.NoError(t, err)
	_, err = view.Mount(doc, nil, view.Options{Typesetter: monoTypesetter{}})
	assert.Error(t, err)
}

func TestStylesheetFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "card.css"), []byte(`#t { max-height: 40px }`), 0o644))
	doc, err := dsl.ParseString(`doc T v1 {
  resources { stylesheet { src: "card.css" } }
  view 1in 1in { box id t { "x" } }
}`)
	require.NoError(t, err)

	v, err := view.Mount(doc, nil, view.Options{Typesetter: monoTypesetter{}, BaseDir: dir})
	require.NoError(t, err)
	el, _ := v.Element("t")
	assert.Equal(t, "40px", v.Engine().ComputedValue(el, style.MaxHeight))
	w, _ := v.Document().Viewport()
	assert.Equal(t, 96.0, w)

	_, err = view.Mount(doc, nil, view.Options{Typesetter: monoTypesetter{}})
	assert.Error(t, err, "relative stylesheet path needs a base dir")
}
