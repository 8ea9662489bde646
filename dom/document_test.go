package dom_test

import (
	"runtime"
	"strings"
	"testing"
	"time"
	"weak"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/fitbox/dom"
	"github.com/ByLCY/fitbox/style"
)

func TestTreeAndIndex(t *testing.T) {
	doc := dom.NewDocument(320, 200)
	card := doc.CreateElement("Box", "card", "a", "b")
	title := doc.CreateElement("box", "")
	_, err := uuid.Parse(title.ID())
	require.NoError(t, err, "empty ids are generated")

	_, ok := doc.ByID("card")
	assert.False(t, ok, "detached elements are not indexed")

	doc.Root().AppendChild(card)
	card.AppendChild(title)
	assert.True(t, title.Connected())
	assert.Equal(t, "box", card.Tag())
	assert.Equal(t, []string{"a", "b"}, card.Classes())
	got, ok := doc.ByID(title.ID())
	require.True(t, ok)
	assert.Same(t, title, got)

	var order []string
	doc.Root().Walk(func(e *dom.Element) bool {
		order = append(order, e.ID())
		return true
	})
	assert.Equal(t, []string{"root", "card", title.ID()}, order)

	doc.Root().RemoveChild(card)
	assert.False(t, title.Connected())
	_, ok = doc.ByID(title.ID())
	assert.False(t, ok)
	assert.Nil(t, doc.Root().RemoveChild(card))
}

func TestInlineStyleIsNotAMutation(t *testing.T) {
	doc := dom.NewDocument(100, 100)
	el := doc.CreateElement("box", "x")
	doc.Root().AppendChild(el)

	var got []dom.Mutation
	obs := doc.Observe(el, func(ms []dom.Mutation) { got = append(got, ms...) })
	defer obs.Disconnect()

	el.SetInlineStyle(style.FontSize, "10px")
	el.SetInlineStyle(style.FontSize, "")
	assert.Empty(t, got)
	assert.Empty(t, el.Inline())
}

func TestObserveSubtree(t *testing.T) {
	doc := dom.NewDocument(100, 100)
	parent := doc.CreateElement("box", "p")
	child := doc.CreateElement("box", "c")
	doc.Root().AppendChild(parent)
	parent.AppendChild(child)

	var got []dom.Mutation
	obs := doc.Observe(parent, func(ms []dom.Mutation) { got = append(got, ms...) })

	child.SetText("hello")
	child.SetText("hello") // unchanged
	extra := doc.CreateElement("box", "e")
	parent.AppendChild(extra)
	extra.SetText("detached? no, connected")
	sibling := doc.CreateElement("box", "s")
	doc.Root().AppendChild(sibling) // outside the subtree

	require.Len(t, got, 3)
	assert.Equal(t, dom.MutationCharacterData, got[0].Type)
	assert.Equal(t, "", got[0].OldValue)
	assert.Same(t, child, got[0].Target)
	assert.Equal(t, dom.MutationChildList, got[1].Type)
	assert.Equal(t, []*dom.Element{extra}, got[1].Added)
	assert.Equal(t, "childList", got[1].Type.String())

	obs.Disconnect()
	obs.Disconnect()
	child.SetText("bye")
	assert.Len(t, got, 3)
	assert.Equal(t, 0, doc.Observers())
}

func TestDetachedChangesAreSilent(t *testing.T) {
	doc := dom.NewDocument(100, 100)
	calls := 0
	doc.Observe(doc.Root(), func([]dom.Mutation) { calls++ })
	el := doc.CreateElement("box", "x")
	el.SetText("not in the tree")
	assert.Equal(t, 0, calls)
}

func TestResizeListeners(t *testing.T) {
	doc := dom.NewDocument(100, 100)
	var seen [][2]float64
	remove := doc.OnResize(func(w, h float64) { seen = append(seen, [2]float64{w, h}) })
	assert.Equal(t, 1, doc.ResizeListeners())

	doc.SetViewport(100, 100) // unchanged
	doc.SetViewport(200, 50)
	w, h := doc.Viewport()
	assert.Equal(t, [2]float64{200, 50}, [2]float64{w, h})
	assert.Equal(t, [][2]float64{{200, 50}}, seen)

	remove()
	doc.SetViewport(1, 1)
	assert.Len(t, seen, 1)
	assert.Equal(t, 0, doc.ResizeListeners())
}

func TestDump(t *testing.T) {
	doc := dom.NewDocument(100, 100)
	card := doc.CreateElement("box", "card")
	title := doc.CreateElement("box", "title")
	title.SetText("Hi")
	doc.Root().AppendChild(card)
	card.AppendChild(title)
	title.SetInlineStyle(style.FontSize, "12.00px")

	var sb strings.Builder
	require.NoError(t, doc.Dump(&sb, func(e *dom.Element) string { return e.InlineStyle(style.FontSize) }))
	out := sb.String()
	assert.Contains(t, out, "view#root")
	assert.Contains(t, out, "box#card")
	assert.Contains(t, out, `box#title "Hi" 12.00px`)
}

// 移除后的子元素不应被父元素的 children 底层数组继续引用。
func TestRemovedChildIsCollectable(t *testing.T) {
	doc := dom.NewDocument(100, 100)
	wp := appendAndRemove(doc)

	deadline := time.Now().Add(2 * time.Second)
	for wp.Value() != nil && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	assert.Nil(t, wp.Value(), "removed element must not stay reachable from its old parent")
	require.Len(t, doc.Root().Children(), 1)
	assert.Equal(t, "keep", doc.Root().Children()[0].ID())
}

//go:noinline
func appendAndRemove(doc *dom.Document) weak.Pointer[dom.Element] {
	keep := doc.CreateElement("box", "keep")
	gone := doc.CreateElement("box", "gone")
	doc.Root().AppendChild(keep)
	doc.Root().AppendChild(gone)
	doc.Root().RemoveChild(gone)
	return weak.Make(gone)
}
