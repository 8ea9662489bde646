// Package dom is the element tree the fitting directive operates on.
//
// Elements are backed by golang.org/x/net/html nodes so that stylesheet
// selectors match them directly. The tree is owned by a Document; inline
// style changes are not reported as mutations.
package dom

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/ByLCY/fitbox/style"
)

// Element is a node of the view tree.
type Element struct {
	doc      *Document
	node     *html.Node
	parent   *Element
	children []*Element
	text     string
	inline   style.Declarations
}

// Tag returns the element name, e.g. "box".
func (e *Element) Tag() string { return e.node.Data }

// ID returns the element id (author supplied or generated).
func (e *Element) ID() string { return e.attr("id") }

// Classes returns the class list.
func (e *Element) Classes() []string { return strings.Fields(e.attr("class")) }

// Node exposes the backing html node for selector matching.
func (e *Element) Node() *html.Node { return e.node }

// Document returns the owning document.
func (e *Element) Document() *Document { return e.doc }

// Parent returns the parent element or nil for the root and detached elements.
func (e *Element) Parent() *Element { return e.parent }

// Children returns a copy of the child list.
func (e *Element) Children() []*Element {
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// Text returns the element's own text content.
func (e *Element) Text() string { return e.text }

// SetText replaces the text content and reports a character data mutation
// when the text changed on a connected element.
func (e *Element) SetText(text string) {
	if e.text == text {
		return
	}
	old := e.text
	e.text = text
	e.doc.notify(Mutation{Type: MutationCharacterData, Target: e, OldValue: old})
}

// InlineStyle returns the inline value of property or "".
func (e *Element) InlineStyle(property string) string { return e.inline.Get(property) }

// SetInlineStyle sets an inline property; an empty value clears it.
func (e *Element) SetInlineStyle(property, value string) { e.inline.Set(property, value) }

// Inline returns a copy of all inline declarations.
func (e *Element) Inline() style.Declarations { return e.inline.Clone() }

// AppendChild moves child under e.
func (e *Element) AppendChild(child *Element) {
	if child == nil || child == e {
		return
	}
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	child.parent = e
	e.children = append(e.children, child)
	e.node.AppendChild(child.node)
	e.doc.index(child)
	e.doc.notify(Mutation{Type: MutationChildList, Target: e, Added: []*Element{child}})
}

// RemoveChild detaches child from e. It returns nil when child is not a child of e.
func (e *Element) RemoveChild(child *Element) *Element {
	for i, c := range e.children {
		if c != child {
			continue
		}
		// slices.Delete 清零尾部槽位，被移除的元素才能被回收
		e.children = slices.Delete(e.children, i, i+1)
		e.node.RemoveChild(child.node)
		child.parent = nil
		e.doc.unindex(child)
		e.doc.notify(Mutation{Type: MutationChildList, Target: e, Removed: []*Element{child}})
		return child
	}
	return nil
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	for n := other; n != nil; n = n.parent {
		if n == e {
			return true
		}
	}
	return false
}

// Connected reports whether e is reachable from the document root.
func (e *Element) Connected() bool {
	return e.doc != nil && e.doc.root != nil && e.doc.root.Contains(e)
}

// Walk visits e and its descendants depth first, parents before children.
// Returning false from fn skips the subtree.
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children() {
		c.Walk(fn)
	}
}

func (e *Element) attr(key string) string {
	for _, a := range e.node.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func newElement(doc *Document, tag, id string, classes []string) *Element {
	if id == "" {
		id = uuid.NewString()
	}
	node := &html.Node{Type: html.ElementNode, Data: strings.ToLower(tag)}
	node.Attr = append(node.Attr, html.Attribute{Key: "id", Val: id})
	if len(classes) > 0 {
		node.Attr = append(node.Attr, html.Attribute{Key: "class", Val: strings.Join(classes, " ")})
	}
	return &Element{doc: doc, node: node, inline: style.Declarations{}}
}
