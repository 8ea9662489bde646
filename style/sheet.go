package style

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// Sheet is a parsed author stylesheet with pre-compiled selectors.
type Sheet struct {
	rules []rule
}

type rule struct {
	selectors cascadia.SelectorGroup
	decls     []*css.Declaration
	order     int
}

// ParseSheet parses CSS source with douceur. Only qualified rules take part in
// the cascade; at-rules are skipped.
func ParseSheet(source string) (*Sheet, error) {
	parsed, err := parser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("style: parse stylesheet: %w", err)
	}
	sheet := &Sheet{}
	if err := sheet.append(parsed); err != nil {
		return nil, err
	}
	return sheet, nil
}

// Append merges the rules of other after the rules of s.
func (s *Sheet) Append(other *Sheet) {
	if other == nil {
		return
	}
	for _, r := range other.rules {
		r.order = len(s.rules)
		s.rules = append(s.rules, r)
	}
}

// Len returns the number of qualified rules.
func (s *Sheet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

func (s *Sheet) append(parsed *css.Stylesheet) error {
	for _, r := range parsed.Rules {
		if r.Kind != css.QualifiedRule {
			continue
		}
		group, err := cascadia.ParseGroup(r.Prelude)
		if err != nil {
			return fmt.Errorf("style: selector %q: %w", r.Prelude, err)
		}
		s.rules = append(s.rules, rule{selectors: group, decls: r.Declarations, order: len(s.rules)})
	}
	return nil
}

type matched struct {
	spec      cascadia.Specificity
	order     int
	important bool
	property  string
	value     string
}

// Match returns the cascaded declarations of all rules matching node.
// Important declarations beat normal ones, then specificity, then source order.
func (s *Sheet) Match(node *html.Node) Declarations {
	out := Declarations{}
	if s == nil || node == nil {
		return out
	}
	var hits []matched
	for _, r := range s.rules {
		spec, ok := bestMatch(r.selectors, node)
		if !ok {
			continue
		}
		for _, d := range r.decls {
			hits = append(hits, matched{
				spec:      spec,
				order:     r.order,
				important: d.Important,
				property:  strings.ToLower(d.Property),
				value:     d.Value,
			})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.important != b.important {
			return !a.important
		}
		if a.spec != b.spec {
			return a.spec.Less(b.spec)
		}
		return a.order < b.order
	})
	for _, h := range hits {
		out.Set(h.property, h.value)
	}
	return out
}

func bestMatch(group cascadia.SelectorGroup, node *html.Node) (cascadia.Specificity, bool) {
	var (
		best  cascadia.Specificity
		found bool
	)
	for _, sel := range group {
		if !sel.Match(node) {
			continue
		}
		if spec := sel.Specificity(); !found || best.Less(spec) {
			best = spec
		}
		found = true
	}
	return best, found
}
