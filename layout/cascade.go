package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/fitbox/dom"
	"github.com/ByLCY/fitbox/style"
)

// resolved 是某元素的计算样式，以及留给子元素的可用内容宽度（px）。
type resolved struct {
	decl  style.Declarations
	avail float64
}

// rootContext 是根元素的“父级”：默认样式，宽度为视口宽度。
func (e *Engine) rootContext() resolved {
	vw, _ := e.doc.Viewport()
	decl := style.Defaults.Clone()
	decl[style.FontSize] = style.PX(defaultFontSize)
	return resolved{decl: decl, avail: vw}
}

// resolve 自根向下计算 el 的样式。
func (e *Engine) resolve(el *dom.Element) resolved {
	parent := e.rootContext()
	if p := el.Parent(); p != nil {
		parent = e.resolve(p)
	}
	return e.cascade(el, parent)
}

// cascade 依次叠加：默认值/继承值 <- 样式表 <- 内联样式，然后把长度解析为 px。
func (e *Engine) cascade(el *dom.Element, parent resolved) resolved {
	decl := style.Declarations{}
	for k, v := range style.Defaults {
		if style.Inherited[k] {
			decl[k] = parent.decl.Get(k)
		} else {
			decl[k] = v
		}
	}
	for k, v := range e.sheet.Match(el.Node()) {
		decl.Set(k, v)
	}
	for k, v := range el.Inline() {
		decl.Set(k, v)
	}
	for k, v := range decl {
		switch strings.ToLower(v) {
		case "inherit":
			decl[k] = parent.decl.Get(k)
		case "initial":
			decl[k] = style.Defaults.Get(k)
		}
	}

	parentSize := pxOr(parent.decl.Get(style.FontSize), defaultFontSize)
	fontSize := resolveLength(decl.Get(style.FontSize), parentSize, parentSize)
	if fontSize == nil || *fontSize <= 0 {
		fontSize = &parentSize
	}
	decl[style.FontSize] = style.PX(*fontSize)

	if v := resolveLineHeight(decl.Get(style.LineHeight), *fontSize); v != "" {
		decl[style.LineHeight] = v
	}
	for _, prop := range []string{style.Width, style.MaxWidth} {
		if px := resolveLength(decl.Get(prop), *fontSize, parent.avail); px != nil {
			decl[prop] = style.PX(*px)
		}
	}
	parentHeight, hasParentHeight := parsePX(parent.decl.Get(style.Height))
	for _, prop := range []string{style.Height, style.MaxHeight} {
		v := decl.Get(prop)
		if strings.HasSuffix(v, "%") && !hasParentHeight {
			// 百分比高度在父级高度不确定时不生效
			if prop == style.MaxHeight {
				decl[prop] = style.None
			} else {
				decl[prop] = "auto"
			}
			continue
		}
		if px := resolveLength(v, *fontSize, parentHeight); px != nil {
			decl[prop] = style.PX(*px)
		}
	}
	decl[style.WhiteSpace] = normalizeWhiteSpace(decl.Get(style.WhiteSpace))

	avail := parent.avail
	if w, ok := parsePX(decl.Get(style.Width)); ok {
		avail = w
	}
	if mw, ok := parsePX(decl.Get(style.MaxWidth)); ok && mw < avail {
		avail = mw
	}
	return resolved{decl: decl, avail: avail}
}

// resolveLength 将 CSS 长度解析为 px；关键字与无法解析的值返回 nil，保持原样。
func resolveLength(value string, fontSize, reference float64) *float64 {
	switch strings.ToLower(value) {
	case "", "auto", style.None:
		return nil
	}
	l, err := style.ParseLength(value)
	if err != nil {
		return nil
	}
	px := l.ToPX(fontSize, reference)
	return &px
}

// resolveLineHeight 保留无单位倍数，长度与百分比解析为 px。
func resolveLineHeight(value string, fontSize float64) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "normal" {
		return "1.2"
	}
	if strings.HasSuffix(v, "x") {
		// 兼容 1.4x 写法
		v = strings.TrimSuffix(v, "x")
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if px := resolveLength(v, fontSize, fontSize); px != nil {
		return style.PX(*px)
	}
	return ""
}

// lineHeightPX 将计算后的 line-height 换算为 px。
func lineHeightPX(value string, fontSize float64) float64 {
	if px, ok := parsePX(value); ok {
		return px
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
		return fontSize * f
	}
	return fontSize * 1.2
}

func normalizeWhiteSpace(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "nowrap", "no-wrap", "pre":
		return "nowrap"
	case "break-word", "break-spaces":
		return "break-word"
	case "", "normal", "pre-wrap", "pre-line", "anywhere":
		return "normal"
	default:
		return "normal"
	}
}

// wrapMode 将 white-space 映射为排版后端的折行策略。
func wrapMode(whiteSpace string) string {
	switch whiteSpace {
	case "nowrap":
		return "nowrap"
	case "break-word":
		return "break-word"
	default:
		return "anywhere"
	}
}

func parsePX(v string) (float64, bool) {
	px, err := style.ParsePX(v)
	if err != nil {
		return 0, false
	}
	return px, true
}

func pxOr(v string, fallback float64) float64 {
	if px, ok := parsePX(v); ok {
		return px
	}
	return fallback
}

func (e *Engine) resolveColor(value string) Color {
	if c, ok := e.colors[value]; ok {
		return c
	}
	if strings.HasPrefix(value, "#") {
		if c, err := parseColor(value); err == nil {
			return c
		}
	}
	return Color{R: 30, G: 30, B: 30}
}

func parseColor(value string) (Color, error) {
	value = strings.TrimPrefix(value, "#")
	switch len(value) {
	case 3:
		r := strings.Repeat(string(value[0]), 2)
		g := strings.Repeat(string(value[1]), 2)
		b := strings.Repeat(string(value[2]), 2)
		return Color{R: mustHex(r), G: mustHex(g), B: mustHex(b)}, nil
	case 6, 8:
		return Color{
			R: mustHex(value[0:2]),
			G: mustHex(value[2:4]),
			B: mustHex(value[4:6]),
		}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

// ParseColor 解析 #rgb / #rrggbb / #rrggbbaa 形式的颜色。
func ParseColor(value string) (Color, error) { return parseColor(value) }

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}
