package layout

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/ByLCY/fitbox/dom"
	"github.com/ByLCY/fitbox/fit"
	"github.com/ByLCY/fitbox/style"
)

const defaultFontSize = 16.0 // px

// ErrDetached 表示元素不在文档树中，无法测量。
var ErrDetached = errors.New("layout: element is not connected")

// Engine 是渲染引擎协作方：提供计算样式、内联样式读写与盒子测量。
type Engine struct {
	doc    *dom.Document
	sheet  *style.Sheet
	ts     Typesetter
	fonts  map[string]FontResource
	colors map[string]Color
	meta   DocumentMeta
	log    *slog.Logger
}

var _ fit.Host = (*Engine)(nil)

// NewEngine 创建绑定到 doc 的布局引擎。
func NewEngine(doc *dom.Document, opts Options) (*Engine, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}
	fonts := opts.Fonts
	if len(fonts) == 0 {
		fonts = map[string]FontResource{"Body": DefaultFont}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		doc:    doc,
		sheet:  opts.Sheet,
		ts:     opts.Typesetter,
		fonts:  fonts,
		colors: opts.Colors,
		meta:   opts.Meta,
		log:    log,
	}, nil
}

// DefaultFont 在文档未声明字体时使用。
var DefaultFont = FontResource{Name: "Body", Src: "builtin:lmsans10", Family: "Body"}

// Document 返回引擎绑定的文档。
func (e *Engine) Document() *dom.Document { return e.doc }

// Computed 返回 el 的完整计算样式。
func (e *Engine) Computed(el *dom.Element) style.Declarations {
	return e.resolve(el).decl
}

// ComputedValue 实现 fit.Host。
func (e *Engine) ComputedValue(el *dom.Element, property string) string {
	return e.resolve(el).decl.Get(property)
}

// InlineStyle 实现 fit.Host。
func (e *Engine) InlineStyle(el *dom.Element, property string) string {
	return el.InlineStyle(property)
}

// SetInlineStyle 实现 fit.Host，空值表示清除。
func (e *Engine) SetInlineStyle(el *dom.Element, property, value string) {
	el.SetInlineStyle(property, value)
}

// BoundingRect 重新布局整个文档并返回 el 的盒子。
func (e *Engine) BoundingRect(el *dom.Element) (fit.Rect, error) {
	if el == nil || !el.Connected() {
		return fit.Rect{}, ErrDetached
	}
	res, err := e.Layout()
	if err != nil {
		return fit.Rect{}, err
	}
	for _, b := range res.Boxes {
		if b.ID == el.ID() {
			return fit.Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}, nil
		}
	}
	return fit.Rect{}, fmt.Errorf("layout: 未找到元素 %s 的盒子", el.ID())
}

// Layout 从根元素开始排版，盒子按先父后子的顺序输出。
func (e *Engine) Layout() (*Result, error) {
	vw, vh := e.doc.Viewport()
	res := &Result{
		Viewport: Size{Width: vw, Height: vh},
		Fonts:    e.fonts,
		Meta:     e.meta,
	}
	if _, err := e.layoutBox(e.doc.Root(), e.rootContext(), 0, 0, 0, &res.Boxes); err != nil {
		return nil, err
	}
	var overflow []string
	for _, b := range res.Boxes {
		if b.Overflow {
			overflow = append(overflow, b.ID)
		}
	}
	if len(overflow) > 0 {
		e.log.Debug("boxes overflow", "ids", overflow)
	}
	return res, nil
}

// layoutBox 排版一个收缩包裹（shrink-to-fit）的块：先是自身文本行，再依次堆叠子元素。
// 盒子宽度取内容最大宽度，受 max-width 限制；高度为内容高度，受 max-height 限制，溢出部分照常绘制。
func (e *Engine) layoutBox(el *dom.Element, parent resolved, x, y float64, depth int, out *[]Box) (fit.Rect, error) {
	r := e.cascade(el, parent)
	cs := r.decl

	fontSize := pxOr(cs.Get(style.FontSize), defaultFontSize)
	lineHeight := lineHeightPX(cs.Get(style.LineHeight), fontSize)
	wrap := wrapMode(cs.Get(style.WhiteSpace))
	fontName := strings.Trim(cs.Get(style.FontFamily), `"'`)

	idx := len(*out)
	*out = append(*out, Box{
		ID:         el.ID(),
		Tag:        el.Tag(),
		Depth:      depth,
		X:          x,
		Y:          y,
		Content:    el.Text(),
		Font:       fontName,
		FontSize:   fontSize,
		LineHeight: lineHeight,
		Color:      e.resolveColor(cs.Get(style.Color)),
		Align:      normalizeAlign(cs.Get(style.TextAlign)),
		Wrap:       wrap,
	})

	contentW, contentH := 0.0, 0.0
	var lines []TextLine
	if text := el.Text(); text != "" {
		font := e.resolveFont(fontName)
		var err error
		lines, err = e.layoutLines(text, r.avail, font, fontSize, lineHeight, wrap)
		if err != nil {
			return fit.Rect{}, fmt.Errorf("layout: 排版元素 %s 失败: %w", el.ID(), err)
		}
		for _, ln := range lines {
			contentW = math.Max(contentW, ln.Width)
			contentH += ln.GapBefore + ln.Height
		}
	}

	for _, child := range el.Children() {
		rect, err := e.layoutBox(child, r, x, y+contentH, depth+1, out)
		if err != nil {
			return fit.Rect{}, err
		}
		contentW = math.Max(contentW, rect.Width)
		contentH += rect.Height
	}

	w, h := contentW, contentH
	if v, ok := parsePX(cs.Get(style.Width)); ok {
		w = v
	}
	if v, ok := parsePX(cs.Get(style.MaxWidth)); ok {
		w = math.Min(w, v)
	}
	if v, ok := parsePX(cs.Get(style.Height)); ok {
		h = v
	}
	if v, ok := parsePX(cs.Get(style.MaxHeight)); ok {
		h = math.Min(h, v)
	}

	box := &(*out)[idx]
	box.Lines = lines
	box.Width = w
	box.Height = h
	box.Overflow = contentW > w+1e-9 || contentH > h+1e-9
	return fit.Rect{X: x, Y: y, Width: w, Height: h}, nil
}

func (e *Engine) resolveFont(name string) FontResource {
	if font, ok := e.fonts[name]; ok {
		return font
	}
	if font, ok := e.fonts["Body"]; ok {
		return font
	}
	for _, font := range e.fonts {
		return font
	}
	return DefaultFont
}

// layoutLines 调用排版后端，并统一首行间距与空行高度。
func (e *Engine) layoutLines(content string, width float64, font FontResource, fontSize, lineHeight float64, wrap string) ([]TextLine, error) {
	lines, err := e.ts.LayoutLines(content, width, font, fontSize, lineHeight, wrap)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		lines = []TextLine{{Content: "", Width: 0, Height: fontSize}}
	}
	defaultLeading := math.Max(lineHeight-fontSize, 0)
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = fontSize
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else if lines[i].GapBefore <= 0 {
			lines[i].GapBefore = defaultLeading
		}
	}
	return lines, nil
}

func normalizeAlign(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "center", "middle":
		return "center"
	case "right", "end":
		return "right"
	default:
		return ""
	}
}
