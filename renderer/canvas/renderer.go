package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"strings"
	"unicode"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/fitbox/layout"
	"github.com/ByLCY/fitbox/renderer"
	"github.com/ByLCY/fitbox/style"
)

const outlineWidth = 0.2 // mm

// Renderer draws layout results via github.com/tdewolff/canvas and doubles as the
// layout.Typesetter, so measurement and drawing share the same font metrics.
type Renderer struct {
	outline bool
	log     *slog.Logger
	fonts   *fontCache
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // fonts accessible via builtin:<name>, checked before the bundled set
	// Outline 为每个盒子绘制边框，溢出的盒子使用红色。
	Outline bool
	Logger  *slog.Logger
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a canvas-based renderer rooted at baseDir for resolving assets.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		outline: opts.Outline,
		log:     log,
		fonts:   newFontCache(opts.BaseDir, opts.Fonts, log),
	}
}

// Render renders the result into a single-page PDF sized to the viewport.
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if result.Viewport.Width <= 0 || result.Viewport.Height <= 0 {
		return nil, fmt.Errorf("视口尺寸无效: %gx%g", result.Viewport.Width, result.Viewport.Height)
	}

	pageW, pageH := toMm(result.Viewport.Width), toMm(result.Viewport.Height)
	var buf bytes.Buffer
	writer := pdf.New(&buf, pageW, pageH, nil)
	r.applyMeta(writer, result.Meta)

	c := canvas.New(pageW, pageH)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

	for _, box := range result.Boxes {
		if r.outline {
			r.drawOutline(ctx, box)
		}
		if len(box.Lines) == 0 {
			continue
		}
		if err := r.drawTextBox(ctx, box, pickFont(box.Font, result.Fonts)); err != nil {
			return nil, err
		}
	}
	c.RenderTo(writer)

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	r.log.Debug("pdf rendered", "boxes", len(result.Boxes), "bytes", buf.Len())
	return buf.Bytes(), nil
}

func (r *Renderer) applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	if writer == nil {
		return
	}
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

// LayoutLines 实现 layout.Typesetter 接口，使用贪心换行算法。
// 约定：入参与返回值均为 px；字体系统使用 pt，canvas 的度量结果为 mm，只在本函数边界换算。
func (r *Renderer) LayoutLines(content string, width float64, font layout.FontResource, fontSize, lineHeight float64, wrap string) ([]layout.TextLine, error) {
	face, err := r.fonts.face(font, toPt(fontSize), layout.Color{R: 30, G: 30, B: 30})
	if err != nil {
		return nil, err
	}

	if wrap == "" {
		wrap = "anywhere"
	}
	limit := 0.0
	if width > 0 {
		limit = toMm(width)
	}
	lines := greedyWrapTokens(content, limit, face, wrap)

	textHeight := fromMm(face.Metrics().LineHeight)
	if textHeight <= 0 {
		textHeight = lineHeight
	}
	leading := math.Max(lineHeight-textHeight, 0)
	if len(lines) == 0 {
		lines = []layout.TextLine{{Content: "", Width: 0}}
	}
	for i := range lines {
		lines[i].Width = fromMm(lines[i].Width)
		lines[i].Height = textHeight
		if i == 0 {
			lines[i].GapBefore = 0
		} else {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

func (r *Renderer) drawTextBox(ctx *canvas.Context, box layout.Box, fontRes layout.FontResource) error {
	face, err := r.fonts.face(fontRes, toPt(box.FontSize), box.Color)
	if err != nil {
		return err
	}

	var textAlign canvas.TextAlign
	var anchorX float64
	switch box.Align {
	case "center":
		textAlign = canvas.Center
		anchorX = box.X + box.Width/2
	case "right":
		textAlign = canvas.Right
		anchorX = box.X + box.Width
	default:
		textAlign = canvas.Left
		anchorX = box.X
	}

	ascent := face.Metrics().Ascent // mm
	cursorY := box.Y
	for _, line := range box.Lines {
		cursorY += line.GapBefore
		textLine := canvas.NewTextLine(face, line.Content, textAlign)
		// 基线位置：行顶部加上字体上升部
		ctx.DrawText(toMm(anchorX), toMm(cursorY)+ascent, textLine)
		height := line.Height
		if height <= 0 {
			height = box.LineHeight
		}
		cursorY += height
	}
	return nil
}

// drawOutline 绘制盒子边框（mm）。
func (r *Renderer) drawOutline(ctx *canvas.Context, box layout.Box) {
	if box.Width <= 0 || box.Height <= 0 {
		return
	}
	stroke := canvas.Hex("#9e9e9e")
	if box.Overflow {
		stroke = canvas.Hex("#e53935")
	}
	ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
	ctx.SetStrokeColor(stroke)
	ctx.SetStrokeWidth(outlineWidth)
	ctx.DrawPath(toMm(box.X), toMm(box.Y), canvas.Rectangle(toMm(box.Width), toMm(box.Height)))
}

// toPt 将 px 转换为点(pt)。
func toPt(px float64) float64 { return px * 72 / style.PxPerIn }

// toMm 将 px 转换为毫米(mm)。
func toMm(px float64) float64 { return px * style.MmPerPx }

// fromMm 将 canvas 度量得到的毫米转换回 px。
func fromMm(mm float64) float64 { return mm * style.PxPerMm }

// greedyWrapTokens 按 wrap 模式拆行，limit 与返回的行宽均为 mm，limit<=0 表示不限宽。
func greedyWrapTokens(content string, limit float64, face *canvas.FontFace, wrap string) []layout.TextLine {
	if limit <= 0 {
		limit = math.MaxFloat64
	} else {
		// px↔mm 往返会引入浮点误差
		limit += 1e-9
	}

	// nowrap：仅按显式换行划分，不基于宽度折行
	if wrap == "nowrap" {
		parts := strings.Split(strings.ReplaceAll(content, "\r", ""), "\n")
		lines := make([]layout.TextLine, 0, len(parts))
		for _, p := range parts {
			lines = append(lines, layout.TextLine{Content: p, Width: face.TextWidth(p)})
		}
		return lines
	}

	var lines []layout.TextLine
	var builder strings.Builder
	current := 0.0
	emit := func(force bool) {
		if builder.Len() == 0 {
			if force {
				lines = append(lines, layout.TextLine{Content: "", Width: 0})
			}
			return
		}
		lines = append(lines, layout.TextLine{Content: builder.String(), Width: current})
		builder.Reset()
		current = 0
	}
	appendText := func(s string, w float64) {
		builder.WriteString(s)
		current += w
	}

	// break-word：忽略空白机会，纯按宽度切分（但仍然尊重显式换行）
	if wrap == "break-word" {
		for _, r := range content {
			if r == '\r' {
				continue
			}
			if r == '\n' {
				emit(true)
				continue
			}
			s := string(r)
			cw := face.TextWidth(s)
			if current > 0 && current+cw > limit {
				emit(false)
			}
			appendText(s, cw)
		}
		emit(true)
		return lines
	}

	// 默认（anywhere）：优先在空白处分割，超过限制时在词内拆分
	for _, token := range tokenizeContent(content) {
		if token == "\n" {
			emit(true)
			continue
		}
		tokenWidth := face.TextWidth(token)
		if current > 0 && current+tokenWidth > limit {
			emit(false)
			if isBlank(token) {
				// 行首不保留空白
				continue
			}
		}
		if tokenWidth <= limit {
			appendText(token, tokenWidth)
			continue
		}
		for _, chunk := range splitTokenByWidth(token, limit, face) {
			chunkWidth := face.TextWidth(chunk)
			if current > 0 && current+chunkWidth > limit {
				emit(false)
			}
			appendText(chunk, chunkWidth)
		}
	}
	emit(true)
	return trimTrailingBlank(lines, face)
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

// trimTrailingBlank 去掉折行处行尾的空白，使行宽只计算可见内容。
func trimTrailingBlank(lines []layout.TextLine, face *canvas.FontFace) []layout.TextLine {
	for i := range lines {
		trimmed := strings.TrimRightFunc(lines[i].Content, unicode.IsSpace)
		if trimmed != lines[i].Content {
			lines[i].Content = trimmed
			lines[i].Width = face.TextWidth(trimmed)
		}
	}
	return lines
}

// tokenizeContent 把文本切成交替的空白段与非空白段，换行单独成为 "\n"。
func tokenizeContent(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	var tokens []string
	start := -1
	var blank bool
	for i, r := range s {
		switch {
		case r == '\n':
			if start >= 0 {
				tokens = append(tokens, s[start:i])
				start = -1
			}
			tokens = append(tokens, "\n")
		case start < 0:
			start, blank = i, unicode.IsSpace(r)
		case unicode.IsSpace(r) != blank:
			tokens = append(tokens, s[start:i])
			start, blank = i, unicode.IsSpace(r)
		}
	}
	if start >= 0 {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

// splitTokenByWidth 在 limit（mm）处按字符切开过长的 token，每段至少一个字符。
func splitTokenByWidth(token string, limit float64, face *canvas.FontFace) []string {
	if limit <= 0 || limit == math.MaxFloat64 {
		return []string{token}
	}
	runes := []rune(token)
	if len(runes) == 0 {
		return nil
	}
	var parts []string
	from := 0
	for i := 1; i < len(runes); i++ {
		if face.TextWidth(string(runes[from:i+1])) > limit {
			parts = append(parts, string(runes[from:i]))
			from = i
		}
	}
	return append(parts, string(runes[from:]))
}
