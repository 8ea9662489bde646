package canvasrenderer

import (
	"cmp"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/fitbox/fonts"
	"github.com/ByLCY/fitbox/layout"
)

// fontCache 按 name/src/style 缓存 canvas 字体族。
// 加载失败的资源会被映射到内置默认字体，之后不再重试。
type fontCache struct {
	baseDir string
	blobs   map[string][]byte // 注入的字体，按 builtin:<name> 查找
	log     *slog.Logger

	mu       sync.Mutex
	families map[fontKey]loadedFamily
	fallback *canvas.FontFamily
}

type fontKey struct{ name, src, style string }

type loadedFamily struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

func newFontCache(baseDir string, injected map[string]Resource, log *slog.Logger) *fontCache {
	c := &fontCache{
		baseDir:  baseDir,
		blobs:    make(map[string][]byte, len(injected)),
		log:      log,
		families: map[fontKey]loadedFamily{},
	}
	for name, res := range injected {
		switch {
		case name == "":
		case len(res.Bytes) > 0:
			c.blobs[name] = res.Bytes
		case res.Path != "":
			data, err := os.ReadFile(res.Path)
			if err != nil {
				// 使用时会回退到内置字体
				log.Warn("读取注入字体失败", "name", name, "path", res.Path, "error", err)
				continue
			}
			c.blobs[name] = data
		}
	}
	return c
}

// face 返回指定字号（pt）与颜色的字体。
func (c *fontCache) face(font layout.FontResource, sizePt float64, col layout.Color) (*canvas.FontFace, error) {
	f, err := c.family(font)
	if err != nil {
		return nil, err
	}
	return f.family.Face(sizePt, toColor(col), f.style, canvas.FontNormal), nil
}

func (c *fontCache) family(font layout.FontResource) (loadedFamily, error) {
	key := fontKey{font.Name, font.Src, font.Style}
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.families[key]; ok {
		return f, nil
	}
	f, err := c.load(font)
	if err != nil {
		fb, fbErr := c.defaultFamily()
		if fbErr != nil {
			return loadedFamily{}, err
		}
		c.log.Warn("字体加载失败，使用内置字体", "font", font.Name, "src", font.Src, "error", err)
		f = loadedFamily{family: fb, style: canvas.FontRegular}
	}
	c.families[key] = f
	return f, nil
}

func (c *fontCache) load(font layout.FontResource) (loadedFamily, error) {
	data, err := c.bytes(font)
	if err != nil {
		return loadedFamily{}, err
	}
	style := fontStyle(font.Style)
	family := canvas.NewFontFamily(cmp.Or(font.Family, font.Name, "Body"))
	if err := family.LoadFont(data, 0, style); err != nil {
		return loadedFamily{}, fmt.Errorf("加载字体 %s 失败: %w", font.Name, err)
	}
	return loadedFamily{family: family, style: style}, nil
}

// bytes 读取字体数据：builtin:/built-in:/embed: 先查注入字体再查内置字体，其余按路径读取。
func (c *fontCache) bytes(font layout.FontResource) ([]byte, error) {
	if font.Src == "" {
		return nil, fmt.Errorf("字体 %s 缺少 src", font.Name)
	}
	if scheme, name, ok := strings.Cut(font.Src, ":"); ok {
		switch scheme {
		case "builtin", "built-in", "embed":
			if blob, ok := c.blobs[name]; ok {
				return blob, nil
			}
			return fonts.Load(name)
		}
	}
	path := font.Src
	if !filepath.IsAbs(path) {
		if c.baseDir == "" {
			return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 builtin:）", font.Src)
		}
		path = filepath.Join(c.baseDir, path)
	}
	return os.ReadFile(path)
}

// defaultFamily 懒加载 fonts.Default，调用方需持有 mu。
func (c *fontCache) defaultFamily() (*canvas.FontFamily, error) {
	if c.fallback != nil {
		return c.fallback, nil
	}
	data, err := fonts.Load(fonts.Default)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("fitbox-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	c.fallback = family
	return family, nil
}

// pickFont 按名称查找字体资源，依次回退到 Body、任意已声明字体和 layout.DefaultFont。
func pickFont(name string, declared map[string]layout.FontResource) layout.FontResource {
	if font, ok := declared[name]; ok {
		return font
	}
	if font, ok := declared[layout.DefaultFont.Name]; ok {
		return font
	}
	for _, font := range declared {
		return font
	}
	return layout.DefaultFont
}

var fontWeights = []struct {
	word  string
	style canvas.FontStyle
}{
	{"black", canvas.FontBlack},
	{"extrabold", canvas.FontExtraBold},
	{"semibold", canvas.FontSemiBold},
	{"demibold", canvas.FontSemiBold},
	{"bold", canvas.FontBold},
	{"medium", canvas.FontMedium},
	{"light", canvas.FontLight},
}

// fontStyle 解析 "bold italic" 之类的描述，先匹配字重再叠加斜体。
func fontStyle(desc string) canvas.FontStyle {
	s := strings.ToLower(desc)
	style := canvas.FontRegular
	for _, w := range fontWeights {
		if strings.Contains(s, w.word) {
			style = w.style
			break
		}
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		style |= canvas.FontItalic
	}
	return style
}

func toColor(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, 1)
}
