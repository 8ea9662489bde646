package layout

// 该文件定义布局结果与资源描述，供布局计算、渲染与调试 JSON 共用。所有长度单位均为 px。

// Result 保存一次布局后的视口、盒子与资源信息。
type Result struct {
	Viewport Size                    `json:"viewport"`
	Boxes    []Box                   `json:"boxes"`
	Fonts    map[string]FontResource `json:"fonts"`
	Meta     DocumentMeta            `json:"meta"`
}

// Size 是视口尺寸。
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FontResource 描述字体资源，src 可以是文件路径或 builtin:* 形式。
type FontResource struct {
	Name   string `json:"name"`
	Src    string `json:"src"`
	Style  string `json:"style"`
	Family string `json:"family"` // 渲染器使用的 Family 名称
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Box 表示一个已经排好坐标的元素盒子，按先父后子的顺序输出。
type Box struct {
	ID         string     `json:"id"`
	Tag        string     `json:"tag"`
	Depth      int        `json:"depth"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	Content    string     `json:"content,omitempty"`
	Lines      []TextLine `json:"lines,omitempty"`
	Font       string     `json:"font"`
	FontSize   float64    `json:"fontSize"`
	LineHeight float64    `json:"lineHeight"`
	Color      Color      `json:"color"`
	Align      string     `json:"align,omitempty"` // left/center/right
	Wrap       string     `json:"wrap,omitempty"`  // anywhere/break-word/nowrap
	Overflow   bool       `json:"overflow,omitempty"`
}

// TextLine 表示排版后的一行文本内容及其宽高。
type TextLine struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}
