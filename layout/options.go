package layout

import (
	"log/slog"

	"github.com/ByLCY/fitbox/style"
)

// Options 配置布局引擎所需的依赖，例如排版后端与样式表。
type Options struct {
	Typesetter Typesetter
	Sheet      *style.Sheet
	Fonts      map[string]FontResource
	Colors     map[string]Color // 具名颜色，如 Accent
	Meta       DocumentMeta
	Logger     *slog.Logger
}

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行。
// 约定：width/fontSize/lineHeight 以及返回的行宽高均为 px。
type Typesetter interface {
	LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64, wrap string) ([]TextLine, error)
}
