package fonts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-fonts/latin-modern/lmmono10regular"
	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10italic"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"github.com/go-fonts/latin-modern/lmsans10bold"
	"github.com/go-fonts/latin-modern/lmsans10regular"
)

var builtin = map[string][]byte{
	"lmsans10":         lmsans10regular.TTF,
	"lmsans10-bold":    lmsans10bold.TTF,
	"lmroman10":        lmroman10regular.TTF,
	"lmroman10-bold":   lmroman10bold.TTF,
	"lmroman10-italic": lmroman10italic.TTF,
	"lmmono10":         lmmono10regular.TTF,
}

// Default 是未声明字体时使用的内置字体名。
const Default = "lmsans10"

// Load 返回内置字体的字节数据，name 可写为 "builtin:lmsans10" 或直接 "lmsans10"。
func Load(name string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimPrefix(name, "builtin:"), "built-in:")
	data, ok := builtin[strings.ToLower(clean)]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败: 可用字体 %s", clean, strings.Join(Names(), ", "))
	}
	return data, nil
}

// Names 返回所有内置字体名。
func Names() []string {
	out := make([]string, 0, len(builtin))
	for name := range builtin {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
