package view

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ByLCY/fitbox/dsl"
	"github.com/ByLCY/fitbox/layout"
	"github.com/ByLCY/fitbox/style"
)

// resourceSet 汇总 resources 与 meta 段声明的内容。
type resourceSet struct {
	fonts  map[string]layout.FontResource
	colors map[string]layout.Color
	sheet  *style.Sheet
	meta   layout.DocumentMeta
}

func collectResources(doc *dsl.Document, baseDir string) (resourceSet, error) {
	res := resourceSet{
		fonts:  map[string]layout.FontResource{},
		colors: map[string]layout.Color{},
		sheet:  &style.Sheet{},
		meta:   collectMeta(doc),
	}
	for _, section := range doc.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, stmt := range section.Resources.Block.Statements {
			if stmt.Command == nil {
				continue
			}
			cmd := stmt.Command
			switch cmd.Name {
			case "font":
				font := parseFontResource(cmd)
				if font.Name != "" {
					res.fonts[font.Name] = font
				}
			case "color":
				name, value := parseColorResource(cmd)
				if name == "" || value == "" {
					continue
				}
				c, err := layout.ParseColor(value)
				if err != nil {
					return res, fmt.Errorf("颜色 %s: %w", name, err)
				}
				res.colors[name] = c
			case "stylesheet":
				sheet, err := loadStylesheet(cmd, baseDir)
				if err != nil {
					return res, err
				}
				res.sheet.Append(sheet)
			}
		}
	}
	if len(res.fonts) == 0 {
		res.fonts[layout.DefaultFont.Name] = layout.DefaultFont
	}
	return res, nil
}

func collectMeta(doc *dsl.Document) layout.DocumentMeta {
	meta := layout.DocumentMeta{Creator: "fitbox"}
	for _, section := range doc.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment == nil {
				continue
			}
			switch strings.ToLower(stmt.Assignment.Key) {
			case "title":
				meta.Title = valueToString(stmt.Assignment.Value)
			case "author":
				meta.Author = valueToString(stmt.Assignment.Value)
			case "subject":
				meta.Subject = valueToString(stmt.Assignment.Value)
			case "creator":
				meta.Creator = valueToString(stmt.Assignment.Value)
			case "keywords":
				meta.Keywords = valueToStringSlice(stmt.Assignment.Value)
			}
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) layout.FontResource {
	if len(cmd.Args) == 0 {
		return layout.FontResource{}
	}
	font := layout.FontResource{Name: cmd.Args[0].Value, Family: cmd.Args[0].Value}
	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		switch stmt.Assignment.Key {
		case "src":
			font.Src = valueToString(stmt.Assignment.Value)
		case "style":
			font.Style = valueToString(stmt.Assignment.Value)
		}
	}
	return font
}

// parseColorResource 解析 `color Accent = #0F62FE`。
func parseColorResource(cmd *dsl.Command) (string, string) {
	args := cmd.Args
	if len(args) == 0 {
		return "", ""
	}
	name := args[0].Value
	for _, a := range args[1:] {
		if a.Value == "=" {
			continue
		}
		return name, a.Value
	}
	return name, ""
}

// loadStylesheet 读取 stylesheet { source: "..." } 或 stylesheet { src: "card.css" }。
func loadStylesheet(cmd *dsl.Command, baseDir string) (*style.Sheet, error) {
	if cmd.Block == nil {
		return nil, fmt.Errorf("stylesheet 缺少内容块")
	}
	out := &style.Sheet{}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		var source string
		switch stmt.Assignment.Key {
		case "source":
			source = valueToString(stmt.Assignment.Value)
		case "src":
			path := valueToString(stmt.Assignment.Value)
			if !filepath.IsAbs(path) {
				if baseDir == "" {
					return nil, fmt.Errorf("未指定资源目录时不允许直接使用样式表路径：%s", path)
				}
				path = filepath.Join(baseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("读取样式表 %s 失败: %w", path, err)
			}
			source = string(data)
		default:
			continue
		}
		sheet, err := style.ParseSheet(source)
		if err != nil {
			return nil, fmt.Errorf("解析样式表失败: %w", err)
		}
		out.Append(sheet)
	}
	return out, nil
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Color != nil:
		return *val.Color
	case val.Expr != nil:
		return val.Expr.String()
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}
