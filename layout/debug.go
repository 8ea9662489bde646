package layout

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteDebugJSON 将布局结果输出为 JSON，便于调试或可视化。
func WriteDebugJSON(res *Result, path string) error {
	if res == nil {
		return nil
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化布局结果失败: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Find 按元素 id 查找盒子。
func (r *Result) Find(id string) (Box, bool) {
	if r == nil {
		return Box{}, false
	}
	for _, b := range r.Boxes {
		if b.ID == id {
			return b, true
		}
	}
	return Box{}, false
}
