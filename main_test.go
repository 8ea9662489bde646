package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/fitbox/directive"
	"github.com/ByLCY/fitbox/fit"
	canvasrenderer "github.com/ByLCY/fitbox/renderer/canvas"
	"github.com/ByLCY/fitbox/style"
	"github.com/ByLCY/fitbox/view"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"FITBOX_STRATEGY", "FITBOX_STEPS", "FITBOX_TOLERANCE", "FITBOX_LOG_LEVEL", "FITBOX_TRIGGERS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "scan", cfg.Strategy)
	assert.Equal(t, 5, cfg.Steps)
	assert.Equal(t, "update", cfg.Triggers)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FITBOX_STRATEGY", "bisect")
	t.Setenv("FITBOX_STEPS", "8")
	t.Setenv("FITBOX_TOLERANCE", "0.01")
	t.Setenv("FITBOX_LOG_LEVEL", "debug")
	t.Setenv("FITBOX_TRIGGERS", "update,resize")

	cfg, err := loadConfig()
	require.NoError(t, err)

	fo, err := cfg.fitOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, fit.StrategyBisect, fo.Strategy)
	assert.Equal(t, 8, fo.Steps)
	assert.InDelta(t, 0.01, fo.Tolerance, 1e-12)

	do, err := cfg.directiveOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, directive.TriggerUpdate|directive.TriggerResize, do.Triggers)
	assert.True(t, do.FitOnAttach)

	logger, err := cfg.logger(io.Discard)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestConfigRejectsBadValues(t *testing.T) {
	_, err := Config{Strategy: "random", LogLevel: "info"}.fitOptions(nil)
	assert.Error(t, err)
	_, err = Config{Strategy: "scan", Tolerance: 2}.fitOptions(nil)
	assert.Error(t, err)
	_, err = Config{Triggers: "scroll"}.directiveOptions(nil)
	assert.Error(t, err)
	_, err = Config{LogLevel: "loud"}.logger(io.Discard)
	assert.Error(t, err)
}

// TestAppGeneratesPDF 走完整流程：解析、挂载（挂载时缩放）、排版与输出 PDF。
func TestAppGeneratesPDF(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "card.fitbox")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "card.css"), []byte(`#name { font-size: 40px; max-width: 120px; white-space: nowrap }`), 0o644))
	require.NoError(t, os.WriteFile(input, []byte(`doc Card v1 {
  resources { stylesheet { src: "card.css" } }
  view 320px 200px {
    box id name { use overflow-resize; "${user.name}" }
  }
}`), 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := view.NewRegistry()
	registry.Register("overflow-resize", view.OverflowResize(fit.Options{}, directive.Options{FitOnAttach: true}))
	a := &app{
		input:    input,
		output:   filepath.Join(dir, "out", "card.pdf"),
		debug:    filepath.Join(dir, "out", "card.json"),
		dataJSON: `{"user":{"name":"Augusta Ada King, Countess of Lovelace"}}`,
		renderer: canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{BaseDir: dir, Logger: logger}),
		registry: registry,
		log:      logger,
	}
	require.NoError(t, a.loadData())
	require.NoError(t, a.mount())

	name, ok := a.view.Element("name")
	require.True(t, ok)
	size, err := style.ParsePX(name.InlineStyle(style.FontSize))
	require.NoError(t, err, "long name must be shrunk")
	assert.Less(t, size, 40.0)

	require.NoError(t, a.emit())
	pdf, err := os.ReadFile(a.output)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	debug, err := os.ReadFile(a.debug)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(debug), `"id": "name"`))

	// 数据变化后重新渲染，短名字恢复原始字号
	a.dataJSON = `{"user":{"name":"Ada"}}`
	require.NoError(t, a.rerender())
	assert.Empty(t, name.InlineStyle(style.FontSize))
}

func TestLoadDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": 1}`), 0o644))
	a := &app{dataFile: path, dataJSON: `{"ignored": true}`}
	require.NoError(t, a.loadData())
	assert.Equal(t, map[string]any{"a": 1.0}, a.data)

	a = &app{dataJSON: `{broken`}
	assert.Error(t, a.loadData())
}
