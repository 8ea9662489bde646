package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ByLCY/fitbox/dom"
	"github.com/ByLCY/fitbox/dsl"
	"github.com/ByLCY/fitbox/layout"
	"github.com/ByLCY/fitbox/renderer"
	canvasrenderer "github.com/ByLCY/fitbox/renderer/canvas"
	"github.com/ByLCY/fitbox/style"
	"github.com/ByLCY/fitbox/view"
)

func main() {
	input := flag.String("in", "examples/card.fitbox", "DSL 文件路径")
	output := flag.String("out", "output/card.pdf", "PDF 输出路径")
	debug := flag.String("debug", "", "布局调试 JSON 输出路径")
	dataJSON := flag.String("data", "", "绑定到 DSL 的 JSON 数据")
	dataFile := flag.String("data-file", "", "绑定数据的 JSON 文件，优先于 -data")
	dump := flag.Bool("dump", false, "打印元素树及缩放后的字号")
	outline := flag.Bool("outline", false, "在 PDF 中绘制盒子边框")
	watch := flag.Bool("watch", false, "监听输入与数据文件并重新生成")
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}
	logger, err := cfg.logger(os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	slog.SetDefault(logger)

	fitOpts, err := cfg.fitOptions(logger)
	if err != nil {
		log.Fatalf("缩放配置无效: %v", err)
	}
	dirOpts, err := cfg.directiveOptions(logger)
	if err != nil {
		log.Fatalf("指令配置无效: %v", err)
	}

	r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		BaseDir: filepath.Dir(*input),
		Outline: *outline,
		Logger:  logger,
	})
	registry := view.NewRegistry()
	registry.Register("overflow-resize", view.OverflowResize(fitOpts, dirOpts))

	a := &app{
		input:    *input,
		output:   *output,
		debug:    *debug,
		dataJSON: *dataJSON,
		dataFile: *dataFile,
		dump:     *dump,
		renderer: r,
		registry: registry,
		log:      logger,
	}
	if err := a.loadData(); err != nil {
		log.Fatalf("%v", err)
	}
	if err := a.mount(); err != nil {
		log.Fatalf("生成 PDF 失败: %v", err)
	}
	if err := a.emit(); err != nil {
		log.Fatalf("生成 PDF 失败: %v", err)
	}
	fmt.Printf("已生成 PDF：%s\n", *output)

	if *watch {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := a.watch(ctx); err != nil {
			log.Fatalf("监听文件失败: %v", err)
		}
	}
}

// app 串联解析、挂载、布局与渲染。
type app struct {
	input, output, debug string
	dataJSON, dataFile   string
	dump                 bool

	renderer interface {
		renderer.Renderer
		layout.Typesetter
	}
	registry *view.Registry
	log      *slog.Logger

	data any
	view *view.View
}

func (a *app) loadData() error {
	raw := []byte(a.dataJSON)
	if a.dataFile != "" {
		b, err := os.ReadFile(a.dataFile)
		if err != nil {
			return fmt.Errorf("读取数据文件 %s 失败: %w", a.dataFile, err)
		}
		raw = b
	}
	if len(raw) == 0 {
		a.data = nil
		return nil
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("解析 data JSON 失败: %w", err)
	}
	a.data = data
	return nil
}

// mount 解析 DSL 并挂载视图，已有视图会先卸载。
func (a *app) mount() error {
	file, err := os.Open(a.input)
	if err != nil {
		return fmt.Errorf("无法打开 DSL 文件 %s: %w", a.input, err)
	}
	defer file.Close()

	doc, err := dsl.Parse(file)
	if err != nil {
		return fmt.Errorf("解析 DSL 失败: %w", err)
	}
	v, err := view.Mount(doc, a.data, view.Options{
		Registry:   a.registry,
		Typesetter: a.renderer,
		BaseDir:    filepath.Dir(a.input),
		Logger:     a.log,
	})
	if err != nil {
		return err
	}
	if a.view != nil {
		if err := a.view.Unmount(); err != nil {
			a.log.Warn("卸载旧视图失败", "error", err)
		}
	}
	a.view = v
	return nil
}

// emit 排版当前视图并写出 PDF，可选输出调试 JSON 与元素树。
func (a *app) emit() error {
	result, err := a.view.Layout()
	if err != nil {
		return fmt.Errorf("布局计算失败: %w", err)
	}
	if a.debug != "" {
		if err := writeDebug(result, a.debug); err != nil {
			return err
		}
	}
	if a.dump {
		if err := a.view.Document().Dump(os.Stdout, fontSizeLabel); err != nil {
			return fmt.Errorf("打印元素树失败: %w", err)
		}
		fmt.Println()
	}

	if err := os.MkdirAll(filepath.Dir(a.output), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	pdfBytes, err := a.renderer.Render(result)
	if err != nil {
		return fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	if err := os.WriteFile(a.output, pdfBytes, 0o644); err != nil {
		return fmt.Errorf("写入 PDF 文件失败: %w", err)
	}
	return nil
}

// watch 监听输入与数据文件所在目录：DSL 变化时重新挂载，数据变化时重新渲染。
// 事件在同一个 goroutine 中串行处理。
func (a *app) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = w.Close()
	}()

	inputPath := absPath(a.input)
	dataPath := ""
	dirs := map[string]bool{filepath.Dir(inputPath): true}
	if a.dataFile != "" {
		dataPath = absPath(a.dataFile)
		dirs[filepath.Dir(dataPath)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("监听目录 %s 失败: %w", dir, err)
		}
	}
	a.log.Info("watching", "input", inputPath, "data", dataPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			switch absPath(ev.Name) {
			case inputPath:
				a.reload("input", a.mount)
			case dataPath:
				a.reload("data", a.rerender)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("fsnotify error", "error", err)
		}
	}
}

func (a *app) rerender() error {
	if err := a.loadData(); err != nil {
		return err
	}
	return a.view.Render(a.data)
}

// reload 执行 step 后重新输出；watch 模式下错误只记录日志。
func (a *app) reload(what string, step func() error) {
	if err := step(); err != nil {
		a.log.Error("reload failed", "changed", what, "error", err)
		return
	}
	if err := a.emit(); err != nil {
		a.log.Error("render failed", "changed", what, "error", err)
		return
	}
	a.log.Info("regenerated", "changed", what, "out", a.output)
}

func fontSizeLabel(e *dom.Element) string {
	if v := e.InlineStyle(style.FontSize); v != "" {
		return "font-size=" + v
	}
	return ""
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func writeDebug(result *layout.Result, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(result, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
