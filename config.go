package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeshaw/envdecode"

	"github.com/ByLCY/fitbox/directive"
	"github.com/ByLCY/fitbox/fit"
)

// Config 从环境变量读取缩放与日志配置。
type Config struct {
	// Strategy 为 scan 或 bisect。ENV: FITBOX_STRATEGY
	Strategy string `env:"FITBOX_STRATEGY,default=scan"`
	// Steps 为 scan 的步数。ENV: FITBOX_STEPS
	Steps int `env:"FITBOX_STEPS,default=5"`
	// Tolerance 为 bisect 的收敛精度。ENV: FITBOX_TOLERANCE
	Tolerance float64 `env:"FITBOX_TOLERANCE,default=0.005"`
	// LogLevel 为 debug/info/warn/error。ENV: FITBOX_LOG_LEVEL
	LogLevel string `env:"FITBOX_LOG_LEVEL,default=info"`
	// Triggers 逗号分隔：update,resize,mutation。ENV: FITBOX_TRIGGERS
	Triggers string `env:"FITBOX_TRIGGERS,default=update"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, fmt.Errorf("读取环境变量配置失败: %w", err)
	}
	// 未设置任何变量时 envdecode 不会回填默认值
	if cfg.Strategy == "" {
		cfg.Strategy = "scan"
	}
	if cfg.Steps == 0 {
		cfg.Steps = 5
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = 0.005
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Triggers == "" {
		cfg.Triggers = "update"
	}
	return cfg, nil
}

func (c Config) fitOptions(log *slog.Logger) (fit.Options, error) {
	strategy, err := fit.ParseStrategy(strings.ToLower(strings.TrimSpace(c.Strategy)))
	if err != nil {
		return fit.Options{}, err
	}
	if c.Steps < 0 {
		return fit.Options{}, fmt.Errorf("FITBOX_STEPS 不能为负数: %d", c.Steps)
	}
	if c.Tolerance < 0 || c.Tolerance >= 1 {
		return fit.Options{}, fmt.Errorf("FITBOX_TOLERANCE 需在 [0, 1) 内: %g", c.Tolerance)
	}
	return fit.Options{Strategy: strategy, Steps: c.Steps, Tolerance: c.Tolerance, Logger: log}, nil
}

func (c Config) directiveOptions(log *slog.Logger) (directive.Options, error) {
	triggers, err := directive.ParseTriggers(c.Triggers)
	if err != nil {
		return directive.Options{}, err
	}
	// 命令行只渲染一次，挂载时先做一次缩放
	return directive.Options{Triggers: triggers, FitOnAttach: true, Logger: log}, nil
}

func (c Config) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("FITBOX_LOG_LEVEL 无效: %w", err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
