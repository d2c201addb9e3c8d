package render

import (
	"fmt"
	"strings"
	"time"
)

// Engine names accepted by NewBrowser.
const (
	EngineChromedp   = "chromedp"
	EnginePlaywright = "playwright"
	EngineStatic     = "static"
)

// EngineConfig carries the settings shared by all engines.
type EngineConfig struct {
	Engine         string
	UserAgent      string
	Headless       bool
	ContentTimeout time.Duration
	// InstallDriver applies to the playwright engine only.
	InstallDriver bool
}

// NewBrowser constructs the configured engine.
func NewBrowser(cfg EngineConfig) (Browser, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "", EngineChromedp:
		return NewChromedpBrowser(ChromedpConfig{
			UserAgent:      cfg.UserAgent,
			Headless:       cfg.Headless,
			ContentTimeout: cfg.ContentTimeout,
		}), nil
	case EnginePlaywright:
		b, err := NewPlaywrightBrowser(PlaywrightConfig{
			UserAgent: cfg.UserAgent,
			Headless:  cfg.Headless,
			Install:   cfg.InstallDriver,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case EngineStatic:
		return NewStaticBrowser(StaticConfig{UserAgent: cfg.UserAgent}), nil
	default:
		return nil, fmt.Errorf("render: unknown engine %q", cfg.Engine)
	}
}
