// Package di wires the pipeline together: one browser session, one model
// adapter, one shared cache and metrics aggregator per container.
package di

import (
	"context"
	"fmt"

	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/application/service"
	"browser-pilot/internal/infrastructure/browser/rod"
	"browser-pilot/internal/infrastructure/llm"
	"browser-pilot/internal/infrastructure/logger"
	"browser-pilot/internal/infrastructure/metrics"
	"browser-pilot/internal/usecase/actor"
	"browser-pilot/internal/usecase/agent"
	"browser-pilot/internal/usecase/extractor"
	"browser-pilot/internal/usecase/indexer"
	"browser-pilot/internal/usecase/observer"
)

type Container struct {
	Browser output.BrowserPort
	LLM     output.LLMPort
	Logger  output.LoggerPort
	Metrics output.MetricsPort
	Cache   *service.ResolutionCache

	Actor     input.Actor
	Extractor input.Extractor
	Observer  input.Observer
	Agent     input.GoalRunner
}

type Config struct {
	Provider    llm.Provider
	APIKey      string
	Model       string
	BaseURL     string
	RunName     string
	Headless    bool
	Debug       bool
	MaxSteps    int
	SelfHeal    bool
	Screenshots bool
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	logCfg := logger.DefaultConfig(cfg.RunName)
	logCfg.Debug = cfg.Debug
	log, err := logger.NewZapLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	browserCfg := rod.DefaultConfig()
	browserCfg.Headless = cfg.Headless
	browser, err := rod.New(ctx, browserCfg)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}

	model, err := llm.New(ctx, llm.Config{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		Logger:   log,
	})
	if err != nil {
		browser.Close()
		log.Close()
		return nil, fmt.Errorf("failed to create model adapter: %w", err)
	}

	aggregator := metrics.New()
	cache := service.NewResolutionCache()

	idx := indexer.New(browser, log, indexer.DefaultOptions())
	obs := observer.New(model, idx, browser, aggregator, log)
	act := actor.New(obs, idx, browser, cache, log, actor.Options{SelfHeal: cfg.SelfHeal})
	ext := extractor.New(model, idx, cache, aggregator, log)

	agentOpts := agent.DefaultOptions()
	if cfg.MaxSteps > 0 {
		agentOpts.MaxSteps = cfg.MaxSteps
	}
	agentOpts.Screenshots = cfg.Screenshots
	runner := agent.New(model, act, ext, obs, browser, aggregator, log, agentOpts)

	return &Container{
		Browser:   browser,
		LLM:       model,
		Logger:    log,
		Metrics:   aggregator,
		Cache:     cache,
		Actor:     act,
		Extractor: ext,
		Observer:  obs,
		Agent:     runner,
	}, nil
}

func (c *Container) Close() {
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
