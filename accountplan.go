// Package accountplan provides a high-level façade over the pipeline Engine
// and its services (sessions, export cache, research adapters, logging).
// Most applications interact with this package by:
//  1. Loading a config.Config and calling NewFromConfig, or calling New with
//     an explicit model and optional service overrides
//  2. Forwarding chat messages to HandleMessage
//  3. Polling Progress and Report, and calling Regenerate or Export on demand
//
// All defaults are safe for local development and testing: in-memory stores
// and the live public search adapters. Production deployments typically
// configure the redis store and a real model provider.
package accountplan

import (
	"context"
	"errors"
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/accountplan/artifact"
	"github.com/hupe1980/accountplan/config"
	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/engine"
	"github.com/hupe1980/accountplan/logging"
	"github.com/hupe1980/accountplan/model"
	"github.com/hupe1980/accountplan/model/anthropic"
	"github.com/hupe1980/accountplan/model/gemini"
	"github.com/hupe1980/accountplan/model/openai"
	"github.com/hupe1980/accountplan/session"
	"github.com/hupe1980/accountplan/tool"
)

// Options configures the Service instance.
type Options struct {
	// Engine configuration (task cap, timeouts, history window)
	EngineConfig engine.Config

	// Stores (defaults to in-memory implementations if not provided)
	SessionStore  core.SessionStore
	ArtifactStore artifact.Store

	// Registry of research adapters (defaults to tool.DefaultRegistry)
	Registry *tool.Registry

	// Transcriber enables audio chat. Optional.
	Transcriber model.Transcriber

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Service is the high-level façade aggregating the engine and its services.
// The embedded Engine exposes the pipeline operations.
type Service struct {
	*engine.Engine

	opts    Options
	closers []func() error
}

// New creates a Service around llm. Any unset service is initialized with an
// in-memory implementation.
func New(llm model.Model, optFns ...func(o *Options)) (*Service, error) {
	opts := Options{
		EngineConfig:  engine.DefaultConfig,
		SessionStore:  session.NewInMemoryStore(session.DefaultTTL),
		ArtifactStore: artifact.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = tool.DefaultRegistry()
	}

	eng, err := engine.New(llm, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.SessionStore = opts.SessionStore
		o.ArtifactStore = opts.ArtifactStore
		o.Registry = opts.Registry
		o.Transcriber = opts.Transcriber
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}
	return &Service{Engine: eng, opts: opts}, nil
}

// NewFromConfig wires model provider, stores and adapters from cfg.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	llm, transcriber, err := NewModel(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	var closers []func() error
	sessions := core.SessionStore(session.NewInMemoryStore(cfg.Store.TTL))
	artifacts := artifact.Store(artifact.NewInMemoryStore())
	if cfg.Store.Backend == "redis" {
		client, err := connectRedis(ctx, cfg.Store.RedisURL)
		if err != nil {
			return nil, err
		}
		sessions = session.NewRedisStore(client, cfg.Store.TTL)
		artifacts = artifact.NewRedisStore(client, cfg.Store.TTL)
		closers = append(closers, client.Close)
	}

	registry := tool.DefaultRegistry(func(o *tool.DefaultOptions) {
		o.MinInterval = cfg.Research.MinInterval
		o.HTTP.UserAgent = cfg.Research.UserAgent
	})

	svc, err := New(llm, func(o *Options) {
		o.EngineConfig = engine.Config{
			MaxTasks:           cfg.Research.MaxTasks,
			CallTimeout:        cfg.Research.CallTimeout,
			DisplayResults:     cfg.Research.MaxResults,
			MaxHistoryMessages: engine.DefaultConfig.MaxHistoryMessages,
			StreamSections:     cfg.LLM.Stream,
		}
		o.SessionStore = sessions
		o.ArtifactStore = artifacts
		o.Registry = registry
		o.Transcriber = transcriber
		o.Logger = logger
	})
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}
	svc.closers = closers

	info := llm.Info()
	logger.Info("Account planner ready",
		"provider", info.Provider,
		"model", info.Name,
		"store", cfg.Store.Backend,
		"channels", len(registry.Channels()),
		"transcription", transcriber != nil,
	)
	return svc, nil
}

// providerKeyEnv lists the variables each provider SDK reads its API key from.
var providerKeyEnv = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY", "ANTHROPIC_AUTH_TOKEN"},
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

func hasAPIKey(cfg config.LLMConfig) bool {
	if cfg.APIKey != "" {
		return true
	}
	for _, env := range providerKeyEnv[cfg.Provider] {
		if os.Getenv(env) != "" {
			return true
		}
	}
	return false
}

// NewModel builds the configured model provider. Gemini also serves as the
// transcriber; other providers have none. A real provider without any API
// key falls back to the offline mock model.
func NewModel(ctx context.Context, cfg config.LLMConfig, logger logging.Logger) (model.Model, model.Transcriber, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if _, known := providerKeyEnv[cfg.Provider]; known && !hasAPIKey(cfg) {
		logger.Warn("No API key configured, using offline model", "provider", cfg.Provider, "env", providerKeyEnv[cfg.Provider])
		return model.NewMockModel("offline", "mock"), nil, nil
	}
	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
		}), nil, nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = int64(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
		}), nil, nil
	case "gemini":
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = float32(cfg.Temperature)
			o.MaxOutputTokens = int32(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
		})
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	case "mock", "":
		return model.NewMockModel("offline", "mock"), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewLogger builds the zap backed logger described by cfg.
func NewLogger(cfg config.LogConfig) (*logging.ZapLogger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = cfg.Format
	lc.File = cfg.File
	return logging.NewZapLogger(lc), nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// Logger returns the configured logger.
func (s *Service) Logger() logging.Logger { return s.opts.Logger }

// Close releases store connections.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
