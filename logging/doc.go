// Package logging provides a minimal logging interface and adapters for the
// account planning service.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, agents and adapters use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - ZapLogger adapter wrapping a zap.SugaredLogger with optional rotated file output
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewZapLogger(logging.DefaultConfig())
//	defer logger.Sync()
//	eng, err := engine.New(llm, func(o *engine.Options) { o.Logger = logger })
package logging
