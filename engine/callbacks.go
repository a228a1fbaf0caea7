package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/accountplan/core"
)

// CallbackType defines the lifecycle points where callbacks are executed.
//
// Available callback types:
//   - OnStageChange: after a session moved to a new stage
//   - OnPlanReady: after the account plan was assembled
//   - OnRegenerate: after a section rewrite was committed
//   - OnError: when a pipeline step failed
//
// Callbacks run synchronously while the session slot is held. The change they
// observe has already happened; a returned error is logged, not rolled back.
type CallbackType string

const (
	// CallbackOnStageChange is triggered after every stage transition.
	CallbackOnStageChange CallbackType = "on_stage_change"

	// CallbackOnPlanReady is triggered once per assembled plan.
	// Use for notifications or warming export caches.
	CallbackOnPlanReady CallbackType = "on_plan_ready"

	// CallbackOnRegenerate is triggered after a section was rewritten.
	CallbackOnRegenerate CallbackType = "on_regenerate"

	// CallbackOnError is triggered when a generation or routing step fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the information available at a lifecycle point.
type CallbackContext struct {
	SessionID string

	// From and To are set for stage changes.
	From core.Stage
	To   core.Stage

	// Plan is set for plan and regeneration callbacks. It is a snapshot.
	Plan *core.AccountPlan

	// Section is set for regeneration callbacks.
	Section core.Section

	// Err is set for error callbacks.
	Err error

	// CallbackType indicates which callback type triggered this execution.
	CallbackType CallbackType

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for execution lifecycle hooks.
//
// Implementations should be fast: they block the session they observe.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(
//	    CallbackOnPlanReady,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        notify(cc.SessionID, cc.Plan.Version)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is the registry of lifecycle callbacks.
//
// Callbacks are executed in registration order; the first error stops the
// remaining callbacks of that type. Registration and execution are safe for
// concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback to the manager for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all registered callbacks for the specified type.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}
	return nil
}

// LoggingCallback forwards lifecycle events to a logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackOnStageChange, func(msg string) {
//	    log.Printf("[ENGINE] %s", msg)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle event.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	var message string
	switch c.callbackType {
	case CallbackOnStageChange:
		message = fmt.Sprintf("[%s] Session: %s, %s -> %s", c.callbackType, cc.SessionID, cc.From, cc.To)
	case CallbackOnError:
		message = fmt.Sprintf("[%s] Session: %s, Error: %v", c.callbackType, cc.SessionID, cc.Err)
	default:
		version := 0
		if cc.Plan != nil {
			version = cc.Plan.Version
		}
		message = fmt.Sprintf("[%s] Session: %s, Plan version: %d", c.callbackType, cc.SessionID, version)
	}
	c.logger(message)
	return nil
}
