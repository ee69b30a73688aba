// Package chachalog provides the optional structured-logging hook used by
// the rest of this module. The cryptographic core itself never logs;
// packages that layer caller-facing diagnostics on top of it (the nonce-reuse
// sentinel) accept a Logger and fall back to a
// silent no-op implementation when the caller supplies none.
package chachalog

import "github.com/go-i2p/logger"

// Logger is the structured-logging surface this module's diagnostic layers
// depend on. It is satisfied by *Default, which wraps github.com/go-i2p/logger,
// and by any other implementation a caller prefers to inject.
type Logger interface {
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// Default adapts github.com/go-i2p/logger's package-level logger to Logger.
type Default struct{}

// NewDefault returns the structured logger this module uses when a caller
// doesn't inject one of its own.
func NewDefault() *Default { return &Default{} }

func (*Default) Warn(msg string, fields map[string]any) {
	logger.GetGoI2PLogger().WithFields(toLogrusFields(fields)).Warn(msg)
}

func (*Default) Error(msg string, fields map[string]any) {
	logger.GetGoI2PLogger().WithFields(toLogrusFields(fields)).Error(msg)
}

func toLogrusFields(fields map[string]any) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Nop is a Logger that discards everything. It is the zero-value fallback
// used anywhere a nil Logger would otherwise be dereferenced.
type Nop struct{}

func (Nop) Warn(string, map[string]any)  {}
func (Nop) Error(string, map[string]any) {}

// OrNop returns l if non-nil, otherwise a Nop logger.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop{}
	}
	return l
}
