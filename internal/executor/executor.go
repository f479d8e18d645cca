// Package executor defines the chain execution boundary.
//
// The dispatcher treats the executor as an opaque collaborator: any client
// that can run an operation and report hash + gas used is interchangeable.
package executor

import (
	"context"

	"github.com/chainops/agentdash/pkg/types"
)

// Result is the outcome of a successful chain operation.
type Result struct {
	Hash    string
	GasUsed uint64
}

// Executor performs one chain operation. Timeouts are the implementation's
// responsibility; a timeout is reported as an error, never as an operation
// left pending.
type Executor interface {
	Execute(ctx context.Context, op types.OperationType, params map[string]any) (*Result, error)
}

// Func adapts a function to the Executor interface.
type Func func(ctx context.Context, op types.OperationType, params map[string]any) (*Result, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, op types.OperationType, params map[string]any) (*Result, error) {
	return f(ctx, op, params)
}
