// Package guard evaluates an optional admin-configured expression
// against incoming login-URL payloads before any identity resolution
// happens. It lets a deployment restrict which payloads may be
// provisioned, e.g. `email endsWith "@example.com"`.
package guard

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/catalyst/userkey/internal/core"
)

type Guard struct {
	source  string
	program *vm.Program
}

// Compile validates and compiles the expression. An empty source yields
// a guard that allows everything.
func Compile(source string) (*Guard, error) {
	g := &Guard{source: source}
	if source == "" {
		return g, nil
	}

	program, err := expr.Compile(source, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling guard expression: %w", err)
	}
	g.program = program
	return g, nil
}

// Allow evaluates the guard against a payload. A runtime evaluation
// error denies the request; guards must fail closed.
func (g *Guard) Allow(payload core.UserPayload) error {
	if g == nil || g.program == nil {
		return nil
	}

	out, err := expr.Run(g.program, payload.Env())
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrGuardDenied, err)
	}
	if allowed, ok := out.(bool); !ok || !allowed {
		return core.ErrGuardDenied
	}
	return nil
}
