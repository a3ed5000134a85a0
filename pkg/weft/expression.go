package weft

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Expression is a template expression compiled once at parse time and
// evaluated against a Context during generation. The expression
// language itself is provided by expr-lang; undefined variables are not
// errors and evaluate to nil.
type Expression struct {
	Source  string
	program *vm.Program
}

// NewExpression compiles the given source. Compilation errors carry an
// offset into the source and are surfaced by the caller together with
// the template position of the expression.
func NewExpression(source string) (*Expression, error) {
	program, err := expr.Compile(source,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, err
	}
	return &Expression{Source: source, program: program}, nil
}

// Evaluate runs the compiled expression against a flattened view of the
// context's scope stack.
func (e *Expression) Evaluate(ctx *Context) (any, error) {
	return vm.Run(e.program, ctx.Flatten())
}
