package weft

import (
	"testing"
)

func TestExpressionEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		source string
		data   map[string]any
		want   any
	}{
		{
			name:   "variable",
			source: "x",
			data:   map[string]any{"x": 5},
			want:   5,
		},
		{
			name:   "arithmetic",
			source: "a + b",
			data:   map[string]any{"a": 2, "b": 3},
			want:   5,
		},
		{
			name:   "attribute access",
			source: "user.name",
			data:   map[string]any{"user": map[string]any{"name": "Ada"}},
			want:   "Ada",
		},
		{
			name:   "undefined resolves to nil",
			source: "missing",
			data:   nil,
			want:   nil,
		},
		{
			name:   "comparison",
			source: "n > 1",
			data:   map[string]any{"n": 3},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := NewExpression(tt.source)
			if err != nil {
				t.Fatalf("compile error: %v", err)
			}
			got, err := expr.Evaluate(NewContext(tt.data))
			if err != nil {
				t.Fatalf("evaluate error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.source, got, tt.want)
			}
		})
	}
}

func TestExpressionSeesScopeStack(t *testing.T) {
	expr, err := NewExpression("x")
	if err != nil {
		t.Fatal(err)
	}
	ctx := NewContext(map[string]any{"x": 1})
	ctx.Push(map[string]any{"x": 2})
	got, err := expr.Evaluate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Errorf("got %v, want shadowing value 2", got)
	}
	ctx.Pop()
	got, err = expr.Evaluate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("got %v after pop, want 1", got)
	}
}

func TestExpressionCompileError(t *testing.T) {
	if _, err := NewExpression("x +"); err == nil {
		t.Error("malformed expression compiled")
	}
}
