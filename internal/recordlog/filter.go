package recordlog

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled CEL predicate over records. The expression sees
// sn, timestamp and rssi as ints and identifier and metadata as lowercase
// hex strings, for example:
//
//	rssi > -60 && timestamp >= 1600000000
//	identifier.startsWith("00ff")
//
// A nil or empty Filter matches everything.
type Filter struct {
	expr string
	prog cel.Program
}

// NewFilter compiles expr. An empty expression yields a nil Filter.
func NewFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("sn", cel.IntType),
		cel.Variable("timestamp", cel.IntType),
		cel.Variable("rssi", cel.IntType),
		cel.Variable("identifier", cel.StringType),
		cel.Variable("metadata", cel.StringType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("recordlog: filter %q: %w: %w", expr, ErrInvalidArgument, iss.Err())
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, fmt.Errorf("recordlog: filter %q yields %s, want bool: %w", expr, ast.OutputType(), ErrInvalidArgument)
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &Filter{expr: expr, prog: prog}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the filter against rec. Evaluation errors count as no match.
func (f *Filter) Match(rec Record) bool {
	if f == nil {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"sn":         int64(rec.SN),
		"timestamp":  int64(rec.Timestamp),
		"rssi":       int64(rec.RSSI),
		"identifier": rec.Identifier.String(),
		"metadata":   hex.EncodeToString(rec.Metadata[:]),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
