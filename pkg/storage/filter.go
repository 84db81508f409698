package storage

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"github.com/pkg/errors"
	"go.einride.tech/aip/filtering"
)

// FilterVarsMapper is implemented by stored objects that can be filtered with an AIP-160 filter.
type FilterVarsMapper interface {
	FilterVariablesMap() map[string]any
}

type IncludeFunc func(FilterVarsMapper) (bool, error)

// NewIncludeFunc compiles the checked filter expression into a predicate. An empty filter includes everything.
func NewIncludeFunc(filter filtering.Filter) (IncludeFunc, error) {
	if filter.CheckedExpr == nil {
		return func(FilterVarsMapper) (bool, error) {
			return true, nil
		}, nil
	}

	env, err := Env()
	if err != nil {
		return nil, errors.Wrap(err, "creating cel env")
	}
	ast := cel.CheckedExprToAst(filter.CheckedExpr)

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "creating program from ast")
	}
	return func(f FilterVarsMapper) (bool, error) {
		out, _, err := program.Eval(f.FilterVariablesMap())
		if err != nil {
			return false, errors.Wrap(err, "evaluating filter")
		}
		return out.Value() == true, nil
	}, nil
}

// Env declares the functions filters may use. AIP-160 spells equality as a single "=".
func Env() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Function("=",
			cel.Overload("=_bool",
				[]*cel.Type{cel.BoolType, cel.BoolType},
				cel.BoolType,
				cel.BinaryBinding(func(lhs ref.Val, rhs ref.Val) ref.Val {
					return lhs.Equal(rhs)
				})),
			cel.Overload("=_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(lhs ref.Val, rhs ref.Val) ref.Val {
					return lhs.Equal(rhs)
				}))))
}
