package executor

import (
	"strings"

	tegerrors "github.com/tegdb/tegdb/pkg/errors"
	"github.com/tegdb/tegdb/pkg/planner"
	"github.com/tegdb/tegdb/pkg/rowcodec"
)

// evalScalar evaluates e (a literal, column reference, parameter, binary
// arithmetic expression, or scalar function call) to a value (spec §4.8's
// arithmetic evaluation rules).
func evalScalar(e planner.Expr, row *rowContext, params []rowcodec.Value) (rowcodec.Value, error) {
	switch x := e.(type) {
	case planner.Literal:
		return x.Value, nil
	case planner.ColumnRef:
		if row == nil {
			return rowcodec.Value{}, &tegerrors.ArithmeticError{Message: "column reference is not valid in this context"}
		}
		return row.column(x.Name)
	case planner.Param:
		if x.Index < 1 || x.Index > len(params) {
			return rowcodec.Value{}, &tegerrors.ArithmeticError{Message: "parameter index out of range"}
		}
		return params[x.Index-1], nil
	case planner.BinaryExpr:
		return evalArithmetic(x, row, params)
	case planner.FuncCall:
		return evalFuncCall(x, row, params)
	default:
		return rowcodec.Value{}, &tegerrors.ArithmeticError{Message: "expression is not a scalar"}
	}
}

func evalArithmetic(b planner.BinaryExpr, row *rowContext, params []rowcodec.Value) (rowcodec.Value, error) {
	left, err := evalScalar(b.Left, row, params)
	if err != nil {
		return rowcodec.Value{}, err
	}
	right, err := evalScalar(b.Right, row, params)
	if err != nil {
		return rowcodec.Value{}, err
	}

	if left.IsNull() || right.IsNull() {
		return rowcodec.Null(), nil
	}

	if left.Kind == rowcodec.KindText || right.Kind == rowcodec.KindText || left.Kind == rowcodec.KindBlob || right.Kind == rowcodec.KindBlob {
		return rowcodec.Value{}, &tegerrors.ArithmeticError{Message: "+ - * / are not defined on TEXT/BLOB; use CONCAT"}
	}

	useReal := left.Kind == rowcodec.KindReal || right.Kind == rowcodec.KindReal
	if useReal {
		lf, rf := asFloat(left), asFloat(right)
		switch b.Op {
		case planner.OpAdd:
			return rowcodec.Real(lf + rf), nil
		case planner.OpSub:
			return rowcodec.Real(lf - rf), nil
		case planner.OpMul:
			return rowcodec.Real(lf * rf), nil
		case planner.OpDiv:
			if rf == 0 {
				return rowcodec.Value{}, &tegerrors.ArithmeticError{Message: "division by zero"}
			}
			return rowcodec.Real(lf / rf), nil
		default:
			return rowcodec.Value{}, &tegerrors.ArithmeticError{Message: "undefined operator"}
		}
	}

	li, ri := left.Int, right.Int
	switch b.Op {
	case planner.OpAdd:
		return rowcodec.Int(li + ri), nil
	case planner.OpSub:
		return rowcodec.Int(li - ri), nil
	case planner.OpMul:
		return rowcodec.Int(li * ri), nil
	case planner.OpDiv:
		if ri == 0 {
			return rowcodec.Value{}, &tegerrors.ArithmeticError{Message: "division by zero"}
		}
		return rowcodec.Int(li / ri), nil
	default:
		return rowcodec.Value{}, &tegerrors.ArithmeticError{Message: "undefined operator"}
	}
}

func asFloat(v rowcodec.Value) float64 {
	if v.Kind == rowcodec.KindReal {
		return v.Real
	}
	return float64(v.Int)
}

func evalFuncCall(f planner.FuncCall, row *rowContext, params []rowcodec.Value) (rowcodec.Value, error) {
	switch strings.ToUpper(f.Name) {
	case "CONCAT":
		var sb strings.Builder
		for _, arg := range f.Args {
			v, err := evalScalar(arg, row, params)
			if err != nil {
				return rowcodec.Value{}, err
			}
			if v.IsNull() {
				return rowcodec.Null(), nil
			}
			if v.Kind != rowcodec.KindText {
				return rowcodec.Value{}, &tegerrors.ArithmeticError{Message: "CONCAT arguments must be TEXT"}
			}
			sb.Write(v.Bytes)
		}
		return rowcodec.Text(sb.String()), nil
	default:
		return rowcodec.Value{}, &tegerrors.ArithmeticError{Message: "unknown scalar function " + f.Name}
	}
}

// evalPredicate evaluates e to a WHERE-clause boolean, applying spec §4.8's
// NULL-as-UNKNOWN rule: any comparison touching a NULL value is UNKNOWN,
// treated as false.
func evalPredicate(e planner.Expr, row *rowContext, params []rowcodec.Value) (bool, error) {
	if e == nil {
		return true, nil
	}
	switch x := e.(type) {
	case planner.BinaryExpr:
		switch x.Op {
		case planner.OpAnd:
			l, err := evalPredicate(x.Left, row, params)
			if err != nil || !l {
				return false, err
			}
			return evalPredicate(x.Right, row, params)
		case planner.OpOr:
			l, err := evalPredicate(x.Left, row, params)
			if err != nil {
				return false, err
			}
			if l {
				return true, nil
			}
			return evalPredicate(x.Right, row, params)
		default:
			return evalComparison(x, row, params)
		}
	case planner.Between:
		target, err := evalScalar(x.Target, row, params)
		if err != nil {
			return false, err
		}
		low, err := evalScalar(x.Low, row, params)
		if err != nil {
			return false, err
		}
		high, err := evalScalar(x.High, row, params)
		if err != nil {
			return false, err
		}
		if target.IsNull() || low.IsNull() || high.IsNull() {
			return false, nil
		}
		lc, err := compareValues(target, low)
		if err != nil {
			return false, err
		}
		hc, err := compareValues(target, high)
		if err != nil {
			return false, err
		}
		return lc >= 0 && hc <= 0, nil
	case planner.Like:
		target, err := evalScalar(x.Target, row, params)
		if err != nil {
			return false, err
		}
		pattern, err := evalScalar(x.Pattern, row, params)
		if err != nil {
			return false, err
		}
		if target.IsNull() || pattern.IsNull() {
			return false, nil
		}
		if target.Kind != rowcodec.KindText || pattern.Kind != rowcodec.KindText {
			return false, &tegerrors.ArithmeticError{Message: "LIKE operands must be TEXT"}
		}
		return likeMatch(string(target.Bytes), string(pattern.Bytes)), nil
	default:
		v, err := evalScalar(e, row, params)
		if err != nil {
			return false, err
		}
		return !v.IsNull() && v.Kind == rowcodec.KindInt && v.Int != 0, nil
	}
}

func evalComparison(b planner.BinaryExpr, row *rowContext, params []rowcodec.Value) (bool, error) {
	left, err := evalScalar(b.Left, row, params)
	if err != nil {
		return false, err
	}
	right, err := evalScalar(b.Right, row, params)
	if err != nil {
		return false, err
	}
	if left.IsNull() || right.IsNull() {
		return false, nil
	}
	cmp, err := compareValues(left, right)
	if err != nil {
		return false, err
	}
	switch b.Op {
	case planner.OpEq:
		return cmp == 0, nil
	case planner.OpNeq:
		return cmp != 0, nil
	case planner.OpLt:
		return cmp < 0, nil
	case planner.OpLte:
		return cmp <= 0, nil
	case planner.OpGt:
		return cmp > 0, nil
	case planner.OpGte:
		return cmp >= 0, nil
	default:
		return false, &tegerrors.ArithmeticError{Message: "undefined comparison operator"}
	}
}

// compareValues implements spec §4.8's comparison coercions: integer vs
// real compares numerically, text vs text compares lexicographically;
// mixing text with a number is an error.
func compareValues(a, b rowcodec.Value) (int, error) {
	numeric := func(v rowcodec.Value) (float64, bool) {
		switch v.Kind {
		case rowcodec.KindInt:
			return float64(v.Int), true
		case rowcodec.KindReal:
			return v.Real, true
		default:
			return 0, false
		}
	}

	if af, aok := numeric(a); aok {
		if bf, bok := numeric(b); bok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
		return 0, &tegerrors.ArithmeticError{Message: "cannot compare a number with a non-numeric value"}
	}

	if a.Kind == rowcodec.KindText && b.Kind == rowcodec.KindText {
		return strings.Compare(string(a.Bytes), string(b.Bytes)), nil
	}

	return 0, &tegerrors.ArithmeticError{Message: "incomparable operand types"}
}

// likeMatch implements SQL LIKE with % (any run of characters) and _ (any
// single character) wildcards only; no escape character (SPEC_FULL.md item
// C.3).
func likeMatch(s, pattern string) bool {
	return likeMatchBytes([]byte(s), []byte(pattern))
}

func likeMatchBytes(s, p []byte) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		if likeMatchBytes(s, p[1:]) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if likeMatchBytes(s[i+1:], p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatchBytes(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatchBytes(s[1:], p[1:])
	}
}
