package query

import (
	"fmt"

	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/types"
)

type Expression struct {
	Type      types.OID
	Typmod    int32
	Collation types.OID

	ExpressionType ExpressionType
	// Only one of the below may be non-null.
	Var      *Var
	Const    *Const
	FuncCall *FuncCall
	Coalesce *Coalesce
	OpExpr   *OpExpr
	And      *And
}

type ExpressionType int

const (
	ExpressionTypeVar ExpressionType = iota
	ExpressionTypeConst
	ExpressionTypeFuncCall
	ExpressionTypeCoalesce
	ExpressionTypeOpExpr
	ExpressionTypeAnd
)

func (t ExpressionType) String() string {
	switch t {
	case ExpressionTypeVar:
		return "var"
	case ExpressionTypeConst:
		return "const"
	case ExpressionTypeFuncCall:
		return "func_call"
	case ExpressionTypeCoalesce:
		return "coalesce"
	case ExpressionTypeOpExpr:
		return "op_expr"
	case ExpressionTypeAnd:
		return "and"
	}
	return "unknown"
}

// Var references a column of a range table entry of the enclosing query.
type Var struct {
	// Both are one-based.
	RangeTableIndex int
	AttributeNumber int16
}

// Const holds a fixed-width value in its internal integer representation.
type Const struct {
	Len    int16
	ByVal  bool
	IsNull bool
	Value  int64
}

type FuncCall struct {
	Function  catalog.FunctionRef
	Arguments []Expression
	Aggregate bool
}

// Coalesce evaluates to its first non-null argument.
type Coalesce struct {
	Arguments []Expression
}

type OpExpr struct {
	Operator    catalog.Operator
	Left, Right Expression
}

type And struct {
	Arguments []Expression
}

func NewVar(rangeTableIndex int, attributeNumber int16, typ types.OID, typmod int32, collation types.OID) Expression {
	return Expression{
		Type:           typ,
		Typmod:         typmod,
		Collation:      collation,
		ExpressionType: ExpressionTypeVar,
		Var: &Var{
			RangeTableIndex: rangeTableIndex,
			AttributeNumber: attributeNumber,
		},
	}
}

func NewConst(typ types.OID, length int16, byVal bool, value int64) Expression {
	return Expression{
		Type:           typ,
		Typmod:         -1,
		Collation:      types.InvalidOID,
		ExpressionType: ExpressionTypeConst,
		Const: &Const{
			Len:   length,
			ByVal: byVal,
			Value: value,
		},
	}
}

func NewNullConst(typ types.OID, length int16, byVal bool) Expression {
	out := NewConst(typ, length, byVal, 0)
	out.Const.IsNull = true
	return out
}

// NewFuncCall creates a call typed with the function's return type.
func NewFuncCall(function catalog.FunctionRef, args ...Expression) Expression {
	return Expression{
		Type:           function.ReturnType,
		Typmod:         -1,
		Collation:      types.InvalidOID,
		ExpressionType: ExpressionTypeFuncCall,
		FuncCall: &FuncCall{
			Function:  function,
			Arguments: args,
		},
	}
}

func NewAggregateCall(function catalog.FunctionRef, args ...Expression) Expression {
	out := NewFuncCall(function, args...)
	out.FuncCall.Aggregate = true
	return out
}

func NewCoalesce(typ types.OID, args ...Expression) Expression {
	return Expression{
		Type:           typ,
		Typmod:         -1,
		Collation:      types.InvalidOID,
		ExpressionType: ExpressionTypeCoalesce,
		Coalesce: &Coalesce{
			Arguments: args,
		},
	}
}

func NewOpExpr(op catalog.Operator, left, right Expression) Expression {
	return Expression{
		Type:           op.Result,
		Typmod:         -1,
		Collation:      types.InvalidOID,
		ExpressionType: ExpressionTypeOpExpr,
		OpExpr: &OpExpr{
			Operator: op,
			Left:     left,
			Right:    right,
		},
	}
}

// NewAnd flattens nested conjunctions into a single one.
func NewAnd(args ...Expression) Expression {
	var flattened []Expression
	for _, arg := range args {
		if arg.ExpressionType == ExpressionTypeAnd {
			flattened = append(flattened, arg.And.Arguments...)
		} else {
			flattened = append(flattened, arg)
		}
	}
	return Expression{
		Type:           types.Bool,
		Typmod:         -1,
		Collation:      types.InvalidOID,
		ExpressionType: ExpressionTypeAnd,
		And: &And{
			Arguments: flattened,
		},
	}
}

func (expr Expression) String() string {
	switch expr.ExpressionType {
	case ExpressionTypeVar:
		return fmt.Sprintf("var(%d.%d)", expr.Var.RangeTableIndex, expr.Var.AttributeNumber)
	case ExpressionTypeConst:
		if expr.Const.IsNull {
			return fmt.Sprintf("NULL::%s", expr.Type)
		}
		return fmt.Sprintf("%d::%s", expr.Const.Value, expr.Type)
	case ExpressionTypeFuncCall:
		return fmt.Sprintf("%s(%s)", expr.FuncCall.Function.QualifiedName(), joinExpressions(expr.FuncCall.Arguments, ", "))
	case ExpressionTypeCoalesce:
		return fmt.Sprintf("COALESCE(%s)", joinExpressions(expr.Coalesce.Arguments, ", "))
	case ExpressionTypeOpExpr:
		return fmt.Sprintf("%s %s %s", expr.OpExpr.Left, expr.OpExpr.Operator.Name, expr.OpExpr.Right)
	case ExpressionTypeAnd:
		return fmt.Sprintf("(%s)", joinExpressions(expr.And.Arguments, " AND "))
	}
	panic("unexhaustive expression type match")
}

func joinExpressions(exprs []Expression, sep string) string {
	out := ""
	for i := range exprs {
		if i > 0 {
			out += sep
		}
		out += exprs[i].String()
	}
	return out
}
