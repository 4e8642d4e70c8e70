package query

import (
	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/types"
)

// Transformers rebuild a query tree bottom-up, applying the given callbacks to every
// rebuilt node. The result never shares memory with the input, so a Transformers
// without callbacks is a deep copy.
type Transformers struct {
	QueryTransformer      func(q *Query) *Query
	ExpressionTransformer func(expr Expression) Expression
}

func Clone(q *Query) *Query {
	t := Transformers{}
	return t.TransformQuery(q)
}

func CloneExpr(expr Expression) Expression {
	t := Transformers{}
	return t.TransformExpr(expr)
}

func (t *Transformers) TransformQuery(q *Query) *Query {
	if q == nil {
		return nil
	}

	var rangeTable []RangeTableEntry
	if q.RangeTable != nil {
		rangeTable = make([]RangeTableEntry, len(q.RangeTable))
		for i := range q.RangeTable {
			rangeTable[i] = t.transformRangeTableEntry(q.RangeTable[i])
		}
	}

	var joinTree *FromExpr
	if q.JoinTree != nil {
		joinTree = &FromExpr{
			FromList: copyInts(q.JoinTree.FromList),
		}
		if q.JoinTree.Quals != nil {
			quals := t.TransformExpr(*q.JoinTree.Quals)
			joinTree.Quals = &quals
		}
	}

	var targetList []TargetEntry
	if q.TargetList != nil {
		targetList = make([]TargetEntry, len(q.TargetList))
		for i := range q.TargetList {
			targetList[i] = q.TargetList[i]
			targetList[i].Expr = t.TransformExpr(q.TargetList[i].Expr)
		}
	}

	transformed := &Query{
		CommandType:   q.CommandType,
		QueryID:       q.QueryID,
		CanSetTag:     q.CanSetTag,
		RangeTable:    rangeTable,
		JoinTree:      joinTree,
		TargetList:    targetList,
		GroupBy:       copyInts(q.GroupBy),
		HasAggregates: q.HasAggregates,
		SetOperations: t.transformSetOperation(q.SetOperations),
	}
	if t.QueryTransformer != nil {
		transformed = t.QueryTransformer(transformed)
	}
	return transformed
}

func (t *Transformers) transformRangeTableEntry(rte RangeTableEntry) RangeTableEntry {
	out := rte
	out.ColumnNames = copyStrings(rte.ColumnNames)

	switch rte.RangeTableEntryType {
	case RangeTableEntryTypeRelation:
		relation := *rte.Relation
		out.Relation = &relation
	case RangeTableEntryTypeSubquery:
		out.Subquery = &SubqueryEntry{
			Query: t.TransformQuery(rte.Subquery.Query),
		}
	default:
		panic("unexhaustive range table entry type match")
	}
	return out
}

func (t *Transformers) transformSetOperation(setOp *SetOperation) *SetOperation {
	if setOp == nil {
		return nil
	}
	return &SetOperation{
		Kind:          setOp.Kind,
		All:           setOp.All,
		Left:          t.transformSetOperand(setOp.Left),
		Right:         t.transformSetOperand(setOp.Right),
		ColTypes:      copyOIDs(setOp.ColTypes),
		ColTypmods:    copyInt32s(setOp.ColTypmods),
		ColCollations: copyOIDs(setOp.ColCollations),
	}
}

func (t *Transformers) transformSetOperand(operand SetOperand) SetOperand {
	switch operand.SetOperandType {
	case SetOperandTypeRangeTableRef:
		return SetOperand{
			SetOperandType: operand.SetOperandType,
			RangeTableRef:  &RangeTableRef{Index: operand.RangeTableRef.Index},
		}
	case SetOperandTypeSetOperation:
		return SetOperand{
			SetOperandType: operand.SetOperandType,
			SetOperation:   t.transformSetOperation(operand.SetOperation),
		}
	}
	panic("unexhaustive set operand type match")
}

func (t *Transformers) TransformExpr(expr Expression) Expression {
	var transformed Expression
	switch expr.ExpressionType {
	case ExpressionTypeVar:
		transformed = Expression{
			Type:           expr.Type,
			Typmod:         expr.Typmod,
			Collation:      expr.Collation,
			ExpressionType: expr.ExpressionType,
			Var: &Var{
				RangeTableIndex: expr.Var.RangeTableIndex,
				AttributeNumber: expr.Var.AttributeNumber,
			},
		}
	case ExpressionTypeConst:
		constant := *expr.Const
		transformed = Expression{
			Type:           expr.Type,
			Typmod:         expr.Typmod,
			Collation:      expr.Collation,
			ExpressionType: expr.ExpressionType,
			Const:          &constant,
		}
	case ExpressionTypeFuncCall:
		transformed = Expression{
			Type:           expr.Type,
			Typmod:         expr.Typmod,
			Collation:      expr.Collation,
			ExpressionType: expr.ExpressionType,
			FuncCall: &FuncCall{
				Function:  copyFunctionRef(expr.FuncCall.Function),
				Arguments: t.transformExprSlice(expr.FuncCall.Arguments),
				Aggregate: expr.FuncCall.Aggregate,
			},
		}
	case ExpressionTypeCoalesce:
		transformed = Expression{
			Type:           expr.Type,
			Typmod:         expr.Typmod,
			Collation:      expr.Collation,
			ExpressionType: expr.ExpressionType,
			Coalesce: &Coalesce{
				Arguments: t.transformExprSlice(expr.Coalesce.Arguments),
			},
		}
	case ExpressionTypeOpExpr:
		transformed = Expression{
			Type:           expr.Type,
			Typmod:         expr.Typmod,
			Collation:      expr.Collation,
			ExpressionType: expr.ExpressionType,
			OpExpr: &OpExpr{
				Operator: expr.OpExpr.Operator,
				Left:     t.TransformExpr(expr.OpExpr.Left),
				Right:    t.TransformExpr(expr.OpExpr.Right),
			},
		}
	case ExpressionTypeAnd:
		transformed = Expression{
			Type:           expr.Type,
			Typmod:         expr.Typmod,
			Collation:      expr.Collation,
			ExpressionType: expr.ExpressionType,
			And: &And{
				Arguments: t.transformExprSlice(expr.And.Arguments),
			},
		}
	default:
		panic("unexhaustive expression type match")
	}
	if t.ExpressionTransformer != nil {
		transformed = t.ExpressionTransformer(transformed)
	}
	return transformed
}

func (t *Transformers) transformExprSlice(exprs []Expression) []Expression {
	if exprs == nil {
		return nil
	}
	out := make([]Expression, len(exprs))
	for i := range exprs {
		out[i] = t.TransformExpr(exprs[i])
	}
	return out
}

func copyFunctionRef(f catalog.FunctionRef) catalog.FunctionRef {
	out := f
	out.ArgTypes = copyOIDs(f.ArgTypes)
	return out
}

func copyInts(in []int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}

func copyInt32s(in []int32) []int32 {
	if in == nil {
		return nil
	}
	out := make([]int32, len(in))
	copy(out, in)
	return out
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyOIDs(in []types.OID) []types.OID {
	if in == nil {
		return nil
	}
	out := make([]types.OID, len(in))
	copy(out, in)
	return out
}
