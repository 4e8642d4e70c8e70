package query

import (
	"fmt"
	"strings"

	"github.com/cube2222/caggunion/graph"
)

func Explain(q *Query) *graph.Node {
	var out *graph.Node
	if q.SetOperations != nil {
		out = explainSetOperation(q, q.SetOperations)
	} else {
		out = graph.NewNode("select")
		if q.JoinTree != nil {
			for _, index := range q.JoinTree.FromList {
				out.AddChild("from", explainRangeTableIndex(q, index))
			}
			if q.JoinTree.Quals != nil {
				out.AddChild("where", ExplainExpr(*q.JoinTree.Quals))
			}
		}
		if len(q.GroupBy) > 0 {
			keys := make([]string, len(q.GroupBy))
			for i := range q.GroupBy {
				keys[i] = fmt.Sprint(q.GroupBy[i])
			}
			out.AddField("group by", strings.Join(keys, ", "))
		}
	}
	if q.QueryID != 0 {
		out.AddField("query id", fmt.Sprint(q.QueryID))
	}

	for _, tle := range q.TargetList {
		name := tle.Name
		if tle.Junk {
			name += " (junk)"
		}
		child := ExplainExpr(tle.Expr)
		if tle.OriginTable != 0 {
			child.AddField("origin", fmt.Sprintf("%d.%d", tle.OriginTable, tle.OriginColumn))
		}
		out.AddChild(name, child)
	}
	return out
}

func explainSetOperation(q *Query, setOp *SetOperation) *graph.Node {
	name := strings.ToLower(setOp.Kind.String())
	if setOp.All {
		name += " all"
	}
	out := graph.NewNode(name)
	out.AddChild("left", explainSetOperand(q, setOp.Left))
	out.AddChild("right", explainSetOperand(q, setOp.Right))
	return out
}

func explainSetOperand(q *Query, operand SetOperand) *graph.Node {
	switch operand.SetOperandType {
	case SetOperandTypeRangeTableRef:
		return explainRangeTableIndex(q, operand.RangeTableRef.Index)
	case SetOperandTypeSetOperation:
		return explainSetOperation(q, operand.SetOperation)
	}
	panic("unexhaustive set operand type match")
}

// explainRangeTableIndex resolves a one-based range table index. Dangling references
// are shown as such instead of failing the whole tree.
func explainRangeTableIndex(q *Query, index int) *graph.Node {
	if index < 1 || index > len(q.RangeTable) {
		out := graph.NewNode("invalid reference")
		out.AddField("index", fmt.Sprint(index))
		return out
	}
	return explainRangeTableEntry(q.RangeTable[index-1])
}

func explainRangeTableEntry(rte RangeTableEntry) *graph.Node {
	switch rte.RangeTableEntryType {
	case RangeTableEntryTypeRelation:
		out := graph.NewNode(qualifiedName(rte.Relation.Schema, rte.Relation.Name))
		if rte.Alias != rte.Relation.Name {
			out.AddField("alias", rte.Alias)
		}
		return out
	case RangeTableEntryTypeSubquery:
		out := graph.NewNode("subquery")
		out.AddField("alias", rte.Alias)
		out.AddChild("query", Explain(rte.Subquery.Query))
		return out
	}
	panic("unexhaustive range table entry type match")
}

func ExplainExpr(expr Expression) *graph.Node {
	var out *graph.Node
	switch expr.ExpressionType {
	case ExpressionTypeVar:
		out = graph.NewNode("var")
		out.AddField("ref", fmt.Sprintf("%d.%d", expr.Var.RangeTableIndex, expr.Var.AttributeNumber))
	case ExpressionTypeConst:
		out = graph.NewNode("const")
		if expr.Const.IsNull {
			out.AddField("value", "NULL")
		} else {
			out.AddField("value", fmt.Sprint(expr.Const.Value))
		}
	case ExpressionTypeFuncCall:
		out = graph.NewNode(expr.FuncCall.Function.QualifiedName())
		if expr.FuncCall.Aggregate {
			out.AddField("aggregate", "true")
		}
		for i := range expr.FuncCall.Arguments {
			out.AddChild(fmt.Sprintf("arg_%d", i), ExplainExpr(expr.FuncCall.Arguments[i]))
		}
	case ExpressionTypeCoalesce:
		out = graph.NewNode("coalesce")
		for i := range expr.Coalesce.Arguments {
			out.AddChild(fmt.Sprintf("arg_%d", i), ExplainExpr(expr.Coalesce.Arguments[i]))
		}
	case ExpressionTypeOpExpr:
		out = graph.NewNode(expr.OpExpr.Operator.Name)
		out.AddChild("left", ExplainExpr(expr.OpExpr.Left))
		out.AddChild("right", ExplainExpr(expr.OpExpr.Right))
	case ExpressionTypeAnd:
		out = graph.NewNode("and")
		for i := range expr.And.Arguments {
			out.AddChild(fmt.Sprintf("arg_%d", i), ExplainExpr(expr.And.Arguments[i]))
		}
	default:
		panic("unexhaustive expression type match")
	}
	out.AddField("type", expr.Type.String())
	return out
}

func qualifiedName(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}
