package query

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kr/text"
	"github.com/pkg/errors"

	"github.com/cube2222/caggunion/types"
)

// Deparse renders the query as SQL text.
//
// A set operation is rendered leaf by leaf. The left-most leaf projects the outer
// target list so the result columns get their outer names, the other leaves select *.
func Deparse(q *Query) (string, error) {
	var builder strings.Builder
	if err := deparseQuery(&builder, q); err != nil {
		return "", err
	}
	return builder.String(), nil
}

func deparseQuery(builder *strings.Builder, q *Query) error {
	if q.SetOperations != nil {
		first := true
		return deparseSetOperation(builder, q, q.SetOperations, &first)
	}

	targets, err := deparseTargetList(q)
	if err != nil {
		return errors.Wrap(err, "couldn't deparse target list")
	}
	builder.WriteString("SELECT ")
	builder.WriteString(targets)

	if q.JoinTree != nil && len(q.JoinTree.FromList) > 0 {
		items := make([]string, len(q.JoinTree.FromList))
		for i, index := range q.JoinTree.FromList {
			if index < 1 || index > len(q.RangeTable) {
				return errors.Errorf("from list references range table entry %d, have %d", index, len(q.RangeTable))
			}
			item, err := deparseFromItem(q.RangeTable[index-1])
			if err != nil {
				return errors.Wrapf(err, "couldn't deparse from item %d", index)
			}
			items[i] = item
		}
		builder.WriteString("\nFROM ")
		builder.WriteString(strings.Join(items, ", "))
	}

	if q.JoinTree != nil && q.JoinTree.Quals != nil {
		quals, err := deparseExpr(q, *q.JoinTree.Quals)
		if err != nil {
			return errors.Wrap(err, "couldn't deparse where clause")
		}
		builder.WriteString("\nWHERE ")
		builder.WriteString(quals)
	}

	if len(q.GroupBy) > 0 {
		keys := make([]string, len(q.GroupBy))
		for i, resNo := range q.GroupBy {
			tle, ok := q.TargetByResNo(resNo)
			if !ok {
				return errors.Errorf("group by references missing target entry %d", resNo)
			}
			key, err := deparseExpr(q, tle.Expr)
			if err != nil {
				return errors.Wrapf(err, "couldn't deparse group by key %d", resNo)
			}
			keys[i] = key
		}
		builder.WriteString("\nGROUP BY ")
		builder.WriteString(strings.Join(keys, ", "))
	}
	return nil
}

func deparseSetOperation(builder *strings.Builder, q *Query, setOp *SetOperation, first *bool) error {
	if err := deparseSetOperand(builder, q, setOp.Left, first); err != nil {
		return errors.Wrap(err, "couldn't deparse left operand")
	}
	builder.WriteString("\n")
	builder.WriteString(setOp.Kind.String())
	if setOp.All {
		builder.WriteString(" ALL")
	}
	builder.WriteString("\n")
	if err := deparseSetOperand(builder, q, setOp.Right, first); err != nil {
		return errors.Wrap(err, "couldn't deparse right operand")
	}
	return nil
}

func deparseSetOperand(builder *strings.Builder, q *Query, operand SetOperand, first *bool) error {
	switch operand.SetOperandType {
	case SetOperandTypeSetOperation:
		var nested strings.Builder
		if err := deparseSetOperation(&nested, q, operand.SetOperation, first); err != nil {
			return err
		}
		builder.WriteString("(\n")
		builder.WriteString(text.Indent(nested.String(), "  "))
		builder.WriteString("\n)")
		return nil

	case SetOperandTypeRangeTableRef:
		index := operand.RangeTableRef.Index
		if index < 1 || index > len(q.RangeTable) {
			return errors.Errorf("set operation references range table entry %d, have %d", index, len(q.RangeTable))
		}
		if *first {
			*first = false
			targets, err := deparseTargetList(q)
			if err != nil {
				return errors.Wrap(err, "couldn't deparse target list")
			}
			builder.WriteString("SELECT ")
			builder.WriteString(targets)
		} else {
			builder.WriteString("SELECT *")
		}
		item, err := deparseFromItem(q.RangeTable[index-1])
		if err != nil {
			return err
		}
		builder.WriteString("\nFROM ")
		builder.WriteString(item)
		return nil
	}
	panic("unexhaustive set operand type match")
}

func deparseTargetList(q *Query) (string, error) {
	var targets []string
	for _, tle := range q.TargetList {
		if tle.Junk {
			continue
		}
		expr, err := deparseExpr(q, tle.Expr)
		if err != nil {
			return "", errors.Wrapf(err, "couldn't deparse target entry %d", tle.ResNo)
		}
		if tle.Expr.ExpressionType == ExpressionTypeVar {
			if name, err := columnName(q, *tle.Expr.Var); err == nil && name == tle.Name {
				targets = append(targets, expr)
				continue
			}
		}
		targets = append(targets, fmt.Sprintf("%s AS %s", expr, QuoteIdentifier(tle.Name)))
	}
	if len(targets) == 0 {
		return "", errors.New("no visible target entries")
	}
	return strings.Join(targets, ", "), nil
}

func deparseFromItem(rte RangeTableEntry) (string, error) {
	switch rte.RangeTableEntryType {
	case RangeTableEntryTypeRelation:
		name := QuoteIdentifier(rte.Relation.Name)
		if rte.Relation.Schema != "" {
			name = QuoteIdentifier(rte.Relation.Schema) + "." + name
		}
		if rte.Alias != "" && rte.Alias != rte.Relation.Name {
			name += " AS " + QuoteIdentifier(rte.Alias)
		}
		return name, nil
	case RangeTableEntryTypeSubquery:
		subquery, err := Deparse(rte.Subquery.Query)
		if err != nil {
			return "", errors.Wrapf(err, "couldn't deparse subquery %s", rte.Alias)
		}
		return fmt.Sprintf("(\n%s\n) AS %s", text.Indent(subquery, "  "), QuoteIdentifier(rte.Alias)), nil
	}
	panic("unexhaustive range table entry type match")
}

func columnName(q *Query, v Var) (string, error) {
	if v.RangeTableIndex < 1 || v.RangeTableIndex > len(q.RangeTable) {
		return "", errors.Errorf("column reference to range table entry %d, have %d", v.RangeTableIndex, len(q.RangeTable))
	}
	rte := q.RangeTable[v.RangeTableIndex-1]
	if v.AttributeNumber < 1 || int(v.AttributeNumber) > len(rte.ColumnNames) {
		return "", errors.Errorf("column reference to attribute %d of %s, which has %d columns", v.AttributeNumber, rte.Alias, len(rte.ColumnNames))
	}
	return rte.ColumnNames[v.AttributeNumber-1], nil
}

func deparseExpr(q *Query, expr Expression) (string, error) {
	switch expr.ExpressionType {
	case ExpressionTypeVar:
		name, err := columnName(q, *expr.Var)
		if err != nil {
			return "", err
		}
		alias := q.RangeTable[expr.Var.RangeTableIndex-1].Alias
		return QuoteIdentifier(alias) + "." + QuoteIdentifier(name), nil

	case ExpressionTypeConst:
		return deparseConst(expr), nil

	case ExpressionTypeFuncCall:
		args, err := deparseExprSlice(q, expr.FuncCall.Arguments)
		if err != nil {
			return "", errors.Wrapf(err, "couldn't deparse arguments of %s", expr.FuncCall.Function.Name)
		}
		name := QuoteIdentifier(expr.FuncCall.Function.Name)
		if expr.FuncCall.Function.Schema != "" {
			name = QuoteIdentifier(expr.FuncCall.Function.Schema) + "." + name
		}
		return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", ")), nil

	case ExpressionTypeCoalesce:
		args, err := deparseExprSlice(q, expr.Coalesce.Arguments)
		if err != nil {
			return "", errors.Wrap(err, "couldn't deparse coalesce arguments")
		}
		return fmt.Sprintf("COALESCE(%s)", strings.Join(args, ", ")), nil

	case ExpressionTypeOpExpr:
		left, err := deparseExpr(q, expr.OpExpr.Left)
		if err != nil {
			return "", errors.Wrap(err, "couldn't deparse left operand")
		}
		right, err := deparseExpr(q, expr.OpExpr.Right)
		if err != nil {
			return "", errors.Wrap(err, "couldn't deparse right operand")
		}
		return fmt.Sprintf("%s %s %s", left, expr.OpExpr.Operator.Name, right), nil

	case ExpressionTypeAnd:
		args, err := deparseExprSlice(q, expr.And.Arguments)
		if err != nil {
			return "", errors.Wrap(err, "couldn't deparse conjunction")
		}
		return strings.Join(args, " AND "), nil
	}
	panic("unexhaustive expression type match")
}

func deparseExprSlice(q *Query, exprs []Expression) ([]string, error) {
	out := make([]string, len(exprs))
	for i := range exprs {
		s, err := deparseExpr(q, exprs[i])
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		out[i] = s
	}
	return out, nil
}

var postgresEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func deparseConst(expr Expression) string {
	c := expr.Const
	if c.IsNull {
		return "NULL::" + expr.Type.String()
	}

	switch expr.Type {
	case types.Int4:
		if c.Value >= 0 {
			return fmt.Sprint(c.Value)
		}
	case types.Bool:
		if c.Value != 0 {
			return "true"
		}
		return "false"
	case types.Date:
		switch c.Value {
		case math.MinInt32:
			return "'-infinity'::date"
		case math.MaxInt32:
			return "'infinity'::date"
		}
		return fmt.Sprintf("'%s'::date", postgresEpoch.AddDate(0, 0, int(c.Value)).Format("2006-01-02"))
	case types.Timestamp, types.TimestampTZ:
		switch c.Value {
		case math.MinInt64:
			return fmt.Sprintf("'-infinity'::%s", expr.Type)
		case math.MaxInt64:
			return fmt.Sprintf("'infinity'::%s", expr.Type)
		}
		ts := time.Unix(postgresEpoch.Unix()+c.Value/1e6, (c.Value%1e6)*1e3).UTC()
		layout := "2006-01-02 15:04:05.999999"
		if expr.Type == types.TimestampTZ {
			layout += "-07"
		}
		return fmt.Sprintf("'%s'::%s", ts.Format(layout), expr.Type)
	case types.Interval:
		return fmt.Sprintf("'%d microseconds'::interval", c.Value)
	}
	return fmt.Sprintf("'%d'::%s", c.Value, expr.Type)
}

var reservedWords = map[string]bool{
	"all": true, "and": true, "as": true, "by": true, "case": true, "check": true,
	"column": true, "default": true, "end": true, "from": true, "group": true,
	"having": true, "interval": true, "limit": true, "or": true, "order": true,
	"select": true, "table": true, "time": true, "timestamp": true, "to": true,
	"union": true, "user": true, "where": true,
}

// QuoteIdentifier double-quotes an identifier unless it is a plain lower-case non-keyword.
func QuoteIdentifier(ident string) string {
	safe := ident != "" && !reservedWords[ident]
	for i, r := range ident {
		if !(r >= 'a' && r <= 'z' || r == '_' || (i > 0 && r >= '0' && r <= '9')) {
			safe = false
			break
		}
	}
	if safe {
		return ident
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
