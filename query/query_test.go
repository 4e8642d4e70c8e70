package query

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/graph"
	"github.com/cube2222/caggunion/types"
)

var int8LessThan = catalog.Operator{OID: 412, Name: "<", Left: types.Int8, Right: types.Int8, Result: types.Bool}

func metricsQuery() *Query {
	quals := NewOpExpr(int8LessThan, NewVar(1, 1, types.Int8, -1, types.InvalidOID), NewConst(types.Int8, 8, true, 100))
	return &Query{
		CommandType: CommandTypeSelect,
		QueryID:     7,
		CanSetTag:   true,
		RangeTable: []RangeTableEntry{
			NewRelationEntry(16400, "public", "metrics", "", []string{"time", "device", "value"}),
		},
		JoinTree: &FromExpr{
			FromList: []int{1},
			Quals:    &quals,
		},
		TargetList: []TargetEntry{
			{Expr: NewVar(1, 1, types.Int8, -1, types.InvalidOID), ResNo: 1, Name: "time"},
			{Expr: NewVar(1, 3, types.Int8, -1, types.InvalidOID), ResNo: 2, Name: "v"},
			{Expr: NewVar(1, 2, types.Int4, -1, types.InvalidOID), ResNo: 3, Name: "device", Junk: true},
		},
		GroupBy: []int{1},
	}
}

func unionQuery() *Query {
	left := NewSubqueryEntry(metricsQuery(), "*SELECT* 1")
	right := NewSubqueryEntry(metricsQuery(), "*SELECT* 2")
	return &Query{
		CommandType: CommandTypeSelect,
		CanSetTag:   true,
		RangeTable:  []RangeTableEntry{left, right},
		JoinTree:    &FromExpr{},
		TargetList: []TargetEntry{
			{Expr: NewVar(1, 1, types.Int8, -1, types.InvalidOID), ResNo: 1, Name: "bucket", OriginTable: 1, OriginColumn: 1},
			{Expr: NewVar(1, 2, types.Int8, -1, types.InvalidOID), ResNo: 2, Name: "v", OriginTable: 1, OriginColumn: 2},
		},
		SetOperations: &SetOperation{
			Kind:          SetOperationUnion,
			All:           true,
			Left:          NewRangeTableRefOperand(1),
			Right:         NewRangeTableRefOperand(2),
			ColTypes:      []types.OID{types.Int8, types.Int8},
			ColTypmods:    []int32{-1, -1},
			ColCollations: []types.OID{types.InvalidOID, types.InvalidOID},
		},
	}
}

func TestNonJunkTargets(t *testing.T) {
	q := metricsQuery()
	assert.Equal(t, 2, q.NonJunkCount())

	targets := q.NonJunkTargets()
	require.Len(t, targets, 2)
	assert.Equal(t, "time", targets[0].Name)
	assert.Equal(t, "v", targets[1].Name)

	tle, ok := q.TargetByResNo(3)
	require.True(t, ok)
	assert.Equal(t, "device", tle.Name)
	_, ok = q.TargetByResNo(4)
	assert.False(t, ok)
}

func TestNewAnd(t *testing.T) {
	a := NewConst(types.Bool, 1, true, 1)
	b := NewConst(types.Bool, 1, true, 0)
	c := NewConst(types.Bool, 1, true, 1)

	out := NewAnd(NewAnd(a, b), c)
	require.Equal(t, ExpressionTypeAnd, out.ExpressionType)
	assert.Len(t, out.And.Arguments, 3)
	assert.Equal(t, types.Bool, out.Type)
}

func TestNewSubqueryEntry(t *testing.T) {
	inner := metricsQuery()
	rte := NewSubqueryEntry(inner, "*SELECT* 1")

	assert.Equal(t, RangeTableEntryTypeSubquery, rte.RangeTableEntryType)
	assert.Same(t, inner, rte.Subquery.Query)
	assert.Equal(t, "*SELECT* 1", rte.Alias)
	assert.Equal(t, []string{"time", "v"}, rte.ColumnNames)
	assert.False(t, rte.Lateral)
	assert.False(t, rte.Inherit)
	assert.True(t, rte.InFromClause)
	assert.Equal(t, AccessMode(0), rte.RequiredPermissions)
	assert.Equal(t, types.InvalidOID, rte.CheckAsUser)
}

func TestClone(t *testing.T) {
	original := unionQuery()
	snapshot := unionQuery()

	clone := Clone(original)
	if diff := cmp.Diff(original, clone); diff != "" {
		t.Fatalf("clone differs from original (-want +got):\n%s", diff)
	}

	clone.TargetList[0].Name = "changed"
	clone.RangeTable[0].ColumnNames[0] = "changed"
	clone.RangeTable[0].Subquery.Query.JoinTree.Quals.OpExpr.Right.Const.Value = 42
	clone.RangeTable[1].Subquery.Query.TargetList[0].Expr.Var.AttributeNumber = 9
	clone.SetOperations.ColTypes[0] = types.Text
	clone.SetOperations.Left.RangeTableRef.Index = 2

	if diff := cmp.Diff(snapshot, original); diff != "" {
		t.Errorf("mutating the clone changed the original (-want +got):\n%s", diff)
	}
}

func TestTransformersExpressionTransformer(t *testing.T) {
	replaced := 0
	transformers := Transformers{
		ExpressionTransformer: func(expr Expression) Expression {
			if expr.ExpressionType == ExpressionTypeConst {
				replaced++
				expr.Const.Value = 0
			}
			return expr
		},
	}
	original := metricsQuery()
	out := transformers.TransformQuery(original)

	assert.Equal(t, 1, replaced)
	assert.Equal(t, int64(0), out.JoinTree.Quals.OpExpr.Right.Const.Value)
	assert.Equal(t, int64(100), original.JoinTree.Quals.OpExpr.Right.Const.Value)
}

func TestDeparse(t *testing.T) {
	tests := []struct {
		name  string
		query *Query
		want  string
	}{
		{
			name:  "simple select",
			query: metricsQuery(),
			want: `SELECT metrics."time", metrics.value AS v
FROM public.metrics
WHERE metrics."time" < '100'::bigint
GROUP BY metrics."time"`,
		},
		{
			name:  "union all",
			query: unionQuery(),
			want: `SELECT "*SELECT* 1"."time" AS bucket, "*SELECT* 1".v
FROM (
  SELECT metrics."time", metrics.value AS v
  FROM public.metrics
  WHERE metrics."time" < '100'::bigint
  GROUP BY metrics."time"
) AS "*SELECT* 1"
UNION ALL
SELECT *
FROM (
  SELECT metrics."time", metrics.value AS v
  FROM public.metrics
  WHERE metrics."time" < '100'::bigint
  GROUP BY metrics."time"
) AS "*SELECT* 2"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Deparse(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeparseInvalidReference(t *testing.T) {
	q := metricsQuery()
	q.TargetList[0].Expr = NewVar(3, 1, types.Int8, -1, types.InvalidOID)

	_, err := Deparse(q)
	assert.Error(t, err)
}

func TestDeparseConst(t *testing.T) {
	tests := []struct {
		name string
		expr Expression
		want string
	}{
		{"positive integer", NewConst(types.Int4, 4, true, 5), "5"},
		{"negative integer", NewConst(types.Int4, 4, true, types.MinInt32), "'-2147483648'::integer"},
		{"smallint", NewConst(types.Int2, 2, true, types.MinInt16), "'-32768'::smallint"},
		{"null", NewNullConst(types.Int8, 8, true), "NULL::bigint"},
		{"date minimum", NewConst(types.Date, 4, true, types.MinInt32), "'-infinity'::date"},
		{"date", NewConst(types.Date, 4, true, 31), "'2000-02-01'::date"},
		{"timestamptz minimum", NewConst(types.TimestampTZ, 8, true, types.MinInt64), "'-infinity'::timestamp with time zone"},
		{"timestamp", NewConst(types.Timestamp, 8, true, 86400*1000000+1500000), "'2000-01-02 00:00:01.5'::timestamp without time zone"},
		{"boolean", NewConst(types.Bool, 1, true, 1), "true"},
		{"timestamp before epoch", NewConst(types.Timestamp, 8, true, -1), "'1999-12-31 23:59:59.999999'::timestamp without time zone"},
		{"timestamp 1700", NewConst(types.Timestamp, 8, true, -9467020800000000), "'1700-01-01 00:00:00'::timestamp without time zone"},
		{"timestamp 2300", NewConst(types.Timestamp, 8, true, 9467107200000000), "'2300-01-01 00:00:00'::timestamp without time zone"},
		{"timestamptz 1700", NewConst(types.TimestampTZ, 8, true, -9467020800000000+500000), "'1700-01-01 00:00:00.5+00'::timestamp with time zone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deparseConst(tt.expr))
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"value", "value"},
		{"bucket_1", "bucket_1"},
		{"time", `"time"`},
		{"Value", `"Value"`},
		{"1st", `"1st"`},
		{"*SELECT* 1", `"*SELECT* 1"`},
		{`a"b`, `"a""b"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteIdentifier(tt.in), tt.in)
	}
}

func TestLineage(t *testing.T) {
	got := Lineage(unionQuery())
	want := []ColumnOrigin{
		{Name: "bucket", Found: true, OID: 16400, Schema: "public", Relation: "metrics", Column: "time"},
		{Name: "v", Found: true, OID: 16400, Schema: "public", Relation: "metrics", Column: "value"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lineage mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "bucket <- public.metrics.time", got[0].String())
}

func TestLineageComputed(t *testing.T) {
	q := metricsQuery()
	q.TargetList[1].Expr = NewConst(types.Int8, 8, true, 1)

	got := Lineage(q)
	require.Len(t, got, 2)
	assert.True(t, got[0].Found)
	assert.False(t, got[1].Found)
	assert.Equal(t, "v <- (computed)", got[1].String())
}

func TestExplain(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, graph.Render(&sb, Explain(unionQuery())))
	out := sb.String()

	assert.True(t, strings.HasPrefix(out, "union all\n"))
	assert.Contains(t, out, "  left: subquery [alias=*SELECT* 1]\n")
	assert.Contains(t, out, "  right: subquery [alias=*SELECT* 2]\n")
	assert.Contains(t, out, "where: < [type=boolean]")
	assert.Contains(t, out, "bucket: var [ref=1.1, type=bigint, origin=1.1]")
	assert.Contains(t, out, "device (junk): var [ref=1.2, type=integer]")

	_, err := graph.Show(Explain(unionQuery()))
	assert.NoError(t, err)
}

func TestExplainInvalidReference(t *testing.T) {
	q := metricsQuery()
	q.JoinTree.FromList = []int{5}
	var sb strings.Builder
	require.NoError(t, graph.Render(&sb, Explain(q)))
	assert.Contains(t, sb.String(), "from: invalid reference [index=5]\n")

	union := unionQuery()
	union.SetOperations.Right = NewRangeTableRefOperand(0)
	sb.Reset()
	require.NoError(t, graph.Render(&sb, Explain(union)))
	assert.Contains(t, sb.String(), "right: invalid reference [index=0]\n")
}
