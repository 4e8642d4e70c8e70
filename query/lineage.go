package query

import (
	"fmt"

	"github.com/cube2222/caggunion/types"
)

// ColumnOrigin is the base table column a visible output column is read from.
type ColumnOrigin struct {
	Name string

	// Unset if the column is computed.
	Found    bool
	OID      types.OID
	Schema   string
	Relation string
	Column   string
}

func (c ColumnOrigin) String() string {
	if !c.Found {
		return fmt.Sprintf("%s <- (computed)", c.Name)
	}
	return fmt.Sprintf("%s <- %s.%s", c.Name, qualifiedName(c.Schema, c.Relation), c.Column)
}

// Lineage resolves every visible output column down to a base relation column,
// following recorded provenance first and plain column references otherwise.
func Lineage(q *Query) []ColumnOrigin {
	var out []ColumnOrigin
	for _, tle := range q.TargetList {
		if tle.Junk {
			continue
		}
		origin := resolveTarget(q, tle)
		origin.Name = tle.Name
		out = append(out, origin)
	}
	return out
}

func resolveTarget(q *Query, tle TargetEntry) ColumnOrigin {
	if tle.OriginTable != 0 {
		return resolveColumn(q, tle.OriginTable, tle.OriginColumn)
	}
	if tle.Expr.ExpressionType == ExpressionTypeVar {
		return resolveColumn(q, tle.Expr.Var.RangeTableIndex, int(tle.Expr.Var.AttributeNumber))
	}
	return ColumnOrigin{}
}

func resolveColumn(q *Query, rangeTableIndex, attributeNumber int) ColumnOrigin {
	if rangeTableIndex < 1 || rangeTableIndex > len(q.RangeTable) {
		return ColumnOrigin{}
	}
	rte := q.RangeTable[rangeTableIndex-1]

	switch rte.RangeTableEntryType {
	case RangeTableEntryTypeRelation:
		if attributeNumber < 1 || attributeNumber > len(rte.ColumnNames) {
			return ColumnOrigin{}
		}
		return ColumnOrigin{
			Found:    true,
			OID:      rte.Relation.OID,
			Schema:   rte.Relation.Schema,
			Relation: rte.Relation.Name,
			Column:   rte.ColumnNames[attributeNumber-1],
		}
	case RangeTableEntryTypeSubquery:
		targets := rte.Subquery.Query.NonJunkTargets()
		if attributeNumber < 1 || attributeNumber > len(targets) {
			return ColumnOrigin{}
		}
		return resolveTarget(rte.Subquery.Query, targets[attributeNumber-1])
	}
	panic("unexhaustive range table entry type match")
}
