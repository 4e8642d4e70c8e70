package query

import (
	"github.com/cube2222/caggunion/types"
)

// NewSubqueryEntry wraps q as a named FROM-clause subquery.
// The visible column names are those of q's non-junk target entries.
// Subqueries are never checked for access rights; the outer query is.
func NewSubqueryEntry(q *Query, alias string) RangeTableEntry {
	var columnNames []string
	for _, tle := range q.TargetList {
		if !tle.Junk {
			columnNames = append(columnNames, tle.Name)
		}
	}

	return RangeTableEntry{
		RangeTableEntryType: RangeTableEntryTypeSubquery,
		Subquery: &SubqueryEntry{
			Query: q,
		},
		Alias:               alias,
		ColumnNames:         columnNames,
		Lateral:             false,
		Inherit:             false,
		InFromClause:        true,
		RequiredPermissions: 0,
		CheckAsUser:         types.InvalidOID,
	}
}
