package query

import (
	"github.com/cube2222/caggunion/types"
)

type CommandType int

const (
	CommandTypeSelect CommandType = iota
)

type Query struct {
	CommandType CommandType
	QueryID     uint64
	CanSetTag   bool

	RangeTable []RangeTableEntry
	JoinTree   *FromExpr
	TargetList []TargetEntry
	// GroupBy holds ResNo values of grouping target entries.
	GroupBy       []int
	HasAggregates bool
	SetOperations *SetOperation
}

// FromExpr is the join tree: a list of range table indexes (one-based) and the WHERE clause.
type FromExpr struct {
	FromList []int
	Quals    *Expression
}

type TargetEntry struct {
	Expr  Expression
	ResNo int
	Name  string
	// Junk entries are computed but not part of the visible result.
	Junk bool
	// Provenance, zero if unknown.
	OriginTable  int
	OriginColumn int
}

// NonJunkTargets returns the visible target entries in order.
func (q *Query) NonJunkTargets() []TargetEntry {
	out := make([]TargetEntry, 0, len(q.TargetList))
	for _, tle := range q.TargetList {
		if !tle.Junk {
			out = append(out, tle)
		}
	}
	return out
}

func (q *Query) NonJunkCount() int {
	count := 0
	for _, tle := range q.TargetList {
		if !tle.Junk {
			count++
		}
	}
	return count
}

// TargetByResNo returns the target entry with the given result number.
func (q *Query) TargetByResNo(resNo int) (TargetEntry, bool) {
	for _, tle := range q.TargetList {
		if tle.ResNo == resNo {
			return tle, true
		}
	}
	return TargetEntry{}, false
}

type AccessMode uint32

const (
	ACLInsert AccessMode = 1 << iota
	ACLSelect
	ACLUpdate
	ACLDelete
)

type RangeTableEntry struct {
	RangeTableEntryType RangeTableEntryType
	// Only one of the below may be non-null.
	Relation *RelationEntry
	Subquery *SubqueryEntry

	Alias string
	// ColumnNames are the externally visible column names, in attribute order.
	ColumnNames []string

	Lateral      bool
	Inherit      bool
	InFromClause bool

	RequiredPermissions AccessMode
	CheckAsUser         types.OID
}

type RangeTableEntryType int

const (
	RangeTableEntryTypeRelation RangeTableEntryType = iota
	RangeTableEntryTypeSubquery
)

func (t RangeTableEntryType) String() string {
	switch t {
	case RangeTableEntryTypeRelation:
		return "relation"
	case RangeTableEntryTypeSubquery:
		return "subquery"
	}
	return "unknown"
}

type RelationEntry struct {
	OID    types.OID
	Schema string
	Name   string
}

type SubqueryEntry struct {
	Query *Query
}

// NewRelationEntry creates a plain table reference checked for SELECT permission.
func NewRelationEntry(oid types.OID, schema, name, alias string, columnNames []string) RangeTableEntry {
	if alias == "" {
		alias = name
	}
	return RangeTableEntry{
		RangeTableEntryType: RangeTableEntryTypeRelation,
		Relation: &RelationEntry{
			OID:    oid,
			Schema: schema,
			Name:   name,
		},
		Alias:               alias,
		ColumnNames:         columnNames,
		Inherit:             true,
		InFromClause:        true,
		RequiredPermissions: ACLSelect,
		CheckAsUser:         types.InvalidOID,
	}
}

type SetOperationKind int

const (
	SetOperationUnion SetOperationKind = iota
	SetOperationIntersect
	SetOperationExcept
)

func (k SetOperationKind) String() string {
	switch k {
	case SetOperationUnion:
		return "UNION"
	case SetOperationIntersect:
		return "INTERSECT"
	case SetOperationExcept:
		return "EXCEPT"
	}
	return "unknown"
}

type SetOperation struct {
	Kind        SetOperationKind
	All         bool
	Left, Right SetOperand

	// Output column metadata, one entry per visible column.
	ColTypes      []types.OID
	ColTypmods    []int32
	ColCollations []types.OID
}

type SetOperand struct {
	SetOperandType SetOperandType
	// Only one of the below may be non-null.
	RangeTableRef *RangeTableRef
	SetOperation  *SetOperation
}

type SetOperandType int

const (
	SetOperandTypeRangeTableRef SetOperandType = iota
	SetOperandTypeSetOperation
)

// RangeTableRef points at a range table entry by its one-based index.
type RangeTableRef struct {
	Index int
}

func NewRangeTableRefOperand(index int) SetOperand {
	return SetOperand{
		SetOperandType: SetOperandTypeRangeTableRef,
		RangeTableRef:  &RangeTableRef{Index: index},
	}
}
