// Package cagg builds the real-time view query of a continuous aggregate: the
// materialized rows below the watermark UNION ALL the rows aggregated on the fly
// from the hypertable at or above it.
package cagg

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/config"
	"github.com/cube2222/caggunion/logs"
	"github.com/cube2222/caggunion/query"
)

const (
	MaterializedBranchAlias = "*SELECT* 1"
	RealTimeBranchAlias     = "*SELECT* 2"
)

type Builder struct {
	catalog catalog.Catalog
	names   config.Names
	logger  logrus.FieldLogger
}

type Option func(*Builder)

func WithNames(names config.Names) Option {
	return func(b *Builder) {
		b.names = names
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

func NewBuilder(cat catalog.Catalog, opts ...Option) *Builder {
	b := &Builder{
		catalog: cat,
		names:   config.DefaultNames(),
		logger:  logs.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildUnionQuery combines q1, reading the materialization table, and q2, aggregating
// the hypertable, into a single UNION ALL query split at the watermark.
//
// The inputs are never modified. The output columns take their values and types
// from q1 and their names from q2.
func (b *Builder) BuildUnionQuery(ctx context.Context, tb TimeBucketInfo, mat MaterializationColumnInfo, q1, q2 *query.Query) (*query.Query, error) {
	if q1 == nil || q2 == nil {
		return nil, contractViolation("both queries are required")
	}
	if n1, n2 := q1.NonJunkCount(), q2.NonJunkCount(); n1 != n2 {
		return nil, contractViolation("target list lengths differ: materialized query has %d columns, real-time query has %d", n1, n2)
	}
	if err := mat.Validate(); err != nil {
		return nil, err
	}
	if err := tb.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger.WithFields(logrus.Fields{
		"build_id":      ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		"hypertable_id": tb.HypertableID,
	})

	q1 = query.Clone(q1)
	q2 = query.Clone(q2)

	typeInfo, err := b.catalog.LookupType(ctx, tb.PartitionColumnType)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't look up partition column type %s", tb.PartitionColumnType)
	}
	if typeInfo.LessThan.OID == 0 {
		return nil, errors.Errorf("type %s has no less-than operator", tb.PartitionColumnType)
	}

	materializedQual, err := b.BoundaryQual(ctx, tb.HypertableID, typeInfo, typeInfo.LessThan, len(q1.RangeTable), int16(mat.PartitionColumnIndex+1))
	if err != nil {
		return nil, errors.Wrap(err, "couldn't build materialized branch filter")
	}
	addQual(q1, materializedQual)
	logger.WithField("filter", materializedQual.String()).Debug("materialized branch filter")

	columnName, err := b.catalog.AttributeName(ctx, tb.HypertableOID, tb.PartitionColumnNumber)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get partition column name")
	}
	attributeNumber, err := b.catalog.AttributeNumber(ctx, tb.HypertableOID, columnName)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't get attribute number of partition column %s", columnName)
	}
	greaterOrEqual, err := b.catalog.Complement(ctx, typeInfo.LessThan)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't get complement of operator %s", typeInfo.LessThan.Name)
	}
	realTimeQual, err := b.BoundaryQual(ctx, tb.HypertableID, typeInfo, greaterOrEqual, len(q2.RangeTable), attributeNumber)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't build real-time branch filter")
	}
	addQual(q2, realTimeQual)
	logger.WithField("filter", realTimeQual.String()).Debug("real-time branch filter")

	out := combine(q1, q2)
	logger.WithField("columns", len(out.TargetList)).Debug("built union query")
	return out, nil
}

// addQual ANDs the filter with any filter the query already has.
func addQual(q *query.Query, qual query.Expression) {
	if q.JoinTree == nil {
		q.JoinTree = &query.FromExpr{}
	}
	if q.JoinTree.Quals != nil {
		qual = query.NewAnd(*q.JoinTree.Quals, qual)
	}
	q.JoinTree.Quals = &qual
}

func combine(q1, q2 *query.Query) *query.Query {
	materialized := query.NewSubqueryEntry(q1, MaterializedBranchAlias)
	realTime := query.NewSubqueryEntry(q2, RealTimeBranchAlias)

	setOp := &query.SetOperation{
		Kind:  query.SetOperationUnion,
		All:   true,
		Left:  query.NewRangeTableRefOperand(1),
		Right: query.NewRangeTableRefOperand(2),
	}

	targets1 := q1.NonJunkTargets()
	targets2 := q2.NonJunkTargets()
	targetList := make([]query.TargetEntry, len(targets1))
	for i := range targets1 {
		expr := targets1[i].Expr
		setOp.ColTypes = append(setOp.ColTypes, expr.Type)
		setOp.ColTypmods = append(setOp.ColTypmods, expr.Typmod)
		setOp.ColCollations = append(setOp.ColCollations, expr.Collation)

		// Subquery columns are the visible targets only, so the position, not ResNo,
		// is the attribute number within the materialized branch.
		position := i + 1
		targetList[i] = query.TargetEntry{
			Expr:         query.NewVar(1, int16(position), expr.Type, expr.Typmod, expr.Collation),
			ResNo:        position,
			Name:         targets2[i].Name,
			OriginTable:  1,
			OriginColumn: position,
		}
	}

	return &query.Query{
		CommandType:   query.CommandTypeSelect,
		QueryID:       q1.QueryID,
		CanSetTag:     q1.CanSetTag,
		RangeTable:    []query.RangeTableEntry{materialized, realTime},
		JoinTree:      &query.FromExpr{},
		TargetList:    targetList,
		HasAggregates: false,
		SetOperations: setOp,
	}
}
