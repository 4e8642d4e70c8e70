// Package definition loads continuous aggregate definitions from YAML and turns them
// into the inputs of the union query builder.
package definition

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cube2222/caggunion/cagg"
	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/query"
	"github.com/cube2222/caggunion/types"
)

type Definition struct {
	Hypertable Hypertable `yaml:"hypertable"`
	View       View       `yaml:"view"`
}

type Hypertable struct {
	ID              int32    `yaml:"id"`
	Schema          string   `yaml:"schema"`
	Name            string   `yaml:"name"`
	Columns         []Column `yaml:"columns"`
	PartitionColumn string   `yaml:"partitionColumn"`
	IntervalLength  int64    `yaml:"intervalLength"`
}

type Column struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Dropped bool   `yaml:"dropped"`
}

type View struct {
	MaterializationSchema string `yaml:"materializationSchema"`
	MaterializationTable  string `yaml:"materializationTable"`
	// BucketWidth is in the internal representation of the partition type, microseconds for timestamps.
	BucketWidth int64        `yaml:"bucketWidth"`
	Columns     []ViewColumn `yaml:"columns"`
}

// ViewColumn is one output column of the view. It is exactly one of: the time bucket,
// a grouping column of the hypertable, or an aggregate over a hypertable column.
type ViewColumn struct {
	Name      string `yaml:"name"`
	Bucket    bool   `yaml:"bucket"`
	Column    string `yaml:"column"`
	Aggregate string `yaml:"aggregate"`
	// Type is the aggregate result type, defaults to the argument type.
	Type string `yaml:"type"`
}

// Load reads a definition file. Unknown fields are rejected.
func Load(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't open definition file")
	}
	defer f.Close()

	var def Definition
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		return nil, errors.Wrap(err, "couldn't decode definition")
	}
	def.applyDefaults()
	return &def, nil
}

func (def *Definition) applyDefaults() {
	if def.Hypertable.Schema == "" {
		def.Hypertable.Schema = "public"
	}
	if def.View.MaterializationSchema == "" {
		def.View.MaterializationSchema = "_timescaledb_internal"
	}
	if def.View.MaterializationTable == "" {
		def.View.MaterializationTable = "_materialized_hypertable_" + def.Hypertable.Name
	}
}

// Built holds everything the union query builder needs for one view.
type Built struct {
	TimeBucket      cagg.TimeBucketInfo
	Materialization cagg.MaterializationColumnInfo
	// Materialized selects the rows of the materialization table.
	Materialized *query.Query
	// RealTime aggregates the hypertable.
	RealTime *query.Query
}

type hypertableColumn struct {
	number int16
	typ    types.OID
}

// Build registers the hypertable, the materialization table and the functions
// the view uses in cat, then builds the materialized and real-time queries.
func (def *Definition) Build(cat *catalog.Builtin) (*Built, error) {
	if def.Hypertable.Name == "" {
		return nil, errors.New("hypertable name is required")
	}
	if len(def.View.Columns) == 0 {
		return nil, errors.New("view has no columns")
	}

	columns := make(map[string]hypertableColumn)
	attributes := make([]catalog.Attribute, len(def.Hypertable.Columns))
	for i, col := range def.Hypertable.Columns {
		typ, ok := types.ParseName(col.Type)
		if !ok {
			return nil, errors.Errorf("hypertable column %s has unknown type '%s'", col.Name, col.Type)
		}
		attributes[i] = catalog.Attribute{Name: col.Name, Type: typ, Typmod: -1, Dropped: col.Dropped}
		if col.Dropped {
			continue
		}
		if _, ok := columns[col.Name]; ok {
			return nil, errors.Errorf("duplicate hypertable column %s", col.Name)
		}
		columns[col.Name] = hypertableColumn{number: int16(i + 1), typ: typ}
	}
	partition, ok := columns[def.Hypertable.PartitionColumn]
	if !ok {
		return nil, errors.Errorf("partition column '%s' is not a hypertable column", def.Hypertable.PartitionColumn)
	}

	hypertable := cat.RegisterRelation(catalog.Relation{
		Schema:     def.Hypertable.Schema,
		Name:       def.Hypertable.Name,
		Attributes: attributes,
	})
	hypertableColumns := make([]string, len(attributes))
	for i := range attributes {
		hypertableColumns[i] = attributes[i].Name
	}

	widthType := partition.typ
	switch partition.typ {
	case types.Date, types.Timestamp, types.TimestampTZ:
		widthType = types.Interval
	}
	timeBucket := cat.RegisterFunction("public", "time_bucket", []types.OID{widthType, partition.typ}, partition.typ)
	widthLen, widthByVal, _ := types.Storage(widthType)

	mat := cagg.MaterializationColumnInfo{PartitionColumnIndex: -1}
	var realTimeTargets []query.TargetEntry
	var groupBy []int
	hasAggregates := false

	for i, col := range def.View.Columns {
		resNo := i + 1
		var expr query.Expression
		var columnType types.OID

		switch {
		case col.Bucket:
			if mat.PartitionColumnIndex != -1 {
				return nil, errors.Errorf("view column %s: only one bucket column allowed", col.Name)
			}
			mat.PartitionColumnIndex = i
			mat.PartitionColumnName = col.Name
			columnType = partition.typ
			expr = query.NewFuncCall(timeBucket,
				query.NewConst(widthType, widthLen, widthByVal, def.View.BucketWidth),
				query.NewVar(1, partition.number, partition.typ, -1, types.InvalidOID),
			)
			groupBy = append(groupBy, resNo)

		case col.Aggregate != "":
			arg, ok := columns[col.Column]
			if !ok {
				return nil, errors.Errorf("view column %s: unknown hypertable column '%s'", col.Name, col.Column)
			}
			columnType = arg.typ
			if col.Type != "" {
				columnType, ok = types.ParseName(col.Type)
				if !ok {
					return nil, errors.Errorf("view column %s has unknown type '%s'", col.Name, col.Type)
				}
			}
			aggregate := cat.RegisterFunction("pg_catalog", col.Aggregate, []types.OID{arg.typ}, columnType)
			expr = query.NewAggregateCall(aggregate, query.NewVar(1, arg.number, arg.typ, -1, types.InvalidOID))
			hasAggregates = true

		case col.Column != "":
			source, ok := columns[col.Column]
			if !ok {
				return nil, errors.Errorf("view column %s: unknown hypertable column '%s'", col.Name, col.Column)
			}
			columnType = source.typ
			expr = query.NewVar(1, source.number, source.typ, -1, types.InvalidOID)
			groupBy = append(groupBy, resNo)
			mat.GroupColumnNames = append(mat.GroupColumnNames, col.Name)

		default:
			return nil, errors.Errorf("view column %s must be a bucket, a column or an aggregate", col.Name)
		}

		mat.Columns = append(mat.Columns, cagg.ColumnDefinition{
			Name:    col.Name,
			Type:    columnType,
			Typmod:  -1,
			NotNull: col.Bucket,
		})
		realTimeTargets = append(realTimeTargets, query.TargetEntry{
			Expr:  expr,
			ResNo: resNo,
			Name:  col.Name,
		})
	}
	if mat.PartitionColumnIndex == -1 {
		return nil, errors.New("view has no bucket column")
	}
	for _, tle := range realTimeTargets {
		tle.Expr = query.CloneExpr(tle.Expr)
		mat.PartialSelectList = append(mat.PartialSelectList, tle)
	}
	mat.PartialGroupBy = groupBy

	matAttributes := make([]catalog.Attribute, len(mat.Columns))
	matColumns := make([]string, len(mat.Columns))
	materializedTargets := make([]query.TargetEntry, len(mat.Columns))
	for i, col := range mat.Columns {
		matAttributes[i] = catalog.Attribute{Name: col.Name, Type: col.Type, Typmod: col.Typmod, Collation: col.Collation}
		matColumns[i] = col.Name
		materializedTargets[i] = query.TargetEntry{
			Expr:  query.NewVar(1, int16(i+1), col.Type, col.Typmod, col.Collation),
			ResNo: i + 1,
			Name:  col.Name,
		}
	}
	materialization := cat.RegisterRelation(catalog.Relation{
		Schema:     def.View.MaterializationSchema,
		Name:       def.View.MaterializationTable,
		Attributes: matAttributes,
	})

	materialized := &query.Query{
		CommandType: query.CommandTypeSelect,
		CanSetTag:   true,
		RangeTable: []query.RangeTableEntry{
			query.NewRelationEntry(materialization.OID, materialization.Schema, materialization.Name, "", matColumns),
		},
		JoinTree:   &query.FromExpr{FromList: []int{1}},
		TargetList: materializedTargets,
	}
	realTime := &query.Query{
		CommandType: query.CommandTypeSelect,
		CanSetTag:   true,
		RangeTable: []query.RangeTableEntry{
			query.NewRelationEntry(hypertable.OID, hypertable.Schema, hypertable.Name, "", hypertableColumns),
		},
		JoinTree:      &query.FromExpr{FromList: []int{1}},
		TargetList:    realTimeTargets,
		GroupBy:       append([]int(nil), groupBy...),
		HasAggregates: hasAggregates,
	}

	return &Built{
		TimeBucket: cagg.TimeBucketInfo{
			HypertableID:                  def.Hypertable.ID,
			HypertableOID:                 hypertable.OID,
			PartitionColumnNumber:         partition.number,
			PartitionColumnType:           partition.typ,
			PartitionColumnIntervalLength: def.Hypertable.IntervalLength,
			BucketWidth:                   def.View.BucketWidth,
		},
		Materialization: mat,
		Materialized:    materialized,
		RealTime:        realTime,
	}, nil
}
