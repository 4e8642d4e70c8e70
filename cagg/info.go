package cagg

import (
	"github.com/cube2222/caggunion/query"
	"github.com/cube2222/caggunion/types"
)

// TimeBucketInfo describes the hypertable a continuous aggregate is defined on
// and the bucketing of its partition column.
type TimeBucketInfo struct {
	HypertableID  int32
	HypertableOID types.OID
	// PartitionColumnNumber is the one-based attribute number of the partition column in the hypertable.
	PartitionColumnNumber         int16
	PartitionColumnType           types.OID
	PartitionColumnIntervalLength int64
	BucketWidth                   int64
}

func (info TimeBucketInfo) Validate() error {
	if info.BucketWidth <= 0 {
		return contractViolation("bucket width must be positive, is %d", info.BucketWidth)
	}
	if info.PartitionColumnNumber < 1 {
		return contractViolation("invalid partition column number %d", info.PartitionColumnNumber)
	}
	if !IsSupportedType(info.PartitionColumnType) {
		return &UnsupportedColumnTypeError{Type: info.PartitionColumnType}
	}
	return nil
}

// ColumnDefinition is a single column of the materialization table.
type ColumnDefinition struct {
	Name      string
	Type      types.OID
	Typmod    int32
	Collation types.OID
	NotNull   bool
}

// MaterializationColumnInfo describes the layout of the materialization table
// and the partial aggregation query populating it.
type MaterializationColumnInfo struct {
	Columns           []ColumnDefinition
	PartialSelectList []query.TargetEntry
	PartialGroupBy    []int
	// GroupColumnNames excludes the partition column.
	GroupColumnNames []string
	// PartitionColumnIndex is the zero-based position of the partition column in Columns.
	PartitionColumnIndex int
	PartitionColumnName  string
}

func (info MaterializationColumnInfo) Validate() error {
	if info.PartitionColumnIndex < 0 || info.PartitionColumnIndex >= len(info.Columns) {
		return contractViolation("partition column index %d out of range for %d materialization columns", info.PartitionColumnIndex, len(info.Columns))
	}
	return nil
}
