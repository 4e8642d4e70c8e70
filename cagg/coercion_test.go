package cagg

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/config"
	"github.com/cube2222/caggunion/query"
	"github.com/cube2222/caggunion/types"
)

func TestConversionFunction(t *testing.T) {
	names := config.DefaultNames()
	tests := []struct {
		typ        types.OID
		want       string
		wantNeeded bool
		wantErr    bool
	}{
		{typ: types.Int2},
		{typ: types.Int4},
		{typ: types.Int8},
		{typ: types.Date, want: "to_date", wantNeeded: true},
		{typ: types.Timestamp, want: "to_timestamp_without_timezone", wantNeeded: true},
		{typ: types.TimestampTZ, want: "to_timestamp", wantNeeded: true},
		{typ: types.Text, wantErr: true},
		{typ: types.Float8, wantErr: true},
		{typ: types.Numeric, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			got, needed, err := ConversionFunction(tt.typ, names)
			if tt.wantErr {
				var unsupported *UnsupportedColumnTypeError
				require.True(t, errors.As(err, &unsupported))
				assert.Equal(t, tt.typ, unsupported.Type)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantNeeded, needed)
			assert.Equal(t, types.IsInteger(tt.typ), !needed)
			assert.True(t, IsSupportedType(tt.typ))
		})
	}
}

func TestConversionFunctionCustomNames(t *testing.T) {
	names := config.DefaultNames()
	names.ToTimestampFunction = "to_timestamptz"

	got, needed, err := ConversionFunction(types.TimestampTZ, names)
	require.NoError(t, err)
	assert.True(t, needed)
	assert.Equal(t, "to_timestamptz", got)
}

func TestLowerBound(t *testing.T) {
	cat := catalog.NewBuiltin()
	tests := []struct {
		typ       types.OID
		wantValue int64
		wantLen   int16
	}{
		{types.Int2, types.MinInt16, 2},
		{types.Int4, types.MinInt32, 4},
		{types.Date, types.MinInt32, 4},
		{types.Int8, types.MinInt64, 8},
		{types.Timestamp, types.MinInt64, 8},
		{types.TimestampTZ, types.MinInt64, 8},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			info, err := cat.LookupType(context.Background(), tt.typ)
			require.NoError(t, err)

			got, err := LowerBound(info)
			require.NoError(t, err)
			require.Equal(t, query.ExpressionTypeConst, got.ExpressionType)
			assert.Equal(t, tt.typ, got.Type)
			assert.Equal(t, int32(-1), got.Typmod)
			assert.Equal(t, types.InvalidOID, got.Collation)
			assert.Equal(t, tt.wantValue, got.Const.Value)
			assert.Equal(t, tt.wantLen, got.Const.Len)
			assert.True(t, got.Const.ByVal)
			assert.False(t, got.Const.IsNull)
		})
	}
}

func TestLowerBoundUnsupported(t *testing.T) {
	_, err := LowerBound(catalog.TypeInfo{OID: types.Text, Name: "text", Len: -1})

	var unsupported *UnsupportedColumnTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "unsupported datatype for continuous aggregates: text", err.Error())
}

func TestTimeBucketInfoValidate(t *testing.T) {
	valid := TimeBucketInfo{HypertableID: 1, PartitionColumnNumber: 1, PartitionColumnType: types.Int8, BucketWidth: 10}
	assert.NoError(t, valid.Validate())

	zeroWidth := valid
	zeroWidth.BucketWidth = 0
	var violation *ContractViolationError
	assert.True(t, errors.As(zeroWidth.Validate(), &violation))

	text := valid
	text.PartitionColumnType = types.Text
	var unsupported *UnsupportedColumnTypeError
	assert.True(t, errors.As(text.Validate(), &unsupported))
}

func TestMaterializationColumnInfoValidate(t *testing.T) {
	info := MaterializationColumnInfo{
		Columns:              []ColumnDefinition{{Name: "bucket", Type: types.Int8}},
		PartitionColumnIndex: 0,
	}
	assert.NoError(t, info.Validate())

	info.PartitionColumnIndex = 1
	var violation *ContractViolationError
	assert.True(t, errors.As(info.Validate(), &violation))

	info.PartitionColumnIndex = -1
	assert.True(t, errors.As(info.Validate(), &violation))
}
