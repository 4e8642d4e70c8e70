package cagg

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/query"
	"github.com/cube2222/caggunion/types"
)

// BoundaryQual builds the filter
//
//	column <op> COALESCE(convert(cagg_watermark(hypertable_id)), lower_bound)
//
// for the column at the given range table index and attribute number.
// While the watermark is unset the COALESCE falls back to the type's minimum.
func (b *Builder) BoundaryQual(ctx context.Context, hypertableID int32, typeInfo catalog.TypeInfo, op catalog.Operator, rangeTableIndex int, attributeNumber int16) (query.Expression, error) {
	converter, needsConversion, err := ConversionFunction(typeInfo.OID, b.names)
	if err != nil {
		return query.Expression{}, err
	}
	lowerBound, err := LowerBound(typeInfo)
	if err != nil {
		return query.Expression{}, err
	}

	watermarkFn, err := b.catalog.ResolveFunction(ctx, b.names.InternalSchema, b.names.BoundaryFunction, []types.OID{types.Int4})
	if err != nil {
		return query.Expression{}, errors.Wrap(err, "couldn't resolve watermark function")
	}
	watermarkFn.ReturnType = types.Int8
	boundary := query.NewFuncCall(watermarkFn, query.NewConst(types.Int4, 4, true, int64(hypertableID)))

	if needsConversion {
		converterFn, err := b.catalog.ResolveFunction(ctx, b.names.InternalSchema, converter, []types.OID{types.Int8})
		if err != nil {
			return query.Expression{}, errors.Wrapf(err, "couldn't resolve conversion function for %s", typeInfo.OID)
		}
		converterFn.ReturnType = typeInfo.OID
		boundary = query.NewFuncCall(converterFn, boundary)
	}

	column := query.NewVar(rangeTableIndex, attributeNumber, typeInfo.OID, -1, types.InvalidOID)
	coalesce := query.NewCoalesce(typeInfo.OID, boundary, lowerBound)

	out := query.NewOpExpr(op, column, coalesce)
	out.Type = types.Bool
	return out, nil
}
