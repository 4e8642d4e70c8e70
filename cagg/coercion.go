package cagg

import (
	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/config"
	"github.com/cube2222/caggunion/query"
	"github.com/cube2222/caggunion/types"
)

func IsSupportedType(typ types.OID) bool {
	switch typ {
	case types.Date, types.Timestamp, types.TimestampTZ:
		return true
	}
	return types.IsInteger(typ)
}

// ConversionFunction returns the name of the internal function converting a raw
// int8 watermark into a value of the given type. Integer types need no conversion.
func ConversionFunction(typ types.OID, names config.Names) (string, bool, error) {
	if types.IsInteger(typ) {
		return "", false, nil
	}
	switch typ {
	case types.Date:
		return names.ToDateFunction, true, nil
	case types.Timestamp:
		return names.ToTimestampWithoutTimezoneFunction, true, nil
	case types.TimestampTZ:
		return names.ToTimestampFunction, true, nil
	}
	return "", false, &UnsupportedColumnTypeError{Type: typ}
}

// LowerBound returns the minimum value of the type as a literal.
// Dates and timestamps use their internal integer representation.
func LowerBound(info catalog.TypeInfo) (query.Expression, error) {
	var value int64
	switch info.OID {
	case types.Int2:
		value = types.MinInt16
	case types.Int4, types.Date:
		value = types.MinInt32
	case types.Int8, types.Timestamp, types.TimestampTZ:
		value = types.MinInt64
	default:
		return query.Expression{}, &UnsupportedColumnTypeError{Type: info.OID}
	}
	return query.NewConst(info.OID, info.Len, info.ByVal, value), nil
}
