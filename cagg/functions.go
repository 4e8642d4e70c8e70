package cagg

import (
	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/config"
	"github.com/cube2222/caggunion/types"
)

// RegisterFunctions adds the watermark and conversion functions to an in-memory catalog.
func RegisterFunctions(cat *catalog.Builtin, names config.Names) {
	cat.RegisterFunction(names.InternalSchema, names.BoundaryFunction, []types.OID{types.Int4}, types.Int8)
	cat.RegisterFunction(names.InternalSchema, names.ToDateFunction, []types.OID{types.Int8}, types.Date)
	cat.RegisterFunction(names.InternalSchema, names.ToTimestampFunction, []types.OID{types.Int8}, types.TimestampTZ)
	cat.RegisterFunction(names.InternalSchema, names.ToTimestampWithoutTimezoneFunction, []types.OID{types.Int8}, types.Timestamp)
}
