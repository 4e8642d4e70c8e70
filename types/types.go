package types

import (
	"fmt"
	"math"
	"strings"
)

// OID identifies a type, function, operator, relation or collation in the catalog.
type OID uint32

const InvalidOID OID = 0

const (
	Bool        OID = 16
	Int8        OID = 20
	Int2        OID = 21
	Int4        OID = 23
	Text        OID = 25
	ObjectID    OID = 26
	Float8      OID = 701
	Date        OID = 1082
	Timestamp   OID = 1114
	TimestampTZ OID = 1184
	Interval    OID = 1186
	Numeric     OID = 1700
)

const (
	MinInt16 = math.MinInt16
	MinInt32 = math.MinInt32
	MinInt64 = math.MinInt64
)

type builtinType struct {
	name    string
	aliases []string
	len     int16
	byVal   bool
}

// Storage width of -1 means variable length.
var builtinTypes = map[OID]builtinType{
	Bool:        {name: "boolean", aliases: []string{"bool"}, len: 1, byVal: true},
	Int8:        {name: "bigint", aliases: []string{"int8"}, len: 8, byVal: true},
	Int2:        {name: "smallint", aliases: []string{"int2"}, len: 2, byVal: true},
	Int4:        {name: "integer", aliases: []string{"int4", "int"}, len: 4, byVal: true},
	Text:        {name: "text", len: -1, byVal: false},
	ObjectID:    {name: "oid", len: 4, byVal: true},
	Float8:      {name: "double precision", aliases: []string{"float8"}, len: 8, byVal: true},
	Date:        {name: "date", len: 4, byVal: true},
	Timestamp:   {name: "timestamp without time zone", aliases: []string{"timestamp"}, len: 8, byVal: true},
	TimestampTZ: {name: "timestamp with time zone", aliases: []string{"timestamptz"}, len: 8, byVal: true},
	Interval:    {name: "interval", len: 16, byVal: false},
	Numeric:     {name: "numeric", aliases: []string{"decimal"}, len: -1, byVal: false},
}

func (oid OID) String() string {
	if t, ok := builtinTypes[oid]; ok {
		return t.name
	}
	return fmt.Sprintf("%d", uint32(oid))
}

// Storage returns the storage width and pass-by-value flag of a builtin type.
func Storage(oid OID) (length int16, byVal bool, ok bool) {
	t, ok := builtinTypes[oid]
	if !ok {
		return 0, false, false
	}
	return t.len, t.byVal, true
}

// ParseName accepts both the display name and the short aliases (int4, timestamptz, ...).
func ParseName(name string) (OID, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for oid, t := range builtinTypes {
		if t.name == name {
			return oid, true
		}
		for _, alias := range t.aliases {
			if alias == name {
				return oid, true
			}
		}
	}
	return InvalidOID, false
}

// IsInteger reports whether values of the type are plain integers.
func IsInteger(oid OID) bool {
	switch oid {
	case Int2, Int4, Int8:
		return true
	}
	return false
}
