// Package catalog describes the read-only catalog capabilities the query builder
// depends on: function resolution, type and operator metadata, and relation attributes.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/cube2222/caggunion/types"
)

var ErrNotFound = errors.New("catalog object not found")

type FunctionRef struct {
	OID        types.OID
	Schema     string
	Name       string
	ArgTypes   []types.OID
	ReturnType types.OID
}

func (f FunctionRef) QualifiedName() string {
	if f.Schema == "" {
		return f.Name
	}
	return f.Schema + "." + f.Name
}

func (f FunctionRef) String() string {
	args := make([]string, len(f.ArgTypes))
	for i := range f.ArgTypes {
		args[i] = f.ArgTypes[i].String()
	}
	return fmt.Sprintf("%s(%s)", f.QualifiedName(), strings.Join(args, ", "))
}

type Operator struct {
	OID         types.OID
	Name        string
	Left, Right types.OID
	Result      types.OID
}

type TypeInfo struct {
	OID  types.OID
	Name string
	// Len is the storage width in bytes, -1 for variable length.
	Len      int16
	ByVal    bool
	LessThan Operator
}

type Attribute struct {
	Number    int16
	Name      string
	Type      types.OID
	Typmod    int32
	Collation types.OID
	Dropped   bool
}

type Relation struct {
	OID        types.OID
	Schema     string
	Name       string
	Attributes []Attribute
}

type Functions interface {
	ResolveFunction(ctx context.Context, schema, name string, argTypes []types.OID) (FunctionRef, error)
}

type Types interface {
	LookupType(ctx context.Context, oid types.OID) (TypeInfo, error)
	// Complement returns the operator which, given the same operands,
	// accepts exactly the rows op rejects. For "<" that's ">=".
	Complement(ctx context.Context, op Operator) (Operator, error)
}

type Relations interface {
	LookupRelation(ctx context.Context, schema, name string) (Relation, error)
	AttributeName(ctx context.Context, relation types.OID, number int16) (string, error)
	AttributeNumber(ctx context.Context, relation types.OID, name string) (int16, error)
}

type Catalog interface {
	Functions
	Types
	Relations
}
