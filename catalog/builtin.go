package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/cube2222/caggunion/types"
)

// FirstNormalObjectID is the first OID handed out to objects registered at runtime.
const FirstNormalObjectID types.OID = 16384

type orderingOperators struct {
	lessThan, greaterOrEqual types.OID
}

// Postgres builtin "<" and ">=" operators per type.
var builtinOrdering = map[types.OID]orderingOperators{
	types.Int2:        {lessThan: 95, greaterOrEqual: 524},
	types.Int4:        {lessThan: 97, greaterOrEqual: 525},
	types.Int8:        {lessThan: 412, greaterOrEqual: 415},
	types.Text:        {lessThan: 664, greaterOrEqual: 667},
	types.Float8:      {lessThan: 672, greaterOrEqual: 675},
	types.Date:        {lessThan: 1095, greaterOrEqual: 1098},
	types.TimestampTZ: {lessThan: 1322, greaterOrEqual: 1325},
	types.Timestamp:   {lessThan: 2062, greaterOrEqual: 2065},
}

// Builtin is an in-memory catalog preloaded with the builtin ordering operators.
// Functions and relations are registered explicitly. It is safe for concurrent use.
type Builtin struct {
	mu        sync.RWMutex
	nextOID   types.OID
	functions map[string]FunctionRef
	operators map[types.OID]Operator
	negators  map[types.OID]types.OID
	lessThan  map[types.OID]types.OID
	relations map[types.OID]*Relation
}

func NewBuiltin() *Builtin {
	b := &Builtin{
		nextOID:   FirstNormalObjectID,
		functions: make(map[string]FunctionRef),
		operators: make(map[types.OID]Operator),
		negators:  make(map[types.OID]types.OID),
		lessThan:  make(map[types.OID]types.OID),
		relations: make(map[types.OID]*Relation),
	}
	for typ, ops := range builtinOrdering {
		b.operators[ops.lessThan] = Operator{OID: ops.lessThan, Name: "<", Left: typ, Right: typ, Result: types.Bool}
		b.operators[ops.greaterOrEqual] = Operator{OID: ops.greaterOrEqual, Name: ">=", Left: typ, Right: typ, Result: types.Bool}
		b.negators[ops.lessThan] = ops.greaterOrEqual
		b.negators[ops.greaterOrEqual] = ops.lessThan
		b.lessThan[typ] = ops.lessThan
	}
	return b
}

func functionKey(schema, name string, argTypes []types.OID) string {
	args := make([]string, len(argTypes))
	for i := range argTypes {
		args[i] = fmt.Sprint(uint32(argTypes[i]))
	}
	return fmt.Sprintf("%s.%s(%s)", schema, name, strings.Join(args, ","))
}

func (b *Builtin) allocateOID() types.OID {
	out := b.nextOID
	b.nextOID++
	return out
}

// RegisterFunction adds a function, returning the existing one if the signature is already known.
func (b *Builtin) RegisterFunction(schema, name string, argTypes []types.OID, returnType types.OID) FunctionRef {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := functionKey(schema, name, argTypes)
	if f, ok := b.functions[key]; ok {
		return f
	}
	args := make([]types.OID, len(argTypes))
	copy(args, argTypes)
	f := FunctionRef{
		OID:        b.allocateOID(),
		Schema:     schema,
		Name:       name,
		ArgTypes:   args,
		ReturnType: returnType,
	}
	b.functions[key] = f
	return f
}

// RegisterRelation adds a relation. Attribute numbers are assigned by position.
// A zero OID is replaced by a fresh one; the stored relation is returned.
func (b *Builtin) RegisterRelation(rel Relation) Relation {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rel.OID == types.InvalidOID {
		rel.OID = b.allocateOID()
	}
	attributes := make([]Attribute, len(rel.Attributes))
	for i := range rel.Attributes {
		attributes[i] = rel.Attributes[i]
		attributes[i].Number = int16(i + 1)
	}
	rel.Attributes = attributes
	b.relations[rel.OID] = &rel
	return copyRelation(&rel)
}

func copyRelation(rel *Relation) Relation {
	out := *rel
	out.Attributes = make([]Attribute, len(rel.Attributes))
	copy(out.Attributes, rel.Attributes)
	return out
}

func (b *Builtin) ResolveFunction(ctx context.Context, schema, name string, argTypes []types.OID) (FunctionRef, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	f, ok := b.functions[functionKey(schema, name, argTypes)]
	if !ok {
		return FunctionRef{}, errors.Wrapf(ErrNotFound, "function %s", FunctionRef{Schema: schema, Name: name, ArgTypes: argTypes})
	}
	f.ArgTypes = append([]types.OID(nil), f.ArgTypes...)
	return f, nil
}

func (b *Builtin) LookupType(ctx context.Context, oid types.OID) (TypeInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	length, byVal, ok := types.Storage(oid)
	if !ok {
		return TypeInfo{}, errors.Wrapf(ErrNotFound, "type %s", oid)
	}
	info := TypeInfo{
		OID:   oid,
		Name:  oid.String(),
		Len:   length,
		ByVal: byVal,
	}
	if lt, ok := b.lessThan[oid]; ok {
		info.LessThan = b.operators[lt]
	}
	return info, nil
}

func (b *Builtin) Complement(ctx context.Context, op Operator) (Operator, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	negator, ok := b.negators[op.OID]
	if !ok {
		return Operator{}, errors.Wrapf(ErrNotFound, "complement of operator %d", op.OID)
	}
	return b.operators[negator], nil
}

func (b *Builtin) LookupRelation(ctx context.Context, schema, name string) (Relation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, rel := range b.relations {
		if rel.Schema == schema && rel.Name == name {
			return copyRelation(rel), nil
		}
	}
	return Relation{}, errors.Wrapf(ErrNotFound, "relation %s.%s", schema, name)
}

func (b *Builtin) AttributeName(ctx context.Context, relation types.OID, number int16) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rel, ok := b.relations[relation]
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "relation %d", relation)
	}
	if number < 1 || int(number) > len(rel.Attributes) || rel.Attributes[number-1].Dropped {
		return "", errors.Wrapf(ErrNotFound, "attribute %d of relation %s", number, rel.Name)
	}
	return rel.Attributes[number-1].Name, nil
}

func (b *Builtin) AttributeNumber(ctx context.Context, relation types.OID, name string) (int16, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rel, ok := b.relations[relation]
	if !ok {
		return 0, errors.Wrapf(ErrNotFound, "relation %d", relation)
	}
	for _, attr := range rel.Attributes {
		if attr.Name == name && !attr.Dropped {
			return attr.Number, nil
		}
	}
	return 0, errors.Wrapf(ErrNotFound, "attribute %s of relation %s", name, rel.Name)
}
