// Package postgres implements the catalog capabilities against a live PostgreSQL
// server with the TimescaleDB extension installed.
//
// The catalog queries are only tested against a live server: set
// CAGGUNION_TEST_DATABASE to the name of a database reachable as postgres@localhost:5432.
package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/jackc/pgx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/config"
	"github.com/cube2222/caggunion/types"
)

// SupportedVersions is the server version constraint checked on connect.
const SupportedVersions = ">= 10"

type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	MaxConnections int
	QueryLogging   bool
}

// ConfigFromMap reads the catalog config section.
func ConfigFromMap(cfg map[string]interface{}) (*Config, error) {
	var out Config
	var err error

	out.Host, err = config.GetString(cfg, "host", config.WithDefault("localhost"))
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get host")
	}
	out.Port, err = config.GetInt(cfg, "port", config.WithDefault(5432))
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get port")
	}
	out.User, err = config.GetString(cfg, "user", config.WithDefault("postgres"))
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get user")
	}
	out.Password, err = config.GetString(cfg, "password", config.WithDefault(""))
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get password")
	}
	out.Database, err = config.GetString(cfg, "database")
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get database")
	}
	out.MaxConnections, err = config.GetInt(cfg, "maxConnections", config.WithDefault(4))
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get max connections")
	}
	out.QueryLogging, err = config.GetBool(cfg, "queryLogging", config.WithDefault(false))
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get query logging")
	}

	return &out, nil
}

type pgxLogger struct {
	logger logrus.FieldLogger
}

func (l *pgxLogger) Log(level pgx.LogLevel, msg string, data map[string]interface{}) {
	entry := l.logger.WithFields(logrus.Fields(data))
	switch level {
	case pgx.LogLevelError:
		entry.Error(msg)
	case pgx.LogLevelWarn:
		entry.Warn(msg)
	case pgx.LogLevelInfo:
		entry.Info(msg)
	default:
		entry.Debug(msg)
	}
}

// Catalog answers catalog lookups with queries against pg_catalog.
// It is safe for concurrent use.
type Catalog struct {
	pool *pgx.ConnPool
}

var _ catalog.Catalog = &Catalog{}

func Connect(ctx context.Context, cfg *Config, logger logrus.FieldLogger) (*Catalog, error) {
	poolConfig := pgx.ConnPoolConfig{
		ConnConfig: pgx.ConnConfig{
			Host:     cfg.Host,
			Port:     uint16(cfg.Port),
			User:     cfg.User,
			Database: cfg.Database,
			Password: cfg.Password,
		},
		MaxConnections: cfg.MaxConnections,
	}
	if cfg.QueryLogging {
		poolConfig.ConnConfig.Logger = &pgxLogger{logger: logger}
		poolConfig.ConnConfig.LogLevel = pgx.LogLevelDebug
	}
	pool, err := pgx.NewConnPool(poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't open database")
	}

	var version string
	if err := pool.QueryRowEx(ctx, "SHOW server_version", nil).Scan(&version); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "couldn't get server version")
	}
	if err := CheckVersion(version); err != nil {
		pool.Close()
		return nil, err
	}
	logger.WithField("server_version", version).Debug("connected to catalog database")

	return &Catalog{pool: pool}, nil
}

// CheckVersion validates a server_version string like "14.5 (Debian 14.5-1.pgdg110+1)".
func CheckVersion(version string) error {
	number := strings.TrimSpace(version)
	if i := strings.IndexAny(number, " ("); i != -1 {
		number = number[:i]
	}
	parsed, err := semver.NewVersion(number)
	if err != nil {
		return errors.Wrapf(err, "couldn't parse server version '%s'", version)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return errors.Wrap(err, "couldn't parse version constraint")
	}
	if !constraint.Check(parsed) {
		return errors.Errorf("server version %s doesn't satisfy %s", parsed, SupportedVersions)
	}
	return nil
}

func (c *Catalog) Close() {
	c.pool.Close()
}

func notFound(err error, format string, args ...interface{}) error {
	if err == pgx.ErrNoRows {
		return errors.Wrapf(catalog.ErrNotFound, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}

func oidVector(oids []types.OID) string {
	parts := make([]string, len(oids))
	for i := range oids {
		parts[i] = strconv.FormatUint(uint64(oids[i]), 10)
	}
	return strings.Join(parts, " ")
}

const resolveFunctionQuery = `SELECT p.oid::int8, p.prorettype::int8
FROM pg_catalog.pg_proc p
JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
WHERE n.nspname = $1 AND p.proname = $2 AND p.proargtypes::text = $3`

func (c *Catalog) ResolveFunction(ctx context.Context, schema, name string, argTypes []types.OID) (catalog.FunctionRef, error) {
	var oid, returnType int64
	err := c.pool.QueryRowEx(ctx, resolveFunctionQuery, nil, schema, name, oidVector(argTypes)).Scan(&oid, &returnType)
	if err != nil {
		return catalog.FunctionRef{}, notFound(err, "function %s", catalog.FunctionRef{Schema: schema, Name: name, ArgTypes: argTypes})
	}
	return catalog.FunctionRef{
		OID:        types.OID(oid),
		Schema:     schema,
		Name:       name,
		ArgTypes:   append([]types.OID(nil), argTypes...),
		ReturnType: types.OID(returnType),
	}, nil
}

const lookupTypeQuery = `SELECT pg_catalog.format_type(t.oid, NULL), t.typlen, t.typbyval,
  COALESCE(o.oid, 0)::int8, COALESCE(o.oprname::text, ''), COALESCE(o.oprresult, 0)::int8
FROM pg_catalog.pg_type t
LEFT JOIN pg_catalog.pg_operator o
  ON o.oprname = '<' AND o.oprleft = t.oid AND o.oprright = t.oid
  AND o.oprnamespace = 'pg_catalog'::regnamespace
WHERE t.oid = $1::int8::oid`

func (c *Catalog) LookupType(ctx context.Context, oid types.OID) (catalog.TypeInfo, error) {
	var info catalog.TypeInfo
	var opOID, opResult int64
	err := c.pool.QueryRowEx(ctx, lookupTypeQuery, nil, int64(oid)).Scan(
		&info.Name, &info.Len, &info.ByVal, &opOID, &info.LessThan.Name, &opResult,
	)
	if err != nil {
		return catalog.TypeInfo{}, notFound(err, "type %d", oid)
	}
	info.OID = oid
	if opOID != 0 {
		info.LessThan.OID = types.OID(opOID)
		info.LessThan.Left = oid
		info.LessThan.Right = oid
		info.LessThan.Result = types.OID(opResult)
	}
	return info, nil
}

const complementQuery = `SELECT o.oid::int8, o.oprname::text, o.oprleft::int8, o.oprright::int8, o.oprresult::int8
FROM pg_catalog.pg_operator o
JOIN pg_catalog.pg_operator op ON op.oprnegate = o.oid
WHERE op.oid = $1::int8::oid`

func (c *Catalog) Complement(ctx context.Context, op catalog.Operator) (catalog.Operator, error) {
	var oid, left, right, result int64
	var out catalog.Operator
	err := c.pool.QueryRowEx(ctx, complementQuery, nil, int64(op.OID)).Scan(&oid, &out.Name, &left, &right, &result)
	if err != nil {
		return catalog.Operator{}, notFound(err, "complement of operator %d", op.OID)
	}
	out.OID = types.OID(oid)
	out.Left = types.OID(left)
	out.Right = types.OID(right)
	out.Result = types.OID(result)
	return out, nil
}

const lookupRelationQuery = `SELECT c.oid::int8
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2`

const listAttributesQuery = `SELECT a.attnum, a.attname::text, a.atttypid::int8, a.atttypmod, a.attcollation::int8, a.attisdropped
FROM pg_catalog.pg_attribute a
WHERE a.attrelid = $1::int8::oid AND a.attnum > 0
ORDER BY a.attnum`

func (c *Catalog) LookupRelation(ctx context.Context, schema, name string) (catalog.Relation, error) {
	var oid int64
	if err := c.pool.QueryRowEx(ctx, lookupRelationQuery, nil, schema, name).Scan(&oid); err != nil {
		return catalog.Relation{}, notFound(err, "relation %s.%s", schema, name)
	}

	rows, err := c.pool.QueryEx(ctx, listAttributesQuery, nil, oid)
	if err != nil {
		return catalog.Relation{}, errors.Wrapf(err, "couldn't list attributes of %s.%s", schema, name)
	}
	defer rows.Close()

	out := catalog.Relation{
		OID:    types.OID(oid),
		Schema: schema,
		Name:   name,
	}
	for rows.Next() {
		var attr catalog.Attribute
		var typ, collation int64
		if err := rows.Scan(&attr.Number, &attr.Name, &typ, &attr.Typmod, &collation, &attr.Dropped); err != nil {
			return catalog.Relation{}, errors.Wrap(err, "couldn't scan attribute")
		}
		attr.Type = types.OID(typ)
		attr.Collation = types.OID(collation)
		out.Attributes = append(out.Attributes, attr)
	}
	if err := rows.Err(); err != nil {
		return catalog.Relation{}, errors.Wrap(err, "couldn't read attributes")
	}
	return out, nil
}

const attributeNameQuery = `SELECT a.attname::text
FROM pg_catalog.pg_attribute a
WHERE a.attrelid = $1::int8::oid AND a.attnum = $2 AND NOT a.attisdropped`

func (c *Catalog) AttributeName(ctx context.Context, relation types.OID, number int16) (string, error) {
	var name string
	if err := c.pool.QueryRowEx(ctx, attributeNameQuery, nil, int64(relation), number).Scan(&name); err != nil {
		return "", notFound(err, "attribute %d of relation %d", number, relation)
	}
	return name, nil
}

const attributeNumberQuery = `SELECT a.attnum
FROM pg_catalog.pg_attribute a
WHERE a.attrelid = $1::int8::oid AND a.attname = $2 AND NOT a.attisdropped`

func (c *Catalog) AttributeNumber(ctx context.Context, relation types.OID, name string) (int16, error) {
	var number int16
	if err := c.pool.QueryRowEx(ctx, attributeNumberQuery, nil, int64(relation), name).Scan(&number); err != nil {
		return 0, notFound(err, "attribute %s of relation %d", name, relation)
	}
	return number, nil
}
