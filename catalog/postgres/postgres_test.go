package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/logs"
	"github.com/cube2222/caggunion/types"
)

func TestConfigFromMap(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]interface{}
		want    *Config
		wantErr bool
	}{
		{
			name:  "defaults",
			input: map[string]interface{}{"database": "tsdb"},
			want: &Config{
				Host:           "localhost",
				Port:           5432,
				User:           "postgres",
				Database:       "tsdb",
				MaxConnections: 4,
			},
		},
		{
			name: "everything set",
			input: map[string]interface{}{
				"host":           "db.internal",
				"port":           6432,
				"user":           "reader",
				"password":       "secret",
				"database":       "metrics",
				"maxConnections": 16,
				"queryLogging":   true,
			},
			want: &Config{
				Host:           "db.internal",
				Port:           6432,
				User:           "reader",
				Password:       "secret",
				Database:       "metrics",
				MaxConnections: 16,
				QueryLogging:   true,
			},
		},
		{
			name:    "missing database",
			input:   map[string]interface{}{"host": "localhost"},
			wantErr: true,
		},
		{
			name:    "wrong port type",
			input:   map[string]interface{}{"database": "tsdb", "port": "5432"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfigFromMap(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"14.5 (Debian 14.5-1.pgdg110+1)", false},
		{"16.1", false},
		{"10", false},
		{"9.6.24", true},
		{"devel", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := CheckVersion(tt.version)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOIDVector(t *testing.T) {
	assert.Equal(t, "", oidVector(nil))
	assert.Equal(t, "20", oidVector([]types.OID{types.Int8}))
	assert.Equal(t, "1186 1184", oidVector([]types.OID{types.Interval, types.TimestampTZ}))
}

// TestCatalog runs against the database named by CAGGUNION_TEST_DATABASE.
func TestCatalog(t *testing.T) {
	database := os.Getenv("CAGGUNION_TEST_DATABASE")
	if database == "" {
		t.Skip("CAGGUNION_TEST_DATABASE not set")
	}
	ctx := context.Background()

	cfg, err := ConfigFromMap(map[string]interface{}{"database": database})
	require.NoError(t, err)
	cat, err := Connect(ctx, cfg, logs.Discard())
	require.NoError(t, err)
	defer cat.Close()

	info, err := cat.LookupType(ctx, types.TimestampTZ)
	require.NoError(t, err)
	assert.Equal(t, "timestamp with time zone", info.Name)
	assert.Equal(t, int16(8), info.Len)
	assert.Equal(t, types.OID(1322), info.LessThan.OID)

	complement, err := cat.Complement(ctx, info.LessThan)
	require.NoError(t, err)
	assert.Equal(t, ">=", complement.Name)
	assert.Equal(t, types.OID(1325), complement.OID)

	_, err = cat.ResolveFunction(ctx, "public", "no_such_function", []types.OID{types.Int4})
	assert.Equal(t, catalog.ErrNotFound, errors.Cause(err))

	rel, err := cat.LookupRelation(ctx, "pg_catalog", "pg_class")
	require.NoError(t, err)
	name, err := cat.AttributeName(ctx, rel.OID, 1)
	require.NoError(t, err)
	number, err := cat.AttributeNumber(ctx, rel.OID, name)
	require.NoError(t, err)
	assert.Equal(t, int16(1), number)
}
