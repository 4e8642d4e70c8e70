package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/caggunion/config"
	"github.com/cube2222/caggunion/logs"
	"github.com/cube2222/caggunion/query"
)

func buildConditions(t *testing.T) *query.Query {
	out, err := build(context.Background(), config.Default(), logs.Discard(), "../definition/testdata/conditions.yaml")
	require.NoError(t, err)
	return out
}

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	configPath, format, expectedPath, catalogType = "", "sql", "", ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestWriteOutput(t *testing.T) {
	q := buildConditions(t)

	tests := []struct {
		format   string
		contains []string
	}{
		{
			format: "sql",
			contains: []string{
				"UNION ALL",
				`FROM _timescaledb_internal._materialized_hypertable_2`,
				`GROUP BY public.time_bucket('3600000000 microseconds'::interval, conditions."time"), conditions.device`,
			},
		},
		{
			format:   "explain",
			contains: []string{"union all", "alias=*SELECT* 1", "alias=*SELECT* 2", "_timescaledb_internal.cagg_watermark"},
		},
		{
			format:   "dot",
			contains: []string{"digraph", "->"},
		},
		{
			format:   "columns",
			contains: []string{"avg_temp", "timestamp with time zone", "_timescaledb_internal._materialized_hypertable_2.bucket"},
		},
		{
			format:   "dump",
			contains: []string{"TargetList", "SetOperations"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeOutput(&buf, tt.format, q))
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
		})
	}

	assert.Error(t, writeOutput(&bytes.Buffer{}, "yaml", q))
}

func TestCompareExpected(t *testing.T) {
	q := buildConditions(t)

	var buf bytes.Buffer
	require.NoError(t, compareExpected(&buf, q, "../definition/testdata/conditions.sql"))
	assert.Equal(t, "OK\n", buf.String())

	want, err := os.ReadFile("../definition/testdata/conditions.sql")
	require.NoError(t, err)
	wrong := filepath.Join(t.TempDir(), "wrong.sql")
	require.NoError(t, os.WriteFile(wrong, bytes.Replace(want, []byte("UNION ALL"), []byte("UNION"), 1), 0644))

	buf.Reset()
	err = compareExpected(&buf, q, wrong)
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "--- Expected")
	assert.Contains(t, buf.String(), "+++ Actual")
	assert.Contains(t, buf.String(), "-UNION\n")
	assert.Contains(t, buf.String(), "+UNION ALL\n")
}

func TestBuildCommand(t *testing.T) {
	cfg := writeConfig(t, "catalog:\n  type: builtin\nlogging:\n  level: error\n")

	out, err := runRoot(t, "build", "../definition/testdata/conditions.yaml", "--config", cfg)
	require.NoError(t, err)
	want, err := os.ReadFile("../definition/testdata/conditions.sql")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(string(want)), strings.TrimSpace(out))

	out, err = runRoot(t, "build", "../definition/testdata/conditions.yaml", "--config", cfg, "--expected", "../definition/testdata/conditions.sql")
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	out, err = runRoot(t, "build", "../definition/testdata/events_int.yaml", "--config", cfg, "--format", "columns")
	require.NoError(t, err)
	assert.Contains(t, out, "ts_bucket")
	assert.Contains(t, out, "numeric")
}

func TestBuildCommandErrors(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  level: error\n")

	tests := []struct {
		name string
		args []string
	}{
		{"missing definition", []string{"build", "does_not_exist.yaml", "--config", cfg}},
		{"invalid definition", []string{"build", "../definition/testdata/invalid_field.yaml", "--config", cfg}},
		{"unknown format", []string{"build", "../definition/testdata/conditions.yaml", "--config", cfg, "--format", "yaml"}},
		{"unknown catalog", []string{"build", "../definition/testdata/conditions.yaml", "--config", cfg, "--catalog", "mysql"}},
		{"postgres without database", []string{"build", "../definition/testdata/conditions.yaml", "--config", cfg, "--catalog", "postgres"}},
		{"missing config", []string{"build", "../definition/testdata/conditions.yaml", "--config", filepath.Join(t.TempDir(), "nope.yaml")}},
		{"no arguments", []string{"build", "--config", cfg}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runRoot(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
