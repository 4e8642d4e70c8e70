package cmd

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cube2222/caggunion/cagg"
	"github.com/cube2222/caggunion/catalog"
	"github.com/cube2222/caggunion/catalog/postgres"
	"github.com/cube2222/caggunion/config"
	"github.com/cube2222/caggunion/definition"
	"github.com/cube2222/caggunion/logs"
	"github.com/cube2222/caggunion/query"
)

var format string
var expectedPath string
var catalogType string

var buildCmd = &cobra.Command{
	Use:   "build <definition.yaml>",
	Short: "Build the union query of a continuous aggregate definition.",
	Args:  cobra.ExactArgs(1),
	Example: `caggunion build conditions.yaml
caggunion build conditions.yaml --format explain
caggunion build conditions.yaml --format dot | dot -Tpng > query.png
caggunion build conditions.yaml --expected conditions.sql
caggunion build conditions.yaml --catalog postgres`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Read(configPath)
		if err != nil {
			return errors.Wrap(err, "couldn't read config")
		}
		if catalogType != "" {
			cfg.Catalog.Type = catalogType
		}
		logger, err := logs.New(cfg.Logging)
		if err != nil {
			return errors.Wrap(err, "couldn't create logger")
		}
		defer logs.CloseLogger()

		out, err := build(ctx, cfg, logger, args[0])
		if err != nil {
			return err
		}

		if expectedPath != "" {
			return compareExpected(cmd.OutOrStdout(), out, expectedPath)
		}
		return writeOutput(cmd.OutOrStdout(), format, out)
	},
}

func build(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, path string) (*query.Query, error) {
	def, err := definition.Load(path)
	if err != nil {
		return nil, err
	}

	builtin := catalog.NewBuiltin()
	cagg.RegisterFunctions(builtin, cfg.Names)
	built, err := def.Build(builtin)
	if err != nil {
		return nil, errors.Wrap(err, "invalid definition")
	}

	var cat catalog.Catalog
	switch cfg.Catalog.Type {
	case "builtin":
		cat = builtin
	case "postgres":
		pgConfig, err := postgres.ConfigFromMap(cfg.Catalog.Config)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't read postgres catalog config")
		}
		pg, err := postgres.Connect(ctx, pgConfig, logger)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't connect to postgres catalog")
		}
		defer pg.Close()

		// The hypertable must exist in the database. Its identity there replaces the one from the definition.
		hypertable, err := pg.LookupRelation(ctx, def.Hypertable.Schema, def.Hypertable.Name)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't find hypertable")
		}
		number, err := pg.AttributeNumber(ctx, hypertable.OID, def.Hypertable.PartitionColumn)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't find partition column")
		}
		built.TimeBucket.HypertableOID = hypertable.OID
		built.TimeBucket.PartitionColumnNumber = number
		cat = pg
	default:
		return nil, errors.Errorf("unknown catalog type '%s', should be builtin or postgres", cfg.Catalog.Type)
	}
	logger.WithField("catalog", cfg.Catalog.Type).Debug("building union query")

	builder := cagg.NewBuilder(cat, cagg.WithNames(cfg.Names), cagg.WithLogger(logger))
	return builder.BuildUnionQuery(ctx, built.TimeBucket, built.Materialization, built.Materialized, built.RealTime)
}

func init() {
	buildCmd.Flags().StringVar(&format, "format", "sql", "Output format: "+strings.Join(formats, ", ")+".")
	buildCmd.Flags().StringVar(&expectedPath, "expected", "", "File with the expected SQL. Prints a diff and fails on mismatch.")
	buildCmd.Flags().StringVar(&catalogType, "catalog", "", "Catalog to resolve functions and operators in: builtin or postgres. Overrides the config file.")
	rootCmd.AddCommand(buildCmd)
}
