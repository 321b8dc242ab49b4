package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetric/internal/cli/output"
	"github.com/leapstack-labs/leapmetric/internal/introspect"
	"github.com/leapstack-labs/leapmetric/pkg/core"
	"github.com/leapstack-labs/leapmetric/pkg/joininfer"
)

// ErrNoSchema is returned when joins has no schema file, DSN or configured target.
var ErrNoSchema = errors.New("no schema source: pass --schema, --dsn or configure target in leapmetric.yaml")

type joinsOptions struct {
	schemaFile string
	dsn        string
	dbType     string
	dbSchema   string
	apply      bool
}

// joinsReport is the JSON shape of the joins command.
type joinsReport struct {
	ID      string            `json:"id"`
	Matches []joininfer.Match `json:"matches"`
	Query   string            `json:"query,omitempty"`
}

// NewJoinsCommand creates the joins command.
func NewJoinsCommand() *cobra.Command {
	var opts joinsOptions

	cmd := &cobra.Command{
		Use:   "joins <id>",
		Short: "Infer joins for tables a metric references but does not join",
		Long: `Compile a definition and propose LEFT JOINs for every referenced table
that is not already joined. Relationships come from foreign keys, shared
column names and the {singular}_id naming convention.

The schema is read from a YAML file (--schema), a database (--dsn and --type)
or the target in leapmetric.yaml.`,
		Example: `  leapmetric joins orders_by_customer --schema schema.yaml
  leapmetric joins orders_by_customer --type postgres --dsn postgres://localhost/shop
  leapmetric joins orders_by_customer --apply`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoins(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.schemaFile, "schema", "", "YAML schema file")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "Database connection string to introspect")
	cmd.Flags().StringVar(&opts.dbType, "type", "", "Database type for --dsn (default: target.type, then dialect)")
	cmd.Flags().StringVar(&opts.dbSchema, "db-schema", "", "Database schema to introspect")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Print the query with inferred joins applied")

	return cmd
}

func runJoins(cmd *cobra.Command, id string, opts joinsOptions) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	schema, err := cc.loadSchema(ctx, opts)
	if err != nil {
		return err
	}

	cat, err := cc.LoadCatalog()
	if err != nil {
		return err
	}
	m, err := cc.Compiler(cat).CompileID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to compile %s: %w", id, err)
	}

	report := &joinsReport{ID: id, Matches: joininfer.InferMatches(m, schema)}
	cc.Logger.Debug("inferred joins", "id", id, "count", len(report.Matches))

	if opts.apply {
		joins := make([]core.Join, 0, len(report.Matches))
		for _, match := range report.Matches {
			joins = append(joins, match.Join())
		}
		joined, err := joininfer.Apply(m, joins)
		if err != nil {
			return err
		}
		gen, err := cc.Generator()
		if err != nil {
			return err
		}
		if report.Query, err = gen.Generate(joined); err != nil {
			return fmt.Errorf("failed to generate %s: %w", id, err)
		}
	}

	renderJoins(r, report)
	return nil
}

// loadSchema reads the schema from the first configured source.
func (c *CommandContext) loadSchema(ctx context.Context, opts joinsOptions) (*core.DatabaseSchema, error) {
	if opts.schemaFile != "" {
		return introspect.LoadFile(opts.schemaFile)
	}

	dbType, dsn, dbSchema := opts.dbType, opts.dsn, opts.dbSchema
	var params map[string]any
	if t := c.Cfg.Target; t != nil {
		if dsn == "" {
			dsn = t.DSN
		}
		if dbType == "" {
			dbType = t.Type
		}
		if dbSchema == "" {
			dbSchema = t.Schema
		}
		params = t.Params
	}
	if dsn == "" {
		return nil, ErrNoSchema
	}
	if dbType == "" {
		dbType = c.Cfg.Dialect
	}

	c.Logger.Debug("introspecting database", "type", dbType, "schema", dbSchema)
	schema, err := introspect.Introspect(ctx, core.DataSourceType(dbType), dsn, dbSchema, params)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database: %w", err)
	}
	return schema, nil
}

func renderJoins(r *output.Renderer, report *joinsReport) {
	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(report)
		return
	}

	r.Header(1, "Inferred joins for "+report.ID)
	if len(report.Matches) == 0 {
		r.Muted("No joins needed")
	} else {
		rows := make([][]string, 0, len(report.Matches))
		for _, m := range report.Matches {
			rows = append(rows, []string{
				m.LeftTable + "." + m.LeftColumn,
				m.RightTable + "." + m.RightColumn,
				output.Title(string(m.Strategy)),
			})
		}
		r.Table([]string{"Left", "Right", "Strategy"}, rows)
	}

	if report.Query == "" {
		return
	}
	r.Println()
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatCodeBlock("sql", report.Query))
		return
	}
	r.Println(report.Query)
}
