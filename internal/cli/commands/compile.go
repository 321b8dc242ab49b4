package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetric/internal/cli/output"
	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	var (
		showMetric bool
		fromStore  bool
	)

	cmd := &cobra.Command{
		Use:   "compile <id>",
		Short: "Compile a metric or variant to a query",
		Long: `Resolve a definition through its variant chain and print the query
for the configured dialect.`,
		Example: `  leapmetric compile orders_by_region
  leapmetric compile orders_by_region --dialect duckdb
  leapmetric compile orders_share --json
  leapmetric compile orders_share --from-store`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args[0], showMetric, fromStore)
		},
	}

	cmd.Flags().BoolVar(&showMetric, "json", false, "Print the resolved metric as JSON")
	cmd.Flags().BoolVar(&fromStore, "from-store", false, "Read definitions from the state database instead of the catalog")

	return cmd
}

func runCompile(cmd *cobra.Command, id string, showMetric, fromStore bool) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	gen, err := cc.Generator()
	if err != nil {
		return err
	}

	fetcher, cleanup, err := cc.fetcher(ctx, fromStore)
	if err != nil {
		return err
	}
	defer cleanup()

	def, err := fetcher.Fetch(ctx, id)
	if err != nil {
		return err
	}

	res, err := compileDefinition(ctx, cc.Compiler(fetcher), gen, def)
	if err != nil {
		return fmt.Errorf("failed to compile %s: %w", id, err)
	}

	if showMetric || r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res)
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Header(1, res.ID)
		r.Println(output.FormatKeyValue("Kind", res.Kind))
		r.Println(output.FormatKeyValue("Dialect", res.Dialect))
		r.Println()
		r.Println(output.FormatCodeBlock(codeLanguage(gen.Name()), res.Query))
		return nil
	}

	r.Println(res.Query)
	return nil
}

// fetcher returns the catalog or the store as a definition source.
func (c *CommandContext) fetcher(ctx context.Context, fromStore bool) (core.Fetcher, func(), error) {
	if fromStore {
		s, err := c.OpenStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	cat, err := c.LoadCatalog()
	if err != nil {
		return nil, nil, err
	}
	return cat, func() {}, nil
}

func codeLanguage(generator string) string {
	if generator == string(core.DataSourceMongoDB) {
		return "json"
	}
	return "sql"
}
