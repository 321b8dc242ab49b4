package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetric/internal/cli/output"
)

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	var noCompile bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load the catalog into the state database",
		Long: `Upsert every catalog definition into the state database, sources before
the variants built on them, then cache each compiled query. Definitions that
fail to compile are stored without a cached query.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, !noCompile)
		},
	}

	cmd.Flags().BoolVar(&noCompile, "no-compile", false, "Store definitions without caching compiled queries")

	return cmd
}

func runImport(cmd *cobra.Command, compile bool) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	cat, err := cc.LoadCatalog()
	if err != nil {
		return err
	}
	order, err := cat.Graph().TopologicalSort()
	if err != nil {
		return err
	}

	s, err := cc.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	var imported []string
	for _, node := range order {
		if node.Definition == nil {
			continue
		}
		if _, err := s.Put(ctx, node.Definition); err != nil {
			return fmt.Errorf("failed to import %s: %w", node.ID, err)
		}
		imported = append(imported, node.ID)
	}
	cc.Logger.Info("imported definitions", "count", len(imported), "state", s.Path())

	statuses := make(map[string]string, len(imported))
	if compile {
		gen, err := cc.Generator()
		if err != nil {
			return err
		}
		comp := cc.Compiler(s)
		for _, id := range imported {
			def, _ := cat.Fetch(ctx, id)
			res, err := compileDefinition(ctx, comp, gen, def)
			if err != nil {
				statuses[id] = res.Error
				continue
			}
			if err := s.SaveCompiledQuery(ctx, id, res.Query); err != nil {
				return err
			}
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"imported": imported, "errors": statuses, "state": s.Path()})
	}

	r.Header(1, fmt.Sprintf("Imported %d definitions", len(imported)))
	for _, id := range imported {
		if msg, failed := statuses[id]; failed {
			r.StatusLine(id, output.StatusFailed, msg)
			continue
		}
		status := output.StatusSuccess
		if !compile {
			status = output.StatusSkipped
		}
		r.StatusLine(id, status, "")
	}
	r.Muted("State: " + s.Path())
	return nil
}
