package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapmetric/internal/catalog"
	"github.com/leapstack-labs/leapmetric/internal/cli/output"
	"github.com/leapstack-labs/leapmetric/pkg/compiler"
	"github.com/leapstack-labs/leapmetric/pkg/sqlgen"
)

// ErrCheckFailed is returned when at least one definition fails to compile.
var ErrCheckFailed = errors.New("check failed")

// checkReport is the result of compiling a whole catalog.
type checkReport struct {
	Results []*compileResult `json:"results"`
	Missing []string         `json:"missing,omitempty"`
	Cycle   []string         `json:"cycle,omitempty"`
	Failed  int              `json:"failed"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compile every definition in the catalog",
		Long: `Compile every metric and variant in the catalog and report failures.
Dangling references and dependency cycles are reported from the definition
graph. Exits non-zero when anything fails.`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)

	gen, err := cc.Generator()
	if err != nil {
		return err
	}
	cat, err := cc.LoadCatalog()
	if err != nil {
		return err
	}

	report, err := checkCatalog(ctx, cat, cc.Compiler(cat), gen, cc.Cfg.Concurrency)
	if err != nil {
		return err
	}
	cc.Logger.Debug("check finished", "definitions", len(report.Results), "failed", report.Failed)

	renderCheck(cc.Renderer, report)

	if report.Failed > 0 || len(report.Cycle) > 0 {
		return fmt.Errorf("%w: %d of %d definitions failed", ErrCheckFailed, report.Failed, len(report.Results))
	}
	return nil
}

// checkCatalog compiles every definition with at most limit in flight.
// Results keep catalog order.
func checkCatalog(ctx context.Context, cat *catalog.Catalog, comp *compiler.Compiler, gen sqlgen.Generator, limit int) (*checkReport, error) {
	defs := cat.List()
	results := make([]*compileResult, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i, def := range defs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], _ = compileDefinition(gctx, comp, gen, def)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &checkReport{Results: results}
	for _, res := range results {
		if res.Error != "" {
			report.Failed++
		}
	}

	graph := cat.Graph()
	report.Missing = graph.Missing()
	if has, path := graph.HasCycle(); has {
		report.Cycle = path
	}
	return report, nil
}

func renderCheck(r *output.Renderer, report *checkReport) {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		_ = r.JSON(report)
		return
	case output.ModeMarkdown:
		r.Header(1, fmt.Sprintf("Check (%d definitions)", len(report.Results)))
	default:
		r.Header(1, fmt.Sprintf("Checking %d definitions", len(report.Results)))
	}

	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		status := output.StatusSuccess
		if res.Error != "" {
			status = output.StatusFailed
		}
		rows = append(rows, []string{res.ID, res.Kind, output.Title(status), res.Error})
	}
	r.Table([]string{"ID", "Kind", "Status", "Error"}, rows)

	if len(report.Missing) > 0 {
		r.Warning("Undefined references: " + strings.Join(report.Missing, ", "))
	}
	if len(report.Cycle) > 0 {
		r.Error("Dependency cycle: " + strings.Join(report.Cycle, " -> "))
	}

	passed := len(report.Results) - report.Failed
	summary := strconv.Itoa(passed) + " passed, " + strconv.Itoa(report.Failed) + " failed"
	if report.Failed == 0 && len(report.Cycle) == 0 {
		r.Success(summary)
	} else {
		r.Muted(summary)
	}
}
