// Package commands implements the leapmetric subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetric/internal/catalog"
	"github.com/leapstack-labs/leapmetric/internal/cli/output"
	"github.com/leapstack-labs/leapmetric/internal/config"
	"github.com/leapstack-labs/leapmetric/internal/store"
	"github.com/leapstack-labs/leapmetric/pkg/compiler"
	"github.com/leapstack-labs/leapmetric/pkg/core"
	"github.com/leapstack-labs/leapmetric/pkg/sqlgen"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds the context from what the root command stored.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		cfg = &config.Config{
			CatalogDir:   config.DefaultCatalogDir,
			StatePath:    config.DefaultStateFile,
			Dialect:      config.DefaultDialect,
			OutputFormat: config.DefaultOutput,
			LogLevel:     config.DefaultLogLevel,
			Concurrency:  config.DefaultConcurrency,
		}
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// LoadCatalog reads the configured catalog directory.
func (c *CommandContext) LoadCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.Load(c.Cfg.CatalogDir, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

// Generator returns the generator for the configured dialect.
func (c *CommandContext) Generator() (sqlgen.Generator, error) {
	return sqlgen.New(core.DataSourceType(c.Cfg.Dialect))
}

// Compiler returns a compiler reading from fetcher.
func (c *CommandContext) Compiler(fetcher core.Fetcher) *compiler.Compiler {
	return compiler.New(fetcher, compiler.WithLogger(c.Logger), compiler.WithFetchCache())
}

// OpenStore opens the definition store at the configured state path.
// The caller must close it.
func (c *CommandContext) OpenStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(ctx, c.Cfg.StatePath, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return s, nil
}

// compileResult is one compiled definition.
type compileResult struct {
	ID      string               `json:"id"`
	Kind    string               `json:"kind"`
	Dialect string               `json:"dialect"`
	Query   string               `json:"query,omitempty"`
	Metric  *core.SemanticMetric `json:"metric,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// compileDefinition compiles one definition and renders it. A failure is
// recorded in the result and also returned.
func compileDefinition(ctx context.Context, comp *compiler.Compiler, gen sqlgen.Generator, def *core.Definition) (*compileResult, error) {
	res := &compileResult{ID: def.ID(), Kind: def.Kind(), Dialect: gen.Name()}

	m, err := comp.Compile(ctx, def)
	if err == nil {
		res.Metric = m
		res.Query, err = gen.Generate(m)
	}
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	return res, nil
}
