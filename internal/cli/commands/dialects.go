package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetric/internal/cli/output"
	"github.com/leapstack-labs/leapmetric/internal/introspect"
	"github.com/leapstack-labs/leapmetric/pkg/core"
	"github.com/leapstack-labs/leapmetric/pkg/sqlgen"
)

// dialectInfo describes one registered data source type.
type dialectInfo struct {
	Type          string `json:"type"`
	Generator     string `json:"generator"`
	Introspection string `json:"introspection,omitempty"`
	Current       bool   `json:"current"`
}

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List supported query dialects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			return renderDialects(cc.Renderer, listDialects(cc.Cfg.Dialect))
		},
	}
}

func listDialects(current string) []dialectInfo {
	current = string(core.DataSourceType(current).Normalize())

	var out []dialectInfo
	for _, name := range sqlgen.List() {
		gen, err := sqlgen.New(core.DataSourceType(name))
		if err != nil {
			continue
		}
		info := dialectInfo{Type: name, Generator: gen.Name(), Current: name == current}
		if flavor, err := introspect.FlavorFor(core.DataSourceType(name)); err == nil {
			info.Introspection = string(flavor)
		}
		out = append(out, info)
	}
	return out
}

func renderDialects(r *output.Renderer, dialects []dialectInfo) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(dialects)
	}

	r.Header(1, "Dialects")
	rows := make([][]string, 0, len(dialects))
	for _, d := range dialects {
		name := d.Type
		if d.Current {
			name += " *"
		}
		introspection := d.Introspection
		if introspection == "" {
			introspection = "-"
		}
		rows = append(rows, []string{name, d.Generator, introspection})
	}
	r.Table([]string{"Type", "Generator", "Introspection"}, rows)
	return nil
}
