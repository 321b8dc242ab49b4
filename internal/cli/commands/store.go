package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetric/internal/cli/output"
)

// NewStoreCommand creates the store command group.
func NewStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and edit the state database",
	}
	cmd.AddCommand(newStoreListCommand(), newStoreRemoveCommand())
	return cmd
}

func newStoreListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cc := NewCommandContext(cmd)
			r := cc.Renderer

			s, err := cc.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			records, err := s.List(ctx)
			if err != nil {
				return err
			}
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(records)
			}

			r.Header(1, fmt.Sprintf("Stored definitions (%d)", len(records)))
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				cached := "no"
				if rec.CompiledQuery != "" {
					cached = "yes"
				}
				rows = append(rows, []string{rec.ID, rec.Kind, rec.SourceID, cached, rec.UpdatedAt.Format("2006-01-02 15:04:05")})
			}
			r.Table([]string{"ID", "Kind", "Source", "Cached", "Updated"}, rows)
			return nil
		},
	}
}

func newStoreRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a definition and every variant built on it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc := NewCommandContext(cmd)
			r := cc.Renderer

			s, err := cc.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			deleted, err := s.DeleteCascade(ctx, args[0])
			if err != nil {
				return err
			}
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string][]string{"deleted": deleted})
			}
			r.Success(fmt.Sprintf("Deleted %d definitions: %s", len(deleted), strings.Join(deleted, ", ")))
			return nil
		},
	}
}
