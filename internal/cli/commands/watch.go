package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetric/internal/catalog"
	"github.com/leapstack-labs/leapmetric/internal/cli/output"
	"github.com/leapstack-labs/leapmetric/pkg/sqlgen"
)

const watchDebounce = 100 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Recompile definitions when catalog files change",
		Long: `Watch the catalog directory. When a file changes the catalog is reloaded
and every changed definition is recompiled together with the variants built
on it. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cc := NewCommandContext(cmd)
	gen, err := cc.Generator()
	if err != nil {
		return err
	}
	cat, err := cc.LoadCatalog()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, cat.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cat.Dir(), err)
	}

	w := &catalogWatcher{cc: cc, gen: gen, current: cat}
	w.recompile(ctx, nil)
	cc.Renderer.Muted("Watching " + cat.Dir())

	return w.loop(ctx, watcher)
}

// catalogWatcher recompiles affected definitions after each reload.
type catalogWatcher struct {
	cc      *CommandContext
	gen     sqlgen.Generator
	current *catalog.Catalog
}

func (w *catalogWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watchDirRecursive(watcher, event.Name)
				}
			}
			if !catalog.IsCatalogFile(event.Name) {
				continue
			}
			w.cc.Logger.Debug("catalog file changed", "file", event.Name, "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(watchDebounce)
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.cc.Logger.Error("watcher error", "error", err)
		}
	}
}

// reload re-reads the catalog. A catalog that fails to load is reported and
// the previous one is kept.
func (w *catalogWatcher) reload(ctx context.Context) {
	next, err := w.cc.LoadCatalog()
	if err != nil {
		w.cc.Renderer.Error(err.Error())
		return
	}
	prev := w.current
	w.current = next
	w.recompile(ctx, prev)
}

// recompile compiles the definitions that differ from prev and everything
// downstream of them. A nil prev compiles the whole catalog.
func (w *catalogWatcher) recompile(ctx context.Context, prev *catalog.Catalog) []*compileResult {
	changed := catalog.Diff(prev, w.current)
	if len(changed) == 0 {
		return nil
	}

	graph := w.current.Graph()
	comp := w.cc.Compiler(w.current)
	r := w.cc.Renderer

	var results []*compileResult
	for _, id := range graph.GetAffectedNodes(changed) {
		def, err := w.current.Fetch(ctx, id)
		if err != nil {
			continue
		}
		res, _ := compileDefinition(ctx, comp, w.gen, def)
		results = append(results, res)
	}

	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(results)
		return results
	}
	r.Header(2, fmt.Sprintf("%s: %d recompiled", time.Now().Format("15:04:05"), len(results)))
	for _, res := range results {
		if res.Error != "" {
			r.StatusLine(res.ID, output.StatusFailed, res.Error)
			continue
		}
		r.StatusLine(res.ID, output.StatusSuccess, "")
		w.cc.Logger.Debug("compiled", "id", res.ID, "query", res.Query)
	}
	return results
}

// watchDirRecursive adds dir and its subdirectories, skipping hidden ones.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
