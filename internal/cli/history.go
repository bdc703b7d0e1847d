package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/loader"
	"github.com/roach88/dnnplan/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Delete   bool
}

// HistoryEntry is one compilation, with its kernels when a single entry is shown.
type HistoryEntry struct {
	ir.CompilationRecord
	KernelList []ir.KernelRecord `json:"kernel_list,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [compilation-id]",
		Short: "List compilations recorded in the compile cache",
		Long: `List compilations recorded by "dnnplan compile --db", newest first.

With a compilation ID, show that compilation and a summary of each of
its kernels. With --delete, remove that compilation and its kernels
from the cache instead.

Examples:
  dnnplan history --db cache.db
  dnnplan history --db cache.db --limit 5
  dnnplan history --db cache.db 0190d6a4-...
  dnnplan history --db cache.db --delete 0190d6a4-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runHistory(opts, id, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "compile cache database path (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of compilations to list (0 for all)")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the given compilation")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	if opts.Delete && id == "" {
		_ = formatter.Error(loader.ErrCodeGeneric, "--delete needs a compilation ID", nil)
		return NewExitError(ExitCommandError, "--delete needs a compilation ID")
	}

	// Don't create an empty cache just to list it
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(loader.ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return failCommand(formatter, "opening database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if id != "" {
		rec, err := st.ReadCompilation(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			_ = formatter.Error(loader.ErrCodeNotFound, fmt.Sprintf("compilation not found: %s", id), nil)
			return NewExitError(ExitCommandError, "compilation not found")
		}
		if err != nil {
			return failCommand(formatter, "reading compilation", err)
		}
		if opts.Delete {
			if err := st.DeleteCompilation(ctx, id); err != nil {
				return failCommand(formatter, "deleting compilation", err)
			}
			logger.Info("compilation deleted", "id", id, "graph", rec.GraphName)
			rec.Artifact = nil
			if formatter.Format == "json" {
				return formatter.Success(rec)
			}
			fmt.Fprintf(formatter.Writer, "✓ Deleted compilation #%d of %s (%d kernel(s))\n",
				rec.Seq, displayName(rec.GraphName), rec.KernelCount)
			return nil
		}
		kernels, err := st.ListKernels(ctx, id)
		if err != nil {
			return failCommand(formatter, "reading kernels", err)
		}
		rec.Artifact = nil
		return outputHistoryEntry(formatter, HistoryEntry{CompilationRecord: rec, KernelList: kernels})
	}

	records, err := st.ListCompilations(ctx, opts.Limit)
	if err != nil {
		return failCommand(formatter, "listing compilations", err)
	}
	return outputHistoryList(formatter, records)
}

func outputHistoryList(formatter *OutputFormatter, records []ir.CompilationRecord) error {
	if formatter.Format == "json" {
		return formatter.Success(records)
	}

	w := formatter.Writer
	if len(records) == 0 {
		fmt.Fprintln(w, "No compilations recorded.")
		return nil
	}
	fmt.Fprintf(w, "✓ %d compilation(s)\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(w, "  #%d %s %s layers=%d kernels=%d compiler=%s\n",
			rec.Seq, displayName(rec.GraphName), shortHash(rec.GraphHash),
			rec.LayerCount, rec.KernelCount, rec.CompilerVersion)
		fmt.Fprintf(w, "     id=%s\n", rec.ID)
	}
	return nil
}

func outputHistoryEntry(formatter *OutputFormatter, entry HistoryEntry) error {
	if formatter.Format == "json" {
		return formatter.Success(entry)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compilation #%d of %s\n\n", entry.Seq, displayName(entry.GraphName))
	fmt.Fprintf(w, "  id:            %s\n", entry.ID)
	fmt.Fprintf(w, "  graph hash:    %s\n", entry.GraphHash)
	fmt.Fprintf(w, "  artifact hash: %s\n", entry.ArtifactHash)
	fmt.Fprintf(w, "  compiler:      %s (ir %s)\n", entry.CompilerVersion, entry.IRVersion)
	fmt.Fprintf(w, "  arenas:        weight=%d data=%d\n", entry.WeightTotal, entry.DataTotal)
	fmt.Fprintf(w, "\nKernels:\n")
	for _, k := range entry.KernelList {
		fmt.Fprintf(w, "  #%d %s groups=%dx%dx%d threads=%dx%dx%d source=%dB\n",
			k.Position, k.EntryPoint,
			k.ThreadgroupsPerGrid.Width, k.ThreadgroupsPerGrid.Height, k.ThreadgroupsPerGrid.Depth,
			k.ThreadsPerThreadgroup.Width, k.ThreadsPerThreadgroup.Height, k.ThreadsPerThreadgroup.Depth,
			k.SourceBytes)
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}

// shortHash trims a hex hash for listings.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
