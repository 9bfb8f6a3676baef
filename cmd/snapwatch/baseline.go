package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bamsammich/snapwatch/internal/item"
	"github.com/bamsammich/snapwatch/internal/store"
	"github.com/bamsammich/snapwatch/internal/ui"
)

func newShowCmd(a *app) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "show [ROOT]",
		Short: "List stored baselines, or print the baseline tree of ROOT",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 0 {
				baselines, err := st.Roots(cmd.Context())
				if err != nil {
					return fmt.Errorf("list baselines: %w", err)
				}
				return printBaselines(cmd.OutOrStdout(), baselines)
			}

			root, err := store.CleanRoot(args[0])
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			tree, err := st.Load(cmd.Context(), root)
			if err != nil {
				return fmt.Errorf("load baseline: %w", err)
			}
			if tree == nil {
				return &exitError{code: 1, err: fmt.Errorf("%s: %w", root, store.ErrUnknownRoot)}
			}
			return printTree(cmd.OutOrStdout(), root, tree, depth)
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "print at most this many levels (0 prints all)")
	return cmd
}

func printBaselines(w io.Writer, baselines []store.Baseline) error {
	if len(baselines) == 0 {
		fmt.Fprintln(w, "no baselines")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOT\tNODES\tGENERATION\tSCANNED\tCHECKSUM")
	for _, b := range baselines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%016x\n",
			b.Root,
			ui.FormatCount(int64(b.Nodes)),
			b.Generation,
			b.ScannedAt.Local().Format(time.DateTime),
			b.Checksum,
		)
	}
	return tw.Flush()
}

func printTree(w io.Writer, root string, tree *item.Tree, maxDepth int) error {
	fmt.Fprintf(w, "%s/\n", strings.TrimSuffix(root, "/"))
	return tree.Walk(item.RootID, func(id item.NodeID, depth int) error {
		if id == item.RootID || (maxDepth > 0 && depth > maxDepth) {
			return nil
		}
		it := tree.Get(id)
		name := it.Attributes().Name
		indent := strings.Repeat("  ", depth)
		switch v := it.(type) {
		case *item.Directory:
			_, err := fmt.Fprintf(w, "%s%s/\n", indent, name)
			return err
		case *item.File:
			detail := ui.FormatBytes(v.Size)
			if v.Copying {
				detail += ", copying"
			}
			_, err := fmt.Fprintf(w, "%s%s  %s\n", indent, name, detail)
			return err
		}
		return nil
	})
}

func newForgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forget ROOT",
		Short: "Delete the stored baseline of ROOT",
		Long: `Delete the stored baseline of ROOT. The next scan of ROOT reports
every entry as added.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := store.CleanRoot(args[0])
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			st, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Forget(cmd.Context(), root); err != nil {
				if errors.Is(err, store.ErrUnknownRoot) {
					return &exitError{code: 1, err: err}
				}
				return err
			}
			if !a.quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "forgot %s\n", root)
			}
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export ROOT FILE",
		Short: "Write the baseline of ROOT to FILE",
		Long:  `Write the baseline of ROOT to FILE as a compressed snapshot ("-" writes to stdout).`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := store.CleanRoot(args[0])
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			st, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer st.Close()

			tree, err := st.Load(cmd.Context(), root)
			if err != nil {
				return fmt.Errorf("load baseline: %w", err)
			}
			if tree == nil {
				return &exitError{code: 1, err: fmt.Errorf("%s: %w", root, store.ErrUnknownRoot)}
			}

			if args[1] == "-" {
				return store.Export(cmd.OutOrStdout(), tree)
			}
			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("create export: %w", err)
			}
			if err := store.Export(f, tree); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close export: %w", err)
			}
			if !a.quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %s (%s nodes) to %s\n",
					root, ui.FormatCount(int64(tree.Len())), args[1])
			}
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import ROOT FILE",
		Short: "Replace the baseline of ROOT with a snapshot from FILE",
		Long: `Replace the baseline of ROOT with a snapshot written by export ("-" reads
from stdin). The next scan of ROOT reports changes relative to it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := store.CleanRoot(args[0])
			if err != nil {
				return &exitError{code: 2, err: err}
			}

			var r io.Reader = cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("open import: %w", err)
				}
				defer f.Close()
				r = f
			}
			tree, err := store.Import(r)
			if err != nil {
				return &exitError{code: 1, err: fmt.Errorf("import %s: %w", args[1], err)}
			}

			st, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Commit(cmd.Context(), root, tree); err != nil {
				return err
			}
			if !a.quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "imported %s nodes as baseline of %s\n",
					ui.FormatCount(int64(tree.Len())), root)
			}
			return nil
		},
	}
}
