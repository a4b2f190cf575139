package main

import (
	"fmt"

	"github.com/caskvcs/cask/pkg/object"
	"github.com/caskvcs/cask/pkg/refs"
	"github.com/spf13/cobra"
)

func newUpdateRefCmd() *cobra.Command {
	var expectedOld string
	var hasExpectedOld bool
	var deleteRef bool

	cmd := &cobra.Command{
		Use:   "update-ref <name> [<hash>]",
		Short: "Point a ref at an object, or delete it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			name := args[0]

			if deleteRef {
				if len(args) != 1 {
					return fmt.Errorf("-d takes only the ref name")
				}
				return r.Refs.Delete(name)
			}
			if len(args) != 2 {
				return fmt.Errorf("a target hash is required")
			}

			h := object.Hash(args[1])
			if !r.Store.Has(h) {
				return fmt.Errorf("object %s not in store", h)
			}
			if hasExpectedOld {
				return r.Refs.SetDirect(name, h, object.Hash(expectedOld))
			}
			return r.Refs.SetDirect(name, h)
		},
	}

	cmd.Flags().StringVar(&expectedOld, "old", "", "require the ref to currently hold this hash (empty string: must not exist)")
	cmd.Flags().BoolVarP(&deleteRef, "delete", "d", false, "delete the ref")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		hasExpectedOld = cmd.Flags().Changed("old")
	}
	return cmd
}

func newSymbolicRefCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbolic-ref <name> [<target>]",
		Short: "Read or set a symbolic ref",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			name := args[0]

			if len(args) == 2 {
				return r.Refs.SetSymbolic(name, args[1])
			}

			value, err := r.Refs.Read(name)
			if err != nil {
				return err
			}
			if value.Kind != refs.Symbolic {
				return fmt.Errorf("ref %q is not symbolic", name)
			}
			fmt.Fprintln(cmd.OutOrStdout(), value.Target)
			return nil
		},
	}
}

func newShowRefCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "show-ref",
		Short: "List refs with their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			all, err := r.Refs.List(prefix)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ref := range all {
				if ref.Value.Kind == refs.Symbolic {
					fmt.Fprintf(out, "ref: %s %s\n", ref.Value.Target, ref.Name)
					continue
				}
				fmt.Fprintf(out, "%s %s\n", ref.Value.Hash, ref.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "only list refs whose name starts with this prefix")
	return cmd
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve a ref through symbolic indirection to an object hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			h, err := r.Refs.Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

func newReflogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog <name>",
		Short: "Show a ref's update history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			entries, err := r.Refs.Log(args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s %s %d %s\n", e.OldHash, e.NewHash, e.Timestamp, e.Reason)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of entries shown")
	return cmd
}
