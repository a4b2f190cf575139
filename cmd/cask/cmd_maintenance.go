package main

import (
	"fmt"

	"github.com/caskvcs/cask/pkg/object"
	"github.com/spf13/cobra"
)

func newRepackCmd() *cobra.Command {
	var roots []string

	cmd := &cobra.Command{
		Use:   "repack",
		Short: "Consolidate loose objects into a pack file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			rootHashes := make([]object.Hash, 0, len(roots))
			for _, name := range roots {
				h, err := resolveToHash(r, name)
				if err != nil {
					return err
				}
				rootHashes = append(rootHashes, h)
			}

			summary, err := r.Store.Repack(rootHashes...)
			if err != nil {
				return err
			}
			if summary.PackedObjects == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to pack")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "packed %d objects into %s\n", summary.PackedObjects, summary.PackFile)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&roots, "root", nil, "only pack objects reachable from this ref or hash (repeatable)")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-hash every stored object and cross-check pack indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			summary, err := r.Store.Verify()
			if err != nil {
				return err
			}
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"verified %d loose objects and %d packed objects in %d packs\n",
				summary.LooseObjects, summary.PackObjects, summary.PackFiles,
			)
			return nil
		},
	}
}
