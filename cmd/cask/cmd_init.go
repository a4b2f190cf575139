package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caskvcs/cask/pkg/object"
	"github.com/caskvcs/cask/pkg/repo"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var digest string
	var branch string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty cask repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			r, err := repo.Init(abs, repo.InitOptions{
				Digest:        object.Algo(digest),
				DefaultBranch: branch,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty cask repository in %s\n", r.CaskDir+string(filepath.Separator))
			return nil
		},
	}

	cmd.Flags().StringVar(&digest, "digest", "", "digest algorithm (sha256 or sha1)")
	cmd.Flags().StringVar(&branch, "initial-branch", "", "name of the initial branch (default main)")
	return cmd
}
