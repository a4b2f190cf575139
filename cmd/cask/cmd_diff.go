package main

import (
	"fmt"

	"github.com/caskvcs/cask/pkg/diff"
	"github.com/caskvcs/cask/pkg/object"
	"github.com/caskvcs/cask/pkg/repo"
	"github.com/spf13/cobra"
)

func newDiffTreeCmd() *cobra.Command {
	var nameStatus bool

	cmd := &cobra.Command{
		Use:   "diff-tree <before> <after>",
		Short: "Compare two trees or commits",
		Long: "Compare two trees and print a unified diff of changed blobs. " +
			"Commit and tag arguments are peeled to their trees; \"-\" names the empty tree.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			before, err := peelToTree(r, args[0])
			if err != nil {
				return err
			}
			after, err := peelToTree(r, args[1])
			if err != nil {
				return err
			}

			changes, err := diff.Trees(r.Store, before, after)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if nameStatus {
				for _, c := range changes {
					fmt.Fprintf(out, "%s\t%s\n", statusLetter(c.Type), c.Path)
				}
				return nil
			}

			rendered, err := diff.Render(r.Store, changes)
			if err != nil {
				return err
			}
			fmt.Fprint(out, rendered)
			return nil
		},
	}

	cmd.Flags().BoolVar(&nameStatus, "name-status", false, "show only change type and path")
	return cmd
}

func statusLetter(t diff.ChangeType) string {
	switch t {
	case diff.Added:
		return "A"
	case diff.Removed:
		return "D"
	case diff.Modified:
		return "M"
	}
	return "?"
}

// peelToTree resolves an argument to a tree hash: "-" is the empty tree, a
// tree hash is itself, and commits and annotated tags peel down to the tree
// they ultimately reference.
func peelToTree(r *repo.Repo, arg string) (object.Hash, error) {
	if arg == "-" {
		return "", nil
	}
	h, err := resolveToHash(r, arg)
	if err != nil {
		return "", err
	}

	for {
		kind, body, err := r.Store.Read(h)
		if err != nil {
			return "", err
		}
		switch kind {
		case object.KindTree:
			return h, nil
		case object.KindCommit:
			c, err := object.UnmarshalCommit(body)
			if err != nil {
				return "", err
			}
			return c.Tree, nil
		case object.KindTag:
			t, err := object.UnmarshalTag(body)
			if err != nil {
				return "", err
			}
			h = t.Target
		default:
			return "", fmt.Errorf("%q is a %s, not a tree", arg, kind)
		}
	}
}
