package main

import (
	"fmt"

	"github.com/caskvcs/cask/pkg/object"
	"github.com/caskvcs/cask/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitTreeCmd() *cobra.Command {
	var parents []string
	var message string
	var author string
	var email string
	var refName string

	cmd := &cobra.Command{
		Use:   "commit-tree <tree>",
		Short: "Create a commit object for an existing tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("a commit message is required (-m)")
			}

			r, err := openRepo()
			if err != nil {
				return err
			}

			parentHashes := make([]object.Hash, 0, len(parents))
			for _, p := range parents {
				h, err := resolveToHash(r, p)
				if err != nil {
					return err
				}
				parentHashes = append(parentHashes, h)
			}

			commit, err := r.CommitTree(object.Hash(args[0]), repo.CommitOptions{
				Parents: parentHashes,
				Author:  repo.NowSignature(author, email),
				Message: ensureTrailingNewline(message),
				Ref:     refName,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), commit)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&parents, "parent", "p", nil, "parent commit (repeatable)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "cask", "author name")
	cmd.Flags().StringVar(&email, "email", "cask@localhost", "author email")
	cmd.Flags().StringVar(&refName, "ref", "", "ref to advance to the new commit (e.g. HEAD)")
	return cmd
}

func newLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log [start]",
		Short: "Show commit history following first parents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			start := "HEAD"
			if len(args) == 1 {
				start = args[0]
			}
			startHash, err := resolveToHash(r, start)
			if err != nil {
				return err
			}

			commits, err := r.Log(startHash, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			current := startHash
			for _, c := range commits {
				fmt.Fprintf(out, "commit %s\n", current)
				fmt.Fprintf(out, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
				fmt.Fprintf(out, "\n    %s\n", firstLine(c.Message))
				if len(c.Parents) == 0 {
					break
				}
				current = c.Parents[0]
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown")
	return cmd
}

func ensureTrailingNewline(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
