package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caskvcs/cask/pkg/object"
	"github.com/caskvcs/cask/pkg/repo"
	"github.com/spf13/cobra"
)

func openRepo() (*repo.Repo, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return repo.Open(wd)
}

func newHashObjectCmd() *cobra.Command {
	var kindName string
	var write bool
	var useStdin bool

	cmd := &cobra.Command{
		Use:   "hash-object [file]",
		Short: "Compute an object hash, optionally storing the object",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			switch {
			case useStdin:
				data, err = io.ReadAll(cmd.InOrStdin())
			case len(args) == 1:
				data, err = os.ReadFile(args[0])
			default:
				return fmt.Errorf("a file argument or --stdin is required")
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			kind, err := object.ParseKind(kindName)
			if err != nil {
				return err
			}

			r, err := openRepo()
			if err != nil {
				return err
			}

			var h object.Hash
			if write {
				h, err = r.Store.Write(kind, data)
				if err != nil {
					return err
				}
			} else {
				h = r.Store.Algo().HashObject(kind, data)
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kindName, "type", "t", "blob", "object kind (blob, tree, commit, tag)")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "store the object instead of only hashing it")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "read the object body from standard input")
	return cmd
}

func newCatFileCmd() *cobra.Command {
	var showKind bool
	var showSize bool
	var prettyPrint bool

	cmd := &cobra.Command{
		Use:   "cat-file <object>",
		Short: "Show an object's kind, size, or content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := 0
			for _, set := range []bool{showKind, showSize, prettyPrint} {
				if set {
					modes++
				}
			}
			if modes != 1 {
				return fmt.Errorf("exactly one of -t, -s, -p is required")
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			h, err := resolveToHash(r, args[0])
			if err != nil {
				return err
			}
			kind, body, err := r.Store.Read(h)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case showKind:
				fmt.Fprintln(out, kind)
			case showSize:
				fmt.Fprintln(out, len(body))
			case prettyPrint:
				return prettyPrintObject(out, r, kind, body)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showKind, "type", "t", false, "print the object kind")
	cmd.Flags().BoolVarP(&showSize, "size", "s", false, "print the object body size in bytes")
	cmd.Flags().BoolVarP(&prettyPrint, "print", "p", false, "pretty-print the object content")
	return cmd
}

func prettyPrintObject(out io.Writer, r *repo.Repo, kind object.Kind, body []byte) error {
	switch kind {
	case object.KindBlob:
		_, err := out.Write(body)
		return err
	case object.KindTree:
		tree, err := object.UnmarshalTree(body, r.Store.Algo())
		if err != nil {
			return err
		}
		for _, e := range tree.Entries {
			kindLabel := "blob"
			if e.IsDir() {
				kindLabel = "tree"
			}
			fmt.Fprintf(out, "%06o %s %s\t%s\n", e.Mode, kindLabel, e.Target, e.Name)
		}
		return nil
	case object.KindCommit, object.KindTag:
		// The text encodings are already human-readable.
		_, err := out.Write(body)
		return err
	}
	return fmt.Errorf("unsupported object kind %q", kind)
}

// resolveToHash accepts a full hash or a ref name. Ref names are tried first
// so short branch names like "main" work; anything that looks like a full
// digest is used as-is.
func resolveToHash(r *repo.Repo, name string) (object.Hash, error) {
	name = strings.TrimSpace(name)
	if len(name) == r.Store.Algo().HexLen() && isHex(name) {
		return object.Hash(name), nil
	}
	if h, err := r.Refs.Resolve(name); err == nil {
		return h, nil
	}
	if h, err := r.Refs.Resolve("refs/heads/" + name); err == nil {
		return h, nil
	}
	if h, err := r.Refs.Resolve("refs/tags/" + name); err == nil {
		return h, nil
	}
	return "", fmt.Errorf("cannot resolve %q to an object", name)
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return len(s) > 0
}
