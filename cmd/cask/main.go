package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "cask",
		Short: "Content-addressed object storage with reference tracking",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newHashObjectCmd())
	root.AddCommand(newCatFileCmd())
	root.AddCommand(newCommitTreeCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newUpdateRefCmd())
	root.AddCommand(newSymbolicRefCmd())
	root.AddCommand(newShowRefCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newReflogCmd())
	root.AddCommand(newDiffTreeCmd())
	root.AddCommand(newTagCmd())
	root.AddCommand(newVerifyTagCmd())
	root.AddCommand(newRepackCmd())
	root.AddCommand(newVerifyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("cask 0.1.0-dev")
		},
	}
}
