package main

import (
	"fmt"

	"github.com/caskvcs/cask/pkg/object"
	"github.com/caskvcs/cask/pkg/repo"
	"github.com/spf13/cobra"
)

func newTagCmd() *cobra.Command {
	var message string
	var tagger string
	var email string
	var sign bool
	var keyPath string

	cmd := &cobra.Command{
		Use:   "tag <name> [<target>]",
		Short: "Create a tag pointing at an object",
		Long: "Create a lightweight tag, or an annotated tag object when a " +
			"message is given. The target defaults to HEAD.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			target := "HEAD"
			if len(args) == 2 {
				target = args[1]
			}
			targetHash, err := resolveToHash(r, target)
			if err != nil {
				return err
			}

			if message == "" && !sign {
				return r.CreateLightweightTag(args[0], targetHash)
			}

			var signer repo.TagSigner
			if sign {
				s, resolvedKey, err := newSSHTagSigner(keyPath)
				if err != nil {
					return err
				}
				signer = s
				fmt.Fprintf(cmd.ErrOrStderr(), "signing with %s\n", resolvedKey)
			}

			tagHash, err := r.CreateTag(args[0], targetHash, repo.NowSignature(tagger, email), message, signer)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tagHash)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "tag message (creates an annotated tag)")
	cmd.Flags().StringVar(&tagger, "tagger", "cask", "tagger name")
	cmd.Flags().StringVar(&email, "email", "cask@localhost", "tagger email")
	cmd.Flags().BoolVarP(&sign, "sign", "s", false, "sign the tag with an SSH key")
	cmd.Flags().StringVar(&keyPath, "key", "", "SSH private key for signing (default: first of ~/.ssh/id_*)")
	return cmd
}

func newVerifyTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-tag <name>",
		Short: "Check the SSH signature on an annotated tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			tagHash, err := r.Refs.Resolve("refs/tags/" + args[0])
			if err != nil {
				return err
			}
			tag, err := r.Store.ReadTag(tagHash)
			if err != nil {
				return err
			}

			message, sig := repo.SplitTagSignature(tag.Message)
			if sig == "" {
				return fmt.Errorf("tag %q is not signed", args[0])
			}

			unsigned := *tag
			unsigned.Message = message
			pub, err := verifySSHTagSignature(object.MarshalTag(&unsigned), sig)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "good signature on %q (%s key)\n", args[0], pub.Type())
			return nil
		},
	}
}
