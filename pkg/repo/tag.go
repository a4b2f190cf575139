package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caskvcs/cask/pkg/object"
	"github.com/caskvcs/cask/pkg/refs"
)

// TagSigner signs the canonical tag payload and returns an armored signature
// block to be appended to the tag message.
type TagSigner func(payload []byte) (string, error)

// CreateLightweightTag points refs/tags/<name> directly at target. Fails if
// the tag already exists.
func (r *Repo) CreateLightweightTag(name string, target object.Hash) error {
	if err := validateTagName(name); err != nil {
		return err
	}
	if !r.Store.Has(target) {
		return fmt.Errorf("tag %q: target %s not in store", name, target)
	}
	if err := r.Refs.SetDirect("refs/tags/"+name, target, ""); err != nil {
		if errors.Is(err, refs.ErrRefCASMismatch) {
			return fmt.Errorf("tag %q already exists", name)
		}
		return fmt.Errorf("tag %q: %w", name, err)
	}
	return nil
}

// CreateTag writes an annotated tag object for target and points
// refs/tags/<name> at it. When signer is non-nil the tag message gains a
// trailing signature block over the unsigned serialized tag, so signing never
// changes how tags are hashed or parsed.
func (r *Repo) CreateTag(name string, target object.Hash, tagger object.Signature, message string, signer TagSigner) (object.Hash, error) {
	if err := validateTagName(name); err != nil {
		return "", err
	}
	targetKind, _, err := r.Store.Read(target)
	if err != nil {
		return "", fmt.Errorf("tag %q: read target: %w", name, err)
	}

	if message != "" && !strings.HasSuffix(message, "\n") {
		message += "\n"
	}

	tag := &object.Tag{
		Target:     target,
		TargetKind: targetKind,
		Name:       name,
		Tagger:     tagger,
		Message:    message,
	}
	if signer != nil {
		payload := object.MarshalTag(tag)
		sig, err := signer(payload)
		if err != nil {
			return "", fmt.Errorf("tag %q: sign: %w", name, err)
		}
		if !strings.HasSuffix(sig, "\n") {
			sig += "\n"
		}
		tag.Message += sig
	}

	tagHash, err := r.Store.WriteTag(tag)
	if err != nil {
		return "", fmt.Errorf("tag %q: write: %w", name, err)
	}
	if err := r.Refs.SetDirect("refs/tags/"+name, tagHash, ""); err != nil {
		if errors.Is(err, refs.ErrRefCASMismatch) {
			return "", fmt.Errorf("tag %q already exists", name)
		}
		return "", fmt.Errorf("tag %q: %w", name, err)
	}
	return tagHash, nil
}

// SplitTagSignature separates an annotated tag's message from its trailing
// SSH signature block, if any. The second return is the signature (empty when
// unsigned); the first is the message without it.
func SplitTagSignature(message string) (string, string) {
	const begin = "-----BEGIN SSH SIGNATURE-----"
	idx := strings.Index(message, begin)
	if idx < 0 {
		return message, ""
	}
	return message[:idx], message[idx:]
}

func validateTagName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("tag name is required")
	}
	if strings.ContainsAny(name, " \t\n") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid tag name %q", name)
	}
	return nil
}
