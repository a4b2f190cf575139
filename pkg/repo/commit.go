package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caskvcs/cask/pkg/object"
	"github.com/caskvcs/cask/pkg/refs"
)

// CommitOptions carries everything CommitTree needs beyond the tree itself.
type CommitOptions struct {
	Parents   []object.Hash
	Author    object.Signature
	Committer object.Signature // zero value means "same as Author"
	Encoding  string
	Message   string
	// Ref names the ref to advance, usually "HEAD". Empty means no ref
	// update: the commit is written and its hash returned, nothing more.
	Ref string
}

// CommitTree writes a commit object for an existing tree and, when a ref is
// named, advances it with compare-and-swap semantics: the ref must currently
// point at the first parent (or not exist for a parentless commit), so two
// racing commits from the same parent cannot silently overwrite each other.
func (r *Repo) CommitTree(tree object.Hash, opts CommitOptions) (object.Hash, error) {
	if !r.Store.Has(tree) {
		return "", fmt.Errorf("commit: tree %s not in store", tree)
	}
	for _, p := range opts.Parents {
		if !r.Store.Has(p) {
			return "", fmt.Errorf("commit: parent %s not in store", p)
		}
	}

	committer := opts.Committer
	if committer == (object.Signature{}) {
		committer = opts.Author
	}

	c := &object.Commit{
		Tree:      tree,
		Parents:   opts.Parents,
		Author:    opts.Author,
		Committer: committer,
		Encoding:  opts.Encoding,
		Message:   opts.Message,
	}
	commitHash, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("commit: write: %w", err)
	}

	if opts.Ref == "" {
		return commitHash, nil
	}

	expectedOld := object.Hash("")
	if len(opts.Parents) > 0 {
		expectedOld = opts.Parents[0]
	}
	if err := r.Refs.SetDirect(opts.Ref, commitHash, expectedOld); err != nil {
		var reflogErr *refs.ReflogAppendError
		if errors.As(err, &reflogErr) {
			// The ref moved; the commit stands.
			return commitHash, nil
		}
		return "", fmt.Errorf("commit: update ref %q: %w", opts.Ref, err)
	}
	return commitHash, nil
}

// NowSignature builds a Signature stamped with the current local time.
func NowSignature(name, email string) object.Signature {
	now := time.Now()
	_, offset := now.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return object.Signature{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Unix:  now.Unix(),
		TZ:    fmt.Sprintf("%s%02d%02d", sign, offset/3600, (offset%3600)/60),
	}
}

// Log walks commit history from start, following first-parent links, and
// returns up to limit commits newest first. limit <= 0 means no limit.
func (r *Repo) Log(start object.Hash, limit int) ([]*object.Commit, error) {
	var commits []*object.Commit
	current := start

	for current != "" {
		if limit > 0 && len(commits) >= limit {
			break
		}
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		commits = append(commits, c)

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}
	return commits, nil
}
