// Package diff compares two stored trees and reports leaf-level changes, with
// an optional unified-diff rendering for blob content.
package diff

import (
	"fmt"
	"path"

	"github.com/caskvcs/cask/pkg/object"
)

// ChangeType classifies what happened to a path between two tree revisions.
type ChangeType int

const (
	Added    ChangeType = iota // path exists only in the after tree
	Removed                    // path exists only in the before tree
	Modified                   // path exists in both trees with a different target or mode
)

// String returns the lowercase label used in rendered output.
func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// Change records a single leaf-level change between two tree revisions. Paths
// are slash-separated and relative to the compared roots. Directories never
// appear as changes themselves; only the leaves beneath them do.
type Change struct {
	Type    ChangeType
	Path    string
	OldMode uint32      // zero for Added
	NewMode uint32      // zero for Removed
	OldID   object.Hash // empty for Added
	NewID   object.Hash // empty for Removed
}

// Trees computes the leaf-level changes between the trees a and b. Either
// hash may be empty, meaning the empty tree: diffing "" against a commit's
// tree lists every file as Added. Identical subtree hashes are pruned without
// descending into them.
//
// Changes come back sorted in canonical tree-entry order, so output is
// deterministic for a given pair of trees.
func Trees(store *object.Store, a, b object.Hash) ([]Change, error) {
	var changes []Change
	if err := walkTrees(store, "", a, b, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

func walkTrees(store *object.Store, prefix string, a, b object.Hash, out *[]Change) error {
	if a == b {
		return nil
	}

	aEntries, err := treeEntries(store, a)
	if err != nil {
		return err
	}
	bEntries, err := treeEntries(store, b)
	if err != nil {
		return err
	}

	// Both sides are in canonical order, so a two-pointer merge walk visits
	// every name exactly once.
	i, j := 0, 0
	for i < len(aEntries) || j < len(bEntries) {
		switch {
		case i >= len(aEntries):
			if err := emitOneSided(store, prefix, bEntries[j], Added, out); err != nil {
				return err
			}
			j++
		case j >= len(bEntries):
			if err := emitOneSided(store, prefix, aEntries[i], Removed, out); err != nil {
				return err
			}
			i++
		default:
			ae, be := aEntries[i], bEntries[j]
			cmp := object.CompareEntries(ae, be)
			switch {
			case cmp < 0:
				if err := emitOneSided(store, prefix, ae, Removed, out); err != nil {
					return err
				}
				i++
			case cmp > 0:
				if err := emitOneSided(store, prefix, be, Added, out); err != nil {
					return err
				}
				j++
			default:
				if err := emitMatched(store, prefix, ae, be, out); err != nil {
					return err
				}
				i++
				j++
			}
		}
	}
	return nil
}

// emitMatched handles two entries sharing a name. Equal target and mode is a
// no-op; two subtrees recurse; a file/directory kind flip is reported as the
// old side removed and the new side added.
func emitMatched(store *object.Store, prefix string, a, b object.TreeEntry, out *[]Change) error {
	p := path.Join(prefix, a.Name)

	switch {
	case a.IsDir() && b.IsDir():
		return walkTrees(store, p, a.Target, b.Target, out)
	case a.IsDir() != b.IsDir():
		if err := emitOneSided(store, prefix, a, Removed, out); err != nil {
			return err
		}
		return emitOneSided(store, prefix, b, Added, out)
	case a.Target == b.Target && a.Mode == b.Mode:
		return nil
	default:
		*out = append(*out, Change{
			Type:    Modified,
			Path:    p,
			OldMode: a.Mode,
			NewMode: b.Mode,
			OldID:   a.Target,
			NewID:   b.Target,
		})
		return nil
	}
}

// emitOneSided reports an entry present on only one side. A directory expands
// to one change per leaf beneath it.
func emitOneSided(store *object.Store, prefix string, e object.TreeEntry, t ChangeType, out *[]Change) error {
	p := path.Join(prefix, e.Name)

	if !e.IsDir() {
		c := Change{Type: t, Path: p}
		if t == Added {
			c.NewMode = e.Mode
			c.NewID = e.Target
		} else {
			c.OldMode = e.Mode
			c.OldID = e.Target
		}
		*out = append(*out, c)
		return nil
	}

	tree, err := store.ReadTree(e.Target)
	if err != nil {
		return fmt.Errorf("diff read tree %s at %s: %w", e.Target, p, err)
	}
	for _, child := range tree.Entries {
		if err := emitOneSided(store, p, child, t, out); err != nil {
			return err
		}
	}
	return nil
}

// treeEntries loads a tree's entries; the empty hash is the empty tree.
func treeEntries(store *object.Store, h object.Hash) ([]object.TreeEntry, error) {
	if h == "" {
		return nil, nil
	}
	tree, err := store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("diff read tree %s: %w", h, err)
	}
	return tree.Entries, nil
}
