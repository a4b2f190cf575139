package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/caskvcs/cask/pkg/object"
	"github.com/caskvcs/cask/pkg/textdiff"
)

// contextLines is the number of unchanged lines shown around each hunk.
const contextLines = 3

// Render produces a unified-diff rendering of a change list, reading blob
// content from the store.
//
// Output format per change:
//
//	--- a/path        (/dev/null for Added)
//	+++ b/path        (/dev/null for Removed)
//	@@ -l,n +l,n @@
//	 context line
//	-old line
//	+new line
//
// Blobs containing a NUL byte are treated as binary and summarized in one
// line instead of a hunk listing.
func Render(store *object.Store, changes []Change) (string, error) {
	var b strings.Builder
	for _, c := range changes {
		if err := renderChange(store, &b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func renderChange(store *object.Store, b *strings.Builder, c Change) error {
	oldBody, err := changeBody(store, c.OldID)
	if err != nil {
		return err
	}
	newBody, err := changeBody(store, c.NewID)
	if err != nil {
		return err
	}

	switch c.Type {
	case Added:
		fmt.Fprintf(b, "--- /dev/null\n+++ b/%s\n", c.Path)
	case Removed:
		fmt.Fprintf(b, "--- a/%s\n+++ /dev/null\n", c.Path)
	case Modified:
		fmt.Fprintf(b, "--- a/%s\n+++ b/%s\n", c.Path, c.Path)
	}

	if isBinary(oldBody) || isBinary(newBody) {
		fmt.Fprintf(b, "Binary files differ\n")
		return nil
	}

	ops := textdiff.Lines(textdiff.SplitLines(string(oldBody)), textdiff.SplitLines(string(newBody)))
	for _, h := range textdiff.Hunks(ops, contextLines) {
		fmt.Fprintf(b, "@@ -%d,%d +%d,%d @@\n", h.AStart, h.ALen, h.BStart, h.BLen)
		for _, op := range h.Ops {
			switch op.Kind {
			case textdiff.Delete:
				fmt.Fprintf(b, "-%s\n", op.Line)
			case textdiff.Insert:
				fmt.Fprintf(b, "+%s\n", op.Line)
			case textdiff.Equal:
				fmt.Fprintf(b, " %s\n", op.Line)
			}
		}
	}
	return nil
}

func changeBody(store *object.Store, id object.Hash) ([]byte, error) {
	if id == "" {
		return nil, nil
	}
	blob, err := store.ReadBlob(id)
	if err != nil {
		return nil, fmt.Errorf("diff read blob %s: %w", id, err)
	}
	return blob.Data, nil
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}
