package object

import "strings"

// entrySortKey is the byte string an entry sorts by. Subtree entries compare
// as if their name carried a trailing separator, so a blob "a.b" sorts before
// a subtree "a" + "/" even though "a.b" > "a" byte-wise. This single rule is
// the tie-break between a file and a directory of the same literal name and
// is shared by the codec and the tree differ so the two can never disagree.
func entrySortKey(e TreeEntry) string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// CompareEntries is the canonical ordering of tree entries. It returns a
// negative value when a sorts before b, zero when their sort keys are equal,
// and a positive value otherwise.
func CompareEntries(a, b TreeEntry) int {
	return strings.Compare(entrySortKey(a), entrySortKey(b))
}
