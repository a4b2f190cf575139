package object

import "fmt"

// Hash is a lowercase hex-encoded content digest. Its length depends on the
// store's digest algorithm: 64 characters for SHA-256, 40 for legacy SHA-1.
type Hash string

// Kind identifies what an object's body encodes.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
	KindTag    Kind = "tag"
)

// ParseKind validates a kind tag read from serialized bytes.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindBlob, KindTree, KindCommit, KindTag:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown object kind %q", s)
}

// Tree entry modes, in Git's canonical octal encoding.
const (
	ModeDir     uint32 = 0o040000
	ModeFile    uint32 = 0o100644
	ModeExec    uint32 = 0o100755
	ModeSymlink uint32 = 0o120000
)

// ValidMode reports whether mode is one of the recognized entry modes.
func ValidMode(mode uint32) bool {
	switch mode {
	case ModeDir, ModeFile, ModeExec, ModeSymlink:
		return true
	}
	return false
}

// Blob holds raw file content with no name or permissions attached.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object: a path segment, its mode, and the
// hash of the blob or subtree it points at.
type TreeEntry struct {
	Name   string
	Mode   uint32
	Target Hash
}

// IsDir reports whether the entry points at a subtree.
func (e TreeEntry) IsDir() bool { return e.Mode == ModeDir }

// Tree is a directory listing. MarshalTree canonicalizes entry order, so
// callers may append entries in any order.
type Tree struct {
	Entries []TreeEntry
}

// Signature is an identity plus a moment in time, as recorded in commits and
// tags: "Name <email> unix-seconds +hhmm".
type Signature struct {
	Name  string
	Email string
	Unix  int64
	TZ    string // timezone offset, e.g. "+0000", "-0700"
}

func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.Unix, s.TZ)
}

// Commit is a named snapshot: one tree, zero or more parents, authorship
// metadata, and a free-text message.
type Commit struct {
	Tree      Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	Encoding  string // message encoding label; empty means the default
	Message   string
}

// Tag is an annotated tag object pointing at another object.
type Tag struct {
	Target     Hash
	TargetKind Kind
	Name       string
	Tagger     Signature
	Message    string
}
