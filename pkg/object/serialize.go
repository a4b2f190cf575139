package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes a Tree. Entries are canonicalized first: sorted by
// CompareEntries regardless of insertion order, duplicate names rejected.
// Each entry is encoded as
//
//	<mode octal> <name>\0<raw target digest>
//
// so the byte output is a pure function of the entry set. The raw digest
// length is taken from the entries themselves; all targets must share it.
func MarshalTree(tr *Tree) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return CompareEntries(sorted[i], sorted[j]) < 0
	})

	// Uniqueness is by Name alone. The sort key is not the name (directories
	// sort as name+"/"), so a file and a directory sharing a name need not be
	// adjacent after sorting; a plain set catches them regardless.
	seen := make(map[string]struct{}, len(sorted))
	rawLen := -1
	var buf bytes.Buffer
	for i, e := range sorted {
		if e.Name == "" {
			return nil, fmt.Errorf("marshal tree: entry %d: empty name", i)
		}
		if strings.ContainsAny(e.Name, "/\x00") {
			return nil, fmt.Errorf("marshal tree: entry %q: name contains separator or NUL", e.Name)
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("marshal tree: duplicate entry name %q", e.Name)
		}
		seen[e.Name] = struct{}{}
		if !ValidMode(e.Mode) {
			return nil, fmt.Errorf("marshal tree: entry %q: invalid mode %o", e.Name, e.Mode)
		}
		raw, err := hex.DecodeString(string(e.Target))
		if err != nil || len(raw) == 0 {
			return nil, fmt.Errorf("marshal tree: entry %q: invalid target %q", e.Name, e.Target)
		}
		if rawLen == -1 {
			rawLen = len(raw)
		} else if len(raw) != rawLen {
			return nil, fmt.Errorf("marshal tree: entry %q: target length %d differs from %d", e.Name, len(raw), rawLen)
		}
		fmt.Fprintf(&buf, "%o %s\x00", e.Mode, e.Name)
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses a Tree from its serialized form. The digest algorithm
// determines how many raw bytes each entry's target occupies.
func UnmarshalTree(data []byte, algo Algo) (*Tree, error) {
	tr := &Tree{}
	rest := data
	for len(rest) > 0 {
		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, decodeErrf(KindTree, "mode", "truncated entry header")
		}
		mode64, err := strconv.ParseUint(string(rest[:sp]), 8, 32)
		if err != nil {
			return nil, decodeErrf(KindTree, "mode", "not octal: %q", rest[:sp])
		}
		mode := uint32(mode64)
		if !ValidMode(mode) {
			return nil, decodeErrf(KindTree, "mode", "out of range: %o", mode)
		}
		rest = rest[sp+1:]

		nul := bytes.IndexByte(rest, 0)
		if nul < 0 {
			return nil, decodeErrf(KindTree, "name", "missing NUL terminator")
		}
		name := string(rest[:nul])
		if name == "" {
			return nil, decodeErrf(KindTree, "name", "empty path segment")
		}
		rest = rest[nul+1:]

		if len(rest) < algo.Size() {
			return nil, decodeErrf(KindTree, "target", "truncated digest for entry %q", name)
		}
		target := Hash(hex.EncodeToString(rest[:algo.Size()]))
		rest = rest[algo.Size():]

		tr.Entries = append(tr.Entries, TreeEntry{Name: name, Mode: mode, Target: target})
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit:
//
//	tree H
//	parent H      (zero or more, in order)
//	author Name <email> unix tz
//	committer Name <email> unix tz
//	encoding E    (only when a label is set)
//
//	message
//
// Identity covers the header block plus the blank line plus the message.
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "committer %s\n", c.Committer)
	if c.Encoding != "" {
		fmt.Fprintf(&buf, "encoding %s\n", c.Encoding)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a Commit from its serialized form.
func UnmarshalCommit(data []byte) (*Commit, error) {
	header, message, err := splitHeader(KindCommit, data)
	if err != nil {
		return nil, err
	}

	c := &Commit{Message: message}
	sawTree, sawAuthor, sawCommitter := false, false, false
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, decodeErrf(KindCommit, "header", "malformed line %q", line)
		}
		switch key {
		case "tree":
			c.Tree = Hash(val)
			sawTree = true
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			sig, err := parseSignature(KindCommit, "author", val)
			if err != nil {
				return nil, err
			}
			c.Author = sig
			sawAuthor = true
		case "committer":
			sig, err := parseSignature(KindCommit, "committer", val)
			if err != nil {
				return nil, err
			}
			c.Committer = sig
			sawCommitter = true
		case "encoding":
			c.Encoding = val
		default:
			return nil, decodeErrf(KindCommit, key, "unknown header key")
		}
	}
	if !sawTree {
		return nil, decodeErrf(KindCommit, "tree", "missing header")
	}
	if !sawAuthor {
		return nil, decodeErrf(KindCommit, "author", "missing header")
	}
	if !sawCommitter {
		return nil, decodeErrf(KindCommit, "committer", "missing header")
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Tag
// ---------------------------------------------------------------------------

// MarshalTag serializes an annotated Tag:
//
//	object H
//	type kind
//	tag name
//	tagger Name <email> unix tz
//
//	message
func MarshalTag(t *Tag) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Target)
	fmt.Fprintf(&buf, "type %s\n", t.TargetKind)
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s\n", t.Tagger)
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses a Tag from its serialized form.
func UnmarshalTag(data []byte) (*Tag, error) {
	header, message, err := splitHeader(KindTag, data)
	if err != nil {
		return nil, err
	}

	t := &Tag{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, decodeErrf(KindTag, "header", "malformed line %q", line)
		}
		switch key {
		case "object":
			t.Target = Hash(val)
		case "type":
			kind, err := ParseKind(val)
			if err != nil {
				return nil, decodeErrf(KindTag, "type", "%v", err)
			}
			t.TargetKind = kind
		case "tag":
			t.Name = val
		case "tagger":
			sig, err := parseSignature(KindTag, "tagger", val)
			if err != nil {
				return nil, err
			}
			t.Tagger = sig
		default:
			return nil, decodeErrf(KindTag, key, "unknown header key")
		}
	}
	if t.Target == "" {
		return nil, decodeErrf(KindTag, "object", "missing header")
	}
	if t.TargetKind == "" {
		return nil, decodeErrf(KindTag, "type", "missing header")
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

func splitHeader(kind Kind, data []byte) (header, message string, err error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return "", "", decodeErrf(kind, "message", "missing header/message separator")
	}
	return string(data[:idx]), string(data[idx+2:]), nil
}

// parseSignature parses "Name <email> unix tz".
func parseSignature(kind Kind, field, s string) (Signature, error) {
	open := strings.Index(s, " <")
	closing := strings.Index(s, ">")
	if open < 0 || closing < open {
		return Signature{}, decodeErrf(kind, field, "missing <email>: %q", s)
	}
	sig := Signature{
		Name:  s[:open],
		Email: s[open+2 : closing],
	}

	rest := strings.TrimSpace(s[closing+1:])
	parts := strings.Split(rest, " ")
	if len(parts) != 2 {
		return Signature{}, decodeErrf(kind, field, "missing timestamp or timezone: %q", s)
	}
	unix, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Signature{}, decodeErrf(kind, field, "bad timestamp %q", parts[0])
	}
	sig.Unix = unix
	sig.TZ = parts[1]
	return sig, nil
}
