package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Store is a content-addressed object store. Recent writes land as loose
// objects under objects/ab/cdef… (2-character fan-out); a separate compaction
// pass may consolidate them into pack files under objects/pack/, which the
// read path consults transparently. A loose object always shadows a packed
// copy of the same hash, so a fresh write is never hidden by a stale pack.
//
// Writes are additive and idempotent by digest: the store's content is a pure
// function of the set of distinct hashes ever written, regardless of how many
// times or in what order Write is called.
type Store struct {
	root string
	algo Algo
}

// NewStore creates a Store rooted at the given directory using the given
// digest algorithm. The objects/ subdirectory is created lazily on first
// write.
func NewStore(root string, algo Algo) *Store {
	return &Store{root: root, algo: algo}
}

// Algo returns the digest algorithm that defines identity in this store.
func (s *Store) Algo() Algo { return s.algo }

func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash,
// checking the loose area first and then pack indexes. It never deserializes
// the object.
func (s *Store) Has(h Hash) bool {
	if len(h) != s.algo.HexLen() {
		return false
	}
	if _, err := os.Stat(s.objectPath(h)); err == nil {
		return true
	}
	found, err := s.packsContain(h)
	return err == nil && found
}

// Write stores an object body under its kind and returns its content hash.
// Writing content that is already present (loose or packed) is a no-op that
// still returns the hash. The loose on-disk form is the zlib-compressed
// envelope "kind len\0body"; bytes are written to a temp file and renamed
// into place, so concurrent writers of the same content converge on one
// intact copy and readers never observe a partial object.
func (s *Store) Write(kind Kind, body []byte) (Hash, error) {
	h := s.algo.HashObject(kind, body)

	// Dedup fast path.
	if s.Has(h) {
		return h, nil
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	zw := zlib.NewWriter(tmp)
	fmt.Fprintf(zw, "%s %d\x00", kind, len(body))
	if _, err := zw.Write(body); err != nil {
		_ = zw.Close()
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write compress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	if err := os.Rename(tmpName, s.objectPath(h)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}
	return h, nil
}

// Read retrieves an object by hash, returning its kind and body. The loose
// area takes precedence over packs. A hash present in neither fails with
// ErrObjectNotFound.
func (s *Store) Read(h Hash) (Kind, []byte, error) {
	kind, body, err := s.readLoose(h)
	if err == nil {
		return kind, body, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", nil, err
	}
	return s.readFromPacks(h)
}

func (s *Store) readLoose(h Hash) (Kind, []byte, error) {
	if len(h) != s.algo.HexLen() {
		return "", nil, fmt.Errorf("object read %q: %w", h, os.ErrNotExist)
	}
	f, err := os.Open(s.objectPath(h))
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
	}
	if err := zr.Close(); err != nil {
		return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
	}

	kind, body, err := parseEnvelope(raw)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	return kind, body, nil
}

// parseEnvelope splits "kind len\0body" and validates the declared length.
func parseEnvelope(raw []byte) (Kind, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", nil, decodeErrf("", "envelope", "missing NUL after header")
	}
	header := string(raw[:nul])
	body := raw[nul+1:]

	kindStr, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, decodeErrf("", "envelope", "malformed header %q", header)
	}
	kind, err := ParseKind(kindStr)
	if err != nil {
		return "", nil, decodeErrf("", "kind", "%v", err)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, decodeErrf(kind, "length", "not a number: %q", lenStr)
	}
	if len(body) != length {
		return "", nil, decodeErrf(kind, "length", "header says %d, body has %d", length, len(body))
	}
	return kind, body, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

func (s *Store) readKind(h Hash, want Kind) ([]byte, error) {
	kind, body, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, fmt.Errorf("object %s: kind mismatch: got %q, want %q", h, kind, want)
	}
	return body, nil
}

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(KindBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	body, err := s.readKind(h, KindBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(body)
}

// WriteTree canonicalizes, serializes, and stores a Tree.
func (s *Store) WriteTree(tr *Tree) (Hash, error) {
	body, err := MarshalTree(tr)
	if err != nil {
		return "", err
	}
	return s.Write(KindTree, body)
}

// ReadTree reads and deserializes a Tree.
func (s *Store) ReadTree(h Hash) (*Tree, error) {
	body, err := s.readKind(h, KindTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(body, s.algo)
}

// WriteCommit serializes and stores a Commit.
func (s *Store) WriteCommit(c *Commit) (Hash, error) {
	return s.Write(KindCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a Commit.
func (s *Store) ReadCommit(h Hash) (*Commit, error) {
	body, err := s.readKind(h, KindCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(body)
}

// WriteTag serializes and stores a Tag.
func (s *Store) WriteTag(t *Tag) (Hash, error) {
	return s.Write(KindTag, MarshalTag(t))
}

// ReadTag reads and deserializes a Tag.
func (s *Store) ReadTag(h Hash) (*Tag, error) {
	body, err := s.readKind(h, KindTag)
	if err != nil {
		return nil, err
	}
	return UnmarshalTag(body)
}
