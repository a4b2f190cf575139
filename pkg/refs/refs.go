// Package refs implements the reference layer: named, mutable pointers into
// the immutable object store. Refs live as loose files under the repository
// metadata directory, with an optional packed-refs file as a read fallback.
package refs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/caskvcs/cask/pkg/object"
)

var (
	// ErrRefNotFound reports a ref name with no loose file and no
	// packed-refs entry.
	ErrRefNotFound = errors.New("ref not found")
	// ErrDanglingRef reports a symbolic ref whose chain ends at a name that
	// does not exist.
	ErrDanglingRef = errors.New("dangling symbolic ref")
	// ErrRefCycle reports a symbolic ref chain that revisits a name.
	ErrRefCycle = errors.New("symbolic ref cycle")
	// ErrRefCASMismatch reports a compare-and-swap update that found a
	// different current value than the caller expected.
	ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")
)

const (
	symbolicPrefix = "ref: "

	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// ValueKind distinguishes the two things a ref can hold.
type ValueKind int

const (
	// Direct refs hold an object hash.
	Direct ValueKind = iota
	// Symbolic refs hold the name of another ref.
	Symbolic
)

// Value is the content of a single ref: either an object hash or the name of
// another ref.
type Value struct {
	Kind   ValueKind
	Hash   object.Hash // set when Kind == Direct
	Target string      // set when Kind == Symbolic
}

// DirectValue builds a direct Value.
func DirectValue(h object.Hash) Value { return Value{Kind: Direct, Hash: h} }

// SymbolicValue builds a symbolic Value.
func SymbolicValue(target string) Value { return Value{Kind: Symbolic, Target: target} }

// Ref pairs a ref name with its stored value.
type Ref struct {
	Name  string
	Value Value
}

// Store reads and writes refs under a repository metadata directory. Ref
// names are slash-separated paths relative to that directory, e.g. "HEAD" or
// "refs/heads/main".
type Store struct {
	dir string
}

// NewStore creates a ref store rooted at the metadata directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) refPath(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

// Read returns the stored value of a ref without following symbolic
// indirection. Loose files win over packed-refs entries; a name present in
// neither fails with ErrRefNotFound.
func (s *Store) Read(name string) (Value, error) {
	data, err := os.ReadFile(s.refPath(name))
	if err == nil {
		return parseRefValue(data), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Value{}, fmt.Errorf("read ref %q: %w", name, err)
	}

	packed, err := s.readPackedRefs()
	if err != nil {
		return Value{}, fmt.Errorf("read ref %q: %w", name, err)
	}
	if h, ok := packed[name]; ok {
		return DirectValue(h), nil
	}
	return Value{}, fmt.Errorf("read ref %q: %w", name, ErrRefNotFound)
}

func parseRefValue(data []byte) Value {
	content := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(content, symbolicPrefix); ok {
		return SymbolicValue(strings.TrimSpace(target))
	}
	return DirectValue(object.Hash(content))
}

// Resolve follows symbolic indirection from name to an object hash. A missing
// first ref fails with ErrRefNotFound; a missing name reached through at least
// one symbolic hop fails with ErrDanglingRef; a chain that revisits a name
// fails with ErrRefCycle.
func (s *Store) Resolve(name string) (object.Hash, error) {
	seen := map[string]bool{}
	current := name
	for {
		if seen[current] {
			return "", fmt.Errorf("resolve ref %q: at %q: %w", name, current, ErrRefCycle)
		}
		seen[current] = true

		value, err := s.Read(current)
		if err != nil {
			if errors.Is(err, ErrRefNotFound) && current != name {
				return "", fmt.Errorf("resolve ref %q: target %q: %w", name, current, ErrDanglingRef)
			}
			return "", err
		}
		if value.Kind == Direct {
			return value.Hash, nil
		}
		current = value.Target
	}
}

// finalDirectName follows symbolic refs from name to the ref that an update
// must land on: the first direct ref in the chain, or the first missing name
// (an unborn branch a symbolic ref points at).
func (s *Store) finalDirectName(name string) (string, error) {
	seen := map[string]bool{}
	current := name
	for {
		if seen[current] {
			return "", fmt.Errorf("update ref %q: at %q: %w", name, current, ErrRefCycle)
		}
		seen[current] = true

		value, err := s.Read(current)
		if err != nil {
			if errors.Is(err, ErrRefNotFound) {
				return current, nil
			}
			return "", err
		}
		if value.Kind == Direct {
			return current, nil
		}
		current = value.Target
	}
}

// SetDirect points a ref at an object hash. Updating a symbolic ref writes
// through the chain to the final direct ref, so the symbolic link itself is
// preserved. If expectedOld is provided, the update only succeeds when the
// final ref currently holds that hash (empty meaning "must not exist yet").
//
// The write uses lockfile + rename semantics: concurrent updaters serialize
// on the lock, and exactly one of two conflicting CAS updates wins. The
// reflog append happens after the rename; if it fails, the ref update stays
// committed and a ReflogAppendError is returned.
func (s *Store) SetDirect(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}

	target, err := s.finalDirectName(name)
	if err != nil {
		return err
	}

	refPath := s.refPath(target)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", target, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", target, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := s.currentDirectHash(target)
	if err != nil {
		return fmt.Errorf("update ref %q: read old hash: %w", target, err)
	}
	if len(expectedOld) == 1 && oldHash != expectedOld[0] {
		return fmt.Errorf(
			"update ref %q: %w (expected %q, found %q)",
			target, ErrRefCASMismatch, expectedOld[0], oldHash,
		)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", target, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", target, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", target, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", target, err)
	}
	cleanupLock = false

	if err := s.appendReflog(target, oldHash, h, "update"); err != nil {
		return &ReflogAppendError{Ref: target, OldHash: oldHash, NewHash: h, Err: err}
	}
	return nil
}

// currentDirectHash reads the hash a ref currently holds, for CAS comparison.
// A missing ref reads as the empty hash; a symbolic value at the final name
// is unexpected and fails.
func (s *Store) currentDirectHash(name string) (object.Hash, error) {
	value, err := s.Read(name)
	if err != nil {
		if errors.Is(err, ErrRefNotFound) {
			return "", nil
		}
		return "", err
	}
	if value.Kind != Direct {
		return "", fmt.Errorf("ref %q is symbolic", name)
	}
	return value.Hash, nil
}

// SetSymbolic points a ref at another ref by name. The write is atomic via
// lockfile + rename but carries no CAS semantics; symbolic retargeting is a
// deliberate, rare operation.
func (s *Store) SetSymbolic(name, target string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("update ref %q: empty symbolic target", name)
	}

	refPath := s.refPath(name)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	if _, err := lockFile.WriteString(symbolicPrefix + target + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false
	return nil
}

// Delete removes a ref from both the loose area and packed-refs. Deleting a
// name present in neither fails with ErrRefNotFound. Symbolic refs pointing
// at the deleted name are left dangling.
func (s *Store) Delete(name string) error {
	removedLoose := true
	if err := os.Remove(s.refPath(name)); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete ref %q: %w", name, err)
		}
		removedLoose = false
	}

	removedPacked, err := s.removePackedRef(name)
	if err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}

	if !removedLoose && !removedPacked {
		return fmt.Errorf("delete ref %q: %w", name, ErrRefNotFound)
	}

	// A stale reflog for a deleted ref would be misleading.
	_ = os.Remove(s.reflogPath(name))
	return nil
}

// List returns all refs whose name starts with prefix, sorted by name. Loose
// refs shadow packed-refs entries of the same name. HEAD is included when the
// prefix matches it.
func (s *Store) List(prefix string) ([]Ref, error) {
	byName := map[string]Value{}

	packed, err := s.readPackedRefs()
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	for name, h := range packed {
		byName[name] = DirectValue(h)
	}

	refsRoot := filepath.Join(s.dir, "refs")
	err = filepath.WalkDir(refsRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		byName[filepath.ToSlash(rel)] = parseRefValue(data)
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("list refs: %w", err)
	}

	if data, err := os.ReadFile(s.refPath("HEAD")); err == nil {
		byName["HEAD"] = parseRefValue(data)
	}

	out := make([]Ref, 0, len(byName))
	for name, value := range byName {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, Ref{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if errors.Is(err, os.ErrExist) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}
