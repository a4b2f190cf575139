package refs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caskvcs/cask/pkg/object"
)

const packedRefsFile = "packed-refs"

// readPackedRefs parses the packed-refs file: one "hash name" pair per line,
// with '#' comment lines and '^' peel lines ignored. A missing file is an
// empty map.
func (s *Store) readPackedRefs() (map[string]object.Hash, error) {
	f, err := os.Open(filepath.Join(s.dir, packedRefsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	defer f.Close()

	out := map[string]object.Hash{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		hash, name, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("read packed-refs: malformed line %q", line)
		}
		out[strings.TrimSpace(name)] = object.Hash(hash)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	return out, nil
}

// removePackedRef rewrites packed-refs without the named entry, reporting
// whether the entry was present. The whole file is rewritten through a temp
// file so a crash never leaves a half-written packed-refs.
func (s *Store) removePackedRef(name string) (bool, error) {
	packed, err := s.readPackedRefs()
	if err != nil {
		return false, err
	}
	if _, ok := packed[name]; !ok {
		return false, nil
	}
	delete(packed, name)

	path := filepath.Join(s.dir, packedRefsFile)
	if len(packed) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("rewrite packed-refs: %w", err)
		}
		return true, nil
	}

	names := make([]string, 0, len(packed))
	for n := range packed {
		names = append(names, n)
	}
	sort.Strings(names)

	tmp, err := os.CreateTemp(s.dir, ".tmp-packed-refs-*")
	if err != nil {
		return false, fmt.Errorf("rewrite packed-refs: %w", err)
	}
	tmpName := tmp.Name()
	for _, n := range names {
		if _, err := fmt.Fprintf(tmp, "%s %s\n", packed[n], n); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return false, fmt.Errorf("rewrite packed-refs: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, fmt.Errorf("rewrite packed-refs: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return false, fmt.Errorf("rewrite packed-refs: %w", err)
	}
	return true, nil
}
