package refs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caskvcs/cask/pkg/object"
)

// ReflogAppendError reports that a ref update was committed but the matching
// reflog append failed. Callers that only care about the ref value may treat
// it as success.
type ReflogAppendError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *ReflogAppendError) Error() string {
	return fmt.Sprintf(
		"ref %q updated but reflog append failed (old=%s new=%s): %v",
		e.Ref, e.OldHash, e.NewHash, e.Err,
	)
}

func (e *ReflogAppendError) Unwrap() error { return e.Err }

// ReflogEntry is one line of a ref's update history.
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Timestamp int64
	Reason    string
}

func (s *Store) reflogPath(name string) string {
	return filepath.Join(s.dir, "logs", filepath.FromSlash(name))
}

// appendReflog writes one "old new ts reason" line to the ref's log. Missing
// hashes (unborn side of a creation or deletion) are padded with zeros so
// every line has four fields.
func (s *Store) appendReflog(name string, oldHash, newHash object.Hash, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}

	logPath := s.reflogPath(name)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}

	line := fmt.Sprintf(
		"%s %s %d %s\n",
		padHash(oldHash, newHash), padHash(newHash, oldHash), time.Now().Unix(), reason,
	)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

// padHash substitutes an all-zero digest for an empty hash, sized to match
// its counterpart.
func padHash(h, counterpart object.Hash) string {
	if h != "" {
		return string(h)
	}
	width := len(counterpart)
	if width == 0 {
		width = object.SHA256.HexLen()
	}
	return strings.Repeat("0", width)
}

// Log returns a ref's update history, newest first. A ref with no log reads
// as empty. limit <= 0 means no limit.
func (s *Store) Log(name string, limit int) ([]ReflogEntry, error) {
	f, err := os.Open(s.reflogPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog %q: %w", name, err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, ReflogEntry{
			Ref:       name,
			OldHash:   object.Hash(parts[0]),
			NewHash:   object.Hash(parts[1]),
			Timestamp: ts,
			Reason:    parts[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog %q: %w", name, err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
