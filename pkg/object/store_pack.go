package object

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RepackSummary reports the outcome of Store.Repack.
type RepackSummary struct {
	PackedObjects int
	PackFile      string
	IndexFile     string
}

// VerifySummary reports the outcome of Store.Verify.
type VerifySummary struct {
	LooseObjects int
	PackFiles    int
	PackObjects  int
}

// Repack consolidates loose objects that are not already indexed by an
// existing pack into one new pack plus index. It is the offline compaction
// collaborator: non-destructive (loose objects remain on disk and keep
// shadowing the pack) and built purely on the store's read contract plus the
// pack writer. When roots are given, only loose objects reachable from them
// are packed.
func (s *Store) Repack(roots ...Hash) (*RepackSummary, error) {
	looseHashes, err := s.listLooseHashes()
	if err != nil {
		return nil, err
	}

	packed, err := s.packedHashSet()
	if err != nil {
		return nil, err
	}

	var keep map[Hash]struct{}
	if len(roots) > 0 {
		keep, err = s.ReachableSet(roots)
		if err != nil {
			return nil, err
		}
	}

	toPack := make([]Hash, 0, len(looseHashes))
	for _, h := range looseHashes {
		if _, ok := packed[h]; ok {
			continue
		}
		if keep != nil {
			if _, ok := keep[h]; !ok {
				continue
			}
		}
		toPack = append(toPack, h)
	}
	if len(toPack) == 0 {
		return &RepackSummary{}, nil
	}
	if len(toPack) > int(^uint32(0)) {
		return nil, fmt.Errorf("repack: too many objects: %d", len(toPack))
	}

	packDir := filepath.Join(s.root, "objects", "pack")
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return nil, fmt.Errorf("repack: mkdir pack dir: %w", err)
	}

	packTmp, err := os.CreateTemp(packDir, ".tmp-pack-*.pack")
	if err != nil {
		return nil, fmt.Errorf("repack: create pack temp file: %w", err)
	}
	packTmpPath := packTmp.Name()
	packTmpRemoved := false
	defer func() {
		if !packTmpRemoved {
			_ = os.Remove(packTmpPath)
		}
	}()

	pw, err := NewPackWriter(packTmp, s.algo, uint32(len(toPack)))
	if err != nil {
		_ = packTmp.Close()
		return nil, fmt.Errorf("repack: create pack writer: %w", err)
	}

	indexEntries := make([]PackIndexEntry, 0, len(toPack))
	for _, h := range toPack {
		kind, body, err := s.readLoose(h)
		if err != nil {
			_ = packTmp.Close()
			return nil, fmt.Errorf("repack: read loose object %s: %w", h, err)
		}
		entryType, err := packTypeForKind(kind)
		if err != nil {
			_ = packTmp.Close()
			return nil, fmt.Errorf("repack: object %s: %w", h, err)
		}
		offset := pw.CurrentOffset()
		if err := pw.WriteEntry(entryType, body); err != nil {
			_ = packTmp.Close()
			return nil, fmt.Errorf("repack: write pack entry %s: %w", h, err)
		}
		indexEntries = append(indexEntries, PackIndexEntry{
			Hash:   h,
			Offset: offset,
		})
	}

	packChecksum, err := pw.Finish()
	if err != nil {
		_ = packTmp.Close()
		return nil, fmt.Errorf("repack: finalize pack: %w", err)
	}
	if err := packTmp.Close(); err != nil {
		return nil, fmt.Errorf("repack: close pack temp file: %w", err)
	}

	packBase := "pack-" + string(packChecksum)
	packPath := filepath.Join(packDir, packBase+".pack")
	idxPath := filepath.Join(packDir, packBase+".idx")
	if err := os.Rename(packTmpPath, packPath); err != nil {
		return nil, fmt.Errorf("repack: rename pack file: %w", err)
	}
	packTmpRemoved = true

	idxTmp, err := os.CreateTemp(packDir, ".tmp-pack-*.idx")
	if err != nil {
		_ = os.Remove(packPath)
		return nil, fmt.Errorf("repack: create index temp file: %w", err)
	}
	idxTmpPath := idxTmp.Name()
	idxTmpRemoved := false
	defer func() {
		if !idxTmpRemoved {
			_ = os.Remove(idxTmpPath)
		}
	}()

	if _, err := WritePackIndex(idxTmp, indexEntries, packChecksum, s.algo); err != nil {
		_ = idxTmp.Close()
		_ = os.Remove(packPath)
		return nil, fmt.Errorf("repack: write pack index: %w", err)
	}
	if err := idxTmp.Close(); err != nil {
		_ = os.Remove(packPath)
		return nil, fmt.Errorf("repack: close index temp file: %w", err)
	}
	if err := os.Rename(idxTmpPath, idxPath); err != nil {
		_ = os.Remove(packPath)
		return nil, fmt.Errorf("repack: rename index file: %w", err)
	}
	idxTmpRemoved = true

	return &RepackSummary{
		PackedObjects: len(toPack),
		PackFile:      filepath.Base(packPath),
		IndexFile:     filepath.Base(idxPath),
	}, nil
}

// Verify re-hashes every loose object and every pack/index entry, failing on
// the first inconsistency.
func (s *Store) Verify() (*VerifySummary, error) {
	report := &VerifySummary{}

	looseHashes, err := s.listLooseHashes()
	if err != nil {
		return nil, err
	}
	for _, h := range looseHashes {
		kind, body, err := s.readLoose(h)
		if err != nil {
			return nil, fmt.Errorf("verify loose %s: %w", h, err)
		}
		if actual := s.algo.HashObject(kind, body); actual != h {
			return nil, fmt.Errorf("verify loose %s: hash mismatch (computed %s)", h, actual)
		}
		report.LooseObjects++
	}

	idxPaths, err := s.listPackIndexPaths()
	if err != nil {
		return nil, err
	}
	for _, idxPath := range idxPaths {
		idx, pf, err := s.openPack(idxPath)
		if err != nil {
			return nil, fmt.Errorf("verify pack %s: %w", filepath.Base(idxPath), err)
		}

		entries := idx.Entries()
		if len(entries) != len(pf.Entries) {
			return nil, fmt.Errorf(
				"verify pack %s: idx entry count %d does not match pack entry count %d",
				filepath.Base(idxPath), len(entries), len(pf.Entries),
			)
		}
		for _, indexEntry := range entries {
			packEntry, ok := pf.FindByOffset(indexEntry.Offset)
			if !ok {
				return nil, fmt.Errorf(
					"verify pack %s: missing pack entry for hash %s at offset %d",
					filepath.Base(idxPath), indexEntry.Hash, indexEntry.Offset,
				)
			}
			if _, _, err := s.checkPackedEntry(indexEntry.Hash, packEntry); err != nil {
				return nil, fmt.Errorf("verify pack %s hash %s: %w", filepath.Base(idxPath), indexEntry.Hash, err)
			}
			report.PackObjects++
		}
		report.PackFiles++
	}

	return report, nil
}

// Walk enumerates every stored object hash, loose and packed, exactly once.
// Each call starts a fresh enumeration. Hashes are visited in lexicographic
// order so fixtures are reproducible; callers must not rely on the order
// beyond that. Returning an error from fn stops the walk.
func (s *Store) Walk(fn func(Hash) error) error {
	looseHashes, err := s.listLooseHashes()
	if err != nil {
		return err
	}

	seen := make(map[Hash]struct{}, len(looseHashes))
	all := make([]Hash, 0, len(looseHashes))
	for _, h := range looseHashes {
		seen[h] = struct{}{}
		all = append(all, h)
	}

	packed, err := s.packedHashSet()
	if err != nil {
		return err
	}
	for h := range packed {
		if _, ok := seen[h]; ok {
			continue
		}
		all = append(all, h)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	for _, h := range all {
		if err := fn(h); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) packsContain(h Hash) (bool, error) {
	idxPaths, err := s.listPackIndexPaths()
	if err != nil {
		return false, err
	}
	for _, idxPath := range idxPaths {
		idxData, err := os.ReadFile(idxPath)
		if err != nil {
			return false, fmt.Errorf("read pack index %s: %w", filepath.Base(idxPath), err)
		}
		idx, err := ReadPackIndex(idxData, s.algo)
		if err != nil {
			return false, fmt.Errorf("parse pack index %s: %w", filepath.Base(idxPath), err)
		}
		if _, ok := idx.Find(h); ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) readFromPacks(h Hash) (Kind, []byte, error) {
	idxPaths, err := s.listPackIndexPaths()
	if err != nil {
		return "", nil, err
	}
	for _, idxPath := range idxPaths {
		idxData, err := os.ReadFile(idxPath)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: read pack index %s: %w", h, filepath.Base(idxPath), err)
		}
		idx, err := ReadPackIndex(idxData, s.algo)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: parse pack index %s: %w", h, filepath.Base(idxPath), err)
		}
		indexEntry, ok := idx.Find(h)
		if !ok {
			continue
		}

		packPath := packPathForIndex(idxPath)
		packData, err := os.ReadFile(packPath)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: read pack %s: %w", h, filepath.Base(packPath), err)
		}
		pf, err := ReadPack(packData, s.algo)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: parse pack %s: %w", h, filepath.Base(packPath), err)
		}
		if pf.Checksum != idx.PackChecksum {
			return "", nil, fmt.Errorf(
				"object read %s: checksum mismatch between idx %s and pack %s",
				h, filepath.Base(idxPath), filepath.Base(packPath),
			)
		}

		packEntry, ok := pf.FindByOffset(indexEntry.Offset)
		if !ok {
			return "", nil, fmt.Errorf(
				"object read %s: pack %s missing entry at offset %d",
				h, filepath.Base(packPath), indexEntry.Offset,
			)
		}
		return s.checkPackedEntry(h, packEntry)
	}

	return "", nil, fmt.Errorf("object read %s: %w", h, ErrObjectNotFound)
}

// checkPackedEntry maps the pack entry type back to an object kind and
// verifies the body hashes to the expected identity.
func (s *Store) checkPackedEntry(expected Hash, entry PackEntry) (Kind, []byte, error) {
	kind, ok := kindForPackType(entry.Type)
	if !ok {
		return "", nil, fmt.Errorf("unsupported packed entry type %d", entry.Type)
	}
	if computed := s.algo.HashObject(kind, entry.Data); computed != expected {
		return "", nil, fmt.Errorf("packed object hash mismatch: expected %s, computed %s", expected, computed)
	}
	return kind, entry.Data, nil
}

func (s *Store) openPack(idxPath string) (*PackIndex, *PackFile, error) {
	idxData, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read index: %w", err)
	}
	idx, err := ReadPackIndex(idxData, s.algo)
	if err != nil {
		return nil, nil, fmt.Errorf("parse index: %w", err)
	}

	packPath := packPathForIndex(idxPath)
	packData, err := os.ReadFile(packPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read pack: %w", err)
	}
	pf, err := ReadPack(packData, s.algo)
	if err != nil {
		return nil, nil, fmt.Errorf("parse pack: %w", err)
	}
	if pf.Checksum != idx.PackChecksum {
		return nil, nil, fmt.Errorf("checksum mismatch between idx (%s) and pack (%s)", idx.PackChecksum, pf.Checksum)
	}
	return idx, pf, nil
}

func (s *Store) packedHashSet() (map[Hash]struct{}, error) {
	idxPaths, err := s.listPackIndexPaths()
	if err != nil {
		return nil, err
	}

	out := make(map[Hash]struct{})
	for _, idxPath := range idxPaths {
		if _, err := os.Stat(packPathForIndex(idxPath)); err != nil {
			return nil, fmt.Errorf("read pack for index %s: %w", filepath.Base(idxPath), err)
		}

		idxData, err := os.ReadFile(idxPath)
		if err != nil {
			return nil, fmt.Errorf("read pack index %s: %w", filepath.Base(idxPath), err)
		}
		idx, err := ReadPackIndex(idxData, s.algo)
		if err != nil {
			return nil, fmt.Errorf("parse pack index %s: %w", filepath.Base(idxPath), err)
		}
		for _, entry := range idx.Entries() {
			out[entry.Hash] = struct{}{}
		}
	}
	return out, nil
}

func (s *Store) listPackIndexPaths() ([]string, error) {
	packDir := filepath.Join(s.root, "objects", "pack")
	entries, err := os.ReadDir(packDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pack dir: %w", err)
	}

	idxPaths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".idx") {
			continue
		}
		idxPaths = append(idxPaths, filepath.Join(packDir, entry.Name()))
	}
	sort.Strings(idxPaths)
	return idxPaths, nil
}

func (s *Store) listLooseHashes() ([]Hash, error) {
	objectsDir := filepath.Join(s.root, "objects")
	fanoutDirs, err := os.ReadDir(objectsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read objects dir: %w", err)
	}

	suffixLen := s.algo.HexLen() - 2
	hashes := make([]Hash, 0)
	for _, fanoutDir := range fanoutDirs {
		if !fanoutDir.IsDir() {
			continue
		}
		prefix := fanoutDir.Name()
		if prefix == "pack" || !isHexComponent(prefix, 2) {
			continue
		}

		objectEntries, err := os.ReadDir(filepath.Join(objectsDir, prefix))
		if err != nil {
			return nil, fmt.Errorf("read objects fanout %s: %w", prefix, err)
		}
		for _, objectEntry := range objectEntries {
			if objectEntry.IsDir() {
				continue
			}
			suffix := objectEntry.Name()
			if !isHexComponent(suffix, suffixLen) {
				continue
			}
			hashes = append(hashes, Hash(prefix+suffix))
		}
	}

	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	return hashes, nil
}

func isHexComponent(s string, expectedLen int) bool {
	if len(s) != expectedLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func packPathForIndex(idxPath string) string {
	return strings.TrimSuffix(idxPath, ".idx") + ".pack"
}
