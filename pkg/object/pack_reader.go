package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackEntry is one decoded object entry in a pack stream. Delta entries are
// resolved during parsing, so Type is always a concrete object type and Data
// holds the full object body.
type PackEntry struct {
	Type   PackEntryType
	Size   uint64
	Offset uint64 // byte offset of the entry header within the pack
	Data   []byte
}

// PackFile is the decoded content of a full pack stream.
type PackFile struct {
	Header   PackHeader
	Entries  []PackEntry
	Checksum Hash
}

// FindByOffset returns the entry whose header starts at offset.
func (pf *PackFile) FindByOffset(offset uint64) (PackEntry, bool) {
	for _, entry := range pf.Entries {
		if entry.Offset == offset {
			return entry, true
		}
	}
	return PackEntry{}, false
}

// ReadPack parses a full pack byte slice, verifies the trailer checksum, and
// returns decoded entries with OFS_DELTA payloads applied to their bases.
func ReadPack(data []byte, algo Algo) (*PackFile, error) {
	trailerLen := algo.Size()
	if len(data) < packHeaderSize+trailerLen {
		return nil, fmt.Errorf("pack too short: %d", len(data))
	}

	payload := data[:len(data)-trailerLen]
	trailer := data[len(data)-trailerLen:]

	hasher := algo.New()
	hasher.Write(payload)
	if !bytes.Equal(hasher.Sum(nil), trailer) {
		return nil, fmt.Errorf("pack checksum mismatch")
	}

	header, err := UnmarshalPackHeader(payload[:packHeaderSize])
	if err != nil {
		return nil, err
	}

	offset := packHeaderSize
	entries := make([]PackEntry, 0, header.NumObjects)
	for i := uint32(0); i < header.NumObjects; i++ {
		entryOffset := uint64(offset)
		entryType, size, n, err := decodePackEntryHeader(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		offset += n

		var baseOffset uint64
		if entryType == PackOfsDelta {
			distance, n, err := decodeOfsDeltaDistance(payload[offset:])
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			offset += n
			if distance > entryOffset {
				return nil, fmt.Errorf("entry %d: ofs-delta base before pack start", i)
			}
			baseOffset = entryOffset - distance
		}

		if offset >= len(payload) {
			return nil, fmt.Errorf("entry %d: missing compressed payload", i)
		}
		raw, consumed, err := decompressPackPayload(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		offset += consumed
		if uint64(len(raw)) != size {
			return nil, fmt.Errorf("entry %d: size mismatch header=%d decoded=%d", i, size, len(raw))
		}

		if entryType == PackOfsDelta {
			base, err := entryAtOffset(entries, baseOffset)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			resolved, err := applyDelta(base.Data, raw)
			if err != nil {
				return nil, fmt.Errorf("entry %d: apply delta: %w", i, err)
			}
			entries = append(entries, PackEntry{
				Type:   base.Type,
				Size:   uint64(len(resolved)),
				Offset: entryOffset,
				Data:   resolved,
			})
			continue
		}

		if _, ok := kindForPackType(entryType); !ok {
			return nil, fmt.Errorf("entry %d: unsupported pack entry type %d", i, entryType)
		}
		entries = append(entries, PackEntry{
			Type:   entryType,
			Size:   size,
			Offset: entryOffset,
			Data:   raw,
		})
	}

	if offset != len(payload) {
		return nil, fmt.Errorf("pack has trailing undecoded bytes: %d", len(payload)-offset)
	}

	return &PackFile{
		Header:   *header,
		Entries:  entries,
		Checksum: Hash(hex.EncodeToString(trailer)),
	}, nil
}

// ReadPackFromReader reads a complete pack stream from r and delegates to
// ReadPack for decode and verification.
func ReadPackFromReader(r io.Reader, algo Algo) (*PackFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack stream: %w", err)
	}
	return ReadPack(data, algo)
}

// decompressPackPayload inflates one zlib stream from the head of data and
// reports how many compressed bytes it consumed.
func decompressPackPayload(data []byte) ([]byte, int, error) {
	sub := bytes.NewReader(data)
	zr, err := zlib.NewReader(sub)
	if err != nil {
		return nil, 0, fmt.Errorf("zlib reader: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return nil, 0, fmt.Errorf("decompress: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, 0, fmt.Errorf("close zlib stream: %w", err)
	}
	return raw, len(data) - sub.Len(), nil
}

func entryAtOffset(entries []PackEntry, offset uint64) (PackEntry, error) {
	for _, entry := range entries {
		if entry.Offset == offset {
			return entry, nil
		}
	}
	return PackEntry{}, fmt.Errorf("no pack entry at base offset %d", offset)
}
