package gitcore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

type Index struct {
	Version int
	Entries []IndexEntry
}

type IndexEntry struct {
	Path     string
	StatInfo FileStat
}

// ID returns the blob id recorded for the entry.
func (e IndexEntry) ID() Hash {
	hash, _ := NewHashFromBytes(e.StatInfo.Hash)
	return hash
}

// Stage returns the merge stage, non-zero while a conflict is unresolved.
func (e IndexEntry) Stage() int {
	return int(e.StatInfo.Flags>>12) & 0x3
}

type FileStat struct {
	MTime           time.Time // time.Time is constructed from two
	CTime           time.Time // uint32s via time.Unix(sec, nano)
	Device, Inode   uint32
	Mode            uint32
	UserID, GroupID uint32
	Size            uint32
	Hash            [20]byte
	Flags           uint16
}

// Index flag bits.
const (
	indexFlagExtended = 0x4000
	indexNameMask     = 0x0FFF
)

// GetIndex reads the staging area. A repository without an index file has an
// empty one.
func (r *Repository) GetIndex() (*Index, error) {
	entries, version, err := r.parseIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	return &Index{Version: version, Entries: entries}, nil
}

// See: https://git-scm.com/docs/index-format#_the_git_index_file_has_the_following_format
func (r *Repository) parseIndex() ([]IndexEntry, int, error) {
	content, err := os.ReadFile(filepath.Join(r.gitDir, "index"))
	if errors.Is(err, fs.ErrNotExist) {
		return []IndexEntry{}, 0, nil
	} else if err != nil {
		return nil, 0, err
	}
	return parseIndexData(content)
}

func parseIndexData(content []byte) ([]IndexEntry, int, error) {
	index := bytes.NewReader(content)

	// First a 12-byte header comprising:
	//  4-byte signature { 'D', 'I', 'R', 'C' }("dircache")
	//  4-byte version number (currently 2, 3, or 4)
	//  32-bit number of index entries
	header := make([]byte, 12)
	if _, err := io.ReadFull(index, header); err != nil {
		return nil, 0, fmt.Errorf("failed to read index header: %w", err)
	}
	if string(header[0:4]) != "DIRC" {
		return nil, 0, fmt.Errorf("invalid index file signature: %s", string(header[0:4]))
	}

	version := binary.BigEndian.Uint32(header[4:8])
	if version != 2 && version != 3 && version != 4 {
		return nil, 0, fmt.Errorf("unsupported index version: %d", version)
	}

	numEntries := binary.BigEndian.Uint32(header[8:12])
	entries := make([]IndexEntry, 0, numEntries)

	var previous string
	for i := uint32(0); i < numEntries; i++ {
		entry, err := parseIndexEntry(index, int(version), previous)
		if err != nil {
			// One bad read can corrupt every subsequent read, hence early return
			return nil, 0, fmt.Errorf("failed to read entry %d: %w", i, err)
		}
		entries = append(entries, entry)
		previous = entry.Path
	}

	// Extensions and the trailing checksum follow; nothing here needs them.
	return entries, int(version), nil
}

// See: https://git-scm.com/docs/index-format#_index_entry
func parseIndexEntry(index *bytes.Reader, version int, previous string) (IndexEntry, error) {
	var entry IndexEntry

	statInfo, err := parseFileStat(index)
	if err != nil {
		return entry, fmt.Errorf("parsing file stat: %w", err)
	}
	entry.StatInfo = statInfo
	entryLen := 62

	if version >= 3 && statInfo.Flags&indexFlagExtended != 0 {
		var extended uint16
		if err := binary.Read(index, binary.BigEndian, &extended); err != nil {
			return entry, fmt.Errorf("reading extended flags: %w", err)
		}
		entryLen += 2
	}

	if version == 4 {
		// Path is prefix-compressed against the previous entry, no padding.
		strip, err := binary.ReadUvarint(index)
		if err != nil {
			return entry, fmt.Errorf("reading path prefix length: %w", err)
		}
		if int(strip) > len(previous) {
			return entry, fmt.Errorf("path prefix length %d exceeds previous path", strip)
		}
		suffix, err := readCString(index)
		if err != nil {
			return entry, err
		}
		entry.Path = previous[:len(previous)-int(strip)] + suffix
		return entry, nil
	}

	pathLen := int(statInfo.Flags & indexNameMask)
	var pathBuf []byte
	if pathLen < indexNameMask {
		pathBuf = make([]byte, pathLen+1)
		if n, err := io.ReadFull(index, pathBuf); err != nil {
			return entry, fmt.Errorf("reading path of length %d (read %d): %w", pathLen, n, err)
		}
		pathBuf = pathBuf[:pathLen]
	} else {
		// Names of 0xFFF bytes or more are only NUL terminated.
		name, err := readCString(index)
		if err != nil {
			return entry, err
		}
		pathBuf = []byte(name)
		pathLen = len(pathBuf)
	}
	entry.Path = string(pathBuf)

	totalRead := entryLen + pathLen + 1
	if remainder := totalRead % 8; remainder != 0 {
		if _, err := index.Seek(int64(8-remainder), io.SeekCurrent); err != nil {
			return entry, fmt.Errorf("skipping padding: %w", err)
		}
	}

	return entry, nil
}

func readCString(index *bytes.Reader) (string, error) {
	var buf bytes.Buffer
	for {
		b, err := index.ReadByte()
		if err != nil {
			return "", fmt.Errorf("reading path: %w", err)
		}
		if b == 0 {
			return buf.String(), nil
		}
		buf.WriteByte(b)
	}
}

func parseFileStat(index io.Reader) (FileStat, error) {
	var stat FileStat

	var raw struct {
		CTimeSec, CTimeNano uint32
		MTimeSec, MTimeNano uint32
		Device, Inode       uint32
		Mode                uint32
		UserID, GroupID     uint32
		Size                uint32
		Hash                [20]byte
		Flags               uint16
	}
	if err := binary.Read(index, binary.BigEndian, &raw); err != nil {
		return stat, fmt.Errorf("reading fixed data: %w", err)
	}

	stat.CTime = time.Unix(int64(raw.CTimeSec), int64(raw.CTimeNano))
	stat.MTime = time.Unix(int64(raw.MTimeSec), int64(raw.MTimeNano))
	stat.Device, stat.Inode = raw.Device, raw.Inode
	stat.Mode = raw.Mode
	stat.UserID, stat.GroupID = raw.UserID, raw.GroupID
	stat.Size = raw.Size
	stat.Hash = raw.Hash
	stat.Flags = raw.Flags

	return stat, nil
}
