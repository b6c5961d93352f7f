package gitcore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zlib"
)

var errObjectNotInPack = errors.New("object not found in any pack")

// Pack entry types 6 and 7 are deltas against another object.
const (
	packOfsDelta = 6
	packRefDelta = 7
)

// maxDeltaChain bounds delta resolution against corrupted packs.
const maxDeltaChain = 10000

// loadPackIndices scans the objects/pack directory and loads all pack index files.
func (r *Repository) loadPackIndices() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	packDir := filepath.Join(r.commonDir, "objects", "pack")
	if _, err := os.Stat(packDir); errors.Is(err, fs.ErrNotExist) {
		// No packs yet, this is ok.
		return nil
	} else if err != nil {
		return err
	}

	entries, err := os.ReadDir(packDir)
	if err != nil {
		return fmt.Errorf("failed to read pack directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".idx") {
			continue
		}

		idxPath := filepath.Join(packDir, entry.Name())
		idx, err := loadPackIndex(idxPath)
		if err != nil {
			// Log error but continue with other indices
			r.log.Warn("failed to load pack index", "index", entry.Name(), "error", err)
			continue
		}

		r.packIndices = append(r.packIndices, idx)
	}

	return nil
}

// loadPackIndex loads a single pack index file, detecting its version automatically.
func loadPackIndex(idxPath string) (*PackIndex, error) {
	content, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, err
	}
	if len(content) < 4 {
		return nil, fmt.Errorf("index file too short")
	}

	packPath := strings.TrimSuffix(idxPath, ".idx") + ".pack"
	if bytes.Equal(content[:4], []byte{0xFF, 0x74, 0x4F, 0x63}) {
		return loadPackIndexV2(bytes.NewReader(content[4:]), idxPath, packPath)
	}
	return loadPackIndexV1(bytes.NewReader(content), idxPath, packPath)
}

// loadPackIndexV2 loads a version 2 pack index file, positioned after the magic.
func loadPackIndexV2(file io.Reader, idxPath, packPath string) (*PackIndex, error) {
	idx := &PackIndex{
		path:     idxPath,
		packPath: packPath,
		version:  2,
		offsets:  make(map[Hash]int64),
	}

	var version uint32
	if err := binary.Read(file, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("failed to read version: %w", err)
	}
	if version != 2 {
		return nil, fmt.Errorf("expected version 2, got %d", version)
	}

	if err := binary.Read(file, binary.BigEndian, &idx.fanout); err != nil {
		return nil, fmt.Errorf("failed to read fanout: %w", err)
	}
	idx.numObjects = idx.fanout[255]

	objectNames := make([][20]byte, idx.numObjects)
	for i := range objectNames {
		if _, err := io.ReadFull(file, objectNames[i][:]); err != nil {
			return nil, fmt.Errorf("failed to read object name %d: %w", i, err)
		}
	}

	// CRC32 table, one entry per object.
	if _, err := io.CopyN(io.Discard, file, int64(idx.numObjects)*4); err != nil {
		return nil, fmt.Errorf("failed to skip CRCs: %w", err)
	}

	offsets := make([]uint32, idx.numObjects)
	if err := binary.Read(file, binary.BigEndian, offsets); err != nil {
		return nil, fmt.Errorf("failed to read offsets: %w", err)
	}

	numLarge := 0
	for _, offset := range offsets {
		if offset&0x80000000 != 0 {
			numLarge++
		}
	}
	largeOffsets := make([]uint64, numLarge)
	if err := binary.Read(file, binary.BigEndian, largeOffsets); err != nil {
		return nil, fmt.Errorf("failed to read large offsets: %w", err)
	}

	for i, name := range objectNames {
		hash, err := NewHashFromBytes(name)
		if err != nil {
			return nil, err
		}

		offset := offsets[i]
		if offset&0x80000000 != 0 {
			largeOffsetIdx := offset & 0x7fffffff
			if largeOffsetIdx >= uint32(len(largeOffsets)) {
				continue
			}
			idx.offsets[hash] = int64(largeOffsets[largeOffsetIdx])
		} else {
			idx.offsets[hash] = int64(offset)
		}
	}

	return idx, nil
}

// loadPackIndexV1 loads a version 1 pack index file.
func loadPackIndexV1(file io.Reader, idxPath, packPath string) (*PackIndex, error) {
	idx := &PackIndex{
		path:     idxPath,
		packPath: packPath,
		version:  1,
		offsets:  make(map[Hash]int64),
	}

	if err := binary.Read(file, binary.BigEndian, &idx.fanout); err != nil {
		return nil, fmt.Errorf("failed to read fanout: %w", err)
	}
	idx.numObjects = idx.fanout[255]

	for i := uint32(0); i < idx.numObjects; i++ {
		var offset uint32
		if err := binary.Read(file, binary.BigEndian, &offset); err != nil {
			return nil, fmt.Errorf("failed to read offset %d: %w", i, err)
		}

		var nameBytes [20]byte
		if _, err := io.ReadFull(file, nameBytes[:]); err != nil {
			return nil, fmt.Errorf("failed to read object name %d: %w", i, err)
		}

		hash, err := NewHashFromBytes(nameBytes)
		if err != nil {
			return nil, err
		}
		idx.offsets[hash] = int64(offset)
	}

	return idx, nil
}

// readPackedObject finds id in the loaded pack indices and reads it.
func (r *Repository) readPackedObject(id Hash) (*rawObject, error) {
	r.mu.RLock()
	indices := r.packIndices
	r.mu.RUnlock()

	for _, idx := range indices {
		offset, ok := idx.FindObject(id)
		if !ok {
			continue
		}

		file, err := os.Open(idx.PackFile())
		if err != nil {
			return nil, fmt.Errorf("opening pack for %s: %w", id.Short(), err)
		}
		data, objType, err := r.readPackObject(file, offset, 0)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s from %s: %w", id.Short(), filepath.Base(idx.PackFile()), err)
		}
		return &rawObject{typ: ObjectType(objType), data: data}, nil
	}

	return nil, errObjectNotInPack
}

// readPackObject reads the object stored at offset in a pack file.
// Returns the decompressed object data and its type.
func (r *Repository) readPackObject(file io.ReaderAt, offset int64, depth int) (data []byte, objectType byte, err error) {
	if depth > maxDeltaChain {
		return nil, 0, fmt.Errorf("delta chain too long at offset %d", offset)
	}

	// bufio.Reader is an io.ByteReader, so the inflater never reads past the
	// end of the compressed stream.
	src := bufio.NewReader(io.NewSectionReader(file, offset, math.MaxInt64-offset))

	objType, size, err := readPackObjectHeader(src)
	if err != nil {
		return nil, 0, err
	}

	switch objType {
	case 1, 2, 3, 4:
		data, err := readCompressedObject(src, size)
		return data, objType, err
	case packOfsDelta:
		return r.readOfsDelta(file, src, offset, size, depth)
	case packRefDelta:
		return r.readRefDelta(src, size)
	default:
		return nil, 0, fmt.Errorf("unsupported object type: %d", objType)
	}
}

// readPackObjectHeader reads the variable-length header from a pack object.
// Returns object type and uncompressed size.
func readPackObjectHeader(src io.ByteReader) (objectType byte, size int64, err error) {
	b, err := src.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	objectType = (b >> 4) & 0x07
	size = int64(b & 0x0F)
	shift := 4

	for b&0x80 != 0 {
		if b, err = src.ReadByte(); err != nil {
			return 0, 0, err
		}
		size |= int64(b&0x7F) << shift
		shift += 7
	}

	return objectType, size, nil
}

// readCompressedObject reads and decompresses zlib-compressed data at the current position.
func readCompressedObject(src io.Reader, expectedSize int64) ([]byte, error) {
	zr, err := zlib.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create zlib reader: %w", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	buf.Grow(int(expectedSize))
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}
	data := buf.Bytes()

	if int64(len(data)) != expectedSize {
		return nil, fmt.Errorf("size mismatch: expected %d, got %d", expectedSize, len(data))
	}
	return data, nil
}

// readOfsDelta reads an offset delta object whose base lives earlier in the same pack.
func (r *Repository) readOfsDelta(file io.ReaderAt, src *bufio.Reader, offset, size int64, depth int) ([]byte, byte, error) {
	b, err := src.ReadByte()
	if err != nil {
		return nil, 0, err
	}

	distance := int64(b & 0x7F)
	for b&0x80 != 0 {
		if b, err = src.ReadByte(); err != nil {
			return nil, 0, err
		}
		distance = ((distance + 1) << 7) | int64(b&0x7F)
	}

	basePos := offset - distance
	if distance <= 0 || basePos < 0 {
		return nil, 0, fmt.Errorf("invalid delta base offset %d at %d", distance, offset)
	}

	deltaData, err := readCompressedObject(src, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read delta data: %w", err)
	}

	baseData, baseType, err := r.readPackObject(file, basePos, depth+1)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read base object at %d: %w", basePos, err)
	}

	result, err := r.applyDelta(baseData, deltaData)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to apply delta: %w", err)
	}

	return result, baseType, nil
}

// readRefDelta reads a reference delta object.
func (r *Repository) readRefDelta(src *bufio.Reader, size int64) ([]byte, byte, error) {
	var baseHash [20]byte
	if _, err := io.ReadFull(src, baseHash[:]); err != nil {
		return nil, 0, fmt.Errorf("failed to read base hash: %w", err)
	}
	baseID, err := NewHashFromBytes(baseHash)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid hash: %v", baseHash)
	}

	deltaData, err := readCompressedObject(src, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read delta data: %w", err)
	}

	base, err := r.readObject(baseID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read base object %s: %w", baseID.Short(), err)
	}

	result, err := r.applyDelta(base.data, deltaData)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to apply delta: %w", err)
	}

	return result, byte(base.typ), nil
}

// applyDelta applies a delta to a base object.
func (r *Repository) applyDelta(base []byte, delta []byte) ([]byte, error) {
	src := bytes.NewReader(delta)

	srcSize, err := r.readVarInt(src)
	if err != nil {
		return nil, err
	}
	if srcSize != int64(len(base)) {
		return nil, fmt.Errorf("base size mismatch: expected %d, got %d", srcSize, len(base))
	}

	targetSize, err := r.readVarInt(src)
	if err != nil {
		return nil, err
	}

	result := make([]byte, 0, targetSize)

	for {
		cmd, err := src.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch {
		case cmd&0x80 != 0:
			var offset, size int64

			// Bits 0-3 select offset bytes, bits 4-6 size bytes, little endian.
			for i := uint(0); i < 4; i++ {
				if cmd&(1<<i) != 0 {
					b, err := src.ReadByte()
					if err != nil {
						return nil, fmt.Errorf("truncated copy offset: %w", err)
					}
					offset |= int64(b) << (8 * i)
				}
			}
			for i := uint(0); i < 3; i++ {
				if cmd&(0x10<<i) != 0 {
					b, err := src.ReadByte()
					if err != nil {
						return nil, fmt.Errorf("truncated copy size: %w", err)
					}
					size |= int64(b) << (8 * i)
				}
			}

			if size == 0 {
				size = 0x10000
			}

			if offset+size > int64(len(base)) {
				return nil, fmt.Errorf("copy exceeds base size")
			}
			result = append(result, base[offset:offset+size]...)

		case cmd != 0:
			data := make([]byte, int(cmd&0x7f))
			if _, err := io.ReadFull(src, data); err != nil {
				return nil, err
			}
			result = append(result, data...)

		default:
			return nil, fmt.Errorf("invalid delta command: 0")
		}
	}

	if int64(len(result)) != targetSize {
		return nil, fmt.Errorf("result size mismatch: expected %d, got %d", targetSize, len(result))
	}

	return result, nil
}

// readVarInt reads a variable-length integer
func (r *Repository) readVarInt(src *bytes.Reader) (int64, error) {
	var result int64
	var shift uint

	for {
		b, err := src.ReadByte()
		if err != nil {
			return 0, err
		}

		result |= int64(b&0x7f) << shift
		shift += 7

		if b&0x80 == 0 {
			break
		}
	}

	return result, nil
}
