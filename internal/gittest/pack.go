package gittest

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zlib"

	"github.com/rybkr/gitpast/internal/gitcore"
)

// PackObject is one entry of a pack written by Pack. With Base >= 0 the
// entry is stored as an offset delta against the earlier entry at that index.
type PackObject struct {
	Type gitcore.ObjectType
	Data []byte
	Base int
}

// Whole is a PackObject stored without a delta.
func Whole(typ gitcore.ObjectType, data string) PackObject {
	return PackObject{Type: typ, Data: []byte(data), Base: -1}
}

// Pack writes a version 2 pack and index holding objects and returns their
// ids in order.
func (r *Repo) Pack(objects ...PackObject) []gitcore.Hash {
	r.t.Helper()

	var pack bytes.Buffer
	pack.WriteString("PACK")
	binary.Write(&pack, binary.BigEndian, uint32(2))
	binary.Write(&pack, binary.BigEndian, uint32(len(objects)))

	ids := make([]gitcore.Hash, len(objects))
	offsets := make([]int64, len(objects))
	for i, obj := range objects {
		ids[i] = gitcore.HashObject(obj.Type, obj.Data)
		offsets[i] = int64(pack.Len())

		payload := obj.Data
		if obj.Base >= 0 {
			if obj.Base >= i {
				r.t.Fatalf("pack entry %d: base %d is not an earlier entry", i, obj.Base)
			}
			payload = delta(objects[obj.Base].Data, obj.Data)
			writeEntryHeader(&pack, 6, len(payload))
			pack.Write(ofsDistance(offsets[i] - offsets[obj.Base]))
		} else {
			writeEntryHeader(&pack, byte(obj.Type), len(payload))
		}

		zw := zlib.NewWriter(&pack)
		zw.Write(payload)
		if err := zw.Close(); err != nil {
			r.t.Fatalf("compress pack entry %d failed: %v", i, err)
		}
	}
	packSum := sha1.Sum(pack.Bytes())
	pack.Write(packSum[:])

	order := make([]int, len(objects))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return ids[order[a]] < ids[order[b]] })

	var idx bytes.Buffer
	idx.Write([]byte{0xff, 't', 'O', 'c'})
	binary.Write(&idx, binary.BigEndian, uint32(2))
	var fanout [256]uint32
	for _, i := range order {
		first := rawHash(r.t, ids[i])[0]
		for b := int(first); b < 256; b++ {
			fanout[b]++
		}
	}
	binary.Write(&idx, binary.BigEndian, fanout)
	for _, i := range order {
		idx.Write(rawHash(r.t, ids[i]))
	}
	for range order {
		binary.Write(&idx, binary.BigEndian, uint32(0))
	}
	for _, i := range order {
		binary.Write(&idx, binary.BigEndian, uint32(offsets[i]))
	}
	idx.Write(packSum[:])
	idxSum := sha1.Sum(idx.Bytes())
	idx.Write(idxSum[:])

	dir := filepath.Join(r.GitDir, "objects", "pack")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.t.Fatalf("mkdir pack dir failed: %v", err)
	}
	base := filepath.Join(dir, fmt.Sprintf("pack-%x", packSum))
	if err := os.WriteFile(base+".pack", pack.Bytes(), 0o444); err != nil {
		r.t.Fatalf("write pack failed: %v", err)
	}
	if err := os.WriteFile(base+".idx", idx.Bytes(), 0o444); err != nil {
		r.t.Fatalf("write pack index failed: %v", err)
	}
	return ids
}

func writeEntryHeader(w *bytes.Buffer, typ byte, size int) {
	b := typ<<4 | byte(size&0x0f)
	size >>= 4
	for size > 0 {
		w.WriteByte(b | 0x80)
		b = byte(size & 0x7f)
		size >>= 7
	}
	w.WriteByte(b)
}

// ofsDistance encodes the backwards distance to a delta's base.
func ofsDistance(d int64) []byte {
	out := []byte{byte(d & 0x7f)}
	for d >>= 7; d > 0; d >>= 7 {
		d--
		out = append([]byte{byte(0x80 | d&0x7f)}, out...)
	}
	return out
}

// delta copies the longest common prefix of base and target and inserts
// the rest literally.
func delta(base, target []byte) []byte {
	var out bytes.Buffer
	out.Write(sizeVarint(len(base)))
	out.Write(sizeVarint(len(target)))

	prefix := 0
	for prefix < len(base) && prefix < len(target) && prefix < 0xffff && base[prefix] == target[prefix] {
		prefix++
	}
	if prefix > 0 {
		cmd := byte(0x80 | 0x10)
		sizeBytes := []byte{byte(prefix)}
		if prefix > 0xff {
			cmd |= 0x20
			sizeBytes = append(sizeBytes, byte(prefix>>8))
		}
		out.WriteByte(cmd)
		out.Write(sizeBytes)
	}

	rest := target[prefix:]
	for len(rest) > 0 {
		n := min(len(rest), 0x7f)
		out.WriteByte(byte(n))
		out.Write(rest[:n])
		rest = rest[n:]
	}
	return out.Bytes()
}

func sizeVarint(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
