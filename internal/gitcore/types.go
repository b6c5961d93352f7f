package gitcore

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Hash represents a Git object hash.
type Hash string

// NewHash creates a Hash from a hexadecimal string, validating its format.
func NewHash(s string) (Hash, error) {
	if len(s) != 40 {
		return "", fmt.Errorf("invalid hash length: %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid hash: %w", err)
	}
	return Hash(strings.ToLower(s)), nil
}

// NewHashFromBytes creates a Hash from a 20-byte array.
func NewHashFromBytes(b [20]byte) (Hash, error) {
	return NewHash(hex.EncodeToString(b[:]))
}

// IsValid checks if the hash has a valid format (40 hex characters for SHA-1).
func (h Hash) IsValid() bool {
	if len(string(h)) != 40 {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

// Short returns the abbreviated form git prints by default.
func (h Hash) Short() string {
	if len(h) < 7 {
		return string(h)
	}
	return string(h[:7])
}

// ObjectType denotes the type of a Git object (e.g., commit, tag).
// Values match the type field of pack entries.
type ObjectType int

const (
	NoneObject   ObjectType = 0
	CommitObject ObjectType = 1
	TreeObject   ObjectType = 2
	BlobObject   ObjectType = 3
	TagObject    ObjectType = 4
)

func StrToObjectType(s string) ObjectType {
	switch s {
	case "commit":
		return CommitObject
	case "tree":
		return TreeObject
	case "blob":
		return BlobObject
	case "tag":
		return TagObject
	default:
		return NoneObject
	}
}

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	default:
		return "none"
	}
}

// Commit represents a Git commit object with its metadata and relationships.
type Commit struct {
	ID        Hash
	Tree      Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	Message   string
}

// ShortID returns the abbreviated commit id.
func (c *Commit) ShortID() string {
	return c.ID.Short()
}

// Summary returns the first paragraph of the message with line breaks folded
// into single spaces, the way git shortens a message for one-line display.
func (c *Commit) Summary() string {
	msg := strings.TrimLeft(c.Message, "\n")
	if i := strings.Index(msg, "\n\n"); i >= 0 {
		msg = msg[:i]
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(msg, "\n", " ")), " ")
}

// When returns the commit timestamp.
func (c *Commit) When() time.Time {
	return c.Committer.When
}

// Tag represents an annotated Git tag with metadata and a message.
type Tag struct {
	ID      Hash
	Object  Hash
	ObjType ObjectType
	Name    string
	Tagger  Signature
	Message string
}

// Blob is the content of a file at some revision. Data is shared with the
// repository's object cache and must be treated as read-only.
type Blob struct {
	ID   Hash
	Data []byte
}

// Size returns the blob size in bytes.
func (b *Blob) Size() int {
	return len(b.Data)
}

// Signature represents a Git author or committer signature with name, email, and timestamp.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// NewSignature parses a signature line in the format "Name <email> timestamp tz".
func NewSignature(signLine string) (Signature, error) {
	lt := strings.IndexByte(signLine, '<')
	gt := strings.LastIndexByte(signLine, '>')
	if lt < 0 || gt < lt {
		return Signature{}, fmt.Errorf("invalid signature line: %q", signLine)
	}

	name := strings.TrimSpace(signLine[:lt])
	email := strings.TrimSpace(signLine[lt+1 : gt])

	fields := strings.Fields(signLine[gt+1:])
	if len(fields) < 1 {
		return Signature{}, fmt.Errorf("invalid signature line: %q", signLine)
	}
	unixTime, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid timestamp in signature %q: %w", signLine, err)
	}

	when := time.Unix(unixTime, 0)
	if len(fields) > 1 {
		if loc, ok := parseTimezone(fields[1]); ok {
			when = when.In(loc)
		}
	}

	return Signature{
		Name:  name,
		Email: email,
		When:  when,
	}, nil
}

// parseTimezone turns "+0130" into a fixed zone.
func parseTimezone(tz string) (*time.Location, bool) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return nil, false
	}
	hours, err1 := strconv.Atoi(tz[1:3])
	minutes, err2 := strconv.Atoi(tz[3:5])
	if err1 != nil || err2 != nil {
		return nil, false
	}
	offset := hours*3600 + minutes*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset), true
}

// PackIndex represents a Git pack index file that maps object hashes to their locations within pack files.
type PackIndex struct {
	path       string
	packPath   string
	version    uint32
	numObjects uint32
	fanout     [256]uint32
	offsets    map[Hash]int64
}

// FindObject looks up the offset of an object in the pack file by its hash.
// Returns the offset and true if found, otherwise returns 0 and false.
func (p *PackIndex) FindObject(id Hash) (int64, bool) {
	offset, found := p.offsets[id]
	return offset, found
}

// PackFile returns the path to the pack file associated with this index.
func (p *PackIndex) PackFile() string {
	return p.packPath
}
