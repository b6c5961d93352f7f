package gitcore

import (
	"crypto/sha1"
	"fmt"
	"os"
)

// HashObject computes the id git assigns to an object of the given type.
func HashObject(typ ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", typ, len(data))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(data)

	var sum [20]byte
	copy(sum[:], h.Sum(nil))
	hash, _ := NewHashFromBytes(sum)
	return hash
}

// HashFile computes the blob id of a file in the working tree. Symlinks hash
// their target, as git stores them.
func HashFile(path string) (Hash, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return "", err
		}
		return HashObject(BlobObject, []byte(target)), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashObject(BlobObject, content), nil
}
