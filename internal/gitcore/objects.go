package gitcore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/rybkr/gitpast/internal/vcserr"
)

// readObject returns the inflated body of an object, looking in the loose
// object store first and the pack files second. Bodies are cached for the
// lifetime of the repository handle.
func (r *Repository) readObject(id Hash) (*rawObject, error) {
	r.mu.RLock()
	obj, ok := r.objects[id]
	r.mu.RUnlock()
	if ok {
		return obj, nil
	}

	obj, err := r.readLooseObject(id)
	if errors.Is(err, fs.ErrNotExist) {
		obj, err = r.readPackedObject(id)
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.objects[id] = obj
	r.mu.Unlock()
	return obj, nil
}

func (r *Repository) looseObjectPath(id Hash) string {
	return filepath.Join(r.commonDir, "objects", string(id[:2]), string(id[2:]))
}

// readLooseObject inflates objects/xx/yyyy and splits off the header.
func (r *Repository) readLooseObject(id Hash) (*rawObject, error) {
	if !id.IsValid() {
		return nil, fmt.Errorf("invalid object id %q", id)
	}

	file, err := os.Open(r.looseObjectPath(id))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	zr, err := zlib.NewReader(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id.Short(), err)
	}
	defer zr.Close()

	content, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id.Short(), err)
	}

	return parseLooseObject(content)
}

// parseLooseObject splits "<type> <size>\x00<body>".
func parseLooseObject(content []byte) (*rawObject, error) {
	nullIdx := bytes.IndexByte(content, 0)
	if nullIdx == -1 {
		return nil, fmt.Errorf("invalid object format")
	}

	header := string(content[:nullIdx])
	typeName, sizeStr, ok := strings.Cut(header, " ")
	if !ok {
		return nil, fmt.Errorf("invalid object header: %q", header)
	}
	typ := StrToObjectType(typeName)
	if typ == NoneObject {
		return nil, fmt.Errorf("unknown object type: %q", typeName)
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid object size: %q", sizeStr)
	}

	body := content[nullIdx+1:]
	if len(body) != size {
		return nil, fmt.Errorf("size mismatch: expected %d, got %d", size, len(body))
	}
	return &rawObject{typ: typ, data: body}, nil
}

// ObjectType returns the type of the object with the given id.
func (r *Repository) ObjectType(id Hash) (ObjectType, error) {
	obj, err := r.readObject(id)
	if err != nil {
		return NoneObject, r.missing(id, err)
	}
	return obj.typ, nil
}

// missing maps absent objects to NotFound and passes other failures through.
func (r *Repository) missing(id Hash, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, errObjectNotInPack) {
		return vcserr.Wrap(vcserr.NotFound, string(id), err)
	}
	return err
}

// ReadCommit loads and parses a commit object.
func (r *Repository) ReadCommit(id Hash) (*Commit, error) {
	obj, err := r.readObject(id)
	if err != nil {
		return nil, r.missing(id, err)
	}
	if obj.typ != CommitObject {
		return nil, vcserr.Errorf(vcserr.NotACommit, string(id), "%s object is not a commit", obj.typ)
	}
	return r.parseCommitBody(obj.data, id)
}

// ReadTag loads and parses an annotated tag object.
func (r *Repository) ReadTag(id Hash) (*Tag, error) {
	obj, err := r.readObject(id)
	if err != nil {
		return nil, r.missing(id, err)
	}
	if obj.typ != TagObject {
		return nil, fmt.Errorf("%s: %s object is not a tag", id.Short(), obj.typ)
	}
	return r.parseTagBody(obj.data, id)
}

// ReadBlob loads a blob object.
func (r *Repository) ReadBlob(id Hash) (*Blob, error) {
	obj, err := r.readObject(id)
	if err != nil {
		return nil, r.missing(id, err)
	}
	if obj.typ != BlobObject {
		return nil, vcserr.Errorf(vcserr.NotABlob, string(id), "%s object is not a blob", obj.typ)
	}
	return &Blob{ID: id, Data: obj.data}, nil
}

func (r *Repository) parseCommitBody(body []byte, id Hash) (*Commit, error) {
	commit := &Commit{ID: id}

	header, message, _ := bytes.Cut(body, []byte("\n\n"))
	for _, line := range strings.Split(string(header), "\n") {
		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "tree":
			tree, err := NewHash(value)
			if err != nil {
				return nil, fmt.Errorf("commit %s: %w", id.Short(), err)
			}
			commit.Tree = tree
		case "parent":
			parent, err := NewHash(value)
			if err != nil {
				return nil, fmt.Errorf("commit %s: %w", id.Short(), err)
			}
			commit.Parents = append(commit.Parents, parent)
		case "author":
			sig, err := NewSignature(value)
			if err != nil {
				return nil, fmt.Errorf("commit %s author: %w", id.Short(), err)
			}
			commit.Author = sig
		case "committer":
			sig, err := NewSignature(value)
			if err != nil {
				return nil, fmt.Errorf("commit %s committer: %w", id.Short(), err)
			}
			commit.Committer = sig
		}
		// Continuation lines (gpgsig, mergetag) start with a space and are skipped.
	}

	commit.Message = strings.TrimSpace(string(message))
	return commit, nil
}

func (r *Repository) parseTagBody(body []byte, id Hash) (*Tag, error) {
	tag := &Tag{ID: id}

	header, message, _ := bytes.Cut(body, []byte("\n\n"))
	for _, line := range strings.Split(string(header), "\n") {
		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "object":
			object, err := NewHash(value)
			if err != nil {
				return nil, fmt.Errorf("tag %s: %w", id.Short(), err)
			}
			tag.Object = object
		case "type":
			tag.ObjType = StrToObjectType(value)
		case "tag":
			tag.Name = value
		case "tagger":
			sig, err := NewSignature(value)
			if err != nil {
				return nil, fmt.Errorf("tag %s tagger: %w", id.Short(), err)
			}
			tag.Tagger = sig
		}
	}

	tag.Message = strings.TrimSpace(string(message))
	return tag, nil
}
