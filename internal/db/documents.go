package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// ErrInvalidPath is returned for paths that do not address a user document
var ErrInvalidPath = errors.New("invalid document path")

// Store is the dotted-path persistence capability the engine depends on.
// Paths look like "user_<id>" or "user_<id>.a.b"; every write is a
// read-modify-write of the whole user document.
type Store interface {
	Get(ctx context.Context, path string, out interface{}) (bool, error)
	Set(ctx context.Context, path string, value interface{}) error
	Append(ctx context.Context, path string, value interface{}) error
	Update(ctx context.Context, path string, out interface{}, fn func(found bool) (bool, error)) error
	UserIDs(ctx context.Context) ([]string, error)
	Close() error
}

// backend loads and saves whole user documents
type backend interface {
	load(ctx context.Context, userID string) (map[string]interface{}, error)
	save(ctx context.Context, userID string, doc map[string]interface{}) error
	userIDs(ctx context.Context) ([]string, error)
	close() error
}

var pathPattern = regexp.MustCompile(`^user_([^.]+)(?:\.(.+))?$`)

// UserPath builds a document path for a user and optional nested keys
func UserPath(userID string, keys ...string) string {
	if len(keys) == 0 {
		return "user_" + userID
	}
	return "user_" + userID + "." + strings.Join(keys, ".")
}

// parsePath splits "user_<id>.a.b" into the user id and nested keys
func parsePath(path string) (string, []string, error) {
	m := pathPattern.FindStringSubmatch(path)
	if m == nil {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if m[2] == "" {
		return m[1], nil, nil
	}
	return m[1], strings.Split(m[2], "."), nil
}

// Documents implements Store on top of a whole-document backend
type Documents struct {
	backend backend
	locks   sync.Map // userID -> *sync.Mutex
}

func newDocuments(b backend) *Documents {
	return &Documents{backend: b}
}

func (d *Documents) lock(userID string) func() {
	mu, _ := d.locks.LoadOrStore(userID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Get decodes the value at path into out. It reports false when nothing is stored there.
func (d *Documents) Get(ctx context.Context, path string, out interface{}) (bool, error) {
	userID, keys, err := parsePath(path)
	if err != nil {
		return false, err
	}

	doc, err := d.backend.load(ctx, userID)
	if err != nil {
		return false, err
	}
	return lookup(doc, keys, path, out)
}

// Update decodes the value at path into out and calls fn with whether it was
// found. When fn reports a change, out is written back to path. The user's
// document stays locked from the read to the write.
func (d *Documents) Update(ctx context.Context, path string, out interface{}, fn func(found bool) (bool, error)) error {
	userID, keys, err := parsePath(path)
	if err != nil {
		return err
	}

	unlock := d.lock(userID)
	defer unlock()

	doc, err := d.backend.load(ctx, userID)
	if err != nil {
		return err
	}
	found, err := lookup(doc, keys, path, out)
	if err != nil {
		return err
	}

	changed, err := fn(found)
	if err != nil || !changed {
		return err
	}

	norm, err := normalize(out)
	if err != nil {
		return err
	}
	if err := assign(doc, keys, norm); err != nil {
		return err
	}
	return d.backend.save(ctx, userID, doc)
}

// Set replaces the value at path, creating intermediate objects. A bare user
// path merges the value's top-level fields into the document.
func (d *Documents) Set(ctx context.Context, path string, value interface{}) error {
	userID, keys, err := parsePath(path)
	if err != nil {
		return err
	}
	norm, err := normalize(value)
	if err != nil {
		return err
	}

	unlock := d.lock(userID)
	defer unlock()

	doc, err := d.backend.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := assign(doc, keys, norm); err != nil {
		return err
	}
	return d.backend.save(ctx, userID, doc)
}

// Append pushes value onto the array at path, creating it when absent
func (d *Documents) Append(ctx context.Context, path string, value interface{}) error {
	userID, keys, err := parsePath(path)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: cannot append to a document root", ErrInvalidPath)
	}
	norm, err := normalize(value)
	if err != nil {
		return err
	}

	unlock := d.lock(userID)
	defer unlock()

	doc, err := d.backend.load(ctx, userID)
	if err != nil {
		return err
	}

	parent := walkCreate(doc, keys[:len(keys)-1])
	last := keys[len(keys)-1]
	arr, _ := parent[last].([]interface{})
	parent[last] = append(arr, norm)
	return d.backend.save(ctx, userID, doc)
}

// UserIDs lists every persisted user
func (d *Documents) UserIDs(ctx context.Context) ([]string, error) {
	return d.backend.userIDs(ctx)
}

// Close releases the backend
func (d *Documents) Close() error {
	return d.backend.close()
}

// lookup decodes the node at keys into out
func lookup(doc map[string]interface{}, keys []string, path string, out interface{}) (bool, error) {
	var node interface{} = doc
	for _, k := range keys {
		m, ok := node.(map[string]interface{})
		if !ok {
			return false, nil
		}
		if node, ok = m[k]; !ok {
			return false, nil
		}
	}
	if node == nil {
		return false, nil
	}

	raw, err := json.Marshal(node)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// assign stores norm at keys. An empty key list merges norm's fields into the root.
func assign(doc map[string]interface{}, keys []string, norm interface{}) error {
	if len(keys) == 0 {
		fields, ok := norm.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: root value must be an object", ErrInvalidPath)
		}
		for k, v := range fields {
			doc[k] = v
		}
		return nil
	}

	parent := walkCreate(doc, keys[:len(keys)-1])
	parent[keys[len(keys)-1]] = norm
	return nil
}

func walkCreate(doc map[string]interface{}, keys []string) map[string]interface{} {
	ref := doc
	for _, k := range keys {
		next, ok := ref[k].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			ref[k] = next
		}
		ref = next
	}
	return ref
}

// normalize round-trips a Go value through JSON so documents only hold plain JSON types
func normalize(value interface{}) (interface{}, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeDocument(raw []byte) (map[string]interface{}, error) {
	doc := make(map[string]interface{})
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = make(map[string]interface{})
	}
	return doc, nil
}

func encodeDocument(doc map[string]interface{}) ([]byte, error) {
	return json.Marshal(doc)
}
