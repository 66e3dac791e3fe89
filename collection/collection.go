package collection

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// IDField is the reserved identifier assigned by the store.
const IDField = "_id"

var ErrPositionOutOfRange = errors.New("position out of range")

type Document = map[string]any

// Key addresses a collection inside a database.
type Key struct {
	Database   string
	Collection string
}

func (k Key) String() string {
	return k.Database + "." + k.Collection
}

// ParseKey splits a `database.collection` name on the first dot.
func ParseKey(name string) (Key, error) {
	database, collection, found := strings.Cut(name, ".")
	if !found || database == "" || collection == "" {
		return Key{}, fmt.Errorf("bad collection name '%s', expected database.collection", name)
	}
	return Key{Database: database, Collection: collection}, nil
}

// Collection is an ordered sequence of documents. It is not safe for
// concurrent use, the owning store serializes every call.
type Collection struct {
	Key     Key
	rows    []Document
	ids     map[string]struct{}
	indexes map[string]*Index
}

func New(key Key) *Collection {
	return &Collection{
		Key:     key,
		rows:    []Document{},
		ids:     map[string]struct{}{},
		indexes: map[string]*Index{},
	}
}

// Load restores documents from a snapshot keeping their identifiers.
func Load(key Key, documents []Document) (*Collection, error) {
	c := New(key)
	for i, item := range documents {
		doc, err := normalizeDocument(item)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		id, _ := doc[IDField].(string)
		if id == "" {
			id = c.newID()
			doc[IDField] = id
		}
		if _, exists := c.ids[id]; exists {
			return nil, fmt.Errorf("document %d: duplicated %s '%s'", i, IDField, id)
		}
		c.ids[id] = struct{}{}
		c.rows = append(c.rows, doc)
	}
	return c, nil
}

func (c *Collection) newID() string {
	for {
		id := NewID()
		if _, exists := c.ids[id]; !exists {
			return id
		}
	}
}

func (c *Collection) Len() int {
	return len(c.rows)
}

// Insert appends a copy of item with a fresh identifier and returns the
// stored copy.
func (c *Collection) Insert(item Document) (Document, error) {
	doc, err := normalizeDocument(item)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}

	id := c.newID()
	doc[IDField] = id
	c.ids[id] = struct{}{}
	c.rows = append(c.rows, doc)
	c.invalidateIndexes()

	return cloneDocument(doc), nil
}

// InsertMany is all or nothing: nothing is appended if one item can not be
// normalized.
func (c *Collection) InsertMany(items []Document) ([]Document, error) {
	docs := make([]Document, 0, len(items))
	for i, item := range items {
		doc, err := normalizeDocument(item)
		if err != nil {
			return nil, fmt.Errorf("normalize document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}

	result := make([]Document, 0, len(docs))
	for _, doc := range docs {
		id := c.newID()
		doc[IDField] = id
		c.ids[id] = struct{}{}
		c.rows = append(c.rows, doc)
		result = append(result, cloneDocument(doc))
	}
	if len(docs) > 0 {
		c.invalidateIndexes()
	}

	return result, nil
}

// ReplaceOrPatch merges the top level fields of content into the document at
// pos when isPatch, otherwise replaces every field. The identifier is never
// touched.
func (c *Collection) ReplaceOrPatch(pos int, content Document, isPatch bool) (bool, error) {
	current, err := c.at(pos)
	if err != nil {
		return false, err
	}

	normalized, err := normalizeDocument(content)
	if err != nil {
		return false, fmt.Errorf("normalize document: %w", err)
	}

	var next Document
	if isPatch {
		next = cloneDocument(current)
	} else {
		next = Document{IDField: current[IDField]}
	}
	for k, v := range normalized {
		if k == IDField {
			continue
		}
		next[k] = v
	}

	return c.set(pos, current, next), nil
}

// Unset removes top level fields from the document at pos.
func (c *Collection) Unset(pos int, fields []string) (bool, error) {
	current, err := c.at(pos)
	if err != nil {
		return false, err
	}

	next := cloneDocument(current)
	for _, field := range fields {
		if field == IDField {
			continue
		}
		delete(next, field)
	}

	return c.set(pos, current, next), nil
}

func (c *Collection) set(pos int, current, next Document) bool {
	if reflect.DeepEqual(current, next) {
		return false
	}
	c.rows[pos] = next
	c.invalidateIndexes()
	return true
}

// DeleteAt removes the document at pos, later documents shift down by one.
func (c *Collection) DeleteAt(pos int) error {
	doc, err := c.at(pos)
	if err != nil {
		return err
	}

	if id, ok := doc[IDField].(string); ok {
		delete(c.ids, id)
	}
	c.rows = slices.Delete(c.rows, pos, pos+1)
	c.invalidateIndexes()

	return nil
}

// Get returns a copy of the document at pos.
func (c *Collection) Get(pos int) (Document, bool) {
	doc, err := c.at(pos)
	if err != nil {
		return nil, false
	}
	return cloneDocument(doc), true
}

func (c *Collection) at(pos int) (Document, error) {
	if pos < 0 || pos >= len(c.rows) {
		return nil, fmt.Errorf("%w: %d", ErrPositionOutOfRange, pos)
	}
	return c.rows[pos], nil
}

// Traverse walks documents in order until f returns false. Documents are the
// stored ones and must not be modified.
func (c *Collection) Traverse(f func(pos int, doc Document) bool) {
	for pos, doc := range c.rows {
		if !f(pos, doc) {
			return
		}
	}
}

// Documents returns a copy of every document in order.
func (c *Collection) Documents() []Document {
	result := make([]Document, 0, len(c.rows))
	for _, doc := range c.rows {
		result = append(result, cloneDocument(doc))
	}
	return result
}
