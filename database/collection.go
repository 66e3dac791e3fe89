package database

import (
	"fmt"
	"strings"

	"github.com/fulldump/docstore/auth"
	"github.com/fulldump/docstore/collection"
	"github.com/fulldump/docstore/query"
)

const (
	UpdateSet   = "$set"
	UpdateUnset = "$unset"
)

// Database selects collections inside a named database.
type Database struct {
	store *Store
	name  string
}

func (s *Store) Database(name string) *Database {
	return &Database{store: s, name: name}
}

func (d *Database) Collection(name string) *Collection {
	return d.store.Collection(collection.Key{Database: d.name, Collection: name})
}

// Collection is a handle to a collection, it does not need to exist yet.
// Every operation takes the principal performing it, a nil user is a trusted
// internal caller and is not checked.
type Collection struct {
	store *Store
	key   collection.Key
}

func (s *Store) Collection(key collection.Key) *Collection {
	return &Collection{store: s, key: key}
}

func (c *Collection) Key() collection.Key {
	return c.key
}

func (c *Collection) allowed(user *auth.User, permission string) bool {
	if user == nil {
		return true
	}
	return auth.HasPermission(user, c.key.String(), requiredPermission(c.key, permission))
}

// requiredPermission raises every access to the users collection to admin,
// its documents carry password hashes and grants.
func requiredPermission(key collection.Key, permission string) string {
	if key == usersKey {
		return auth.PermissionAdmin
	}
	return permission
}

// reserved rejects generic writes that could create or rename users, those
// go through RegisterUser only.
func (c *Collection) reserved() error {
	if c.key == usersKey {
		return fmt.Errorf("'%s': %w", c.key, ErrReservedCollection)
	}
	return nil
}

type UpdateOptions struct {
	Upsert bool `json:"upsert"`
}

type UpdateInfo struct {
	Matched    int    `json:"matched"`
	Modified   int    `json:"modified"`
	Upserted   bool   `json:"upserted"`
	UpsertedID string `json:"upserted_id,omitempty"`
}

func (c *Collection) InsertOne(user *auth.User, document collection.Document) (Result[collection.Document], error) {
	result, err := c.insertOne(user, document)
	return observe("insertOne", result, err)
}

func (c *Collection) insertOne(user *auth.User, document collection.Document) (Result[collection.Document], error) {

	if err := validateKey(c.key); err != nil {
		return Result[collection.Document]{}, err
	}

	c.store.lock()
	defer c.store.unlock()

	if !c.allowed(user, auth.PermissionWrite) {
		return denied[collection.Document](), nil
	}
	if err := c.reserved(); err != nil {
		return Result[collection.Document]{}, err
	}

	stored, err := c.store.materialize(c.key).Insert(document)
	if err != nil {
		return Result[collection.Document]{}, err
	}
	c.store.markDirty(c.key)

	return ok(stored), nil
}

// InsertMany stores every document or none of them.
func (c *Collection) InsertMany(user *auth.User, documents []collection.Document) (Result[[]collection.Document], error) {
	result, err := c.insertMany(user, documents)
	return observe("insertMany", result, err)
}

func (c *Collection) insertMany(user *auth.User, documents []collection.Document) (Result[[]collection.Document], error) {

	if err := validateKey(c.key); err != nil {
		return Result[[]collection.Document]{}, err
	}

	c.store.lock()
	defer c.store.unlock()

	if !c.allowed(user, auth.PermissionWrite) {
		return denied[[]collection.Document](), nil
	}
	if err := c.reserved(); err != nil {
		return Result[[]collection.Document]{}, err
	}

	stored, err := c.store.materialize(c.key).InsertMany(documents)
	if err != nil {
		return Result[[]collection.Document]{}, err
	}
	if len(stored) > 0 {
		c.store.markDirty(c.key)
	}

	return ok(stored), nil
}

// Find returns copies of the matching documents in collection order.
func (c *Collection) Find(user *auth.User, filter map[string]any) (Result[[]collection.Document], error) {
	result, err := c.find(user, filter)
	return observe("find", result, err)
}

func (c *Collection) find(user *auth.User, filter map[string]any) (Result[[]collection.Document], error) {

	c.store.lock()
	defer c.store.unlock()

	if !c.allowed(user, auth.PermissionRead) {
		return denied[[]collection.Document](), nil
	}

	col, exists := c.store.collections[c.key]
	if !exists {
		return notFound([]collection.Document{}), nil
	}

	result := []collection.Document{}
	for _, pos := range matchPositions(col, filter) {
		doc, _ := col.Get(pos)
		result = append(result, doc)
	}

	return ok(result), nil
}

func (c *Collection) Count(user *auth.User, filter map[string]any) (Result[int], error) {
	result, err := c.count(user, filter)
	return observe("count", result, err)
}

func (c *Collection) count(user *auth.User, filter map[string]any) (Result[int], error) {

	c.store.lock()
	defer c.store.unlock()

	if !c.allowed(user, auth.PermissionRead) {
		return denied[int](), nil
	}

	col, exists := c.store.collections[c.key]
	if !exists {
		return notFound(0), nil
	}

	return ok(len(matchPositions(col, filter))), nil
}

// matchPositions resolves a filter to ascending positions. A single field
// filter goes through the index on that field when there is one, candidates
// are always checked again against the whole filter.
func matchPositions(col *collection.Collection, filter map[string]any) []int {

	if len(filter) == 1 {
		for field, condition := range filter {
			candidates, indexed := col.Lookup(field, condition)
			if !indexed {
				break
			}
			result := []int{}
			for _, pos := range candidates {
				doc, exists := col.Get(pos)
				if exists && query.Match(filter, doc) {
					result = append(result, pos)
				}
			}
			return result
		}
	}

	result := []int{}
	col.Traverse(func(pos int, doc collection.Document) bool {
		if query.Match(filter, doc) {
			result = append(result, pos)
		}
		return true
	})
	return result
}

func firstMatch(col *collection.Collection, filter map[string]any) (int, bool) {
	found := -1
	col.Traverse(func(pos int, doc collection.Document) bool {
		if query.Match(filter, doc) {
			found = pos
			return false
		}
		return true
	})
	return found, found >= 0
}

// UpdateOne modifies the first document matching filter. An update with
// `$set` and/or `$unset` patches the document, anything else replaces all of
// its fields but the identifier. With Upsert and no match a new document is
// built from the literal fields of the filter overlaid with the update.
func (c *Collection) UpdateOne(user *auth.User, filter, update map[string]any, options UpdateOptions) (Result[UpdateInfo], error) {
	result, err := c.updateOne(user, filter, update, options)
	return observe("updateOne", result, err)
}

func (c *Collection) updateOne(user *auth.User, filter, update map[string]any, options UpdateOptions) (Result[UpdateInfo], error) {

	if err := validateKey(c.key); err != nil {
		return Result[UpdateInfo]{}, err
	}

	patch, err := parseUpdate(update)
	if err != nil {
		return Result[UpdateInfo]{}, err
	}

	c.store.lock()
	defer c.store.unlock()

	if !c.allowed(user, auth.PermissionWrite) {
		return denied[UpdateInfo](), nil
	}
	if err := c.reserved(); err != nil {
		return Result[UpdateInfo]{}, err
	}

	col, exists := c.store.collections[c.key]
	if exists {
		pos, found := firstMatch(col, filter)
		if found {
			changed, err := patch.apply(col, pos)
			if err != nil {
				return Result[UpdateInfo]{}, err
			}
			info := UpdateInfo{Matched: 1}
			if changed {
				info.Modified = 1
				c.store.markDirty(c.key)
			}
			return ok(info), nil
		}
	}

	if !options.Upsert {
		return notFound(UpdateInfo{}), nil
	}

	stored, err := c.store.materialize(c.key).Insert(patch.upsertDocument(filter))
	if err != nil {
		return Result[UpdateInfo]{}, err
	}
	c.store.markDirty(c.key)

	return ok(UpdateInfo{
		Upserted:   true,
		UpsertedID: stored[collection.IDField].(string),
	}), nil
}

type updatePatch struct {
	set         map[string]any
	unset       []string
	replacement map[string]any
}

func parseUpdate(update map[string]any) (*updatePatch, error) {

	isOperator := false
	for field := range update {
		if strings.HasPrefix(field, "$") {
			isOperator = true
			break
		}
	}

	if !isOperator {
		return &updatePatch{replacement: update}, nil
	}

	patch := &updatePatch{}
	for field, value := range update {
		switch field {
		case UpdateSet:
			set, isMap := value.(map[string]any)
			if !isMap {
				return nil, fmt.Errorf("%s expects an object: %w", UpdateSet, ErrInvalidUpdate)
			}
			patch.set = set
		case UpdateUnset:
			fields, err := unsetFields(value)
			if err != nil {
				return nil, err
			}
			patch.unset = fields
		default:
			return nil, fmt.Errorf("operator '%s': %w", field, ErrInvalidUpdate)
		}
	}

	return patch, nil
}

// unsetFields accepts `{"field": ""}` objects as well as lists of names.
func unsetFields(value any) ([]string, error) {
	if fields, isMap := value.(map[string]any); isMap {
		result := make([]string, 0, len(fields))
		for field := range fields {
			result = append(result, field)
		}
		return result, nil
	}

	items, isSequence := query.AsSequence(value)
	if !isSequence {
		return nil, fmt.Errorf("%s expects an object or a list of fields: %w", UpdateUnset, ErrInvalidUpdate)
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		field, isString := item.(string)
		if !isString {
			return nil, fmt.Errorf("%s expects field names: %w", UpdateUnset, ErrInvalidUpdate)
		}
		result = append(result, field)
	}
	return result, nil
}

func (p *updatePatch) apply(col *collection.Collection, pos int) (bool, error) {

	if p.replacement != nil {
		return col.ReplaceOrPatch(pos, p.replacement, false)
	}

	changed := false
	if p.set != nil {
		setChanged, err := col.ReplaceOrPatch(pos, p.set, true)
		if err != nil {
			return false, err
		}
		changed = setChanged
	}
	if len(p.unset) > 0 {
		unsetChanged, err := col.Unset(pos, p.unset)
		if err != nil {
			return false, err
		}
		changed = changed || unsetChanged
	}

	return changed, nil
}

func (p *updatePatch) upsertDocument(filter map[string]any) collection.Document {
	doc := query.LiteralFields(filter)
	source := p.replacement
	if source == nil {
		source = p.set
	}
	for field, value := range source {
		doc[field] = value
	}
	for _, field := range p.unset {
		delete(doc, field)
	}
	delete(doc, collection.IDField)
	return doc
}

// DeleteOne removes every document matching filter at call time and returns
// how many were removed.
func (c *Collection) DeleteOne(user *auth.User, filter map[string]any) (Result[int], error) {
	result, err := c.deleteOne(user, filter)
	return observe("deleteOne", result, err)
}

func (c *Collection) deleteOne(user *auth.User, filter map[string]any) (Result[int], error) {

	c.store.lock()
	defer c.store.unlock()

	if !c.allowed(user, auth.PermissionWrite) {
		return denied[int](), nil
	}

	col, exists := c.store.collections[c.key]
	if !exists {
		return notFound(0), nil
	}

	positions := matchPositions(col, filter)
	if len(positions) == 0 {
		return notFound(0), nil
	}

	for i := len(positions) - 1; i >= 0; i-- {
		err := col.DeleteAt(positions[i])
		if err != nil {
			return Result[int]{}, err
		}
	}
	c.store.markDirty(c.key)

	return ok(len(positions)), nil
}

// CreateIndex (re)builds the index on field with a full scan. Indexes live in
// memory only so the collection is not marked dirty.
func (c *Collection) CreateIndex(user *auth.User, field string) (Result[*collection.IndexInfo], error) {
	result, err := c.createIndex(user, field)
	return observe("createIndex", result, err)
}

func (c *Collection) createIndex(user *auth.User, field string) (Result[*collection.IndexInfo], error) {

	if err := validateKey(c.key); err != nil {
		return Result[*collection.IndexInfo]{}, err
	}
	if field == "" {
		return Result[*collection.IndexInfo]{}, fmt.Errorf("index field is mandatory: %w", ErrInvalidName)
	}

	c.store.lock()
	defer c.store.unlock()

	if !c.allowed(user, auth.PermissionWrite) {
		return denied[*collection.IndexInfo](), nil
	}

	return ok(c.store.materialize(c.key).BuildIndex(field)), nil
}

func (c *Collection) DropIndex(user *auth.User, field string) (Result[bool], error) {
	result, err := c.dropIndex(user, field)
	return observe("dropIndex", result, err)
}

func (c *Collection) dropIndex(user *auth.User, field string) (Result[bool], error) {

	c.store.lock()
	defer c.store.unlock()

	if !c.allowed(user, auth.PermissionWrite) {
		return denied[bool](), nil
	}

	col, exists := c.store.collections[c.key]
	if !exists || !col.HasIndex(field) {
		return notFound(false), nil
	}

	return ok(col.DropIndex(field) == nil), nil
}

func (c *Collection) Indexes(user *auth.User) (Result[[]*collection.IndexInfo], error) {
	result, err := c.indexes(user)
	return observe("listIndexes", result, err)
}

func (c *Collection) indexes(user *auth.User) (Result[[]*collection.IndexInfo], error) {

	c.store.lock()
	defer c.store.unlock()

	if !c.allowed(user, auth.PermissionRead) {
		return denied[[]*collection.IndexInfo](), nil
	}

	col, exists := c.store.collections[c.key]
	if !exists {
		return notFound([]*collection.IndexInfo{}), nil
	}

	return ok(col.Indexes()), nil
}
