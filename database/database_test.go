package database

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	. "github.com/fulldump/biff"

	"github.com/fulldump/docstore/auth"
	"github.com/fulldump/docstore/collection"
)

type JSON = map[string]any

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "plain:" + password, nil
}

func (plainHasher) Verify(password, hash string) bool {
	return hash == "plain:"+password
}

type countingStorage struct {
	mutex    sync.Mutex
	loadErr  error
	initial  map[collection.Key][]collection.Document
	saved    map[collection.Key][]collection.Document
	saveKeys []collection.Key
}

func newCountingStorage() *countingStorage {
	return &countingStorage{
		initial: map[collection.Key][]collection.Document{},
		saved:   map[collection.Key][]collection.Document{},
	}
}

func (s *countingStorage) LoadAll() (map[collection.Key][]collection.Document, error) {
	return s.initial, s.loadErr
}

func (s *countingStorage) Save(key collection.Key, documents []collection.Document) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.saved[key] = documents
	s.saveKeys = append(s.saveKeys, key)
	return nil
}

func newTestStore(t *testing.T) *Store {
	s, err := NewStore(&Config{
		StorageMode: StorageModeMemory,
		Hasher:      plainHasher{},
	})
	AssertNil(err)
	AssertNil(s.Initialize())
	t.Cleanup(func() { s.Close() })
	return s
}

func newDiskStore(t *testing.T, storage *countingStorage) *Store {
	s, err := NewStore(&Config{
		StorageMode: StorageModeDisk,
		Storage:     storage,
		IdleTimeout: time.Hour,
		Hasher:      plainHasher{},
	})
	AssertNil(err)
	AssertNil(s.Initialize())
	return s
}

func ids(documents []collection.Document) []string {
	result := []string{}
	for _, doc := range documents {
		result = append(result, doc[collection.IDField].(string))
	}
	return result
}

func TestNewStore(t *testing.T) {

	_, err := NewStore(&Config{StorageMode: "tape"})
	AssertNotNil(err)

	_, err = NewStore(&Config{StorageMode: StorageModeDisk})
	AssertNotNil(err)

	s, err := NewStore(&Config{})
	AssertNil(err)
	AssertEqual(s.GetStatus(), StatusOpening)
	AssertNil(s.Initialize())
	AssertEqual(s.GetStatus(), StatusOperating)
	AssertNotNil(s.Initialize())
}

func TestInsertOne_UniqueIDs(t *testing.T) {
	s := newTestStore(t)
	c := s.Database("db").Collection("items")

	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		r, err := c.InsertOne(nil, JSON{"i": i, "_id": "fixed"})
		AssertNil(err)
		AssertTrue(r.OK())
		id := r.Value[collection.IDField].(string)
		AssertNotEqual(id, "")
		AssertNotEqual(id, "fixed")
		AssertFalse(seen[id])
		seen[id] = true
	}
}

func TestInsertOne_InvalidNames(t *testing.T) {
	s := newTestStore(t)

	for _, key := range []collection.Key{
		{Database: "", Collection: "c"},
		{Database: "a.b", Collection: "c"},
		{Database: "db", Collection: ""},
		{Database: "db", Collection: "../etc"},
		{Database: "db", Collection: ".."},
	} {
		_, err := s.Collection(key).InsertOne(nil, JSON{})
		AssertTrue(errors.Is(err, ErrInvalidName))
	}
}

func TestInsertMany_FindKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	c := s.Database("db").Collection("items")

	first, _ := c.InsertOne(nil, JSON{"n": 0})
	many, err := c.InsertMany(nil, []collection.Document{{"n": 1}, {"n": 2}, {"n": 3}})
	AssertNil(err)
	AssertEqual(len(many.Value), 3)

	found, err := c.Find(nil, JSON{})
	AssertNil(err)
	AssertTrue(found.OK())
	AssertEqual(ids(found.Value), append([]string{first.Value["_id"].(string)}, ids(many.Value)...))
}

func TestFind(t *testing.T) {
	Alternative("Find", func(a *A) {
		s := newTestStore(t)
		c := s.Database("db").Collection("people")
		c.InsertMany(nil, []collection.Document{
			{"name": "Alpha", "age": 30},
			{"name": "Beta", "age": 20},
			{"name": "Gamma", "age": 40},
		})

		a.Alternative("Operators", func(a *A) {
			r, _ := c.Find(nil, JSON{"age": JSON{"$gte": 30}})
			AssertEqual(len(r.Value), 2)
			AssertEqual(r.Value[0]["name"], "Alpha")
			AssertEqual(r.Value[1]["name"], "Gamma")
		})

		a.Alternative("Malformed query matches nothing", func(a *A) {
			r, err := c.Find(nil, JSON{"age": JSON{"$regex": "4"}})
			AssertNil(err)
			AssertTrue(r.OK())
			AssertEqual(r.Value, []collection.Document{})

			r, _ = c.Find(nil, JSON{"name": JSON{"$in": "Alpha"}})
			AssertEqual(r.Value, []collection.Document{})
		})

		a.Alternative("Count", func(a *A) {
			r, _ := c.Count(nil, JSON{"age": JSON{"$lt": 40}})
			AssertEqual(r.Value, 2)
		})

		a.Alternative("Missing collection is not found and not created", func(a *A) {
			r, err := s.Database("db").Collection("ghost").Find(nil, JSON{})
			AssertNil(err)
			AssertTrue(r.NotFound())
			AssertEqual(r.Value, []collection.Document{})

			AssertEqual(s.ListDatabases(nil), []*DatabaseInfo{
				{Name: "db", Collections: []string{"people"}},
			})
		})

		a.Alternative("Returned documents are copies", func(a *A) {
			r, _ := c.Find(nil, JSON{"name": "Alpha"})
			r.Value[0]["name"] = "changed"

			r, _ = c.Find(nil, JSON{"name": "Alpha"})
			AssertEqual(len(r.Value), 1)
		})
	})
}

func TestUpdateOne(t *testing.T) {
	Alternative("UpdateOne", func(a *A) {
		s := newTestStore(t)
		c := s.Database("db").Collection("people")
		inserted, _ := c.InsertMany(nil, []collection.Document{
			{"name": "Alpha", "age": 30},
			{"name": "Alpha", "age": 31},
		})
		firstID := inserted.Value[0]["_id"]

		a.Alternative("Set patches only the first match", func(a *A) {
			r, err := c.UpdateOne(nil, JSON{"name": "Alpha"}, JSON{"$set": JSON{"age": 99}}, UpdateOptions{})
			AssertNil(err)
			AssertEqual(r, Result[UpdateInfo]{Status: ResultOK, Value: UpdateInfo{Matched: 1, Modified: 1}})

			found, _ := c.Find(nil, JSON{})
			AssertEqual(found.Value[0], collection.Document{"_id": firstID, "name": "Alpha", "age": 99.0})
			AssertEqual(found.Value[1]["age"], 31.0)
		})

		a.Alternative("Replacement keeps the identifier", func(a *A) {
			c.UpdateOne(nil, JSON{"age": 30}, JSON{"color": "red", "_id": "other"}, UpdateOptions{})

			found, _ := c.Find(nil, JSON{})
			AssertEqual(found.Value[0], collection.Document{"_id": firstID, "color": "red"})
		})

		a.Alternative("Unset", func(a *A) {
			c.UpdateOne(nil, JSON{"age": 30}, JSON{"$unset": JSON{"age": ""}}, UpdateOptions{})

			found, _ := c.Find(nil, JSON{})
			AssertEqual(found.Value[0], collection.Document{"_id": firstID, "name": "Alpha"})
		})

		a.Alternative("Unchanged is matched but not modified", func(a *A) {
			r, _ := c.UpdateOne(nil, JSON{"age": 30}, JSON{"$set": JSON{"age": 30}}, UpdateOptions{})
			AssertEqual(r.Value, UpdateInfo{Matched: 1, Modified: 0})
		})

		a.Alternative("No match without upsert leaves the collection unchanged", func(a *A) {
			before, _ := c.Find(nil, JSON{})

			r, err := c.UpdateOne(nil, JSON{"name": "Nobody"}, JSON{"$set": JSON{"age": 1}}, UpdateOptions{})
			AssertNil(err)
			AssertTrue(r.NotFound())
			AssertEqual(r.Value, UpdateInfo{})

			after, _ := c.Find(nil, JSON{})
			AssertEqual(after.Value, before.Value)
		})

		a.Alternative("Upsert", func(a *A) {
			r, err := c.UpdateOne(nil,
				JSON{"name": "Delta", "_id": "client", "age": JSON{"$gt": 3}},
				JSON{"$set": JSON{"color": "blue"}},
				UpdateOptions{Upsert: true},
			)
			AssertNil(err)
			AssertTrue(r.OK())
			AssertTrue(r.Value.Upserted)
			AssertNotEqual(r.Value.UpsertedID, "")
			AssertNotEqual(r.Value.UpsertedID, "client")

			found, _ := c.Find(nil, JSON{"name": "Delta"})
			AssertEqual(found.Value, []collection.Document{
				{"_id": r.Value.UpsertedID, "name": "Delta", "color": "blue"},
			})
		})

		a.Alternative("Upsert on a missing collection creates it", func(a *A) {
			other := s.Database("db").Collection("fresh")
			r, _ := other.UpdateOne(nil, JSON{"k": 1}, JSON{"v": 2}, UpdateOptions{Upsert: true})
			AssertTrue(r.Value.Upserted)

			found, _ := other.Find(nil, JSON{})
			AssertEqual(found.Value[0]["k"], 1.0)
			AssertEqual(found.Value[0]["v"], 2.0)
		})

		a.Alternative("Unsupported operator", func(a *A) {
			_, err := c.UpdateOne(nil, JSON{}, JSON{"$inc": JSON{"age": 1}}, UpdateOptions{})
			AssertNotNil(err)

			_, err = c.UpdateOne(nil, JSON{}, JSON{"$set": 1}, UpdateOptions{})
			AssertNotNil(err)
		})
	})
}

func TestDeleteOne_RemovesAllMatches(t *testing.T) {
	s := newTestStore(t)
	c := s.Database("db").Collection("people")
	c.InsertMany(nil, []collection.Document{
		{"name": "Alpha"},
		{"name": "Beta"},
		{"name": "Alpha"},
		{"name": "Gamma"},
		{"name": "Alpha"},
	})

	r, err := c.DeleteOne(nil, JSON{"name": "Alpha"})
	AssertNil(err)
	AssertEqual(r, Result[int]{Status: ResultOK, Value: 3})

	found, _ := c.Find(nil, JSON{})
	AssertEqual(len(found.Value), 2)
	AssertEqual(found.Value[0]["name"], "Beta")
	AssertEqual(found.Value[1]["name"], "Gamma")

	r, _ = c.DeleteOne(nil, JSON{"name": "Alpha"})
	AssertTrue(r.NotFound())
}

func TestPermissions_ReadOnlyUser(t *testing.T) {
	s := newTestStore(t)
	c := s.Database("db").Collection("coll")
	c.InsertOne(nil, JSON{"name": "Alpha"})

	reader := &auth.User{
		Username: "reader",
		Roles:    []auth.Grant{{Resource: "db.coll", Permissions: []string{auth.PermissionRead}}},
	}

	found, err := c.Find(reader, JSON{})
	AssertNil(err)
	AssertTrue(found.OK())
	AssertEqual(len(found.Value), 1)

	insert, err := c.InsertOne(reader, JSON{"name": "Beta"})
	AssertNil(err)
	AssertEqual(insert, Result[collection.Document]{Status: ResultDenied})

	many, _ := c.InsertMany(reader, []collection.Document{{}})
	AssertTrue(many.Denied())
	AssertNil(many.Value)

	update, _ := c.UpdateOne(reader, JSON{}, JSON{"$set": JSON{"x": 1}}, UpdateOptions{Upsert: true})
	AssertTrue(update.Denied())
	AssertEqual(update.Value, UpdateInfo{})

	deleted, _ := c.DeleteOne(reader, JSON{})
	AssertEqual(deleted, Result[int]{Status: ResultDenied, Value: 0})

	index, _ := c.CreateIndex(reader, "name")
	AssertTrue(index.Denied())

	// nothing changed
	count, _ := c.Count(nil, JSON{})
	AssertEqual(count.Value, 1)

	// other collections are not readable
	other, _ := s.Database("db").Collection("other").Find(reader, JSON{})
	AssertTrue(other.Denied())

	AssertEqual(s.ListDatabases(reader), []*DatabaseInfo{
		{Name: "db", Collections: []string{"coll"}},
	})
	AssertEqual(s.ListDatabases(&auth.User{}), []*DatabaseInfo{})
}

func TestIndex_AlphaBeta(t *testing.T) {
	s := newTestStore(t)
	c := s.Database("db").Collection("names")
	c.InsertOne(nil, JSON{"name": "Alpha"})
	beta, _ := c.InsertOne(nil, JSON{"name": "Beta"})

	info, err := c.CreateIndex(nil, "name")
	AssertNil(err)
	AssertEqual(info.Value, &collection.IndexInfo{Field: "name", Entries: 2})

	found, _ := c.Find(nil, JSON{"name": "Alpha"})
	AssertEqual(len(found.Value), 1)
	AssertEqual(found.Value[0]["name"], "Alpha")

	positions, indexed := s.collections[c.Key()].Lookup("name", "Alpha")
	AssertTrue(indexed)
	AssertEqual(positions, []int{0})
	_, indexed = s.collections[c.Key()].Lookup("other", "Alpha")
	AssertFalse(indexed)

	deleted, _ := c.DeleteOne(nil, JSON{"_id": beta.Value["_id"]})
	AssertEqual(deleted.Value, 1)

	// The index is invalidated by the delete and rebuilt on the next lookup,
	// it never returns the removed position.
	indexes, _ := c.Indexes(nil)
	AssertTrue(indexes.Value[0].Stale)

	found, err = c.Find(nil, JSON{"name": "Beta"})
	AssertNil(err)
	AssertTrue(found.OK())
	AssertEqual(found.Value, []collection.Document{})

	indexes, _ = c.Indexes(nil)
	AssertEqual(indexes.Value, []*collection.IndexInfo{{Field: "name", Entries: 1}})

	positions, indexed = s.collections[c.Key()].Lookup("name", "Alpha")
	AssertTrue(indexed)
	AssertEqual(positions, []int{0})

	c.InsertOne(nil, JSON{"name": "Beta"})
	found, _ = c.Find(nil, JSON{"name": "Beta"})
	AssertEqual(len(found.Value), 1)

	dropped, _ := c.DropIndex(nil, "name")
	AssertEqual(dropped, Result[bool]{Status: ResultOK, Value: true})
	dropped, _ = c.DropIndex(nil, "name")
	AssertTrue(dropped.NotFound())
}

func TestDirtyTracking(t *testing.T) {
	storage := newCountingStorage()
	s := newDiskStore(t, storage)
	defer s.Close()

	c := s.Database("db").Collection("c")
	key := c.Key()

	c.CreateIndex(nil, "name")
	c.Find(nil, JSON{})
	c.UpdateOne(nil, JSON{"x": 1}, JSON{"$set": JSON{"y": 1}}, UpdateOptions{})
	c.DeleteOne(nil, JSON{"x": 1})
	AssertNil(s.Flush())
	AssertEqual(len(storage.saveKeys), 0)

	c.InsertOne(nil, JSON{"x": 1})
	AssertNil(s.Flush())
	AssertEqual(storage.saveKeys, []collection.Key{key})

	c.UpdateOne(nil, JSON{"x": 1}, JSON{"$set": JSON{"x": 1}}, UpdateOptions{})
	AssertNil(s.Flush())
	AssertEqual(len(storage.saveKeys), 1)

	c.UpdateOne(nil, JSON{"x": 1}, JSON{"$set": JSON{"x": 2}}, UpdateOptions{})
	AssertNil(s.Flush())
	AssertEqual(len(storage.saveKeys), 2)
	AssertEqual(storage.saved[key][0]["x"], 2.0)
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	config := func() *Config {
		return &Config{
			StorageMode: StorageModeDisk,
			StoragePath: dir,
			IdleTimeout: time.Hour,
			Hasher:      plainHasher{},
		}
	}

	s, err := NewStore(config())
	AssertNil(err)
	AssertNil(s.Initialize())

	c := s.Database("shop").Collection("products")
	inserted, _ := c.InsertMany(nil, []collection.Document{
		{"name": "Alpha", "price": 1.5, "tags": []any{"a", "b"}},
		{"name": "Beta", "stock": nil, "meta": JSON{"color": "red"}},
		{"name": "Gamma", "active": true},
	})
	c.DeleteOne(nil, JSON{"name": "Gamma"})
	s.RegisterUser("pablo", "secret", nil)

	AssertNil(s.Close())
	AssertEqual(s.GetStatus(), StatusClosed)

	restarted, err := NewStore(config())
	AssertNil(err)
	AssertNil(restarted.Initialize())
	defer restarted.Close()

	found, _ := restarted.Database("shop").Collection("products").Find(nil, JSON{})
	AssertEqual(found.Value, inserted.Value[:2])

	user, err := restarted.LoginUser("pablo", "secret")
	AssertNil(err)
	AssertEqual(user.Username, "pablo")
}

func TestInitialize_LoadErrorIsFatal(t *testing.T) {
	storage := newCountingStorage()
	storage.loadErr = errors.New("permission denied")

	s, err := NewStore(&Config{StorageMode: StorageModeDisk, Storage: storage})
	AssertNil(err)
	AssertNotNil(s.Initialize())
	AssertEqual(s.GetStatus(), StatusClosed)
}

func TestInitialize_DuplicatedIDsAreFatal(t *testing.T) {
	storage := newCountingStorage()
	storage.initial[collection.Key{Database: "db", Collection: "c"}] = []collection.Document{
		{"_id": "1"}, {"_id": "1"},
	}

	s, err := NewStore(&Config{StorageMode: StorageModeDisk, Storage: storage})
	AssertNil(err)
	AssertNotNil(s.Initialize())
}

func TestClosedStorePanics(t *testing.T) {
	s, _ := NewStore(&Config{})
	s.Initialize()
	AssertNil(s.Close())
	AssertTrue(errors.Is(s.Close(), ErrStoreClosed))

	mustPanic := func(f func()) {
		defer func() {
			r := recover()
			AssertEqual(r, ErrStoreClosed)
		}()
		f()
	}

	mustPanic(func() { s.Database("db").Collection("c").Find(nil, JSON{}) })
	mustPanic(func() { s.Database("db").Collection("c").InsertOne(nil, JSON{}) })
	mustPanic(func() { s.ListDatabases(nil) })
	mustPanic(func() { s.LoginUser("a", "b") })
}

func TestOpeningStorePanics(t *testing.T) {
	storage := newCountingStorage()
	key := collection.Key{Database: "db", Collection: "c"}
	storage.initial[key] = []collection.Document{{"_id": "1", "name": "Alpha"}}

	s, err := NewStore(&Config{StorageMode: StorageModeDisk, Storage: storage, IdleTimeout: time.Hour})
	AssertNil(err)

	func() {
		defer func() {
			AssertEqual(recover(), ErrStoreNotInitialized)
		}()
		s.Collection(key).InsertOne(nil, JSON{"name": "Beta"})
	}()

	AssertEqual(s.GetStatus(), StatusOpening)
	AssertNil(s.Initialize())
	defer s.Close()

	found, _ := s.Collection(key).Find(nil, JSON{})
	AssertEqual(found.Value, []collection.Document{{"_id": "1", "name": "Alpha"}})
}

func TestNonFiniteNumbersAreRejected(t *testing.T) {
	storage := newCountingStorage()
	s := newDiskStore(t, storage)
	defer s.Close()

	c := s.Database("db").Collection("c")
	c.InsertOne(nil, JSON{"x": 1})

	_, err := c.InsertOne(nil, JSON{"x": math.NaN()})
	AssertTrue(errors.Is(err, collection.ErrInvalidValue))

	_, err = c.UpdateOne(nil, JSON{"x": 1}, JSON{"$set": JSON{"x": math.Inf(1)}}, UpdateOptions{})
	AssertTrue(errors.Is(err, collection.ErrInvalidValue))

	_, err = c.UpdateOne(nil, JSON{"x": 2}, JSON{"y": math.Inf(-1)}, UpdateOptions{Upsert: true})
	AssertTrue(errors.Is(err, collection.ErrInvalidValue))

	AssertNil(s.Flush())
	AssertEqual(len(storage.saved[c.Key()]), 1)
	AssertEqual(storage.saved[c.Key()][0]["x"], 1.0)
}
