package persistence

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/fulldump/docstore/collection"
)

const (
	fileExtension = ".json"
	tmpExtension  = ".tmp"
)

// Storage reads and writes whole collection snapshots.
type Storage interface {
	LoadAll() (map[collection.Key][]collection.Document, error)
	Save(key collection.Key, documents []collection.Document) error
}

// DirStorage keeps one directory per database and one `<collection>.json`
// file per collection holding the full array of documents.
type DirStorage struct {
	Root string
}

func NewDirStorage(root string) *DirStorage {
	return &DirStorage{Root: root}
}

func (s *DirStorage) filename(key collection.Key) string {
	return filepath.Join(s.Root, key.Database, key.Collection+fileExtension)
}

// LoadAll walks the root directory. Files deeper than `<db>/<collection>.json`
// and files without the json extension are ignored.
func (s *DirStorage) LoadAll() (map[collection.Key][]collection.Document, error) {

	err := os.MkdirAll(s.Root, 0755)
	if err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	result := map[collection.Key][]collection.Document{}
	err = filepath.WalkDir(s.Root, func(filename string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(s.Root, filename)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")

		if d.IsDir() {
			if rel != "." && len(parts) > 1 {
				return filepath.SkipDir
			}
			return nil
		}

		if len(parts) != 2 || !strings.HasSuffix(parts[1], fileExtension) {
			return nil
		}

		key := collection.Key{
			Database:   parts[0],
			Collection: strings.TrimSuffix(parts[1], fileExtension),
		}
		documents, err := readSnapshot(filename)
		if err != nil {
			return fmt.Errorf("load '%s': %w", key, err)
		}
		result[key] = documents

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func readSnapshot(filename string) ([]collection.Document, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	documents := []collection.Document{}
	err = json.UnmarshalRead(f, &documents)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	return documents, nil
}

// Save overwrites the snapshot of a collection. The content is written to a
// temporary file first so a failed write never truncates the previous one.
func (s *DirStorage) Save(key collection.Key, documents []collection.Document) error {

	if documents == nil {
		documents = []collection.Document{}
	}

	filename := s.filename(key)
	err := os.MkdirAll(filepath.Dir(filename), 0755)
	if err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}

	tmpFilename := filename + tmpExtension
	f, err := os.OpenFile(tmpFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}

	err = json.MarshalWrite(f, documents, json.Deterministic(true), jsontext.WithIndent("  "))
	if err != nil {
		f.Close()
		os.Remove(tmpFilename)
		return fmt.Errorf("encode snapshot: %w", err)
	}

	err = f.Close()
	if err != nil {
		os.Remove(tmpFilename)
		return fmt.Errorf("close snapshot: %w", err)
	}

	err = os.Rename(tmpFilename, filename)
	if err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	return nil
}
