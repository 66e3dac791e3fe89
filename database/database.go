package database

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fulldump/docstore/auth"
	"github.com/fulldump/docstore/collection"
	"github.com/fulldump/docstore/persistence"
	"github.com/fulldump/docstore/utils"
)

const (
	StatusOpening   = "opening"
	StatusOperating = "operating"
	StatusClosing   = "closing"
	StatusClosed    = "closed"
)

const (
	StorageModeMemory = "memory"
	StorageModeDisk   = "disk"
)

var (
	ErrStoreClosed         = errors.New("store closed")
	ErrStoreNotInitialized = errors.New("store not initialized")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidUpdate       = errors.New("invalid update")
	ErrReservedCollection  = errors.New("reserved collection")
)

type Config struct {
	// StorageMode is memory (no load, no dump) or disk
	StorageMode  string
	StoragePath  string
	IdleTimeout  time.Duration
	DumpInterval time.Duration

	// Storage replaces the directory storage of disk mode when set
	Storage persistence.Storage
	Hasher  auth.Hasher
	Logger  *zap.SugaredLogger
}

// Store owns every collection. All operations are serialized by a single
// mutex, including the captures made by the persistence scheduler.
type Store struct {
	config    *Config
	logger    *zap.SugaredLogger
	hasher    auth.Hasher
	storage   persistence.Storage
	scheduler *persistence.Scheduler

	mutex       sync.Mutex
	status      string
	collections map[collection.Key]*collection.Collection
}

func NewStore(config *Config) (*Store, error) {

	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	if config.Hasher == nil {
		config.Hasher = auth.NewBcryptHasher(0)
	}

	s := &Store{
		config:      config,
		logger:      config.Logger.With("component", "database"),
		hasher:      config.Hasher,
		status:      StatusOpening,
		collections: map[collection.Key]*collection.Collection{},
	}

	switch config.StorageMode {
	case StorageModeMemory, "":
	case StorageModeDisk:
		s.storage = config.Storage
		if s.storage == nil {
			if config.StoragePath == "" {
				return nil, fmt.Errorf("storage path is mandatory in %s mode", StorageModeDisk)
			}
			s.storage = persistence.NewDirStorage(config.StoragePath)
		}
	default:
		return nil, fmt.Errorf("unknown storage mode '%s'", config.StorageMode)
	}

	return s, nil
}

func (s *Store) GetStatus() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.status
}

// lock acquires the store and fails fast unless it is operating.
func (s *Store) lock() {
	s.mutex.Lock()
	switch s.status {
	case StatusOperating:
		return
	case StatusOpening:
		s.mutex.Unlock()
		panic(ErrStoreNotInitialized)
	default:
		s.mutex.Unlock()
		panic(ErrStoreClosed)
	}
}

func (s *Store) unlock() {
	s.mutex.Unlock()
}

// Initialize loads every snapshot in disk mode and starts the persistence
// scheduler. Any storage error aborts the start.
func (s *Store) Initialize() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.status != StatusOpening {
		return fmt.Errorf("store is %s, can not initialize", s.status)
	}

	if s.storage == nil {
		s.status = StatusOperating
		return nil
	}

	t0 := time.Now()
	s.logger.Infow("loading snapshots", "mode", s.config.StorageMode, "path", s.config.StoragePath)
	snapshots, err := s.storage.LoadAll()
	if err != nil {
		s.status = StatusClosed
		return fmt.Errorf("load snapshots: %w", err)
	}

	for key, documents := range snapshots {
		col, err := collection.Load(key, documents)
		if err != nil {
			s.status = StatusClosed
			return fmt.Errorf("load '%s': %w", key, err)
		}
		s.collections[key] = col
		s.logger.Infow("collection loaded", "collection", key.String(), "documents", col.Len())
	}
	s.logger.Infow("snapshots loaded", "collections", len(snapshots), "took", time.Since(t0).String())

	s.scheduler = persistence.NewScheduler(s.storage, s, persistence.Config{
		IdleTimeout:  s.config.IdleTimeout,
		DumpInterval: s.config.DumpInterval,
		Logger:       s.config.Logger,
	})
	s.scheduler.Start()

	s.status = StatusOperating
	return nil
}

// Flush writes every dirty collection now. It is a no-op in memory mode.
func (s *Store) Flush() error {
	s.lock()
	scheduler := s.scheduler
	s.unlock()

	if scheduler == nil {
		return nil
	}
	return scheduler.FlushAll()
}

// Close cancels the idle timer, flushes every dirty collection and releases
// the in memory state. Any later call on the store panics with
// ErrStoreClosed, a repeated Close just returns it.
func (s *Store) Close() error {
	s.mutex.Lock()
	if s.status == StatusClosing || s.status == StatusClosed {
		s.mutex.Unlock()
		return ErrStoreClosed
	}
	s.status = StatusClosing
	scheduler := s.scheduler
	s.mutex.Unlock()

	var err error
	if scheduler != nil {
		err = scheduler.Close()
		if err != nil {
			s.logger.Errorw("final flush", "error", err)
		}
	}

	s.mutex.Lock()
	s.collections = nil
	s.status = StatusClosed
	s.mutex.Unlock()

	return err
}

// Capture implements persistence.Source.
func (s *Store) Capture(key collection.Key) ([]collection.Document, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	col, exists := s.collections[key]
	if !exists {
		return nil, false
	}
	return col.Documents(), true
}

func (s *Store) markDirty(key collection.Key) {
	if s.scheduler == nil {
		return
	}
	s.scheduler.MarkDirty(key)
}

// materialize returns the collection, creating it empty on first write.
func (s *Store) materialize(key collection.Key) *collection.Collection {
	col, exists := s.collections[key]
	if !exists {
		col = collection.New(key)
		s.collections[key] = col
	}
	return col
}

type DatabaseInfo struct {
	Name        string   `json:"name"`
	Collections []string `json:"collections"`
}

// ListDatabases returns the databases holding at least one collection the
// user may read. A nil user sees everything.
func (s *Store) ListDatabases(user *auth.User) []*DatabaseInfo {
	s.lock()
	defer s.unlock()

	visible := map[string]map[string]bool{}
	for key := range s.collections {
		if user != nil && !auth.HasPermission(user, key.String(), requiredPermission(key, auth.PermissionRead)) {
			continue
		}
		if visible[key.Database] == nil {
			visible[key.Database] = map[string]bool{}
		}
		visible[key.Database][key.Collection] = true
	}

	result := []*DatabaseInfo{}
	for _, name := range utils.GetKeys(visible) {
		result = append(result, &DatabaseInfo{
			Name:        name,
			Collections: utils.GetKeys(visible[name]),
		})
	}
	return result
}

func validateKey(key collection.Key) error {
	if err := validateName(key.Database); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if strings.Contains(key.Database, ".") {
		return fmt.Errorf("database '%s' can not contain dots: %w", key.Database, ErrInvalidName)
	}
	if err := validateName(key.Collection); err != nil {
		return fmt.Errorf("collection: %w", err)
	}
	return nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("'%s': %w", name, ErrInvalidName)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("'%s' contains forbidden characters: %w", name, ErrInvalidName)
	}
	return nil
}
