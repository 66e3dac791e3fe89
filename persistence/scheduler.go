package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fulldump/docstore/collection"
)

const (
	StateIdle         = "idle"
	StateDumping      = "dumping"
	StateShuttingDown = "shutting_down"

	EventDump     = "dump"
	EventDumpDone = "dump_done"
	EventShutdown = "shutdown"
)

const DefaultDumpInterval = time.Second

var ErrClosed = errors.New("scheduler closed")

// Source hands out a consistent copy of a collection. Implementations must
// serialize Capture with regular mutations.
type Source interface {
	Capture(key collection.Key) ([]collection.Document, bool)
}

type Config struct {
	// IdleTimeout is the inactivity required before an automatic dump
	IdleTimeout time.Duration
	// DumpInterval is how often the idle condition is checked
	DumpInterval time.Duration
	Logger       *zap.SugaredLogger
}

// Scheduler tracks dirty collections and writes them to storage when the
// store has been idle long enough, on FlushAll and on Close.
type Scheduler struct {
	config  Config
	storage Storage
	source  Source
	logger  *zap.SugaredLogger
	fsm     *fsm.FSM

	mutex        sync.Mutex // protects dirty and lastActivity
	dirty        map[collection.Key]struct{}
	lastActivity time.Time
	now          func() time.Time

	dumpMutex sync.Mutex // one dump at a time
	group     singleflight.Group

	started   atomic.Bool
	closed    atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewScheduler(storage Storage, source Source, config Config) *Scheduler {

	if config.DumpInterval <= 0 {
		config.DumpInterval = DefaultDumpInterval
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	s := &Scheduler{
		config:  config,
		storage: storage,
		source:  source,
		logger:  config.Logger.With("component", "persistence"),
		dirty:   map[collection.Key]struct{}{},
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.lastActivity = s.now()

	s.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventDump, Src: []string{StateIdle}, Dst: StateDumping},
			{Name: EventDumpDone, Src: []string{StateDumping}, Dst: StateIdle},
			{Name: EventShutdown, Src: []string{StateIdle, StateDumping}, Dst: StateShuttingDown},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				s.logger.Debugw("persistence state", "from", e.Src, "to", e.Dst, "event", e.Event)
			},
		},
	)

	return s
}

func (s *Scheduler) State() string {
	return s.fsm.Current()
}

// MarkDirty records mutated collections and resets the idle timer.
func (s *Scheduler) MarkDirty(keys ...collection.Key) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, key := range keys {
		s.dirty[key] = struct{}{}
	}
	s.lastActivity = s.now()
}

// Dirty returns the pending collections sorted by name.
func (s *Scheduler) Dirty() []collection.Key {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return sortedKeys(s.dirty)
}

func (s *Scheduler) drain() []collection.Key {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	keys := sortedKeys(s.dirty)
	s.dirty = map[collection.Key]struct{}{}
	return keys
}

// remark puts back failed collections without touching the idle timer.
func (s *Scheduler) remark(keys []collection.Key) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, key := range keys {
		s.dirty[key] = struct{}{}
	}
}

func (s *Scheduler) idle() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.dirty) > 0 && s.now().Sub(s.lastActivity) >= s.config.IdleTimeout
}

// Start launches the idle timer loop. It is a no-op once closed.
func (s *Scheduler) Start() {
	if s.closed.Load() {
		return
	}
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.loop()
	})
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	if !s.idle() {
		return
	}
	err := s.FlushAll()
	if err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Warnw("idle dump finished with errors", "error", err)
	}
}

// FlushAll dumps every dirty collection now. Callers arriving while a pass is
// in flight share its result instead of starting another one.
func (s *Scheduler) FlushAll() error {
	_, err, _ := s.group.Do("dump", func() (interface{}, error) {
		return nil, s.runDump()
	})
	return err
}

func (s *Scheduler) runDump() error {
	s.dumpMutex.Lock()
	defer s.dumpMutex.Unlock()

	if s.fsm.Is(StateShuttingDown) {
		return ErrClosed
	}

	ctx := context.Background()
	err := s.fsm.Event(ctx, EventDump)
	if err != nil {
		return fmt.Errorf("start dump: %w", err)
	}
	defer s.event(ctx, EventDumpDone)

	return s.dump()
}

// event fires an fsm transition and logs the ones that are refused.
func (s *Scheduler) event(ctx context.Context, name string) error {
	err := s.fsm.Event(ctx, name)
	if err != nil {
		s.logger.Errorw("persistence transition", "event", name, "state", s.fsm.Current(), "error", err)
	}
	return err
}

// dump writes each drained collection independently. Failed ones go back to
// the dirty set for the next cycle. Must be called with dumpMutex held.
func (s *Scheduler) dump() error {

	keys := s.drain()
	if len(keys) == 0 {
		return nil
	}

	t0 := time.Now()
	metricDumps.Inc()
	defer func() {
		metricDumpDuration.Observe(time.Since(t0).Seconds())
	}()

	failed := []collection.Key{}
	errs := []error{}
	for _, key := range keys {
		documents, exists := s.source.Capture(key)
		if !exists {
			continue
		}

		err := s.storage.Save(key, documents)
		if err != nil {
			metricCollectionWrites.WithLabelValues("error").Inc()
			s.logger.Errorw("dump collection", "collection", key.String(), "error", err)
			failed = append(failed, key)
			errs = append(errs, fmt.Errorf("dump '%s': %w", key, err))
			continue
		}

		metricCollectionWrites.WithLabelValues("ok").Inc()
		s.logger.Debugw("collection dumped", "collection", key.String(), "documents", len(documents))
	}

	s.remark(failed)
	s.logger.Infow("dump finished",
		"collections", len(keys),
		"failed", len(failed),
		"took", time.Since(t0).String(),
	)

	return errors.Join(errs...)
}

// Close cancels the idle timer and performs one last unconditional dump.
// The scheduler can not be used afterwards.
func (s *Scheduler) Close() error {

	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		close(s.stop)
		if s.started.Load() {
			<-s.done
		}

		s.dumpMutex.Lock()
		defer s.dumpMutex.Unlock()

		err = s.fsm.Event(context.Background(), EventShutdown)
		if err != nil {
			err = fmt.Errorf("shutdown: %w", err)
			return
		}

		err = s.dump()
	})

	return err
}

func sortedKeys(set map[collection.Key]struct{}) []collection.Key {
	keys := make([]collection.Key, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
