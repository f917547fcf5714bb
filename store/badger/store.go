// Package badger keeps the population in an embedded BadgerDB
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	dgbadger "github.com/dgraph-io/badger/v4"
	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/store"
)

var (
	hfPrefix    = []byte("hf/")
	sequenceKey = []byte("seq/hf")
	noPathErr   = errors.New("path is required for persistent database")
)

const sequenceBandwidth = 128

// Config of the badger backend; an empty Path with InMemory false is an error
type Config struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *cm.Logger
}

type badgerLogger struct {
	logger *cm.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Err.Printf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn.Printf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info.Printf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {}

type BadgerStore struct {
	config Config

	mx  sync.Mutex
	db  *dgbadger.DB
	seq *dgbadger.Sequence
}

func New(config Config) *BadgerStore {
	return &BadgerStore{config: config}
}

func key(id lsh.ID) []byte {
	k := make([]byte, len(hfPrefix)+8)
	copy(k, hfPrefix)
	binary.BigEndian.PutUint64(k[len(hfPrefix):], uint64(id))
	return k
}

// Init opens the database; calling it twice is a no-op
func (s *BadgerStore) Init(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.db != nil {
		return nil
	}
	var opts dgbadger.Options
	if s.config.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if s.config.Path == "" {
			return noPathErr
		}
		if err := os.MkdirAll(s.config.Path, 0750); err != nil {
			return fmt.Errorf("create database directory %s: %w", s.config.Path, err)
		}
		opts = dgbadger.DefaultOptions(s.config.Path)
	}
	opts = opts.WithSyncWrites(s.config.SyncWrites).WithNumVersionsToKeep(1)
	if s.config.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: s.config.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := dgbadger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger database: %w", err)
	}
	seq, err := db.GetSequence(sequenceKey, sequenceBandwidth)
	if err != nil {
		db.Close()
		return fmt.Errorf("open id sequence: %w", err)
	}
	s.db, s.seq = db, seq
	return nil
}

func (s *BadgerStore) getDB() (*dgbadger.DB, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.db == nil {
		return nil, store.ErrClosed
	}
	return s.db, nil
}

func (s *BadgerStore) Create(ctx context.Context, hf lsh.HashFunction) (lsh.ID, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	s.mx.Lock()
	n, err := s.seq.Next()
	s.mx.Unlock()
	if err != nil {
		return 0, err
	}
	// sequence starts from 0 while ids start from 1
	hf.ID = lsh.ID(n + 1)
	payload, err := store.Encode(hf)
	if err != nil {
		return 0, err
	}
	err = db.Update(func(txn *dgbadger.Txn) error {
		return txn.Set(key(hf.ID), payload)
	})
	if err != nil {
		return 0, err
	}
	return hf.ID, nil
}

func get(txn *dgbadger.Txn, id lsh.ID) (lsh.HashFunction, error) {
	item, err := txn.Get(key(id))
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return lsh.HashFunction{}, fmt.Errorf("%w: %d", store.ErrNotFound, id)
	}
	if err != nil {
		return lsh.HashFunction{}, err
	}
	var hf lsh.HashFunction
	err = item.Value(func(val []byte) error {
		hf, err = store.Decode(val)
		return err
	})
	return hf, err
}

func (s *BadgerStore) Get(ctx context.Context, id lsh.ID) (lsh.HashFunction, error) {
	db, err := s.getDB()
	if err != nil {
		return lsh.HashFunction{}, err
	}
	var hf lsh.HashFunction
	err = db.View(func(txn *dgbadger.Txn) error {
		hf, err = get(txn, id)
		return err
	})
	return hf, err
}

// UpdateFitness rewrites the record in a single transaction keeping the stored lineage
func (s *BadgerStore) UpdateFitness(ctx context.Context, hf lsh.HashFunction) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(txn *dgbadger.Txn) error {
		old, err := get(txn, hf.ID)
		if err != nil {
			return err
		}
		hf.Father, hf.Mother, hf.Generation = old.Father, old.Mother, old.Generation
		payload, err := store.Encode(hf)
		if err != nil {
			return err
		}
		return txn.Set(key(hf.ID), payload)
	})
}

func (s *BadgerStore) Scan(ctx context.Context, fn func(lsh.HashFunction) error) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.View(func(txn *dgbadger.Txn) error {
		it := txn.NewIterator(dgbadger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(hfPrefix); it.ValidForPrefix(hfPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var hf lsh.HashFunction
			err := it.Item().Value(func(val []byte) error {
				var err error
				hf, err = store.Decode(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(hf); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) collect(ctx context.Context) ([]lsh.HashFunction, error) {
	var out []lsh.HashFunction
	err := s.Scan(ctx, func(hf lsh.HashFunction) error {
		out = append(out, hf)
		return nil
	})
	return out, err
}

func (s *BadgerStore) Untested(ctx context.Context, limit int) ([]lsh.HashFunction, error) {
	all, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}
	return store.Limit(all, limit), nil
}

func (s *BadgerStore) Top(ctx context.Context, n int) ([]lsh.HashFunction, error) {
	all, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}
	return store.Rank(all, n), nil
}

func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	count := 0
	err = db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(hfPrefix); it.ValidForPrefix(hfPrefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *BadgerStore) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.seq.Release()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	s.db, s.seq = nil, nil
	return err
}
