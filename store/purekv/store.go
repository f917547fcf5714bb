// Package purekv keeps the population in a pure-kv server
package purekv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	pkv "github.com/gasparian/pure-kv-go/client"
	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/store"
)

const bucketName = "hfs"

var unexpectedValueErr = errors.New("unexpected value type in pure-kv bucket")

type Config struct {
	Address string
	// Timeout of a single rpc, seconds
	Timeout int
}

// timeoutMillis converts the timeout into the unit the pure-kv client expects
func (c Config) timeoutMillis() int {
	return c.Timeout * 1000
}

// PureKvStore talks to the server through a single client; ids are
// assigned locally and restored from the bucket contents on Init
type PureKvStore struct {
	mx     sync.Mutex
	config Config
	client *pkv.Client
	lastID lsh.ID
	count  int
}

func New(config Config) *PureKvStore {
	return &PureKvStore{
		config: config,
		client: pkv.New(config.Address, config.timeoutMillis()),
	}
}

func (p *PureKvStore) Init(ctx context.Context) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if err := p.client.Open(); err != nil {
		return err
	}
	if err := p.client.Create(bucketName); err != nil {
		return err
	}
	p.lastID, p.count = 0, 0
	return p.iterate(ctx, func(hf lsh.HashFunction) error {
		p.count++
		if hf.ID > p.lastID {
			p.lastID = hf.ID
		}
		return nil
	})
}

func (p *PureKvStore) Close() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.client.Close()
	return nil
}

// Clear drops the population bucket and recreates it empty
func (p *PureKvStore) Clear() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if err := p.client.Destroy(bucketName); err != nil {
		return err
	}
	p.lastID, p.count = 0, 0
	return p.client.Create(bucketName)
}

func toBytes(val interface{}) ([]byte, error) {
	switch v := val.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("%w: %T", unexpectedValueErr, val)
	}
}

func (p *PureKvStore) set(hf lsh.HashFunction) error {
	payload, err := store.Encode(hf)
	if err != nil {
		return err
	}
	return p.client.Set(bucketName, strconv.FormatUint(uint64(hf.ID), 10), payload)
}

func (p *PureKvStore) get(id lsh.ID) (lsh.HashFunction, error) {
	val, ok := p.client.Get(bucketName, strconv.FormatUint(uint64(id), 10))
	if !ok {
		return lsh.HashFunction{}, fmt.Errorf("%w: %d", store.ErrNotFound, id)
	}
	payload, err := toBytes(val)
	if err != nil {
		return lsh.HashFunction{}, err
	}
	return store.Decode(payload)
}

func (p *PureKvStore) Create(ctx context.Context, hf lsh.HashFunction) (lsh.ID, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	hf.ID = p.lastID + 1
	if err := p.set(hf); err != nil {
		return 0, err
	}
	p.lastID = hf.ID
	p.count++
	return hf.ID, nil
}

func (p *PureKvStore) Get(ctx context.Context, id lsh.ID) (lsh.HashFunction, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.get(id)
}

func (p *PureKvStore) UpdateFitness(ctx context.Context, hf lsh.HashFunction) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	old, err := p.get(hf.ID)
	if err != nil {
		return err
	}
	hf.Father, hf.Mother, hf.Generation = old.Father, old.Mother, old.Generation
	return p.set(hf)
}

// iterate walks the bucket with the server side iterator; must be called under the lock
func (p *PureKvStore) iterate(ctx context.Context, fn func(lsh.HashFunction) error) error {
	if err := p.client.MakeIterator(bucketName); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, val, err := p.client.Next(bucketName)
		if val == nil || err != nil {
			return nil
		}
		payload, err := toBytes(val)
		if err != nil {
			return err
		}
		hf, err := store.Decode(payload)
		if err != nil {
			return err
		}
		if err := fn(hf); err != nil {
			return err
		}
	}
}

func (p *PureKvStore) collect(ctx context.Context) ([]lsh.HashFunction, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	var out []lsh.HashFunction
	err := p.iterate(ctx, func(hf lsh.HashFunction) error {
		out = append(out, hf)
		return nil
	})
	return out, err
}

func (p *PureKvStore) Untested(ctx context.Context, limit int) ([]lsh.HashFunction, error) {
	all, err := p.collect(ctx)
	if err != nil {
		return nil, err
	}
	return store.Limit(all, limit), nil
}

func (p *PureKvStore) Top(ctx context.Context, n int) ([]lsh.HashFunction, error) {
	all, err := p.collect(ctx)
	if err != nil {
		return nil, err
	}
	return store.Rank(all, n), nil
}

func (p *PureKvStore) Count(ctx context.Context) (int, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.count, nil
}

// Scan visits the bucket ordered by id; fn runs outside of the client lock
func (p *PureKvStore) Scan(ctx context.Context, fn func(lsh.HashFunction) error) error {
	all, err := p.collect(ctx)
	if err != nil {
		return err
	}
	store.SortByID(all)
	for _, hf := range all {
		if err := fn(hf); err != nil {
			return err
		}
	}
	return nil
}
