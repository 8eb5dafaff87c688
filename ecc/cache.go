package ecc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/eccmem/eccmem/internal/tablewire"
)

// ErrCacheMiss is returned by a Store that holds no value for a key.
var ErrCacheMiss = errors.New("ecc: cache miss")

// Key identifies a cached code.
type Key struct {
	Kind     string
	DataBits int
}

func (k Key) String() string { return fmt.Sprintf("ecc/%s/%d", k.Kind, k.DataBits) }

// Store is a byte-oriented key/value backend for generated tables.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Cache returns ready codes, generating and storing them on a miss.
// Concurrent requests for the same key share one generation.
type Cache struct {
	store Store
	opts  []GenerateOption
	log   *slog.Logger
	group singleflight.Group
}

type CacheOption func(*Cache)

func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithGenerateOptions forwards options to Code.Generate on a miss.
func WithGenerateOptions(opts ...GenerateOption) CacheOption {
	return func(c *Cache) { c.opts = append(c.opts, opts...) }
}

func NewCache(store Store, opts ...CacheOption) *Cache {
	c := &Cache{store: store, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns a ready code. With force set the stored table is ignored, but
// the rebuilt one is still stored.
func (c *Cache) Get(ctx context.Context, kind Kind, dataBits int, force bool) (*Code, error) {
	key := Key{Kind: kind.String(), DataBits: dataBits}
	flight := key.String()
	if force {
		flight += "#force"
	}
	v, err, _ := c.group.Do(flight, func() (interface{}, error) {
		return c.load(ctx, kind, key, force)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Code), nil
}

// Lookup returns the stored code without generating one.
func (c *Cache) Lookup(ctx context.Context, kind Kind, dataBits int) (*Code, error) {
	key := Key{Kind: kind.String(), DataBits: dataBits}
	rec, err := c.store.Get(ctx, key.String())
	if err != nil {
		return nil, err
	}
	return decodeRecord(rec)
}

func (c *Cache) load(ctx context.Context, kind Kind, key Key, force bool) (*Code, error) {
	if !force {
		rec, err := c.store.Get(ctx, key.String())
		switch {
		case err == nil:
			code, derr := decodeRecord(rec)
			if derr == nil {
				c.log.Debug("cache hit", slog.String("key", key.String()))
				return code, nil
			}
			c.log.Warn("discarding unusable cached table", slog.String("key", key.String()), slog.Any("error", derr))
		case errors.Is(err, ErrCacheMiss):
			c.log.Debug("cache miss", slog.String("key", key.String()))
		default:
			return nil, fmt.Errorf("cache get %s: %w", key, err)
		}
	}

	code, err := New(kind, key.DataBits)
	if err != nil {
		return nil, err
	}
	opts := append([]GenerateOption{WithLogger(c.log)}, c.opts...)
	if err := code.Generate(ctx, opts...); err != nil {
		return nil, err
	}
	rec, err := encodeRecord(code)
	if err != nil {
		return nil, err
	}
	// a search that ran to its deadline still yields a table worth keeping
	if err := c.store.Put(context.WithoutCancel(ctx), key.String(), rec); err != nil {
		c.log.Warn("storing generated table failed", slog.String("key", key.String()), slog.Any("error", err))
	}
	return code, nil
}

func encodeRecord(c *Code) ([]byte, error) {
	t, err := NewTable(c)
	if err != nil {
		return nil, err
	}
	payload, err := MarshalTable(t)
	if err != nil {
		return nil, err
	}
	return tablewire.Frame(tablewire.Header{
		KindID:     uint8(c.Kind()),
		DataBits:   uint16(c.DataBits()),
		ParityBits: uint16(c.ParityBits()),
	}, payload), nil
}

func decodeRecord(rec []byte) (*Code, error) {
	h, payload, err := tablewire.Unframe(rec)
	if err != nil {
		return nil, err
	}
	t, err := UnmarshalTable(payload)
	if err != nil {
		return nil, err
	}
	if t.Kind != Kind(h.KindID).String() || t.DataBits != int(h.DataBits) || t.ParityBits != int(h.ParityBits) {
		return nil, fmt.Errorf("%w: header describes %s(%d,%d)", ErrTableInvalid, Kind(h.KindID), h.DataBits, h.ParityBits)
	}
	return t.Code()
}
