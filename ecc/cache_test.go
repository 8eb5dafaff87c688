package ecc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type memStore struct {
	mu   sync.Mutex
	m    map[string][]byte
	puts int
}

func newMemStore() *memStore { return &memStore{m: make(map[string][]byte)} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (s *memStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	s.puts++
	return nil
}

func TestTableRoundTrip(t *testing.T) {
	for _, kind := range []Kind{KindIdentity, KindHamming, KindExtendedHamming, KindHsiaoConstructed} {
		c := generated(t, kind, 70)
		tbl, err := NewTable(c)
		require.NoError(t, err)
		assert.Equal(t, 2, tbl.WordsPerRow)

		b, err := MarshalTable(tbl)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(b), `{"version":1,"kind":"`+kind.String()+`"`), string(b[:40]))

		back, err := UnmarshalTable(b)
		require.NoError(t, err)
		assert.Equal(t, tbl.Correctable, back.Correctable)
		assert.Equal(t, tbl.CRC32, back.CRC32)

		got, err := back.Code()
		require.NoError(t, err)
		assert.Equal(t, StateReady, got.State())
		h1, _ := c.ParityCheck()
		h2, _ := got.ParityCheck()
		assert.True(t, h1.Equal(h2), "%s", kind)
		g1, _ := c.Generator()
		g2, _ := got.Generator()
		assert.True(t, g1.Equal(g2), "%s", kind)
	}
}

func TestTableChecksum(t *testing.T) {
	tbl, err := NewTable(generated(t, KindHamming, 8))
	require.NoError(t, err)
	row := []byte(tbl.HRowsHex[0])
	if row[0] == '0' {
		row[0] = '1'
	} else {
		row[0] = '0'
	}
	tbl.HRowsHex[0] = string(row)
	_, _, err = tbl.Matrices()
	assert.ErrorIs(t, err, ErrTableChecksum)
}

func TestTableRejectsNonOrthogonal(t *testing.T) {
	tbl, err := NewTable(generated(t, KindHamming, 8))
	require.NoError(t, err)
	hRows, err := parseRows(tbl.HRowsHex, tbl.WordsPerRow)
	require.NoError(t, err)
	gRows, err := parseRows(tbl.GRowsHex, tbl.WordsPerRow)
	require.NoError(t, err)
	gRows[0][0] ^= 1
	tbl.HRowsHex, tbl.GRowsHex, tbl.CRC32, tbl.SHA256 = serializeRows(hRows, gRows, tbl.WordsPerRow)

	_, _, err = tbl.Matrices()
	require.NoError(t, err)
	_, err = tbl.Code()
	assert.ErrorIs(t, err, ErrNotOrthogonal)
}

func TestTableShapeChecks(t *testing.T) {
	tbl, err := NewTable(generated(t, KindHamming, 8))
	require.NoError(t, err)

	bad := *tbl
	bad.WordsPerRow = 3
	_, _, err = bad.Matrices()
	assert.ErrorIs(t, err, ErrTableInvalid)

	bad = *tbl
	bad.GRowsHex = bad.GRowsHex[1:]
	_, _, err = bad.Matrices()
	assert.ErrorIs(t, err, ErrTableInvalid)

	bad = *tbl
	bad.ParityBits = 5
	_, err = bad.Code()
	assert.ErrorIs(t, err, ErrTableInvalid)

	_, err = UnmarshalTable([]byte(`{"version":`))
	assert.ErrorIs(t, err, ErrTableInvalid)
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "ecc/hsiao/32", Key{Kind: "hsiao", DataBits: 32}.String())
}

func TestCacheMissGeneratesAndStores(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	var stored []byte
	store.EXPECT().Get(gomock.Any(), "ecc/hamming/8").Return(nil, ErrCacheMiss)
	store.EXPECT().Put(gomock.Any(), "ecc/hamming/8", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, v []byte) error {
			stored = v
			return nil
		})

	c, err := NewCache(store).Get(context.Background(), KindHamming, 8, false)
	require.NoError(t, err)
	assert.Equal(t, StateReady, c.State())
	require.NotEmpty(t, stored)

	back, err := decodeRecord(stored)
	require.NoError(t, err)
	assert.Equal(t, c.String(), back.String())
}

// cancelOnMessage ends a context once a log record with the given message
// is handled.
type cancelOnMessage struct {
	msg    string
	cancel context.CancelFunc
}

func (h cancelOnMessage) Enabled(context.Context, slog.Level) bool { return true }

func (h cancelOnMessage) Handle(_ context.Context, r slog.Record) error {
	if r.Message == h.msg {
		h.cancel()
	}
	return nil
}

func (h cancelOnMessage) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h cancelOnMessage) WithGroup(string) slog.Handler      { return h }

func TestCacheStoresWhenContextEndsDuringGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(cancelOnMessage{msg: "matrix generation took", cancel: cancel})

	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	var stored []byte
	store.EXPECT().Get(gomock.Any(), "ecc/hamming/16").Return(nil, ErrCacheMiss)
	store.EXPECT().Put(gomock.Any(), "ecc/hamming/16", gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stored = v
			return nil
		})

	c, err := NewCache(store, WithGenerateOptions(WithLogger(logger))).Get(ctx, KindHamming, 16, false)
	require.NoError(t, err)
	require.Error(t, ctx.Err(), "the context should have ended inside Generate")
	assert.Equal(t, StateReady, c.State())
	require.NotEmpty(t, stored)

	back, err := decodeRecord(stored)
	require.NoError(t, err)
	assert.Equal(t, "hamming(21,16)", back.String())
}

func TestCacheHitSkipsGeneration(t *testing.T) {
	rec, err := encodeRecord(generated(t, KindHsiaoConstructed, 16))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "ecc/hsiao_constructed/16").Return(rec, nil)

	c, err := NewCache(store).Get(context.Background(), KindHsiaoConstructed, 16, false)
	require.NoError(t, err)
	assert.Equal(t, StateReady, c.State())
}

func TestCacheCorruptRecordIsRebuilt(t *testing.T) {
	rec, err := encodeRecord(generated(t, KindHamming, 16))
	require.NoError(t, err)
	rec[len(rec)-3] ^= 0xFF

	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "ecc/hamming/16").Return(rec, nil)
	store.EXPECT().Put(gomock.Any(), "ecc/hamming/16", gomock.Any()).Return(nil)

	c, err := NewCache(store).Get(context.Background(), KindHamming, 16, false)
	require.NoError(t, err)
	assert.Equal(t, StateReady, c.State())
}

func TestCacheForceRebuildBypassesRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
	store.EXPECT().Put(gomock.Any(), "ecc/parity/32", gomock.Any()).Return(nil)

	_, err := NewCache(store).Get(context.Background(), KindParity, 32, true)
	require.NoError(t, err)
}

func TestCacheStoreFailures(t *testing.T) {
	boom := errors.New("disk on fire")

	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "ecc/hamming/8").Return(nil, boom)
	_, err := NewCache(store).Get(context.Background(), KindHamming, 8, false)
	assert.ErrorIs(t, err, boom)

	store.EXPECT().Get(gomock.Any(), "ecc/hamming/4").Return(nil, ErrCacheMiss)
	store.EXPECT().Put(gomock.Any(), "ecc/hamming/4", gomock.Any()).Return(boom)
	c, err := NewCache(store).Get(context.Background(), KindHamming, 4, false)
	require.NoError(t, err, "a failed store write still yields the code")
	assert.Equal(t, StateReady, c.State())
}

func TestCacheLookup(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store)
	_, err := cache.Lookup(context.Background(), KindHamming, 8)
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = cache.Get(context.Background(), KindHamming, 8, false)
	require.NoError(t, err)
	c, err := cache.Lookup(context.Background(), KindHamming, 8)
	require.NoError(t, err)
	assert.Equal(t, "hamming(12,8)", c.String())
}

func TestCacheConcurrentRequestsStoreOnce(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store)
	var wg sync.WaitGroup
	codes := make([]*Code, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := cache.Get(context.Background(), KindHsiao, 16, false)
			assert.NoError(t, err)
			codes[i] = c
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, store.puts)
	for _, c := range codes {
		require.NotNil(t, c)
		assert.Equal(t, StateReady, c.State())
	}
}

func TestCacheGenerationFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "ecc/she_li/8").Return(nil, ErrCacheMiss)

	_, err := NewCache(store).Get(ctx, KindSheLi, 8, false)
	assert.ErrorIs(t, err, ErrNoModel)
}
