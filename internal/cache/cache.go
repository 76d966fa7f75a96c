// Package cache implements the local persistence layer (spec.md §4.4, C4):
// an encrypted <prefix>-data blob holding the canonical record set, and a
// plain <prefix>-sync key holding the last successful sync timestamp, over
// a pluggable host key-value store, namespaced by a configured prefix so
// more than one record-store namespace can share one host store.
package cache

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/formulahunter/recordsync-go/internal/cryptobox"
	"github.com/formulahunter/recordsync-go/internal/recordhash"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
)

// DefaultPrefix is the namespace prefix New falls back to when none is
// given, matching config.CacheConfig's own default.
const DefaultPrefix = "K"

// KVStore is the host persistence abstraction spec.md §5 assumes is
// single-process. sqlitekv.Store is the reference implementation; any
// store with this shape can back a LocalCache.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// LocalCache is the encrypted local record cache: C3 (cryptobox) wrapped
// around a KVStore, namespaced by prefix (spec.md §4.4: "Two keys per
// namespace prefix K").
type LocalCache struct {
	kv       KVStore
	password string
	logger   *slog.Logger

	keyData string
	keySync string
}

// New wraps kv as an encrypted local cache keyed by password, with its two
// keys namespaced under prefix ("<prefix>-data", "<prefix>-sync"). An empty
// prefix falls back to DefaultPrefix. A nil logger falls back to
// slog.Default().
func New(kv KVStore, password string, logger *slog.Logger, prefix string) *LocalCache {
	if logger == nil {
		logger = slog.Default()
	}

	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &LocalCache{
		kv:       kv,
		password: password,
		logger:   logger,
		keyData:  prefix + "-data",
		keySync:  prefix + "-sync",
	}
}

// ReadData returns the decrypted record-set bytes and their SHA-256 hash.
// found is false when the data key has never been written — a recoverable
// condition per spec.md §4.7's init() discussion, not an error.
func (c *LocalCache) ReadData(ctx context.Context) (plaintext []byte, hash string, found bool, err error) {
	raw, found, err := c.kv.Get(ctx, c.keyData)
	if err != nil {
		return nil, "", false, newErr("read", c.keyData, err)
	}

	if !found {
		return nil, "", false, nil
	}

	sealed, err := cryptobox.UnmarshalSealed([]byte(raw))
	if err != nil {
		return nil, "", false, err
	}

	plaintext, err = cryptobox.Decrypt(sealed, c.password)
	if err != nil {
		return nil, "", false, err
	}

	return plaintext, recordhash.Sum(plaintext), true, nil
}

// WriteData encrypts plaintext and writes it to the data key, returning the
// hash of the plaintext (not the ciphertext) — the one meaningful for
// hash-compare against the authoritative store (spec.md §9 design note 4).
func (c *LocalCache) WriteData(ctx context.Context, plaintext []byte) (hash string, err error) {
	sealed, err := cryptobox.Encrypt(plaintext, c.password)
	if err != nil {
		return "", err
	}

	data, err := sealed.MarshalCanonical()
	if err != nil {
		return "", err
	}

	if err := c.kv.Set(ctx, c.keyData, string(data)); err != nil {
		return "", newErr("write", c.keyData, err)
	}

	c.logger.Debug("wrote local cache", slog.Int("bytes", len(plaintext)))

	return recordhash.Sum(plaintext), nil
}

// ReadSync returns the last persisted LastSync value. found is false when
// no sync has ever completed.
func (c *LocalCache) ReadSync(ctx context.Context) (recordstore.Timestamp, bool, error) {
	raw, found, err := c.kv.Get(ctx, c.keySync)
	if err != nil {
		return 0, false, newErr("read", c.keySync, err)
	}

	if !found {
		return 0, false, nil
	}

	n, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		return 0, false, newErr("read", c.keySync, parseErr)
	}

	return recordstore.Timestamp(n), true, nil
}

// WriteSync persists ts as the new LastSync value.
func (c *LocalCache) WriteSync(ctx context.Context, ts recordstore.Timestamp) error {
	if err := c.kv.Set(ctx, c.keySync, strconv.FormatInt(int64(ts), 10)); err != nil {
		return newErr("write", c.keySync, err)
	}

	c.logger.Debug("advanced last sync", slog.Int64("last_sync", int64(ts)))

	return nil
}
