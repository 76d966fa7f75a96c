package main

import (
	"context"
	"fmt"

	"github.com/formulahunter/recordsync-go/internal/cache/sqlitekv"
	"github.com/formulahunter/recordsync-go/internal/codec"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
)

// authoritativeDataKey is the sqlitekv row holding the authoritative record
// set's canonical JSON. Unlike the client's K-data, this is stored in the
// clear: the crypto box (C3) protects a record owner's cache at rest, not
// the shared authoritative copy the daemon itself is trusted to hold.
const authoritativeDataKey = "authoritative-data"

// loadStore populates store from the persisted authoritative snapshot, if
// one exists.
func loadStore(ctx context.Context, kv *sqlitekv.Store, store *recordstore.Store) error {
	raw, found, err := kv.Get(ctx, authoritativeDataKey)
	if err != nil {
		return fmt.Errorf("recordsyncd: reading authoritative snapshot: %w", err)
	}

	if !found {
		return nil
	}

	value, err := codec.Parse([]byte(raw))
	if err != nil {
		return fmt.Errorf("recordsyncd: parsing authoritative snapshot: %w", err)
	}

	if err := store.LoadFromCanonical(value); err != nil {
		return fmt.Errorf("recordsyncd: loading authoritative snapshot: %w", err)
	}

	return nil
}

// persistStore writes the current authoritative record set back to storage.
func persistStore(ctx context.Context, kv *sqlitekv.Store, store *recordstore.Store) error {
	top, err := store.ToCanonical()
	if err != nil {
		return err
	}

	data, err := codec.Serialize(top)
	if err != nil {
		return err
	}

	if err := kv.Set(ctx, authoritativeDataKey, string(data)); err != nil {
		return fmt.Errorf("recordsyncd: writing authoritative snapshot: %w", err)
	}

	return nil
}
