package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// Load reads key and RLP-decodes it into a T. The boolean is false when the
// entry is absent or lapsed.
func Load[T any](ctx context.Context, s Store, key Key) (T, bool, error) {
	var v T
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := rlp.DecodeBytes(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// Save RLP-encodes v and writes it under key.
func Save[T any](ctx context.Context, s Store, key Key, v T) error {
	raw, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// SaveRetained writes v and renews key's retention window. Every write to a
// persistent entry goes through here so the window is never left stale.
func SaveRetained[T any](ctx context.Context, s Store, key Key, v T, ttl uint64) error {
	if err := Save(ctx, s, key, v); err != nil {
		return err
	}
	if key.Durability() == DurabilityInstance {
		return nil
	}
	return s.ExtendTTL(ctx, key, ttl)
}
