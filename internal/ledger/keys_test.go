package ledger

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	user  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	other = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestKeysAreStructurallyComparable(t *testing.T) {
	seen := map[Key]int{
		UserDocumentKey(user, 0): 1,
		UserDocumentKey(user, 1): 2,
		UserIdentityKey(user):    3,
	}

	assert.Equal(t, 1, seen[UserDocumentKey(user, 0)])
	assert.Equal(t, 2, seen[UserDocumentKey(user, 1)])
	assert.Equal(t, 3, seen[UserIdentityKey(user)])
	assert.NotContains(t, seen, UserIdentityKey(other))
	assert.NotEqual(t, UserDocCountKey(user), UserPrepaidCreditsKey(user))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "admin", AdminKey().String())
	assert.Equal(t, "total_verifications", TotalVerificationsKey().String())
	assert.Equal(t, "user_document:"+user.Hex()+":7", UserDocumentKey(user, 7).String())
	assert.Equal(t, "nullifier_used:"+common.HexToHash("0x02").Hex(), NullifierUsedKey(common.HexToHash("0x02")).String())
	assert.Equal(t, "asset_allowance:"+other.Hex()+":"+user.Hex()+":"+other.Hex(),
		AssetAllowanceKey(other, user, other).String())
}

func TestDurability(t *testing.T) {
	assert.Equal(t, DurabilityInstance, AdminKey().Durability())
	assert.Equal(t, DurabilityInstance, TotalVerificationsKey().Durability())
	assert.Equal(t, DurabilityInstance, AssetBalanceKey(other, user).Durability())
	assert.Equal(t, DurabilityInstance, AuthNonceKey(user).Durability())
	assert.Equal(t, DurabilityPersistent, NullifierUsedKey(common.Hash{}).Durability())
	assert.Equal(t, DurabilityPersistent, UserDocumentKey(user, 0).Durability())
}

type mapStore struct {
	values   map[Key][]byte
	extended map[Key]uint64
}

func newMapStore() *mapStore {
	return &mapStore{values: map[Key][]byte{}, extended: map[Key]uint64{}}
}

func (m *mapStore) Get(_ context.Context, key Key) ([]byte, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key Key, value []byte) error {
	m.values[key] = value
	return nil
}

func (m *mapStore) Has(_ context.Context, key Key) (bool, error) {
	_, ok := m.values[key]
	return ok, nil
}

func (m *mapStore) ExtendTTL(_ context.Context, key Key, ttl uint64) error {
	m.extended[key] = ttl
	return nil
}

type sample struct {
	Hash  common.Hash
	Count uint32
	Flag  bool
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()

	_, ok, err := Load[sample](ctx, store, UserIdentityKey(user))
	require.NoError(t, err)
	assert.False(t, ok)

	in := sample{Hash: common.HexToHash("0xff"), Count: 3, Flag: true}
	require.NoError(t, SaveRetained(ctx, store, UserIdentityKey(user), in, 42))
	require.NoError(t, SaveRetained(ctx, store, TotalVerificationsKey(), uint32(9), 42))

	out, ok, err := Load[sample](ctx, store, UserIdentityKey(user))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)

	assert.Equal(t, uint64(42), store.extended[UserIdentityKey(user)])
	assert.NotContains(t, store.extended, TotalVerificationsKey())
}

func TestLoadCorruptEntry(t *testing.T) {
	store := newMapStore()
	store.values[UserDocCountKey(user)] = []byte{0xff, 0x00}

	_, _, err := Load[uint32](context.Background(), store, UserDocCountKey(user))
	assert.ErrorContains(t, err, "decode user_doc_count")
}
