package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Kind tags the variant of a Key.
type Kind uint8

const (
	KindAdmin Kind = iota + 1
	KindUserIdentity
	KindUserDocument
	KindUserDocCount
	KindUserPrepaidCredits
	KindTotalVerifications
	KindNullifierUsed
	KindAssetBalance
	KindAssetAllowance
	KindAuthNonce
)

var kindNames = map[Kind]string{
	KindAdmin:              "admin",
	KindUserIdentity:       "user_identity",
	KindUserDocument:       "user_document",
	KindUserDocCount:       "user_doc_count",
	KindUserPrepaidCredits: "user_prepaid_credits",
	KindTotalVerifications: "total_verifications",
	KindNullifierUsed:      "nullifier_used",
	KindAssetBalance:       "asset_balance",
	KindAssetAllowance:     "asset_allowance",
	KindAuthNonce:          "auth_nonce",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Durability decides whether an entry is subject to a retention window.
type Durability uint8

const (
	// DurabilityInstance entries live as long as the registry itself.
	DurabilityInstance Durability = iota
	// DurabilityPersistent entries expire unless their retention is extended.
	DurabilityPersistent
)

// Key is the storage key sum type. Only the fields relevant to Kind are set,
// so two keys are equal exactly when they name the same logical entry and a
// Key can be used directly as a map key.
type Key struct {
	Kind  Kind
	Addr  common.Address
	Peer  common.Address
	Asset common.Address
	Index uint32
	Token common.Hash
}

func AdminKey() Key { return Key{Kind: KindAdmin} }

func UserIdentityKey(user common.Address) Key {
	return Key{Kind: KindUserIdentity, Addr: user}
}

func UserDocumentKey(user common.Address, index uint32) Key {
	return Key{Kind: KindUserDocument, Addr: user, Index: index}
}

func UserDocCountKey(user common.Address) Key {
	return Key{Kind: KindUserDocCount, Addr: user}
}

func UserPrepaidCreditsKey(user common.Address) Key {
	return Key{Kind: KindUserPrepaidCredits, Addr: user}
}

func TotalVerificationsKey() Key { return Key{Kind: KindTotalVerifications} }

func NullifierUsedKey(nullifier common.Hash) Key {
	return Key{Kind: KindNullifierUsed, Token: nullifier}
}

func AssetBalanceKey(asset, holder common.Address) Key {
	return Key{Kind: KindAssetBalance, Asset: asset, Addr: holder}
}

func AssetAllowanceKey(asset, owner, spender common.Address) Key {
	return Key{Kind: KindAssetAllowance, Asset: asset, Addr: owner, Peer: spender}
}

// AuthNonceKey holds the next proof nonce expected from signer.
func AuthNonceKey(signer common.Address) Key {
	return Key{Kind: KindAuthNonce, Addr: signer}
}

// Durability reports the retention class of the entry k names.
func (k Key) Durability() Durability {
	switch k.Kind {
	case KindAdmin, KindTotalVerifications, KindAssetBalance, KindAssetAllowance, KindAuthNonce:
		return DurabilityInstance
	default:
		return DurabilityPersistent
	}
}

// String renders the key in the stable textual form used by the Redis and
// Postgres hosts.
func (k Key) String() string {
	switch k.Kind {
	case KindAdmin, KindTotalVerifications:
		return k.Kind.String()
	case KindUserIdentity, KindUserDocCount, KindUserPrepaidCredits, KindAuthNonce:
		return fmt.Sprintf("%s:%s", k.Kind, k.Addr.Hex())
	case KindUserDocument:
		return fmt.Sprintf("%s:%s:%d", k.Kind, k.Addr.Hex(), k.Index)
	case KindNullifierUsed:
		return fmt.Sprintf("%s:%s", k.Kind, k.Token.Hex())
	case KindAssetBalance:
		return fmt.Sprintf("%s:%s:%s", k.Kind, k.Asset.Hex(), k.Addr.Hex())
	case KindAssetAllowance:
		return fmt.Sprintf("%s:%s:%s:%s", k.Kind, k.Asset.Hex(), k.Addr.Hex(), k.Peer.Hex())
	default:
		return k.Kind.String()
	}
}
