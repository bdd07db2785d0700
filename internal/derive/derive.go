package derive

import (
	"encoding/binary"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/safegate/internal/signer"
)

// maxIndex keeps derivation indexes strictly below the hardened-key
// boundary; the boundary value itself is reserved by BIP-32.
const maxIndex = hdkeychain.HardenedKeyStart - 1

// Deriver deterministically maps a user identity to a child signing key
// under m/44'/60'/0'/0/{index}. The m/44'/60'/0'/0 branch is derived once
// at construction; per-user derivation is a single non-hardened step.
type Deriver struct {
	branch  *hdkeychain.ExtendedKey
	chainID int64
}

// DerivedSigner is the per-user signing key plus its derivation metadata.
type DerivedSigner struct {
	*signer.Signer
	Index    uint32
	Identity string
}

func NewDeriver(mnemonic string, chainID int64) (*Deriver, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, apperrors.New(apperrors.ErrConfiguration, "master mnemonic is not configured", nil)
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, apperrors.New(apperrors.ErrConfiguration, "master mnemonic failed BIP-39 validation", nil)
	}

	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrConfiguration, "failed to build master key from seed", err)
	}

	branch := master
	for _, step := range []uint32{
		hdkeychain.HardenedKeyStart + 44, // purpose
		hdkeychain.HardenedKeyStart + 60, // coin type (ETH)
		hdkeychain.HardenedKeyStart + 0,  // account
		0,                                // external chain
	} {
		branch, err = branch.Derive(step)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrConfiguration, "failed to derive account branch", err)
		}
	}

	return &Deriver{branch: branch, chainID: chainID}, nil
}

// DeriveSigner computes the signer for a user identity. Pure: the same
// identity always yields the same key, with no randomness involved.
func (d *Deriver) DeriveSigner(identity string) (*DerivedSigner, error) {
	normalized, err := NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}

	index := DerivationIndex(normalized)
	child, err := d.branch.Derive(index)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrDerivation, "failed to derive child key at index %d", index)
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, apperrors.New(apperrors.ErrDerivation, "failed to extract private key", err)
	}

	// Rebuild the key via go-ethereum so its Curve is crypto.S256(); with
	// CGO disabled crypto.Sign rejects keys carrying btcec's curve instance
	// even though the key material is identical.
	ecdsaKey, err := crypto.ToECDSA(priv.Serialize())
	if err != nil {
		return nil, apperrors.New(apperrors.ErrDerivation, "failed to convert private key", err)
	}

	s, err := signer.NewSignerFromKey(ecdsaKey, d.chainID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrDerivation, "failed to wrap derived key", err)
	}

	return &DerivedSigner{Signer: s, Index: index, Identity: normalized}, nil
}

// NormalizeIdentity canonicalizes a user identity before hashing. Identities
// are chain addresses, so the canonical form is the lowercase hex address.
func NormalizeIdentity(identity string) (string, error) {
	trimmed := strings.TrimSpace(identity)
	if trimmed == "" {
		return "", apperrors.New(apperrors.ErrDerivation, "user identity is empty", nil)
	}
	if !common.IsHexAddress(trimmed) {
		return "", apperrors.Newf(apperrors.ErrDerivation, "user identity %q is not a chain address", trimmed)
	}
	return strings.ToLower(common.HexToAddress(trimmed).Hex()), nil
}

// DerivationIndex reduces the keccak hash of the canonical identity to a
// non-hardened BIP-32 index.
func DerivationIndex(normalized string) uint32 {
	hash := crypto.Keccak256([]byte(normalized))
	return binary.BigEndian.Uint32(hash[:4]) % maxIndex
}
