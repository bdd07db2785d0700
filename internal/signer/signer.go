package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

type Signer struct {
	key             *ecdsa.PrivateKey
	address         common.Address
	chainID         *big.Int
	domainSeparator common.Hash
	negRiskSeparator common.Hash
}

// NewSigner creates an EIP-712 signer from a hex-encoded private key.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	return NewSignerFromKey(key, chainID)
}

// NewSignerFromKey wraps an already-derived ECDSA key with pre-calculated
// domain separators for both exchange deployments.
func NewSignerFromKey(key *ecdsa.PrivateKey, chainID int64) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("private key is required")
	}
	publicKey, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	address := crypto.PubkeyToAddress(*publicKey)

	return &Signer{
		key:              key,
		address:          address,
		chainID:          big.NewInt(chainID),
		domainSeparator:  domainSeparator(chainID, ExchangeContractAddress),
		negRiskSeparator: domainSeparator(chainID, NegRiskExchangeContractAddress),
	}, nil
}

// domainSeparator computes
// keccak256(abi.encode(typeHash, keccak256(name), keccak256(version), chainId, verifyingContract)).
// Encoded by hand; every field occupies a 32-byte slot.
func domainSeparator(chainID int64, verifyingContract string) common.Hash {
	domainNameHash := crypto.Keccak256Hash([]byte(EIP712DomainName))
	versionHash := crypto.Keccak256Hash([]byte(EIP712DomainVersion))

	data := make([]byte, 32*5)
	copy(data[0:32], EIP712DomainTypeHash.Bytes())
	copy(data[32:64], domainNameHash.Bytes())
	copy(data[64:96], versionHash.Bytes())
	copy(data[96:128], math.U256Bytes(big.NewInt(chainID)))
	// address occupies the last 20 bytes of its slot
	copy(data[128+12:160], common.HexToAddress(verifyingContract).Bytes())

	return crypto.Keccak256Hash(data)
}

// SignOrder calculates the EIP-712 digest for the order and signs it.
// Set negRisk when the order targets the neg-risk exchange deployment.
func (s *Signer) SignOrder(order *Order, negRisk bool) (string, error) {
	hashStruct, err := s.hashOrder(order)
	if err != nil {
		return "", err
	}

	separator := s.domainSeparator
	if negRisk {
		separator = s.negRiskSeparator
	}

	// keccak256("\x19\x01" || domainSeparator || hashStruct)
	finalHash := crypto.Keccak256([]byte{0x19, 0x01}, separator.Bytes(), hashStruct)

	signature, err := crypto.Sign(finalHash, s.key)
	if err != nil {
		return "", err
	}

	// crypto.Sign returns V as 0/1; the exchange expects 27/28
	if signature[64] < 27 {
		signature[64] += 27
	}

	return "0x" + common.Bytes2Hex(signature), nil
}

// hashOrder calculates hashStruct(order): keccak256(abi.encode(typeHash, fields...))
func (s *Signer) hashOrder(order *Order) ([]byte, error) {
	// typeHash + 12 fields = 13 slots
	data := make([]byte, 32*13)

	copy(data[0:32], OrderTypeHash.Bytes())
	if order.Salt != nil {
		copy(data[32:64], math.U256Bytes(order.Salt))
	}
	copy(data[64+12:96], order.Maker.Bytes())
	copy(data[96+12:128], order.Signer.Bytes())
	copy(data[128+12:160], order.Taker.Bytes())
	if order.TokenID != nil {
		copy(data[160:192], math.U256Bytes(order.TokenID))
	}
	if order.MakerAmount != nil {
		copy(data[192:224], math.U256Bytes(order.MakerAmount))
	}
	if order.TakerAmount != nil {
		copy(data[224:256], math.U256Bytes(order.TakerAmount))
	}
	if order.Expiration != nil {
		copy(data[256:288], math.U256Bytes(order.Expiration))
	}
	if order.Nonce != nil {
		copy(data[288:320], math.U256Bytes(order.Nonce))
	}
	if order.FeeRateBps != nil {
		copy(data[320:352], math.U256Bytes(order.FeeRateBps))
	}
	copy(data[352:384], math.U256Bytes(big.NewInt(int64(order.Side))))
	copy(data[384:416], math.U256Bytes(big.NewInt(int64(order.SignatureType))))

	return crypto.Keccak256(data), nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) ChainID() *big.Int {
	return s.chainID
}
