package chain

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/safegate/internal/signer"
)

const exchangeNonceABI = `[
  {"constant":true,"inputs":[{"name":"","type":"address"}],"name":"nonces","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// NonceCache caches the CTF Exchange's per-maker order nonce. Orders must
// carry the value currently stored in the exchange contract; the cache is
// read-mostly and only invalidated after a cancel-all.
type NonceCache struct {
	client   *Client
	exchange common.Address
	abi      abi.ABI

	mu     sync.RWMutex
	nonces map[common.Address]*big.Int
}

func NewNonceCache(client *Client) (*NonceCache, error) {
	parsed, err := abi.JSON(strings.NewReader(exchangeNonceABI))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to parse exchange abi", err)
	}
	return &NonceCache{
		client:   client,
		exchange: common.HexToAddress(signer.ExchangeContractAddress),
		abi:      parsed,
		nonces:   make(map[common.Address]*big.Int),
	}, nil
}

// ExchangeNonce returns the cached nonce for maker, fetching it from the
// contract on first use.
func (n *NonceCache) ExchangeNonce(ctx context.Context, maker common.Address) (*big.Int, error) {
	n.mu.RLock()
	cached, ok := n.nonces[maker]
	n.mu.RUnlock()
	if ok {
		return cached, nil
	}
	return n.Sync(ctx, maker)
}

// Sync forces a fetch of the exchange nonce from the contract.
func (n *NonceCache) Sync(ctx context.Context, maker common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	eth, err := n.client.getClient(ctx)
	if err != nil {
		return nil, err
	}
	data, err := n.abi.Pack("nonces", maker)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to pack nonces call", err)
	}
	msg := ethereum.CallMsg{To: &n.exchange, Data: data}
	raw, err := eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, apperrors.NewTransport("failed to fetch exchange nonce", err)
	}

	val := new(big.Int).SetBytes(raw)
	n.nonces[maker] = val
	return val, nil
}

// Invalidate bumps the cached nonce after a cancel-all so new orders pick
// up the next value before the transaction is mined.
func (n *NonceCache) Invalidate(maker common.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if val, ok := n.nonces[maker]; ok {
		n.nonces[maker] = new(big.Int).Add(val, big.NewInt(1))
	}
}
