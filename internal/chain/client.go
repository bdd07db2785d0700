package chain

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
)

// safeOwnerABI covers the OwnerManager read surface of a Gnosis Safe.
const safeOwnerABI = `[
  {"constant":true,"inputs":[],"name":"getOwners","outputs":[{"name":"","type":"address[]"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"getThreshold","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Client is the read-only chain collaborator: bytecode presence and Safe
// owner-set queries over a JSON-RPC endpoint. The connection is dialed
// lazily so construction never touches the network.
type Client struct {
	rpcURL string
	abi    abi.ABI

	mu  sync.Mutex
	eth *ethclient.Client
}

func NewClient(rpcURL string) (*Client, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		return nil, apperrors.New(apperrors.ErrConfiguration, "chain rpc url is not configured", nil)
	}
	parsed, err := abi.JSON(strings.NewReader(safeOwnerABI))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to parse safe abi", err)
	}
	return &Client{rpcURL: rpcURL, abi: parsed}, nil
}

func (c *Client) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	eth, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}
	code, err := eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, apperrors.NewTransport("eth_getCode failed", err)
	}
	return code, nil
}

func (c *Client) GetOwners(ctx context.Context, wallet common.Address) ([]common.Address, error) {
	out, err := c.call(ctx, wallet, "getOwners")
	if err != nil {
		return nil, err
	}
	owners, ok := out[0].([]common.Address)
	if !ok {
		return nil, apperrors.NewTransport("unexpected getOwners return shape", nil)
	}
	return owners, nil
}

func (c *Client) GetThreshold(ctx context.Context, wallet common.Address) (int, error) {
	out, err := c.call(ctx, wallet, "getThreshold")
	if err != nil {
		return 0, err
	}
	threshold, ok := out[0].(*big.Int)
	if !ok {
		return 0, apperrors.NewTransport("unexpected getThreshold return shape", nil)
	}
	return int(threshold.Int64()), nil
}

func (c *Client) call(ctx context.Context, contract common.Address, method string) ([]interface{}, error) {
	eth, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.abi.Pack(method)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to pack call data", err)
	}
	msg := ethereum.CallMsg{To: &contract, Data: data}
	raw, err := eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, apperrors.NewTransport("rpc call failed", err)
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, apperrors.NewTransport("failed to decode call result", err)
	}
	if len(out) == 0 {
		return nil, apperrors.NewTransport("empty call result", nil)
	}
	return out, nil
}

// Close releases the underlying RPC connection if one was dialed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
}

func (c *Client) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		return c.eth, nil
	}
	eth, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, apperrors.NewTransport("failed to connect rpc", err)
	}
	c.eth = eth
	return c.eth, nil
}
