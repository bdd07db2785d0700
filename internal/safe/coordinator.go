package safe

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/GoPolymarket/safegate/internal/model"
	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/safegate/internal/pkg/logger"
	"github.com/GoPolymarket/safegate/internal/pkg/metrics"
)

// ChainClient is the read-only chain collaborator the coordinator needs.
type ChainClient interface {
	GetCode(ctx context.Context, addr common.Address) ([]byte, error)
	GetOwners(ctx context.Context, wallet common.Address) ([]common.Address, error)
	GetThreshold(ctx context.Context, wallet common.Address) (int, error)
}

// RelayRequest is an encoded wallet transaction handed to the relay.
type RelayRequest struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data []byte         `json:"data"`
}

// RelayStatus is the relay's view of a submitted transaction.
type RelayStatus struct {
	Executed      bool   `json:"executed"`
	Successful    bool   `json:"successful"`
	Confirmations int    `json:"confirmations"`
	TxHash        string `json:"tx_hash"`
}

// TransactionRelay submits wallet transactions and reports their fate.
type TransactionRelay interface {
	Submit(ctx context.Context, req RelayRequest) (string, error)
	GetStatus(ctx context.Context, relayTxID string) (*RelayStatus, error)
}

const ownerManagerABI = `[
  {"inputs":[{"name":"owner","type":"address"},{"name":"_threshold","type":"uint256"}],"name":"addOwnerWithThreshold","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

type Options struct {
	PollInterval     time.Duration
	Timeout          time.Duration
	TransientRetries int
}

// Coordinator makes a derived signer a co-owner of a user's funding
// wallet, exactly once. It does not deduplicate concurrent authorization
// of the same wallet; callers must check IsOwner first and serialize
// per-wallet authorization themselves.
type Coordinator struct {
	predictor *Predictor
	chain     ChainClient
	relay     TransactionRelay
	abi       abi.ABI

	pollInterval time.Duration
	timeout      time.Duration
	retries      int
}

func NewCoordinator(predictor *Predictor, chain ChainClient, relay TransactionRelay, opts Options) (*Coordinator, error) {
	parsed, err := abi.JSON(strings.NewReader(ownerManagerABI))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to parse owner manager abi", err)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.TransientRetries < 0 {
		opts.TransientRetries = 0
	}
	return &Coordinator{
		predictor:    predictor,
		chain:        chain,
		relay:        relay,
		abi:          parsed,
		pollInterval: opts.PollInterval,
		timeout:      opts.Timeout,
		retries:      opts.TransientRetries,
	}, nil
}

// PredictWalletAddress computes the user's funding-wallet address for the
// derived signer as sole owner with threshold 1.
func (c *Coordinator) PredictWalletAddress(owner common.Address) (common.Address, error) {
	return c.predictor.Predict(owner)
}

// IsDeployed reports whether contract bytecode exists at addr.
func (c *Coordinator) IsDeployed(ctx context.Context, addr common.Address) (bool, error) {
	code, err := c.chain.GetCode(ctx, addr)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// IsOwner reports whether owner is currently in the wallet's owner set.
// Callers use this before AuthorizeSigner to keep authorization idempotent.
func (c *Coordinator) IsOwner(ctx context.Context, wallet, owner common.Address) (bool, error) {
	owners, err := c.chain.GetOwners(ctx, wallet)
	if err != nil {
		return false, err
	}
	for _, o := range owners {
		if o == owner {
			return true, nil
		}
	}
	return false, nil
}

// AuthorizeSigner submits addOwnerWithThreshold(newOwner, 1) through the
// relay and polls until the transaction executes or the wall-clock timeout
// elapses. Transient poll errors are retried a bounded number of times; a
// relay-reported revert is terminal.
func (c *Coordinator) AuthorizeSigner(ctx context.Context, wallet, newOwner common.Address) (*model.AuthorizationTransaction, error) {
	data, err := c.abi.Pack("addOwnerWithThreshold", newOwner, big.NewInt(1))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to encode owner-add call", err)
	}

	relayTxID, err := c.relay.Submit(ctx, RelayRequest{From: wallet, To: wallet, Data: data})
	if err != nil {
		metrics.AuthorizationsTotal.WithLabelValues("submit_failed").Inc()
		return nil, apperrors.Wrap(err)
	}

	tx := &model.AuthorizationTransaction{
		RelayTxID: relayTxID,
		Wallet:    wallet.Hex(),
		NewOwner:  newOwner.Hex(),
		Threshold: 1,
		Status:    model.AuthPending,
	}
	logger.Info("authorization submitted", "relay_tx_id", relayTxID, "wallet", tx.Wallet, "new_owner", tx.NewOwner)

	deadline := time.Now().Add(c.timeout)
	transientFailures := 0

	for {
		if time.Now().After(deadline) {
			metrics.AuthorizationsTotal.WithLabelValues("timeout").Inc()
			tx.Status = model.AuthPending
			return tx, apperrors.Newf(apperrors.ErrAuthorizationTimeout,
				"authorization %s not executed within %s", relayTxID, c.timeout)
		}

		select {
		case <-ctx.Done():
			return tx, apperrors.New(apperrors.ErrAuthorizationTimeout, "authorization polling cancelled", ctx.Err())
		case <-time.After(c.pollInterval):
		}

		status, err := c.relay.GetStatus(ctx, relayTxID)
		if err != nil {
			transientFailures++
			if transientFailures > c.retries {
				metrics.AuthorizationsTotal.WithLabelValues("poll_failed").Inc()
				return tx, apperrors.Wrap(err)
			}
			logger.Warn("authorization poll failed, retrying",
				"relay_tx_id", relayTxID, "attempt", transientFailures, "error", err)
			continue
		}
		transientFailures = 0

		tx.Confirmations = status.Confirmations
		tx.TxHash = status.TxHash
		if !status.Executed {
			if status.Confirmations > 0 {
				tx.Status = model.AuthConfirmed
			}
			continue
		}
		if !status.Successful {
			tx.Status = model.AuthFailed
			metrics.AuthorizationsTotal.WithLabelValues("rejected").Inc()
			return tx, apperrors.Newf(apperrors.ErrAuthorizationRejected,
				"authorization %s reverted on chain", relayTxID)
		}

		tx.Status = model.AuthExecuted
		metrics.AuthorizationsTotal.WithLabelValues("executed").Inc()
		logger.Info("authorization executed", "relay_tx_id", relayTxID, "tx_hash", status.TxHash)
		return tx, nil
	}
}
