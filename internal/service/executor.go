package service

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/GoPolymarket/safegate/internal/derive"
	"github.com/GoPolymarket/safegate/internal/model"
	"github.com/GoPolymarket/safegate/internal/pipeline"
	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/safegate/internal/pkg/logger"
	"github.com/GoPolymarket/safegate/internal/safe"
	"github.com/GoPolymarket/safegate/internal/store"
)

// ExecutionService is the order-intake glue around the execution core:
// resolve the user, derive their signer, make sure that signer is an
// authorized owner of the user's funding wallet, then hand the intent to
// the pipeline. It owns the wallet-record bookkeeping and serializes
// authorization per user, since the coordinator deliberately does not.
type ExecutionService struct {
	deriver     *derive.Deriver
	coordinator *safe.Coordinator
	pipeline    *pipeline.Pipeline
	users       store.UserStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewExecutionService(deriver *derive.Deriver, coordinator *safe.Coordinator, p *pipeline.Pipeline, users store.UserStore) *ExecutionService {
	return &ExecutionService{
		deriver:     deriver,
		coordinator: coordinator,
		pipeline:    p,
		users:       users,
		locks:       make(map[string]*sync.Mutex),
	}
}

// PlaceOrder executes a trade intent on behalf of a user.
func (s *ExecutionService) PlaceOrder(ctx context.Context, user string, intent model.OrderIntent) (*model.OrderResult, error) {
	if err := validateIntent(intent); err != nil {
		return nil, err
	}

	signer, err := s.deriver.DeriveSigner(user)
	if err != nil {
		return nil, err
	}

	record, err := s.resolveWallet(ctx, signer)
	if err != nil {
		return nil, err
	}

	if err := s.ensureAuthorized(ctx, record, signer); err != nil {
		return nil, err
	}

	return s.pipeline.Submit(ctx, intent, signer.Signer, common.HexToAddress(record.SafeAddress))
}

// CancelOrder cancels a resting order.
func (s *ExecutionService) CancelOrder(ctx context.Context, orderID string) (*model.OrderResult, error) {
	return s.pipeline.Cancel(ctx, orderID)
}

// WalletStatus reports the derived signer and funding wallet for a user
// without mutating anything on chain.
func (s *ExecutionService) WalletStatus(ctx context.Context, user string) (*model.WalletStatusResponse, error) {
	signer, err := s.deriver.DeriveSigner(user)
	if err != nil {
		return nil, err
	}
	record, err := s.resolveWallet(ctx, signer)
	if err != nil {
		return nil, err
	}

	walletAddr := common.HexToAddress(record.SafeAddress)
	deployed, err := s.coordinator.IsDeployed(ctx, walletAddr)
	if err != nil {
		return nil, err
	}

	authorized := record.Authorized
	if deployed && !authorized {
		authorized, err = s.coordinator.IsOwner(ctx, walletAddr, signer.Address())
		if err != nil {
			return nil, err
		}
	}

	return &model.WalletStatusResponse{
		User:             signer.Identity,
		SignerAddress:    signer.Address().Hex(),
		DerivationIndex:  signer.Index,
		SafeAddress:      record.SafeAddress,
		Deployed:         deployed,
		SignerAuthorized: authorized,
	}, nil
}

// resolveWallet returns the persisted wallet record for the signer's
// user, creating one from the predicted address on first sight.
func (s *ExecutionService) resolveWallet(ctx context.Context, signer *derive.DerivedSigner) (*model.WalletRecord, error) {
	record, err := s.users.GetWallet(ctx, signer.Identity)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Wrap(err)
	}

	predicted, err := s.coordinator.PredictWalletAddress(signer.Address())
	if err != nil {
		return nil, err
	}
	record = &model.WalletRecord{
		UserAddress:     signer.Identity,
		SignerAddress:   signer.Address().Hex(),
		DerivationIndex: signer.Index,
		SafeAddress:     predicted.Hex(),
	}
	if err := s.users.SaveWallet(ctx, record); err != nil {
		return nil, apperrors.Wrap(err)
	}
	return record, nil
}

// ensureAuthorized runs the one-time owner-add flow for the user's wallet.
// Per-user serialization lives here because two in-flight authorization
// transactions for the same wallet would both try to add the same owner.
func (s *ExecutionService) ensureAuthorized(ctx context.Context, record *model.WalletRecord, signer *derive.DerivedSigner) error {
	if record.Authorized {
		return nil
	}

	lock := s.userLock(record.UserAddress)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: another request may have finished the flow.
	if fresh, err := s.users.GetWallet(ctx, record.UserAddress); err == nil && fresh.Authorized {
		*record = *fresh
		return nil
	}

	walletAddr := common.HexToAddress(record.SafeAddress)

	deployed, err := s.coordinator.IsDeployed(ctx, walletAddr)
	if err != nil {
		return err
	}
	if !deployed {
		return apperrors.Newf(apperrors.ErrNotFound,
			"smart wallet %s is not deployed; fund the account first", record.SafeAddress)
	}

	isOwner, err := s.coordinator.IsOwner(ctx, walletAddr, signer.Address())
	if err != nil {
		return err
	}
	if !isOwner {
		tx, err := s.coordinator.AuthorizeSigner(ctx, walletAddr, signer.Address())
		if err != nil {
			return err
		}
		logger.Info("derived signer authorized",
			"user", record.UserAddress, "wallet", record.SafeAddress, "relay_tx_id", tx.RelayTxID)
	}

	record.Authorized = true
	if err := s.users.SaveWallet(ctx, record); err != nil {
		return apperrors.Wrap(err)
	}
	return nil
}

func (s *ExecutionService) userLock(user string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[user]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[user] = lock
	}
	return lock
}

func validateIntent(intent model.OrderIntent) error {
	if intent.TokenID == "" {
		return apperrors.NewInvalidRequest("token id is required")
	}
	if intent.Size <= 0 {
		return apperrors.NewInvalidRequest("size must be positive")
	}
	if intent.Price <= 0 || intent.Price >= 1 {
		return apperrors.Newf(apperrors.ErrInvalidPrice,
			"price %.4f outside the open interval (0, 1)", intent.Price)
	}
	return nil
}
