package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/GoPolymarket/safegate/internal/model"
	"github.com/GoPolymarket/safegate/internal/store"
)

// MemoryWalletRepo is the fallback UserStore when no database is
// configured. Records do not survive a restart; the executor simply
// re-derives and re-checks ownership on first use.
type MemoryWalletRepo struct {
	mu      sync.RWMutex
	records map[string]model.WalletRecord
}

func NewMemoryWalletRepo() *MemoryWalletRepo {
	return &MemoryWalletRepo{records: make(map[string]model.WalletRecord)}
}

func (r *MemoryWalletRepo) GetWallet(_ context.Context, userAddress string) (*model.WalletRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[strings.ToLower(userAddress)]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := record
	return &out, nil
}

func (r *MemoryWalletRepo) SaveWallet(_ context.Context, record *model.WalletRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[strings.ToLower(record.UserAddress)] = *record
	return nil
}
