package store

import (
	"context"
	"errors"

	"github.com/GoPolymarket/safegate/internal/model"
)

// ErrNotFound is returned when no wallet record exists for a user.
var ErrNotFound = errors.New("wallet record not found")

// UserStore resolves a user identity to any previously recorded smart
// wallet. The execution core consumes this; it never owns the mapping.
type UserStore interface {
	GetWallet(ctx context.Context, userAddress string) (*model.WalletRecord, error)
	SaveWallet(ctx context.Context, record *model.WalletRecord) error
}
