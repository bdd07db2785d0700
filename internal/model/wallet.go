package model

import "time"

// WalletRecord maps an end user's own address to their funding smart wallet.
// Persistence of this mapping is owned by the store layer, never by the
// derivation or execution core.
type WalletRecord struct {
	UserAddress     string    `json:"user_address" gorm:"primaryKey;column:user_address"`
	SignerAddress   string    `json:"signer_address" gorm:"column:signer_address"`
	DerivationIndex uint32    `json:"derivation_index" gorm:"column:derivation_index"`
	SafeAddress     string    `json:"safe_address" gorm:"column:safe_address"`
	Authorized      bool      `json:"authorized" gorm:"column:authorized"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (WalletRecord) TableName() string {
	return "wallet_records"
}
