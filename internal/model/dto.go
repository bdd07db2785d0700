package model

// OrderRequest represents the incoming JSON body
type OrderRequest struct {
	User       string  `json:"user" binding:"required"` // chain address of the end user
	TokenID    string  `json:"token_id" binding:"required"`
	Price      float64 `json:"price" binding:"required"`
	Size       float64 `json:"size" binding:"required"`
	Side       string  `json:"side" binding:"required,oneof=BUY SELL"` // BUY or SELL
	OrderType  string  `json:"order_type,omitempty"`                   // GTC/GTD/FAK/FOK
	Expiration int64   `json:"expiration,omitempty"`                   // unix seconds (GTD)
	NegRisk    bool    `json:"neg_risk,omitempty"`
}

// OrderIntent is the validated trade intent handed to the pipeline.
type OrderIntent struct {
	TokenID    string
	Side       string // BUY or SELL
	Price      float64
	Size       float64
	OrderType  string
	Expiration int64
	NegRisk    bool
}

func (r OrderRequest) Intent() OrderIntent {
	return OrderIntent{
		TokenID:    r.TokenID,
		Side:       r.Side,
		Price:      r.Price,
		Size:       r.Size,
		OrderType:  r.OrderType,
		Expiration: r.Expiration,
		NegRisk:    r.NegRisk,
	}
}

// CancelOrderInput defines parameters for cancelling a single order
type CancelOrderInput struct {
	ID string `json:"id" binding:"required"`
}

// WalletStatusResponse describes the derived signer and smart wallet for a user.
type WalletStatusResponse struct {
	User             string `json:"user"`
	SignerAddress    string `json:"signer_address"`
	DerivationIndex  uint32 `json:"derivation_index"`
	SafeAddress      string `json:"safe_address"`
	Deployed         bool   `json:"deployed"`
	SignerAuthorized bool   `json:"signer_authorized"`
}
