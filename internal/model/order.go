package model

// OrderState tracks an order's progress through the execution pipeline.
type OrderState string

const (
	StateBuilt           OrderState = "BUILT"
	StateAdmitted        OrderState = "ADMITTED"
	StateSigned          OrderState = "SIGNED"
	StateSubmitted       OrderState = "SUBMITTED"
	StateAccepted        OrderState = "ACCEPTED"
	StateRejected        OrderState = "REJECTED"
	StateTransportFailed OrderState = "TRANSPORT_FAILED"
)

// OrderResult is the terminal outcome of a submission or cancellation.
// Exactly one of OrderID (accepted) or Reason (rejected/transport-failed)
// is meaningful; RawBody preserves the upstream message for diagnostics.
type OrderResult struct {
	State   OrderState `json:"state"`
	OrderID string     `json:"order_id,omitempty"`
	Status  string     `json:"status,omitempty"`
	Reason  string     `json:"reason,omitempty"`
	RawBody string     `json:"raw_body,omitempty"`
}

func (r *OrderResult) Accepted() bool {
	return r.State == StateAccepted && r.OrderID != ""
}

// AuthorizationStatus is the lifecycle of an owner-add transaction.
type AuthorizationStatus string

const (
	AuthPending   AuthorizationStatus = "PENDING"
	AuthConfirmed AuthorizationStatus = "CONFIRMED"
	AuthExecuted  AuthorizationStatus = "EXECUTED"
	AuthFailed    AuthorizationStatus = "FAILED"
)

// AuthorizationTransaction records an owner-add request submitted to the
// transaction relay and its terminal state.
type AuthorizationTransaction struct {
	RelayTxID     string              `json:"relay_tx_id"`
	Wallet        string              `json:"wallet"`
	NewOwner      string              `json:"new_owner"`
	Threshold     int                 `json:"threshold"`
	Status        AuthorizationStatus `json:"status"`
	Confirmations int                 `json:"confirmations"`
	TxHash        string              `json:"tx_hash,omitempty"`
}
