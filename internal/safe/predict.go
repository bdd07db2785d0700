package safe

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
)

// Deployment parameters of the Safe proxy factory used for per-user
// funding wallets on Polygon. The init code hash commits to the proxy
// creation code and the singleton it points at; it changes only with a
// factory redeployment, so it is configuration, not logic.
const (
	DefaultProxyFactoryAddress = "0xaacFeEa03eb1561C4e67d661e40682Bd20E3541b"
	DefaultSingletonAddress    = "0x3E5c63644E683549055b9Be8653de26E0B4CD36E"
	DefaultProxyInitCodeHash   = "0x56e3081a3d1bb38ed4eed1a39f7729c3cc77c7825794c15bbf326f3047fd779c"
)

// Predictor computes the deterministic address a 1-of-1 Safe proxy would
// receive if deployed for a given owner, without touching the chain.
type Predictor struct {
	factory      common.Address
	singleton    common.Address
	initCodeHash common.Hash
}

func NewPredictor(factory, singleton string, initCodeHash string) *Predictor {
	return &Predictor{
		factory:      common.HexToAddress(factory),
		singleton:    common.HexToAddress(singleton),
		initCodeHash: common.HexToHash(initCodeHash),
	}
}

func NewDefaultPredictor() *Predictor {
	return NewPredictor(DefaultProxyFactoryAddress, DefaultSingletonAddress, DefaultProxyInitCodeHash)
}

// Predict returns the CREATE2 address for owner's wallet. A result equal
// to the singleton means the derivation itself is broken and trading
// against it would target the shared template contract, so that case is
// fatal rather than an error to retry.
func (p *Predictor) Predict(owner common.Address) (common.Address, error) {
	// salt = keccak256(abi.encode(owner))
	salt := crypto.Keccak256Hash(common.LeftPadBytes(owner.Bytes(), 32))

	// CREATE2: keccak256(0xff ++ factory ++ salt ++ initCodeHash)[12:]
	data := make([]byte, 0, 1+20+32+32)
	data = append(data, 0xff)
	data = append(data, p.factory.Bytes()...)
	data = append(data, salt.Bytes()...)
	data = append(data, p.initCodeHash.Bytes()...)

	predicted := common.BytesToAddress(crypto.Keccak256(data)[12:])
	if predicted == p.singleton {
		return common.Address{}, apperrors.Newf(apperrors.ErrInvariantViolation,
			"predicted wallet for owner %s collides with the safe singleton", owner.Hex())
	}
	return predicted, nil
}

// Singleton exposes the template address for invariant checks elsewhere.
func (p *Predictor) Singleton() common.Address {
	return p.singleton
}
