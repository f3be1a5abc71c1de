package voucher

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
)

// Engine verifies vouchers for one verifying contract and tracks the nonces
// it has consumed. Each ledger owns its own Engine, so nonce spaces never
// overlap between contracts.
type Engine struct {
	domain Domain
	signer common.Address
	used   map[string]struct{}
}

func NewEngine(d Domain, signer common.Address) *Engine {
	return &Engine{
		domain: d,
		signer: signer,
		used:   make(map[string]struct{}),
	}
}

// Domain returns the domain vouchers must be signed for.
func (e *Engine) Domain() Domain { return e.domain }

// Signer returns the trusted authority address.
func (e *Engine) Signer() common.Address { return e.signer }

// SetSigner rotates the trusted authority inside a transaction.
func (e *Engine) SetSigner(tx *chain.Tx, signer common.Address) {
	chain.Set(tx, &e.signer, signer)
}

// Used reports whether nonce has been consumed.
func (e *Engine) Used(nonce string) bool {
	_, ok := e.used[nonce]
	return ok
}

// Verify recovers the signer of p without touching the nonce set.
func (e *Engine) Verify(p Payload, sig []byte) (common.Address, error) {
	return Recover(e.domain, p, sig)
}

// Consume checks that p was signed by the trusted authority and marks its
// nonce used. A bad signature leaves the nonce untouched. Once consumed the
// nonce stays consumed even if the enclosing transaction later reverts: a
// voucher authorizes one attempt, not one success.
func (e *Engine) Consume(p Payload, sig []byte) error {
	nonce := p.NonceValue()
	if nonce == "" {
		return chain.Errorf(chain.KindInvalidArgument, "voucher nonce is empty")
	}
	signer, err := e.Verify(p, sig)
	if err != nil {
		return chain.Errorf(chain.KindInvalidSignature, "%v", err)
	}
	if signer != e.signer {
		return chain.Errorf(chain.KindInvalidSignature, "signed by %s, not the authority", signer.Hex())
	}
	if e.Used(nonce) {
		return chain.Errorf(chain.KindNonceReused, "nonce %q already used", nonce)
	}
	e.used[nonce] = struct{}{}
	return nil
}
