package voucher

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var domainFields = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

func typedData(d Domain, p Payload) apitypes.TypedData {
	chainID := new(big.Int)
	if d.ChainID != nil {
		chainID.Set(d.ChainID)
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":  domainFields,
			p.PrimaryType(): p.Fields(),
		},
		PrimaryType: p.PrimaryType(),
		Domain: apitypes.TypedDataDomain{
			Name:              d.Name,
			Version:           d.Version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: d.VerifyingContract.Hex(),
		},
		Message: p.Message(),
	}
}

// Hash computes the EIP-712 digest keccak256(0x1901 || domainSeparator || structHash).
func Hash(d Domain, p Payload) (common.Hash, error) {
	td := typedData(d, p)
	sep, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash domain: %w", err)
	}
	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash %s: %w", td.PrimaryType, err)
	}

	msg := make([]byte, 2+32+32)
	msg[0] = 0x19
	msg[1] = 0x01
	copy(msg[2:34], sep)
	copy(msg[34:66], structHash)
	return crypto.Keccak256Hash(msg), nil
}

// Sign signs p for domain d. V is returned as 27/28 like eth_signTypedData.
func Sign(d Domain, p Payload, key *ecdsa.PrivateKey) ([]byte, error) {
	digest, err := Hash(d, p)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// New signs p and wraps it into a Signed voucher.
func New[P Payload](d Domain, p P, key *ecdsa.PrivateKey) (Signed[P], error) {
	sig, err := Sign(d, p, key)
	if err != nil {
		return Signed[P]{}, err
	}
	return Signed[P]{Data: p, Signature: sig}, nil
}

// Recover returns the address that signed p for domain d.
// sig must be 65 bytes (R || S || V), with V in {0,1} or {27,28}.
func Recover(d Domain, p Payload, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, errors.New("invalid signature length")
	}
	digest, err := Hash(d, p)
	if err != nil {
		return common.Address{}, err
	}
	sigCopy := make([]byte, 65)
	copy(sigCopy, sig)
	if sigCopy[64] >= 27 {
		sigCopy[64] -= 27
	}
	pub, err := crypto.SigToPub(digest[:], sigCopy)
	if err != nil {
		return common.Address{}, fmt.Errorf("ecrecover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
