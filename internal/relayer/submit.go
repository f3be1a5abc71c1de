package relayer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/vault"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

// Submitter delivers one withdrawal voucher to the vault. The returned error
// is the vault's verdict.
type Submitter interface {
	SubmitWithdrawal(ctx context.Context, w voucher.Signed[voucher.WithdrawToken]) error
}

// VaultSubmitter submits withdrawals to a vault deployed on a host, sending
// each as its own transaction from the relayer account.
type VaultSubmitter struct {
	host  *chain.Host
	vault *vault.Vault
	from  common.Address
}

func NewVaultSubmitter(h *chain.Host, v *vault.Vault, from common.Address) *VaultSubmitter {
	return &VaultSubmitter{host: h, vault: v, from: from}
}

func (s *VaultSubmitter) SubmitWithdrawal(ctx context.Context, w voucher.Signed[voucher.WithdrawToken]) error {
	msg := chain.Msg{From: s.from, To: s.vault.Address(), Value: new(big.Int)}
	return s.host.Execute(ctx, msg, func(tx *chain.Tx) error {
		return s.vault.WithdrawToken(tx, w.Data, w.Signature)
	})
}
