package relayer

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

// Entry is one queued voucher and the outcome of submitting it. Err is the
// decode error when Raw could not be parsed.
type Entry struct {
	Raw     string
	Voucher voucher.Signed[voucher.WithdrawToken]
	Err     error
}

// HandleResults processes the outcome of a batch. batch[0] is already
// BLPOP'd; the remaining entries are LPOP'd here as they are processed.
//
//   - success: logged
//   - NonceReused: the voucher was already paid out or burned; discarded
//   - anything else: dead-lettered with its error kind so the authority can
//     reissue under a fresh nonce
func HandleResults(ctx context.Context, rdb *redis.Client, queueKey, dlqKey string, batch []Entry, log *zap.Logger) {
	for i, e := range batch {
		if i > 0 {
			rdb.LPop(ctx, queueKey)
		}

		switch kind := chain.KindOf(e.Err); {
		case e.Err == nil:
			log.Info("withdrawal relayed",
				zap.String("wallet", e.Voucher.Data.WalletAddress.Hex()),
				zap.String("amount", e.Voucher.Data.Amount.String()),
				zap.String("nonce", e.Voucher.Data.Nonce),
			)

		case kind == chain.KindNonceReused:
			log.Warn("withdrawal discarded: nonce already used",
				zap.String("wallet", e.Voucher.Data.WalletAddress.Hex()),
				zap.String("nonce", e.Voucher.Data.Nonce),
			)

		default:
			deadLetter(ctx, rdb, dlqKey, e, kind, log)
		}
	}
}

func deadLetter(ctx context.Context, rdb *redis.Client, dlqKey string, e Entry, kind chain.Kind, log *zap.Logger) {
	name := kind.String()
	if kind == chain.KindUnknown {
		name = "MALFORMED"
	}
	raw, err := json.Marshal(voucher.Rejected{Voucher: e.Voucher, Kind: name, Reason: e.Err.Error()})
	if err != nil {
		raw = []byte(e.Raw)
	}
	if err := rdb.RPush(ctx, dlqKey, string(raw)).Err(); err != nil {
		log.Error("relayer: dead-letter push failed", zap.String("raw", e.Raw), zap.Error(err))
		return
	}
	log.Error("withdrawal rejected",
		zap.String("kind", name),
		zap.String("wallet", e.Voucher.Data.WalletAddress.Hex()),
		zap.String("nonce", e.Voucher.Data.Nonce),
		zap.Error(e.Err),
	)
}
