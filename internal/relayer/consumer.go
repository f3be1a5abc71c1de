// Package relayer drains the withdrawal-voucher queue the authority fills and
// submits each voucher to the game vault.
package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultBatchSize = 50

type Options struct {
	QueueKey  string
	DLQKey    string
	BlockTime time.Duration // BLPOP timeout
	BatchSize int
}

// Run is the main relayer loop: BLPOP → submit → handle results.
func Run(ctx context.Context, opts Options, rdb *redis.Client, sub Submitter, log *zap.Logger) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.BlockTime <= 0 {
		opts.BlockTime = 5 * time.Second
	}

	log.Info("relayer started", zap.String("queue", opts.QueueKey))

	for {
		if ctx.Err() != nil {
			log.Info("relayer stopped")
			return
		}
		if err := RunOnce(ctx, opts, rdb, sub, log); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("relayer: batch failed", zap.Error(err))
			time.Sleep(time.Second)
		}
	}
}

// RunOnce blocks for the first queued voucher, peeks the rest of the batch,
// submits every voucher and pops each one as its result is handled. It
// returns nil when the BLPOP times out on an empty queue.
func RunOnce(ctx context.Context, opts Options, rdb *redis.Client, sub Submitter, log *zap.Logger) error {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	results, err := rdb.BLPop(ctx, opts.BlockTime, opts.QueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	// results[0] = key, results[1] = value (already popped by BLPOP)
	firstItem := results[1]

	// Peek the remainder; the handler pops them one by one.
	remaining, err := rdb.LRange(ctx, opts.QueueKey, 0, int64(opts.BatchSize-2)).Result()
	if err != nil {
		log.Error("relayer: LRANGE", zap.Error(err))
		remaining = nil
	}

	raws := append([]string{firstItem}, remaining...)
	batch := make([]Entry, len(raws))
	for i, raw := range raws {
		batch[i].Raw = raw
		if err := json.Unmarshal([]byte(raw), &batch[i].Voucher); err != nil {
			batch[i].Err = err
			continue
		}
		batch[i].Err = sub.SubmitWithdrawal(ctx, batch[i].Voucher)
	}

	HandleResults(ctx, rdb, opts.QueueKey, opts.DLQKey, batch, log)
	return nil
}
