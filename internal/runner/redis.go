package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	JobQueue        = "exec:jobs"
	resultKeyPrefix = "exec:result:"

	// ResultTTL bounds how long an unread result may sit in redis.
	ResultTTL = 5 * time.Minute
)

// RedisRunner hands jobs to sandbox workers through a redis list. A worker
// pops from JobQueue and answers with PublishResult.
type RedisRunner struct {
	redis *redis.Client
	// fallback wait when ctx has no deadline
	wait time.Duration
}

func NewRedisRunner(client *redis.Client, wait time.Duration) *RedisRunner {
	return &RedisRunner{redis: client, wait: wait}
}

func ResultKey(jobID string) string {
	return resultKeyPrefix + jobID
}

func (r *RedisRunner) Run(ctx context.Context, job Job) (Result, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return Result{}, err
	}

	if err := r.redis.LPush(ctx, JobQueue, payload).Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	wait := r.wait
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	if wait <= 0 {
		return Result{}, ErrTimeout
	}

	reply, err := r.redis.BLPop(ctx, wait, ResultKey(job.ID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
			r.discard(job.ID)
			return Result{}, ErrTimeout
		}
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// BLPOP replies [key, value].
	if len(reply) != 2 {
		return Result{}, fmt.Errorf("unexpected BLPOP reply of length %d", len(reply))
	}

	var res Result
	if err := json.Unmarshal([]byte(reply[1]), &res); err != nil {
		return Result{}, fmt.Errorf("decode worker result: %w", err)
	}
	return res, nil
}

// discard drops a result that may have landed after we stopped waiting.
// Results published later still expire after ResultTTL.
func (r *RedisRunner) discard(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.redis.Del(ctx, ResultKey(jobID)).Err(); err != nil {
		log.Printf("❌ [RUNNER] clear result %s: %v", jobID, err)
	}
}

// PublishResult is the worker side of the queue: it pushes res for jobID and
// sets ResultTTL on the key in the same transaction.
func PublishResult(ctx context.Context, client *redis.Client, jobID string, res Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	key := ResultKey(jobID)
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.Expire(ctx, key, ResultTTL)
		return nil
	})
	return err
}
