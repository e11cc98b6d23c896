package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

// WorkQueue is the FIFO broker the capture loop pushes to and workers pop
// from. Newest pushed left, oldest popped right; pop is at-least-once.
type WorkQueue interface {
	Push(ctx context.Context, job domain.SegmentJob) error
	PushBatch(ctx context.Context, jobs []domain.SegmentJob) error
	Pop(ctx context.Context, timeout time.Duration) (*domain.SegmentJob, error)
	Size(ctx context.Context) (int64, error)
}

type workQueue struct {
	log *logger.Logger
	rdb *goredis.Client
	key string
}

func NewWorkQueue(log *logger.Logger, brokerURL string) (WorkQueue, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(brokerURL)
	if addr == "" {
		addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	}
	if addr == "" {
		return nil, fmt.Errorf("missing queue_broker_url")
	}
	key := strings.TrimSpace(os.Getenv("REDIS_QUEUE_KEY"))
	if key == "" {
		key = "segment_jobs"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &workQueue{
		log: log.With("service", "RedisWorkQueue"),
		rdb: rdb,
		key: key,
	}, nil
}

func (q *workQueue) Push(ctx context.Context, job domain.SegmentJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key, raw).Err()
}

// PushBatch sends the whole batch as one variadic LPUSH: a single broker
// round trip.
func (q *workQueue) PushBatch(ctx context.Context, jobs []domain.SegmentJob) error {
	if len(jobs) == 0 {
		return nil
	}
	values := make([]any, 0, len(jobs))
	for _, job := range jobs {
		raw, err := json.Marshal(job)
		if err != nil {
			return err
		}
		values = append(values, raw)
	}
	return q.rdb.LPush(ctx, q.key, values...).Err()
}

// Pop blocks up to timeout for a job, returning nil on timeout so the caller
// can observe a shutdown signal cooperatively.
func (q *workQueue) Pop(ctx context.Context, timeout time.Duration) (*domain.SegmentJob, error) {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	result, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("redis brpop: unexpected reply shape")
	}
	var job domain.SegmentJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("decode segment job: %w", err)
	}
	return &job, nil
}

func (q *workQueue) Size(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
