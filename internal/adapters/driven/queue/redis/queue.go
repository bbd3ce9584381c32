package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
)

const (
	jobStream = "scarab:persistence:jobs"
	jobGroup  = "scarab:persistence:workers"

	jobKeyPrefix = "scarab:persistence:job:"

	// jobDataTTL bounds how long a job's mirrored body lives in Redis. The
	// durable payload store is the recovery path once this expires — the
	// queue-side copy is an optimization, not the source of truth.
	jobDataTTL = 24 * time.Hour

	// claimTimeout is how long a delivered-but-unacked job may idle before
	// another consumer claims it.
	claimTimeout = 5 * time.Minute
)

// Verify interface compliance
var _ driven.PersistenceQueue = (*Queue)(nil)

// Queue implements PersistenceQueue on Redis Streams: consumer groups give
// at-least-once delivery with automatic pending tracking, and idle-message
// claiming recovers jobs abandoned by crashed workers.
type Queue struct {
	client       *redis.Client
	consumerName string
}

// NewQueue creates a Redis-backed persistence queue. consumerName should be
// unique per worker instance (e.g. hostname + PID).
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("worker-%d", time.Now().UnixNano())
	}

	q := &Queue{client: client, consumerName: consumerName}

	err := q.client.XGroupCreateMkStream(context.Background(), jobStream, jobGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return q, nil
}

// Enqueue adds a job for processing. The stream message carries only the
// persistence id; the job body is mirrored under its own key so stream
// trimming cannot corrupt in-flight work (and the durable payload store
// backs even that).
func (q *Queue) Enqueue(ctx context.Context, job domain.PersistenceJob) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal persistence job %s: %w", job.BatchID, err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobKeyPrefix+job.PersistenceID, jobData, jobDataTTL)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: jobStream,
		Values: map[string]interface{}{
			"persistence_id": job.PersistenceID,
			"index_name":     job.IndexName,
			"batch_id":       job.BatchID,
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue persistence job %s: %w", job.BatchID, err)
	}
	return nil
}

// Dequeue retrieves the next available job, blocking up to timeout. Returns
// nil, nil if none became available.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.PersistenceJob, error) {
	if job, err := q.claimAbandonedJob(ctx); err == nil && job != nil {
		return job, nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    jobGroup,
		Consumer: q.consumerName,
		Streams:  []string{jobStream, ">"},
		Count:    1,
		Block:    timeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("read persistence job stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.resolveMessage(ctx, streams[0].Messages[0])
}

// resolveMessage turns a stream message into its full job, remembering the
// message id for Ack/Nack. A message whose job body expired is returned
// with only the identifying fields; the worker recovers the payload from
// the durable payload store.
func (q *Queue) resolveMessage(ctx context.Context, msg redis.XMessage) (*domain.PersistenceJob, error) {
	persistenceID, ok := msg.Values["persistence_id"].(string)
	if !ok || persistenceID == "" {
		q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
		return nil, nil
	}

	var job domain.PersistenceJob
	data, err := q.client.Get(ctx, jobKeyPrefix+persistenceID).Result()
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return nil, fmt.Errorf("unmarshal persistence job %s: %w", persistenceID, err)
		}
	case errors.Is(err, redis.Nil):
		// Queue-side eviction: rebuild the skeleton from the stream
		// message; the worker loads the payload out-of-band.
		indexName, _ := msg.Values["index_name"].(string)
		batchID, _ := msg.Values["batch_id"].(string)
		job = domain.PersistenceJob{
			IndexName:     indexName,
			BatchID:       batchID,
			PersistenceID: persistenceID,
		}
	default:
		return nil, fmt.Errorf("load persistence job %s: %w", persistenceID, err)
	}

	q.client.Set(ctx, jobKeyPrefix+persistenceID+":msg", msg.ID, jobDataTTL)
	return &job, nil
}

// Ack acknowledges successful processing of a job.
func (q *Queue) Ack(ctx context.Context, job domain.PersistenceJob) error {
	msgID, err := q.client.Get(ctx, jobKeyPrefix+job.PersistenceID+":msg").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get message id for %s: %w", job.PersistenceID, err)
	}

	pipe := q.client.Pipeline()
	if msgID != "" {
		pipe.XAck(ctx, jobStream, jobGroup, msgID)
		pipe.XDel(ctx, jobStream, msgID)
	}
	pipe.Del(ctx, jobKeyPrefix+job.PersistenceID)
	pipe.Del(ctx, jobKeyPrefix+job.PersistenceID+":msg")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack persistence job %s: %w", job.PersistenceID, err)
	}
	return nil
}

// Nack returns a job to the queue for retry.
func (q *Queue) Nack(ctx context.Context, job domain.PersistenceJob, reason string) error {
	msgID, _ := q.client.Get(ctx, jobKeyPrefix+job.PersistenceID+":msg").Result()

	pipe := q.client.Pipeline()
	if msgID != "" {
		pipe.XAck(ctx, jobStream, jobGroup, msgID)
		pipe.XDel(ctx, jobStream, msgID)
	}
	pipe.Del(ctx, jobKeyPrefix+job.PersistenceID+":msg")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("nack persistence job %s: %w", job.PersistenceID, err)
	}

	// Re-enqueue at the back of the stream for a fresh delivery.
	if err := q.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("requeue after nack (%s): %w", reason, err)
	}
	return nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close releases queue resources. The Redis client is shared and left open.
func (q *Queue) Close() error {
	return nil
}

// claimAbandonedJob claims a job another worker left unacked past
// claimTimeout.
func (q *Queue) claimAbandonedJob(ctx context.Context) (*domain.PersistenceJob, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: jobStream,
		Group:  jobGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   jobStream,
			Group:    jobGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}
		return q.resolveMessage(ctx, claimed[0])
	}
	return nil, nil
}

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
