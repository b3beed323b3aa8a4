package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	queueClientName  = "skillswap-queue"
	pubsubClientName = "skillswap-pubsub"

	// Connections kept free for LPUSH, SETNX and PUBLISH while every worker
	// sits in BLPOP.
	queueHeadroom = 4
)

// RedisClients splits Redis traffic by role. Queue carries the job queue,
// job locks and event publishing; PubSub holds the long-lived
// user_updates:* subscription of the notification hub.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client

	logger *zap.Logger
}

// redisOptions derives the per-role options. BLPOP pins one connection per
// worker, so the queue pool is grown to fit them.
func redisOptions(redisURL string, workers int) (queue, pubsub *redis.Options, err error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	q := *opt
	q.ClientName = queueClientName
	if need := workers + queueHeadroom; q.PoolSize < need {
		q.PoolSize = need
	}

	p := *opt
	p.ClientName = pubsubClientName
	return &q, &p, nil
}

func NewRedisClients(redisURL string, workers int, log *zap.Logger) (*RedisClients, error) {
	queueOpt, pubsubOpt, err := redisOptions(redisURL, workers)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queueClient := redis.NewClient(queueOpt)
	if err := queueClient.Ping(ctx).Err(); err != nil {
		queueClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (queue): %w", err)
	}

	pubsubClient := redis.NewClient(pubsubOpt)
	if err := pubsubClient.Ping(ctx).Err(); err != nil {
		queueClient.Close()
		pubsubClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (pubsub): %w", err)
	}

	log.Info("redis clients ready",
		zap.String("addr", queueOpt.Addr),
		zap.Int("db", queueOpt.DB),
		zap.Int("queue_pool_size", queueOpt.PoolSize),
	)

	return &RedisClients{
		Queue:  queueClient,
		PubSub: pubsubClient,
		logger: log,
	}, nil
}

func (r *RedisClients) Close() error {
	err := errors.Join(r.Queue.Close(), r.PubSub.Close())
	if err != nil {
		r.logger.Warn("closing redis clients", zap.Error(err))
	}
	return err
}
