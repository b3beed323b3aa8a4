package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"skillswap-backend/internal/logger"
	"skillswap-backend/internal/models"
	"skillswap-backend/internal/websocket"
)

const (
	QuizGenerationQueue = "queue:quiz-generation"

	maxAttempts = 3
	popTimeout  = 30 * time.Second
	lockTTL     = 10 * time.Minute
	jobTimeout  = 5 * time.Minute
)

// Broker is the subset of *redis.Client the pool needs.
type Broker interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type QuizGenerator interface {
	GenerateSkillQuiz(ctx context.Context, job *models.Job) error
}

type JobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

type QuizStatusStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type Pool struct {
	redis       Broker
	generator   QuizGenerator
	jobs        JobStore
	quizzes     QuizStatusStore
	workerCount int
	logger      *zap.Logger

	// backoff returns the delay before attempt n+1 is re-queued.
	backoff func(retry int) time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(
	redisClient Broker,
	generator QuizGenerator,
	jobs JobStore,
	quizzes QuizStatusStore,
	workerCount int,
	log *zap.Logger,
) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		generator:   generator,
		jobs:        jobs,
		quizzes:     quizzes,
		workerCount: workerCount,
		logger:      log.With(zap.String(logger.FieldOperation, "worker")),
		backoff: func(retry int) time.Duration {
			return time.Duration(1<<uint(retry)) * time.Second
		},
	}
}

func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	queues := []string{QuizGenerationQueue}
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i, queues)
	}

	p.logger.Info("started worker goroutines", zap.Int("workers", p.workerCount))
}

// Stop cancels pending pops and waits for in-flight jobs.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Enqueue pushes a persisted job onto its queue.
func (p *Pool) Enqueue(ctx context.Context, job *models.Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return p.redis.LPush(ctx, jobQueueName(job.Type), jobBytes).Err()
}

func (p *Pool) worker(ctx context.Context, id int, queues []string) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker", id))

	for {
		if ctx.Err() != nil {
			log.Debug("worker shutting down")
			return
		}

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, popTimeout, queues...).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Warn("queue pop failed", zap.Error(err))
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Error("failed to parse job", zap.Error(err))
			continue
		}

		p.process(context.Background(), &job)
	}
}

// process runs one job under a Redis lock so a job pushed twice is only
// worked once at a time.
func (p *Pool) process(ctx context.Context, job *models.Job) {
	log := p.logger.With(zap.String(logger.FieldJobID, job.ID.String()), zap.String("type", job.Type))

	lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
	locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil || !locked {
		return
	}
	defer p.redis.Del(context.Background(), lockKey)

	log.Info("processing job", zap.Int("attempt", job.RetryCount+1))
	if err := p.jobs.UpdateStatus(ctx, job.ID, models.JobProcessing); err != nil {
		log.Warn("failed to mark job processing", zap.Error(err))
	}

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	var processErr error
	switch job.Type {
	case models.JobTypeQuizGeneration:
		processErr = p.generator.GenerateSkillQuiz(jobCtx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if processErr != nil {
		p.handleFailure(ctx, job, processErr)
		return
	}
	p.handleSuccess(ctx, job)
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	if err := p.jobs.UpdateStatus(ctx, job.ID, models.JobCompleted); err != nil {
		p.logger.Warn("failed to mark job completed", zap.String(logger.FieldJobID, job.ID.String()), zap.Error(err))
	}

	p.publish(ctx, job.UserID, models.QuizReadyEvent{
		QuizID: job.ReferenceID,
		JobID:  job.ID,
		Skill:  jobSkill(job),
	})

	p.logger.Info("job completed", zap.String(logger.FieldJobID, job.ID.String()))
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()
	log := p.logger.With(zap.String(logger.FieldJobID, job.ID.String()), zap.Int("attempt", job.RetryCount))

	if job.RetryCount < maxAttempts {
		log.Warn("job failed, retrying", zap.Error(err))
		p.jobs.UpdateStatus(ctx, job.ID, models.JobPending)
		p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		jobBytes, _ := json.Marshal(job)
		queue := jobQueueName(job.Type)
		time.AfterFunc(p.backoff(job.RetryCount), func() {
			if err := p.redis.LPush(context.Background(), queue, jobBytes).Err(); err != nil {
				p.logger.Error("failed to re-queue job", zap.String(logger.FieldJobID, job.ID.String()), zap.Error(err))
			}
		})
		return
	}

	log.Error("job failed permanently", zap.Error(err))
	p.jobs.UpdateStatus(ctx, job.ID, models.JobFailed)
	p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	if job.Type == models.JobTypeQuizGeneration {
		p.quizzes.UpdateStatus(ctx, job.ReferenceID, models.QuizStatusFailed)
	}

	p.publish(ctx, job.UserID, models.QuizFailedEvent{
		QuizID:  job.ReferenceID,
		JobID:   job.ID,
		Message: errMsg,
	})
}

func (p *Pool) publish(ctx context.Context, userID uuid.UUID, evt models.Event) {
	if err := websocket.Publish(ctx, p.redis, userID, evt); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String(logger.FieldUserID, userID.String()),
			zap.String("event", evt.EventName()),
			zap.Error(err),
		)
	}
}

func jobSkill(job *models.Job) string {
	var cfg models.GenerateQuizRequest
	_ = json.Unmarshal(job.ConfigJSON, &cfg)
	return cfg.Skill
}

func jobQueueName(jobType string) string {
	switch jobType {
	case models.JobTypeQuizGeneration:
		return QuizGenerationQueue
	default:
		return "queue:" + jobType
	}
}
