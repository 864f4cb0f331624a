package workerport

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/core/ports/secondary"
	"gitlab.com/arbfn-2025.net/internal/domain"
)

var _ secondary.RosterRepository = &WorkerRepository{}

const (
	keyPrefix        = "arbfn:run:"
	workerExpiration = 24 * time.Hour
)

// WorkerRepository mirrors the active workers of a run into Redis
type WorkerRepository struct {
	redisClient *redis.Client
	logger      primary.Logger
}

// NewWorkerRepository creates a new Redis worker repository
func NewWorkerRepository(redisClient *redis.Client, logger primary.Logger) *WorkerRepository {
	return &WorkerRepository{
		redisClient: redisClient,
		logger:      logger,
	}
}

func workerKey(runID, sessionID uuid.UUID) string {
	return fmt.Sprintf("%s%s:worker:%s", keyPrefix, runID, sessionID)
}

func indexKey(runID uuid.UUID) string {
	return fmt.Sprintf("%s%s:workers", keyPrefix, runID)
}

// SaveWorker saves worker information to Redis
func (r *WorkerRepository) SaveWorker(ctx context.Context, runID uuid.UUID, worker *domain.WorkerInfo) error {
	// Serialize worker info
	workerJSON, err := sonic.Marshal(worker)
	if err != nil {
		r.logger.Error("Failed to marshal worker info", "error", err)
		return fmt.Errorf("failed to marshal worker info: %w", err)
	}

	pipe := r.redisClient.TxPipeline()
	pipe.Set(ctx, workerKey(runID, worker.SessionID), workerJSON, workerExpiration)
	pipe.SAdd(ctx, indexKey(runID), worker.SessionID.String())
	pipe.Expire(ctx, indexKey(runID), workerExpiration)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to save worker info", "error", err)
		return fmt.Errorf("failed to save worker info: %w", err)
	}

	return nil
}

// RemoveWorker drops a session from the mirror
func (r *WorkerRepository) RemoveWorker(ctx context.Context, runID uuid.UUID, sessionID uuid.UUID) error {
	pipe := r.redisClient.TxPipeline()
	pipe.Del(ctx, workerKey(runID, sessionID))
	pipe.SRem(ctx, indexKey(runID), sessionID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to remove worker", "sessionId", sessionID, "error", err)
		return fmt.Errorf("failed to remove worker: %w", err)
	}
	return nil
}

// GetAllWorkers retrieves all mirrored workers of a run
func (r *WorkerRepository) GetAllWorkers(ctx context.Context, runID uuid.UUID) ([]*domain.WorkerInfo, error) {
	sessionIDs, err := r.redisClient.SMembers(ctx, indexKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get worker IDs: %w", err)
	}

	workers := make([]*domain.WorkerInfo, 0, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return workers, nil
	}

	keys := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		keys = append(keys, fmt.Sprintf("%s%s:worker:%s", keyPrefix, runID, id))
	}

	// Use MGET to retrieve all worker data at once
	workerData, err := r.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve worker data: %w", err)
	}

	for _, data := range workerData {
		if data == nil {
			continue
		}
		var worker domain.WorkerInfo
		if err := sonic.UnmarshalString(data.(string), &worker); err != nil {
			return nil, fmt.Errorf("failed to unmarshal worker data: %w", err)
		}
		workers = append(workers, &worker)
	}

	return workers, nil
}

// ClearRun removes every mirrored worker of a run
func (r *WorkerRepository) ClearRun(ctx context.Context, runID uuid.UUID) error {
	sessionIDs, err := r.redisClient.SMembers(ctx, indexKey(runID)).Result()
	if err != nil {
		return fmt.Errorf("failed to get worker IDs: %w", err)
	}

	keys := []string{indexKey(runID)}
	for _, id := range sessionIDs {
		keys = append(keys, fmt.Sprintf("%s%s:worker:%s", keyPrefix, runID, id))
	}
	if err := r.redisClient.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear run %s: %w", runID, err)
	}
	return nil
}
