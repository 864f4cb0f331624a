package workerport

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"gitlab.com/arbfn-2025.net/internal/adapter/logging"
	"gitlab.com/arbfn-2025.net/internal/domain"
)

type RosterSuite struct {
	suite.Suite
	client *redis.Client
	repo   *WorkerRepository
	runID  uuid.UUID
}

func (s *RosterSuite) SetupSuite() {
	s.client = redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.T().Skip("Redis not available, skipping roster tests")
		return
	}
	s.repo = NewWorkerRepository(s.client, logging.NewNopLogger())
}

func (s *RosterSuite) SetupTest() {
	s.runID = uuid.New()
}

func (s *RosterSuite) TearDownTest() {
	if s.repo != nil {
		_ = s.repo.ClearRun(context.Background(), s.runID)
	}
}

func (s *RosterSuite) TearDownSuite() {
	_ = s.client.Close()
}

func (s *RosterSuite) TestSaveListRemove() {
	ctx := context.Background()
	a := &domain.WorkerInfo{SessionID: uuid.New(), UID: domain.UIDOf(1), Source: 1, RegisteredAt: time.Now().UTC()}
	b := &domain.WorkerInfo{SessionID: uuid.New(), Source: 2, RegisteredAt: time.Now().UTC()}

	s.Require().NoError(s.repo.SaveWorker(ctx, s.runID, a))
	s.Require().NoError(s.repo.SaveWorker(ctx, s.runID, b))

	workers, err := s.repo.GetAllWorkers(ctx, s.runID)
	s.Require().NoError(err)
	s.Len(workers, 2)

	s.Require().NoError(s.repo.RemoveWorker(ctx, s.runID, a.SessionID))
	workers, err = s.repo.GetAllWorkers(ctx, s.runID)
	s.Require().NoError(err)
	s.Require().Len(workers, 1)
	s.Equal(b.SessionID, workers[0].SessionID)
	s.Nil(workers[0].UID)
}

func (s *RosterSuite) TestRunsAreSeparate() {
	ctx := context.Background()
	other := uuid.New()
	defer func() { _ = s.repo.ClearRun(ctx, other) }()

	s.Require().NoError(s.repo.SaveWorker(ctx, other, &domain.WorkerInfo{SessionID: uuid.New(), Source: 1}))

	workers, err := s.repo.GetAllWorkers(ctx, s.runID)
	s.Require().NoError(err)
	s.Empty(workers)
}

func TestRosterSuite(t *testing.T) {
	suite.Run(t, new(RosterSuite))
}
