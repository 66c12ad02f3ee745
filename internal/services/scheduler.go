package services

import (
	"context"
	"errors"
	"time"

	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"bidding-engine/pkg/utils"

	"github.com/robfig/cron/v3"
)

// CronLotScheduler opens lots at their scheduled start. Closing is not
// scheduled here: the shared deadline coordinator owns it.
type CronLotScheduler struct {
	cron       *cron.Cron
	repo       domain.SchedulerRepository
	lotManager *LotManager
	log        logger.Logger
}

func NewCronLotScheduler(repo domain.SchedulerRepository, lotManager *LotManager,
	log logger.Logger) *CronLotScheduler {
	return &CronLotScheduler{
		cron:       cron.New(cron.WithSeconds()),
		repo:       repo,
		lotManager: lotManager,
		log:        log,
	}
}

func (s *CronLotScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting lot scheduler")

	_, err := s.cron.AddFunc("@every 5s", func() {
		s.processPendingJobs(ctx)
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronLotScheduler) Stop() error {
	s.log.Info("Stopping lot scheduler")
	s.cron.Stop()
	return nil
}

func (s *CronLotScheduler) ScheduleLotOpen(ctx context.Context, lotID string, startTime time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		LotID:     lotID,
		JobType:   domain.JobOpenLot,
		RunAt:     startTime,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}

	return s.repo.CreateJob(ctx, job)
}

func (s *CronLotScheduler) CancelSchedule(ctx context.Context, lotID string) error {
	return s.repo.CancelJobsForLot(ctx, lotID)
}

func (s *CronLotScheduler) processPendingJobs(ctx context.Context) {
	jobs, err := s.repo.GetPendingJobs(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "lot_id", job.LotID)

		switch job.JobType {
		case domain.JobOpenLot:
			err = s.lotManager.OpenLot(ctx, job.LotID)
		default:
			s.log.Warn("Unknown job type", "job_id", job.ID, "type", job.JobType)
			continue
		}

		if errors.Is(err, domain.ErrNotLeader) {
			// The job belongs to the leader; leave it pending untouched.
			s.log.Debug("Skipping job, not the lifecycle leader", "job_id", job.ID)
			continue
		}
		if err != nil {
			s.log.Error("Failed to execute job", "job_id", job.ID, "error", err)
			// Not marked executed, will retry on the next tick.
			continue
		}

		s.repo.UpdateJobStatus(ctx, job.ID, domain.JobExecuted)
	}
}
