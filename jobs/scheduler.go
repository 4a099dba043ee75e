package jobs

import (
	"errors"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"

	"orphifund/native/matrix"
)

// Scheduler stands in for the external keeper network: it triggers the pool
// distribution jobs on their production cadence.
type Scheduler struct {
	engine *matrix.Engine
	owner  common.Address
	logger *slog.Logger
	cron   *cron.Cron
}

func NewScheduler(engine *matrix.Engine, owner common.Address, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine: engine,
		owner:  owner,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start registers the cron entries and launches the runner.
func (s *Scheduler) Start(ghpSpec, leaderSpec string) error {
	if _, err := s.cron.AddFunc(ghpSpec, s.runGlobalHelp); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(leaderSpec, s.runLeaderBonus); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("distribution scheduler started",
		slog.String("ghp", ghpSpec), slog.String("leader", leaderSpec))
	return nil
}

// Stop halts the runner, waiting for an in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runGlobalHelp() {
	err := s.engine.DistributeGlobalHelpPool(s.owner, false)
	s.logOutcome("globalHelp", err)
}

func (s *Scheduler) runLeaderBonus() {
	err := s.engine.DistributeLeaderBonus(s.owner, false)
	s.logOutcome("leader", err)
}

func (s *Scheduler) logOutcome(pool string, err error) {
	switch {
	case err == nil:
		s.logger.Info("pool distribution completed", slog.String("pool", pool))
	case errors.Is(err, matrix.ErrDistributionNotDue),
		errors.Is(err, matrix.ErrPaused),
		errors.Is(err, matrix.ErrEmergencyLocked):
		s.logger.Info("pool distribution skipped",
			slog.String("pool", pool), slog.String("reason", err.Error()))
	default:
		s.logger.Error("pool distribution failed",
			slog.String("pool", pool), slog.Any("error", err))
	}
}
