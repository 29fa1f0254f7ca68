package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"necc_scraper/config"
	"necc_scraper/models"
	"necc_scraper/scraper"
)

// Runner is the part of the orchestrator the scheduler drives
type Runner interface {
	RunCurrent(ctx context.Context) (*models.ScrapeResult, error)
	Run(ctx context.Context, year, month int) (*models.ScrapeResult, error)
	Pause()
	Resume()
}

// CommandQueue is the ops command table
type CommandQueue interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
	ParseCommandParams(cmd *models.Command) (*models.CommandParams, error)
}

type Scheduler struct {
	cfg      config.SchedulerConfig
	runner   Runner
	commands CommandQueue
	logger   *zap.Logger
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}

	pollInterval time.Duration
}

func New(cfg config.SchedulerConfig, runner Runner, commands CommandQueue, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		runner:       runner,
		commands:     commands,
		logger:       logger,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
		pollInterval: 2 * time.Second,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.commands != nil {
		go s.pollCommands(ctx)
	}

	if s.cfg.Cron != "" {
		s.logger.Info("Starting scheduler with cron", zap.String("cron", s.cfg.Cron))
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.runScheduled(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		s.logger.Info("Starting scheduler with interval", zap.Duration("interval", s.cfg.Interval))
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runScheduled(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		s.logger.Info("No schedule configured, daemon will only respond to HTTP and commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if _, err := s.runner.RunCurrent(ctx); err != nil {
		if errors.Is(err, scraper.ErrPaused) {
			s.logger.Info("Scraper is paused, skipping scheduled run")
			return
		}
		s.logger.Error("Scheduled run error", zap.Error(err))
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drainCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) drainCommands(ctx context.Context) {
	cmds, err := s.commands.GetPendingCommands()
	if err != nil {
		s.logger.Error("Error getting commands", zap.Error(err))
		return
	}

	for i := range cmds {
		cmd := &cmds[i]
		s.logger.Info("Processing command", zap.String("command", string(cmd.Command)), zap.Int64("id", cmd.ID))
		if err := s.handleCommand(ctx, cmd); err != nil {
			s.logger.Error("Command error", zap.String("command", string(cmd.Command)), zap.Error(err))
		}
		if err := s.commands.MarkCommandProcessed(cmd.ID); err != nil {
			s.logger.Error("Error marking command processed", zap.Error(err))
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdScrapeNow:
		_, err := s.runner.RunCurrent(ctx)
		return err
	case models.CmdBackfill:
		params, err := s.commands.ParseCommandParams(cmd)
		if err != nil {
			return err
		}
		_, err = s.runner.Run(ctx, params.Year, params.Month)
		return err
	case models.CmdPause:
		s.runner.Pause()
		return nil
	case models.CmdResume:
		s.runner.Resume()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}
