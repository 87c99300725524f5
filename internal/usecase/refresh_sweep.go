package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/config"
)

// RefreshSweep proactively refreshes credentials nearing expiry on a cron
// schedule, so interactive requests rarely pay the refresh round-trip.
type RefreshSweep struct {
	creds   domain.CredentialStore
	service *CredentialService
	cfg     config.SweepConfig
	logger  *slog.Logger
	cron    *cron.Cron
}

// NewRefreshSweep creates a refresh sweep.
func NewRefreshSweep(creds domain.CredentialStore, service *CredentialService, cfg config.SweepConfig, logger *slog.Logger) *RefreshSweep {
	return &RefreshSweep{
		creds:   creds,
		service: service,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start schedules the sweep. No-op when disabled.
func (s *RefreshSweep) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() { s.Sweep(ctx) })
	if err != nil {
		return domain.WrapOp("RefreshSweep.Start", err)
	}
	s.cron.Start()
	s.logger.Info("refresh sweep scheduled", "schedule", s.cfg.Schedule, "margin", s.cfg.Margin)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *RefreshSweep) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep refreshes every credential expiring within the margin. Individual
// failures are logged and skipped; one revoked grant must not stall the rest.
func (s *RefreshSweep) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(s.cfg.Margin)
	expiring, err := s.creds.ListExpiring(ctx, cutoff)
	if err != nil {
		s.logger.Error("refresh sweep: list failed", "error", err)
		return
	}
	if len(expiring) == 0 {
		return
	}

	var refreshed, failed int
	for i := range expiring {
		cred := expiring[i]
		if err := s.service.RefreshCredential(ctx, &cred); err != nil {
			failed++
			s.logger.Warn("refresh sweep: credential refresh failed",
				"user_id", cred.UserID, "provider", cred.Provider, "error", err)
			continue
		}
		refreshed++
	}
	s.logger.Info("refresh sweep completed",
		"expiring", len(expiring), "refreshed", refreshed, "failed", failed)
}
