package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Bidon15/printspool/internal/models"
	"github.com/Bidon15/printspool/internal/repository"
)

// StatsService defines the interface for aggregate reporting.
type StatsService interface {
	Summary(ctx context.Context) (*models.StatsSummary, error)
	Daily(ctx context.Context, from, to time.Time) ([]*models.DailyStats, error)
	Clients(ctx context.Context) ([]*models.Client, error)

	// RecordUptime writes the broker's uptime into today's stats row.
	RecordUptime(ctx context.Context, uptime time.Duration) error
}

type statsService struct {
	statsRepo  repository.StatsRepository
	clientRepo repository.ClientRepository
}

// NewStatsService creates a new stats service.
func NewStatsService(statsRepo repository.StatsRepository, clientRepo repository.ClientRepository) StatsService {
	return &statsService{statsRepo: statsRepo, clientRepo: clientRepo}
}

func (s *statsService) Summary(ctx context.Context) (*models.StatsSummary, error) {
	summary, err := s.statsRepo.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats summary: %w", err)
	}
	return summary, nil
}

func (s *statsService) Daily(ctx context.Context, from, to time.Time) ([]*models.DailyStats, error) {
	stats, err := s.statsRepo.Range(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	return stats, nil
}

func (s *statsService) Clients(ctx context.Context) ([]*models.Client, error) {
	clients, err := s.clientRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

func (s *statsService) RecordUptime(ctx context.Context, uptime time.Duration) error {
	seconds := int64(uptime.Seconds())
	err := s.statsRepo.UpsertDaily(ctx, time.Now(), models.DailyStatsPatch{
		UptimeSeconds: &seconds,
	})
	if err != nil {
		return fmt.Errorf("record uptime: %w", err)
	}
	return nil
}
