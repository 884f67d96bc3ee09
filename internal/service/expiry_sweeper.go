package service

import (
	"context"
	"sync"
	"time"

	"github.com/v1pung/url-alias/internal/repository"
	"go.uber.org/zap"
)

const defaultSweepInterval = time.Minute

// ExpirySweeper периодически деактивирует просроченные ссылки в фоне.
// Корректность обеспечивают ленивые sweep-ы на путях чтения; фоновый
// обход лишь уменьшает окно, в котором просроченная ссылка числится активной.
type ExpirySweeper struct {
	linkRepo repository.LinkRepository
	logger   *zap.Logger
	interval time.Duration
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewExpirySweeper создаёт новый фоновый sweeper
func NewExpirySweeper(linkRepo repository.LinkRepository, logger *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		linkRepo: linkRepo,
		logger:   logger,
		interval: defaultSweepInterval,
	}
}

// Start запускает фоновый обход
func (s *ExpirySweeper) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("Запуск фонового sweep-а просроченных ссылок",
		zap.Duration("interval", s.interval),
	)

	s.wg.Add(1)
	go s.run()
}

// Stop корректно останавливает фоновый обход
func (s *ExpirySweeper) Stop() {
	s.logger.Info("Остановка фонового sweep-а...")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Фоновый sweep остановлен")
}

func (s *ExpirySweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	count, err := s.linkRepo.SweepExpired(ctx)
	if err != nil {
		s.logger.Warn("Не удалось деактивировать просроченные ссылки", zap.Error(err))
		return
	}

	if count > 0 {
		s.logger.Info("Просроченные ссылки деактивированы", zap.Int64("count", count))
	}
}
