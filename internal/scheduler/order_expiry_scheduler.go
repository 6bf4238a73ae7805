package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// OrderExpiryScheduler 미확정 주문 자동 취소 스케줄러
type OrderExpiryScheduler struct {
	cron         *cron.Cron
	orderService service.OrderService
	schedule     string
	pendingTTL   time.Duration
	batchSize    int
}

// NewOrderExpiryScheduler 주문 만료 스케줄러 생성
func NewOrderExpiryScheduler(orderService service.OrderService, schedule string, pendingTTL time.Duration, batchSize int) *OrderExpiryScheduler {
	return &OrderExpiryScheduler{
		cron:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		orderService: orderService,
		schedule:     schedule,
		pendingTTL:   pendingTTL,
		batchSize:    batchSize,
	}
}

// Start 스케줄러 시작
func (s *OrderExpiryScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		logger.Error("Failed to add cron job for order expiry", err, map[string]interface{}{
			"schedule": s.schedule,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Order expiry scheduler started", map[string]interface{}{
		"schedule":    s.schedule,
		"pending_ttl": s.pendingTTL.String(),
	})
	return nil
}

// RunOnce 처리 중 상태로 오래 남은 주문을 한 번 정리한다
func (s *OrderExpiryScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	expired, err := s.orderService.ExpireStaleOrders(ctx, s.pendingTTL, s.batchSize)
	if err != nil {
		logger.Error("Order expiry sweep finished with errors", err, map[string]interface{}{
			"expired": expired,
		})
		return
	}
	if expired > 0 {
		logger.Info("Order expiry sweep finished", map[string]interface{}{
			"expired": expired,
		})
	}
}

// Stop 스케줄러 중지
func (s *OrderExpiryScheduler) Stop() {
	logger.Info("Stopping order expiry scheduler...")
	<-s.cron.Stop().Done()
	logger.Info("Order expiry scheduler stopped")
}
