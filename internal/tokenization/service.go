// Package tokenization is the reconciliation coordinator. It drives a
// purchase through load, allocate, persist and index update, keeps the
// holdings index in step with the authoritative asset ledgers and issues
// new assets.
package tokenization

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/events"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/holdings"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/lock"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/metrics"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerStore is the persistence the coordinator needs from the ledger
// store.
type LedgerStore interface {
	CreateAsset(ctx context.Context, asset *models.Asset, l *ledger.AssetLedger) error
	Load(ctx context.Context, assetID string) (*ledger.AssetLedger, error)
	Persist(ctx context.Context, next *ledger.AssetLedger, purchase *models.Purchase) error
	GetPurchase(ctx context.Context, purchaseID string) (*models.Purchase, error)
	MarkPurchaseComplete(ctx context.Context, purchaseID uuid.UUID) error
	PendingPurchases(ctx context.Context, olderThan time.Time, limit int) ([]models.Purchase, error)
	PendingPurchasesOf(ctx context.Context, buyerID string) ([]models.Purchase, error)
	StakesOf(ctx context.Context, holderID string) ([]models.TokenHolder, error)
}

// Notifier receives ledger events. Delivery failures never fail the
// operation that produced the event.
type Notifier interface {
	Publish(ctx context.Context, event *events.LedgerEvent) error
}

// Config tunes the coordinator
type Config struct {
	Policy ledger.Policy

	// MaxAttempts bounds load-allocate-persist cycles per request when the
	// ledger version moves underneath us.
	MaxAttempts  int
	RetryBackoff time.Duration

	// PersistTimeout bounds each write made after allocation. Those writes
	// ignore request cancellation.
	PersistTimeout time.Duration

	ReconcileInterval time.Duration // zero disables the reconciler
	ReconcileAfter    time.Duration
	ReconcileBatch    int
}

// DefaultConfig returns the default coordinator configuration
func DefaultConfig() Config {
	return Config{
		Policy:            ledger.DefaultPolicy(),
		MaxAttempts:       5,
		RetryBackoff:      10 * time.Millisecond,
		PersistTimeout:    10 * time.Second,
		ReconcileInterval: 30 * time.Second,
		ReconcileAfter:    time.Minute,
		ReconcileBatch:    100,
	}
}

// Service coordinates purchases across the ledger store and holdings index.
type Service struct {
	store    LedgerStore
	index    holdings.Index
	locker   lock.Locker
	notifier Notifier
	config   Config
	logger   *zap.Logger

	mu         sync.Mutex
	isRunning  bool
	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// NewService creates a coordinator. notifier may be nil.
func NewService(store LedgerStore, index holdings.Index, locker lock.Locker, notifier Notifier, config Config, logger *zap.Logger) *Service {
	def := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.PersistTimeout <= 0 {
		config.PersistTimeout = def.PersistTimeout
	}
	if config.ReconcileAfter <= 0 {
		config.ReconcileAfter = def.ReconcileAfter
	}
	if config.ReconcileBatch <= 0 {
		config.ReconcileBatch = def.ReconcileBatch
	}
	if config.Policy.Credit == "" {
		config.Policy.Credit = def.Policy.Credit
	}
	if config.Policy.Undersupply == "" {
		config.Policy.Undersupply = def.Policy.Undersupply
	}
	return &Service{
		store:    store,
		index:    index,
		locker:   locker,
		notifier: notifier,
		config:   config,
		logger:   logger,
	}
}

// Start launches the background reconciler
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("tokenization service is already running")
	}
	s.shutdownCh = make(chan struct{})

	if s.config.ReconcileInterval > 0 {
		s.wg.Add(1)
		go s.reconcileWorker(ctx)
	}

	s.isRunning = true
	s.logger.Info("Tokenization service started",
		zap.String("credit_mode", string(s.config.Policy.Credit)),
		zap.String("undersupply", string(s.config.Policy.Undersupply)),
		zap.Duration("reconcile_interval", s.config.ReconcileInterval))
	return nil
}

// Stop stops the reconciler and waits for it to exit
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	close(s.shutdownCh)
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Tokenization service stopped")
	return nil
}

func (s *Service) reconcileWorker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		case <-ticker.C:
			if _, err := s.ReconcilePending(ctx); err != nil {
				s.logger.Error("Holdings reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

// ReconcilePending retries the index step of purchases stuck in
// ledger_persisted for longer than ReconcileAfter. It returns how many
// were completed.
func (s *Service) ReconcilePending(ctx context.Context) (int, error) {
	pending, err := s.store.PendingPurchases(ctx, time.Now().Add(-s.config.ReconcileAfter), s.config.ReconcileBatch)
	if err != nil {
		return 0, err
	}

	completed := 0
	for i := range pending {
		p := &pending[i]
		if err := s.completeIndexStep(ctx, p); err != nil {
			metrics.PendingIndexRetries.WithLabelValues("failed").Inc()
			s.logger.Warn("Holdings index retry failed",
				zap.String("purchase_id", p.ID.String()),
				zap.String("asset_id", p.AssetID.String()),
				zap.String("buyer_id", p.BuyerID),
				zap.Int64("units", p.IndexUnits),
				zap.Error(err))
			continue
		}
		metrics.PendingIndexRetries.WithLabelValues("success").Inc()
		completed++
	}

	if len(pending) > 0 {
		s.logger.Info("Holdings reconciliation pass finished",
			zap.Int("pending", len(pending)),
			zap.Int("completed", completed))
	}
	return completed, nil
}

func (s *Service) notify(ctx context.Context, event *events.LedgerEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish ledger event",
			zap.String("event_type", event.Type),
			zap.String("asset_id", event.AssetID),
			zap.Error(err))
	}
}

// detached returns a context that survives request cancellation, bounded
// by PersistTimeout.
func (s *Service) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.config.PersistTimeout)
}
