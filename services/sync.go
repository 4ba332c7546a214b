package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/finwise-app/banklink-api/models"
)

// DefaultSyncWindow is the rolling window used when the caller does not pass
// an explicit one.
const DefaultSyncWindow = 30 * 24 * time.Hour

type transactionProvider interface {
	GetTransactions(ctx context.Context, accessToken, accountID string, dateFrom, dateTo time.Time) ([]ProviderTransaction, error)
}

type transactionStore interface {
	UpsertTransactions(ctx context.Context, txs []models.Transaction) (int, error)
}

// SyncNotifier receives sync lifecycle events (websocket broadcaster in
// production, no-op in tests).
type SyncNotifier interface {
	NotifySync(userID, event string, result *models.SyncResult)
}

// Window is a transaction date range. The zero value means "rolling 30 days
// ending now".
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) orDefault(now time.Time) Window {
	if w.From.IsZero() && w.To.IsZero() {
		return Window{From: now.Add(-DefaultSyncWindow), To: now}
	}
	return w
}

// SyncService fetches a transaction window for a linked account, classifies
// every transaction, and upserts the batch keyed on
// (user, account, external id). It owns the per-account in-flight guard and
// the periodic refresh scheduler; all sync triggers (manual, initial
// activation, timer) funnel through Sync.
type SyncService struct {
	provider transactionProvider
	store    transactionStore
	tokens   tokenSource
	notifier SyncNotifier

	mu       sync.Mutex
	inflight map[string]bool // account id -> sync running

	refreshMu    sync.Mutex
	refreshStops map[string]chan struct{} // user id + account id -> stop
}

func NewSyncService(provider transactionProvider, store transactionStore, tokens tokenSource) *SyncService {
	return &SyncService{
		provider:     provider,
		store:        store,
		tokens:       tokens,
		inflight:     make(map[string]bool),
		refreshStops: make(map[string]chan struct{}),
	}
}

// SetNotifier attaches a lifecycle event sink. Optional.
func (s *SyncService) SetNotifier(n SyncNotifier) {
	s.notifier = n
}

// Sync runs the fetch → classify → upsert pipeline for one account.
//
// Guard policy: a second Sync for an account that already has one running is
// rejected with ErrSyncInProgress (not coalesced); callers simply retry
// later. This keeps persistence single-writer per account, so two upsert
// batches can never interleave.
//
// A fetch failure aborts with a ProviderError and zero rows persisted. A
// store failure mid-batch returns a PersistenceError carrying the rows that
// did land; the result is partial, not void, and retrying is safe because the
// upsert is idempotent.
func (s *SyncService) Sync(ctx context.Context, link models.AccountLink, window Window) (*models.SyncResult, error) {
	s.mu.Lock()
	if s.inflight[link.AccountID] {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	s.inflight[link.AccountID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, link.AccountID)
		s.mu.Unlock()
	}()

	window = window.orDefault(time.Now())
	result := &models.SyncResult{AccountID: link.AccountID}
	s.notify(link.UserID, "sync_started", result)

	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.notify(link.UserID, "sync_failed", result)
		return result, asProviderError("token", err)
	}

	fetched, err := s.provider.GetTransactions(ctx, token, link.AccountID, window.From, window.To)
	if err != nil {
		s.notify(link.UserID, "sync_failed", result)
		return result, asProviderError("get transactions", err)
	}
	result.Fetched = len(fetched)

	rows := make([]models.Transaction, 0, len(fetched))
	for _, tx := range fetched {
		category := Classify(tx.Description)
		rows = append(rows, models.Transaction{
			UserID:      link.UserID,
			AccountID:   link.AccountID,
			ExternalID:  tx.ID,
			Description: tx.Description,
			Amount:      tx.Amount,
			Currency:    tx.Currency,
			BookedAt:    tx.Date,
			Category:    category.Name,
			ColorHint:   category.ColorHint,
		})
	}

	persisted, err := s.store.UpsertTransactions(ctx, rows)
	result.Persisted = persisted
	if err != nil {
		s.notify(link.UserID, "sync_failed", result)
		return result, &PersistenceError{Persisted: persisted, Err: err}
	}

	log.Printf("🔄 Synced account %s: %d fetched, %d persisted", link.AccountID, result.Fetched, result.Persisted)
	s.notify(link.UserID, "sync_completed", result)
	return result, nil
}

// StartAutoRefresh re-syncs the account at a fixed interval until stopped.
// Schedules are keyed per (user, account): starting a new one replaces only
// that link's schedule and never touches another user's.
func (s *SyncService) StartAutoRefresh(link models.AccountLink, interval time.Duration) {
	key := refreshKey(link.UserID, link.AccountID)

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if old, ok := s.refreshStops[key]; ok {
		close(old)
	}
	stop := make(chan struct{})
	s.refreshStops[key] = stop

	go s.refreshLoop(link, interval, stop)
	log.Printf("⏱️ Auto-refresh enabled for account %s every %v", link.AccountID, interval)
}

// StopAutoRefresh disables the scheduler for one of the user's links. It
// takes effect before the next tick: no sync is fired after this returns. A
// sync already running is left to finish.
func (s *SyncService) StopAutoRefresh(userID, accountID string) {
	key := refreshKey(userID, accountID)

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if stop, ok := s.refreshStops[key]; ok {
		close(stop)
		delete(s.refreshStops, key)
		log.Printf("⏹️ Auto-refresh disabled for account %s", accountID)
	}
}

func refreshKey(userID, accountID string) string {
	return userID + ":" + accountID
}

func (s *SyncService) refreshLoop(link models.AccountLink, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Re-check stop: a close racing the tick must win, never the sync.
			select {
			case <-stop:
				return
			default:
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			_, err := s.Sync(ctx, link, Window{})
			cancel()
			if err != nil && !errors.Is(err, ErrSyncInProgress) {
				log.Printf("⚠️ Scheduled sync for account %s failed: %v", link.AccountID, err)
			}
		}
	}
}

func (s *SyncService) notify(userID, event string, result *models.SyncResult) {
	if s.notifier != nil {
		s.notifier.NotifySync(userID, event, result)
	}
}

// asProviderError wraps err as a ProviderError unless it already is one.
func asProviderError(op string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Op: op, Err: err}
}
