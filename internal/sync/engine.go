package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fintrack/internal/models"
	"fintrack/internal/truelayer"
)

const (
	// windowDays is the trailing range re-fetched and compared on every
	// incremental pass.
	windowDays = 30

	// historyYears is the lookback for an account's very first sync.
	historyYears = 6
)

var engineTracer = otel.Tracer("fintrack/sync")

// AccountStore enumerates the accounts to synchronize.
type AccountStore interface {
	All(ctx context.Context) ([]*models.Account, error)
}

// TransactionStore is the persistence surface the engine reconciles against.
type TransactionStore interface {
	HasAny(ctx context.Context, accountID string) (bool, error)
	IDsSince(ctx context.Context, accountID string, since time.Time) ([]string, error)
	DeleteSince(ctx context.Context, accountID string, since time.Time) (int64, error)
	InsertBatch(ctx context.Context, accountID string, transactions []*models.Transaction) error
}

// TransactionFetcher pulls fresh transactions from the upstream aggregator.
type TransactionFetcher interface {
	Transactions(ctx context.Context, accountID string, from, to time.Time) ([]truelayer.Transaction, error)
}

// PassResult summarizes one full pass over all accounts.
type PassResult struct {
	Accounts int
	Synced   int
	Failed   int
	Inserted int
}

// Engine reconciles stored transactions against the aggregator, one account
// at a time. Accounts that have never been synced get their full history;
// after that each pass re-fetches a trailing window and replaces it wholesale
// when the id set or count differs.
type Engine struct {
	accounts     AccountStore
	transactions TransactionStore
	fetcher      TransactionFetcher
	now          func() time.Time
}

func NewEngine(accounts AccountStore, transactions TransactionStore, fetcher TransactionFetcher) *Engine {
	return &Engine{
		accounts:     accounts,
		transactions: transactions,
		fetcher:      fetcher,
		now:          time.Now,
	}
}

// SyncAll runs one reconciliation pass over every known account. A failure
// on one account is logged and counted; the pass always continues to the
// next account.
func (e *Engine) SyncAll(ctx context.Context) (PassResult, error) {
	ctx, span := engineTracer.Start(ctx, "sync.pass")
	defer span.End()

	accounts, err := e.accounts.All(ctx)
	if err != nil {
		return PassResult{}, fmt.Errorf("failed to list accounts: %w", err)
	}

	result := PassResult{Accounts: len(accounts)}
	for _, account := range accounts {
		inserted, err := e.syncAccount(ctx, account.ID)
		if err != nil {
			log.Printf("sync failed for account %s: %v", account.ID, err)
			result.Failed++
			continue
		}
		result.Synced++
		result.Inserted += inserted
	}

	span.SetAttributes(
		attribute.Int("sync.accounts", result.Accounts),
		attribute.Int("sync.failed", result.Failed),
		attribute.Int("sync.inserted", result.Inserted),
	)

	return result, nil
}

func (e *Engine) syncAccount(ctx context.Context, accountID string) (int, error) {
	ctx, span := engineTracer.Start(ctx, "sync.account",
		trace.WithAttributes(attribute.String("account.id", accountID)))
	defer span.End()

	hasAny, err := e.transactions.HasAny(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to check stored transactions: %w", err)
	}

	if !hasAny {
		return e.firstSync(ctx, accountID)
	}
	return e.incrementalSync(ctx, accountID)
}

// firstSync pulls the account's full history and inserts all of it. There is
// nothing stored yet, so no comparison and no deletion.
func (e *Engine) firstSync(ctx context.Context, accountID string) (int, error) {
	to := e.now().UTC()
	from := to.AddDate(-historyYears, 0, 0)

	log.Printf("first sync for account %s, fetching full history", accountID)

	fresh, err := e.fetcher.Transactions(ctx, accountID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	rows := toRows(accountID, fresh)
	if err := e.transactions.InsertBatch(ctx, accountID, rows); err != nil {
		return 0, fmt.Errorf("failed to store transactions: %w", err)
	}

	log.Printf("inserted %d transactions for account %s", len(rows), accountID)
	return len(rows), nil
}

// incrementalSync re-fetches the trailing window and, when the fresh set
// differs from the stored one, replaces the whole window. The stored rows in
// the window are deleted and the fresh set reinserted; nothing is ever
// updated row by row.
func (e *Engine) incrementalSync(ctx context.Context, accountID string) (int, error) {
	now := e.now().UTC()
	start := windowStart(now)

	stored, err := e.transactions.IDsSince(ctx, accountID, start)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored transaction ids: %w", err)
	}

	fresh, err := e.fetcher.Transactions(ctx, accountID, start, now)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	if !changed(fresh, stored) {
		log.Printf("no changes for account %s since %s", accountID, start.Format(time.RFC3339))
		return 0, nil
	}

	log.Printf("changes detected for account %s, replacing window since %s", accountID, start.Format(time.RFC3339))

	if _, err := e.transactions.DeleteSince(ctx, accountID, start); err != nil {
		return 0, fmt.Errorf("failed to delete stored transactions: %w", err)
	}

	rows := toRows(accountID, fresh)
	if err := e.transactions.InsertBatch(ctx, accountID, rows); err != nil {
		return 0, fmt.Errorf("failed to store transactions: %w", err)
	}

	log.Printf("inserted %d transactions for account %s", len(rows), accountID)
	return len(rows), nil
}

// windowStart is the trailing window's lower bound: windowDays ago,
// truncated to UTC midnight so repeated passes on the same day compare the
// same stored range.
func windowStart(now time.Time) time.Time {
	start := now.AddDate(0, 0, -windowDays)
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}

// changed reports whether the fresh set differs from the stored ids. The
// comparison is count and id membership only. Two sets with identical ids
// and counts compare equal even when field values (amount, category,
// description) were corrected upstream; such edits are not re-synced.
func changed(fresh []truelayer.Transaction, stored []string) bool {
	if len(fresh) != len(stored) {
		return true
	}

	ids := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		ids[id] = struct{}{}
	}

	for _, tx := range fresh {
		if _, ok := ids[tx.TransactionID]; !ok {
			return true
		}
	}

	return false
}

func toRows(accountID string, fresh []truelayer.Transaction) []*models.Transaction {
	rows := make([]*models.Transaction, 0, len(fresh))
	for _, tx := range fresh {
		t := tx
		rows = append(rows, &models.Transaction{
			ID:           t.TransactionID,
			AccountID:    accountID,
			Timestamp:    t.Timestamp,
			Amount:       t.Amount,
			Currency:     t.Currency,
			Type:         &t.TransactionType,
			Category:     &t.TransactionCategory,
			Description:  &t.Description,
			MerchantName: t.MerchantName,
		})
	}
	return rows
}
