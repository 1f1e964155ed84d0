package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/models"
)

// insertBatchSize caps how many rows a single INSERT statement carries,
// keeping well clear of the 65535 bind-parameter limit.
const insertBatchSize = 100

const transactionColumns = "id, account_id, timestamp, amount, currency, type, category, description, merchant_name"

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// HasAny reports whether the account has at least one stored transaction.
func (r *TransactionRepository) HasAny(ctx context.Context, accountID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM transactions WHERE account_id = $1)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for transactions: %w", err)
	}

	return exists, nil
}

// IDsSince returns the ids of an account's transactions at or after the
// given instant.
func (r *TransactionRepository) IDsSince(ctx context.Context, accountID string, since time.Time) ([]string, error) {
	query := `
		SELECT id FROM transactions
		WHERE account_id = $1 AND timestamp >= $2
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan transaction id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction ids: %w", err)
	}

	return ids, nil
}

// ListByAccount returns an account's transactions, newest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		err := rows.Scan(
			&tx.ID, &tx.AccountID, &tx.Timestamp, &tx.Amount, &tx.Currency,
			&tx.Type, &tx.Category, &tx.Description, &tx.MerchantName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// DeleteSince removes an account's transactions at or after the given
// instant and returns how many rows went away.
func (r *TransactionRepository) DeleteSince(ctx context.Context, accountID string, since time.Time) (int64, error) {
	query := `DELETE FROM transactions WHERE account_id = $1 AND timestamp >= $2`

	result, err := r.db.ExecContext(ctx, query, accountID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return count, nil
}

// InsertBatch writes transactions for an account in multi-row INSERT
// statements of at most insertBatchSize rows each.
func (r *TransactionRepository) InsertBatch(ctx context.Context, accountID string, transactions []*models.Transaction) error {
	for start := 0; start < len(transactions); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(transactions) {
			end = len(transactions)
		}

		query, args := buildInsert(accountID, transactions[start:end])
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert transaction batch: %w", err)
		}
	}

	return nil
}

// buildInsert assembles one multi-row INSERT for a chunk of transactions.
func buildInsert(accountID string, chunk []*models.Transaction) (string, []any) {
	const columnCount = 9

	var sb strings.Builder
	sb.WriteString("INSERT INTO transactions (")
	sb.WriteString(transactionColumns)
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(chunk)*columnCount)
	for i, tx := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * columnCount
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args,
			tx.ID, accountID, tx.Timestamp, tx.Amount, tx.Currency,
			tx.Type, tx.Category, tx.Description, tx.MerchantName,
		)
	}

	return sb.String(), args
}
