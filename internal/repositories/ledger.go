package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/shared"
)

// LedgerRepository runs read-only queries against the agency ledger: sub-account transactions,
// refunded accounts, the sub-account registry and the provider (MCC) registry.
//
// Rows come back as column-named [models.Record] values.
type LedgerRepository struct {
	db     *sql.DB
	driver string
}

// NewLedgerRepository creates a LedgerRepository. driver selects placeholder syntax ("sqlite3" or "postgres").
func NewLedgerRepository(db *sql.DB, driver string) *LedgerRepository {
	return &LedgerRepository{db: db, driver: driver}
}

// AccountTransactions returns every sub-account transaction, newest first.
func (r *LedgerRepository) AccountTransactions(ctx context.Context) ([]models.Record, error) {
	return r.queryAll(ctx, "SELECT * FROM sub_transactions ORDER BY id DESC")
}

// RefundedAccounts returns every refunded account, newest first.
func (r *LedgerRepository) RefundedAccounts(ctx context.Context) ([]models.Record, error) {
	return r.queryAll(ctx, "SELECT * FROM refunded_accounts ORDER BY created DESC")
}

// AccountsWithTeam returns sub-accounts assigned to a real team, newest first.
func (r *LedgerRepository) AccountsWithTeam(ctx context.Context) ([]models.Record, error) {
	return r.queryAll(ctx, "SELECT * FROM sub_accounts WHERE team_name <> ? ORDER BY created DESC", "default")
}

// AccountByUID looks up a sub-account in the registry.
func (r *LedgerRepository) AccountByUID(ctx context.Context, uid string) models.Lookup[models.Record] {
	return r.queryOne(ctx, "SELECT * FROM sub_accounts WHERE account_uid = ? LIMIT 1", uid)
}

// RefundByUID looks up the refund record for an account.
func (r *LedgerRepository) RefundByUID(ctx context.Context, uid string) models.Lookup[models.Record] {
	return r.queryOne(ctx, "SELECT * FROM refunded_accounts WHERE account_uid = ? LIMIT 1", uid)
}

// ProviderByUUID looks up a provider (MCC) by uuid.
func (r *LedgerRepository) ProviderByUUID(ctx context.Context, uuid string) models.Lookup[models.Record] {
	return r.queryOne(ctx, "SELECT * FROM mcc WHERE mcc_uuid = ? LIMIT 1", uuid)
}

func (r *LedgerRepository) queryAll(ctx context.Context, query string, args ...any) ([]models.Record, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSourceRead, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSourceRead, err)
	}
	return records, nil
}

// queryOne maps an empty result to NotFound and any other error to Failed.
func (r *LedgerRepository) queryOne(ctx context.Context, query string, args ...any) models.Lookup[models.Record] {
	records, err := r.queryAll(ctx, query, args...)
	if err != nil {
		return models.Failed[models.Record](err)
	}
	if len(records) == 0 {
		return models.NotFound[models.Record]()
	}
	return models.Found(records[0])
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (r *LedgerRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// scanRecords reads every row into a column-named record, converting []byte values to strings.
func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var records []models.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rec := make(models.Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}
