package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classbank-api/internal/models"
)

// Guard failures surfaced by conditional updates. Services translate these
// into API errors; callers must not retry blindly.
var (
	ErrInsufficientBalance  = errors.New("wallet balance below requested amount")
	ErrInsufficientTreasury = errors.New("treasury remaining below requested amount")
)

// LedgerEntry describes one movement to settle. Exactly which wallet and
// treasury columns move depends on the method invoked.
type LedgerEntry struct {
	ClassroomID  string
	FromWalletID *string
	ToWalletID   *string
	Amount       int64
	Type         models.TransactionType
	Reason       string
	ItemID       *string
	CreatedBy    *string
}

// LedgerRepository settles balance movements atomically. Every method runs
// a single database transaction that adjusts balances with guarded updates
// and appends exactly one immutable transaction row, so wallet totals and
// the transaction log can never drift apart.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs a LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Mint moves coins from the classroom treasury into a wallet. Used for
// emissions, streak bonuses and badge rewards.
func (r *LedgerRepository) Mint(ctx context.Context, entry LedgerEntry) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mint: %w", err)
	}
	defer tx.Rollback()

	if err := debitTreasury(ctx, tx, entry.ClassroomID, entry.Amount); err != nil {
		return nil, err
	}
	if entry.ToWalletID == nil {
		return nil, sql.ErrNoRows
	}
	if err := creditWallet(ctx, tx, *entry.ToWalletID, entry.Amount); err != nil {
		return nil, err
	}
	record, err := insertTransaction(ctx, tx, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mint: %w", err)
	}
	return record, nil
}

// WalletCredit is one recipient of a batch emission.
type WalletCredit struct {
	WalletID string
	Amount   int64
}

// BatchMint emits coins to many wallets in one transaction. The treasury is
// debited once for the total, so either every member is paid or none is.
func (r *LedgerRepository) BatchMint(ctx context.Context, classroomID string, credits []WalletCredit, reason string, createdBy *string) ([]models.Transaction, error) {
	var total int64
	for _, c := range credits {
		total += c.Amount
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch mint: %w", err)
	}
	defer tx.Rollback()

	if err := debitTreasury(ctx, tx, classroomID, total); err != nil {
		return nil, err
	}
	records := make([]models.Transaction, 0, len(credits))
	for _, c := range credits {
		walletID := c.WalletID
		if err := creditWallet(ctx, tx, walletID, c.Amount); err != nil {
			return nil, err
		}
		record, err := insertTransaction(ctx, tx, LedgerEntry{
			ClassroomID: classroomID,
			ToWalletID:  &walletID,
			Amount:      c.Amount,
			Type:        models.TransactionEmission,
			Reason:      reason,
			CreatedBy:   createdBy,
		})
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch mint: %w", err)
	}
	return records, nil
}

// Transfer moves coins between two wallets. The treasury is untouched.
func (r *LedgerRepository) Transfer(ctx context.Context, entry LedgerEntry) (*models.Transaction, error) {
	if entry.FromWalletID == nil || entry.ToWalletID == nil {
		return nil, sql.ErrNoRows
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback()

	if err := debitWallet(ctx, tx, *entry.FromWalletID, entry.Amount); err != nil {
		return nil, err
	}
	if err := creditWallet(ctx, tx, *entry.ToWalletID, entry.Amount); err != nil {
		return nil, err
	}
	record, err := insertTransaction(ctx, tx, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer: %w", err)
	}
	return record, nil
}

// Spend removes coins from circulation entirely: the wallet is debited and
// nothing is credited back, so purchases and collective goal contributions
// never refill the treasury. treasury_total - treasury_remaining therefore
// always equals the sum of EMISSION entries.
func (r *LedgerRepository) Spend(ctx context.Context, entry LedgerEntry) (*models.Transaction, error) {
	if entry.FromWalletID == nil {
		return nil, sql.ErrNoRows
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin spend: %w", err)
	}
	defer tx.Rollback()

	if err := debitWallet(ctx, tx, *entry.FromWalletID, entry.Amount); err != nil {
		return nil, err
	}
	record, err := insertTransaction(ctx, tx, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit spend: %w", err)
	}
	return record, nil
}

// Credit introduces coins into a wallet without touching the treasury.
// Used for refunds of spent coins.
func (r *LedgerRepository) Credit(ctx context.Context, entry LedgerEntry) (*models.Transaction, error) {
	if entry.ToWalletID == nil {
		return nil, sql.ErrNoRows
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin credit: %w", err)
	}
	defer tx.Rollback()

	if err := creditWallet(ctx, tx, *entry.ToWalletID, entry.Amount); err != nil {
		return nil, err
	}
	record, err := insertTransaction(ctx, tx, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit credit: %w", err)
	}
	return record, nil
}

// Lock debits a wallet without crediting anything else. The coins are held
// by the savings account row until payout.
func (r *LedgerRepository) Lock(ctx context.Context, entry LedgerEntry) (*models.Transaction, error) {
	if entry.FromWalletID == nil {
		return nil, sql.ErrNoRows
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lock: %w", err)
	}
	defer tx.Rollback()

	if err := debitWallet(ctx, tx, *entry.FromWalletID, entry.Amount); err != nil {
		return nil, err
	}
	record, err := insertTransaction(ctx, tx, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lock: %w", err)
	}
	return record, nil
}

// Payout returns held savings principal to a wallet plus accrued interest.
// Interest enters circulation directly, the way the principal left it: the
// treasury is not involved on either side of a deposit's life.
func (r *LedgerRepository) Payout(ctx context.Context, entry LedgerEntry, interest int64) (*models.Transaction, error) {
	if entry.ToWalletID == nil {
		return nil, sql.ErrNoRows
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payout: %w", err)
	}
	defer tx.Rollback()

	if err := creditWallet(ctx, tx, *entry.ToWalletID, entry.Amount+interest); err != nil {
		return nil, err
	}
	record, err := insertTransaction(ctx, tx, LedgerEntry{
		ClassroomID: entry.ClassroomID,
		ToWalletID:  entry.ToWalletID,
		Amount:      entry.Amount + interest,
		Type:        entry.Type,
		Reason:      entry.Reason,
		CreatedBy:   entry.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payout: %w", err)
	}
	return record, nil
}

func debitTreasury(ctx context.Context, tx *sqlx.Tx, classroomID string, amount int64) error {
	const query = `UPDATE classrooms SET treasury_remaining = treasury_remaining - $2
        WHERE id = $1 AND treasury_remaining >= $2`
	result, err := tx.ExecContext(ctx, query, classroomID, amount)
	if err != nil {
		return fmt.Errorf("debit treasury: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit treasury rows: %w", err)
	}
	if rows == 0 {
		return ErrInsufficientTreasury
	}
	return nil
}

func debitWallet(ctx context.Context, tx *sqlx.Tx, walletID string, amount int64) error {
	const query = `UPDATE wallets SET balance = balance - $2, updated_at = $3
        WHERE id = $1 AND balance >= $2`
	result, err := tx.ExecContext(ctx, query, walletID, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit wallet rows: %w", err)
	}
	if rows == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func creditWallet(ctx context.Context, tx *sqlx.Tx, walletID string, amount int64) error {
	const query = `UPDATE wallets SET balance = balance + $2, updated_at = $3 WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, walletID, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit wallet rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, entry LedgerEntry) (*models.Transaction, error) {
	record := &models.Transaction{
		ID:           uuid.NewString(),
		ClassroomID:  entry.ClassroomID,
		FromWalletID: entry.FromWalletID,
		ToWalletID:   entry.ToWalletID,
		Amount:       entry.Amount,
		Type:         entry.Type,
		Reason:       entry.Reason,
		ItemID:       entry.ItemID,
		CreatedBy:    entry.CreatedBy,
		CreatedAt:    time.Now().UTC(),
	}
	const query = `INSERT INTO transactions (id, classroom_id, from_wallet_id, to_wallet_id, amount, type, reason, item_id, created_by, created_at)
        VALUES (:id, :classroom_id, :from_wallet_id, :to_wallet_id, :amount, :type, :reason, :item_id, :created_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return record, nil
}
