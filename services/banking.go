package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finwise-app/banklink-api/models"
	"github.com/finwise-app/banklink-api/utils"
)

type BankingService struct {
	db *sql.DB
}

func NewBankingService(db *sql.DB) *BankingService {
	return &BankingService{db: db}
}

// SaveRequisition records a freshly created requisition in status CR.
func (s *BankingService) SaveRequisition(ctx context.Context, req *models.Requisition) error {
	query := `
		INSERT INTO requisitions (id, user_id, institution_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	_, err := s.db.ExecContext(ctx, query, req.ID, req.UserID, req.InstitutionID, models.RequisitionCreated)
	if err != nil {
		return fmt.Errorf("failed to save requisition: %w", err)
	}
	return nil
}

// GetRequisition loads a requisition scoped to its owning user, so a callback
// reference can never resolve someone else's session.
func (s *BankingService) GetRequisition(ctx context.Context, requisitionID, userID string) (*models.Requisition, error) {
	query := `
		SELECT id, user_id, institution_id, status, created_at, updated_at
		FROM requisitions
		WHERE id = $1 AND user_id = $2
	`
	var req models.Requisition
	err := s.db.QueryRowContext(ctx, query, requisitionID, userID).Scan(
		&req.ID, &req.UserID, &req.InstitutionID, &req.Status, &req.CreatedAt, &req.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRequisitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load requisition: %w", err)
	}
	return &req, nil
}

// UpdateRequisitionStatus moves a requisition out of CR. The WHERE clause
// keeps transitions one-directional: a terminal row is never rewritten.
func (s *BankingService) UpdateRequisitionStatus(ctx context.Context, requisitionID, status string) error {
	query := `
		UPDATE requisitions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	_, err := s.db.ExecContext(ctx, query, status, requisitionID, models.RequisitionCreated)
	if err != nil {
		return fmt.Errorf("failed to update requisition status: %w", err)
	}
	return nil
}

// FinalizeLink marks the requisition linked and upserts the account link in a
// single transaction. Re-linking the same (user, account) updates the
// existing row, it never duplicates.
func (s *BankingService) FinalizeLink(ctx context.Context, requisitionID, userID, accountID, bankName string) (*models.AccountLink, error) {
	var link models.AccountLink

	err := utils.WithTransaction(s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE requisitions
			SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3
		`, models.RequisitionLinked, requisitionID, models.RequisitionCreated)
		if err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO account_links (user_id, account_id, bank_name, active, created_at)
			VALUES ($1, $2, $3, TRUE, NOW())
			ON CONFLICT (user_id, account_id)
			DO UPDATE SET bank_name = EXCLUDED.bank_name, active = TRUE
			RETURNING id, user_id, account_id, bank_name, active, created_at
		`, userID, accountID, bankName).Scan(
			&link.ID, &link.UserID, &link.AccountID, &link.BankName, &link.Active, &link.CreatedAt,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize link: %w", err)
	}

	return &link, nil
}

func (s *BankingService) ListActiveAccountLinks(ctx context.Context, userID string) ([]models.AccountLink, error) {
	query := `
		SELECT id, user_id, account_id, bank_name, active, created_at
		FROM account_links
		WHERE user_id = $1 AND active = TRUE
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.AccountLink
	for rows.Next() {
		var link models.AccountLink
		err := rows.Scan(&link.ID, &link.UserID, &link.AccountID, &link.BankName, &link.Active, &link.CreatedAt)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (s *BankingService) DeactivateAccountLink(ctx context.Context, userID, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE account_links SET active = FALSE WHERE user_id = $1 AND account_id = $2",
		userID, accountID)
	return err
}

// UpsertTransactions writes a classified batch row by row, keyed on
// (user_id, account_id, external_id). Rows are committed individually so a
// mid-batch failure still reports how many landed; the caller can retry the
// whole window because the upsert is idempotent.
func (s *BankingService) UpsertTransactions(ctx context.Context, txs []models.Transaction) (int, error) {
	query := `
		INSERT INTO transactions (
			user_id, account_id, external_id, description,
			amount, currency, booked_at, category, color_hint,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (user_id, account_id, external_id)
		DO UPDATE SET
			description = EXCLUDED.description,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			booked_at = EXCLUDED.booked_at,
			category = EXCLUDED.category,
			color_hint = EXCLUDED.color_hint,
			updated_at = NOW()
	`

	persisted := 0
	for _, t := range txs {
		_, err := s.db.ExecContext(ctx, query,
			t.UserID, t.AccountID, t.ExternalID, t.Description,
			t.Amount, t.Currency, t.BookedAt, t.Category, t.ColorHint,
		)
		if err != nil {
			return persisted, fmt.Errorf("failed to upsert transaction %s: %w", t.ExternalID, err)
		}
		persisted++
	}

	return persisted, nil
}

func (s *BankingService) CountTransactions(ctx context.Context, userID, accountID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND account_id = $2",
		userID, accountID).Scan(&count)
	return count, err
}

func (s *BankingService) ListTransactions(ctx context.Context, userID, accountID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, user_id, account_id, external_id, description,
		       amount, currency, booked_at, category, color_hint
		FROM transactions
		WHERE user_id = $1 AND account_id = $2
		ORDER BY booked_at DESC, external_id
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(
			&t.ID, &t.UserID, &t.AccountID, &t.ExternalID, &t.Description,
			&t.Amount, &t.Currency, &t.BookedAt, &t.Category, &t.ColorHint,
		)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
