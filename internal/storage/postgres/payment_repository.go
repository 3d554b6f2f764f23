package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
// UNIQUE-ограничение на order_id обеспечивает инвариант «один платёж на заказ».
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Create(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, order_id, amount_minor, currency, method, transaction_id,
			refund_transaction_id, status, failure_reason, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		payment.ID, payment.OrderID, payment.AmountMinor, payment.Currency,
		string(payment.Method), payment.TransactionID, payment.RefundTransactionID,
		string(payment.Status), payment.FailureReason, payment.Version,
		payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) Get(id string) (domain.Payment, error) {
	return r.getBy(`WHERE id = $1`, id)
}

func (r *paymentRepository) GetByOrder(orderID string) (domain.Payment, error) {
	return r.getBy(`WHERE order_id = $1`, orderID)
}

func (r *paymentRepository) GetByTransaction(transactionID string) (domain.Payment, error) {
	return r.getBy(`WHERE transaction_id = $1`, transactionID)
}

func (r *paymentRepository) Save(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET method = $1,
		    transaction_id = $2,
		    refund_transaction_id = $3,
		    status = $4,
		    failure_reason = $5,
		    version = version + 1,
		    updated_at = $6
		WHERE id = $7
		  AND version = $8
	`,
		string(payment.Method),
		payment.TransactionID,
		payment.RefundTransactionID,
		string(payment.Status),
		payment.FailureReason,
		payment.UpdatedAt,
		payment.ID,
		payment.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.paymentExists(ctx, payment.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrPaymentNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *paymentRepository) ListByStatus(status domain.PaymentStatus, limit int) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, order_id, amount_minor, currency, method, transaction_id,
		       refund_transaction_id, status, failure_reason, version, created_at, updated_at
		FROM payments
		WHERE status = $1
		ORDER BY updated_at ASC, id ASC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", string(status), limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list payments by status: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) getBy(where string, arg string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	payment, err := scanPayment(r.db.QueryRowContext(ctx, `
		SELECT id, order_id, amount_minor, currency, method, transaction_id,
		       refund_transaction_id, status, failure_reason, version, created_at, updated_at
		FROM payments
	`+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}

	return payment, nil
}

func scanPayment(row scanner) (domain.Payment, error) {
	var (
		payment domain.Payment
		method  string
		status  string
	)
	if err := row.Scan(
		&payment.ID, &payment.OrderID, &payment.AmountMinor, &payment.Currency,
		&method, &payment.TransactionID, &payment.RefundTransactionID, &status,
		&payment.FailureReason, &payment.Version, &payment.CreatedAt, &payment.UpdatedAt,
	); err != nil {
		return domain.Payment{}, err
	}
	payment.Method = domain.PaymentMethod(method)
	payment.Status = domain.PaymentStatus(status)
	return payment, nil
}

func (r *paymentRepository) paymentExists(ctx context.Context, id string) (bool, error) {
	var got string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM payments WHERE id = $1`, id).Scan(&got)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check payment exists: %w", err)
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
