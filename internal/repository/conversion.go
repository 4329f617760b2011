package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/numeric"
)

type conversionRepo struct{}

// NewConversionRepository returns a pgx-backed ConversionRepository.
func NewConversionRepository() ConversionRepository {
	return &conversionRepo{}
}

const conversionColumns = `id, order_id, click_id, partner_id, referral_code, product_id,
	       category_id, conversion_type, status, gross_amount, refunded_amount,
	       quantity, refunded_quantity, currency, is_new_customer, created_at, updated_at`

var conversionSortColumns = map[string]string{
	"created_at":   "created_at",
	"status":       "status",
	"gross_amount": "gross_amount",
}

func (r *conversionRepo) Insert(ctx context.Context, db DBTX, conv *domain.Conversion) error {
	_, err := db.Exec(ctx, `
		INSERT INTO conversions
		  (id, order_id, click_id, partner_id, referral_code, product_id, category_id,
		   conversion_type, status, gross_amount, refunded_amount, quantity,
		   refunded_quantity, currency, is_new_customer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		conv.ID, conv.OrderID, conv.ClickID, conv.PartnerID, conv.ReferralCode,
		conv.ProductID, conv.CategoryID, string(conv.Type), string(conv.Status),
		numeric.DecimalToNumeric(conv.GrossAmount), numeric.DecimalToNumeric(conv.RefundedAmount),
		conv.Quantity, conv.RefundedQuantity, conv.Currency, conv.IsNewCustomer,
		conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

func (r *conversionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Conversion, error) {
	row := db.QueryRow(ctx, `SELECT `+conversionColumns+` FROM conversions WHERE id = $1`, id)
	return scanConversion(row)
}

func (r *conversionRepo) FindByOrderID(ctx context.Context, db DBTX, orderID string) (*domain.Conversion, error) {
	row := db.QueryRow(ctx, `SELECT `+conversionColumns+` FROM conversions WHERE order_id = $1`, orderID)
	return scanConversion(row)
}

func (r *conversionRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Conversion, error) {
	row := tx.QueryRow(ctx, `SELECT `+conversionColumns+` FROM conversions WHERE id = $1 FOR UPDATE`, id)
	return scanConversion(row)
}

func (r *conversionRepo) Update(ctx context.Context, db DBTX, conv *domain.Conversion) error {
	_, err := db.Exec(ctx, `
		UPDATE conversions
		SET click_id = $2, partner_id = $3, status = $4, refunded_amount = $5,
		    refunded_quantity = $6, updated_at = now()
		WHERE id = $1`,
		conv.ID, conv.ClickID, conv.PartnerID, string(conv.Status),
		numeric.DecimalToNumeric(conv.RefundedAmount), conv.RefundedQuantity)
	if err != nil {
		return fmt.Errorf("update conversion: %w", err)
	}
	return nil
}

func (r *conversionRepo) List(ctx context.Context, db DBTX, f domain.ConversionFilters) ([]domain.Conversion, int64, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if f.PartnerID != nil {
		args = append(args, *f.PartnerID)
		where = append(where, fmt.Sprintf("partner_id = $%d", len(args)))
	}
	if f.OrderID != "" {
		args = append(args, f.OrderID)
		where = append(where, fmt.Sprintf("order_id = $%d", len(args)))
	}
	if f.ReferralCode != "" {
		args = append(args, f.ReferralCode)
		where = append(where, fmt.Sprintf("referral_code = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != nil {
		args = append(args, string(*f.Type))
		where = append(where, fmt.Sprintf("conversion_type = $%d", len(args)))
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if f.MinAmount != nil {
		args = append(args, numeric.DecimalToNumeric(*f.MinAmount))
		where = append(where, fmt.Sprintf("gross_amount >= $%d", len(args)))
	}
	if f.MaxAmount != nil {
		args = append(args, numeric.DecimalToNumeric(*f.MaxAmount))
		where = append(where, fmt.Sprintf("gross_amount <= $%d", len(args)))
	}
	if f.IsNewCustomer != nil {
		args = append(args, *f.IsNewCustomer)
		where = append(where, fmt.Sprintf("is_new_customer = $%d", len(args)))
	}

	offset, limit := f.Normalize()
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total
		FROM conversions
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		conversionColumns, strings.Join(where, " AND "),
		orderClause(conversionSortColumns, f.SortBy, f.SortOrder),
		len(args)-1, len(args))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()

	var convs []domain.Conversion
	var total int64
	for rows.Next() {
		var c domain.Conversion
		var grossNum, refundedNum pgtype.Numeric
		if err := rows.Scan(
			&c.ID, &c.OrderID, &c.ClickID, &c.PartnerID, &c.ReferralCode,
			&c.ProductID, &c.CategoryID, &c.Type, &c.Status, &grossNum, &refundedNum,
			&c.Quantity, &c.RefundedQuantity, &c.Currency, &c.IsNewCustomer,
			&c.CreatedAt, &c.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan conversion row: %w", err)
		}
		if c.GrossAmount, err = numeric.NumericToDecimal(grossNum); err != nil {
			return nil, 0, fmt.Errorf("convert gross_amount: %w", err)
		}
		if c.RefundedAmount, err = numeric.NumericToDecimal(refundedNum); err != nil {
			return nil, 0, fmt.Errorf("convert refunded_amount: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, total, rows.Err()
}

func (r *conversionRepo) Stats(ctx context.Context, db DBTX, partnerID uuid.UUID, from, to *time.Time) (*domain.ConversionStats, error) {
	where := "partner_id = $1"
	args := []interface{}{partnerID}
	if from != nil {
		args = append(args, *from)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	var s domain.ConversionStats
	var grossNum, refundedNum pgtype.Numeric
	err := db.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'confirmed'),
		       COUNT(*) FILTER (WHERE status = 'cancelled'),
		       COUNT(*) FILTER (WHERE status = 'refunded'),
		       COUNT(*) FILTER (WHERE click_id IS NULL),
		       COUNT(*) FILTER (WHERE is_new_customer),
		       COALESCE(SUM(gross_amount), 0),
		       COALESCE(SUM(refunded_amount), 0)
		FROM conversions WHERE %s`, where), args...).
		Scan(&s.Total, &s.Pending, &s.Confirmed, &s.Cancelled, &s.Refunded,
			&s.Unattributed, &s.NewCustomers, &grossNum, &refundedNum)
	if err != nil {
		return nil, fmt.Errorf("conversion stats: %w", err)
	}
	if s.GrossSum, err = numeric.NumericToDecimal(grossNum); err != nil {
		return nil, err
	}
	if s.RefundedSum, err = numeric.NumericToDecimal(refundedNum); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanConversion(row pgx.Row) (*domain.Conversion, error) {
	var c domain.Conversion
	var grossNum, refundedNum pgtype.Numeric
	err := row.Scan(
		&c.ID, &c.OrderID, &c.ClickID, &c.PartnerID, &c.ReferralCode,
		&c.ProductID, &c.CategoryID, &c.Type, &c.Status, &grossNum, &refundedNum,
		&c.Quantity, &c.RefundedQuantity, &c.Currency, &c.IsNewCustomer,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan conversion: %w", err)
	}

	var convErr error
	if c.GrossAmount, convErr = numeric.NumericToDecimal(grossNum); convErr != nil {
		return nil, fmt.Errorf("convert gross_amount: %w", convErr)
	}
	if c.RefundedAmount, convErr = numeric.NumericToDecimal(refundedNum); convErr != nil {
		return nil, fmt.Errorf("convert refunded_amount: %w", convErr)
	}
	return &c, nil
}
