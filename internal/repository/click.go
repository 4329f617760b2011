package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/partnerlink/platform/internal/domain"
)

type clickRepo struct{}

// NewClickRepository returns a pgx-backed ClickRepository.
func NewClickRepository() ClickRepository {
	return &clickRepo{}
}

const clickColumns = `id, partner_id, referral_code, product_id, ip_address, user_agent,
	       referer, session_id, fingerprint, campaign, medium, source, referral_link,
	       status, invalid_reason, has_converted, created_at`

// clickSortColumns is the allow-list for client-supplied sort keys.
var clickSortColumns = map[string]string{
	"created_at":    "created_at",
	"status":        "status",
	"referral_code": "referral_code",
}

func (r *clickRepo) Insert(ctx context.Context, db DBTX, click *domain.Click) error {
	_, err := db.Exec(ctx, `
		INSERT INTO clicks
		  (id, partner_id, referral_code, product_id, ip_address, user_agent,
		   referer, session_id, fingerprint, campaign, medium, source, referral_link,
		   status, invalid_reason, has_converted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		click.ID, click.PartnerID, click.ReferralCode, click.ProductID,
		click.IPAddress, click.UserAgent, click.Referer, click.SessionID,
		click.Fingerprint, click.Campaign, click.Medium, click.Source,
		click.ReferralLink, string(click.Status), click.InvalidReason,
		click.HasConverted, click.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

func (r *clickRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Click, error) {
	row := db.QueryRow(ctx, `SELECT `+clickColumns+` FROM clicks WHERE id = $1`, id)
	return scanClick(row)
}

func (r *clickRepo) List(ctx context.Context, db DBTX, f domain.ClickFilters) ([]domain.Click, int64, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if f.PartnerID != nil {
		args = append(args, *f.PartnerID)
		where = append(where, fmt.Sprintf("partner_id = $%d", len(args)))
	}
	if f.ReferralCode != "" {
		args = append(args, f.ReferralCode)
		where = append(where, fmt.Sprintf("referral_code = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if f.HasConverted != nil {
		args = append(args, *f.HasConverted)
		where = append(where, fmt.Sprintf("has_converted = $%d", len(args)))
	}

	offset, limit := f.Normalize()
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total
		FROM clicks
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		clickColumns, strings.Join(where, " AND "),
		orderClause(clickSortColumns, f.SortBy, f.SortOrder),
		len(args)-1, len(args))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query clicks: %w", err)
	}
	defer rows.Close()

	var clicks []domain.Click
	var total int64
	for rows.Next() {
		var c domain.Click
		if err := rows.Scan(
			&c.ID, &c.PartnerID, &c.ReferralCode, &c.ProductID, &c.IPAddress,
			&c.UserAgent, &c.Referer, &c.SessionID, &c.Fingerprint, &c.Campaign,
			&c.Medium, &c.Source, &c.ReferralLink, &c.Status, &c.InvalidReason,
			&c.HasConverted, &c.CreatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan click row: %w", err)
		}
		clicks = append(clicks, c)
	}
	return clicks, total, rows.Err()
}

func (r *clickRepo) HasRecentDuplicate(ctx context.Context, db DBTX, referralCode, fingerprint string, since time.Time) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM clicks
			WHERE referral_code = $1 AND fingerprint = $2 AND created_at >= $3
			  AND status IN ('valid', 'duplicate')
		)`, referralCode, fingerprint, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate click: %w", err)
	}
	return exists, nil
}

func (r *clickRepo) LockDedupKey(ctx context.Context, db DBTX, referralCode, fingerprint string) error {
	// Transaction-scoped advisory lock on the hashed pair; released at
	// commit or rollback.
	_, err := db.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`,
		referralCode, fingerprint)
	if err != nil {
		return fmt.Errorf("lock dedup key: %w", err)
	}
	return nil
}

func (r *clickRepo) FindCandidates(ctx context.Context, db DBTX, referralCode, sessionID, fingerprint string, windowStart, windowEnd time.Time, contextMatch bool, limit int) ([]domain.Click, error) {
	where := `referral_code = $1 AND status = 'valid' AND has_converted = FALSE
		  AND created_at >= $2 AND created_at < $3`
	args := []interface{}{referralCode, windowStart, windowEnd}

	if contextMatch {
		args = append(args, sessionID, fingerprint)
		where += ` AND ((session_id <> '' AND session_id = $4) OR (fingerprint <> '' AND fingerprint = $5))`
	}

	args = append(args, limit)
	rows, err := db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM clicks
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d`, clickColumns, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("query candidate clicks: %w", err)
	}
	defer rows.Close()

	var clicks []domain.Click
	for rows.Next() {
		var c domain.Click
		if err := rows.Scan(
			&c.ID, &c.PartnerID, &c.ReferralCode, &c.ProductID, &c.IPAddress,
			&c.UserAgent, &c.Referer, &c.SessionID, &c.Fingerprint, &c.Campaign,
			&c.Medium, &c.Source, &c.ReferralLink, &c.Status, &c.InvalidReason,
			&c.HasConverted, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan candidate click: %w", err)
		}
		clicks = append(clicks, c)
	}
	return clicks, rows.Err()
}

// Claim is the atomic claim-and-mark-converted step of attribution. The
// conditional update guarantees two concurrent binders can never both
// take the same click.
func (r *clickRepo) Claim(ctx context.Context, db DBTX, id uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE clicks SET has_converted = TRUE
		WHERE id = $1 AND has_converted = FALSE AND status = 'valid'`, id)
	if err != nil {
		return false, fmt.Errorf("claim click: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *clickRepo) Stats(ctx context.Context, db DBTX, partnerID uuid.UUID, from, to *time.Time) (*domain.ClickStats, error) {
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

	var s domain.ClickStats
	err := db.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'valid'),
		       COUNT(*) FILTER (WHERE status = 'invalid'),
		       COUNT(*) FILTER (WHERE status = 'duplicate'),
		       COUNT(*) FILTER (WHERE status = 'expired'),
		       COUNT(*) FILTER (WHERE has_converted)
		FROM clicks WHERE %s`, where), args...).
		Scan(&s.Total, &s.Valid, &s.Invalid, &s.Duplicate, &s.Expired, &s.Converted)
	if err != nil {
		return nil, fmt.Errorf("click stats: %w", err)
	}
	if s.Valid > 0 {
		s.ConversionRate = float64(s.Converted) / float64(s.Valid)
	}
	return &s, nil
}

func scanClick(row pgx.Row) (*domain.Click, error) {
	var c domain.Click
	err := row.Scan(
		&c.ID, &c.PartnerID, &c.ReferralCode, &c.ProductID, &c.IPAddress,
		&c.UserAgent, &c.Referer, &c.SessionID, &c.Fingerprint, &c.Campaign,
		&c.Medium, &c.Source, &c.ReferralLink, &c.Status, &c.InvalidReason,
		&c.HasConverted, &c.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan click: %w", err)
	}
	return &c, nil
}

// orderClause maps a client-supplied sort key and direction onto the
// allow-list, defaulting to created_at DESC. Unindexed scans via
// arbitrary sort expressions are not reachable from here.
func orderClause(allowed map[string]string, sortBy, sortOrder string) string {
	col, ok := allowed[sortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}
