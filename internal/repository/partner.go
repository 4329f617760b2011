package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/partnerlink/platform/internal/domain"
)

type partnerRepo struct{}

// NewPartnerRepository returns a pgx-backed PartnerRepository.
func NewPartnerRepository() PartnerRepository {
	return &partnerRepo{}
}

const partnerColumns = `id, name, referral_code, status, created_at`

func (r *partnerRepo) Create(ctx context.Context, db DBTX, partner *domain.Partner) error {
	_, err := db.Exec(ctx, `
		INSERT INTO partners (id, name, referral_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		partner.ID, partner.Name, partner.ReferralCode, partner.Status, partner.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert partner: %w", err)
	}
	return nil
}

func (r *partnerRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Partner, error) {
	row := db.QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = $1`, id)
	return scanPartner(row)
}

func (r *partnerRepo) FindByReferralCode(ctx context.Context, db DBTX, code string) (*domain.Partner, error) {
	row := db.QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE referral_code = $1`, code)
	return scanPartner(row)
}

func scanPartner(row pgx.Row) (*domain.Partner, error) {
	var p domain.Partner
	err := row.Scan(&p.ID, &p.Name, &p.ReferralCode, &p.Status, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan partner: %w", err)
	}
	return &p, nil
}
