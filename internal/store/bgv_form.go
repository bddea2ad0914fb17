package store

import (
	"context"
	"fmt"
	"time"

	"trinetra/internal/utils"
	"trinetra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bgvFormTableName = "bgv_forms"

var bgvFormColumns = utils.StructTagValues(types.BGVForm{})

type BGVFormRepository struct {
	pool *pgxpool.Pool
}

func NewBGVFormRepository(pool *pgxpool.Pool) *BGVFormRepository {
	return &BGVFormRepository{pool: pool}
}

func (r *BGVFormRepository) BGVForm(ctx context.Context, token string) (*types.BGVForm, error) {
	query, args, err := psql().
		Select(bgvFormColumns...).
		From(bgvFormTableName).
		Where(sq.Eq{"form_link_token": token}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate bgv form query: %w", err)
	}

	var form types.BGVForm
	err = pgxscan.Get(ctx, r.pool, &form, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch bgv form: %w", err)
	}

	return &form, nil
}

func (r *BGVFormRepository) SaveBGVDraft(ctx context.Context, form *types.BGVForm) error {
	return r.save(ctx, form, types.LinkStatusDraft, map[string]any{
		"draft_expires_at": form.DraftExpiresAt,
	}, types.OpDraft)
}

func (r *BGVFormRepository) SubmitBGV(ctx context.Context, form *types.BGVForm) error {
	set := map[string]any{
		"response_pdf":     form.ResponsePDF,
		"draft_expires_at": nil,
	}
	if name := form.FullName(); name != "" {
		set["candidate_name"] = name
	}

	return r.save(ctx, form, types.LinkStatusSubmitted, set, types.OpSubmit)
}

// save moves the link to status and upserts form in the same transaction.
func (r *BGVFormRepository) save(ctx context.Context, form *types.BGVForm, status types.LinkStatus, set map[string]any, op string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := closeLink(ctx, tx, form.FormLinkToken, status, set, op); err != nil {
		return err
	}

	if err := upsertBGVForm(ctx, tx, form); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func upsertBGVForm(ctx context.Context, tx pgx.Tx, form *types.BGVForm) error {
	now := time.Now()
	if form.ID == "" {
		form.ID = utils.NanoID()
	}
	form.CreatedAt = now
	form.UpdatedAt = now

	formMap := utils.StructToMap(form)

	query, args, err := psql().
		Insert(bgvFormTableName).
		SetMap(formMap).
		Suffix("ON CONFLICT (form_link_token) DO UPDATE SET " + buildUpdateClause(formMap, "id", "form_link_token", "created_at")).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate upsert bgv form query: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&form.ID, &form.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert bgv form: %w", err)
	}

	return nil
}
