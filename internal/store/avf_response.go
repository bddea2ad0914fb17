package store

import (
	"context"
	"fmt"

	"trinetra/internal/utils"
	"trinetra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const avfResponseTableName = "avf_responses"

var avfResponseColumns = utils.StructTagValues(types.AVFResponse{})

type AVFResponseRepository struct {
	pool *pgxpool.Pool
}

func NewAVFResponseRepository(pool *pgxpool.Pool) *AVFResponseRepository {
	return &AVFResponseRepository{pool: pool}
}

func (r *AVFResponseRepository) AVFResponse(ctx context.Context, token string) (*types.AVFResponse, error) {
	query, args, err := psql().
		Select(avfResponseColumns...).
		From(avfResponseTableName).
		Where(sq.Eq{"form_link_token": token}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate avf response query: %w", err)
	}

	var resp types.AVFResponse
	err = pgxscan.Get(ctx, r.pool, &resp, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch avf response: %w", err)
	}

	return &resp, nil
}

// SubmitAVF closes the link and stores the response in one transaction.
func (r *AVFResponseRepository) SubmitAVF(ctx context.Context, resp *types.AVFResponse) error {
	if resp.ID == "" {
		resp.ID = utils.NanoID()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = closeLink(ctx, tx, resp.FormLinkToken, types.LinkStatusSubmitted, map[string]any{
		"response_pdf": resp.ResponsePDF,
	}, types.OpSubmit)
	if err != nil {
		return err
	}

	query, args, err := psql().
		Insert(avfResponseTableName).
		SetMap(utils.StructToMap(resp)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert avf response query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert avf response: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
