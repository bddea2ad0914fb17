package store

import (
	"context"
	"fmt"

	"trinetra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func (r *ReportRepository) Reports(ctx context.Context, creators []string) ([]*types.ReportItem, error) {
	builder := psql().
		Select(
			"fl.id",
			"fl.token",
			"fl.form_type",
			"fl.candidate_name",
			"fl.response_pdf",
			"fl.created_by",
			"COALESCE(a.submitted_at, b.submitted_at, fl.updated_at) AS submitted_at",
		).
		From(formLinkTableName + " fl").
		LeftJoin(avfResponseTableName + " a ON a.form_link_token = fl.token").
		LeftJoin(bgvFormTableName + " b ON b.form_link_token = fl.token").
		Where(sq.Eq{"fl.status": types.LinkStatusSubmitted}).
		Where(sq.NotEq{"fl.response_pdf": nil}).
		OrderBy("submitted_at desc")

	if creators != nil {
		builder = builder.Where(sq.Eq{"fl.created_by": creators})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate reports query: %w", err)
	}

	items := make([]*types.ReportItem, 0)
	err = pgxscan.Select(ctx, r.pool, &items, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reports: %w", err)
	}

	return items, nil
}

func (r *ReportRepository) ReportLinks(ctx context.Context, ids []string, creators []string) ([]*types.FormLink, error) {
	builder := psql().
		Select(formLinkColumns...).
		From(formLinkTableName).
		Where(sq.Eq{"id": ids}).
		Where(sq.NotEq{"response_pdf": nil})

	if creators != nil {
		builder = builder.Where(sq.Eq{"created_by": creators})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate report links query: %w", err)
	}

	links := make([]*types.FormLink, 0)
	err = pgxscan.Select(ctx, r.pool, &links, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report links: %w", err)
	}

	return links, nil
}
