package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trinetra/internal/utils"
	"trinetra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const formLinkTableName = "form_links"

var formLinkColumns = utils.StructTagValues(types.FormLink{})

func terminalStatuses() []string {
	out := make([]string, len(types.TerminalStatuses))
	for i, s := range types.TerminalStatuses {
		out[i] = string(s)
	}
	return out
}

// openLink matches links that may still be drafted or submitted at now.
func openLink(token string, now time.Time) sq.And {
	return sq.And{
		sq.Eq{"token": token},
		sq.NotEq{"status": terminalStatuses()},
		sq.Or{sq.Eq{"draft_expires_at": nil}, sq.Gt{"draft_expires_at": now}},
	}
}

type FormLinkRepository struct {
	pool *pgxpool.Pool
}

func NewFormLinkRepository(pool *pgxpool.Pool) *FormLinkRepository {
	return &FormLinkRepository{pool: pool}
}

func (r *FormLinkRepository) CreateLink(ctx context.Context, link *types.FormLink) error {
	now := time.Now()
	if link.ID == "" {
		link.ID = utils.NanoID()
	}
	link.CreatedAt = now
	link.UpdatedAt = now

	query, args, err := psql().
		Insert(formLinkTableName).
		SetMap(utils.StructToMap(link)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert form link query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if isUniqueViolation(err) {
		return types.ErrTokenTaken
	}

	return utils.ErrorWrapOrNil(err, "failed to insert form link")
}

func (r *FormLinkRepository) LinkByToken(ctx context.Context, token string) (*types.FormLink, error) {
	return linkByToken(ctx, r.pool, token)
}

func linkByToken(ctx context.Context, db pgxscan.Querier, token string) (*types.FormLink, error) {
	query, args, err := psql().
		Select(formLinkColumns...).
		From(formLinkTableName).
		Where(sq.Eq{"token": token}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate form link query: %w", err)
	}

	var link types.FormLink
	err = pgxscan.Get(ctx, db, &link, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrFormLinkNotFound
		}
		return nil, fmt.Errorf("failed to fetch form link: %w", err)
	}

	return &link, nil
}

func (r *FormLinkRepository) Links(ctx context.Context, filter types.FormLinkFilter) ([]*types.FormLink, error) {
	builder := psql().
		Select(formLinkColumns...).
		From(formLinkTableName).
		OrderBy("created_at desc")

	if filter.Creators != nil {
		builder = builder.Where(sq.Eq{"created_by": filter.Creators})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if formType, ok := types.ParseFormType(filter.FormType); ok {
		builder = builder.Where(sq.Eq{"form_type": formType})
	}
	if filter.CreatedBy != "" {
		builder = builder.Where(sq.Eq{"created_by": filter.CreatedBy})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate form links query: %w", err)
	}

	links := make([]*types.FormLink, 0)
	err = pgxscan.Select(ctx, r.pool, &links, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch form links: %w", err)
	}

	return links, nil
}

// DeleteLinks removes links by id. Responses and forms go with them through
// ON DELETE CASCADE.
func (r *FormLinkRepository) DeleteLinks(ctx context.Context, ids []string, creators []string) (int64, error) {
	builder := psql().
		Delete(formLinkTableName).
		Where(sq.Eq{"id": ids})
	if creators != nil {
		builder = builder.Where(sq.Eq{"created_by": creators})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate delete form links query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete form links: %w", err)
	}

	return tag.RowsAffected(), nil
}

func markClickedQuery(token string, now time.Time) sq.UpdateBuilder {
	unopened := make([]string, len(types.UnopenedStatuses))
	for i, s := range types.UnopenedStatuses {
		unopened[i] = string(s)
	}

	return psql().
		Update(formLinkTableName).
		Set("status", types.LinkStatusClicked).
		Set("updated_at", now).
		Where(sq.Eq{"token": token, "status": unopened})
}

func (r *FormLinkRepository) MarkClicked(ctx context.Context, token string) (bool, error) {
	query, args, err := markClickedQuery(token, time.Now()).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate mark clicked query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark form link clicked: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *FormLinkRepository) ExpireLink(ctx context.Context, token string) (bool, error) {
	query, args, err := psql().
		Update(formLinkTableName).
		Set("status", types.LinkStatusExpired).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"token": token}).
		Where(sq.NotEq{"status": terminalStatuses()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate expire query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to expire form link: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func expireStaleQuery(now time.Time) sq.UpdateBuilder {
	return psql().
		Update(formLinkTableName).
		Set("status", types.LinkStatusExpired).
		Set("updated_at", now).
		Where(sq.NotEq{"status": terminalStatuses()}).
		Where(sq.Lt{"draft_expires_at": now})
}

func (r *FormLinkRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := expireStaleQuery(now).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate expire stale query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale form links: %w", err)
	}

	return tag.RowsAffected(), nil
}

// closeLinkQuery only matches the row while the link is still open, so of two
// concurrent submissions at most one updates it.
func closeLinkQuery(token string, status types.LinkStatus, set map[string]any, now time.Time) sq.UpdateBuilder {
	builder := psql().
		Update(formLinkTableName).
		Set("status", status).
		Set("updated_at", now)

	columns := make([]string, 0, len(set))
	for column := range set {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		builder = builder.Set(column, set[column])
	}

	return builder.Where(openLink(token, now))
}

// closeLink moves an open link to status inside tx, applying set on top.
// When the link is no longer open it returns *types.StateError carrying the
// status that blocked the write.
func closeLink(ctx context.Context, tx pgx.Tx, token string, status types.LinkStatus, set map[string]any, op string) error {
	now := time.Now()

	query, args, err := closeLinkQuery(token, status, set, now).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate form link transition query: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update form link status: %w", err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	link, err := linkByToken(ctx, tx, token)
	if err != nil {
		return err
	}

	return &types.StateError{Token: token, Status: link.EffectiveStatus(now), Op: op}
}
