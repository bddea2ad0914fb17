// Package store holds the Postgres repositories. Queries are built with
// squirrel and scanned with pgxscan.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// buildUpdateClause renders the SET list of an ON CONFLICT DO UPDATE, e.g.
// "email = EXCLUDED.email, status = EXCLUDED.status". Columns in skip are
// left untouched.
func buildUpdateClause(fields map[string]any, skip ...string) string {
	columns := make([]string, 0, len(fields))
outer:
	for field := range fields {
		for _, s := range skip {
			if field == s {
				continue outer
			}
		}
		columns = append(columns, field)
	}
	sort.Strings(columns)

	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
	}
	return strings.Join(parts, ", ")
}
