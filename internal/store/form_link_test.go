package store

import (
	"testing"
	"time"

	"trinetra/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queryTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestCloseLinkQuery(t *testing.T) {
	query, args, err := closeLinkQuery("Ab3dE6gH9k", types.LinkStatusSubmitted, map[string]any{
		"response_pdf":     "/files/reports/a.pdf",
		"draft_expires_at": nil,
	}, queryTime).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE form_links SET status = $1, updated_at = $2, draft_expires_at = $3, response_pdf = $4 "+
			"WHERE (token = $5 AND status NOT IN ($6,$7) AND (draft_expires_at IS NULL OR draft_expires_at > $8))",
		query)
	assert.Equal(t, []any{
		types.LinkStatusSubmitted, queryTime, nil, "/files/reports/a.pdf",
		"Ab3dE6gH9k", "submitted", "expired", queryTime,
	}, args)
}

func TestMarkClickedQuery(t *testing.T) {
	query, args, err := markClickedQuery("Ab3dE6gH9k", queryTime).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE form_links SET status = $1, updated_at = $2 WHERE status IN ($3,$4) AND token = $5", query)
	assert.Equal(t, []any{types.LinkStatusClicked, queryTime, "not_clicked", "pending", "Ab3dE6gH9k"}, args)
}

func TestExpireStaleQuery(t *testing.T) {
	query, args, err := expireStaleQuery(queryTime).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE form_links SET status = $1, updated_at = $2 WHERE status NOT IN ($3,$4) AND draft_expires_at < $5", query)
	assert.Equal(t, []any{types.LinkStatusExpired, queryTime, "submitted", "expired", queryTime}, args)
}

func TestBuildUpdateClause(t *testing.T) {
	clause := buildUpdateClause(map[string]any{"status": 1, "id": 2, "email": 3}, "id")
	assert.Equal(t, "email = EXCLUDED.email, status = EXCLUDED.status", clause)
}
