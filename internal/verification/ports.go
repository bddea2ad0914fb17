package verification

import (
	"context"
	"time"

	"trinetra/pkg/types"
)

// LinkRepository persists form links. Status changes are conditional updates
// so that concurrent requests cannot move a link backwards.
type LinkRepository interface {
	// CreateLink returns types.ErrTokenTaken when the token already exists.
	CreateLink(ctx context.Context, link *types.FormLink) error
	// LinkByToken returns types.ErrFormLinkNotFound when no link matches.
	LinkByToken(ctx context.Context, token string) (*types.FormLink, error)
	Links(ctx context.Context, filter types.FormLinkFilter) ([]*types.FormLink, error)
	// DeleteLinks removes links by id. A nil creators slice removes regardless
	// of creator.
	DeleteLinks(ctx context.Context, ids []string, creators []string) (int64, error)
	// MarkClicked moves an unopened link to Clicked and reports whether it did.
	MarkClicked(ctx context.Context, token string) (bool, error)
	// ExpireLink moves an open link to expired and reports whether it did.
	ExpireLink(ctx context.Context, token string) (bool, error)
	// ExpireStale expires every open link whose draft window ended before now.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type AVFRepository interface {
	// AVFResponse returns nil when the link has no response.
	AVFResponse(ctx context.Context, token string) (*types.AVFResponse, error)
	// SubmitAVF marks the link submitted and stores resp in one transaction.
	// It returns *types.StateError, and stores nothing, when the link is no
	// longer open.
	SubmitAVF(ctx context.Context, resp *types.AVFResponse) error
}

type BGVRepository interface {
	// BGVForm returns nil when nothing has been saved for the link.
	BGVForm(ctx context.Context, token string) (*types.BGVForm, error)
	// SaveBGVDraft marks the link Draft with form.DraftExpiresAt and upserts
	// form, or returns *types.StateError when the link is closed.
	SaveBGVDraft(ctx context.Context, form *types.BGVForm) error
	// SubmitBGV marks the link submitted and upserts form in one transaction,
	// or returns *types.StateError when the link is closed.
	SubmitBGV(ctx context.Context, form *types.BGVForm) error
}

type ReportRepository interface {
	// Reports lists submitted links that have a report. A nil creators slice
	// lists every creator.
	Reports(ctx context.Context, creators []string) ([]*types.ReportItem, error)
	// ReportLinks returns the links among ids that have a report and belong
	// to creators.
	ReportLinks(ctx context.Context, ids []string, creators []string) ([]*types.FormLink, error)
}
