package verification

import (
	"context"

	"trinetra/internal/utils"
	"trinetra/pkg/types"
)

// ListReports lists generated reports newest first. A nil creators slice
// lists every report.
func (s *Service) ListReports(ctx context.Context, creators []string) ([]*types.ReportItem, error) {
	items, err := s.reports.Reports(ctx, creators)
	if err != nil {
		return nil, utils.WrapError(err, "list reports")
	}
	return items, nil
}

// DeleteReports removes the links for ids and then their stored report
// files. It returns the ids that were deleted.
func (s *Service) DeleteReports(ctx context.Context, ids []string, creators []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, types.Invalid("No ids provided.")
	}

	links, err := s.reports.ReportLinks(ctx, ids, creators)
	if err != nil {
		return nil, utils.WrapError(err, "look up reports")
	}

	deleted := make([]string, 0, len(links))
	for _, link := range links {
		deleted = append(deleted, link.ID)
	}

	if len(deleted) == 0 {
		return deleted, nil
	}

	if _, err := s.links.DeleteLinks(ctx, deleted, creators); err != nil {
		return nil, utils.WrapError(err, "delete reported form links")
	}

	for _, link := range links {
		s.removeFile(ctx, utils.PtrString(link.ResponsePDF))
	}

	s.logger.WithField("count", len(deleted)).Info("reports deleted")
	return deleted, nil
}
