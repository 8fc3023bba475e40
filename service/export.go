package service

import (
	"context"
	"fmt"
	"time"

	"github.com/punnu35/expense-app/model"
	"github.com/punnu35/expense-app/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// ExportService produces XLSX workbooks of claims for reporting. The export
// runs under the same visibility filter as listing, so an actor can only
// ever export what they can see.
type ExportService struct {
	claims *LifecycleService
}

func NewExportService(claims *LifecycleService) *ExportService {
	return &ExportService{claims: claims}
}

// ClaimsXLSX returns an XLSX workbook (as bytes) of the claims visible to
// the actor, newest first.
func (s *ExportService) ClaimsXLSX(ctx context.Context, actor model.Identity) ([]byte, error) {
	start := time.Now()

	claims, err := s.claims.ListClaims(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Claims"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Title",
		"Description",
		"Vendor",
		"Occurred On",
		"Amount",
		"Status",
		"Owner Email",
		"Receipts",
		"Created At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for row, claim := range claims {
		values := []any{
			claim.Title,
			claim.Description,
			claim.Vendor,
			claim.OccurredOn,
			claim.Amount,
			string(claim.Status),
			claim.OwnerEmail,
			len(claim.ReceiptRefs),
			claim.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	logger.Info(ctx, "claims exported",
		"actor", actor.Email,
		"rows", len(claims),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
