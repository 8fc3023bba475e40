package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/punnu35/expense-app/model"
	"github.com/punnu35/expense-app/pkg/logger"
)

// Field extraction is best-effort pattern search over the transcription;
// each field may independently be absent.
var (
	// first currency-like token: optional symbol, digits, exactly two decimals
	amountPattern = regexp.MustCompile(`\$?\s?(\d+\.\d{2})`)
	// text after "at"/"from", stopped at the "on" connective or a line break
	merchantPattern = regexp.MustCompile(`(?i)\b(?:at|from)\s+([A-Za-z0-9&][A-Za-z0-9 &]*?)\s*(?:\bon\b|[\r\n]|$)`)
	datePattern     = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2,4})\b`)
)

// ExtractFields parses merchant, amount and date out of an OCR transcription.
// The raw text is always kept alongside whatever was found.
func ExtractFields(fullText string) *model.ExtractedData {
	data := &model.ExtractedData{RawText: fullText}

	if m := amountPattern.FindStringSubmatch(fullText); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			data.Amount = &v
		}
	}
	if m := merchantPattern.FindStringSubmatch(fullText); m != nil {
		data.Merchant = strings.TrimSpace(m[1])
	}
	if m := datePattern.FindStringSubmatch(fullText); m != nil {
		data.Date = m[1]
	}
	return data
}

// IngestService enriches claims with data extracted from receipt images. It
// is triggered by the OCR webhook, independently of the approval workflow,
// and writes only the extracted data and OCR state fields: the workflow
// status and the editable fields are never touched, so an enrichment can
// never race a human transition into a bad state.
//
// The pipeline does not retry; the webhook caller owns retry policy and the
// Transient flag on IngestError tells it whether retrying can help.
type IngestService struct {
	store  ClaimStore
	vision *VisionService
}

func NewIngestService(store ClaimStore, vision *VisionService) *IngestService {
	return &IngestService{
		store:  store,
		vision: vision,
	}
}

// Ingest runs OCR on the image, extracts fields and persists them onto the
// claim. The extracted record is replaced whole on every run, so re-ingesting
// yields exactly the freshest extraction; on any failure the claim is left
// unchanged.
func (s *IngestService) Ingest(ctx context.Context, claimID, imageURL string) (*model.ExtractedData, error) {
	if strings.TrimSpace(claimID) == "" || strings.TrimSpace(imageURL) == "" {
		return nil, &model.IngestError{
			Transient: false,
			Cause:     errors.New("claim_id and image_url are required"),
		}
	}

	claim, err := s.store.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}

	fullText, confidence, err := s.vision.DetectText(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	extracted := ExtractFields(fullText)
	parsed := model.OCRStateParsed
	patch := ClaimPatch{
		ExtractedData: extracted,
		OCRState:      &parsed,
	}

	if _, err := s.store.Update(ctx, claim.ID, patch, claim.Version); err != nil {
		if errors.Is(err, model.ErrStoreConflict) {
			// Lost a race with a human edit; the caller can simply re-run
			return nil, &model.IngestError{Transient: true, Cause: err}
		}
		return nil, err
	}

	logger.Info(ctx, "receipt ingested",
		"claim_id", claimID,
		"confidence", confidence,
		"merchant", extracted.Merchant,
		"has_amount", extracted.Amount != nil,
		"date", extracted.Date,
	)
	return extracted, nil
}
