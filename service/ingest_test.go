package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/punnu35/expense-app/config"
	"github.com/punnu35/expense-app/model"
)

func TestExtractFields(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		merchant string
		amount   *float64
		date     string
	}{
		{
			name:     "full receipt line",
			text:     "Total $12.34 at Ace Hardware on 03/14/2024",
			merchant: "Ace Hardware",
			amount:   floatPtr(12.34),
			date:     "03/14/2024",
		},
		{
			name:     "from connective",
			text:     "Purchased from Joes Diner\nTotal: 8.50",
			merchant: "Joes Diner",
			amount:   floatPtr(8.50),
		},
		{
			name:   "amount with space after symbol",
			text:   "Amount due: $ 99.99",
			amount: floatPtr(99.99),
		},
		{
			name:     "first amount wins",
			text:     "Item 3.00 Tax 0.27 Total 3.27 at Corner Store",
			merchant: "Corner Store",
			amount:   floatPtr(3.00),
		},
		{
			name: "two-digit year",
			text: "Visit on 1/2/24 was great",
			date: "1/2/24",
		},
		{
			name:   "integer amount not matched",
			text:   "Total 12 dollars",
			amount: nil,
		},
		{
			name: "nothing recognizable",
			text: "thank you for shopping",
		},
		{
			name: "empty text",
			text: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFields(tt.text)
			if got.RawText != tt.text {
				t.Errorf("Expected raw text preserved, got '%s'", got.RawText)
			}
			if got.Merchant != tt.merchant {
				t.Errorf("Expected merchant '%s', got '%s'", tt.merchant, got.Merchant)
			}
			if got.Date != tt.date {
				t.Errorf("Expected date '%s', got '%s'", tt.date, got.Date)
			}
			switch {
			case tt.amount == nil && got.Amount != nil:
				t.Errorf("Expected no amount, got %v", *got.Amount)
			case tt.amount != nil && got.Amount == nil:
				t.Errorf("Expected amount %v, got none", *tt.amount)
			case tt.amount != nil && *got.Amount != *tt.amount:
				t.Errorf("Expected amount %v, got %v", *tt.amount, *got.Amount)
			}
		})
	}
}

func floatPtr(v float64) *float64 { return &v }

// ocrStub serves the text-detection envelope with a fixed transcription.
func ocrStub(t *testing.T, fullText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := VisionDetectResponse{}
		resp.Data.FullText = fullText
		resp.Data.Confidence = 0.97
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestIngest(t *testing.T, ocrURL string) (*IngestService, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	vision := NewVisionService(&config.VisionConfig{APIURL: ocrURL, APIToken: "test-token", TimeoutSeconds: 5})
	return NewIngestService(store, vision), store
}

func seedClaim(t *testing.T, store *MemoryStore) *model.Claim {
	t.Helper()
	claim := &model.Claim{
		ID:          "c1",
		OwnerID:     "u1",
		OwnerEmail:  "sam@camp.org",
		Title:       "Hardware run",
		Amount:      40,
		ReceiptRefs: []string{"r1"},
		Status:      model.StatusPending,
	}
	inserted, err := store.Insert(context.Background(), claim)
	if err != nil {
		t.Fatalf("Failed to seed claim: %v", err)
	}
	return inserted
}

func TestIngest(t *testing.T) {
	server := ocrStub(t, "Total $12.34 at Ace Hardware on 03/14/2024")
	defer server.Close()

	svc, store := newTestIngest(t, server.URL)
	seedClaim(t, store)

	extracted, err := svc.Ingest(context.Background(), "c1", "https://blobs/r1.jpg")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if extracted.Merchant != "Ace Hardware" {
		t.Errorf("Expected merchant 'Ace Hardware', got '%s'", extracted.Merchant)
	}

	got, _ := store.Get(context.Background(), "c1")
	if got.OCRState != model.OCRStateParsed {
		t.Errorf("Expected ocr state parsed, got '%s'", got.OCRState)
	}
	if got.ExtractedData == nil || got.ExtractedData.Amount == nil || *got.ExtractedData.Amount != 12.34 {
		t.Error("Expected extracted amount 12.34 persisted on the claim")
	}
	if got.Status != model.StatusPending {
		t.Errorf("Expected workflow status untouched, got %s", got.Status)
	}
	if got.Amount != 40 {
		t.Errorf("Expected claimed amount untouched, got %v", got.Amount)
	}
}

func TestIngestReplacesWholeRecord(t *testing.T) {
	server := ocrStub(t, "thank you for shopping")
	defer server.Close()

	svc, store := newTestIngest(t, server.URL)
	claim := seedClaim(t, store)

	// A previous richer extraction must not survive a leaner re-run
	parsed := model.OCRStateParsed
	if _, err := store.Update(context.Background(), claim.ID, ClaimPatch{
		ExtractedData: &model.ExtractedData{Merchant: "Old Shop", Amount: floatPtr(1.00), Date: "01/01/2020"},
		OCRState:      &parsed,
	}, claim.Version); err != nil {
		t.Fatalf("Failed to seed prior extraction: %v", err)
	}

	if _, err := svc.Ingest(context.Background(), "c1", "https://blobs/r1.jpg"); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	got, _ := store.Get(context.Background(), "c1")
	if got.ExtractedData.Merchant != "" || got.ExtractedData.Amount != nil || got.ExtractedData.Date != "" {
		t.Errorf("Expected stale fields cleared, got %+v", got.ExtractedData)
	}
	if got.ExtractedData.RawText != "thank you for shopping" {
		t.Errorf("Expected fresh raw text, got '%s'", got.ExtractedData.RawText)
	}
}

func TestIngestBlankArguments(t *testing.T) {
	svc, _ := newTestIngest(t, "http://unused")

	for _, tt := range []struct{ claimID, imageURL string }{
		{"", "https://blobs/r1.jpg"},
		{"c1", ""},
		{"  ", "  "},
	} {
		_, err := svc.Ingest(context.Background(), tt.claimID, tt.imageURL)
		var ie *model.IngestError
		if !errors.As(err, &ie) || ie.Transient {
			t.Errorf("Expected permanent IngestError for (%q, %q), got %v", tt.claimID, tt.imageURL, err)
		}
	}
}

func TestIngestUnknownClaim(t *testing.T) {
	server := ocrStub(t, "anything")
	defer server.Close()

	svc, _ := newTestIngest(t, server.URL)
	_, err := svc.Ingest(context.Background(), "missing", "https://blobs/r1.jpg")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestIngestOCRFailureLeavesClaimUnchanged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc, store := newTestIngest(t, server.URL)
	seedClaim(t, store)

	_, err := svc.Ingest(context.Background(), "c1", "https://blobs/r1.jpg")
	var ie *model.IngestError
	if !errors.As(err, &ie) || !ie.Transient {
		t.Fatalf("Expected transient IngestError, got %v", err)
	}

	got, _ := store.Get(context.Background(), "c1")
	if got.ExtractedData != nil || got.OCRState != model.OCRStateNone {
		t.Error("Expected claim left unchanged after OCR failure")
	}
}

func TestIngestVersionConflictIsTransient(t *testing.T) {
	server := ocrStub(t, "Total $5.00")
	defer server.Close()

	store := NewMemoryStore()
	vision := NewVisionService(&config.VisionConfig{APIURL: server.URL, TimeoutSeconds: 5})
	svc := NewIngestService(&racingStore{ClaimStore: store}, vision)
	seedClaim(t, store)

	_, err := svc.Ingest(context.Background(), "c1", "https://blobs/r1.jpg")
	var ie *model.IngestError
	if !errors.As(err, &ie) || !ie.Transient {
		t.Errorf("Expected transient IngestError on version conflict, got %v", err)
	}
	if !errors.Is(err, model.ErrStoreConflict) {
		t.Errorf("Expected wrapped ErrStoreConflict, got %v", err)
	}
}

// racingStore interleaves a competing write between the pipeline's read and
// its update.
type racingStore struct {
	ClaimStore
}

func (s *racingStore) Get(ctx context.Context, id string) (*model.Claim, error) {
	claim, err := s.ClaimStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	title := "edited in between"
	if _, err := s.ClaimStore.Update(ctx, id, ClaimPatch{Title: &title}, claim.Version); err != nil {
		return nil, err
	}
	return claim, nil
}
