package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/xAGI-labs/charstream-sub001/internal/services"
)

func TestMigrateAvatars_ReturnsSummary(t *testing.T) {
	svc := &stubRemSvc{
		migrate: func(ctx context.Context) (*services.MigrationSummary, error) {
			return &services.MigrationSummary{
				Total:        2,
				SuccessCount: 1,
				FailureCount: 1,
				Results: []services.MigrationResult{
					{ID: "c1", Kind: "character", Success: true, OldURL: "old", NewURL: "new"},
					{ID: "h1", Kind: "home_character", OldURL: "old2", Reason: "upload failed"},
				},
			}, nil
		},
	}
	r := testRouter(New(Deps{Remediation: svc}))

	w := doJSON(t, r, http.MethodPost, "/admin/avatars/migrate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var sum services.MigrationSummary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Total != 2 || sum.SuccessCount+sum.FailureCount != sum.Total {
		t.Errorf("summary = %+v", sum)
	}
	if !strings.Contains(w.Body.String(), `"oldUrl"`) {
		t.Errorf("results must expose oldUrl: %s", w.Body.String())
	}
}

func TestMigrateAvatars_Failure(t *testing.T) {
	svc := &stubRemSvc{
		migrate: func(context.Context) (*services.MigrationSummary, error) {
			return nil, errors.New("scan failed")
		},
	}
	r := testRouter(New(Deps{Remediation: svc}))

	w := doJSON(t, r, http.MethodPost, "/admin/avatars/migrate", nil)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), ErrCodeMigrateFailed) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
