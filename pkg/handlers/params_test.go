package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestParseID(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		pathValue  string
		wantOK     bool
		wantNilID  bool
		wantStatus int
		wantError  string
	}{
		{
			name:      "valid UUID",
			pathValue: "550e8400-e29b-41d4-a716-446655440000",
			wantOK:    true,
			wantNilID: false,
		},
		{
			name:       "invalid UUID",
			pathValue:  "not-a-uuid",
			wantOK:     false,
			wantNilID:  true,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_id",
		},
		{
			name:       "empty UUID",
			pathValue:  "",
			wantOK:     false,
			wantNilID:  true,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.SetPathValue("id", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseID(rec, req, logger)

			if ok != tt.wantOK {
				t.Errorf("ParseID() ok = %v, want %v", ok, tt.wantOK)
			}

			if tt.wantNilID && id != uuid.Nil {
				t.Errorf("ParseID() id = %v, want uuid.Nil", id)
			}

			if !tt.wantOK {
				if rec.Code != tt.wantStatus {
					t.Errorf("ParseID() status = %v, want %v", rec.Code, tt.wantStatus)
				}

				var resp ApiResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.Error != tt.wantError {
					t.Errorf("ParseID() error = %v, want %v", resp.Error, tt.wantError)
				}
			}
		})
	}
}

func TestQueryInt(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		query  string
		want   int
		wantOK bool
	}{
		{"", 50, true},
		{"limit=10", 10, true},
		{"limit=0", 0, true},
		{"limit=-1", 0, false},
		{"limit=ten", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test?"+tt.query, nil)
			rec := httptest.NewRecorder()

			got, ok := queryInt(rec, req, "limit", 50, logger)
			if ok != tt.wantOK {
				t.Fatalf("queryInt() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("queryInt() = %d, want %d", got, tt.want)
			}
			if !ok && rec.Code != http.StatusBadRequest {
				t.Errorf("queryInt() status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}
