package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestExtractQAFileKey(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{"nil body", nil, ""},
		{"top level canonical", map[string]any{"qa_file_object_key": "a/b.csv"}, "a/b.csv"},
		{"top level fallback", map[string]any{"object_key": "x.json"}, "x.json"},
		{
			"order respected at top level",
			map[string]any{"object_key": "loser", "qa_file_key": "winner"},
			"winner",
		},
		{
			"data nested",
			map[string]any{"ok": true, "data": map[string]any{"file_object_key": "nested.csv"}},
			"nested.csv",
		},
		{
			"top level wins over data",
			map[string]any{"qa_object_key": "top", "data": map[string]any{"qa_file_object_key": "nested"}},
			"top",
		},
		{"empty strings skipped", map[string]any{"qa_file_object_key": "  ", "object_key": "real"}, "real"},
		{"non-string ignored", map[string]any{"qa_file_object_key": 42}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractQAFileKey(tc.body); got != tc.want {
				t.Fatalf("ExtractQAFileKey = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildQARelaysPayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "qa_file_object_key": "qa/out.csv"})
	}))
	defer srv.Close()

	c, err := New(testLogger(t), srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := c.BuildQA(context.Background(), "ten_1", "tenants/ten_1/uploads/x.txt", "csv")
	if err != nil {
		t.Fatalf("BuildQA: %v", err)
	}

	if gotPath != "/v1/qa/build" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody["tenant_id"] != "ten_1" || gotBody["output_format"] != "csv" {
		t.Fatalf("unexpected relay body: %v", gotBody)
	}
	if ExtractQAFileKey(resp) != "qa/out.csv" {
		t.Fatalf("expected qa file key in response, got %v", resp)
	}
}

func TestBuildQAUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c, err := New(testLogger(t), srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.BuildQA(context.Background(), "ten_1", "k", "json")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected upstream status 422, got %d", ue.StatusCode)
	}
}

func TestGenerateFileNonJSONUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	c, err := New(testLogger(t), srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := c.GenerateFile(context.Background(), "con_1", "k", "json")
	if err != nil {
		t.Fatalf("GenerateFile: %v", err)
	}
	if resp["_raw"] != "plain text" {
		t.Fatalf("expected raw passthrough, got %v", resp)
	}
}
