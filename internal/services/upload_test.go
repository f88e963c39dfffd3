package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ankinstructor/ank-admin-api/internal/classify"
	"github.com/ankinstructor/ank-admin-api/internal/clients/redis"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/apierr"
	"github.com/ankinstructor/ank-admin-api/internal/platform/gcp"
)

type fakeUploadStore struct {
	objects   map[string][]byte
	written   map[string]any
	deleted   []string
	deleteErr error
	writeErr  error
	signedURL string
	signErr   error
}

func newFakeUploadStore() *fakeUploadStore {
	return &fakeUploadStore{
		objects:   map[string][]byte{},
		written:   map[string]any{},
		signedURL: "https://storage.example.com/signed",
	}
}

func (f *fakeUploadStore) ReadHead(_ context.Context, key string, _ int64) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("read %q: %w", key, gcp.ErrObjectNotFound)
	}
	return data, nil
}

func (f *fakeUploadStore) Delete(_ context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeUploadStore) WriteJSON(_ context.Context, key string, doc any) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written[key] = doc
	return nil
}

func (f *fakeUploadStore) SignedUploadURL(string, string, time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return f.signedURL, nil
}

type fakeFinalizeGuard struct {
	held       map[string]bool
	released   []string
	acquireErr error
}

func newFakeFinalizeGuard() *fakeFinalizeGuard {
	return &fakeFinalizeGuard{held: map[string]bool{}}
}

func (g *fakeFinalizeGuard) Acquire(_ context.Context, uploadID string) (bool, error) {
	if g.acquireErr != nil {
		return false, g.acquireErr
	}
	if g.held[uploadID] {
		return false, nil
	}
	g.held[uploadID] = true
	return true, nil
}

func (g *fakeFinalizeGuard) Release(_ context.Context, uploadID string) error {
	g.released = append(g.released, uploadID)
	delete(g.held, uploadID)
	return nil
}

func (g *fakeFinalizeGuard) Close() error { return nil }

func newTestUploadService(t *testing.T, store *fakeUploadStore, guard *fakeFinalizeGuard) UploadService {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := classify.DefaultConfig()
	sampler, err := classify.NewSampler(store, cfg, log)
	if err != nil {
		t.Fatalf("sampler: %v", err)
	}
	var g redis.FinalizeGuard
	if guard != nil {
		g = guard
	}
	svc, err := NewUploadService(log, store, sampler, classify.NewArbiter(cfg, log), g, nil, time.Minute)
	if err != nil {
		t.Fatalf("upload service: %v", err)
	}
	return svc
}

func dialogueLines(n int) []byte {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "user: message number %d\n", i)
	}
	return []byte(b.String())
}

func apiCode(t *testing.T, err error) (int, string) {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected api error, got %v", err)
	}
	return ae.Status, ae.Code
}

func TestCreateUploadURLBuildsObjectKey(t *testing.T) {
	store := newFakeUploadStore()
	svc := newTestUploadService(t, store, nil)

	res, err := svc.CreateUploadURL(context.Background(), UploadURLRequest{
		TenantID:  "ten_abc",
		Filename:  "会話 log.txt",
		SizeBytes: 1024,
	})
	if err != nil {
		t.Fatalf("CreateUploadURL: %v", err)
	}
	if res.UploadID == "" {
		t.Fatal("expected generated upload_id")
	}
	wantPrefix := "tenants/ten_abc/uploads/" + time.Now().UTC().Format("2006-01") + "/"
	if !strings.HasPrefix(res.ObjectKey, wantPrefix) {
		t.Fatalf("object key %q missing prefix %q", res.ObjectKey, wantPrefix)
	}
	if strings.Contains(res.ObjectKey, " ") {
		t.Fatalf("object key %q should not contain spaces", res.ObjectKey)
	}
	if res.UploadURL != store.signedURL {
		t.Fatalf("upload url = %q", res.UploadURL)
	}
	if res.Kind != "dialogue" {
		t.Fatalf("kind defaulted to %q", res.Kind)
	}
}

func TestCreateUploadURLContractIDAlias(t *testing.T) {
	svc := newTestUploadService(t, newFakeUploadStore(), nil)

	res, err := svc.CreateUploadURL(context.Background(), UploadURLRequest{
		ContractID: "ten_alias",
		Filename:   "log.txt",
		SizeBytes:  10,
	})
	if err != nil {
		t.Fatalf("CreateUploadURL: %v", err)
	}
	if res.TenantID != "ten_alias" {
		t.Fatalf("tenant id = %q, want alias value", res.TenantID)
	}
}

func TestCreateUploadURLValidation(t *testing.T) {
	svc := newTestUploadService(t, newFakeUploadStore(), nil)

	cases := []struct {
		name string
		req  UploadURLRequest
	}{
		{"missing tenant", UploadURLRequest{Filename: "a.txt", SizeBytes: 10}},
		{"bad extension", UploadURLRequest{TenantID: "t", Filename: "a.exe", SizeBytes: 10}},
		{"no extension", UploadURLRequest{TenantID: "t", Filename: "afile", SizeBytes: 10}},
		{"too large", UploadURLRequest{TenantID: "t", Filename: "a.txt", SizeBytes: 101 * 1024 * 1024}},
		{"empty file", UploadURLRequest{TenantID: "t", Filename: "a.txt", SizeBytes: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateUploadURL(context.Background(), tc.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			status, code := apiCode(t, err)
			if status != 400 || code != "validation_error" {
				t.Fatalf("got %d/%s, want 400/validation_error", status, code)
			}
		})
	}
}

func TestFinalizeUploadAccept(t *testing.T) {
	store := newFakeUploadStore()
	store.objects["tenants/t1/uploads/2026-01/u1_chat.txt"] = dialogueLines(12)
	guard := newFakeFinalizeGuard()
	svc := newTestUploadService(t, store, guard)

	res, err := svc.FinalizeUpload(context.Background(), FinalizeRequest{
		TenantID:  "t1",
		UploadID:  "u1",
		ObjectKey: "tenants/t1/uploads/2026-01/u1_chat.txt",
		Filename:  "chat.txt",
	})
	if err != nil {
		t.Fatalf("FinalizeUpload: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected acceptance, got reasons %v", res.Reasons)
	}
	if res.QAMode != string(classify.ModeSpeakerDialogue) {
		t.Fatalf("qa_mode = %q, want %q", res.QAMode, classify.ModeSpeakerDialogue)
	}
	if res.ContractID != res.TenantID {
		t.Fatalf("contract_id %q should mirror tenant_id %q", res.ContractID, res.TenantID)
	}
	wantLogKey := "tenants/t1/upload_logs/" + time.Now().UTC().Format("2006-01") + "/u1.json"
	if res.UploadLogKey != wantLogKey {
		t.Fatalf("upload_log_key = %q, want %q", res.UploadLogKey, wantLogKey)
	}
	rec, ok := store.written[wantLogKey].(AcceptanceRecord)
	if !ok {
		t.Fatalf("acceptance record not written at %q", wantLogKey)
	}
	if !rec.Judge.OK || rec.Judge.QAMode != res.QAMode {
		t.Fatalf("record judge = %+v", rec.Judge)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("accepted object must not be deleted, got %v", store.deleted)
	}
}

func TestFinalizeUploadRejectDeletesObject(t *testing.T) {
	store := newFakeUploadStore()
	key := "tenants/t1/uploads/2026-01/u2_short.txt"
	store.objects[key] = []byte("only\nthree\nlines\n")
	svc := newTestUploadService(t, store, nil)

	res, err := svc.FinalizeUpload(context.Background(), FinalizeRequest{
		TenantID:  "t1",
		UploadID:  "u2",
		ObjectKey: key,
		Filename:  "short.txt",
	})
	if err != nil {
		t.Fatalf("FinalizeUpload: %v", err)
	}
	if res.OK {
		t.Fatal("expected rejection")
	}
	if len(res.Reasons) == 0 {
		t.Fatal("rejection must carry reasons")
	}
	if len(store.deleted) != 1 || store.deleted[0] != key {
		t.Fatalf("rejected object not deleted, deleted=%v", store.deleted)
	}
	if len(store.written) != 0 {
		t.Fatalf("no log record for rejections, wrote %v", store.written)
	}
}

func TestFinalizeUploadRejectCleanupFailure(t *testing.T) {
	store := newFakeUploadStore()
	key := "tenants/t1/uploads/2026-01/u3_short.txt"
	store.objects[key] = []byte("too\nshort\n")
	store.deleteErr = errors.New("gcs unavailable")
	svc := newTestUploadService(t, store, nil)

	_, err := svc.FinalizeUpload(context.Background(), FinalizeRequest{
		TenantID:  "t1",
		UploadID:  "u3",
		ObjectKey: key,
	})
	status, code := apiCode(t, err)
	if status != 500 || code != "reject_cleanup_failed" {
		t.Fatalf("got %d/%s, want 500/reject_cleanup_failed", status, code)
	}
}

func TestFinalizeUploadLogWriteFailureKeepsObject(t *testing.T) {
	store := newFakeUploadStore()
	key := "tenants/t1/uploads/2026-01/u4_chat.txt"
	store.objects[key] = dialogueLines(12)
	store.writeErr = errors.New("gcs unavailable")
	guard := newFakeFinalizeGuard()
	svc := newTestUploadService(t, store, guard)

	_, err := svc.FinalizeUpload(context.Background(), FinalizeRequest{
		TenantID:  "t1",
		UploadID:  "u4",
		ObjectKey: key,
	})
	status, code := apiCode(t, err)
	if status != 500 || code != "upload_log_write_failed" {
		t.Fatalf("got %d/%s, want 500/upload_log_write_failed", status, code)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("data object must be kept on log failure, deleted=%v", store.deleted)
	}
	if len(guard.released) != 1 || guard.released[0] != "u4" {
		t.Fatalf("guard must be released so the finalize can retry, released=%v", guard.released)
	}
}

func TestFinalizeUploadDuplicateConflict(t *testing.T) {
	store := newFakeUploadStore()
	key := "tenants/t1/uploads/2026-01/u5_chat.txt"
	store.objects[key] = dialogueLines(12)
	guard := newFakeFinalizeGuard()
	svc := newTestUploadService(t, store, guard)

	req := FinalizeRequest{TenantID: "t1", UploadID: "u5", ObjectKey: key}
	if _, err := svc.FinalizeUpload(context.Background(), req); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	_, err := svc.FinalizeUpload(context.Background(), req)
	status, code := apiCode(t, err)
	if status != 409 || code != "already_finalized" {
		t.Fatalf("got %d/%s, want 409/already_finalized", status, code)
	}
}

func TestFinalizeUploadGuardOutageIsAdvisory(t *testing.T) {
	store := newFakeUploadStore()
	key := "tenants/t1/uploads/2026-01/u6_chat.txt"
	store.objects[key] = dialogueLines(12)
	guard := newFakeFinalizeGuard()
	guard.acquireErr = errors.New("redis down")
	svc := newTestUploadService(t, store, guard)

	res, err := svc.FinalizeUpload(context.Background(), FinalizeRequest{
		TenantID:  "t1",
		UploadID:  "u6",
		ObjectKey: key,
	})
	if err != nil {
		t.Fatalf("finalize should proceed without redis: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected acceptance, got %v", res.Reasons)
	}
}

func TestFinalizeUploadMissingObject(t *testing.T) {
	guard := newFakeFinalizeGuard()
	svc := newTestUploadService(t, newFakeUploadStore(), guard)

	_, err := svc.FinalizeUpload(context.Background(), FinalizeRequest{
		TenantID:  "t1",
		UploadID:  "u7",
		ObjectKey: "tenants/t1/uploads/2026-01/u7_missing.txt",
	})
	status, code := apiCode(t, err)
	if status != 400 || code != "object_not_found" {
		t.Fatalf("got %d/%s, want 400/object_not_found", status, code)
	}
	if len(guard.released) != 1 {
		t.Fatalf("guard must be released on sample failure, released=%v", guard.released)
	}
}

func TestJudgeMethodExplicitKey(t *testing.T) {
	store := newFakeUploadStore()
	store.objects["tenants/t1/uploads/2026-01/u8_chat.txt"] = dialogueLines(12)
	svc := newTestUploadService(t, store, nil)

	res, err := svc.JudgeMethod(context.Background(), JudgeMethodRequest{
		ObjectKey: "tenants/t1/uploads/2026-01/u8_chat.txt",
	})
	if err != nil {
		t.Fatalf("JudgeMethod: %v", err)
	}
	if !res.CanExtractQA {
		t.Fatalf("expected extractable, reasons=%v", res.Reasons)
	}
	if res.Method != string(classify.ModeSpeakerDialogue) {
		t.Fatalf("method = %q", res.Method)
	}
}

func TestJudgeMethodMissingObject(t *testing.T) {
	svc := newTestUploadService(t, newFakeUploadStore(), nil)

	_, err := svc.JudgeMethod(context.Background(), JudgeMethodRequest{ObjectKey: "nope.txt"})
	status, code := apiCode(t, err)
	if status != 404 || code != "object_not_found" {
		t.Fatalf("got %d/%s, want 404/object_not_found", status, code)
	}
}

func TestJudgeMethodNoActiveDialogue(t *testing.T) {
	svc := newTestUploadService(t, newFakeUploadStore(), nil)

	_, err := svc.JudgeMethod(context.Background(), JudgeMethodRequest{})
	status, code := apiCode(t, err)
	if status != 400 || code != "validation_error" {
		t.Fatalf("got %d/%s, want 400/validation_error", status, code)
	}
}

func TestSafeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report.txt", "report.txt"},
		{"a b c.txt", "a_b_c.txt"},
		{"../../etc/passwd", "____etc_passwd"},
		{"会話ログ.csv", "会話ログ.csv"},
		{"", "file"},
		{"weird*chars?.json", "weird_chars_.json"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := safeName(tc.in); got != tc.want {
				t.Fatalf("safeName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
	long := strings.Repeat("あ", 300) + ".txt"
	if got := safeName(long); len([]rune(got)) != 120 {
		t.Fatalf("long name not capped, got %d runes", len([]rune(got)))
	}
}

func TestExtLower(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"A.TXT", ".txt"},
		{"archive.tar.json", ".json"},
		{"noext", ""},
		{" padded.csv ", ".csv"},
	}
	for _, tc := range cases {
		if got := extLower(tc.in); got != tc.want {
			t.Fatalf("extLower(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
