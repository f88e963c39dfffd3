package classify

import (
	"context"
	"strings"
	"testing"
)

type fakeHeadReader struct {
	data      []byte
	err       error
	lastKey   string
	lastBytes int64
}

func (f *fakeHeadReader) ReadHead(_ context.Context, key string, maxBytes int64) ([]byte, error) {
	f.lastKey = key
	f.lastBytes = maxBytes
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func TestSampleClampsBudget(t *testing.T) {
	store := &fakeHeadReader{data: []byte("hello")}
	s, err := NewSampler(store, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}

	if _, err := s.Sample(context.Background(), "tenants/t1/uploads/x.txt", 1); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if store.lastBytes != DefaultConfig().MinSampleBytes {
		t.Fatalf("expected clamped budget %d, got %d", DefaultConfig().MinSampleBytes, store.lastBytes)
	}

	if _, err := s.Sample(context.Background(), "tenants/t1/uploads/x.txt", 0); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if store.lastBytes != DefaultConfig().DefaultSampleBytes {
		t.Fatalf("expected default budget %d, got %d", DefaultConfig().DefaultSampleBytes, store.lastBytes)
	}
}

func TestSampleDecodesLossily(t *testing.T) {
	// 0xff 0xfe is not valid UTF-8 anywhere; decoding must not fail.
	store := &fakeHeadReader{data: []byte("ok\xff\xfeline")}
	s, err := NewSampler(store, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}

	text, err := s.Sample(context.Background(), "k", 20_000)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if !strings.Contains(text, "�") {
		t.Fatalf("expected replacement rune in lossy decode, got %q", text)
	}
	if !strings.HasPrefix(text, "ok") || !strings.HasSuffix(text, "line") {
		t.Fatalf("valid bytes mangled: %q", text)
	}
}
