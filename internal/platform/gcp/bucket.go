package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
)

// ErrObjectNotFound is returned for reads of missing objects so that callers
// can map it to a client-visible status instead of a bare 500.
var ErrObjectNotFound = errors.New("object not found")

// BucketService is the admin API's view of the GCS bucket: bounded prefix
// reads for classification sampling, JSON documents for the tenant/account
// model, and V4 signed PUT URLs for browser uploads.
type BucketService interface {
	ReadHead(ctx context.Context, key string, maxBytes int64) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Write(ctx context.Context, key string, data []byte, contentType string) error
	WriteJSON(ctx context.Context, key string, doc any) error
	WriteJSONIfGenerationMatch(ctx context.Context, key string, doc any, generation int64) error
	ReadJSON(ctx context.Context, key string, out any) error
	ReadJSONWithGeneration(ctx context.Context, key string, out any) (int64, error)
	ObjectSize(ctx context.Context, key string) (int64, bool, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	SignedUploadURL(key, contentType string, expires time.Duration) (string, error)
	BucketName() string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
}

func NewBucketService(log *logger.Logger, bucketName, signerKeyFile string) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")
	if strings.TrimSpace(bucketName) == "" {
		return nil, fmt.Errorf("missing bucket name (UPLOAD_BUCKET)")
	}

	ctx := context.Background()
	var stClient *storage.Client
	var err error
	if signerKeyFile != "" {
		stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(signerKeyFile), option.WithScopes(storage.ScopeReadWrite))
	} else {
		serviceLog.Warn("GCS_SIGNER_KEY_FILE not set; signed URLs will rely on ambient credentials")
		stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info("Object storage initialized", "bucket", bucketName)
	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucketName,
	}, nil
}

func (bs *bucketService) BucketName() string { return bs.bucketName }

func (bs *bucketService) object(key string) *storage.ObjectHandle {
	return bs.storageClient.Bucket(bs.bucketName).Object(key)
}

// ReadHead fetches at most maxBytes from the start of the object. The byte
// cap, not a deadline, is the primary bound on cost; the timeout is a
// backstop against a stalled connection.
func (bs *bucketService) ReadHead(ctx context.Context, key string, maxBytes int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := bs.object(key).NewRangeReader(ctx, 0, maxBytes)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to open GCS range reader for %q: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %q: %w", key, err)
	}
	return data, nil
}

func (bs *bucketService) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := bs.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to fetch GCS object attrs for %q: %w", key, err)
	}
	return true, nil
}

func (bs *bucketService) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := bs.object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("failed to delete GCS object %q: %w", key, err)
	}
	return nil
}

func (bs *bucketService) Write(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	w := bs.object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %q: %w", key, err)
	}
	return nil
}

// ObjectSize reports (size, exists). A missing object is not an error.
func (bs *bucketService) ObjectSize(ctx context.Context, key string) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	attrs, err := bs.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to fetch GCS object attrs for %q: %w", key, err)
	}
	return attrs.Size, true, nil
}

func (bs *bucketService) WriteJSON(ctx context.Context, key string, doc any) error {
	return bs.writeJSON(ctx, key, doc, nil)
}

// WriteJSONIfGenerationMatch writes only if the object generation still
// matches, turning concurrent updates into a conflict the caller can report.
func (bs *bucketService) WriteJSONIfGenerationMatch(ctx context.Context, key string, doc any, generation int64) error {
	conds := storage.Conditions{GenerationMatch: generation}
	return bs.writeJSON(ctx, key, doc, &conds)
}

func (bs *bucketService) writeJSON(ctx context.Context, key string, doc any, conds *storage.Conditions) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document for %q: %w", key, err)
	}

	obj := bs.object(key)
	if conds != nil {
		obj = obj.If(*conds)
	}
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json; charset=utf-8"
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %q: %w", key, err)
	}
	return nil
}

func (bs *bucketService) ReadJSON(ctx context.Context, key string, out any) error {
	_, err := bs.ReadJSONWithGeneration(ctx, key, out)
	return err
}

func (bs *bucketService) ReadJSONWithGeneration(ctx context.Context, key string, out any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	r, err := bs.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return 0, fmt.Errorf("failed to open GCS reader for %q: %w", key, err)
	}
	defer r.Close()

	generation := r.Attrs.Generation
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return 0, fmt.Errorf("invalid json at %q: %w", key, err)
	}
	return generation, nil
}

func (bs *bucketService) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := bs.storageClient.Bucket(bs.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list GCS prefix %q: %w", prefix, err)
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (bs *bucketService) SignedUploadURL(key, contentType string, expires time.Duration) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	url, err := bs.storageClient.Bucket(bs.bucketName).SignedURL(key, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     time.Now().Add(expires),
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign upload URL for %q: %w", key, err)
	}
	return url, nil
}
