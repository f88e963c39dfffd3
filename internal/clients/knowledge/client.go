package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
)

// Client is the thin relay to the knowledge API. Responses are passed
// through as loosely-typed JSON so upstream shape changes do not break the
// admin surface.
type Client interface {
	BuildQA(ctx context.Context, tenantID, objectKey, outputFormat string) (map[string]any, error)
	GenerateFile(ctx context.Context, contractID, objectKey, format string) (map[string]any, error)
}

// UpstreamError carries the knowledge API's own status and body so the
// handler can surface them inside a 502.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "knowledge: <nil error>"
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > 2000 {
		body = body[:2000] + "..."
	}
	return fmt.Sprintf("knowledge api status %d: %s", e.StatusCode, body)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func New(log *logger.Logger, baseURL string) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing KNOWLEDGE_API_BASE_URL")
	}
	return &client{
		log:     log.With("client", "KnowledgeClient"),
		baseURL: baseURL,
		// QA builds can chew through large uploads; match the upstream's
		// own generation window.
		httpClient: &http.Client{Timeout: 180 * time.Second},
	}, nil
}

func (c *client) BuildQA(ctx context.Context, tenantID, objectKey, outputFormat string) (map[string]any, error) {
	return c.postJSON(ctx, "/v1/qa/build", map[string]any{
		"tenant_id":     tenantID,
		"object_key":    objectKey,
		"output_format": outputFormat,
	})
}

func (c *client) GenerateFile(ctx context.Context, contractID, objectKey, format string) (map[string]any, error) {
	return c.postJSON(ctx, "/v1/qa/generate-file", map[string]any{
		"contract_id": contractID,
		"object_key":  objectKey,
		"format":      format,
	})
}

func (c *client) postJSON(ctx context.Context, path string, payload map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal knowledge payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call knowledge api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	out := map[string]any{}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		// Non-JSON upstreams still reach the UI log readable.
		return map[string]any{"_raw": string(body)}, nil
	}
	return out, nil
}

var qaFileKeyCandidates = []string{
	"qa_file_object_key",
	"qa_file_key",
	"qa_object_key",
	"file_object_key",
	"object_key",
}

// ExtractQAFileKey recovers the generated file's object key from a
// knowledge response whose field name has drifted across versions: an
// ordered candidate list tried at the top level, then under "data", first
// non-empty string wins.
func ExtractQAFileKey(body map[string]any) string {
	if body == nil {
		return ""
	}
	if key := firstKeyMatch(body); key != "" {
		return key
	}
	if data, ok := body["data"].(map[string]any); ok {
		return firstKeyMatch(data)
	}
	return ""
}

func firstKeyMatch(m map[string]any) string {
	for _, k := range qaFileKeyCandidates {
		if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
