package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const registryContentType = "application/vnd.schemaregistry.v1+json"

var errSubjectNotFound = errors.New("subject not found")

// RegistryClient resolves schema ids against a Confluent compatible Schema Registry.
type RegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRegistryClient constructs a client for baseURL.
func NewRegistryClient(baseURL string) *RegistryClient {
	return &RegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureSchema returns the id of the latest version under subject. A subject without versions
// gets schema registered as its first JSON schema.
func (c *RegistryClient) EnsureSchema(ctx context.Context, subject, schema string) (int, error) {
	versions := "/subjects/" + url.PathEscape(subject) + "/versions"

	id, err := c.call(ctx, http.MethodGet, versions+"/latest", nil)
	if !errors.Is(err, errSubjectNotFound) {
		if err != nil {
			return 0, fmt.Errorf("schema registry lookup %s: %w", subject, err)
		}
		return id, nil
	}

	body, err := json.Marshal(struct {
		SchemaType string `json:"schemaType"`
		Schema     string `json:"schema"`
	}{"JSON", schema})
	if err != nil {
		return 0, err
	}
	id, err = c.call(ctx, http.MethodPost, versions, body)
	if err != nil {
		return 0, fmt.Errorf("schema registry register %s: %w", subject, err)
	}
	return id, nil
}

// call performs one registry request and decodes the schema id from the response.
func (c *RegistryClient) call(ctx context.Context, method, path string, body []byte) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", registryContentType)
	if body != nil {
		req.Header.Set("Content-Type", registryContentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		return 0, errSubjectNotFound
	case resp.StatusCode >= 300:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	return payload.ID, nil
}
