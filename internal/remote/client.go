// Package remote talks to the shared document store: a single JSON bin
// addressed by one fixed id, fetched and replaced wholesale via two HTTP
// verbs. The store offers no locking or versioning; callers inherit its
// last-writer-wins semantics.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/akeeren/courier/internal/document"
)

var (
	ErrUnreachable   = errors.New("remote store unreachable")
	ErrBadStatus     = errors.New("remote store returned bad status")
	ErrMalformedBody = errors.New("remote store returned malformed body")
)

const maxBodyBytes = 1 << 20

type Client struct {
	baseURL    string
	binID      string
	accessKey  string
	httpClient *http.Client
}

func NewClient(baseURL, binID, accessKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		binID:     binID,
		accessKey: accessKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// binResponse matches both response shapes the store may produce: the
// record wrapped under "record", or the record fields at top level.
type binResponse struct {
	Record json.RawMessage `json:"record"`
}

// FetchLatest performs a whole-document read.
func (c *Client) FetchLatest(ctx context.Context) (document.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+c.binID+"/latest", nil)
	if err != nil {
		return document.Document{}, err
	}
	req.Header.Set("X-Master-Key", c.accessKey)
	req.Header.Set("X-Bin-Meta", "false")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return document.Document{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	doc, err := decodeDocument(body)
	if err != nil {
		return document.Document{}, err
	}
	return doc, nil
}

// Replace writes the full document back, overwriting whatever is stored.
func (c *Client) Replace(ctx context.Context, doc document.Document) error {
	doc.Normalize()
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/"+c.binID, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Master-Key", c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	return nil
}

func decodeDocument(body []byte) (document.Document, error) {
	var wrapped binResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return document.Document{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	raw := wrapped.Record
	if raw == nil {
		raw = body
	}

	var doc document.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document.Document{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	doc.Normalize()
	return doc, nil
}
