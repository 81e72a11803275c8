package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// CatalogClient resolves product codes against the catalog service.
type CatalogClient struct {
	client
}

// NewCatalogClient creates a catalog client for opts.BaseURL.
func NewCatalogClient(opts Options) *CatalogClient {
	return &CatalogClient{client: newClient(opts)}
}

type matchRequest struct {
	Codes    []string `json:"codes"`
	Pipeline string   `json:"pipeline"`
}

type matchResponse struct {
	Matched         []json.RawMessage `json:"matched"`
	Unmatched       []string          `json:"unmatched"`
	AlreadyInactive []json.RawMessage `json:"already_inactive"`
}

// Match sends every code in one request.
func (c *CatalogClient) Match(ctx context.Context, pipeline string, codes []string) (*core.MatchResponse, error) {
	var resp matchResponse
	if err := c.postJSON(ctx, "/match", matchRequest{Codes: codes, Pipeline: pipeline}, &resp); err != nil {
		return nil, fmt.Errorf("catalog match: %w", err)
	}

	out := &core.MatchResponse{Unmatched: resp.Unmatched}
	for _, m := range resp.Matched {
		if item, ok := toMatchedItem(m); ok {
			out.Matched = append(out.Matched, item)
		}
	}
	for _, m := range resp.AlreadyInactive {
		if item, ok := toMatchedItem(m); ok {
			out.AlreadyDone = append(out.AlreadyDone, item)
		}
	}
	return out, nil
}

// toMatchedItem reads code and product_id; every other key is kept as an
// attribute. Entries without a code are dropped. Numbers keep their
// literal digits so large ids survive.
func toMatchedItem(raw json.RawMessage) (core.MatchedItem, bool) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return core.MatchedItem{}, false
	}

	code, _ := m["code"].(string)
	if code == "" {
		return core.MatchedItem{}, false
	}
	item := core.MatchedItem{Code: code}
	switch id := m["product_id"].(type) {
	case string:
		item.TargetID = id
	case json.Number:
		item.TargetID = id.String()
	}
	for k, v := range m {
		if k == "code" || k == "product_id" {
			continue
		}
		if item.Attributes == nil {
			item.Attributes = make(map[string]any)
		}
		item.Attributes[k] = v
	}
	return item, true
}
