package remote

import (
	"context"
	"fmt"
	"net/url"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// ExecutionClient applies batches through the execution service.
type ExecutionClient struct {
	client
}

// NewExecutionClient creates an execution client for opts.BaseURL.
func NewExecutionClient(opts Options) *ExecutionClient {
	return &ExecutionClient{client: newClient(opts)}
}

// Execute posts one batch to {base}/{pipeline}. Item batches send the
// projected rows plus the run context; target batches send product_ids.
func (c *ExecutionClient) Execute(ctx context.Context, b core.Batch) (core.ExecutionResult, error) {
	body := make(map[string]any, len(b.Context)+1)
	for k, v := range b.Context {
		body[k] = v
	}

	switch b.Payload {
	case core.PayloadTargetIDs:
		ids := b.TargetIDs
		if ids == nil {
			ids = []string{}
		}
		body["product_ids"] = ids
	default:
		items := make([]map[string]string, len(b.Rows))
		for i, row := range b.Rows {
			items[i] = row.Values
		}
		body["items"] = items
	}

	var result core.ExecutionResult
	if err := c.postJSON(ctx, "/"+url.PathEscape(b.Pipeline), body, &result); err != nil {
		return nil, fmt.Errorf("execute %s batch %d: %w", b.Pipeline, b.Index, err)
	}
	if result == nil {
		result = core.ExecutionResult{}
	}
	return result, nil
}
