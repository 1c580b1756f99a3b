package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

const headerKeyCorrelationID = "Correlation-ID"

// jsonClient sends JSON requests carrying the caller's correlation id.
type jsonClient struct {
	hc      *http.Client
	baseURL string
	headers map[string]string
}

func (c jsonClient) do(ctx context.Context, method, path string, body, reply any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshalling request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerKeyCorrelationID, log.CorrelationIDFromContext(ctx))
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}

	return resp.StatusCode, nil
}
