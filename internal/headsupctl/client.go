package headsupctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radieske/headsup-settlement/internal/settlement-service/dto"
	"github.com/radieske/headsup-settlement/internal/shared/auth"
)

// Client fala com a API /v1 do settlement-service
type Client struct {
	BaseURL string
	Caller  string
	Secret  []byte
	HTTP    *http.Client
}

// APIError é uma resposta não-2xx com o código da taxonomia
type APIError struct {
	Status int
	Code   string
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Msg)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := auth.Sign(req, c.Secret, c.Caller); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e dto.ErrorResponse
		if json.Unmarshal(raw, &e) != nil || e.Code == "" {
			e = dto.ErrorResponse{Code: http.StatusText(resp.StatusCode), Error: strings.TrimSpace(string(raw))}
		}
		return &APIError{Status: resp.StatusCode, Code: e.Code, Msg: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
