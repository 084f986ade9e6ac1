package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"petling/internal/pet"

	"github.com/google/uuid"
)

// Client talks to the petling HTTP API on behalf of the operator CLI.
type Client struct {
	baseURL    string
	adminToken string
	httpClient *http.Client
}

func NewClient(baseURL, adminToken string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminToken: adminToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) Health(ctx context.Context) error {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &out, false); err != nil {
		return err
	}
	if !out.OK {
		return fmt.Errorf("api reported not ok")
	}
	return nil
}

func (c *Client) Catalog(ctx context.Context) ([]pet.CatalogEntry, error) {
	var out struct {
		Catalog []pet.CatalogEntry `json:"catalog"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/catalog", nil, &out, false); err != nil {
		return nil, err
	}
	return out.Catalog, nil
}

// User resolves a profile through the admin lookup endpoint; the web login
// endpoint is left to browsers so operator reads never mint a session.
func (c *Client) User(ctx context.Context, userID string) (pet.Profile, error) {
	var out pet.Profile
	if err := c.do(ctx, http.MethodGet, "/v1/admin/user/"+url.PathEscape(userID), nil, &out, true); err != nil {
		return pet.Profile{}, err
	}
	return out, nil
}

func (c *Client) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	payload := map[string]any{"user_id": userID, "amount": amount}
	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/credit", payload, &out, true); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, admin bool) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if admin {
		if strings.TrimSpace(c.adminToken) == "" {
			return fmt.Errorf("admin token required (set PETCTL_ADMIN_TOKEN or run `petctl connect`)")
		}
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("api status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
