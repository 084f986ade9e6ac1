package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"petling/internal/config"
	"petling/internal/pet"
	"petling/internal/store"
)

const testAdminToken = "test-admin-token"

func newTestServer(t *testing.T) (*httptest.Server, *pet.Service) {
	t.Helper()
	cfg := config.Config{
		StoreDriver: config.StoreFile,
		DataFile:    filepath.Join(t.TempDir(), "data.json"),
		AdminToken:  testAdminToken,
		AssetDir:    t.TempDir(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := pet.NewService(store.NewFileStore(cfg.DataFile), logger)
	if err := svc.SeedCatalog(context.Background()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	ts := httptest.NewServer(New(cfg, logger, svc).Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

// registerUser mimics first chat contact, the only path that creates users.
func registerUser(t *testing.T, svc *pet.Service, userID, username string) {
	t.Helper()
	if _, err := svc.EnsureUser(context.Background(), userID, username); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
}

func doJSON(t *testing.T, method, url string, body any, mutate func(*http.Request)) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func withSession(userID string) func(*http.Request) {
	return func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: userID})
	}
}

func withAdmin(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ts, svc := newTestServer(t)
	registerUser(t, svc, "42", "ada")

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/login", map[string]string{"user_id": "42"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("no %s cookie set", SessionCookie)
	}
	if cookie.Value != "42" {
		t.Fatalf("cookie value = %q, want %q", cookie.Value, "42")
	}
	if !cookie.HttpOnly {
		t.Fatalf("session cookie is not HttpOnly")
	}

	var profile pet.Profile
	decodeBody(t, resp, &profile)
	if profile.UserID != "42" || profile.Username != "ada" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/login", map[string]string{"user_id": "999"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionRequired(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/me", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no cookie: status = %d, want 401", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/me", nil, withSession("999"))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unknown user cookie: status = %d, want 403", resp.StatusCode)
	}
}

func TestCatalogIsPublic(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/catalog", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Catalog []pet.CatalogEntry `json:"catalog"`
	}
	decodeBody(t, resp, &out)
	if len(out.Catalog) == 0 {
		t.Fatalf("seeded catalog came back empty")
	}
	for i := 1; i < len(out.Catalog); i++ {
		if out.Catalog[i-1].Price > out.Catalog[i].Price {
			t.Fatalf("catalog not sorted by price: %+v", out.Catalog)
		}
	}
}

func TestBuyFeedPlayFlow(t *testing.T) {
	ts, svc := newTestServer(t)
	registerUser(t, svc, "42", "ada")
	if _, err := svc.Credit(context.Background(), "42", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// No pet yet.
	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/pet", nil, withSession("42"))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("pet before purchase: status = %d, want 404", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/pet/buy", map[string]string{"pet_key": "cat"}, withSession("42"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buy: status = %d, want 200", resp.StatusCode)
	}
	var status pet.PetStatus
	decodeBody(t, resp, &status)
	if status.Type != "cat" || status.Hunger != pet.StatMax || status.Happiness != pet.StatMax {
		t.Fatalf("unexpected pet after buy: %+v", status)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/me", nil, withSession("42"))
	var profile pet.Profile
	decodeBody(t, resp, &profile)
	if profile.Balance != 40 {
		t.Fatalf("balance after buy = %d, want 40", profile.Balance)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/pet/feed", nil, withSession("42"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feed: status = %d, want 200", resp.StatusCode)
	}
	decodeBody(t, resp, &status)
	if status.Hunger != pet.StatMax {
		t.Fatalf("hunger exceeded cap or dropped: %d", status.Hunger)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/pet/play", nil, withSession("42"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("play: status = %d, want 200", resp.StatusCode)
	}
}

func TestBuyErrors(t *testing.T) {
	ts, svc := newTestServer(t)
	registerUser(t, svc, "42", "ada")

	// Balance is zero; every catalog price is positive.
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/pet/buy", map[string]string{"pet_key": "cat"}, withSession("42"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("insufficient balance: status = %d, want 400", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/pet/buy", map[string]string{"pet_key": "unicorn"}, withSession("42"))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown pet: status = %d, want 404", resp.StatusCode)
	}

	// Failed purchases must not create a pet.
	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/pet", nil, withSession("42"))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("pet after failed buys: status = %d, want 404", resp.StatusCode)
	}
}

func TestCareWithoutPetOverHTTP(t *testing.T) {
	ts, svc := newTestServer(t)
	registerUser(t, svc, "42", "ada")

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/pet/feed", nil, withSession("42"))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminCredit(t *testing.T) {
	ts, svc := newTestServer(t)
	registerUser(t, svc, "42", "ada")

	body := map[string]any{"user_id": "42", "amount": int64(50)}

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/credit", body, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("no token: status = %d, want 403", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/credit", body, withAdmin("wrong"))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong token: status = %d, want 403", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/credit", body, withAdmin(testAdminToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		UserID  string `json:"user_id"`
		Balance int64  `json:"balance"`
	}
	decodeBody(t, resp, &out)
	if out.Balance != 50 {
		t.Fatalf("balance = %d, want 50", out.Balance)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/credit",
		map[string]any{"user_id": "42", "amount": int64(-5)}, withAdmin(testAdminToken))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative amount: status = %d, want 400", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/credit",
		map[string]any{"user_id": "999", "amount": int64(5)}, withAdmin(testAdminToken))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown user: status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminUserLookup(t *testing.T) {
	ts, svc := newTestServer(t)
	registerUser(t, svc, "42", "ada")

	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/admin/user/42", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("no token: status = %d, want 403", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/admin/user/42", nil, withAdmin(testAdminToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var profile pet.Profile
	decodeBody(t, resp, &profile)
	if profile.UserID != "42" || profile.Username != "ada" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			t.Fatalf("operator lookup minted a session cookie")
		}
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/admin/user/999", nil, withAdmin(testAdminToken))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown user: status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminDisabledWithoutConfiguredToken(t *testing.T) {
	cfg := config.Config{
		StoreDriver: config.StoreFile,
		DataFile:    filepath.Join(t.TempDir(), "data.json"),
		AssetDir:    t.TempDir(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := pet.NewService(store.NewFileStore(cfg.DataFile), logger)
	ts := httptest.NewServer(New(cfg, logger, svc).Handler())
	t.Cleanup(ts.Close)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/credit",
		map[string]any{"user_id": "42", "amount": int64(5)}, withAdmin(""))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestRejectsUnknownFields(t *testing.T) {
	ts, svc := newTestServer(t)
	registerUser(t, svc, "42", "ada")

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/login",
		bytes.NewReader([]byte(`{"user_id":"42","extra":true}`)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
