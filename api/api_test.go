/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tomoncle/itemhub/auth"
	"github.com/tomoncle/itemhub/database"
	"github.com/tomoncle/itemhub/metrics"
	"github.com/tomoncle/itemhub/middleware"
	"github.com/tomoncle/itemhub/models"
	"github.com/tomoncle/itemhub/repository"
	"github.com/tomoncle/itemhub/testutil"
)

type fakeHealth struct{ healthy bool }

func (f fakeHealth) GetHealthStatus(context.Context) *database.HealthStatus {
	if !f.healthy {
		return &database.HealthStatus{LastError: "connection refused"}
	}
	return &database.HealthStatus{Healthy: true, Connected: true}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type testServer struct {
	*httptest.Server
	t        *testing.T
	registry *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "admin@example.com", "changethis", true)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	reg := prometheus.NewRegistry()
	router := NewRouter(Options{
		APIPrefix: "/api/v1",
		DB:        db,
		Health:    fakeHealth{healthy: true},
		Auth:      auth.NewService(auth.Config{PasswordMinLength: 8, TokenLifetime: time.Hour}, nil),
		Items:     repository.NewItemRepository(),
		Recorder:  metrics.NewCollector(reg),
		Gatherer:  reg,
		Logger:    logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, t: t, registry: reg}
}

func (s *testServer) do(method, path, token string, body any) (*http.Response, []byte) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		s.t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(req)
}

func (s *testServer) send(req *http.Request) (*http.Response, []byte) {
	s.t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		s.t.Fatal(err)
	}
	return resp, data
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	resp, err := http.PostForm(s.URL+"/api/v1/auth/login", form)
	if err != nil {
		s.t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.t.Fatalf("login %s: status %d", email, resp.StatusCode)
	}
	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		s.t.Fatal(err)
	}
	if out.TokenType != "bearer" || out.AccessToken == "" {
		s.t.Fatalf("unexpected token response %+v", out)
	}
	return out.AccessToken
}

func (s *testServer) register(email, password string) *models.User {
	s.t.Helper()
	resp, body := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{"email": email, "password": password})
	if resp.StatusCode != http.StatusCreated {
		s.t.Fatalf("register %s: status %d %s", email, resp.StatusCode, body)
	}
	var user models.User
	decode(s.t, body, &user)
	return &user
}

func decode(t *testing.T, body []byte, dst any) {
	t.Helper()
	if err := json.Unmarshal(body, dst); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

func detail(t *testing.T, body []byte) string {
	t.Helper()
	var out map[string]string
	decode(t, body, &out)
	return out["detail"]
}

func TestItemLifecycle(t *testing.T) {
	s := newTestServer(t)
	owner := s.register("u1@example.com", "password-one")
	ownerToken := s.login("u1@example.com", "password-one")
	s.register("u2@example.com", "password-two")
	otherToken := s.login("u2@example.com", "password-two")
	adminToken := s.login("admin@example.com", "changethis")

	resp, body := s.do(http.MethodPost, "/api/v1/items", ownerToken, map[string]any{"title": "Book", "description": "sci-fi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: status %d %s", resp.StatusCode, body)
	}
	var created models.Item
	decode(t, body, &created)
	if created.ID == 0 || created.Title != "Book" || *created.Description != "sci-fi" || created.OwnerID != owner.ID {
		t.Fatalf("unexpected item %+v", created)
	}
	path := "/api/v1/items/" + jsonNumber(created.ID)

	resp, body = s.do(http.MethodPut, path, ownerToken, map[string]any{"description": "fantasy"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d %s", resp.StatusCode, body)
	}
	var updated models.Item
	decode(t, body, &updated)
	if updated.Title != "Book" || *updated.Description != "fantasy" || updated.OwnerID != owner.ID {
		t.Fatalf("unexpected updated item %+v", updated)
	}

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		resp, body = s.do(method, path, otherToken, map[string]any{"title": "Mine"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s as other user: status %d %s", method, resp.StatusCode, body)
		}
	}

	resp, body = s.do(http.MethodDelete, path, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d %s", resp.StatusCode, body)
	}
	var removed models.Item
	decode(t, body, &removed)
	if removed.ID != created.ID || *removed.Description != "fantasy" {
		t.Fatalf("expected pre-deletion snapshot, got %+v", removed)
	}

	resp, body = s.do(http.MethodGet, path, adminToken, nil)
	if resp.StatusCode != http.StatusNotFound || detail(t, body) != "Not Found" {
		t.Fatalf("get after delete: status %d %s", resp.StatusCode, body)
	}
}

func jsonNumber(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}

func TestItemValidation(t *testing.T) {
	s := newTestServer(t)
	s.register("u1@example.com", "password-one")
	token := s.login("u1@example.com", "password-one")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing title", http.MethodPost, "/api/v1/items", map[string]any{"description": "x"}, http.StatusUnprocessableEntity},
		{"bad id", http.MethodGet, "/api/v1/items/abc", nil, http.StatusUnprocessableEntity},
		{"absent", http.MethodGet, "/api/v1/items/999", nil, http.StatusNotFound},
		{"bad skip", http.MethodGet, "/api/v1/items?skip=x", nil, http.StatusUnprocessableEntity},
		{"negative limit", http.MethodGet, "/api/v1/items?limit=-1", nil, http.StatusUnprocessableEntity},
		{"anonymous", http.MethodGet, "/api/v1/items", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := token
			if tt.name == "anonymous" {
				tok = ""
			}
			resp, body := s.do(tt.method, tt.path, tok, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.status, body)
			}
		})
	}

	resp, body := s.do(http.MethodPost, "/api/v1/items", token, map[string]any{"title": "Lamp"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: status %d %s", resp.StatusCode, body)
	}
	var item models.Item
	decode(t, body, &item)
	resp, body = s.do(http.MethodPut, "/api/v1/items/"+jsonNumber(item.ID), token, map[string]any{"title": nil})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("null title: status %d %s", resp.StatusCode, body)
	}
}

func TestListItemsScopedToOwner(t *testing.T) {
	s := newTestServer(t)
	s.register("u1@example.com", "password-one")
	s.register("u2@example.com", "password-two")
	t1 := s.login("u1@example.com", "password-one")
	t2 := s.login("u2@example.com", "password-two")
	admin := s.login("admin@example.com", "changethis")

	for _, title := range []string{"a", "b", "c"} {
		s.do(http.MethodPost, "/api/v1/items", t1, map[string]any{"title": title})
	}
	s.do(http.MethodPost, "/api/v1/items", t2, map[string]any{"title": "d"})

	count := func(token, query string) int {
		resp, body := s.do(http.MethodGet, "/api/v1/items"+query, token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list: status %d %s", resp.StatusCode, body)
		}
		var items []models.Item
		decode(t, body, &items)
		return len(items)
	}

	if n := count(t1, ""); n != 3 {
		t.Errorf("owner sees %d items, want 3", n)
	}
	if n := count(t2, ""); n != 1 {
		t.Errorf("other user sees %d items, want 1", n)
	}
	if n := count(admin, ""); n != 4 {
		t.Errorf("superuser sees %d items, want 4", n)
	}
	if n := count(admin, "?skip=1&limit=2"); n != 2 {
		t.Errorf("window returned %d items, want 2", n)
	}
	if n := count(s.login("admin@example.com", "changethis"), "?skip=10"); n != 0 {
		t.Errorf("skip past the end returned %d items", n)
	}

	for _, token := range []string{t1, admin} {
		resp, body := s.do(http.MethodGet, "/api/v1/items?limit=0", token, nil)
		if resp.StatusCode != http.StatusOK || string(bytes.TrimSpace(body)) != "[]" {
			t.Errorf("limit=0: status %d body %s, want 200 []", resp.StatusCode, body)
		}
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	s.register("user@example.com", "password-one")

	resp, body := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{"email": "USER@example.com", "password": "password-one"})
	if resp.StatusCode != http.StatusBadRequest || detail(t, body) != "REGISTER_USER_ALREADY_EXISTS" {
		t.Fatalf("duplicate register: %d %s", resp.StatusCode, body)
	}
	resp, body = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{"email": "new@example.com", "password": "short"})
	if resp.StatusCode != http.StatusBadRequest || detail(t, body) != "REGISTER_INVALID_PASSWORD" {
		t.Fatalf("short password: %d %s", resp.StatusCode, body)
	}
	resp, _ = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{"email": "nope", "password": "password-one"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid email: %d", resp.StatusCode)
	}

	bad, err := http.PostForm(s.URL+"/api/v1/auth/login", url.Values{"username": {"user@example.com"}, "password": {"wrong-password"}})
	if err != nil {
		t.Fatal(err)
	}
	badBody, _ := io.ReadAll(bad.Body)
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest || detail(t, badBody) != "LOGIN_BAD_CREDENTIALS" {
		t.Fatalf("bad login: %d %s", bad.StatusCode, badBody)
	}

	token := s.login("user@example.com", "password-one")
	resp, body = s.do(http.MethodGet, "/api/v1/users/me", token, nil)
	var me models.User
	decode(t, body, &me)
	if resp.StatusCode != http.StatusOK || me.Email != "user@example.com" {
		t.Fatalf("me: %d %s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), "hashed_password") {
		t.Fatal("password hash leaked")
	}

	resp, body = s.do(http.MethodPatch, "/api/v1/users/me", token, map[string]any{"email": "admin@example.com"})
	if resp.StatusCode != http.StatusBadRequest || detail(t, body) != "UPDATE_USER_EMAIL_ALREADY_EXISTS" {
		t.Fatalf("email clash: %d %s", resp.StatusCode, body)
	}
	resp, body = s.do(http.MethodPatch, "/api/v1/users/me", token, map[string]any{"email": "renamed@example.com", "is_superuser": true})
	decode(t, body, &me)
	if resp.StatusCode != http.StatusOK || me.Email != "renamed@example.com" || me.IsSuperuser {
		t.Fatalf("self update: %d %s", resp.StatusCode, body)
	}

	resp, _ = s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: %d", resp.StatusCode)
	}
	resp, _ = s.do(http.MethodGet, "/api/v1/users/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout: %d", resp.StatusCode)
	}
}

func TestUserAdministration(t *testing.T) {
	s := newTestServer(t)
	user := s.register("user@example.com", "password-one")
	userToken := s.login("user@example.com", "password-one")
	admin := s.login("admin@example.com", "changethis")

	resp, _ := s.do(http.MethodGet, "/api/v1/users", userToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("list as user: %d", resp.StatusCode)
	}

	resp, body := s.do(http.MethodGet, "/api/v1/users?page=1&page_size=1", admin, nil)
	var page struct {
		Page     int           `json:"page"`
		PageSize int           `json:"page_size"`
		Total    int           `json:"total"`
		Items    []models.User `json:"items"`
	}
	decode(t, body, &page)
	if resp.StatusCode != http.StatusOK || page.Total != 2 || len(page.Items) != 1 {
		t.Fatalf("list users: %d %s", resp.StatusCode, body)
	}

	path := "/api/v1/users/" + user.ID.String()
	resp, body = s.do(http.MethodPatch, path, admin, map[string]any{"is_superuser": true})
	var promoted models.User
	decode(t, body, &promoted)
	if resp.StatusCode != http.StatusOK || !promoted.IsSuperuser {
		t.Fatalf("promote: %d %s", resp.StatusCode, body)
	}

	s.do(http.MethodPost, "/api/v1/items", userToken, map[string]any{"title": "owned"})
	resp, _ = s.do(http.MethodDelete, path, admin, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete user: %d", resp.StatusCode)
	}
	resp, _ = s.do(http.MethodGet, path, admin, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted user: %d", resp.StatusCode)
	}
	resp, _ = s.do(http.MethodGet, "/api/v1/users/not-a-uuid", admin, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad user id: %d", resp.StatusCode)
	}
	resp, _ = s.do(http.MethodGet, "/api/v1/users/me", userToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("token of deleted user: %d", resp.StatusCode)
	}
}

func TestProbesAndMetrics(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		resp, _ := s.do(method, "/api/v1/meta/ping", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s ping: %d", method, resp.StatusCode)
		}
	}

	resp, body := s.do(http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
	resp, body = s.do(http.MethodGet, "/readyz", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"redis":"not configured"`) {
		t.Fatalf("readyz: %d %s", resp.StatusCode, body)
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" || resp.Header.Get(middleware.ProcessTimeHeader) == "" {
		t.Fatal("expected request id and process time headers")
	}

	resp, body = s.do(http.MethodGet, "/nowhere", "", nil)
	if resp.StatusCode != http.StatusNotFound || detail(t, body) != "Not Found" {
		t.Fatalf("unknown route: %d %s", resp.StatusCode, body)
	}

	resp, body = s.do(http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `route="/api/v1/meta/ping"`) {
		t.Fatalf("metrics: %d %s", resp.StatusCode, body)
	}
}

func TestReadyzUnhealthy(t *testing.T) {
	tests := []struct {
		name  string
		db    DatabaseHealth
		cache Pinger
	}{
		{"database down", fakeHealth{healthy: false}, nil},
		{"redis down", fakeHealth{healthy: true}, fakePinger{err: errors.New("dial tcp: refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.db, tt.cache).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want 503", rec.Code)
			}
		})
	}
}

func TestAuthRateLimit(t *testing.T) {
	db := testutil.NewDB(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: 0.001, Burst: 1}, logger)
	defer rl.Stop()

	srv := httptest.NewServer(NewRouter(Options{
		DB:          db,
		Health:      fakeHealth{healthy: true},
		Auth:        auth.NewService(auth.Config{}, nil),
		Items:       repository.NewItemRepository(),
		RateLimiter: rl,
		Logger:      logger,
	}))
	defer srv.Close()

	form := url.Values{"username": {"x@example.com"}, "password": {"whatever1"}}
	first, err := http.PostForm(srv.URL+"/api/v1/auth/login", form)
	if err != nil {
		t.Fatal(err)
	}
	first.Body.Close()
	second, err := http.PostForm(srv.URL+"/api/v1/auth/login", form)
	if err != nil {
		t.Fatal(err)
	}
	second.Body.Close()

	if first.StatusCode != http.StatusBadRequest || second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("got %d then %d, want 400 then 429", first.StatusCode, second.StatusCode)
	}
}
