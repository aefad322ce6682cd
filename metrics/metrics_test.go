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

package metrics

import (
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func find(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestRecordRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest("GET", "/api/v1/items/{id}", 200, 20*time.Millisecond)
	c.RecordRequest("GET", "/api/v1/items/{id}", 200, 30*time.Millisecond)
	c.RecordRequest("GET", "/api/v1/items/{id}", 404, time.Millisecond)

	mf := find(t, reg, "itemhub_http_requests_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label sets, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		labels := map[string]string{}
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		want := 2.0
		if labels["status"] == "404" {
			want = 1
		}
		if got := m.GetCounter().GetValue(); got != want {
			t.Errorf("status %s: got %v, want %v", labels["status"], got, want)
		}
	}

	hist := find(t, reg, "itemhub_http_request_duration_seconds")
	if n := hist.GetMetric()[0].GetHistogram().GetSampleCount(); n != 3 {
		t.Errorf("expected 3 observations, got %d", n)
	}
}

func TestInFlightAndAuthEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.IncInFlight()
	c.IncInFlight()
	c.DecInFlight()
	c.RecordAuthEvent("login_failure")

	if v := find(t, reg, "itemhub_http_requests_in_flight").GetMetric()[0].GetGauge().GetValue(); v != 1 {
		t.Errorf("in flight = %v, want 1", v)
	}
	if v := find(t, reg, "itemhub_auth_events_total").GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("auth events = %v, want 1", v)
	}
}

func TestRegisterDBStats(t *testing.T) {
	db, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	if err := RegisterDBStats(reg, db); err != nil {
		t.Fatalf("register error: %v", err)
	}
	find(t, reg, "go_sql_max_open_connections")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg).RecordAuthEvent("login_success")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `itemhub_auth_events_total{event="login_success"} 1`) {
		t.Errorf("scrape output missing auth event:\n%s", body)
	}
}

func TestNoopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Noop{}
	r.IncInFlight()
	r.RecordRequest("GET", "/", 200, time.Second)
}
