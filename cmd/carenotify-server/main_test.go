package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ehr/carenotify/internal/config"
	"github.com/ehr/carenotify/internal/domain/directory"
	"github.com/ehr/carenotify/internal/platform/email"
	"github.com/ehr/carenotify/internal/platform/reminderjob"
	"github.com/ehr/carenotify/internal/platform/sqlite"
	"github.com/ehr/carenotify/internal/platform/telemetry"
)

type testServer struct {
	srv       *httptest.Server
	mailer    *email.MockProvider
	userID    uuid.UUID
	patientID uuid.UUID
}

func devConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env:              "development",
		StoreDriver:      config.DriverSQLite,
		SQLitePath:       filepath.Join(t.TempDir(), "carenotify.db"),
		CORSOrigins:      []string{"*"},
		BodyLimit:        "1M",
		ReminderTimezone: "UTC",
	}
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	cfg := devConfig(t)

	d, err := openDeps(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("openDeps: %v", err)
	}
	t.Cleanup(d.Close)

	dir, ok := d.directory.(*sqlite.DirectoryStore)
	if !ok {
		t.Fatalf("expected sqlite directory, got %T", d.directory)
	}
	ts := &testServer{mailer: &email.MockProvider{}, userID: uuid.New(), patientID: uuid.New()}
	if err := dir.PutUser(ctx, ts.userID, "ada@example.test"); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	if err := dir.PutPatient(ctx, directory.Patient{
		ID: ts.patientID, UserID: ts.userID, FirstName: "Ada", LastName: "Lovelace",
	}); err != nil {
		t.Fatalf("PutPatient: %v", err)
	}
	d.mailer = ts.mailer

	svc := newServices(cfg, d, telemetry.New(), zerolog.Nop())
	ts.srv = httptest.NewServer(newEcho(cfg, d, svc, zerolog.Nop()))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, ts.srv.URL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", ts.userID.String())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestOpenDeps_SQLiteDefaults(t *testing.T) {
	d, err := openDeps(context.Background(), devConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("openDeps: %v", err)
	}
	defer d.Close()

	if _, ok := d.ledger.(*reminderjob.MemoryLedger); !ok {
		t.Errorf("expected memory ledger without REDIS_URL, got %T", d.ledger)
	}
	if err := d.mailer.Send(context.Background(), "a@b.test", "s", "b"); err != email.ErrNotConfigured {
		t.Errorf("expected disabled mailer without SMTP_HOST, got %v", err)
	}
	if err := d.health.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := startServer(t)

	var health map[string]interface{}
	if code := ts.do(t, http.MethodGet, "/health", nil, &health); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if health["status"] != "ok" {
		t.Errorf("unexpected health body %v", health)
	}

	var dbHealth map[string]interface{}
	if code := ts.do(t, http.MethodGet, "/health/db", nil, &dbHealth); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if dbHealth["driver"] != config.DriverSQLite || dbHealth["status"] != "healthy" {
		t.Errorf("unexpected db health body %v", dbHealth)
	}

	resp, err := http.Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected metrics 200, got %d", resp.StatusCode)
	}
}

func readSocket(t *testing.T, conn *gws.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read socket: %v", err)
	}
	return msg
}

func TestVitalsAlertReachesLiveChannel(t *testing.T) {
	ts := startServer(t)

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if msg := readSocket(t, conn); msg["type"] != "connection_established" {
		t.Fatalf("expected connection_established, got %v", msg)
	}
	conn.WriteJSON(map[string]string{"type": "auth", "userId": ts.userID.String()})
	if msg := readSocket(t, conn); msg["type"] != "auth_success" {
		t.Fatalf("expected auth_success, got %v", msg)
	}

	var out struct {
		Alerts []map[string]interface{} `json:"alerts"`
	}
	code := ts.do(t, http.MethodPost, "/api/v1/patients/"+ts.patientID.String()+"/vitals/check",
		map[string]interface{}{"blood_pressure": "150/95", "pulse": 72}, &out)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(out.Alerts) != 1 || out.Alerts[0]["type"] != "high_blood_pressure" {
		t.Fatalf("expected one high_blood_pressure alert, got %v", out.Alerts)
	}

	push := readSocket(t, conn)
	if push["type"] != "notification" || push["category"] != "high_blood_pressure" {
		t.Fatalf("unexpected push %v", push)
	}
	if msg, _ := push["message"].(string); !strings.Contains(msg, "150/95") {
		t.Errorf("expected reading in message, got %q", msg)
	}

	var list struct {
		Total int `json:"total"`
	}
	ts.do(t, http.MethodGet, "/api/v1/notifications", nil, &list)
	if list.Total != 1 {
		t.Errorf("expected 1 stored notification, got %d", list.Total)
	}
}

func TestReminderSweepEndToEnd(t *testing.T) {
	ts := startServer(t)

	code := ts.do(t, http.MethodPost, "/api/v1/reminder-schedules", map[string]interface{}{
		"patient_id":      ts.patientID,
		"medication_name": "Metformin",
		"dosage":          "500 mg",
		"frequency":       "once_daily",
		"start_date":      "2026-03-01",
		"time_of_day":     []string{"morning"},
	}, nil)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	var first reminderjob.SweepResult
	if code := ts.do(t, http.MethodPost, "/api/v1/reminders/sweep?at=2026-03-11T08:30:00Z", nil, &first); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if first.Processed != 1 || first.EmailsSent != 1 {
		t.Fatalf("expected one reminder dispatched and e-mailed, got %+v", first)
	}
	calls := ts.mailer.Calls()
	if len(calls) != 1 || calls[0].To != "ada@example.test" {
		t.Fatalf("expected e-mail to the patient's account address, got %+v", calls)
	}

	var second reminderjob.SweepResult
	ts.do(t, http.MethodPost, "/api/v1/reminders/sweep?at=2026-03-11T08:45:00Z", nil, &second)
	if second.Processed != 0 || second.Duplicates != 1 {
		t.Errorf("expected the repeat sweep to be deduplicated, got %+v", second)
	}

	var unread struct {
		Count int `json:"unread"`
	}
	ts.do(t, http.MethodGet, "/api/v1/notifications/unread-count", nil, &unread)
	if unread.Count != 1 {
		t.Errorf("expected 1 unread reminder, got %d", unread.Count)
	}
}
