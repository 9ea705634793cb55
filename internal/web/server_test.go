package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ctu-vras/gnss-drivers/fixfilter"
	"github.com/ctu-vras/gnss-drivers/model"
)

func testSnapshot() fixfilter.Snapshot {
	return fixfilter.Snapshot{
		State:            model.StateHasFix,
		LastLevel:        model.LevelOK,
		LastStamp:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Zone:             "33U",
		StatusStreamLive: true,
	}
}

func testReport(level model.QualityLevel, comments ...string) model.QualityReport {
	return model.QualityReport{
		Stamp:         time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Level:         level,
		State:         model.StateHasFix,
		CovMultiplier: 1,
		Comments:      comments,
	}
}

func TestHealthz(t *testing.T) {
	handler := Handler(NewHub(nil, nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok\n" {
		t.Fatalf("GET /healthz body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /healthz = %d, want 405", rec.Code)
	}
}

func TestQualityEndpoint(t *testing.T) {
	hub := NewHub(testSnapshot, nil)
	handler := Handler(hub)

	// Step 1: before any report arrives the endpoint still serves the
	// filter snapshot, with a null report.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quality", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/quality = %d, want 200", rec.Code)
	}
	var resp qualityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Report != nil {
		t.Fatalf("report before any broadcast = %+v, want null", resp.Report)
	}
	if resp.Filter.Zone != "33U" || resp.Filter.State != model.StateHasFix {
		t.Fatalf("filter snapshot = %+v", resp.Filter)
	}

	// Step 2: after a broadcast the latest verdict is served.
	hub.Broadcast(testReport(model.LevelDegraded, "few satellites (5)"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quality", nil))
	resp = qualityResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Report == nil || resp.Report.Level != model.LevelDegraded {
		t.Fatalf("report = %+v, want the DEGRADED verdict", resp.Report)
	}
	if len(resp.Report.Comments) != 1 || resp.Report.Comments[0] != "few satellites (5)" {
		t.Fatalf("report comments = %v", resp.Report.Comments)
	}
}

func dialQuality(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/quality"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	return conn
}

func readReport(t *testing.T, conn *websocket.Conn) model.QualityReport {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading websocket frame: %v", err)
	}
	var report model.QualityReport
	if err := json.Unmarshal(payload, &report); err != nil {
		t.Fatalf("decoding websocket frame %q: %v", payload, err)
	}
	return report
}

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		n := len(hub.subs)
		hub.mu.Unlock()
		if n == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscriber count never reached %d", want)
}

func TestWebsocketDeliversLatestThenLive(t *testing.T) {
	hub := NewHub(testSnapshot, nil)
	srv := httptest.NewServer(Handler(hub))
	defer srv.Close()

	// Step 1: a report broadcast before anyone connects is replayed to
	// the late joiner as its first frame.
	hub.Broadcast(testReport(model.LevelAverage, "moderate satellite count (10)"))

	conn := dialQuality(t, srv)
	defer conn.Close()

	if got := readReport(t, conn); got.Level != model.LevelAverage {
		t.Fatalf("catch-up report level = %v, want AVERAGE", got.Level)
	}

	// Step 2: once subscribed, live broadcasts stream through.
	waitForSubscribers(t, hub, 1)
	hub.Broadcast(testReport(model.LevelOK))

	got := readReport(t, conn)
	if got.Level != model.LevelOK || got.CovMultiplier != 1 {
		t.Fatalf("live report = %+v, want the OK verdict", got)
	}
}
