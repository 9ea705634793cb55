// Package web serves the operator-facing HTTP surface of the filter
// node: a liveness probe, the latest quality verdict alongside the
// filter's state snapshot, and a websocket stream of reports.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ctu-vras/gnss-drivers/fixfilter"
	"github.com/ctu-vras/gnss-drivers/internal/logging"
	"github.com/ctu-vras/gnss-drivers/model"
)

var upgrader = websocket.Upgrader{
	// The operator UI is served from other hosts on the robot's LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sendBuffer is the per-subscriber queue depth. A subscriber that falls
// this far behind a one-report-per-second stream is gone, not slow.
const sendBuffer = 8

// Hub stores the latest quality report and fans new ones out to
// websocket subscribers.
type Hub struct {
	snapshot func() fixfilter.Snapshot
	log      logging.Logger

	mu     sync.Mutex
	latest *model.QualityReport
	subs   map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub builds a Hub. snapshot supplies the filter state served on
// /api/quality; a nil logger drops all logs.
func NewHub(snapshot func() fixfilter.Snapshot, log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		snapshot: snapshot,
		log:      log,
		subs:     make(map[*wsClient]struct{}),
	}
}

// Broadcast stores the report as the latest verdict and pushes it to
// every websocket subscriber. Subscribers whose queue is full are
// dropped rather than allowed to stall the rest.
func (h *Hub) Broadcast(report model.QualityReport) {
	payload, err := json.Marshal(report)
	if err != nil {
		h.log.Error(context.Background(), "encoding quality report", logging.Err(err))
		return
	}

	h.mu.Lock()
	h.latest = &report
	for c := range h.subs {
		select {
		case c.send <- payload:
		default:
			delete(h.subs, c)
			c.close()
		}
	}
	h.mu.Unlock()
}

func (h *Hub) latestReport() *model.QualityReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

func (h *Hub) subscribe(c *wsClient) {
	h.mu.Lock()
	if h.latest != nil {
		// Catch the late joiner up before live reports start flowing.
		if payload, err := json.Marshal(h.latest); err == nil {
			c.send <- payload
		}
	}
	h.subs[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unsubscribe(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.subs[c]; ok {
		delete(h.subs, c)
		c.close()
	}
	h.mu.Unlock()
}

type qualityResponse struct {
	Report *model.QualityReport `json:"report"`
	Filter fixfilter.Snapshot   `json:"filter"`
}

// Handler builds the HTTP routing for the hub.
func Handler(h *Hub) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/api/quality", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		resp := qualityResponse{Report: h.latestReport()}
		if h.snapshot != nil {
			resp.Filter = h.snapshot()
		}
		b, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})

	mux.HandleFunc("/ws/quality", func(w http.ResponseWriter, r *http.Request) {
		log := h.requestLog(r)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
			return
		}

		c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
		h.subscribe(c)

		go func() {
			defer conn.Close()
			for payload := range c.send {
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					h.unsubscribe(c)
					return
				}
			}
		}()

		// Drain the connection so pings and closes are processed; any
		// read error means the subscriber hung up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unsubscribe(c)
				return
			}
		}
	})

	return withRequestLogger(h.log, mux)
}

// withRequestLogger attaches a path-annotated logger to each request's
// context so handlers log with the route that produced the line.
func withRequestLogger(base logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLog := base.With(logging.String("path", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(logging.ContextWithLogger(r.Context(), reqLog)))
	})
}

func (h *Hub) requestLog(r *http.Request) logging.Logger {
	if l := logging.LoggerFromContext(r.Context()); l != nil {
		return l
	}
	return h.log
}

// Serve runs the web surface until the context is cancelled. Websocket
// connections are long-lived, so there is deliberately no global write
// timeout on the server.
func Serve(ctx context.Context, listenAddr string, h *Hub) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(h),
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
