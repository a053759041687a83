// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/foot_ins/internal/config"
	"github.com/relabs-tech/foot_ins/internal/ekf"
	"github.com/relabs-tech/foot_ins/internal/render"
	"github.com/relabs-tech/foot_ins/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network dashboard
	},
}

// trackStride keeps every n-th row of the live track.
const trackStride = 5

// liveRun is the web view of the run currently being estimated.
type liveRun struct {
	mu      sync.RWMutex
	runID   string
	rows    int
	last    ekf.Row
	track   [][3]float64
	summary *ekf.Summary
}

type liveStatus struct {
	RunID   string       `json:"run_id"`
	Rows    int          `json:"rows"`
	Last    *ekf.Row     `json:"last,omitempty"`
	Summary *ekf.Summary `json:"summary,omitempty"`
}

func (l *liveRun) applyUpdate(u EstimateUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if u.RunID != l.runID {
		l.runID, l.rows, l.track, l.summary = u.RunID, 0, nil, nil
	}
	for i, r := range u.Rows {
		if (u.Offset+i)%trackStride == 0 {
			l.track = append(l.track, r.Position)
		}
	}
	if n := len(u.Rows); n > 0 {
		l.last = u.Rows[n-1]
		l.rows = u.Offset + n
	}
}

func (l *liveRun) applyEvent(ev RunEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch ev.Event {
	case EventStart:
		l.runID, l.rows, l.track, l.summary = ev.RunID, 0, nil, nil
	case EventFinished:
		if ev.RunID == l.runID {
			l.summary = ev.Summary
		}
	}
}

func (l *liveRun) status() liveStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := liveStatus{RunID: l.runID, Rows: l.rows, Summary: l.summary}
	if l.rows > 0 {
		last := l.last
		s.Last = &last
	}
	return s
}

// hub fans estimate updates out to websocket clients.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]bool)}
}

func (h *hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("web: websocket write error: %v", err)
			c.Close()
			delete(h.clients, c)
		}
	}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	// the read loop only detects the client going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// newWebHandler builds the HTTP API. st may be nil when no database is
// available, in which case the run history endpoints report 503.
func newWebHandler(live *liveRun, h *hub, st *store.Store, staticDir string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, live.status())
	})

	mux.HandleFunc("/api/status.png", func(w http.ResponseWriter, r *http.Request) {
		s := live.status()
		frame := render.Status{Samples: s.Rows, HaveRow: s.Last != nil}
		if s.Last != nil {
			frame.Last = *s.Last
		}
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, render.StatusFrame(frame)); err != nil {
			log.Printf("web: png encode error: %v", err)
		}
	})

	mux.HandleFunc("/api/track", func(w http.ResponseWriter, r *http.Request) {
		live.mu.RLock()
		track := append([][3]float64(nil), live.track...)
		live.mu.RUnlock()
		writeJSON(w, track)
	})

	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			http.Error(w, "no run database", http.StatusServiceUnavailable)
			return
		}
		runs, err := st.Runs(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, runs)
	})

	mux.HandleFunc("/api/runs/estimates.csv", func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			http.Error(w, "no run database", http.StatusServiceUnavailable)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		rows, err := st.Estimates(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(rows) == 0 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"_estimates.csv"))
		if err := store.WriteEstimatesCSV(w, rows); err != nil {
			log.Printf("web: csv export error: %v", err)
		}
	})

	mux.HandleFunc("/ws/estimates", h.serveWS)
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

func RunWeb() error {
	cfg := config.Get()
	live := &liveRun{}
	h := newHub()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Printf("web: run history disabled: %v", err)
		st = nil
	} else {
		defer st.Close()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicEstimates, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var u EstimateUpdate
		if err := json.Unmarshal(msg.Payload(), &u); err != nil {
			log.Printf("web: estimates unmarshal error: %v", err)
			return
		}
		live.applyUpdate(u)
		h.broadcast(msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicEstimates)

	token = client.Subscribe(cfg.TopicRun, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev RunEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("web: run event unmarshal error: %v", err)
			return
		}
		live.applyEvent(ev)
		h.broadcast(msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicRun)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, newWebHandler(live, h, st, "web"))
}
