package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/heater"
	"github.com/catherinevee/prodflow/pkg/obslog"
)

// progressEvent is the JSON envelope pushed to every connected operator
// console, one per finished account.
type progressEvent struct {
	AccountID       account.ID `json:"account_id"`
	ReleasesMined   int        `json:"releases_mined"`
	PRsMined        int        `json:"prs_mined"`
	DeploymentsSeen int        `json:"deployments_seen"`
	Error           string     `json:"error,omitempty"`
}

// progressBroadcaster fans a heater.Run pass out to any number of
// websocket-connected operator consoles. Grounded on the teacher's
// internal/api/websocket.WebSocketClient: an upgrader, a registered
// client set guarded by a mutex, and best-effort fire-and-forget writes
// (a slow or gone client never blocks the heater itself).
type progressBroadcaster struct {
	upgrader websocket.Upgrader
	logger   obslog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newProgressBroadcasterHub(logger obslog.Logger) *progressBroadcaster {
	return &progressBroadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades a connection and registers it for future broadcasts.
// The connection is otherwise read-only from the client's perspective;
// any message it sends is discarded, its only purpose being to let the
// read loop notice disconnects.
func (b *progressBroadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("heater: progress websocket upgrade failed", obslog.Any("error", err.Error()))
		return
	}

	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer b.remove(conn)
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (b *progressBroadcaster) remove(conn *websocket.Conn) {
	b.mu.Lock()
	delete(b.clients, conn)
	b.mu.Unlock()
	_ = conn.Close()
}

// Send pushes one account's outcome to every connected client. Matches
// heater.Dependencies.Progress's func(AccountOutcome) shape directly.
func (b *progressBroadcaster) Send(outcome heater.AccountOutcome) {
	event := progressEvent{
		AccountID:       outcome.AccountID,
		ReleasesMined:   outcome.ReleasesMined,
		PRsMined:        outcome.PRsMined,
		DeploymentsSeen: outcome.DeploymentsSeen,
	}
	if outcome.Err != nil {
		event.Error = outcome.Err.Error()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			go b.remove(conn)
		}
	}
}
