// Package websocket exposes pipeline progress over a single push channel,
// the same single-active-client Hub/Client shape the teacher used to mirror
// proxied requests to a debugging UI, retargeted to broadcast verification
// StageEvents instead.
package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stage names emitted as a claim moves through the pipeline.
const (
	StageCacheLookup  = "cache_lookup"
	StagePlanning     = "planning"
	StageToolExecution = "tool_execution"
	StageSynthesis    = "synthesis"
	StageDone         = "done"
)

// StageEvent reports pipeline progress for one in-flight claim check.
type StageEvent struct {
	ClaimHash string `json:"claim_hash"`
	Stage     string `json:"stage"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Hub manages a single active websocket connection and fans StageEvents
// out to it.
type Hub struct {
	client     *Client // nil when nothing is connected
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Client is one active websocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Message is the envelope written to the wire; Data carries a StageEvent.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			if h.client != nil {
				close(h.client.send)
			}
			h.client = client
			h.mutex.Unlock()
			log.Printf("progress websocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if h.client == client {
				close(h.client.send)
				h.client = nil
				log.Printf("progress websocket client disconnected")
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.RLock()
			if h.client != nil {
				select {
				case h.client.send <- message:
				default:
					log.Printf("progress client send channel full, dropping connection")
					close(h.client.send)
					h.client = nil
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// BroadcastStage pushes a StageEvent to the active client, if any. It never
// blocks the caller: with no client connected the event is simply dropped.
func (h *Hub) BroadcastStage(event StageEvent) {
	msg := Message{
		Type:      "stage_event",
		Data:      event,
		Timestamp: time.Now().Unix(),
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal stage event: %v", err)
		return
	}

	h.mutex.RLock()
	clientExists := h.client != nil
	h.mutex.RUnlock()

	if clientExists {
		select {
		case h.broadcast <- jsonData:
		default:
			log.Printf("progress broadcast channel full, dropping stage event")
		}
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("readPump error: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		c.conn.WriteMessage(websocket.TextMessage, message)
	}
}
