package pubsub

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

type Message struct {
	ProjectTitle string
	Data         []byte
}

// one client connected via websocket, subscribed to a single project
type Client struct {
	Hub          *Hub
	Conn         *websocket.Conn
	Send         chan []byte
	ProjectTitle string
}

type Hub struct {
	Clients    map[string]map[*Client]bool
	Broadcast  chan *Message
	Register   chan *Client
	Unregister chan *Client

	logger logrus.FieldLogger
	done   chan struct{}
}

func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Broadcast:  make(chan *Message),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run owns the client map until ctx is cancelled, then closes every
// client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.Clients {
				for c := range conns {
					close(c.Send)
				}
			}
			h.Clients = make(map[string]map[*Client]bool)
			return

		case client := <-h.Register:
			conn := h.Clients[client.ProjectTitle]
			if conn == nil {
				conn = make(map[*Client]bool)
				h.Clients[client.ProjectTitle] = conn
			}
			conn[client] = true

		case client := <-h.Unregister:
			conn := h.Clients[client.ProjectTitle]
			if conn != nil {
				if _, ok := conn[client]; ok {
					delete(conn, client)
					close(client.Send)
					if len(conn) == 0 {
						delete(h.Clients, client.ProjectTitle)
					}
				}
			}

		case message := <-h.Broadcast:
			conn := h.Clients[message.ProjectTitle]
			for c := range conn {
				select {
				case c.Send <- message.Data:

				default:
					h.logger.WithField("project", c.ProjectTitle).Warn("dropping slow websocket client")
					close(c.Send)
					delete(conn, c)
				}
			}
			if conn != nil && len(conn) == 0 {
				delete(h.Clients, message.ProjectTitle)
			}
		}
	}
}

// Publish hands data to every subscriber of projectTitle. It returns false
// once the hub has stopped or ctx is done.
func (h *Hub) Publish(ctx context.Context, projectTitle string, data []byte) bool {
	select {
	case h.Broadcast <- &Message{ProjectTitle: projectTitle, Data: data}:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// ServeWS upgrades GET /ws/votes/{project} and streams that project's
// tally updates until either side goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	if project == "" {
		http.Error(w, "project is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &Client{
		Hub:          h,
		Conn:         conn,
		Send:         make(chan []byte, sendBuffer),
		ProjectTitle: project,
	}

	select {
	case h.Register <- c:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go c.WritePump()
	c.ReadPump(r.Context())
}

// WritePump sends messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	defer func() {
		c.Conn.Close(websocket.StatusNormalClosure, "")
	}()

	for m := range c.Send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.Conn.Write(ctx, websocket.MessageText, m)
		cancel()
		if err != nil {
			c.Hub.logger.WithError(err).WithField("project", c.ProjectTitle).Warn("error writing to client")
			return
		}
	}
}

// ReadPump listens for messages from the WebSocket connection; subscribers
// never send anything, so this only detects the close.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, _, err := c.Conn.Read(ctx)
		if err != nil {
			entry := c.Hub.logger.WithField("project", c.ProjectTitle)
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				entry.Debug("client disconnected normally")
			} else {
				entry.WithError(err).Debug("error reading from client")
			}
			return
		}
	}
}
