package feed

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/logger"
)

// Event kinds pushed to operators.
const (
	KindTransaction = "transaction"
	KindCycle       = "cycle"
	KindNotice      = "notice"
)

// Event is one frame of the live feed.
type Event struct {
	Kind string      `json:"kind"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data"`
}

type CycleUpdate struct {
	Phase      models.Phase `json:"phase"`
	Multiplier float64      `json:"multiplier"`
}

type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	// ClientBuffer is the per-connection queue; a client that falls this far
	// behind is disconnected.
	ClientBuffer int
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// Hub fans feed events out to every connected websocket client. Broadcast
// never blocks the caller.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	now     func() time.Time
}

func NewHub(cfg Config, log *logger.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = 256
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[*client]struct{}),
		now:     time.Now,
	}
}

// ServeHTTP upgrades the request and streams events until either side closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("feed.upgrade failed", logger.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.cfg.ClientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("feed client connected", logger.String("remote", r.RemoteAddr), logger.Int("clients", n))

	go h.writePump(c)
	h.readPump(c)
}

// Clients is the number of live connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes ev once and queues it for every client.
func (h *Hub) Broadcast(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = h.now()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("feed.encode failed", logger.String("kind", ev.Kind), logger.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("feed client too slow, disconnecting", logger.String("remote", c.conn.RemoteAddr().String()))
		h.drop(c)
	}
}

// OnTransaction is a ledger observer.
func (h *Hub) OnTransaction(tx models.Transaction) {
	h.Broadcast(Event{Kind: KindTransaction, Time: tx.Timestamp, Data: tx})
}

// OnCycle is a cycle multiplier listener.
func (h *Hub) OnCycle(phase models.Phase, multiplier float64) {
	h.Broadcast(Event{Kind: KindCycle, Data: CycleUpdate{Phase: phase, Multiplier: multiplier}})
}

// OnNotice is an overdraft notice observer.
func (h *Hub) OnNotice(n models.Notice) {
	h.Broadcast(Event{Kind: KindNotice, Time: n.At, Data: n})
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.drop(c)
	}
	return nil
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.once.Do(func() { close(c.send) })
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

// readPump discards inbound frames; it only exists to observe pongs and
// close frames.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
