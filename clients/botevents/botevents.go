package botevents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"polydash/config"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// BotEventsClient subscribes to the bot backend's snapshot push channel.
// The backend sends one full status snapshot per frame; consumers read
// them from Messages() instead of polling /api/status.
type BotEventsClient struct {
	logger *zap.Logger

	wsURL        string
	dialer       *websocket.Dialer
	pingInterval time.Duration

	connMu  sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn

	msgCh   chan json.RawMessage
	errCh   chan error
	closeCh chan struct{}

	msgCount        uint64
	lastMsgUnixNano int64
}

func NewBotEventsClient(logger *zap.Logger, cfg *config.Config) (*BotEventsClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	wsURL, err := snapshotStreamURL(cfg.Bot.BaseURL, cfg.Bot.WebSocketPath)
	if err != nil {
		return nil, err
	}

	return &BotEventsClient{
		logger:       logger,
		wsURL:        wsURL,
		dialer:       websocket.DefaultDialer,
		pingInterval: 10 * time.Second,

		msgCh:   make(chan json.RawMessage, 64),
		errCh:   make(chan error, 16),
		closeCh: make(chan struct{}),
	}, nil
}

// snapshotStreamURL converts the bot's HTTP base URL into the ws:// URL of
// its push channel.
func snapshotStreamURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	if path == "" {
		path = "/ws"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = path

	return u.String(), nil
}

// Connect dials the snapshot stream and starts the read and ping loops.
func (c *BotEventsClient) Connect(ctx context.Context) error {
	c.connMu.Lock()
	alreadyConnected := c.conn != nil
	c.connMu.Unlock()
	if alreadyConnected {
		return fmt.Errorf("already connected")
	}

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial snapshot stream: %w", err)
	}

	c.logger.Info("snapshot stream dialed", zap.String("url", c.wsURL))

	conn.SetCloseHandler(func(code int, text string) error {
		c.logger.Warn(
			"snapshot stream close frame received",
			zap.Int("code", code),
			zap.String("reason", text),
		)
		return nil
	})

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	go c.readLoop()
	go c.pingLoop()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.closeCh:
		}
	}()

	return nil
}

func (c *BotEventsClient) Messages() <-chan json.RawMessage {
	return c.msgCh
}

func (c *BotEventsClient) Errors() <-chan error {
	return c.errCh
}

type WSStats struct {
	MessageCount  uint64
	LastMessageAt time.Time
}

func (c *BotEventsClient) Stats() WSStats {
	n := atomic.LoadUint64(&c.msgCount)
	ns := atomic.LoadInt64(&c.lastMsgUnixNano)

	var t time.Time
	if ns > 0 {
		t = time.Unix(0, ns)
	}

	return WSStats{
		MessageCount:  n,
		LastMessageAt: t,
	}
}

func (c *BotEventsClient) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Signal goroutines to stop by closing closeCh
	select {
	case <-c.closeCh:
		// Channel was already closed
	default:
		close(c.closeCh)
	}

	// Create fresh channel for potential reconnection
	c.closeCh = make(chan struct{})

	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}

	return err
}

func (c *BotEventsClient) pingLoop() {
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()

			if conn != nil {
				c.writeMu.Lock()
				_ = conn.WriteMessage(websocket.TextMessage, []byte("PING"))
				c.writeMu.Unlock()
			}

		case <-c.closeCh:
			return
		}
	}
}

func (c *BotEventsClient) readLoop() {
	c.logger.Info("snapshot stream read loop started")

	first := true

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			return
		}

		_, b, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("snapshot stream read error", zap.Error(err))
			select {
			case c.errCh <- err:
			default:
			}
			_ = c.Close()
			return
		}

		// Server may reply with plain "PONG".
		if string(b) == "PONG" || string(b) == "PING" {
			continue
		}

		atomic.AddUint64(&c.msgCount, 1)
		atomic.StoreInt64(&c.lastMsgUnixNano, time.Now().UnixNano())

		if first {
			first = false
			c.logger.Info("snapshot stream received first frame", zap.Int("bytes", len(b)))
		}

		c.forward(json.RawMessage(append([]byte(nil), b...)))
	}
}

func (c *BotEventsClient) forward(msg json.RawMessage) {
	select {
	case c.msgCh <- msg:
	default:
		// Only the newest snapshot matters; drain one and retry so a slow
		// consumer sees current state, not a backlog.
		select {
		case <-c.msgCh:
		default:
		}
		select {
		case c.msgCh <- msg:
		default:
			c.logger.Warn("dropping snapshot: msgCh full")
		}
	}
}
