package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"TrapFlow/internal/domain/models"
	drepo "TrapFlow/internal/domain/repository"
	"TrapFlow/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

// Client implements a MarketStream backed by a Binance-style trade WebSocket.
// Each frame carries at least "p" (price) and "q" (quantity) as decimal
// strings; frames missing either are ignored.
type Client struct {
	url          string
	pingInterval time.Duration
	log          *logger.Logger
	metrics      drepo.Metrics

	conn      *websocket.Conn
	connected bool
	bo        *backoff.Backoff
}

// New creates a new trade-stream MarketStream.
func New(url string, reconnectDelay, pingInterval time.Duration, log *logger.Logger, metrics drepo.Metrics) drepo.MarketStream {
	return &Client{
		url:          url,
		pingInterval: pingInterval,
		log:          log,
		metrics:      metrics,
		bo: &backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    reconnectDelay,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.bo.Reset()
	c.log.Info("trade stream connected", logger.String("url", c.url))
	return nil
}

type wsTrade struct {
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"` // ms, optional
}

// Read streams Tick events and errors. On backpressure the oldest buffered
// tick is the one consumers drain past; the channel itself drops newest
// writes when full.
func (c *Client) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					c.connected = false
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				tick, err := parseTick(b)
				if err != nil {
					c.log.Error("tick parse failed",
						logger.Int("payload_bytes", len(b)),
						logger.Error(err))
					c.metrics.RecordError("parse")
					continue
				}
				if tick == nil {
					// non-trade frame
					continue
				}
				select {
				case ticks <- tick:
				default:
					// drop on backpressure; only the latest state matters
				}
			}
		}
	}()

	return ticks, errs
}

// parseTick normalizes one frame. It returns (nil, nil) for frames that are
// valid JSON but not trades, and an error for malformed trades.
func parseTick(b []byte) (*models.Tick, error) {
	var m wsTrade
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if m.Price == "" && m.Quantity == "" {
		return nil, nil
	}

	price, err := strconv.ParseFloat(m.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("price %q: %w", m.Price, err)
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("price out of domain: %v", price)
	}

	volume, err := strconv.ParseFloat(m.Quantity, 64)
	if err != nil {
		return nil, fmt.Errorf("quantity %q: %w", m.Quantity, err)
	}
	if volume < 0 || math.IsNaN(volume) {
		return nil, fmt.Errorf("quantity out of domain: %v", volume)
	}

	ts := time.Now().UTC()
	if m.TradeTime > 0 {
		ts = time.UnixMilli(m.TradeTime).UTC()
	}

	return &models.Tick{Timestamp: ts, Price: price, Volume: volume}, nil
}

// Reconnect closes and reconnects after a backoff delay.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	d := c.bo.Duration()
	c.log.Warn("trade stream reconnecting", logger.Duration("delay", d))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
	}
	return c.Connect(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
