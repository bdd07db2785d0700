package market

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GoPolymarket/safegate/internal/pkg/logger"
)

// maxFills bounds the in-memory fill buffer; older fills roll off.
const maxFills = 4096

// Fill is a trade execution reported on the user channel.
type Fill struct {
	ID        string    `json:"fill_id"`
	OrderID   string    `json:"order_id"`
	Market    string    `json:"market"`
	AssetID   string    `json:"asset_id"`
	Price     string    `json:"price"`
	Size      string    `json:"size"`
	Side      string    `json:"side"`
	Timestamp time.Time `json:"timestamp"`
}

type wsMessage struct {
	EventType string `json:"event_type"`
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	ID        string `json:"id"`
	OrderID   string `json:"taker_order_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Timestamp string `json:"timestamp"`
}

// UserStream follows the exchange user websocket channel and keeps a
// rolling buffer of fills for the authenticated account.
type UserStream struct {
	url        string
	apiKey     string
	apiSecret  string
	passphrase string

	mu    sync.RWMutex
	fills []Fill
}

func NewUserStream(url, key, secret, passphrase string) *UserStream {
	return &UserStream{
		url:        url,
		apiKey:     key,
		apiSecret:  secret,
		passphrase: passphrase,
		fills:      make([]Fill, 0),
	}
}

// Start runs the connect/read loop until ctx is cancelled, reconnecting
// with a capped backoff after any failure.
func (s *UserStream) Start(ctx context.Context) {
	go func() {
		backoff := time.Second
		for {
			if err := s.connectAndRead(ctx); err != nil {
				logger.Warn("user stream disconnected", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}
	}()
}

// Fills returns a copy of the buffered fills, newest last.
func (s *UserStream) Fills() []Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Fill, len(s.fills))
	copy(res, s.fills)
	return res
}

func (s *UserStream) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	if err := s.authenticate(conn); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	subMsg := map[string]any{
		"type":         "subscribe",
		"channel_name": "user",
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		s.handleMessage(msg)
	}
}

func (s *UserStream) authenticate(conn *websocket.Conn) error {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	signStr := ts + "GET" + "/ws/user"

	mac := hmac.New(sha256.New, []byte(s.apiSecret))
	mac.Write([]byte(signStr))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authMsg := map[string]string{
		"type":       "auth",
		"key":        s.apiKey,
		"signature":  sig,
		"timestamp":  ts,
		"passphrase": s.passphrase,
	}
	return conn.WriteJSON(authMsg)
}

func (s *UserStream) handleMessage(raw []byte) {
	// The channel delivers both single events and batches.
	var msgs []wsMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		var single wsMessage
		if err2 := json.Unmarshal(raw, &single); err2 != nil {
			logger.Debug("unparsable stream message", "raw", string(raw))
			return
		}
		msgs = []wsMessage{single}
	}

	for _, m := range msgs {
		if m.EventType != "trade" && m.EventType != "fills" {
			continue
		}
		s.appendFill(m)
	}
}

func (s *UserStream) appendFill(m wsMessage) {
	fill := Fill{
		ID:        m.ID,
		OrderID:   m.OrderID,
		Market:    m.Market,
		AssetID:   m.AssetID,
		Price:     m.Price,
		Size:      m.Size,
		Side:      m.Side,
		Timestamp: parseTimestamp(m.Timestamp),
	}

	s.mu.Lock()
	s.fills = append(s.fills, fill)
	if len(s.fills) > maxFills {
		s.fills = s.fills[len(s.fills)-maxFills:]
	}
	s.mu.Unlock()

	logger.Info("fill received",
		"market", fill.Market, "side", fill.Side, "price", fill.Price, "size", fill.Size)
}

func parseTimestamp(ts string) time.Time {
	var unixMs int64
	if _, err := fmt.Sscanf(ts, "%d", &unixMs); err != nil || unixMs == 0 {
		return time.Now().UTC()
	}
	// The feed reports milliseconds.
	return time.UnixMilli(unixMs).UTC()
}
