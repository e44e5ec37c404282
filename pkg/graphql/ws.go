package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/bd-pipeline/bd-loader/pkg/logging"
)

// Subprotocol is the GraphQL over WebSocket protocol spoken by WSTransport.
const Subprotocol = "graphql-transport-ws"

// graphql-transport-ws message types.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

var errConnectionClosed = errors.New("graphql: websocket connection closed")

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSTransport multiplexes operations over one lazily dialled websocket.
type WSTransport struct {
	endpoint   string
	tokens     oauth2.TokenSource
	dialer     *websocket.Dialer
	ackTimeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan wsMessage

	writeMu sync.Mutex
	log     *zap.Logger
}

// NewWSTransport creates a websocket transport. The connection is dialled
// on first use and redialled after it drops.
func NewWSTransport(endpoint string, tokens oauth2.TokenSource, timeout time.Duration) *WSTransport {
	return &WSTransport{
		endpoint:   endpoint,
		tokens:     tokens,
		dialer:     &websocket.Dialer{HandshakeTimeout: timeout, Subprotocols: []string{Subprotocol}},
		ackTimeout: timeout,
		pending:    make(map[string]chan wsMessage),
		log:        logging.Named("graphql.ws"),
	}
}

func (t *WSTransport) Name() string   { return TransportWSS }
func (t *WSTransport) Method() string { return "WS" }

// Close closes the connection. Outstanding operations fail.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (t *WSTransport) connection(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}

	conn, _, err := t.dialer.DialContext(ctx, t.endpoint, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.endpoint, err)
	}

	initPayload := map[string]any{}
	if t.tokens != nil {
		tok, err := t.tokens.Token()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("fetch token: %w", err)
		}
		initPayload["headers"] = map[string]string{"Authorization": tok.Type() + " " + tok.AccessToken}
	}
	payload, _ := json.Marshal(initPayload)
	if err := conn.WriteJSON(wsMessage{Type: msgConnectionInit, Payload: payload}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send connection_init: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(t.ackTimeout))
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("await connection_ack: %w", err)
		}
		if msg.Type == msgConnectionAck {
			break
		}
	}
	conn.SetReadDeadline(time.Time{})

	t.conn = conn
	go t.readLoop(conn)
	return conn, nil
}

func (t *WSTransport) readLoop(conn *websocket.Conn) {
	defer t.drop(conn)
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		switch msg.Type {
		case msgPing:
			t.write(conn, wsMessage{Type: msgPong})
		case msgNext, msgError, msgComplete:
			t.mu.Lock()
			ch, ok := t.pending[msg.ID]
			t.mu.Unlock()
			if !ok {
				continue
			}
			select {
			case ch <- msg:
			default:
				t.log.Warn("dropping websocket message", zap.String("id", msg.ID), zap.String("type", msg.Type))
			}
		}
	}
}

// drop forgets conn and fails every operation waiting on it.
func (t *WSTransport) drop(conn *websocket.Conn) {
	conn.Close()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == conn {
		t.conn = nil
	}
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
}

func (t *WSTransport) write(conn *websocket.Conn, msg wsMessage) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// Do subscribes req and collects its single result.
func (t *WSTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	conn, err := t.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan wsMessage, 4)
	t.mu.Lock()
	t.pending[req.ID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, req.ID)
		t.mu.Unlock()
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if err := t.write(conn, wsMessage{ID: req.ID, Type: msgSubscribe, Payload: payload}); err != nil {
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	var result *Response
	for {
		select {
		case <-ctx.Done():
			t.write(conn, wsMessage{ID: req.ID, Type: msgComplete})
			return nil, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil, errConnectionClosed
			}
			switch msg.Type {
			case msgNext:
				var resp Response
				if err := json.Unmarshal(msg.Payload, &resp); err != nil {
					return nil, fmt.Errorf("decode response: %w", err)
				}
				result = &resp
			case msgError:
				var errs []Error
				if err := json.Unmarshal(msg.Payload, &errs); err != nil {
					return nil, fmt.Errorf("decode errors: %w", err)
				}
				return &Response{Errors: errs}, nil
			case msgComplete:
				if result == nil {
					return &Response{}, nil
				}
				return result, nil
			}
		}
	}
}
