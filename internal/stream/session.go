package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/gold-monitor-backend/internal/httputil"
	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const (
	DefaultTopic     = "/topic/gold-price"
	DefaultHeartbeat = 4 * time.Second

	connectTimeout    = 10 * time.Second
	heartbeatSlack    = 2 // tolerated missed server beats
	subscriptionID    = "sub-0"
	disconnectTimeout = 2 * time.Second
)

var (
	ErrBroker           = errors.New("broker error")
	ErrHeartbeatTimeout = errors.New("heart-beat timeout")
	ErrGaveUp           = errors.New("reconnect attempts exhausted")
)

// Conn is the WebSocket surface the session needs; *websocket.Conn
// satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket and asks for the STOMP
// subprotocols.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			HandshakeTimeout: connectTimeout,
			Subprotocols:     []string{"v12.stomp", "v11.stomp", "v10.stomp"},
		}
	}
	conn, resp, err := dialer.DialContext(ctx, rawURL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", rawURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return conn, nil
}

type SessionConfig struct {
	URL       string
	Topic     string        // default DefaultTopic
	Heartbeat time.Duration // both directions; default DefaultHeartbeat
	// Reconnect.Delay(n) is the wait before retry n. MaxAttempts <= 0
	// retries forever; the count resets after every successful connect.
	Reconnect httputil.RetryConfig
}

// Session is a caller-owned subscription to the broker price topic.
// Run drives the connection state machine:
//
//	disconnected -> connecting -> connected -> error -> connecting ...
//
// Connect failures, broker ERROR frames, dropped sockets and heart-beat
// timeouts all move to error and schedule a reconnect. Cancelling the
// context moves to disconnected from any state.
type Session struct {
	cfg    SessionConfig
	dialer Dialer
	store  *Store
	log    logrus.FieldLogger
}

func NewSession(cfg SessionConfig, dialer Dialer, store *Store, log logrus.FieldLogger) *Session {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.Reconnect.BaseDelay <= 0 {
		cfg.Reconnect.BaseDelay = 5 * time.Second
	}
	if cfg.Reconnect.MaxDelay <= 0 {
		cfg.Reconnect.MaxDelay = time.Minute
	}
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	if store == nil {
		store = NewStore(0)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{cfg: cfg, dialer: dialer, store: store, log: log}
}

func (s *Session) Store() *Store { return s.store }

// Run blocks until ctx is cancelled (returning nil) or the attempt bound
// is exhausted (returning ErrGaveUp wrapping the last failure).
func (s *Session) Run(ctx context.Context) error {
	defer s.store.setState(StateDisconnected, nil)

	failures := 0
	for {
		s.store.setState(StateConnecting, nil)
		connected, err := s.serve(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			failures = 0
		}
		failures++
		s.store.setState(StateError, err)

		if limit := s.cfg.Reconnect.MaxAttempts; limit > 0 && failures >= limit {
			s.log.WithError(err).WithField("attempts", failures).Error("Giving up on price feed")
			return fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, failures, err)
		}

		delay := s.cfg.Reconnect.Delay(failures)
		s.log.WithError(err).WithFields(logrus.Fields{
			"attempt": failures,
			"retryIn": delay.String(),
		}).Warn("Price feed connection lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// serve runs one connection from dial to teardown. connected reports
// whether the broker accepted the CONNECT.
func (s *Session) serve(ctx context.Context) (connected bool, err error) {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	conn, err := s.dialer.Dial(dialCtx, s.cfg.URL)
	cancel()
	if err != nil {
		return false, err
	}
	w := &frameWriter{conn: conn}
	defer conn.Close()

	readTimeout, sendEvery, err := s.handshake(conn, w)
	if err != nil {
		return false, err
	}

	s.store.setState(StateConnected, nil)
	s.log.WithField("topic", s.cfg.Topic).Info("Price feed connected")

	sub := NewFrame(CmdSubscribe, "id", subscriptionID, "destination", s.cfg.Topic, "ack", "auto")
	if err := w.send(sub); err != nil {
		return true, fmt.Errorf("subscribe %s: %w", s.cfg.Topic, err)
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	connCtx, stop := context.WithCancel(ctx)
	defer stop()

	if sendEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.beat(connCtx, sendEvery)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-connCtx.Done()
		if ctx.Err() != nil {
			w.send(NewFrame(CmdUnsubscribe, "id", subscriptionID))
			w.send(NewFrame(CmdDisconnect, "receipt", uuid.NewString()))
		}
		conn.SetReadDeadline(time.Now())
	}()

	return true, s.readLoop(connCtx, conn, readTimeout)
}

func (s *Session) handshake(conn Conn, w *frameWriter) (readTimeout, sendEvery time.Duration, err error) {
	hb := int(s.cfg.Heartbeat / time.Millisecond)
	host := ""
	if u, perr := url.Parse(s.cfg.URL); perr == nil {
		host = u.Hostname()
	}
	connect := NewFrame(CmdConnect,
		"accept-version", "1.2",
		"host", host,
		"heart-beat", fmt.Sprintf("%d,%d", hb, hb),
	)
	if err := w.send(connect); err != nil {
		return 0, 0, fmt.Errorf("send CONNECT: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(connectTimeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return 0, 0, fmt.Errorf("await CONNECTED: %w", err)
		}
		f, err := ParseFrame(data)
		if err != nil {
			return 0, 0, err
		}
		switch f.Command {
		case "":
			continue
		case CmdConnected:
			conn.SetReadDeadline(time.Time{})
			sx, sy := parseHeartBeat(f.Header("heart-beat"))
			return negotiate(hb, sx), negotiate(hb, sy), nil
		case CmdError:
			return 0, 0, brokerError(f)
		default:
			return 0, 0, fmt.Errorf("%w: expected CONNECTED, got %s", ErrMalformedFrame, f.Command)
		}
	}
}

// negotiate applies the STOMP rule: no beats unless both sides want
// them, otherwise the slower of the two.
func negotiate(ours, theirs int) time.Duration {
	if ours == 0 || theirs == 0 {
		return 0
	}
	return time.Duration(max(ours, theirs)) * time.Millisecond
}

// readLoop re-arms the read deadline before checking ctx, so a teardown
// deadline can never be overwritten unnoticed.
func (s *Session) readLoop(ctx context.Context, conn Conn, readTimeout time.Duration) error {
	for {
		if readTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(readTimeout * heartbeatSlack))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return ErrHeartbeatTimeout
			}
			return fmt.Errorf("read: %w", err)
		}

		f, err := ParseFrame(data)
		if err != nil {
			s.log.WithError(err).Warn("Dropping unreadable frame")
			continue
		}
		switch f.Command {
		case "", CmdReceipt:
		case CmdMessage:
			s.handleMessage(f)
		case CmdError:
			return brokerError(f)
		default:
			s.log.WithField("command", f.Command).Debug("Ignoring frame")
		}
	}
}

// handleMessage applies a price frame to the store. Bodies without a
// positive price are ignored.
func (s *Session) handleMessage(f Frame) {
	var obs models.PriceObservation
	if err := json.Unmarshal(f.Body, &obs); err != nil {
		s.log.WithError(err).Warn("Failed to parse price message")
		return
	}
	if obs.Price <= 0 {
		return
	}
	s.store.Update(obs)
}

func brokerError(f Frame) error {
	msg := f.Header("message")
	if msg == "" {
		msg = string(f.Body)
	}
	return fmt.Errorf("%w: %s", ErrBroker, msg)
}

// frameWriter serialises writes; gorilla allows one concurrent writer.
type frameWriter struct {
	mu   sync.Mutex
	conn Conn
}

func (w *frameWriter) send(f Frame) error {
	return w.write(f.Marshal())
}

func (w *frameWriter) write(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, b)
}

func (w *frameWriter) beat(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.write([]byte("\n")); err != nil {
				return
			}
		}
	}
}
