package push

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/logger"
)

const maxFrameBytes = 1 << 20

// WebSocket dials the push channel over a websocket carrying JSON
// envelopes {"event": name, "data": payload}. The token travels both as a
// bearer header and as the "token" query parameter, matching the browser
// client's auth payload.
type WebSocket struct {
	URL              string
	Header           http.Header
	PingInterval     time.Duration // 0 disables keepalive pings
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer
}

func (w *WebSocket) Dial(ctx context.Context, token string) (Conn, error) {
	u, err := url.Parse(w.URL)
	if err != nil {
		return nil, errors.Wrap(err, "websocket url")
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	hdr := http.Header{}
	for k, vs := range w.Header {
		hdr[k] = append([]string(nil), vs...)
	}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
	}

	d := w.Dialer
	if d == nil {
		d = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: w.HandshakeTimeout,
		}
		if d.HandshakeTimeout <= 0 {
			d.HandshakeTimeout = 10 * time.Second
		}
	}

	c, resp, err := d.DialContext(ctx, u.String(), hdr)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, errors.Wrapf(ErrUnauthorized, "handshake status %d", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "websocket dial")
	}

	wc := &wsConn{
		c:            c,
		writeTimeout: w.WriteTimeout,
		stop:         make(chan struct{}),
		log:          logger.Named("push.websocket"),
	}
	if wc.writeTimeout <= 0 {
		wc.writeTimeout = 5 * time.Second
	}
	c.SetReadLimit(maxFrameBytes)
	if w.PingInterval > 0 {
		wc.readTimeout = 2 * w.PingInterval
		_ = c.SetReadDeadline(time.Now().Add(wc.readTimeout))
		c.SetPongHandler(func(string) error {
			return c.SetReadDeadline(time.Now().Add(wc.readTimeout))
		})
		go wc.keepalive(w.PingInterval)
	}
	return wc, nil
}

type wsConn struct {
	c            *websocket.Conn
	wmu          sync.Mutex
	writeTimeout time.Duration
	readTimeout  time.Duration
	stop         chan struct{}
	once         sync.Once
	log          *zap.Logger
}

func (w *wsConn) Read(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		mt, data, err := w.c.ReadMessage()
		if err != nil {
			return Event{}, errors.Wrap(err, "websocket read")
		}
		if w.readTimeout > 0 {
			_ = w.c.SetReadDeadline(time.Now().Add(w.readTimeout))
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		ev, err := UnmarshalFrame(data)
		if err != nil {
			w.log.Warn("skip malformed frame", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}
		return ev, nil
	}
}

func (w *wsConn) Emit(ctx context.Context, ev Event) error {
	frame, err := ev.MarshalFrame()
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	deadline := time.Now().Add(w.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	w.wmu.Lock()
	defer w.wmu.Unlock()
	if err := w.c.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.c.WriteMessage(websocket.TextMessage, frame)
}

func (w *wsConn) keepalive(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			if err := w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout)); err != nil {
				w.log.Debug("ping failed", zap.Error(err))
				_ = w.c.Close()
				return
			}
		}
	}
}

func (w *wsConn) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = w.c.Close()
	})
	return err
}
