// Package notify watches the Jetstream firehose for post activity from
// a configured set of accounts and turns matching commits into
// remote-activity hints for the session. The hint only prompts an
// immediate gated probe; it never touches feed state directly.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	jetstream_models "github.com/bluesky-social/jetstream/pkg/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	wsConnectionAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skypager_jetstream_connection_attempts_total",
		Help: "The total number of connection attempts to the Jetstream websocket",
	})

	wsConnectionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skypager_jetstream_connection_errors_total",
		Help: "The total number of Jetstream connection errors encountered",
	})

	activityHints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skypager_jetstream_activity_hints_total",
		Help: "The number of remote-activity hints emitted from Jetstream commits",
	})
)

const (
	wsReadBufferSize  = 1024 * 1024
	wsWriteBufferSize = 1024
	wsReadTimeout     = 60 * time.Second
	wsWriteTimeout    = 10 * time.Second
	wsPingInterval    = 30 * time.Second
)

// Config holds the watcher configuration.
type Config struct {
	// Hosts is a list of Jetstream endpoints to try in order,
	// e.g. ["wss://jetstream1.us-east.bsky.network"].
	Hosts       []string
	WatchedDIDs []string
	Compress    bool
	UserAgent   string
}

// Watcher maintains the Jetstream subscription and calls onActivity for
// every matching post commit.
type Watcher struct {
	config     Config
	onActivity func(did string)
	decoder    *zstd.Decoder
}

func NewWatcher(config Config, onActivity func(did string)) (*Watcher, error) {
	if len(config.Hosts) == 0 {
		return nil, fmt.Errorf("no jetstream hosts configured")
	}
	w := &Watcher{config: config, onActivity: onActivity}
	if config.Compress {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderDicts(jetstream_models.ZSTDDictionary))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		w.decoder = decoder
	}
	return w, nil
}

// Run connects and reads until ctx is cancelled, reconnecting with
// exponential backoff and host failover on every drop.
func (w *Watcher) Run(ctx context.Context) error {
	log.WithFields(log.Fields{
		"hosts": w.config.Hosts,
		"dids":  len(w.config.WatchedDIDs),
	}).Info("Watching Jetstream for remote activity")

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.Multiplier = 1.5
	policy.MaxElapsedTime = 0 // Never stop retrying

	hostIdx := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := w.dial(ctx, w.config.Hosts[hostIdx])
		if err != nil {
			wsConnectionErrors.Inc()
			log.Errorf("Error connecting to Jetstream host %s: %s", w.config.Hosts[hostIdx], err)
			hostIdx = (hostIdx + 1) % len(w.config.Hosts)
			time.Sleep(policy.NextBackOff())
			continue
		}

		policy.Reset()
		w.read(ctx, conn)
		conn.Close()
	}
}

func (w *Watcher) dial(ctx context.Context, host string) (*websocket.Conn, error) {
	u, err := url.Parse(fmt.Sprintf("%s/subscribe", host))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Add("wantedCollections", "app.bsky.feed.post")
	for _, did := range w.config.WatchedDIDs {
		q.Add("wantedDids", did)
	}
	if w.config.Compress {
		q.Set("compress", "true")
	}
	u.RawQuery = q.Encode()

	headers := http.Header{}
	if w.config.UserAgent != "" {
		headers.Set("User-Agent", w.config.UserAgent)
	}
	if w.config.Compress {
		headers.Set("Accept-Encoding", "zstd")
	}

	dialer := websocket.Dialer{
		ReadBufferSize:   wsReadBufferSize,
		WriteBufferSize:  wsWriteBufferSize,
		HandshakeTimeout: 45 * time.Second,
		NetDialContext: (&net.Dialer{
			Timeout:   45 * time.Second,
			KeepAlive: 45 * time.Second,
		}).DialContext,
	}

	wsConnectionAttempts.Inc()
	conn, _, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go w.keepAlive(ctx, conn)
	return conn, nil
}

func (w *Watcher) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteTimeout)); err != nil {
				log.Warn("Ping failed, closing connection for restart: ", err)
				wsConnectionErrors.Inc()
				conn.Close()
				return
			}
		}
	}
}

func (w *Watcher) read(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("Unexpected websocket close: %v", err)
			}
			wsConnectionErrors.Inc()
			return
		}

		if err := w.handle(message); err != nil {
			log.Debugf("Skipping jetstream message: %v", err)
		}
	}
}

func (w *Watcher) handle(data []byte) error {
	if w.decoder != nil {
		decoded, err := w.decoder.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress message: %w", err)
		}
		data = decoded
	}

	var event jetstream_models.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.Commit == nil ||
		event.Commit.Operation != jetstream_models.CommitOperationCreate ||
		event.Commit.Collection != "app.bsky.feed.post" {
		return nil
	}

	activityHints.Inc()
	w.onActivity(event.Did)
	return nil
}
