package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/client"
	"github.com/gorilla/websocket"

	"github.com/theredcat/heimdall/internal/domain"
)

const handshakeTimeout = 10 * time.Second

// GetInteractiveSession attaches to the container's stdin, stdout and stderr
func (d *DockerSource) GetInteractiveSession(ctx context.Context, id string) (domain.Session, error) {
	return d.attach(ctx, id, attachQuery(false, true))
}

// FollowLogs attaches to the container's output, replaying past logs first
func (d *DockerSource) FollowLogs(ctx context.Context, id string) (domain.Session, error) {
	return d.attach(ctx, id, attachQuery(true, false))
}

func attachQuery(logs, stdin bool) url.Values {
	flag := func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	}
	return url.Values{
		"logs":   {flag(logs)},
		"stream": {"1"},
		"stdin":  {flag(stdin)},
		"stdout": {"1"},
		"stderr": {"1"},
	}
}

func (d *DockerSource) attach(ctx context.Context, id string, query url.Values) (domain.Session, error) {
	endpoint, err := attachEndpoint(d.client.DaemonHost(), d.client.ClientVersion(), id, query)
	if err != nil {
		return nil, err
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return d.dial(ctx, endpoint.network, endpoint.address)
		},
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("attach %s: %w: %s: %w", id, domain.ErrBackendRejected, resp.Status, err)
		}
		return nil, fmt.Errorf("attach %s: %w: %w", id, domain.ErrBackendUnreachable, err)
	}

	d.logger.Debug().Str("container", id).Str("url", endpoint.url).Msg("Attached to container")
	return newWSSession(conn), nil
}

type wsEndpoint struct {
	url     string
	network string
	address string
}

// attachEndpoint builds the websocket attach URL for a daemon host such as
// unix:///var/run/docker.sock or tcp://10.0.0.2:2375
func attachEndpoint(daemonHost, version, id string, query url.Values) (wsEndpoint, error) {
	host, err := client.ParseHostURL(daemonHost)
	if err != nil {
		return wsEndpoint{}, fmt.Errorf("parse daemon host: %w", err)
	}

	u := url.URL{Scheme: "ws", RawQuery: query.Encode()}
	ep := wsEndpoint{network: "tcp", address: host.Host}

	switch host.Scheme {
	case "unix":
		ep.network = "unix"
		u.Host = "docker"
	case "tcp", "http":
		u.Host = host.Host
	case "https":
		u.Scheme = "wss"
		u.Host = host.Host
	default:
		return wsEndpoint{}, fmt.Errorf("attach over %s is not supported: %w", host.Scheme, domain.ErrUnsupportedAction)
	}

	path := strings.TrimSuffix(host.Path, "/")
	if version != "" {
		path += "/v" + strings.TrimPrefix(version, "v")
	}
	u.Path = path + "/containers/" + id + "/attach/ws"

	ep.url = u.String()
	return ep, nil
}

// wsSession adapts a websocket connection to a byte stream. Each
// websocket message is read in full before the next one starts.
type wsSession struct {
	conn   *websocket.Conn
	reader io.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSSession(conn *websocket.Conn) *wsSession {
	return &wsSession{conn: conn}
}

func (s *wsSession) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) || errors.Is(err, net.ErrClosed) {
					return 0, io.EOF
				}
				return 0, err
			}
			s.reader = r
		}

		n, err := s.reader.Read(p)
		if errors.Is(err, io.EOF) {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsSession) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
