package realtime

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultCluster = "mt1"

type Settings struct {
	Key     string
	Cluster string
	// Host switches to a self-hosted broker instead of the hosted cluster.
	Host   string
	Port   int
	Scheme string

	AuthEndpoint string
	Token        string

	HandshakeTimeout time.Duration
	AuthTimeout      time.Duration
	ReconnectTimeout time.Duration
	PingTimeout      time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Cluster:          DefaultCluster,
		HandshakeTimeout: 5 * time.Second,
		AuthTimeout:      5 * time.Second,
		ReconnectTimeout: 5 * time.Second,
		PingTimeout:      30 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      75 * time.Second,
	}
}

// Enabled is false when no key is configured; realtime is then off entirely.
func (s Settings) Enabled() bool {
	return strings.TrimSpace(s.Key) != ""
}

// URL returns the websocket endpoint for the configured broker.
func (s Settings) URL() (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("realtime key is not configured")
	}
	q := url.Values{}
	q.Set("protocol", strconv.Itoa(ProtocolVersion))
	q.Set("client", "teamboard-go")
	q.Set("flash", "false")

	u := url.URL{Path: "/app/" + url.PathEscape(s.Key), RawQuery: q.Encode()}
	if host := strings.TrimSpace(s.Host); host != "" {
		u.Scheme = "ws"
		if strings.EqualFold(s.Scheme, "https") || strings.EqualFold(s.Scheme, "wss") {
			u.Scheme = "wss"
		}
		port := s.Port
		if port == 0 {
			port = 8080
		}
		u.Host = host + ":" + strconv.Itoa(port)
		return u.String(), nil
	}

	cluster := strings.TrimSpace(s.Cluster)
	if cluster == "" {
		cluster = DefaultCluster
	}
	u.Scheme = "wss"
	u.Host = "ws-" + cluster + ".pusher.com:443"
	return u.String(), nil
}
