package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL            string
	SocketURL         string
	Token             string
	UserID            string
	UserName          string
	DraftsDB          string
	RequestTimeout    time.Duration
	TypingIdle        time.Duration
	TypingDecay       time.Duration
	ReconnectInterval time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	requestTimeout, err := getDuration("REQUEST_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	typingIdle, err := getDuration("TYPING_IDLE", "1200ms")
	if err != nil {
		return nil, err
	}
	typingDecay, err := getDuration("TYPING_DECAY", "2000ms")
	if err != nil {
		return nil, err
	}
	reconnectInterval, err := getDuration("RECONNECT_INTERVAL", "2s")
	if err != nil {
		return nil, err
	}

	socketURL, err := SocketURL(getEnv("SKILLSWAP_SOCKET_URL", "http://localhost:5000"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIURL:            getEnv("SKILLSWAP_API_URL", "http://localhost:5000/api"),
		SocketURL:         socketURL,
		Token:             os.Getenv("SKILLSWAP_TOKEN"),
		UserID:            os.Getenv("SKILLSWAP_USER_ID"),
		UserName:          os.Getenv("SKILLSWAP_USER_NAME"),
		DraftsDB:          getEnv("SKILLSWAP_DRAFTS_DB", "skillswap-drafts.db"),
		RequestTimeout:    requestTimeout,
		TypingIdle:        typingIdle,
		TypingDecay:       typingDecay,
		ReconnectInterval: reconnectInterval,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		return fmt.Errorf("SKILLSWAP_API_URL is not a valid URL: %w", err)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be greater than 0")
	}

	if c.TypingIdle <= 0 {
		return fmt.Errorf("TYPING_IDLE must be greater than 0")
	}

	if c.TypingDecay <= 0 {
		return fmt.Errorf("TYPING_DECAY must be greater than 0")
	}

	if c.ReconnectInterval < 0 {
		return fmt.Errorf("RECONNECT_INTERVAL must not be negative")
	}

	return nil
}

// SocketURL turns the configured socket base into the websocket endpoint.
// A trailing /api is stripped so the REST base can be reused, http(s)
// becomes ws(s), and an empty path becomes /ws.
func SocketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("SKILLSWAP_SOCKET_URL is not a valid URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("SKILLSWAP_SOCKET_URL has unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("SKILLSWAP_SOCKET_URL has no host")
	}

	path := strings.TrimSuffix(u.Path, "/")
	path = strings.TrimSuffix(path, "/api")
	if path == "" {
		path = "/ws"
	}
	u.Path = path
	return u.String(), nil
}

func getDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
