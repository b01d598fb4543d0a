package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-flow/core/config"
	valkeylib "github.com/valkey-io/valkey-go"
)

// DefaultConnectTimeout bounds the initial PING.
const DefaultConnectTimeout = 5 * time.Second

type Config struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
}

// FromAppConfig maps the VALKEY_* settings.
func FromAppConfig(db config.DatabaseConfig) Config {
	return Config{
		Address:   db.ValkeyAddress,
		Password:  db.ValkeyPassword,
		DB:        db.ValkeyDB,
		KeyPrefix: db.ValkeyKeyPrefix,
	}
}

// Client wraps valkey-go with the application key prefix.
type Client struct {
	inner     valkeylib.Client
	keyPrefix string
}

// NewClient connects and pings. The caller owns Close.
func NewClient(cfg Config) (*Client, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
		Password:    cfg.Password,
	}

	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := inner.Do(ctx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey at %s: %w", cfg.Address, err)
	}

	return Wrap(inner, cfg.KeyPrefix), nil
}

// Wrap builds a Client around an existing valkey-go client (tests use a mock client).
func Wrap(inner valkeylib.Client, keyPrefix string) *Client {
	if keyPrefix != "" && !strings.HasSuffix(keyPrefix, ":") {
		keyPrefix += ":"
	}
	return &Client{inner: inner, keyPrefix: keyPrefix}
}

func (c *Client) Inner() valkeylib.Client {
	return c.inner
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Key joins parts under the prefix: Key("chat", "t1", "5511@s.whatsapp.net") -> "azflow:chat:t1:5511@s.whatsapp.net".
func (c *Client) Key(parts ...string) string {
	if len(parts) == 0 {
		return strings.TrimSuffix(c.keyPrefix, ":")
	}
	return c.keyPrefix + strings.Join(parts, ":")
}

func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}

// IsNil reports a Valkey NIL reply.
func IsNil(err error) bool {
	return valkeylib.IsValkeyNil(err)
}
