package mongo

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds MongoDB connection settings.
type ClientConfig struct {
	URI            string
	Database       string
	UseTLS         bool
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
	AppName        string
}

// WithURI sets the connection string.
func WithURI(uri string) ClientOption {
	return func(c *ClientConfig) {
		c.URI = uri
	}
}

// WithDatabase sets the database name.
func WithDatabase(name string) ClientOption {
	return func(c *ClientConfig) {
		c.Database = name
	}
}

// WithTLS forces TLS 1.2+ regardless of the connection string.
func WithTLS(enabled bool) ClientOption {
	return func(c *ClientConfig) {
		c.UseTLS = enabled
	}
}

// WithPool sets connection pool bounds.
func WithPool(minSize, maxSize uint64) ClientOption {
	return func(c *ClientConfig) {
		c.MinPoolSize = minSize
		c.MaxPoolSize = maxSize
	}
}

// WithConnectTimeout bounds connecting and the initial ping.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.ConnectTimeout = d
	}
}
