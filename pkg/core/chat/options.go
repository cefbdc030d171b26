package chat

import (
	"log/slog"
	"net/http"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAuthToken sets the bearer token sent with each request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStudent attaches student metadata carried on every request.
func WithStudent(name, topic string, confidenceLevel int) Option {
	return func(c *Client) {
		c.studentName = name
		c.topic = topic
		c.confidenceLevel = confidenceLevel
	}
}

// WithCallbacks sets the stream event callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(c *Client) {
		c.cb = cb
	}
}
