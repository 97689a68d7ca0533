// Package server implements the minimal Telnet server: it accepts TCP
// connections, offers two options, greets the client and echoes its payload
// back while refusing every option the client negotiates.
package server

import (
	"github.com/go-netprog/telnet-relay/lib/session"
	"github.com/go-netprog/telnet-relay/lib/telnet"
	"github.com/go-netprog/telnet-relay/lib/util"
)

// Default configuration values.
const (
	// DefaultListenAddr is the well-known Telnet port on all interfaces.
	DefaultListenAddr = ":23"

	// DefaultGreeting is sent after the proactive offers.
	DefaultGreeting = "Welcome to Simple Telnet Server\r\n"

	// DefaultReadBufferSize is the inbound chunk size.
	DefaultReadBufferSize = telnet.DefaultBufferSize
)

// DefaultOffers returns the offers sent to every client: WILL ECHO and
// DO SUPPRESS-GO-AHEAD.
func DefaultOffers() []telnet.Offer {
	return []telnet.Offer{
		{Command: telnet.WILL, Option: telnet.OptionEcho},
		{Command: telnet.DO, Option: telnet.OptionSuppressGoAhead},
	}
}

// Config holds the server configuration.
// All fields have defaults that can be overridden.
type Config struct {
	// ListenAddr is the TCP address to listen on (e.g., ":23", "127.0.0.1:2323").
	ListenAddr string

	// Concurrent serves each connection on its own goroutine. When false, one
	// client is served to completion before the next Accept.
	Concurrent bool

	// Policy is the negotiation policy applied to client input.
	Policy session.Policy

	// Offers are sent to each client before the greeting.
	Offers []telnet.Offer

	// Greeting is written after the offers. Empty disables it.
	Greeting string

	// ReadBufferSize is the chunk size for reading client input.
	ReadBufferSize int

	// MaxConnections limits concurrent sessions (0 = no limit). Only
	// meaningful when Concurrent is set.
	MaxConnections int

	// HistorySize is how many closed sessions are remembered.
	HistorySize int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     DefaultListenAddr,
		Concurrent:     false,
		Policy:         session.PolicyInline,
		Offers:         DefaultOffers(),
		Greeting:       DefaultGreeting,
		ReadBufferSize: DefaultReadBufferSize,
		MaxConnections: 0, // No limit
		HistorySize:    session.DefaultHistorySize,
	}
}

// Validate checks the configuration for errors and returns an error if invalid.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return &util.ConfigError{Field: "ListenAddr", Message: "cannot be empty"}
	}
	if c.Policy == session.PolicyPreamble {
		return &util.ConfigError{Field: "Policy", Message: "must be inline or raw"}
	}
	if c.Policy != session.PolicyInline && c.Policy != session.PolicyRaw {
		return &util.ConfigError{Field: "Policy", Message: "unknown policy"}
	}
	for _, o := range c.Offers {
		if err := o.Validate(); err != nil {
			return &util.ConfigError{Field: "Offers", Message: err.Error()}
		}
	}
	if c.ReadBufferSize <= 0 {
		return &util.ConfigError{Field: "ReadBufferSize", Message: "must be positive"}
	}
	if c.MaxConnections < 0 {
		return &util.ConfigError{Field: "MaxConnections", Message: "cannot be negative"}
	}
	if c.HistorySize < 0 {
		return &util.ConfigError{Field: "HistorySize", Message: "cannot be negative"}
	}
	return nil
}

// WithListenAddr returns a copy of the config with the listen address set.
func (c *Config) WithListenAddr(addr string) *Config {
	newCfg := *c
	newCfg.ListenAddr = addr
	return &newCfg
}

// WithConcurrent returns a copy of the config with the accept mode set.
func (c *Config) WithConcurrent(concurrent bool) *Config {
	newCfg := *c
	newCfg.Concurrent = concurrent
	return &newCfg
}

// WithGreeting returns a copy of the config with the greeting set.
func (c *Config) WithGreeting(greeting string) *Config {
	newCfg := *c
	newCfg.Greeting = greeting
	return &newCfg
}
