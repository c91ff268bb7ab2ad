// Package twitchconsumer adapts a Twitch chat connection to the
// messagepipeline.MessageConsumer interface. Every received IRC line becomes one
// message whose payload is the raw line, so that parsing stays with the transformer.
package twitchconsumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gempir/go-twitch-irc/v4"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-questionflow/pkg/messagepipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var droppedEvents = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "twitchconsumer_dropped_events_total",
	Help: "Total number of chat events dropped because the pipeline buffer was full.",
})

func init() {
	prometheus.MustRegister(droppedEvents)
}

// ChatClient is the subset of *twitch.Client used by the consumer.
type ChatClient interface {
	OnConnect(callback func())
	OnPrivateMessage(callback func(message twitch.PrivateMessage))
	OnUserJoinMessage(callback func(message twitch.UserJoinMessage))
	OnUserPartMessage(callback func(message twitch.UserPartMessage))
	OnClearChatMessage(callback func(message twitch.ClearChatMessage))
	OnNoticeMessage(callback func(message twitch.NoticeMessage))
	OnUserNoticeMessage(callback func(message twitch.UserNoticeMessage))
	OnReconnectMessage(callback func(message twitch.ReconnectMessage))
	Join(channels ...string)
	Connect() error
	Disconnect() error
}

var _ ChatClient = (*twitch.Client)(nil)

// NewTwitchClient creates a go-twitch-irc client, anonymous unless cfg carries
// credentials.
func NewTwitchClient(cfg *Config) *twitch.Client {
	if cfg.Anonymous() {
		return twitch.NewAnonymousClient()
	}
	token := cfg.OAuthToken
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	return twitch.NewClient(strings.ToLower(cfg.Username), token)
}

// ErrConnectFailed is wrapped by Err when the connection ended before Twitch ever
// confirmed the login, for example on bad credentials or an unreachable server.
var ErrConnectFailed = errors.New("twitch connection was never established")

// TwitchConsumer implements messagepipeline.MessageConsumer over a ChatClient.
// Chat events have no upstream acknowledgement, so Ack and Nack are no-ops.
type TwitchConsumer struct {
	client     ChatClient
	channels   []string
	logger     zerolog.Logger
	outputChan chan messagepipeline.Message
	doneChan   chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
	finishOnce sync.Once

	mu        sync.Mutex
	closed    bool
	stopped   bool
	connected bool
	connErr   error
}

// NewTwitchConsumer creates a consumer for the configured channels.
func NewTwitchConsumer(cfg *Config, client ChatClient, logger zerolog.Logger) (*TwitchConsumer, error) {
	if client == nil {
		return nil, fmt.Errorf("twitch client cannot be nil")
	}
	channels := NormalizeChannels(cfg.Channels)
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one channel is required")
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &TwitchConsumer{
		client:     client,
		channels:   channels,
		logger:     logger.With().Str("component", "TwitchConsumer").Strs("channels", channels).Logger(),
		outputChan: make(chan messagepipeline.Message, bufferSize),
		doneChan:   make(chan struct{}),
	}, nil
}

// Messages returns the channel of raw chat events.
func (c *TwitchConsumer) Messages() <-chan messagepipeline.Message { return c.outputChan }

// Done returns a channel closed once the connection has ended or Stop has returned.
func (c *TwitchConsumer) Done() <-chan struct{} { return c.doneChan }

// Err returns why the connection ended, or nil if it ended because Stop was called
// or is still open. A failure before the login was confirmed wraps ErrConnectFailed.
func (c *TwitchConsumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connErr
}

// Start registers the event handlers, joins the channels and connects in the
// background. Connection failures surface through Done and Err. A consumer can
// only be started once.
func (c *TwitchConsumer) Start(_ context.Context) error {
	started := false
	c.startOnce.Do(func() {
		started = true
		c.logger.Info().Msg("Starting Twitch chat consumption...")
		c.registerHandlers()
		c.client.Join(c.channels...)
		go c.connect()
	})
	if !started {
		return fmt.Errorf("twitch consumer cannot be restarted")
	}
	return nil
}

func (c *TwitchConsumer) registerHandlers() {
	c.client.OnConnect(func() {
		c.mu.Lock()
		c.connected = true
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			// Stop ran while the handshake was in progress and could not disconnect then.
			c.logger.Info().Msg("Connected after stop was requested, disconnecting.")
			go func() { _ = c.client.Disconnect() }()
			return
		}
		c.logger.Info().Msg("Connected to Twitch chat.")
	})
	c.client.OnPrivateMessage(func(m twitch.PrivateMessage) {
		c.push(m.ID, m.Raw, "PRIVMSG", m.Channel)
	})
	c.client.OnUserJoinMessage(func(m twitch.UserJoinMessage) {
		c.push("", m.Raw, "JOIN", m.Channel)
	})
	c.client.OnUserPartMessage(func(m twitch.UserPartMessage) {
		c.push("", m.Raw, "PART", m.Channel)
	})
	c.client.OnClearChatMessage(func(m twitch.ClearChatMessage) {
		c.push("", m.Raw, "CLEARCHAT", m.Channel)
	})
	c.client.OnNoticeMessage(func(m twitch.NoticeMessage) {
		c.push("", m.Raw, "NOTICE", m.Channel)
	})
	c.client.OnUserNoticeMessage(func(m twitch.UserNoticeMessage) {
		c.push(m.ID, m.Raw, "USERNOTICE", m.Channel)
	})
	c.client.OnReconnectMessage(func(m twitch.ReconnectMessage) {
		c.logger.Warn().Msg("Twitch requested a reconnect.")
		c.push("", m.Raw, "RECONNECT", "")
	})
}

func noop() {}

// push hands one event to the pipeline without ever blocking the IRC reader.
func (c *TwitchConsumer) push(id, raw, command, channel string) {
	if id == "" {
		id = uuid.NewString()
	}
	msg := messagepipeline.Message{
		MessageData: messagepipeline.MessageData{
			ID:      id,
			Payload: []byte(raw),
		},
		Attributes: map[string]string{
			"irc_command": command,
			"channel":     channel,
		},
		Ack:  noop,
		Nack: noop,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.outputChan <- msg:
	default:
		droppedEvents.Inc()
		c.logger.Warn().Str("msg_id", id).Str("irc_command", command).Msg("Pipeline buffer full, dropping chat event.")
	}
}

func (c *TwitchConsumer) connect() {
	err := c.client.Connect()

	c.mu.Lock()
	switch {
	case c.stopped:
		err = nil
	case err != nil && !c.connected:
		err = fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error().Err(err).Msg("Twitch connection ended.")
	} else {
		c.logger.Info().Msg("Twitch connection closed.")
	}
	c.finish(err)
}

// finish closes the output and Done channels exactly once and records the cause.
func (c *TwitchConsumer) finish(err error) {
	c.finishOnce.Do(func() {
		c.mu.Lock()
		c.connErr = err
		c.closed = true
		close(c.outputChan)
		c.mu.Unlock()
		close(c.doneChan)
	})
}

// Stop disconnects from Twitch and waits for the connection goroutine to exit or
// for ctx to expire. While a handshake or reconnect is still in progress the
// client cannot disconnect yet: the consumer then detaches at once, and the
// OnConnect handler closes the connection if the login ever completes.
func (c *TwitchConsumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping Twitch consumer...")
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()

		neverStarted := false
		c.startOnce.Do(func() { neverStarted = true })
		if neverStarted {
			c.finish(nil)
			return
		}

		if disconnectErr := c.client.Disconnect(); disconnectErr != nil {
			c.logger.Warn().Err(disconnectErr).Msg("Twitch connection not open yet, detaching consumer.")
			c.finish(nil)
			return
		}
		select {
		case <-c.doneChan:
			c.logger.Info().Msg("Twitch consumer stopped.")
		case <-ctx.Done():
			c.logger.Error().Msg("Timeout waiting for Twitch connection to close.")
			err = ctx.Err()
		}
	})
	return err
}
