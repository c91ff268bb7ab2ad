package messagepipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// --- Google Cloud Pub/Sub Consumer Implementation ---

// GooglePubsubConsumerConfig configures a consumer that replays raw upstream events
// (one event per Pub/Sub message body) from a subscription.
type GooglePubsubConsumerConfig struct {
	ProjectID              string        `envconfig:"PROJECT_ID"`
	SubscriptionID         string        `envconfig:"SUBSCRIPTION_ID"`
	MaxOutstandingMessages int           `envconfig:"MAX_OUTSTANDING_MESSAGES" default:"100"`
	NumGoroutines          int           `envconfig:"NUM_GOROUTINES" default:"1"`
	ExistsTimeout          time.Duration `envconfig:"EXISTS_TIMEOUT" default:"20s"`
}

// NewGooglePubsubConsumerDefaults returns a config with defaults for the given subscription.
func NewGooglePubsubConsumerDefaults(subID string) *GooglePubsubConsumerConfig {
	return &GooglePubsubConsumerConfig{
		SubscriptionID:         subID,
		MaxOutstandingMessages: 100,
		NumGoroutines:          1,
		ExistsTimeout:          20 * time.Second,
	}
}

// GooglePubsubConsumer implements MessageConsumer for a Pub/Sub subscription.
type GooglePubsubConsumer struct {
	subscription       *pubsub.Subscription
	logger             zerolog.Logger
	outputChan         chan Message
	stopOnce           sync.Once
	startOnce          sync.Once
	cancelSubscription context.CancelFunc
	doneChan           chan struct{}
}

// NewGooglePubsubConsumer creates a consumer after checking that the subscription exists.
func NewGooglePubsubConsumer(cfg *GooglePubsubConsumerConfig, client *pubsub.Client, logger zerolog.Logger) (*GooglePubsubConsumer, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil for consumer")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription id is required")
	}
	sub := client.Subscription(cfg.SubscriptionID)

	existsTimeout := cfg.ExistsTimeout
	if existsTimeout <= 0 {
		existsTimeout = 20 * time.Second
	}
	subContext, cancel := context.WithTimeout(context.Background(), existsTimeout)
	defer cancel()
	exists, err := sub.Exists(subContext)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription %s: %w", cfg.SubscriptionID, err)
	}
	if !exists {
		return nil, fmt.Errorf("subscription %s does not exist", cfg.SubscriptionID)
	}

	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines

	bufferSize := cfg.MaxOutstandingMessages
	if bufferSize <= 0 {
		bufferSize = 1
	}

	return &GooglePubsubConsumer{
		subscription: sub,
		logger:       logger.With().Str("component", "GooglePubsubConsumer").Str("subscription_id", cfg.SubscriptionID).Logger(),
		outputChan:   make(chan Message, bufferSize),
		doneChan:     make(chan struct{}),
	}, nil
}

// Messages returns the channel of received events.
func (c *GooglePubsubConsumer) Messages() <-chan Message { return c.outputChan }

// Start launches the Receive loop in the background. A consumer can only be
// started once.
func (c *GooglePubsubConsumer) Start(ctx context.Context) error {
	started := false
	c.startOnce.Do(func() {
		started = true
		c.logger.Info().Msg("Starting Pub/Sub message consumption...")
		receiveCtx, cancel := context.WithCancel(ctx)
		c.cancelSubscription = cancel
		go c.receive(receiveCtx)
	})
	if !started {
		return fmt.Errorf("pubsub consumer cannot be restarted")
	}
	return nil
}

func (c *GooglePubsubConsumer) receive(receiveCtx context.Context) {
	defer close(c.doneChan)
	defer close(c.outputChan)
	defer c.logger.Info().Msg("Pub/Sub Receive goroutine stopped.")

	err := c.subscription.Receive(receiveCtx, func(_ context.Context, msg *pubsub.Message) {
		payloadCopy := make([]byte, len(msg.Data))
		copy(payloadCopy, msg.Data)

		consumedMsg := Message{
			MessageData: MessageData{
				ID:          msg.ID,
				Payload:     payloadCopy,
				PublishTime: msg.PublishTime,
			},
			Attributes: msg.Attributes,
			Ack:        msg.Ack,
			Nack:       msg.Nack,
		}

		select {
		case c.outputChan <- consumedMsg:
		case <-receiveCtx.Done():
			msg.Nack()
			c.logger.Warn().Str("msg_id", msg.ID).Msg("Consumer stopping, Nacking message.")
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error().Err(err).Msg("Pub/Sub Receive call exited with error.")
	}
}

// Stop cancels the Receive loop and waits for it to exit or for ctx to expire.
func (c *GooglePubsubConsumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping Pub/Sub consumer...")
		neverStarted := false
		c.startOnce.Do(func() { neverStarted = true })
		if neverStarted {
			close(c.outputChan)
			close(c.doneChan)
			return
		}
		c.cancelSubscription()
		select {
		case <-c.doneChan:
			c.logger.Info().Msg("Pub/Sub Receive goroutine confirmed stopped.")
		case <-ctx.Done():
			c.logger.Error().Msg("Timeout waiting for Pub/Sub Receive goroutine to stop.")
			err = ctx.Err()
		}
	})
	return err
}

// Done returns a channel closed when the Receive loop has exited.
func (c *GooglePubsubConsumer) Done() <-chan struct{} { return c.doneChan }
