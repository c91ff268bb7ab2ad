package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/illmade-knight/go-questionflow/pkg/docstore"
	"github.com/illmade-knight/go-questionflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-questionflow/pkg/microservice"
	"github.com/illmade-knight/go-questionflow/pkg/questions"
	"github.com/illmade-knight/go-questionflow/pkg/twitchconsumer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// endedConsumer delivers its lines and then reports the upstream as gone.
type endedConsumer struct {
	msgs chan messagepipeline.Message
	done chan struct{}
	once sync.Once
	err  error
}

func newEndedConsumer(err error, lines ...string) *endedConsumer {
	c := &endedConsumer{msgs: make(chan messagepipeline.Message, len(lines)), done: make(chan struct{}), err: err}
	for i, line := range lines {
		c.msgs <- messagepipeline.Message{MessageData: messagepipeline.MessageData{ID: fmt.Sprintf("line-%d", i), Payload: []byte(line)}}
	}
	return c
}

func (c *endedConsumer) Messages() <-chan messagepipeline.Message { return c.msgs }
func (c *endedConsumer) Done() <-chan struct{}                    { return c.done }
func (c *endedConsumer) Err() error                               { return c.err }
func (c *endedConsumer) Start(_ context.Context) error {
	c.end()
	return nil
}
func (c *endedConsumer) Stop(_ context.Context) error {
	c.end()
	return nil
}

func (c *endedConsumer) end() {
	c.once.Do(func() {
		close(c.msgs)
		close(c.done)
	})
}

func testRunConfig() *Config {
	cfg := &Config{ShutdownTimeout: 2 * time.Second, ServiceConfig: questions.NewServiceConfigDefaults()}
	cfg.HTTPPort = ":0"
	return cfg
}

func sourcesFor(store docstore.Store[questions.Question], consumer messagepipeline.MessageConsumer) sources {
	return sources{
		newStore: func(context.Context, *Config, zerolog.Logger) (docstore.Store[questions.Question], error) {
			return store, nil
		},
		newConsumer: func(context.Context, *Config, zerolog.Logger) (messagepipeline.MessageConsumer, func(), error) {
			return consumer, func() {}, nil
		},
	}
}

func runWithTimeout(t *testing.T, ctx context.Context, src sources) error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- run(ctx, testRunConfig(), zerolog.Nop(), src) }()
	select {
	case err := <-result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
		return nil
	}
}

func TestRun_StoreFailureIsStartupError(t *testing.T) {
	src := sourcesFor(nil, newEndedConsumer(nil))
	src.newStore = func(context.Context, *Config, zerolog.Logger) (docstore.Store[questions.Question], error) {
		return nil, errors.New("permission denied on project")
	}

	err := runWithTimeout(t, context.Background(), src)

	require.Error(t, err)
	assert.True(t, microservice.IsStartupError(err))
	assert.Contains(t, err.Error(), "store")
}

func TestRun_ConsumerFailureIsStartupError(t *testing.T) {
	src := sourcesFor(docstore.NewInMemoryStore[questions.Question](), nil)
	src.newConsumer = func(context.Context, *Config, zerolog.Logger) (messagepipeline.MessageConsumer, func(), error) {
		return nil, nil, errors.New("subscription replay-sub does not exist")
	}

	err := runWithTimeout(t, context.Background(), src)

	assert.True(t, microservice.IsStartupError(err))
}

func TestRun_UpstreamDisconnectIsCleanExit(t *testing.T) {
	// Arrange
	store := docstore.NewInMemoryStore[questions.Question]()
	consumer := newEndedConsumer(errors.New("connection reset by peer"),
		"@id=m1;tmi-sent-ts=1704067200000 :alice!alice@alice.tmi.twitch.tv PRIVMSG #yoannfleurydev :hi")

	// Act
	err := runWithTimeout(t, context.Background(), sourcesFor(store, consumer))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestRun_ConnectionNeverEstablishedIsStartupError(t *testing.T) {
	cause := fmt.Errorf("%w: %w", twitchconsumer.ErrConnectFailed, errors.New("login authentication failed"))
	consumer := newEndedConsumer(cause)

	err := runWithTimeout(t, context.Background(), sourcesFor(docstore.NewInMemoryStore[questions.Question](), consumer))

	require.Error(t, err)
	assert.True(t, microservice.IsStartupError(err))
	assert.ErrorIs(t, err, twitchconsumer.ErrConnectFailed)
}

func TestRun_SignalIsCleanExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &idleConsumer{msgs: make(chan messagepipeline.Message), done: make(chan struct{})}
	time.AfterFunc(100*time.Millisecond, cancel)

	err := runWithTimeout(t, ctx, sourcesFor(docstore.NewInMemoryStore[questions.Question](), consumer))

	assert.NoError(t, err)
}

// idleConsumer never delivers anything until stopped.
type idleConsumer struct {
	msgs chan messagepipeline.Message
	done chan struct{}
	once sync.Once
}

func (c *idleConsumer) Messages() <-chan messagepipeline.Message { return c.msgs }
func (c *idleConsumer) Done() <-chan struct{}                    { return c.done }
func (c *idleConsumer) Start(_ context.Context) error            { return nil }
func (c *idleConsumer) Stop(_ context.Context) error {
	c.once.Do(func() {
		close(c.msgs)
		close(c.done)
	})
	return nil
}
