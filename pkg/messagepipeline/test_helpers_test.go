package messagepipeline_test

import (
	"context"
	"sync"

	"github.com/illmade-knight/go-questionflow/pkg/messagepipeline"
)

// ====================================================================================
// Mocks for the interfaces defined in this package.
// ====================================================================================

// MockMessageConsumer is a mock implementation of the MessageConsumer interface.
// Pushed messages are delivered in order; Close simulates an upstream disconnect.
type MockMessageConsumer struct {
	msgChan    chan messagepipeline.Message
	doneChan   chan struct{}
	closeOnce  sync.Once
	startErr   error
	mu         sync.Mutex
	startCount int
	stopCount  int
}

// NewMockMessageConsumer creates a new mock consumer with a buffered channel.
func NewMockMessageConsumer(bufferSize int) *MockMessageConsumer {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &MockMessageConsumer{
		msgChan:  make(chan messagepipeline.Message, bufferSize),
		doneChan: make(chan struct{}),
	}
}

func (m *MockMessageConsumer) Messages() <-chan messagepipeline.Message {
	return m.msgChan
}

func (m *MockMessageConsumer) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCount++
	return m.startErr
}

func (m *MockMessageConsumer) Stop(_ context.Context) error {
	m.mu.Lock()
	m.stopCount++
	m.mu.Unlock()
	m.Close()
	return nil
}

func (m *MockMessageConsumer) Done() <-chan struct{} {
	return m.doneChan
}

// Push injects a message into the mock consumer's channel.
func (m *MockMessageConsumer) Push(msg messagepipeline.Message) {
	m.msgChan <- msg
}

// Close closes the message channel, as an upstream disconnect would.
func (m *MockMessageConsumer) Close() {
	m.closeOnce.Do(func() {
		close(m.msgChan)
		close(m.doneChan)
	})
}

// SetStartError configures the mock to return an error on Start().
func (m *MockMessageConsumer) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

func (m *MockMessageConsumer) GetStartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCount
}

func (m *MockMessageConsumer) GetStopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCount
}

// messageState tracks the Ack/Nack status for individual messages.
type messageState struct {
	mu         sync.Mutex
	ackCalled  bool
	nackCalled bool
}

func (ms *messageState) Ack() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.ackCalled = true
}

func (ms *messageState) Nack() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.nackCalled = true
}

func (ms *messageState) IsAcked() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.ackCalled
}

func (ms *messageState) IsNacked() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.nackCalled
}

// newTrackedMessage builds a message whose Ack/Nack calls are recorded in the returned state.
func newTrackedMessage(id, payload string) (messagepipeline.Message, *messageState) {
	state := &messageState{}
	return messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: id, Payload: []byte(payload)},
		Ack:         state.Ack,
		Nack:        state.Nack,
	}, state
}
