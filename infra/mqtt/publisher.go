package mqtt

import (
	"fmt"
	"sync"
	"time"

	coremqtt "github.com/kilianp07/liftmpc/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockClient records assignments in memory. It is used by tests and by the
// service when no broker is configured.
type MockClient struct {
	mu       sync.Mutex
	Sent     []coremqtt.AssignmentCommand
	FailIDs  map[string]bool // elevator IDs whose publish fails
	Rejected map[string]bool // elevator IDs whose ack is negative
	acks     map[string]bool
	seq      int
}

// NewMockClient creates a new MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		FailIDs:  make(map[string]bool),
		Rejected: make(map[string]bool),
		acks:     make(map[string]bool),
	}
}

// SendAssignment records cmd or fails when configured to.
func (m *MockClient) SendAssignment(cmd coremqtt.AssignmentCommand) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[cmd.ElevatorID] {
		return "", fmt.Errorf("publish failed")
	}
	if cmd.CommandID == "" {
		m.seq++
		cmd.CommandID = fmt.Sprintf("cmd-%d", m.seq)
	}
	m.Sent = append(m.Sent, cmd)
	m.acks[cmd.CommandID] = !m.Rejected[cmd.ElevatorID]
	return cmd.CommandID, nil
}

// WaitForAck answers immediately from the stored result.
func (m *MockClient) WaitForAck(commandID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, exists := m.acks[commandID]
	if !exists {
		return false, coremqtt.ErrUnknownCommand
	}
	delete(m.acks, commandID)
	return ok, nil
}

// Disconnect is a no-op.
func (m *MockClient) Disconnect() {}

// Commands returns a copy of the recorded assignments.
func (m *MockClient) Commands() []coremqtt.AssignmentCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.AssignmentCommand(nil), m.Sent...)
}
