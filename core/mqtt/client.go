// Package mqtt defines the controller transport: hall calls and car states
// flow in, destination model weights are pushed by the training pipeline,
// and assignment commands flow out to the car controllers.
package mqtt

import "time"

// Handlers receive decoded inbound messages. Callbacks run on the transport
// goroutine and must not block; the service only pushes into channels.
type Handlers struct {
	OnHallCall func(HallCall)
	OnCarState func(CarState)
	OnWeights  func(payload []byte)
}

// Client is the controller link used by the scheduling service.
type Client interface {
	// SendAssignment publishes cmd to the car topic and returns the command
	// identifier used to track the acknowledgment.
	SendAssignment(cmd AssignmentCommand) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)

	Disconnect()
}

// Topics configures the MQTT topics. AssignmentFormat takes the elevator ID.
type Topics struct {
	HallCalls        string `json:"hall_calls"`
	CarStates        string `json:"car_states"`
	ModelWeights     string `json:"model_weights"`
	AssignmentFormat string `json:"assignment_format"`
	Acks             string `json:"acks"`
}

// DefaultTopics returns the topic layout used when none is configured.
func DefaultTopics() Topics {
	return Topics{
		HallCalls:        "liftmpc/hall/call",
		CarStates:        "liftmpc/car/+/state",
		ModelWeights:     "liftmpc/model/weights",
		AssignmentFormat: "liftmpc/car/%s/assign",
		Acks:             "liftmpc/car/+/ack",
	}
}

// SetDefaults fills empty topics.
func (t *Topics) SetDefaults() {
	d := DefaultTopics()
	if t.HallCalls == "" {
		t.HallCalls = d.HallCalls
	}
	if t.CarStates == "" {
		t.CarStates = d.CarStates
	}
	if t.ModelWeights == "" {
		t.ModelWeights = d.ModelWeights
	}
	if t.AssignmentFormat == "" {
		t.AssignmentFormat = d.AssignmentFormat
	}
	if t.Acks == "" {
		t.Acks = d.Acks
	}
}
