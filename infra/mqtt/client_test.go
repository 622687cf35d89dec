package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremon "github.com/kilianp07/liftmpc/core/monitoring"
	coremqtt "github.com/kilianp07/liftmpc/core/mqtt"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pemBlock("CERTIFICATE", der)
	keyPEM := pemBlock("RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(priv))

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	for path, data := range map[string][]byte{certFile: certPEM, keyFile: keyPEM, caFile: certPEM} {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 || tlsCfg.RootCAs == nil {
		t.Fatalf("tls config incomplete")
	}
	if _, err := (Config{UseTLS: true}).LoadTLSConfig(); err == nil {
		t.Fatalf("expected error without files")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func TestSubscribesAllTopicsWithQoS(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: map[string]byte{"assignment": 2, "ack": 1, "hall_call": 1}}
	cli, err := NewPahoClient(cfg, coremqtt.Handlers{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	want := coremqtt.DefaultTopics()
	got := map[string]byte{}
	for _, s := range mc.subscribed {
		got[s.topic] = s.qos
	}
	if len(got) != 4 || got[want.Acks] != 1 || got[want.HallCalls] != 1 || got[want.CarStates] != 0 {
		t.Fatalf("unexpected subscriptions: %v", got)
	}

	cmdID, err := cli.SendAssignment(coremqtt.AssignmentCommand{RequestID: "r1", ElevatorID: "A", Origin: 3})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mc.published) != 1 || mc.published[0].qos != 2 || mc.published[0].topic != "liftmpc/car/A/assign" {
		t.Fatalf("unexpected publish: %+v", mc.published)
	}
	var sent coremqtt.AssignmentCommand
	if err := json.Unmarshal(mc.published[0].payload, &sent); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if sent.CommandID != cmdID || sent.Timestamp == 0 {
		t.Fatalf("command fields not filled: %+v", sent)
	}

	cli.onAck(nil, mockMessage{p: []byte(fmt.Sprintf(`{"command_id":%q,"accepted":true}`, cmdID))})
	ok, err := cli.WaitForAck(cmdID, time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("ack wait failed: %v", err)
	}
	if _, err := cli.WaitForAck(cmdID, time.Millisecond); !errors.Is(err, coremqtt.ErrUnknownCommand) {
		t.Fatalf("expected unknown command after ack, got %v", err)
	}
}

func TestInboundHandlers(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	var calls []coremqtt.HallCall
	var states []coremqtt.CarState
	var weights [][]byte
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, coremqtt.Handlers{
		OnHallCall: func(h coremqtt.HallCall) { calls = append(calls, h) },
		OnCarState: func(c coremqtt.CarState) { states = append(states, c) },
		OnWeights:  func(b []byte) { weights = append(weights, b) },
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	cli.onHallCall(nil, mockMessage{p: []byte(`{"request_id":"r1","floor":4,"timestamp":1700000000000}`)})
	cli.onHallCall(nil, mockMessage{p: []byte(`not json`)})
	cli.onCarState(nil, mockMessage{p: []byte(`{"elevator_id":"A","position":2,"capacity":8}`)})
	cli.onWeights(nil, mockMessage{p: []byte(`{"floors":3}`)})

	if len(calls) != 1 || calls[0].Floor != 4 {
		t.Fatalf("hall calls: %+v", calls)
	}
	if len(states) != 1 || states[0].ElevatorID != "A" {
		t.Fatalf("car states: %+v", states)
	}
	if len(weights) != 1 || string(weights[0]) != `{"floors":3}` {
		t.Fatalf("weights: %q", weights)
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewPahoClient(cfg, coremqtt.Handlers{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !mc.opts.WillEnabled || mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	cli.Disconnect()
	if len(mc.published) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, coremqtt.Handlers{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if _, err := cli.SendAssignment(coremqtt.AssignmentCommand{ElevatorID: "A"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries, got %d publishes", len(mc.published))
	}
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(any, map[string]string) {}
func (r *recordMonitor) Flush(time.Duration)                 {}

func TestSendAssignmentErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail}}
	withMock(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(nil)

	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, coremqtt.Handlers{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if _, err := cli.SendAssignment(coremqtt.AssignmentCommand{RequestID: "r1", ElevatorID: "B"}); err == nil {
		t.Fatalf("expected error")
	}
	if mon.err == nil || mon.tags["elevator_id"] != "B" || mon.tags["module"] != "mqtt" {
		t.Fatalf("error not captured with tags: %+v", mon)
	}
}

func TestWaitForAckTimeout(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, coremqtt.Handlers{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	cmdID, _ := cli.SendAssignment(coremqtt.AssignmentCommand{ElevatorID: "A"})
	ok, err := cli.WaitForAck(cmdID, time.Millisecond)
	if !errors.Is(err, coremqtt.ErrAckTimeout) || ok {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	m.Rejected["B"] = true
	m.FailIDs["C"] = true

	idA, err := m.SendAssignment(coremqtt.AssignmentCommand{ElevatorID: "A"})
	if err != nil {
		t.Fatalf("send A: %v", err)
	}
	idB, _ := m.SendAssignment(coremqtt.AssignmentCommand{ElevatorID: "B"})
	if _, err := m.SendAssignment(coremqtt.AssignmentCommand{ElevatorID: "C"}); err == nil {
		t.Fatalf("expected failure for C")
	}
	if ok, _ := m.WaitForAck(idA, 0); !ok {
		t.Fatalf("A should be accepted")
	}
	if ok, _ := m.WaitForAck(idB, 0); ok {
		t.Fatalf("B should be rejected")
	}
	if len(m.Commands()) != 2 {
		t.Fatalf("expected 2 recorded commands")
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	published []struct {
		topic   string
		qos     byte
		payload []byte
	}
	publishErrs []error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	b, _ := payload.([]byte)
	m.published = append(m.published, struct {
		topic   string
		qos     byte
		payload []byte
	}{topic, qos, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "test" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}

func pemBlock(typ string, der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
}
