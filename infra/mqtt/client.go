package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/kilianp07/liftmpc/core/monitoring"
	coremqtt "github.com/kilianp07/liftmpc/core/mqtt"
	"github.com/kilianp07/liftmpc/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	Topics     coremqtt.Topics `json:"topics"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	AuthMethod string          `json:"auth_method"`
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
	TLSConfig  *tls.Config     `json:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements the controller link using Eclipse Paho.
type PahoClient struct {
	cli      pahoClient
	topics   coremqtt.Topics
	handlers coremqtt.Handlers
	qos      map[string]byte

	mu         sync.Mutex
	ackChans   map[string]chan bool
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker. Subscriptions are (re)issued on
// every connect so they survive broker restarts.
func NewPahoClient(cfg Config, h coremqtt.Handlers) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Topics.SetDefaults()

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		topics:     cfg.Topics,
		handlers:   h,
		qos:        cfg.QoS,
		ackChans:   make(map[string]chan bool),
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		pc.subscribeAll(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

func (p *PahoClient) subscribeAll(c paho.Client) {
	subs := []struct {
		topic, kind string
		handler     paho.MessageHandler
	}{
		{p.topics.Acks, "ack", p.onAck},
		{p.topics.HallCalls, "hall_call", p.onHallCall},
		{p.topics.CarStates, "car_state", p.onCarState},
		{p.topics.ModelWeights, "weights", p.onWeights},
	}
	for _, s := range subs {
		if token := c.Subscribe(s.topic, p.qosFor(s.kind), s.handler); token.Wait() && token.Error() != nil {
			p.logger.Errorf("subscribe %s: %v", s.topic, token.Error())
		}
	}
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var m coremqtt.Ack
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.ackChans[m.CommandID]
	if ok {
		select {
		case ch <- m.Accepted:
		default:
		}
		p.logger.Debugf("received ack %s accepted=%t", m.CommandID, m.Accepted)
	}
	p.mu.Unlock()
}

func (p *PahoClient) onHallCall(_ paho.Client, msg paho.Message) {
	var hc coremqtt.HallCall
	if err := json.Unmarshal(msg.Payload(), &hc); err != nil {
		p.logger.Errorf("failed to decode hall call on %s: %v", msg.Topic(), err)
		return
	}
	if p.handlers.OnHallCall != nil {
		p.handlers.OnHallCall(hc)
	}
}

func (p *PahoClient) onCarState(_ paho.Client, msg paho.Message) {
	var cs coremqtt.CarState
	if err := json.Unmarshal(msg.Payload(), &cs); err != nil {
		p.logger.Errorf("failed to decode car state on %s: %v", msg.Topic(), err)
		return
	}
	if p.handlers.OnCarState != nil {
		p.handlers.OnCarState(cs)
	}
}

func (p *PahoClient) onWeights(_ paho.Client, msg paho.Message) {
	if p.handlers.OnWeights != nil {
		p.handlers.OnWeights(append([]byte(nil), msg.Payload()...))
	}
}

// SendAssignment publishes cmd on the elevator's assignment topic with
// exponential backoff and returns the command identifier used for
// acknowledgment tracking.
func (p *PahoClient) SendAssignment(cmd coremqtt.AssignmentCommand) (string, error) {
	if cmd.CommandID == "" {
		cmd.CommandID = uuid.NewString()
	}
	if cmd.Timestamp == 0 {
		cmd.Timestamp = time.Now().UnixMilli()
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}

	// Register before publishing so a fast ack is not lost.
	p.mu.Lock()
	p.ackChans[cmd.CommandID] = make(chan bool, 1)
	p.mu.Unlock()

	topic := fmt.Sprintf(p.topics.AssignmentFormat, cmd.ElevatorID)
	qos := p.qosFor("assignment")
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("sent assignment %s (%s -> %s) to %s", cmd.CommandID, cmd.RequestID, cmd.ElevatorID, topic)
			return cmd.CommandID, nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	p.mu.Lock()
	delete(p.ackChans, cmd.CommandID)
	p.mu.Unlock()
	coremon.CaptureException(publishErr, map[string]string{
		"module":      "mqtt",
		"elevator_id": cmd.ElevatorID,
		"request_id":  cmd.RequestID,
	})
	return "", publishErr
}

// WaitForAck blocks until an ACK for the given command ID is received or timeout.
func (p *PahoClient) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.ackChans[commandID]
	p.mu.Unlock()
	if ch == nil {
		return false, coremqtt.ErrUnknownCommand
	}
	defer func() {
		p.mu.Lock()
		delete(p.ackChans, commandID)
		p.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case accepted := <-ch:
		return accepted, nil
	case <-timer.C:
		return false, coremqtt.ErrAckTimeout
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
