// Package broker owns the MQTT session: connect, subscribe, publish and
// automatic reconnection through autopaho.
package broker

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/logger"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/packets"
	"github.com/eclipse/paho.golang/paho"
)

// Message is one inbound command message.
type Message struct {
	Topic   string
	Payload []byte
}

// session is the part of *autopaho.ConnectionManager the Manager drives.
type session interface {
	AwaitConnection(ctx context.Context) error
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
	Subscribe(ctx context.Context, s *paho.Subscribe) (*paho.Suback, error)
	Disconnect(ctx context.Context) error
	Done() <-chan struct{}
}

// dialFunc starts a session. The session outlives the call and stops when ctx
// is cancelled.
type dialFunc func(ctx context.Context, cfg autopaho.ClientConfig) (session, error)

func dialAutopaho(ctx context.Context, cfg autopaho.ClientConfig) (session, error) {
	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return cm, nil
}

// connDialer opens the network connection for one connection attempt.
type connDialer func(ctx context.Context, u *url.URL, tlsCfg *tls.Config) (net.Conn, error)

func dialNetwork(ctx context.Context, u *url.URL, tlsCfg *tls.Config) (net.Conn, error) {
	if u.Scheme == "tls" {
		d := tls.Dialer{Config: tlsCfg}
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return packets.NewThreadSafeConn(conn), nil
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", u.Host)
}

// trackedConn reports its first Close. paho closes the connection before it
// reports the error and before autopaho tries again, so the report always
// belongs to the attempt that opened it.
type trackedConn struct {
	net.Conn
	once    sync.Once
	onClose func()
}

func (c *trackedConn) Close() error {
	c.once.Do(c.onClose)
	return c.Conn.Close()
}

// Manager tracks a single broker session through
// Disconnected → Connecting → Connected and back. Reconnection is left to
// autopaho; the Manager only observes it.
//
// Inbound messages on the command topic are delivered on Messages(). Publish
// is safe to call from any goroutine.
type Manager struct {
	opts     Options
	log      logger.Logger
	dial     dialFunc
	dialConn connDialer
	state    stateBox

	// gen numbers connection attempts; lostGen is the newest attempt whose
	// connection has closed. Both guarded by stateMu.
	stateMu sync.Mutex
	gen     uint64
	lostGen uint64

	inbox chan Message

	mu     sync.Mutex
	sess   session
	ready  chan struct{} // closed once sess is set
	cancel context.CancelFunc
}

// NewManager creates a Manager. Nothing touches the network until Connect.
func NewManager(opts Options, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Noop()
	}
	if opts.Inbox <= 0 {
		opts.Inbox = DefaultInbox
	}
	return &Manager{
		opts:  opts,
		log:   log,
		dial:     dialAutopaho,
		dialConn: dialNetwork,
		inbox:    make(chan Message, opts.Inbox),
		ready:    make(chan struct{}),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	return m.state.load()
}

// Messages delivers inbound command messages. The channel is never closed.
func (m *Manager) Messages() <-chan Message {
	return m.inbox
}

// Connect starts the session in the background and returns without waiting
// for the broker. Use AwaitConnection to wait for the first handshake.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != nil {
		return errors.New(errors.ErrConn, "Broker session already started", "")
	}

	m.state.swap(Connecting)
	m.log.Info("connecting to %s as %s", m.opts.Server.Redacted(), m.opts.ClientID)

	// The session lives until Close, not until any caller's context ends, so
	// that Close can still say goodbye after a shutdown signal.
	ctx, cancel := context.WithCancel(context.Background())
	sess, err := m.dial(ctx, m.clientConfig())
	if err != nil {
		cancel()
		m.state.swap(Disconnected)
		return errors.WrapWithCode(err, errors.ErrConn,
			fmt.Sprintf("Couldn't start a session with %s", m.opts.Server.Redacted()),
			"Check mqtt.broker and mqtt.port")
	}
	m.sess = sess
	m.cancel = cancel
	close(m.ready)
	return nil
}

func (m *Manager) clientConfig() autopaho.ClientConfig {
	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{m.opts.Server},
		TlsCfg:                        m.opts.TLS,
		KeepAlive:                     uint16(m.opts.KeepAlive / time.Second),
		CleanStartOnInitialConnection: true,
		ConnectTimeout:                m.opts.ConnectTimeout,
		AttemptConnection:             m.attempt,
		OnConnectionUp: func(_ *autopaho.ConnectionManager, connack *paho.Connack) {
			m.connectionUp()
		},
		OnConnectError: func(err error) {
			m.connectFailed()
			m.log.Warn("connection attempt failed: %v", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: m.opts.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					m.received(pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
			// These run on their own goroutines, possibly after the next
			// connection is up, so they only log. State follows the
			// connection itself through trackedConn.
			OnClientError: func(err error) {
				m.log.Warn("connection lost: %v", err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				m.log.Warn("broker closed the connection (reason %d)", d.ReasonCode)
			},
		},
	}

	if m.opts.Username != "" {
		cfg.ConnectUsername = m.opts.Username
		cfg.ConnectPassword = []byte(m.opts.Password)
	}
	if m.opts.StatusTopic != "" {
		cfg.WillMessage = &paho.WillMessage{
			Topic:   m.opts.StatusTopic,
			Payload: []byte(StatusOffline),
			QoS:     1,
			Retain:  true,
		}
	}
	return cfg
}

// attempt opens the network connection for one autopaho connection attempt
// and starts a new generation in the Connecting state.
func (m *Manager) attempt(ctx context.Context, cfg autopaho.ClientConfig, u *url.URL) (net.Conn, error) {
	m.stateMu.Lock()
	m.gen++
	gen := m.gen
	m.state.swap(Connecting)
	m.stateMu.Unlock()

	if m.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.ConnectTimeout)
		defer cancel()
	}
	conn, err := m.dialConn(ctx, u, cfg.TlsCfg)
	if err != nil {
		return nil, err
	}
	return &trackedConn{Conn: conn, onClose: func() { m.connectionLost(gen) }}, nil
}

// connectionLost marks attempt gen's connection closed. Reports for an
// attempt that has since been superseded change nothing.
func (m *Manager) connectionLost(gen uint64) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if gen > m.lostGen {
		m.lostGen = gen
	}
	if gen == m.gen {
		m.state.swap(Disconnected)
	}
}

func (m *Manager) connectFailed() {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state.swap(Disconnected)
}

// connectionUp runs on every successful handshake, including reconnects.
func (m *Manager) connectionUp() {
	m.stateMu.Lock()
	if m.gen != 0 && m.lostGen == m.gen {
		m.stateMu.Unlock()
		m.log.Debug("connection closed before it was reported up")
		return
	}
	m.state.swap(Connected)
	m.stateMu.Unlock()
	m.log.Info("connected to %s", m.opts.Server.Redacted())

	// The transport calls back from its own goroutine, possibly before Connect
	// has stored the session.
	go func() {
		<-m.ready
		m.afterConnect()
	}()
}

func (m *Manager) afterConnect() {
	sess := m.session()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if m.opts.CommandTopic != "" {
		suback, err := sess.Subscribe(ctx, &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{Topic: m.opts.CommandTopic, QoS: 1}},
		})
		switch {
		case err != nil:
			m.log.Error("subscribe to %s failed: %v", m.opts.CommandTopic, err)
		case suback != nil && len(suback.Reasons) > 0 && suback.Reasons[0] >= 0x80:
			m.log.Error("subscribe to %s refused (reason %d)", m.opts.CommandTopic, suback.Reasons[0])
		default:
			m.log.Info("subscribed to %s", m.opts.CommandTopic)
		}
	}

	if m.opts.StatusTopic != "" {
		if err := m.publish(ctx, m.opts.StatusTopic, []byte(StatusOnline), true); err != nil {
			m.log.Warn("%s", errors.Summary(err))
		}
	}
}

func (m *Manager) received(topic string, payload []byte) {
	if m.opts.CommandTopic != "" && topic != m.opts.CommandTopic {
		m.log.Debug("ignoring message on %s", topic)
		return
	}
	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	select {
	case m.inbox <- msg:
	default:
		m.log.Warn("command inbox full, dropping message on %s", topic)
	}
}

func (m *Manager) session() session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// AwaitConnection blocks until the first handshake succeeds, timeout passes
// or ctx ends.
func (m *Manager) AwaitConnection(ctx context.Context, timeout time.Duration) error {
	sess := m.session()
	if sess == nil {
		return errors.New(errors.ErrConn, "Broker session not started", "Call Connect first")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := sess.AwaitConnection(ctx); err != nil {
		return errors.WrapWithCode(err, errors.ErrConn,
			fmt.Sprintf("Couldn't connect to %s within %s", m.opts.Server.Redacted(), timeout),
			"Check that the broker is reachable and mqtt.broker/mqtt.port are correct")
	}
	return nil
}

// Publish sends payload to topic at QoS 1. It fails immediately when the
// session is not connected; nothing is queued or retried here.
func (m *Manager) Publish(ctx context.Context, topic string, payload []byte) error {
	return m.publish(ctx, topic, payload, false)
}

func (m *Manager) publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if st := m.State(); st != Connected {
		return errors.New(errors.ErrConn,
			fmt.Sprintf("Not publishing to %s while %s", topic, st),
			"The session reconnects on its own; the next round will retry")
	}
	sess := m.session()
	resp, err := sess.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  retain,
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConn,
			fmt.Sprintf("Publish to %s failed", topic), "")
	}
	if resp != nil && resp.ReasonCode >= 0x80 {
		return errors.New(errors.ErrConn,
			fmt.Sprintf("Broker rejected publish to %s (reason %d)", topic, resp.ReasonCode), "")
	}
	return nil
}

// Close marks the device offline, disconnects and stops reconnection. Safe
// to call more than once.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sess, cancel := m.sess, m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if sess == nil || cancel == nil {
		return nil
	}
	defer cancel()

	if m.opts.StatusTopic != "" && m.State() == Connected {
		if err := m.publish(ctx, m.opts.StatusTopic, []byte(StatusOffline), true); err != nil {
			m.log.Warn("%s", errors.Summary(err))
		}
	}

	m.stateMu.Lock()
	m.state.swap(Disconnected)
	m.stateMu.Unlock()
	err := sess.Disconnect(ctx)
	cancel()

	select {
	case <-sess.Done():
	case <-ctx.Done():
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConn, "Disconnect from broker failed", "")
	}
	m.log.Info("disconnected")
	return nil
}
