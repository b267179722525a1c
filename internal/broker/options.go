package broker

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/atlas-iot/aurora/internal/config"
	"github.com/atlas-iot/aurora/internal/errors"
)

// Payloads published to the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// DefaultInbox is the size of the inbound command buffer.
const DefaultInbox = 16

// Options configure a Manager.
type Options struct {
	Server   *url.URL
	ClientID string
	Username string
	Password string

	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	TLS            *tls.Config

	// CommandTopic is subscribed on every connection up.
	CommandTopic string

	// StatusTopic carries retained online/offline availability. Empty
	// disables the will and birth messages.
	StatusTopic string

	// Inbox bounds buffered inbound commands; extra messages are dropped.
	Inbox int
}

// OptionsFromConfig builds Options for the broker in cfg, connecting as
// clientID.
func OptionsFromConfig(cfg *config.Config, clientID string) (Options, error) {
	var tlsCfg *tls.Config
	scheme := "mqtt"
	if cfg.MQTT.TLS.Enabled {
		var err error
		tlsCfg, err = TLSConfig(cfg.MQTT.TLS)
		if err != nil {
			return Options{}, err
		}
		scheme = "tls"
	}

	return Options{
		Server: &url.URL{
			Scheme: scheme,
			Host:   net.JoinHostPort(cfg.MQTT.Broker, strconv.Itoa(cfg.MQTT.Port)),
		},
		ClientID:       clientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		KeepAlive:      time.Duration(cfg.MQTT.KeepAlive) * time.Second,
		ConnectTimeout: cfg.StartupTimeout(),
		TLS:            tlsCfg,
		CommandTopic:   cfg.MQTT.Topics.Commands,
		StatusTopic:    cfg.MQTT.Topics.Status,
		Inbox:          DefaultInbox,
	}, nil
}

// TLSConfig loads the CA and client key pair named in c.
func TLSConfig(c config.TLSConfig) (*tls.Config, error) {
	caPEM, err := os.ReadFile(c.CACert)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't read CA certificate %s", c.CACert),
			"Check mqtt.tls.ca_cert")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("No PEM certificates found in %s", c.CACert),
			"mqtt.tls.ca_cert must be a PEM-encoded CA bundle")
	}

	pair, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't load the client certificate and key",
			"Check mqtt.tls.client_cert and mqtt.tls.client_key")
	}

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
