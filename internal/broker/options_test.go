package broker

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atlas-iot/aurora/internal/config"
	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		MQTT: config.MQTTConfig{
			Broker:         "test",
			Port:           1883,
			ClientID:       "dev1",
			KeepAlive:      30,
			ConnectTimeout: 10,
			Topics: config.TopicsConfig{
				Commands: "devices/dev1/commands",
				Status:   "devices/dev1/status",
			},
		},
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(baseConfig(), "dev1-host-abc123")
	require.NoError(t, err)

	assert.Equal(t, "mqtt://test:1883", opts.Server.String())
	assert.Equal(t, "dev1-host-abc123", opts.ClientID)
	assert.Equal(t, 30*time.Second, opts.KeepAlive)
	assert.Equal(t, 10*time.Second, opts.ConnectTimeout)
	assert.Equal(t, "devices/dev1/commands", opts.CommandTopic)
	assert.Equal(t, "devices/dev1/status", opts.StatusTopic)
	assert.Nil(t, opts.TLS)
}

func TestOptionsFromConfig_IPv6(t *testing.T) {
	cfg := baseConfig()
	cfg.MQTT.Broker = "::1"
	opts, err := OptionsFromConfig(cfg, "x")
	require.NoError(t, err)
	assert.Equal(t, "[::1]:1883", opts.Server.Host)
}

// writeSelfSigned writes a self-signed certificate and key, returning their
// paths. The certificate doubles as its own CA.
func writeSelfSigned(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "aurora-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))
	return certPath, keyPath
}

func TestTLSConfig(t *testing.T) {
	dir := t.TempDir()
	cert, key := writeSelfSigned(t, dir)

	cfg := baseConfig()
	cfg.MQTT.TLS = config.TLSConfig{Enabled: true, CACert: cert, ClientCert: cert, ClientKey: key}

	opts, err := OptionsFromConfig(cfg, "x")
	require.NoError(t, err)
	assert.Equal(t, "tls", opts.Server.Scheme)
	require.NotNil(t, opts.TLS)
	assert.Len(t, opts.TLS.Certificates, 1)
	assert.NotNil(t, opts.TLS.RootCAs)
}

func TestTLSConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	cert, key := writeSelfSigned(t, dir)
	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a cert"), 0600))

	tests := []struct {
		name    string
		tls     config.TLSConfig
		wantMsg string
	}{
		{"missing CA", config.TLSConfig{CACert: filepath.Join(dir, "nope.pem"), ClientCert: cert, ClientKey: key}, "CA certificate"},
		{"CA not PEM", config.TLSConfig{CACert: garbage, ClientCert: cert, ClientKey: key}, "No PEM certificates"},
		{"bad key pair", config.TLSConfig{CACert: cert, ClientCert: cert, ClientKey: garbage}, "client certificate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TLSConfig(tt.tls)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
