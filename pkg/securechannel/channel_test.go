package securechannel

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/systerel/s2opc-sc/pkg/keymanager"
	"github.com/systerel/s2opc-sc/pkg/pki"
	"github.com/systerel/s2opc-sc/pkg/transport"
)

func generateTestCA(t *testing.T) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test root CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	ca, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return ca, priv
}

// issueTestIdentity returns a leaf certificate/private key pair signed by
// ca, in the *keymanager.Cert/*keymanager.AsymKey form Config expects.
func issueTestIdentity(t *testing.T, ca *x509.Certificate, caKey *rsa.PrivateKey, serial int64, cn string) (*keymanager.Cert, *keymanager.AsymKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca, &priv.PublicKey, caKey)
	require.NoError(t, err)

	cert, err := keymanager.CertFromDER(der)
	require.NoError(t, err)

	keyDER := x509.MarshalPKCS1PrivateKey(priv)
	key, err := keymanager.KeyFromDER(keyDER, nil)
	require.NoError(t, err)

	return cert, key
}

func newTestValidator(t *testing.T, ca *x509.Certificate) pki.Validator {
	t.Helper()
	pool := x509.NewCertPool()
	pool.AddCert(ca)
	cfg := pki.DefaultConfig()
	cfg.TrustedRoots = pool
	v, err := pki.NewValidator(cfg, nil)
	require.NoError(t, err)
	return v
}

// testChannelPair wires two Connections over an in-memory transport.NewPipe
// and blocks until both report OnConnected, returning the client/server
// pair.
func testChannelPair(t *testing.T) (client, server *Connection) {
	t.Helper()

	ca, caKey := generateTestCA(t)
	validator := newTestValidator(t, ca)
	clientCert, clientKey := issueTestIdentity(t, ca, caKey, 2, "client")
	serverCert, serverKey := issueTestIdentity(t, ca, caKey, 3, "server")

	clientTransport, serverTransport, err := transport.NewPipe()
	require.NoError(t, err)

	clientConnected := make(chan struct{})
	serverConnected := make(chan struct{})

	clientCfg := DefaultConfig()
	clientCfg.Transport = clientTransport
	clientCfg.IsClient = true
	clientCfg.LocalCertificate = clientCert
	clientCfg.LocalPrivateKey = clientKey
	clientCfg.PeerCertificate = serverCert
	clientCfg.PKI = validator
	clientCfg.Callbacks.OnConnected = func(*Connection) { close(clientConnected) }

	serverCfg := DefaultConfig()
	serverCfg.Transport = serverTransport
	serverCfg.IsClient = false
	serverCfg.LocalCertificate = serverCert
	serverCfg.LocalPrivateKey = serverKey
	serverCfg.PKI = validator
	serverCfg.Callbacks.OnConnected = func(*Connection) { close(serverConnected) }

	server, err = NewConnection(serverCfg, nil)
	require.NoError(t, err)
	client, err = NewConnection(clientCfg, nil)
	require.NoError(t, err)

	require.NoError(t, server.Open())
	require.NoError(t, client.Open())

	waitClosed(t, clientConnected)
	waitClosed(t, serverConnected)

	require.Equal(t, StateConnected, client.State())
	require.Equal(t, StateConnected, server.State())
	return client, server
}

func waitClosed(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for secure channel to connect")
	}
}

func TestConnection_OpenEstablishesMatchingTokens(t *testing.T) {
	client, server := testChannelPair(t)
	defer client.Close()
	defer server.Close()

	require.Equal(t, server.SecureChannelID(), client.SecureChannelID())
	require.NotZero(t, client.SecureChannelID())
}

func TestConnection_SendAndReceiveRoundTrip(t *testing.T) {
	client, server := testChannelPair(t)
	defer client.Close()
	defer server.Close()

	received := make(chan []byte, 1)
	server.cfg.Callbacks.OnSecureMessageComplete = func(_ *Connection, _ uint32, typeID uint32, body []byte) {
		require.Equal(t, uint32(999), typeID)
		received <- body
	}

	want := []byte("read a node value, please")
	_, err := client.Send(999, want)
	require.NoError(t, err)

	select {
	case got := <-received:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the application message to arrive")
	}
}

func TestConnection_SendLargeMessageIsChunkedAndReassembled(t *testing.T) {
	client, server := testChannelPair(t)
	defer client.Close()
	defer server.Close()

	client.cfg.ChunkSize = 512

	received := make(chan []byte, 1)
	server.cfg.Callbacks.OnSecureMessageComplete = func(_ *Connection, _ uint32, _ uint32, body []byte) {
		received <- body
	}

	want := make([]byte, 4000)
	for i := range want {
		want[i] = byte(i)
	}

	_, err := client.Send(1, want)
	require.NoError(t, err)

	select {
	case got := <-received:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the chunked message to reassemble")
	}
}

func TestConnection_RenewInstallsNewTokenWithoutDroppingTraffic(t *testing.T) {
	client, server := testChannelPair(t)
	defer client.Close()
	defer server.Close()

	originalTokenID := clientCurrentTokenID(client)

	go func() {
		_ = client.Renew()
	}()

	require.Eventually(t, func() bool {
		return clientCurrentTokenID(client) != originalTokenID
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return clientCurrentTokenID(client) == serverCurrentTokenID(server)
	}, 2*time.Second, 10*time.Millisecond)

	received := make(chan []byte, 1)
	server.cfg.Callbacks.OnSecureMessageComplete = func(_ *Connection, _ uint32, _ uint32, body []byte) {
		received <- body
	}
	_, err := client.Send(2, []byte("post-renew traffic"))
	require.NoError(t, err)

	select {
	case got := <-received:
		require.Equal(t, []byte("post-renew traffic"), got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for post-renew traffic")
	}
}

func TestConnection_CloseTearsDownBothSides(t *testing.T) {
	client, server := testChannelPair(t)

	serverDisconnected := make(chan struct{})
	server.cfg.Callbacks.OnDisconnected = func(*Connection, error) { close(serverDisconnected) }

	require.NoError(t, client.Close())
	waitClosed(t, serverDisconnected)

	require.Equal(t, StateDisconnected, client.State())
	require.Equal(t, StateDisconnected, server.State())
}

func TestConnection_SendAfterCloseFails(t *testing.T) {
	client, server := testChannelPair(t)
	defer server.Close()

	require.NoError(t, client.Close())
	_, err := client.Send(1, []byte("too late"))
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestConnection_RejectsUntrustedPeerCertificate(t *testing.T) {
	ca, caKey := generateTestCA(t)
	otherCA, otherCAKey := generateTestCA(t)
	validator := newTestValidator(t, ca) // only trusts ca, not otherCA

	clientCert, clientKey := issueTestIdentity(t, otherCA, otherCAKey, 10, "client")
	serverCert, serverKey := issueTestIdentity(t, ca, caKey, 11, "server")

	clientTransport, serverTransport, err := transport.NewPipe()
	require.NoError(t, err)

	serverFailed := make(chan error, 1)

	clientCfg := DefaultConfig()
	clientCfg.Transport = clientTransport
	clientCfg.IsClient = true
	clientCfg.LocalCertificate = clientCert
	clientCfg.LocalPrivateKey = clientKey
	clientCfg.PeerCertificate = serverCert
	clientCfg.PKI = validator

	serverCfg := DefaultConfig()
	serverCfg.Transport = serverTransport
	serverCfg.IsClient = false
	serverCfg.LocalCertificate = serverCert
	serverCfg.LocalPrivateKey = serverKey
	serverCfg.PKI = validator
	serverCfg.Callbacks.OnConnectionFailed = func(_ *Connection, err error) { serverFailed <- err }

	server, err := NewConnection(serverCfg, nil)
	require.NoError(t, err)
	client, err := NewConnection(clientCfg, nil)
	require.NoError(t, err)
	defer client.Close()
	defer server.Close()

	require.NoError(t, server.Open())
	require.NoError(t, client.Open())

	select {
	case <-serverFailed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the server to reject the untrusted certificate")
	}
	require.Equal(t, StateError, server.State())
}

func clientCurrentTokenID(c *Connection) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.current.token.TokenID
}

func serverCurrentTokenID(c *Connection) uint32 {
	return clientCurrentTokenID(c)
}
