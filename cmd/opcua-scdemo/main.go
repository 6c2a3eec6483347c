// opcua-scdemo is a minimal client/server demonstration of the OPC UA
// secure channel layer running over its TCP-UA transport.
//
// Usage:
//
//	opcua-scdemo serve --listen :4840 --cert server.crt --key server.key --trusted-root ca.crt
//	opcua-scdemo dial --addr localhost:4840 --cert client.crt --key client.key --peer-cert server.crt --trusted-root ca.crt
//
// Both subcommands also accept --config, pointing at a YAML file carrying
// the same fields, for scripted demonstrations where flags would be
// unwieldy. serve accepts a single inbound channel and echoes back every
// application message it receives; dial opens a channel, sends one
// message, and waits for the echo before closing cleanly.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pion/logging"
	"github.com/spf13/cobra"

	"github.com/systerel/s2opc-sc/pkg/pki"
	"github.com/systerel/s2opc-sc/pkg/securechannel"
	"github.com/systerel/s2opc-sc/pkg/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "opcua-scdemo",
		Short: "Demonstration client/server for the OPC UA secure channel layer",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newDialCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var flags identityFlags
	var listenAddr string
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept one inbound secure channel and echo every message it carries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ep, err := flags.resolve(configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				ep.Address = listenAddr
			}
			return runServer(ep)
		},
	}
	flags.register(cmd, false)
	cmd.Flags().StringVar(&listenAddr, "listen", ":4840", "address to listen on")
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML endpoint description")
	return cmd
}

func newDialCmd() *cobra.Command {
	var flags identityFlags
	var addr string
	var configPath string
	var message string

	cmd := &cobra.Command{
		Use:   "dial",
		Short: "Open a secure channel to a server and send one message",
		RunE: func(cmd *cobra.Command, args []string) error {
			ep, err := flags.resolve(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				ep.Address = addr
			}
			return runClient(ep, message)
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVar(&addr, "addr", "localhost:4840", "server address to dial")
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML endpoint description")
	cmd.Flags().StringVar(&message, "message", "hello from opcua-scdemo", "application payload to send once connected")
	return cmd
}

func runServer(ep endpointConfig) error {
	log := logging.NewDefaultLoggerFactory().NewLogger("opcua-scdemo")

	identity, err := ep.loadIdentity()
	if err != nil {
		return fmt.Errorf("loading server identity: %w", err)
	}
	validator, err := ep.loadValidator()
	if err != nil {
		return fmt.Errorf("loading trust material: %w", err)
	}

	result := make(chan error, 1)
	listener, err := transport.NewListener(transport.ListenerConfig{
		ListenAddr: ep.Address,
		OnAccept: func(conn *transport.TCPConnection) {
			log.Infof("accepted connection from %s", conn.RemoteAddr())
			result <- serveOne(conn, ep, identity, validator, log)
		},
	})
	if err != nil {
		return err
	}
	defer listener.Close()

	log.Infof("listening on %s", listener.Addr())
	return <-result
}

// serveOne drives a single accepted connection through the server half of
// the handshake, echoing every application message back to the sender
// until the channel is closed.
func serveOne(conn *transport.TCPConnection, ep endpointConfig, identity *endpointIdentity, validator pki.Validator, log logging.LeveledLogger) error {
	disconnected := make(chan error, 1)
	failed := make(chan error, 1)

	cfg := securechannel.DefaultConfig()
	cfg.Transport = conn
	cfg.IsClient = false
	cfg.LocalCertificate = identity.cert
	cfg.LocalPrivateKey = identity.key
	cfg.PKI = validator
	if ep.RequestedLifetimeMS != 0 {
		cfg.RequestedLifetimeMS = ep.RequestedLifetimeMS
	}
	cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	cfg.Callbacks.OnConnected = func(c *securechannel.Connection) {
		log.Infof("secure channel %d opened", c.SecureChannelID())
	}
	cfg.Callbacks.OnConnectionFailed = func(_ *securechannel.Connection, err error) { failed <- err }
	cfg.Callbacks.OnDisconnected = func(_ *securechannel.Connection, err error) { disconnected <- err }
	cfg.Callbacks.OnSecureMessageComplete = func(c *securechannel.Connection, requestID uint32, typeID uint32, body []byte) {
		log.Infof("echoing request %d (type %d): %s", requestID, typeID, string(body))
		if _, err := c.Send(typeID, body); err != nil {
			log.Warnf("echo failed: %v", err)
		}
	}

	sc, err := securechannel.NewConnection(cfg, nil)
	if err != nil {
		return err
	}
	if err := sc.Open(); err != nil {
		return err
	}

	select {
	case err := <-failed:
		return fmt.Errorf("secure channel handshake failed: %w", err)
	case err := <-disconnected:
		return err
	}
}

func runClient(ep endpointConfig, message string) error {
	log := logging.NewDefaultLoggerFactory().NewLogger("opcua-scdemo")

	identity, err := ep.loadIdentity()
	if err != nil {
		return fmt.Errorf("loading client identity: %w", err)
	}
	peerCert, err := ep.loadPeerCertificate()
	if err != nil {
		return fmt.Errorf("loading peer certificate: %w", err)
	}
	validator, err := ep.loadValidator()
	if err != nil {
		return fmt.Errorf("loading trust material: %w", err)
	}

	var conn *transport.TCPConnection
	dial := func() error {
		c, dialErr := transport.Dial(transport.DialerConfig{Addr: ep.Address})
		if dialErr != nil {
			return dialErr
		}
		conn = c
		return nil
	}
	notify := func(dialErr error, next time.Duration) {
		log.Warnf("dial %s failed: %v, retrying in %s", ep.Address, dialErr, next)
	}
	if err := backoff.RetryNotify(dial, backoff.NewExponentialBackOff(), notify); err != nil {
		return fmt.Errorf("dialing %s: %w", ep.Address, err)
	}

	connected := make(chan struct{})
	failed := make(chan error, 1)
	echoed := make(chan struct{})

	cfg := securechannel.DefaultConfig()
	cfg.Transport = conn
	cfg.IsClient = true
	cfg.LocalCertificate = identity.cert
	cfg.LocalPrivateKey = identity.key
	cfg.PeerCertificate = peerCert
	cfg.PKI = validator
	if ep.RequestedLifetimeMS != 0 {
		cfg.RequestedLifetimeMS = ep.RequestedLifetimeMS
	}
	cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	cfg.Callbacks.OnConnected = func(*securechannel.Connection) { close(connected) }
	cfg.Callbacks.OnConnectionFailed = func(_ *securechannel.Connection, err error) { failed <- err }
	cfg.Callbacks.OnSecureMessageComplete = func(_ *securechannel.Connection, _ uint32, typeID uint32, body []byte) {
		log.Infof("reply (type %d): %s", typeID, string(body))
		close(echoed)
	}

	sc, err := securechannel.NewConnection(cfg, nil)
	if err != nil {
		return err
	}
	if err := sc.Open(); err != nil {
		return err
	}

	select {
	case <-connected:
	case err := <-failed:
		return fmt.Errorf("secure channel handshake failed: %w", err)
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timed out waiting for the secure channel to open")
	}

	log.Infof("secure channel %d established", sc.SecureChannelID())
	if _, err := sc.Send(1, []byte(message)); err != nil {
		return fmt.Errorf("sending application message: %w", err)
	}

	select {
	case <-echoed:
	case <-time.After(10 * time.Second):
		log.Warnf("no reply received within the demonstration timeout")
	}

	return sc.Close()
}
