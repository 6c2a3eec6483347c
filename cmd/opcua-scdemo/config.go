package main

import (
	"crypto/x509"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/systerel/s2opc-sc/pkg/crypto"
	"github.com/systerel/s2opc-sc/pkg/keymanager"
	"github.com/systerel/s2opc-sc/pkg/pki"
)

// endpointConfig describes one side of a demonstration secure channel:
// where to connect or listen, and which identity/trust material to use.
// It doubles as the YAML schema accepted via --config, for scripted
// demonstrations where flags are unwieldy.
type endpointConfig struct {
	Address             string `yaml:"address"`
	CertFile            string `yaml:"certFile"`
	KeyFile             string `yaml:"keyFile"`
	PeerCertFile        string `yaml:"peerCertFile"`
	TrustedRootFile     string `yaml:"trustedRootFile"`
	RequestedLifetimeMS uint32 `yaml:"requestedLifetimeMs"`
	InsecureSkipVerify  bool   `yaml:"insecureSkipVerify"`

	// KeyPassphrase unwraps KeyFile when it carries the demonstration's own
	// PBKDF2-wrapped private-key format (see loadIdentity), or an
	// encrypted PEM block's stdlib passphrase.
	KeyPassphrase string `yaml:"keyPassphrase"`
}

// wrappedKeyMagic tags the demonstration's own passphrase-wrapped private
// key file format: magic || salt[16] || iv[16] || AES-256-CBC ciphertext of
// the PKCS1 DER key, the key itself derived from the passphrase via PBKDF2.
// This is a convenience format for the CLI only; it is never produced or
// consumed by the secure channel core.
var wrappedKeyMagic = []byte("OPCUA-SCDEMO-WRAPPED-KEY\x00")

const (
	wrappedKeySaltLen      = 16
	wrappedKeyIVLen        = crypto.AESCBCBlockSize
	wrappedKeyPBKDF2Rounds = 100000
)

// unwrapPassphraseProtectedKey recognizes the demonstration's own wrapped
// private-key file format and, if data carries it, derives the wrapping key
// from passphrase via PBKDF2 and decrypts the enclosed PKCS1 DER. Files not
// carrying wrappedKeyMagic are returned unchanged, for loadIdentity to hand
// to keymanager.KeyFromPEM instead.
func unwrapPassphraseProtectedKey(data []byte, passphrase string) ([]byte, bool, error) {
	if len(data) < len(wrappedKeyMagic) || string(data[:len(wrappedKeyMagic)]) != string(wrappedKeyMagic) {
		return data, false, nil
	}
	rest := data[len(wrappedKeyMagic):]
	if len(rest) < wrappedKeySaltLen+wrappedKeyIVLen {
		return nil, true, errWrappedKeyTruncated
	}
	salt := rest[:wrappedKeySaltLen]
	iv := rest[wrappedKeySaltLen : wrappedKeySaltLen+wrappedKeyIVLen]
	ciphertext := rest[wrappedKeySaltLen+wrappedKeyIVLen:]

	wrapKey := crypto.PBKDF2DeriveLegacy([]byte(passphrase), salt, wrappedKeyPBKDF2Rounds, crypto.AESCBCKeySize)
	der, err := crypto.AESCBCDecrypt(wrapKey, iv, ciphertext)
	if err != nil {
		return nil, true, err
	}
	return der, true, nil
}

// identityFlags binds endpointConfig's fields to a cobra command's flags.
type identityFlags struct {
	cfg endpointConfig
}

// register adds the identity/trust flags to cmd. peerCert is only relevant
// to the dialing side, which must know who it expects to reach.
func (f *identityFlags) register(cmd *cobra.Command, peerCert bool) {
	cmd.Flags().StringVar(&f.cfg.CertFile, "cert", "", "PEM certificate identifying this endpoint")
	cmd.Flags().StringVar(&f.cfg.KeyFile, "key", "", "PEM private key for --cert")
	cmd.Flags().StringVar(&f.cfg.TrustedRootFile, "trusted-root", "", "PEM certificate of the trusted root CA")
	cmd.Flags().Uint32Var(&f.cfg.RequestedLifetimeMS, "lifetime-ms", 3600000, "requested security token lifetime in milliseconds")
	cmd.Flags().BoolVar(&f.cfg.InsecureSkipVerify, "insecure-skip-verify", false, "accept any peer certificate (demonstration only, never for production use)")
	cmd.Flags().StringVar(&f.cfg.KeyPassphrase, "key-passphrase", "", "passphrase unwrapping --key, if it is passphrase-protected")
	if peerCert {
		cmd.Flags().StringVar(&f.cfg.PeerCertFile, "peer-cert", "", "PEM certificate of the server to connect to")
	}
}

// resolve merges configPath's YAML (if given) with whatever identity flags
// were explicitly set on the command line; a non-empty flag always wins
// over the file, so --config can supply the common case and a flag can
// still override one field for a one-off run. --insecure-skip-verify only
// overrides when set, and the requested lifetime always comes from the
// file when --config is given, since its flag always has a value.
func (f *identityFlags) resolve(configPath string) (endpointConfig, error) {
	if configPath == "" {
		return f.cfg, nil
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return endpointConfig{}, err
	}
	var ep endpointConfig
	if err := yaml.Unmarshal(raw, &ep); err != nil {
		return endpointConfig{}, err
	}

	if f.cfg.CertFile != "" {
		ep.CertFile = f.cfg.CertFile
	}
	if f.cfg.KeyFile != "" {
		ep.KeyFile = f.cfg.KeyFile
	}
	if f.cfg.PeerCertFile != "" {
		ep.PeerCertFile = f.cfg.PeerCertFile
	}
	if f.cfg.TrustedRootFile != "" {
		ep.TrustedRootFile = f.cfg.TrustedRootFile
	}
	if f.cfg.Address != "" {
		ep.Address = f.cfg.Address
	}
	if f.cfg.KeyPassphrase != "" {
		ep.KeyPassphrase = f.cfg.KeyPassphrase
	}
	if f.cfg.InsecureSkipVerify {
		ep.InsecureSkipVerify = true
	}
	return ep, nil
}

type endpointIdentity struct {
	cert *keymanager.Cert
	key  *keymanager.AsymKey
}

// loadIdentity reads the endpoint's own certificate and private key from
// the configured PEM files.
func (ep endpointConfig) loadIdentity() (*endpointIdentity, error) {
	certPEM, err := os.ReadFile(ep.CertFile)
	if err != nil {
		return nil, err
	}
	cert, err := keymanager.CertFromPEM(certPEM)
	if err != nil {
		return nil, err
	}

	keyFile, err := os.ReadFile(ep.KeyFile)
	if err != nil {
		return nil, err
	}

	der, wrapped, err := unwrapPassphraseProtectedKey(keyFile, ep.KeyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("unwrapping %s: %w", ep.KeyFile, err)
	}

	var key *keymanager.AsymKey
	if wrapped {
		key, err = keymanager.KeyFromDER(der, nil)
	} else {
		key, err = keymanager.KeyFromPEM(der, []byte(ep.KeyPassphrase))
	}
	if err != nil {
		return nil, err
	}

	return &endpointIdentity{cert: cert, key: key}, nil
}

// loadPeerCertificate reads the certificate of the endpoint this side
// expects to talk to, required for a dialing client to address its
// OpenSecureChannel request.
func (ep endpointConfig) loadPeerCertificate() (*keymanager.Cert, error) {
	pemBytes, err := os.ReadFile(ep.PeerCertFile)
	if err != nil {
		return nil, err
	}
	return keymanager.CertFromPEM(pemBytes)
}

// loadValidator builds the PKI validator this endpoint checks its peer's
// certificate against: a single trusted root, unless the demonstration
// explicitly opted out via --insecure-skip-verify.
func (ep endpointConfig) loadValidator() (pki.Validator, error) {
	if ep.InsecureSkipVerify {
		return pki.NewSkipValidator(), nil
	}

	pemBytes, err := os.ReadFile(ep.TrustedRootFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, errInvalidTrustedRoot
	}

	cfg := pki.DefaultConfig()
	cfg.TrustedRoots = pool
	return pki.NewValidator(cfg, nil)
}
