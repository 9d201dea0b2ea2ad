package certloader

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

// Material is an in-memory TLS identity.
type Material struct {
	cert tls.Certificate
	leaf *x509.Certificate
}

// TLSCertificate returns the certificate chain and key for tls.Config.
func (m *Material) TLSCertificate() *tls.Certificate {
	return &m.cert
}

// Leaf returns the parsed end-entity certificate.
func (m *Material) Leaf() *x509.Certificate {
	return m.leaf
}

// NotAfter returns the expiry of the leaf certificate.
func (m *Material) NotAfter() time.Time {
	return m.leaf.NotAfter
}

// DaysRemaining returns whole days until expiry, never negative.
func (m *Material) DaysRemaining(now time.Time) int {
	return DaysUntil(m.leaf.NotAfter, now)
}

// DaysUntil returns max(0, floor(days between now and notAfter)).
func DaysUntil(notAfter, now time.Time) int {
	d := notAfter.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Loader loads certificate material. The zero value reads from the real
// filesystem; the hooks exist for tests.
type Loader struct {
	// ReadFile reads a PEM file. Defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
	// Reimport parses the transient PKCS#8 buffer. Defaults to
	// x509.ParsePKCS8PrivateKey.
	Reimport func(der []byte) (any, error)
	// OnScrub, if set, observes the transient buffer after it was zeroed.
	OnScrub func(buf []byte)
}

// Load reads and validates a certificate/key pair with the default Loader.
func Load(certPath, keyPath string) (*Material, error) {
	return Loader{}.Load(certPath, keyPath)
}

// Inspect loads the pair and returns the leaf expiry. The material is
// discarded immediately.
func Inspect(certPath, keyPath string) (time.Time, error) {
	m, err := Load(certPath, keyPath)
	if err != nil {
		return time.Time{}, err
	}
	return m.NotAfter(), nil
}

// Load reads and validates a certificate/key pair.
func (l Loader) Load(certPath, keyPath string) (*Material, error) {
	readFile := l.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	certPEM, err := readFile(certPath)
	if err != nil {
		return nil, readError(certPath, err)
	}
	keyPEM, err := readFile(keyPath)
	if err != nil {
		return nil, readError(keyPath, err)
	}
	defer clear(keyPEM)

	chain, leaf, err := parseChain(certPEM)
	if err != nil {
		return nil, &LoadError{Op: "parse", Path: certPath, Err: err}
	}

	parsed, err := parseKey(keyPEM)
	if err != nil {
		return nil, &LoadError{Op: "parse", Path: keyPath, Err: err}
	}
	if !publicKeysMatch(leaf.PublicKey, parsed) {
		return nil, &LoadError{Op: "parse", Path: keyPath, Err: ErrKeyMismatch}
	}

	key, err := l.reimport(parsed)
	if err != nil {
		return nil, &LoadError{Op: "reimport", Path: keyPath, Err: err}
	}

	return &Material{
		cert: tls.Certificate{
			Certificate: chain,
			PrivateKey:  key,
			Leaf:        leaf,
		},
		leaf: leaf,
	}, nil
}

// reimport round-trips key through a PKCS#8 buffer that is zeroed before
// returning, whether or not parsing succeeds.
func (l Loader) reimport(key crypto.PrivateKey) (crypto.Signer, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal pkcs8: %w", err)
	}
	defer func() {
		clear(der)
		if l.OnScrub != nil {
			l.OnScrub(der)
		}
	}()

	parse := l.Reimport
	if parse == nil {
		parse = x509.ParsePKCS8PrivateKey
	}
	fresh, err := parse(der)
	if err != nil {
		return nil, fmt.Errorf("parse pkcs8: %w", err)
	}
	signer, ok := fresh.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T", fresh)
	}
	return signer, nil
}

func readError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		err = fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return &LoadError{Op: "read", Path: path, Err: err}
}

// parseChain returns the DER chain in file order and the parsed leaf.
func parseChain(data []byte) ([][]byte, *x509.Certificate, error) {
	var chain [][]byte
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			chain = append(chain, block.Bytes)
		}
	}
	if len(chain) == 0 {
		return nil, nil, fmt.Errorf("%w: no CERTIFICATE block", ErrInvalidPEM)
	}

	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidPEM, err)
	}
	return chain, leaf, nil
}

// parseKey decodes the first private key block. The decoded DER is zeroed
// once parsed.
func parseKey(data []byte) (crypto.PrivateKey, error) {
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "PRIVATE KEY" && !strings.HasSuffix(block.Type, " PRIVATE KEY") {
			continue
		}

		key, err := parsePrivateKeyDER(block.Bytes)
		clear(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPEM, err)
		}
		return key, nil
	}
	return nil, fmt.Errorf("%w: no PRIVATE KEY block", ErrInvalidPEM)
}

func parsePrivateKeyDER(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New("unsupported private key encoding")
}

func publicKeysMatch(certPub crypto.PublicKey, key crypto.PrivateKey) bool {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return false
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	return ok && pub.Equal(certPub)
}
