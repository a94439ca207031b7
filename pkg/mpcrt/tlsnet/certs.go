package tlsnet

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/config"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/transport"
)

// KeyPair is a PEM-encoded certificate and private key.
type KeyPair struct {
	CertPEM []byte
	KeyPEM  []byte
}

// TLS parses the pair.
func (k KeyPair) TLS() (tls.Certificate, error) {
	return tls.X509KeyPair(k.CertPEM, k.KeyPEM)
}

// Credentials is a demo CA together with one certificate per player.
type Credentials struct {
	CA      KeyPair
	Players map[transport.PlayerID]KeyPair
}

// Pool returns a certificate pool holding the CA.
func (c *Credentials) Pool() (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(c.CA.CertPEM) {
		return nil, errors.New("tlsnet: invalid CA certificate")
	}
	return pool, nil
}

// Issue creates a CA and a certificate for every peer. Each player
// certificate has the player id as its serial number, serves both client
// and server authentication, and names the peer, localhost and 127.0.0.1.
func Issue(peers []Peer) (*Credentials, error) {
	if len(peers) < 2 {
		return nil, fmt.Errorf("tlsnet: at least two players required (got %d)", len(peers))
	}
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate CA key: %w", err)
	}
	// Serials 1..n belong to the players.
	caSerial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("CA serial: %w", err)
	}
	caSerial.Add(caSerial, big.NewInt(1<<32))
	caTmpl := &x509.Certificate{
		SerialNumber:          caSerial,
		Subject:               pkix.Name{CommonName: "mpcrt-demo-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("create CA certificate: %w", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, fmt.Errorf("parse CA certificate: %w", err)
	}
	caPair, err := encodePair(caDER, caKey)
	if err != nil {
		return nil, err
	}

	creds := &Credentials{CA: caPair, Players: make(map[transport.PlayerID]KeyPair, len(peers))}
	for _, p := range peers {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate key for player %d: %w", p.ID, err)
		}
		names := []string{"localhost"}
		if n := serverName(p); n != "" && n != "localhost" && net.ParseIP(n) == nil {
			names = append(names, n)
		}
		ips := []net.IP{net.ParseIP("127.0.0.1")}
		if ip := net.ParseIP(serverName(p)); ip != nil && !ip.IsLoopback() {
			ips = append(ips, ip)
		}
		tmpl := &x509.Certificate{
			SerialNumber: big.NewInt(int64(p.ID)),
			Subject:      pkix.Name{CommonName: fmt.Sprintf("player-%d", p.ID)},
			NotBefore:    time.Now().Add(-time.Hour),
			NotAfter:     time.Now().Add(365 * 24 * time.Hour),
			KeyUsage:     x509.KeyUsageDigitalSignature,
			ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
			DNSNames:     names,
			IPAddresses:  ips,
		}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &key.PublicKey, caKey)
		if err != nil {
			return nil, fmt.Errorf("create cert for player %d: %w", p.ID, err)
		}
		pair, err := encodePair(der, key)
		if err != nil {
			return nil, err
		}
		creds.Players[p.ID] = pair
	}
	return creds, nil
}

func encodePair(der []byte, key *ecdsa.PrivateKey) (KeyPair, error) {
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return KeyPair{}, fmt.Errorf("marshal key: %w", err)
	}
	return KeyPair{
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	}, nil
}

// CertFile and KeyFile name the files Write produces for a player.
func CertFile(id transport.PlayerID) string { return fmt.Sprintf("player-%d-cert.pem", id) }
func KeyFile(id transport.PlayerID) string  { return fmt.Sprintf("player-%d-key.pem", id) }

// Write stores the credentials under outputDir: rootCA.pem, rootCA-key.pem
// and CertFile/KeyFile per player. outputDir must lie inside the working
// directory.
func (c *Credentials) Write(outputDir string) error {
	absDir, err := config.SecurePath(outputDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	files := map[string][]byte{
		"rootCA.pem":     c.CA.CertPEM,
		"rootCA-key.pem": c.CA.KeyPEM,
	}
	for id, p := range c.Players {
		files[CertFile(id)] = p.CertPEM
		files[KeyFile(id)] = p.KeyPEM
	}
	for name, data := range files {
		if err := writePEM(filepath.Join(absDir, name), data); err != nil {
			return err
		}
	}
	return nil
}

// GenerateCertificates issues credentials for peers and writes them to
// outputDir.
func GenerateCertificates(peers []Peer, outputDir string) error {
	creds, err := Issue(peers)
	if err != nil {
		return err
	}
	return creds.Write(outputDir)
}

func writePEM(path string, data []byte) error {
	cleanPath, err := config.SecurePath(path)
	if err != nil {
		return fmt.Errorf("sanitize path %s: %w", path, err)
	}
	if err := os.WriteFile(cleanPath, data, 0o600); err != nil { // #nosec G306 -- cleanPath validated by SecurePath
		return fmt.Errorf("write %s: %w", cleanPath, err)
	}
	return nil
}

// LoadKeyPair reads a certificate and key written by Write.
func LoadKeyPair(certPath, keyPath string) (tls.Certificate, error) {
	certPath, err := config.SecurePath(certPath)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyPath, err = config.SecurePath(keyPath)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.LoadX509KeyPair(certPath, keyPath)
}

// LoadPool reads a PEM CA certificate into a pool.
func LoadPool(caPath string) (*x509.CertPool, error) {
	caPath, err := config.SecurePath(caPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(caPath) // #nosec G304 -- caPath validated by SecurePath
	if err != nil {
		return nil, fmt.Errorf("read CA %s: %w", caPath, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("tlsnet: no certificates in %s", caPath)
	}
	return pool, nil
}
