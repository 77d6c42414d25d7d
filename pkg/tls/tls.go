// Package tls builds the mutual-TLS configurations used when the analyzer
// serves reports over HTTPS or fetches sample sources from secured
// endpoints. TLS 1.3 is the floor on both sides and peers always verify
// each other against the configured CA.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Config holds the certificate material for mutual TLS. One bundle serves
// both roles: the analyzer presents cert/key and verifies peers against
// the CA.
type Config struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Validate checks that all certificate files are named and readable when
// TLS is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.CertFile == "" || c.KeyFile == "" || c.CAFile == "" {
		return errors.New("tls enabled but cert, key, and ca files are all required")
	}
	for _, path := range []string{c.CertFile, c.KeyFile, c.CAFile} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("tls file %q: %w", path, err)
		}
	}
	return nil
}

// ServerConfig builds the listening-side configuration. Client certificates
// are required and verified against the CA.
func (c Config) ServerConfig() (*tls.Config, error) {
	pool, err := c.caPool()
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		ClientCAs:  pool,
		ClientAuth: tls.RequireAndVerifyClientCert,
		MinVersion: tls.VersionTLS13,
	}, nil
}

// ClientConfig builds the fetching-side configuration. The analyzer
// presents its certificate and verifies the source endpoint against the CA.
func (c Config) ClientConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load certificate pair: %w", err)
	}

	pool, err := c.caPool()
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func (c Config) caPool() (*x509.CertPool, error) {
	pem, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("no certificates parsed from CA file")
	}
	return pool, nil
}
