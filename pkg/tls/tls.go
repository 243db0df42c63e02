// Package tls builds mutual TLS configurations for the fdbwatch HTTP and gRPC
// listeners and for the HTTP index client.
//
// Every configuration requires TLS 1.3 and verifies the peer against a
// private CA.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Config holds certificate file paths for one side of an mTLS connection.
type Config struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Validate returns an error if TLS is enabled but a file is unset or
// unreadable. A disabled config is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CertFile == "" || c.KeyFile == "" || c.CAFile == "" {
		return errors.New("tls enabled but cert/key/ca files not specified")
	}
	return statFiles(c.CertFile, c.KeyFile, c.CAFile)
}

// Server returns the server side configuration for c, or nil when disabled.
func (c Config) Server() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	return NewServerTLSConfig(c.CertFile, c.KeyFile, c.CAFile)
}

// Client returns the client side configuration for c, or nil when disabled.
func (c Config) Client() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	return NewClientTLSConfig(c.CertFile, c.KeyFile, c.CAFile)
}

var cipherSuites = []uint16{
	tls.TLS_AES_128_GCM_SHA256,
	tls.TLS_AES_256_GCM_SHA384,
	tls.TLS_CHACHA20_POLY1305_SHA256,
}

// NewServerTLSConfig returns a server configuration presenting certFile/keyFile
// and requiring client certificates signed by caFile.
func NewServerTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, pool, err := loadMaterial(certFile, keyFile, caFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
		CipherSuites: cipherSuites,
	}, nil
}

// NewClientTLSConfig returns a client configuration presenting certFile/keyFile
// and trusting servers signed by caFile.
func NewClientTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, pool, err := loadMaterial(certFile, keyFile, caFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
		CipherSuites: cipherSuites,
	}, nil
}

func loadMaterial(certFile, keyFile, caFile string) (tls.Certificate, *x509.CertPool, error) {
	switch {
	case certFile == "":
		return tls.Certificate{}, nil, errors.New("certificate file path cannot be empty")
	case keyFile == "":
		return tls.Certificate{}, nil, errors.New("key file path cannot be empty")
	case caFile == "":
		return tls.Certificate{}, nil, errors.New("CA certificate file path cannot be empty")
	}
	if err := statFiles(certFile, keyFile, caFile); err != nil {
		return tls.Certificate{}, nil, err
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("load certificate: %w", err)
	}

	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return tls.Certificate{}, nil, errors.New("failed to parse CA certificate")
	}

	return cert, pool, nil
}

func statFiles(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("tls file %q: %w", path, err)
		}
	}
	return nil
}
