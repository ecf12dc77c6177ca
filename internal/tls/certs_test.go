// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package tls

import (
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateCA(t *testing.T) {
	ca, err := GenerateCA()
	if err != nil {
		t.Fatalf("GenerateCA() error = %v", err)
	}

	if ca.Certificate == nil {
		t.Fatal("CA certificate is nil")
	}
	if ca.PrivateKey == nil {
		t.Fatal("CA private key is nil")
	}
	if !ca.Certificate.IsCA {
		t.Error("certificate is not a CA")
	}
	if ca.Certificate.Subject.CommonName != "PlayerGate Local CA" {
		t.Errorf("CommonName = %q, want %q", ca.Certificate.Subject.CommonName, "PlayerGate Local CA")
	}
	if ca.Certificate.KeyUsage&x509.KeyUsageCertSign == 0 {
		t.Error("CA certificate missing cert-sign key usage")
	}
}

func TestGenerateServerCert(t *testing.T) {
	ca, err := GenerateCA()
	if err != nil {
		t.Fatalf("GenerateCA() error = %v", err)
	}

	cert, err := GenerateServerCert(ca, "api.example.test", "192.0.2.10")
	if err != nil {
		t.Fatalf("GenerateServerCert() error = %v", err)
	}

	if cert.Certificate.Subject.CommonName != "playergate-api" {
		t.Errorf("CommonName = %q, want %q", cert.Certificate.Subject.CommonName, "playergate-api")
	}

	hasDNS := func(name string) bool {
		for _, d := range cert.Certificate.DNSNames {
			if d == name {
				return true
			}
		}
		return false
	}
	if !hasDNS("localhost") {
		t.Error("server cert missing localhost SAN")
	}
	if !hasDNS("api.example.test") {
		t.Error("server cert missing extra host SAN")
	}

	hasIP := func(ip net.IP) bool {
		for _, i := range cert.Certificate.IPAddresses {
			if i.Equal(ip) {
				return true
			}
		}
		return false
	}
	if !hasIP(net.ParseIP("127.0.0.1")) {
		t.Error("server cert missing 127.0.0.1 SAN")
	}
	if !hasIP(net.ParseIP("192.0.2.10")) {
		t.Error("server cert missing extra IP SAN")
	}

	hasServerAuth := false
	for _, eku := range cert.Certificate.ExtKeyUsage {
		if eku == x509.ExtKeyUsageServerAuth {
			hasServerAuth = true
		}
	}
	if !hasServerAuth {
		t.Error("server cert missing server-auth extended key usage")
	}

	// The server cert must chain to the CA.
	roots := x509.NewCertPool()
	roots.AddCert(ca.Certificate)
	if _, err := cert.Certificate.Verify(x509.VerifyOptions{Roots: roots}); err != nil {
		t.Errorf("server cert does not verify against CA: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	certsDir := filepath.Join(tmpDir, "certs")

	ca, err := GenerateCA()
	if err != nil {
		t.Fatalf("GenerateCA() error = %v", err)
	}
	serverCert, err := GenerateServerCert(ca)
	if err != nil {
		t.Fatalf("GenerateServerCert() error = %v", err)
	}

	if err := SaveCertificates(certsDir, ca, serverCert); err != nil {
		t.Fatalf("SaveCertificates() error = %v", err)
	}

	for _, name := range []string{"root-ca.crt", "root-ca.key", "api.crt", "api.key"} {
		path := filepath.Join(certsDir, name)
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("%s permissions = %o, want 600", name, perm)
		}
	}

	loaded, err := LoadCA(certsDir)
	if err != nil {
		t.Fatalf("LoadCA() error = %v", err)
	}
	if !loaded.Certificate.Equal(ca.Certificate) {
		t.Error("loaded CA certificate does not match saved certificate")
	}

	tlsConfig, err := LoadServerTLS(certsDir)
	if err != nil {
		t.Fatalf("LoadServerTLS() error = %v", err)
	}
	if len(tlsConfig.Certificates) != 1 {
		t.Fatalf("TLS config has %d certificates, want 1", len(tlsConfig.Certificates))
	}
}

func TestLoadCA_MissingDir(t *testing.T) {
	if _, err := LoadCA(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("LoadCA() on missing directory should fail")
	}
}

func TestEnsureServerTLS(t *testing.T) {
	certsDir := filepath.Join(t.TempDir(), "certs")

	// First call generates material.
	cfg, err := EnsureServerTLS(certsDir)
	if err != nil {
		t.Fatalf("EnsureServerTLS() error = %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("TLS config has %d certificates, want 1", len(cfg.Certificates))
	}

	first, err := os.ReadFile(filepath.Join(certsDir, "api.crt"))
	if err != nil {
		t.Fatalf("reading generated cert: %v", err)
	}

	// Second call reuses the existing material.
	if _, err := EnsureServerTLS(certsDir); err != nil {
		t.Fatalf("EnsureServerTLS() second call error = %v", err)
	}
	second, err := os.ReadFile(filepath.Join(certsDir, "api.crt"))
	if err != nil {
		t.Fatalf("re-reading cert: %v", err)
	}
	if string(first) != string(second) {
		t.Error("EnsureServerTLS regenerated existing material")
	}
}
