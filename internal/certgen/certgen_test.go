package certgen

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func parseCert(t *testing.T, certPEM []byte) *x509.Certificate {
	t.Helper()
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("cert PEM invalid")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse cert: %v", err)
	}
	return cert
}

func TestNewCA(t *testing.T) {
	ca, pair, err := NewCA("Kongtze Dev CA")
	if err != nil {
		t.Fatalf("NewCA error: %v", err)
	}
	if !ca.Cert.IsCA || !ca.Cert.BasicConstraintsValid {
		t.Error("CA certificate should be a valid CA")
	}
	if ca.Cert.KeyUsage&x509.KeyUsageCertSign == 0 {
		t.Errorf("CA KeyUsage = %v; want CertSign", ca.Cert.KeyUsage)
	}
	if got := parseCert(t, pair.CertPEM).Subject.CommonName; got != "Kongtze Dev CA" {
		t.Errorf("CommonName = %q", got)
	}
}

func TestIssue(t *testing.T) {
	ca, _, err := NewCA("Test CA")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		kind    Kind
		cn      string
		hosts   []string
		wantEKU x509.ExtKeyUsage
		wantDNS []string
		wantIPs int
	}{
		{name: "server with hosts", kind: Server, cn: "localhost", hosts: []string{"localhost", "127.0.0.1"}, wantEKU: x509.ExtKeyUsageServerAuth, wantDNS: []string{"localhost"}, wantIPs: 1},
		{name: "client defaults to cn", kind: Client, cn: "alice", wantEKU: x509.ExtKeyUsageClientAuth, wantDNS: []string{"alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := ca.Issue(tt.kind, tt.cn, tt.hosts...)
			if err != nil {
				t.Fatalf("Issue error: %v", err)
			}
			cert := parseCert(t, pair.CertPEM)
			if cert.Subject.CommonName != tt.cn {
				t.Errorf("CommonName = %q; want %q", cert.Subject.CommonName, tt.cn)
			}
			if len(cert.ExtKeyUsage) != 1 || cert.ExtKeyUsage[0] != tt.wantEKU {
				t.Errorf("ExtKeyUsage = %v; want [%v]", cert.ExtKeyUsage, tt.wantEKU)
			}
			if strings.Join(cert.DNSNames, ",") != strings.Join(tt.wantDNS, ",") {
				t.Errorf("DNSNames = %v; want %v", cert.DNSNames, tt.wantDNS)
			}
			if len(cert.IPAddresses) != tt.wantIPs {
				t.Errorf("IPAddresses = %v; want %d", cert.IPAddresses, tt.wantIPs)
			}
			if err := cert.CheckSignatureFrom(ca.Cert); err != nil {
				t.Errorf("signature check failed: %v", err)
			}
			if _, err := tls.X509KeyPair(pair.CertPEM, pair.KeyPEM); err != nil {
				t.Errorf("key pair unusable: %v", err)
			}
		})
	}
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	ca, pair, err := NewCA("Test CA")
	if err != nil {
		t.Fatal(err)
	}
	if err := pair.Write(dir, "ca"); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "ca.key"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key mode = %v; want 0600", perm)
	}

	loaded, err := LoadCACredentials(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key"))
	if err != nil {
		t.Fatalf("LoadCACredentials error: %v", err)
	}
	if !loaded.Cert.Equal(ca.Cert) {
		t.Error("loaded certificate does not match")
	}

	// the loaded key must still sign
	issued, err := loaded.Issue(Client, "bob")
	if err != nil {
		t.Fatalf("Issue with loaded CA: %v", err)
	}
	if err := parseCert(t, issued.CertPEM).CheckSignatureFrom(ca.Cert); err != nil {
		t.Errorf("signature check failed: %v", err)
	}
}

func TestLoadCACredentials_Errors(t *testing.T) {
	dir := t.TempDir()
	_, pair, err := NewCA("Test CA")
	if err != nil {
		t.Fatal(err)
	}
	if err := pair.Write(dir, "ca"); err != nil {
		t.Fatal(err)
	}
	garbage := filepath.Join(dir, "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not pem"), 0o600); err != nil {
		t.Fatal(err)
	}
	certPath, keyPath := filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key")

	tests := []struct {
		name     string
		cert     string
		key      string
		contains string
	}{
		{"missing cert", "/no/such/file.pem", keyPath, "read ca cert"},
		{"missing key", certPath, "/no/such/key.pem", "read ca key"},
		{"bad cert pem", garbage, keyPath, "invalid CA cert PEM"},
		{"bad key pem", certPath, garbage, "invalid CA key PEM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCACredentials(tt.cert, tt.key)
			if err == nil || !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("got %v; want error containing %q", err, tt.contains)
			}
		})
	}
}
