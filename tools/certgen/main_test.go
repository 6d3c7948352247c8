package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	if err := generate(dir, "alice", nil); err != nil {
		t.Fatalf("generate error: %v", err)
	}

	caPEM, err := os.ReadFile(filepath.Join(dir, "ca.crt"))
	if err != nil {
		t.Fatal(err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		t.Fatal("ca.crt is not a PEM certificate")
	}

	for _, tc := range []struct {
		name  string
		usage x509.ExtKeyUsage
		dns   string
	}{
		{"server", x509.ExtKeyUsageServerAuth, "localhost"},
		{"client", x509.ExtKeyUsageClientAuth, "alice"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			pair, err := tls.LoadX509KeyPair(filepath.Join(dir, tc.name+".crt"), filepath.Join(dir, tc.name+".key"))
			if err != nil {
				t.Fatalf("load pair: %v", err)
			}
			cert, err := x509.ParseCertificate(pair.Certificate[0])
			if err != nil {
				t.Fatal(err)
			}
			_, err = cert.Verify(x509.VerifyOptions{
				DNSName:   tc.dns,
				Roots:     pool,
				KeyUsages: []x509.ExtKeyUsage{tc.usage},
			})
			if err != nil {
				t.Errorf("verify %s cert: %v", tc.name, err)
			}
		})
	}
}

func TestGenerate_CustomHosts(t *testing.T) {
	dir := t.TempDir()
	if err := generate(dir, "bob", []string{"api.local", "10.0.0.5"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "server.crt"))
	if err != nil {
		t.Fatal(err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		t.Fatal("server.crt is not PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	if cert.Subject.CommonName != "api.local" {
		t.Errorf("CommonName = %q; want api.local", cert.Subject.CommonName)
	}
	if len(cert.IPAddresses) != 1 || cert.IPAddresses[0].String() != "10.0.0.5" {
		t.Errorf("IPAddresses = %v", cert.IPAddresses)
	}
}
