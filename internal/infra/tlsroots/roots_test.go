package tlsroots

import (
	"crypto/tls"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/statichost/internal/testutil"
)

func TestAddCertPEM(t *testing.T) {
	ca := testutil.NewCA(t, "clients")

	pool := NewEmptyPool()
	if err := pool.AddCertPEM(ca.CertPEM); err != nil {
		t.Fatalf("AddCertPEM() error = %v", err)
	}
	if pool.Len() != 1 {
		t.Errorf("Len() = %d, want 1", pool.Len())
	}
}

func TestAddCertPEM_NoCerts(t *testing.T) {
	pool := NewEmptyPool()

	if err := pool.AddCertPEM([]byte{}); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("AddCertPEM(empty) error = %v, want %v", err, ErrNoCertsFound)
	}

	// A key block alone is not a certificate.
	kp := testutil.SelfSigned(t, testutil.CertOptions{})
	if err := pool.AddCertPEM(kp.KeyPEM); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("AddCertPEM(key) error = %v, want %v", err, ErrNoCertsFound)
	}
}

func TestAddCertPEM_InvalidCert(t *testing.T) {
	pool := NewEmptyPool()
	bad := []byte("-----BEGIN CERTIFICATE-----\nbm90IGEgY2VydA==\n-----END CERTIFICATE-----\n")
	if err := pool.AddCertPEM(bad); err == nil {
		t.Error("AddCertPEM() should fail on malformed certificate")
	}
}

func TestAddCertPEM_MultipleCerts(t *testing.T) {
	a := testutil.NewCA(t, "a")
	b := testutil.NewCA(t, "b")

	pool := NewEmptyPool()
	bundle := append(append([]byte{}, a.CertPEM...), b.CertPEM...)
	if err := pool.AddCertPEM(bundle); err != nil {
		t.Fatalf("AddCertPEM() error = %v", err)
	}
	if pool.Len() != 2 {
		t.Errorf("Len() = %d, want 2", pool.Len())
	}
}

func TestLoad_File(t *testing.T) {
	ca := testutil.NewCA(t, "clients")
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, ca.CertPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	pool, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if pool.Len() != 1 {
		t.Errorf("Len() = %d, want 1", pool.Len())
	}
}

func TestLoad_Dir(t *testing.T) {
	dir := t.TempDir()
	for name, cn := range map[string]string{"a.pem": "a", "b.CRT": "b", "c.cer": "c"} {
		ca := testutil.NewCA(t, cn)
		if err := os.WriteFile(filepath.Join(dir, name), ca.CertPEM, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.pem"), []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}

	pool, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if pool.Len() != 3 {
		t.Errorf("Len() = %d, want 3", pool.Len())
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load("/nonexistent/ca.pem"); err == nil {
		t.Error("Load() should fail for a missing path")
	}

	empty := t.TempDir()
	if _, err := Load(empty); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("Load(empty dir) error = %v, want %v", err, ErrNoCertsFound)
	}
}

func TestApplyClientAuth(t *testing.T) {
	ca := testutil.NewCA(t, "clients")
	pool := NewEmptyPool()
	pool.AddCert(ca.Cert)

	tests := []struct {
		name    string
		require bool
		want    tls.ClientAuthType
	}{
		{"optional", false, tls.VerifyClientCertIfGiven},
		{"required", true, tls.RequireAndVerifyClientCert},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &tls.Config{}
			pool.ApplyClientAuth(cfg, tt.require)
			if cfg.ClientAuth != tt.want {
				t.Errorf("ClientAuth = %v, want %v", cfg.ClientAuth, tt.want)
			}
			if cfg.ClientCAs != pool.Pool() {
				t.Error("ClientCAs should be the pool")
			}
		})
	}
}
