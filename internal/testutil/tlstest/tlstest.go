package tlstest

import (
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// WriteServerCA writes the self-signed certificate of a TLS httptest server as a
// PEM bundle under dir and returns its path, for use as a trusted CA file.
func WriteServerCA(t testing.TB, srv *httptest.Server, dir string) string {
	t.Helper()

	cert := srv.Certificate()
	if cert == nil {
		t.Fatalf("server has no tls certificate")
	}
	path := filepath.Join(dir, "ca.crt")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write ca cert: %v", err)
	}
	return path
}

// WriteGarbage writes a file that is not a PEM bundle.
func WriteGarbage(t testing.TB, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "garbage.crt")
	if err := os.WriteFile(path, []byte("not a certificate\n"), 0o644); err != nil {
		t.Fatalf("write garbage cert: %v", err)
	}
	return path
}
