package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smallbiznis/smartinvoice/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func selfSigned(t *testing.T, key crypto.Signer) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "smartinvoice-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func writePEM(t *testing.T, dir, name, blockType string, der []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), 0o600))
	return path
}

func TestCanonicalizeSortsKeys(t *testing.T) {
	a := map[string]any{"b": 1, "a": map[string]any{"z": "x/y", "c": "<&>"}, "u": "Kwacha ü"}
	b := map[string]any{"u": "Kwacha ü", "a": map[string]any{"c": "<&>", "z": "x/y"}, "b": 1}

	ca, err := Canonicalize(a)
	require.NoError(t, err)
	cb, err := Canonicalize(b)
	require.NoError(t, err)

	assert.Equal(t, string(ca), string(cb))
	assert.Equal(t, `{"a":{"c":"<&>","z":"x/y"},"b":1,"u":"Kwacha ü"}`, string(ca))

	raw, err := Canonicalize([]byte(`{"z": 1.50, "a": [3, 2]}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[3,2],"z":1.50}`, string(raw))
}

func TestFileSigner_RSARoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cert := selfSigned(t, key)

	dir := t.TempDir()
	keyPath := writePEM(t, dir, "key.pem", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))
	certPath := writePEM(t, dir, "cert.pem", "CERTIFICATE", cert.Raw)

	signer, err := LoadFileSigner(keyPath, certPath)
	require.NoError(t, err)

	payload := map[string]any{"tpin": "1234567890", "items": []any{map[string]any{"b": 2, "a": 1}}}
	sig, err := signer.Sign(payload)
	require.NoError(t, err)

	reordered := map[string]any{"items": []any{map[string]any{"a": 1, "b": 2}}, "tpin": "1234567890"}
	assert.True(t, signer.Verify(reordered, sig))

	tampered := map[string]any{"tpin": "0000000000", "items": []any{map[string]any{"b": 2, "a": 1}}}
	assert.False(t, signer.Verify(tampered, sig))
	assert.False(t, signer.Verify(payload, "%%%"))
}

func TestFileSigner_ECDSAPKCS8(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	cert := selfSigned(t, key)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	keyPath := writePEM(t, dir, "key.pem", "PRIVATE KEY", der)
	certPath := writePEM(t, dir, "cert.pem", "CERTIFICATE", cert.Raw)

	signer, err := LoadFileSigner(keyPath, certPath)
	require.NoError(t, err)

	sig, err := signer.Sign(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.True(t, signer.Verify(map[string]any{"a": 1}, sig))
	assert.False(t, signer.Verify(map[string]any{"a": 2}, sig))
}

func TestLoadFileSigner_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFileSigner(filepath.Join(dir, "missing.pem"), filepath.Join(dir, "missing.crt"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not pem"), 0o600))
	_, err = LoadFileSigner(garbage, garbage)
	assert.True(t, errors.Is(err, ErrNoPEMBlock))

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, err = NewFileSigner(key, selfSigned(t, other))
	assert.True(t, errors.Is(err, ErrKeyMismatch))
}

func TestParsePrivateKey_UnsupportedBlock(t *testing.T) {
	data := pem.EncodeToMemory(&pem.Block{Type: "OPENSSH PRIVATE KEY", Bytes: []byte{0x01}})

	_, err := ParsePrivateKey(data)
	assert.True(t, errors.Is(err, ErrUnsupportedKey))
	assert.Contains(t, err.Error(), "OPENSSH PRIVATE KEY")
}

func TestProvideSigner(t *testing.T) {
	log := zaptest.NewLogger(t)

	t.Run("disabled", func(t *testing.T) {
		assert.Nil(t, ProvideSigner(config.Config{}, log))
	})

	t.Run("missing files are not fatal", func(t *testing.T) {
		cfg := config.Config{Signing: config.SigningConfig{
			PrivateKeyPath:  filepath.Join(t.TempDir(), "missing.pem"),
			CertificatePath: filepath.Join(t.TempDir(), "missing.crt"),
		}}
		assert.Nil(t, ProvideSigner(cfg, log))
	})

	t.Run("loads key pair", func(t *testing.T) {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		cert := selfSigned(t, key)
		der, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)

		dir := t.TempDir()
		cfg := config.Config{Signing: config.SigningConfig{
			PrivateKeyPath:  writePEM(t, dir, "key.pem", "PRIVATE KEY", der),
			CertificatePath: writePEM(t, dir, "cert.pem", "CERTIFICATE", cert.Raw),
		}}

		signer := ProvideSigner(cfg, log)
		require.NotNil(t, signer)
		_, err = signer.Sign(map[string]any{"a": 1})
		require.NoError(t, err)
	})
}
