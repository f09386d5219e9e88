package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	ErrNoPEMBlock         = errors.New("signing: no PEM block found")
	ErrUnsupportedKey     = errors.New("signing: unsupported private key type")
	ErrKeyMismatch        = errors.New("signing: certificate does not match private key")
	ErrMissingCertificate = errors.New("signing: certificate is required")
	ErrMissingPrivateKey  = errors.New("signing: private key is required")
)

// Signer produces a detached signature over the canonical form of a payload.
type Signer interface {
	Sign(payload any) (string, error)
}

// Verifier checks a detached signature. A mismatch is reported as false, not as an error.
type Verifier interface {
	Verify(payload any, signature string) bool
}

// FileSigner signs with a PEM private key and verifies with the matching X.509 certificate.
type FileSigner struct {
	key  crypto.Signer
	cert *x509.Certificate
}

func NewFileSigner(key crypto.Signer, cert *x509.Certificate) (*FileSigner, error) {
	if key == nil {
		return nil, ErrMissingPrivateKey
	}
	if cert == nil {
		return nil, ErrMissingCertificate
	}
	pub, ok := cert.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(key.Public()) {
		return nil, ErrKeyMismatch
	}
	return &FileSigner{key: key, cert: cert}, nil
}

// LoadFileSigner reads the private key (PKCS#1, PKCS#8 or SEC 1) and the certificate from disk.
func LoadFileSigner(keyPath, certPath string) (*FileSigner, error) {
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}

	key, err := ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, err
	}
	cert, err := ParseCertificate(certPEM)
	if err != nil {
		return nil, err
	}
	return NewFileSigner(key, cert)
}

func ParsePrivateKey(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := parsed.(crypto.Signer)
		if !ok {
			return nil, ErrUnsupportedKey
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, block.Type)
	}
}

func ParseCertificate(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrNoPEMBlock
	}
	return x509.ParseCertificate(block.Bytes)
}

func (s *FileSigner) Sign(payload any) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}

	var sig []byte
	switch s.key.(type) {
	case ed25519.PrivateKey:
		sig, err = s.key.Sign(rand.Reader, canonical, crypto.Hash(0))
	default:
		digest := sha256.Sum256(canonical)
		sig, err = s.key.Sign(rand.Reader, digest[:], crypto.SHA256)
	}
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func (s *FileSigner) Verify(payload any, signature string) bool {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	switch pub := s.cert.PublicKey.(type) {
	case *rsa.PublicKey:
		digest := sha256.Sum256(canonical)
		return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
	case *ecdsa.PublicKey:
		digest := sha256.Sum256(canonical)
		return ecdsa.VerifyASN1(pub, digest[:], sig)
	case ed25519.PublicKey:
		return ed25519.Verify(pub, canonical, sig)
	default:
		return false
	}
}

// Certificate exposes the verifying certificate.
func (s *FileSigner) Certificate() *x509.Certificate {
	return s.cert
}
