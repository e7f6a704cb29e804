// Package cryptox wraps the handful of crypto primitives the server needs:
// RSA public key reconstruction and DER (de)serialization, SHA-2 digests,
// and PKCS#1 v1.5 signature verification.
package cryptox

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"fmt"
	"math/big"
	"strconv"

	"github.com/dmaft/dmaft-server/internal/common"
)

// PublicKeyFromComponents rebuilds an RSA public key from its public exponent
// and modulus, both transmitted as decimal strings. Malformed integers or
// parameters that cannot form a usable key yield ErrInvalidArgument.
func PublicKeyFromComponents(exponent, modulus string) (*rsa.PublicKey, error) {
	e, err := strconv.ParseInt(exponent, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("public key exponent is not a valid integer: %w", common.ErrInvalidArgument)
	}

	n, ok := new(big.Int).SetString(modulus, 10)
	if !ok {
		return nil, fmt.Errorf("public key modulus is not a valid integer: %w", common.ErrInvalidArgument)
	}

	// Basic sanity: odd exponent > 1 that fits an int, modulus longer than
	// the exponent. Mirrors what key construction libraries reject outright.
	if e < 3 || e > 1<<31-1 || e%2 == 0 || n.Sign() <= 0 || n.BitLen() < 64 {
		return nil, fmt.Errorf("cannot construct RSA public key from the given parameters: %w", common.ErrInvalidArgument)
	}

	return &rsa.PublicKey{N: n, E: int(e)}, nil
}

// MarshalPublicKey serializes pub as DER-encoded SubjectPublicKeyInfo, the
// canonical form stored with challenges and hashed into user records.
func MarshalPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return der, nil
}

// ParsePublicKey decodes DER-encoded SubjectPublicKeyInfo bytes into an RSA
// public key.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA: %w", common.ErrInvalidArgument)
	}
	return rsaKey, nil
}

// DigestSHA256 returns the SHA-256 digest of data.
func DigestSHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// DigestSHA512 returns the SHA-512 digest of data (64 bytes, the credential
// thumbprint stored for registered users).
func DigestSHA512(data []byte) []byte {
	sum := sha512.Sum512(data)
	return sum[:]
}

// VerifySignature checks a PKCS#1 v1.5 signature over data using SHA-256.
// A nil return means the signature is valid.
func VerifySignature(pub *rsa.PublicKey, data, signature []byte) error {
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, DigestSHA256(data), signature); err != nil {
		return fmt.Errorf("signature verification failed: %w", common.ErrInvalidSignature)
	}
	return nil
}
