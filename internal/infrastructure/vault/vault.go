// Package vault encrypts aggregator credentials at rest. Blobs are
// versioned so ciphertext written under one key mode stays readable
// after the deployment moves to another:
//
//	v1:gcm:<iv>:<ciphertext>:<tag>  sealed locally with AES-256-GCM, segments base64
//	v1:kms:<ciphertext>             sealed by Cloud KMS, base64
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	gax "github.com/googleapis/gax-go/v2"
	"golang.org/x/crypto/hkdf"
)

const (
	prefixGCM = "v1:gcm:"
	prefixKMS = "v1:kms:"
)

var (
	ErrNoKeyMaterial = errors.New("no key material configured")
	ErrNoKeyForMode  = errors.New("no key configured for blob mode")
	ErrMalformedBlob = errors.New("malformed credential blob")
	ErrDecryptFailed = errors.New("credential decryption failed")
)

// KMSClient is the slice of the Cloud KMS API the vault depends on.
type KMSClient interface {
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error)
}

var _ KMSClient = (*kms.KeyManagementClient)(nil)

// Vault seals and opens credential blobs. New ciphertext is written with
// KMS when a key name is configured, otherwise with the local key; Decrypt
// dispatches on the blob prefix so both kinds can coexist in the database.
type Vault struct {
	aead    cipher.AEAD
	kms     KMSClient
	keyName string
	useKMS  bool
}

// New builds a Vault from the configured key material. secret derives the
// local AES-256 key (any length; stretched with HKDF), kmsKeyName is the
// full Cloud KMS key resource name. At least one must be set.
func New(secret, kmsKeyName string, client KMSClient) (*Vault, error) {
	if secret == "" && kmsKeyName == "" {
		return nil, ErrNoKeyMaterial
	}

	v := &Vault{}

	if secret != "" {
		key, err := deriveKey(secret)
		if err != nil {
			return nil, err
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gcm: %w", err)
		}
		v.aead = aead
	}

	if kmsKeyName != "" {
		if client == nil {
			return nil, fmt.Errorf("kms key %q configured without a kms client", kmsKeyName)
		}
		v.kms = client
		v.keyName = kmsKeyName
		v.useKMS = true
	}

	return v, nil
}

// Encrypt seals plaintext into a versioned blob using the active key mode.
func (v *Vault) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if v.useKMS {
		return v.encryptKMS(ctx, plaintext)
	}
	return v.encryptLocal(plaintext)
}

// Decrypt opens a versioned blob. Blobs sealed under a mode the vault has
// no key for return ErrNoKeyForMode; blobs that fail authentication
// return ErrDecryptFailed.
func (v *Vault) Decrypt(ctx context.Context, blob string) (string, error) {
	switch {
	case blob == "":
		return "", nil
	case strings.HasPrefix(blob, prefixGCM):
		if v.aead == nil {
			return "", ErrNoKeyForMode
		}
		return v.decryptLocal(strings.TrimPrefix(blob, prefixGCM))
	case strings.HasPrefix(blob, prefixKMS):
		if v.kms == nil {
			return "", ErrNoKeyForMode
		}
		return v.decryptKMS(ctx, strings.TrimPrefix(blob, prefixKMS))
	default:
		return "", ErrMalformedBlob
	}
}

func (v *Vault) encryptLocal(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	tagAt := len(sealed) - v.aead.Overhead()
	ciphertext, tag := sealed[:tagAt], sealed[tagAt:]

	enc := base64.StdEncoding
	return prefixGCM + enc.EncodeToString(nonce) + ":" + enc.EncodeToString(ciphertext) + ":" + enc.EncodeToString(tag), nil
}

func (v *Vault) decryptLocal(encoded string) (string, error) {
	segments := strings.Split(encoded, ":")
	if len(segments) != 3 {
		return "", ErrMalformedBlob
	}

	enc := base64.StdEncoding
	nonce, err := enc.DecodeString(segments[0])
	if err != nil || len(nonce) != v.aead.NonceSize() {
		return "", ErrMalformedBlob
	}
	ciphertext, err := enc.DecodeString(segments[1])
	if err != nil {
		return "", ErrMalformedBlob
	}
	tag, err := enc.DecodeString(segments[2])
	if err != nil || len(tag) != v.aead.Overhead() {
		return "", ErrMalformedBlob
	}

	plain, err := v.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

func (v *Vault) encryptKMS(ctx context.Context, plaintext string) (string, error) {
	resp, err := v.kms.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:      v.keyName,
		Plaintext: []byte(plaintext),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encrypt with kms: %w", err)
	}
	return prefixKMS + base64.StdEncoding.EncodeToString(resp.Ciphertext), nil
}

func (v *Vault) decryptKMS(ctx context.Context, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformedBlob
	}
	resp, err := v.kms.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:       v.keyName,
		Ciphertext: raw,
	})
	if err != nil {
		return "", fmt.Errorf("failed to decrypt with kms: %w", err)
	}
	return string(resp.Plaintext), nil
}

func deriveKey(secret string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("credential-vault"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}
	return key, nil
}
