package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/kms/apiv1/kmspb"
	gax "github.com/googleapis/gax-go/v2"
)

const testSecret = "local-vault-secret"

type mockKMS struct {
	encryptFunc func(ctx context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error)
	decryptFunc func(ctx context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error)
}

func (m *mockKMS) Encrypt(ctx context.Context, req *kmspb.EncryptRequest, _ ...gax.CallOption) (*kmspb.EncryptResponse, error) {
	return m.encryptFunc(ctx, req)
}

func (m *mockKMS) Decrypt(ctx context.Context, req *kmspb.DecryptRequest, _ ...gax.CallOption) (*kmspb.DecryptResponse, error) {
	return m.decryptFunc(ctx, req)
}

// xorKMS fakes the managed key with a reversible transform so round-trips
// can be asserted without the real service.
func xorKMS() *mockKMS {
	flip := func(in []byte) []byte {
		out := make([]byte, len(in))
		for i, b := range in {
			out[i] = b ^ 0x5a
		}
		return out
	}
	return &mockKMS{
		encryptFunc: func(_ context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) {
			return &kmspb.EncryptResponse{Ciphertext: flip(req.Plaintext)}, nil
		},
		decryptFunc: func(_ context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error) {
			return &kmspb.DecryptResponse{Plaintext: flip(req.Ciphertext)}, nil
		},
	}
}

func TestNew_NoKeyMaterial(t *testing.T) {
	_, err := New("", "", nil)
	if !errors.Is(err, ErrNoKeyMaterial) {
		t.Errorf("New() error = %v, want %v", err, ErrNoKeyMaterial)
	}
}

func TestNew_KMSKeyWithoutClient(t *testing.T) {
	_, err := New("", "projects/p/locations/l/keyRings/r/cryptoKeys/k", nil)
	if err == nil {
		t.Error("New() accepted a kms key name without a client")
	}
}

func TestEncryptDecrypt_LocalRoundtrip(t *testing.T) {
	v, err := New(testSecret, "", nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	plaintext := "access-token-abc123"
	blob, err := v.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	if !strings.HasPrefix(blob, "v1:gcm:") {
		t.Errorf("Encrypt() blob = %q, want v1:gcm: prefix", blob)
	}
	if strings.Contains(blob, plaintext) {
		t.Error("Encrypt() leaked plaintext into the blob")
	}

	segments := strings.Split(strings.TrimPrefix(blob, "v1:gcm:"), ":")
	if len(segments) != 3 {
		t.Fatalf("blob carries %d segment(s), want iv:ciphertext:tag", len(segments))
	}
	iv, err := base64.StdEncoding.DecodeString(segments[0])
	if err != nil || len(iv) != 12 {
		t.Errorf("iv segment = %q, want 12 base64-encoded bytes", segments[0])
	}
	tag, err := base64.StdEncoding.DecodeString(segments[2])
	if err != nil || len(tag) != 16 {
		t.Errorf("tag segment = %q, want 16 base64-encoded bytes", segments[2])
	}

	decrypted, err := v.Decrypt(context.Background(), blob)
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("Decrypt() = %q, want %q", decrypted, plaintext)
	}
}

func TestEncrypt_EmptyString(t *testing.T) {
	v, _ := New(testSecret, "", nil)

	blob, err := v.Encrypt(context.Background(), "")
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	if blob != "" {
		t.Errorf("Encrypt(\"\") = %q, want empty string", blob)
	}
}

func TestDecrypt_EmptyString(t *testing.T) {
	v, _ := New(testSecret, "", nil)

	plaintext, err := v.Decrypt(context.Background(), "")
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}
	if plaintext != "" {
		t.Errorf("Decrypt(\"\") = %q, want empty string", plaintext)
	}
}

func TestEncrypt_DifferentBlobs(t *testing.T) {
	v, _ := New(testSecret, "", nil)

	b1, _ := v.Encrypt(context.Background(), "same token")
	b2, _ := v.Encrypt(context.Background(), "same token")

	if b1 == b2 {
		t.Error("Encrypt() produced identical blobs for same plaintext (nonce should differ)")
	}
}

func TestDecrypt_TamperedBlob(t *testing.T) {
	v, _ := New(testSecret, "", nil)

	blob, _ := v.Encrypt(context.Background(), "secret token")
	segments := strings.Split(strings.TrimPrefix(blob, "v1:gcm:"), ":")

	for i, name := range []string{"ciphertext", "tag"} {
		t.Run(name, func(t *testing.T) {
			raw, _ := base64.StdEncoding.DecodeString(segments[i+1])
			raw[len(raw)-1] ^= 0xff

			flipped := make([]string, len(segments))
			copy(flipped, segments)
			flipped[i+1] = base64.StdEncoding.EncodeToString(raw)
			tampered := "v1:gcm:" + strings.Join(flipped, ":")

			_, err := v.Decrypt(context.Background(), tampered)
			if !errors.Is(err, ErrDecryptFailed) {
				t.Errorf("Decrypt() error = %v, want %v", err, ErrDecryptFailed)
			}
		})
	}
}

func TestDecrypt_MalformedBlobs(t *testing.T) {
	v, _ := New(testSecret, "", nil)

	tests := []struct {
		name string
		blob string
	}{
		{name: "no prefix", blob: "just-a-token"},
		{name: "unknown mode", blob: "v1:xyz:aGVsbG8="},
		{name: "single segment", blob: "v1:gcm:YQ=="},
		{name: "missing tag segment", blob: "v1:gcm:YQ==:YQ=="},
		{name: "invalid base64 segment", blob: "v1:gcm:not-base64!!!:YQ==:YQ=="},
		{name: "wrong nonce length", blob: "v1:gcm:YQ==:YQ==:YQ=="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Decrypt(context.Background(), tt.blob)
			if !errors.Is(err, ErrMalformedBlob) {
				t.Errorf("Decrypt(%q) error = %v, want %v", tt.blob, err, ErrMalformedBlob)
			}
		})
	}
}

func TestDecrypt_WrongSecret(t *testing.T) {
	v1, _ := New(testSecret, "", nil)
	v2, _ := New("a different secret", "", nil)

	blob, _ := v1.Encrypt(context.Background(), "sealed under v1")

	_, err := v2.Decrypt(context.Background(), blob)
	if !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("Decrypt() error = %v, want %v", err, ErrDecryptFailed)
	}
}

func TestEncryptDecrypt_KMSRoundtrip(t *testing.T) {
	v, err := New("", "projects/p/locations/l/keyRings/r/cryptoKeys/k", xorKMS())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	blob, err := v.Encrypt(context.Background(), "managed-token")
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	if !strings.HasPrefix(blob, "v1:kms:") {
		t.Errorf("Encrypt() blob = %q, want v1:kms: prefix", blob)
	}

	decrypted, err := v.Decrypt(context.Background(), blob)
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}
	if decrypted != "managed-token" {
		t.Errorf("Decrypt() = %q, want %q", decrypted, "managed-token")
	}
}

func TestEncrypt_PrefersKMSWhenBothConfigured(t *testing.T) {
	v, err := New(testSecret, "projects/p/locations/l/keyRings/r/cryptoKeys/k", xorKMS())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	blob, err := v.Encrypt(context.Background(), "token")
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	if !strings.HasPrefix(blob, "v1:kms:") {
		t.Errorf("Encrypt() blob = %q, want v1:kms: prefix when kms is configured", blob)
	}
}

func TestDecrypt_ModeNotConfigured(t *testing.T) {
	kmsOnly, _ := New("", "projects/p/locations/l/keyRings/r/cryptoKeys/k", xorKMS())
	localOnly, _ := New(testSecret, "", nil)

	localBlob, _ := localOnly.Encrypt(context.Background(), "local token")
	if _, err := kmsOnly.Decrypt(context.Background(), localBlob); !errors.Is(err, ErrNoKeyForMode) {
		t.Errorf("kms-only Decrypt(gcm blob) error = %v, want %v", err, ErrNoKeyForMode)
	}

	kmsBlob, _ := kmsOnly.Encrypt(context.Background(), "managed token")
	if _, err := localOnly.Decrypt(context.Background(), kmsBlob); !errors.Is(err, ErrNoKeyForMode) {
		t.Errorf("local-only Decrypt(kms blob) error = %v, want %v", err, ErrNoKeyForMode)
	}
}

func TestDecrypt_MixedModes(t *testing.T) {
	v, _ := New(testSecret, "projects/p/locations/l/keyRings/r/cryptoKeys/k", xorKMS())
	localOnly, _ := New(testSecret, "", nil)

	// A blob written before the deployment moved to KMS stays readable.
	oldBlob, _ := localOnly.Encrypt(context.Background(), "pre-rotation token")
	got, err := v.Decrypt(context.Background(), oldBlob)
	if err != nil {
		t.Fatalf("Decrypt() failed on gcm blob: %v", err)
	}
	if got != "pre-rotation token" {
		t.Errorf("Decrypt() = %q, want %q", got, "pre-rotation token")
	}
}
