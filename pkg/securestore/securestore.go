// Package securestore encrypts small secrets with a passphrase. The output
// is a self-describing envelope carrying the key derivation parameters, so
// that it can be opened again with the passphrase only.
package securestore

import (
	"bytes"
	"crypto/rand"
	"encoding/json"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	kdfName         = "argon2id"
	saltSize        = 16

	// Prefix marks encrypted values.
	Prefix = "WALLETENC1:"
)

// Envelope is the encrypted form of a secret.
type Envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

// EncryptOpts is the struct given to Encrypt method
type EncryptOpts struct {
	PlainText  []byte
	Passphrase string
}

func (o EncryptOpts) validate() error {
	if len(o.PlainText) <= 0 {
		return ErrNullPlainText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Encrypt seals the plaintext with XChaCha20-Poly1305 using a key derived
// from the passphrase with argon2id, and returns the prefixed envelope.
func Encrypt(opts EncryptOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	env := Envelope{
		Version:     envelopeVersion,
		KDF:         kdfName,
		KDFTime:     2,
		KDFMemoryKB: 64 * 1024,
		KDFThreads:  1,
		Salt:        salt,
	}
	key := env.deriveKey(opts.Passphrase)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	env.Nonce = make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(env.Nonce); err != nil {
		return nil, err
	}
	env.Ciphertext = aead.Seal(nil, env.Nonce, opts.PlainText, nil)

	buf, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(Prefix), buf...), nil
}

// DecryptOpts is the struct given to Decrypt method
type DecryptOpts struct {
	CypherText []byte
	Passphrase string
}

func (o DecryptOpts) validate() error {
	if len(o.CypherText) <= 0 {
		return ErrNullCypherText
	}
	if !IsEncrypted(o.CypherText) {
		return ErrInvalidCypherText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Decrypt opens an envelope returned by Encrypt.
func Decrypt(opts DecryptOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(opts.CypherText[len(Prefix):], &env); err != nil {
		return nil, ErrInvalidCypherText
	}
	if env.Version != envelopeVersion || env.KDF != kdfName {
		return nil, ErrInvalidCypherText
	}

	key := env.deriveKey(opts.Passphrase)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrInvalidCypherText
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// IsEncrypted returns whether data is an envelope returned by Encrypt.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(Prefix))
}

func (e Envelope) deriveKey(passphrase string) []byte {
	return argon2.IDKey(
		[]byte(passphrase), e.Salt, e.KDFTime, e.KDFMemoryKB, e.KDFThreads,
		chacha20poly1305.KeySize,
	)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
