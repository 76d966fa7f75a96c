// Package cryptobox implements the symmetric encryption that protects the
// local record cache (spec.md §4.3): PBKDF2 key derivation over a
// caller-supplied password, then AES-GCM authenticated encryption. The
// on-disk container is a canonical (§4.1) object so its bytes are stable and
// testable the same way the rest of the sync core is.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/formulahunter/recordsync-go/internal/codec"
)

const (
	// saltSize is the length, in bytes, of the freshly-generated PBKDF2 salt.
	saltSize = 16

	// nonceSize is the length, in bytes, of the freshly-generated AES-GCM nonce.
	nonceSize = 12

	// keySize is the derived AES-256 key length, in bytes.
	keySize = 32

	// iterations is the PBKDF2 work factor, fixed by spec.md §4.3.
	iterations = 100_000
)

// defaultDevPassword is a fixed development password. Nothing in this
// repository falls back to it: the CLI fails when its configured password
// environment variable is unset.
const defaultDevPassword = "recordsync-insecure-default-password-CHANGE-ME"

// DefaultDevPassword returns the fixed development password. The CLI does
// not use it; it reads the password from the environment variable named by
// the cache.password_env setting.
func DefaultDevPassword() string {
	return defaultDevPassword
}

// Sealed is the on-disk cipher container: salt, nonce ("iv"), and ciphertext,
// all hex-encoded, matching spec.md §4.3's {salt, iv, text} shape.
type Sealed struct {
	Salt string
	IV   string
	Text string
}

// Encrypt derives a key from password via PBKDF2-SHA256 with a fresh random
// salt, then seals plaintext with AES-256-GCM under a fresh random nonce.
func Encrypt(plaintext []byte, password string) (*Sealed, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, newErr("encrypt", "generating salt", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, newErr("encrypt", "generating nonce", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return &Sealed{
		Salt: hex.EncodeToString(salt),
		IV:   hex.EncodeToString(nonce),
		Text: hex.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens a Sealed container produced by Encrypt. Fails with an error
// wrapping ErrCrypto on missing/malformed fields, a wrong password, or an
// authentication tag mismatch.
func Decrypt(sealed *Sealed, password string) ([]byte, error) {
	if sealed == nil {
		return nil, newErr("decrypt", "sealed container is nil", nil)
	}

	salt, err := decodeHexField("salt", sealed.Salt)
	if err != nil {
		return nil, err
	}

	nonce, err := decodeHexField("iv", sealed.IV)
	if err != nil {
		return nil, err
	}

	ciphertext, err := decodeHexField("text", sealed.Text)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}

	if len(nonce) != gcm.NonceSize() {
		return nil, newErr("decrypt", "iv has wrong length", nil)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, newErr("decrypt", "authentication failed (wrong password or corrupt data)", err)
	}

	return plaintext, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, newErr("setup", "constructing AES cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, newErr("setup", "constructing GCM mode", err)
	}

	return gcm, nil
}

func decodeHexField(name, value string) ([]byte, error) {
	if value == "" {
		return nil, newErr("decrypt", "missing field "+name, nil)
	}

	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, newErr("decrypt", "field "+name+" is not valid hex", err)
	}

	return b, nil
}

// MarshalCanonical renders the sealed container through the canonical codec
// (§4.1), which is what gets written to the local cache.
func (s *Sealed) MarshalCanonical() ([]byte, error) {
	obj := codec.NewOrderedMap().
		Set("salt", s.Salt).
		Set("iv", s.IV).
		Set("text", s.Text)

	return codec.Serialize(obj)
}

// UnmarshalSealed parses a canonically-serialized container back into a
// Sealed value.
func UnmarshalSealed(data []byte) (*Sealed, error) {
	val, err := codec.Parse(data)
	if err != nil {
		return nil, newErr("decrypt", "parsing sealed container", err)
	}

	obj, ok := val.(*codec.OrderedMap)
	if !ok {
		return nil, newErr("decrypt", "sealed container is not an object", nil)
	}

	salt, _ := obj.Get("salt")
	iv, _ := obj.Get("iv")
	text, _ := obj.Get("text")

	saltStr, _ := salt.(string)
	ivStr, _ := iv.(string)
	textStr, _ := text.(string)

	return &Sealed{Salt: saltStr, IV: ivStr, Text: textStr}, nil
}
