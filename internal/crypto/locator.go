// Package crypto protects the opaque locator string stored inside a capsule.
// The symmetric key is derived deterministically from the capsule's identity
// tuple, so possession of {owner identity, title, unlock date, creator
// address} is the decryption capability. Transferring the capsule does not
// hand over that capability unless the recipient also learns the original
// derivation inputs.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/vaultik/capsulechain/internal/fault"
)

const (
	kdfIterations = 100_000
	keyLength     = 32

	ivMarkerPrefix = "[iv:"
	ivMarkerSuffix = "]"
)

// locatorPattern matches the content-address shapes a locator can take. Used
// only by the last-resort recovery scan, which is a heuristic and nothing
// more.
var locatorPattern = regexp.MustCompile(`(?:ipfs://|ar://|https://)[A-Za-z0-9./_-]{10,}`)

// DeriveKey stretches the capsule identity tuple into an AES-256 key.
// Deterministic: the same four inputs always produce the same key.
func DeriveKey(identity, title string, unlockDate time.Time, creatorAddress string) []byte {
	secret := strings.Join([]string{
		identity,
		title,
		strconv.FormatInt(unlockDate.Unix(), 10),
		creatorAddress,
	}, "|")
	// the salt is part of the same capability tuple: there is no stored
	// per-record salt, a reader either knows the inputs or cannot derive
	salt := []byte("capsule-locator:" + creatorAddress)
	return pbkdf2.Key([]byte(secret), salt, kdfIterations, keyLength, sha256.New)
}

// Encrypt seals a locator under key with a fresh random nonce. The ciphertext
// goes into the capsule's encrypted-locator field; the returned IV marker is
// appended to the content field so the nonce travels with the record.
func Encrypt(locator string, key []byte) (ciphertext string, ivMarker string, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", fmt.Errorf("failed to init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", fmt.Errorf("failed to init gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(locator), nil)
	ciphertext = base64.StdEncoding.EncodeToString(sealed)
	ivMarker = ivMarkerPrefix + base64.StdEncoding.EncodeToString(nonce) + ivMarkerSuffix
	return ciphertext, ivMarker, nil
}

// Decrypt recovers a locator. A key or nonce mismatch is reported as an error,
// never a panic.
func Decrypt(ciphertext, ivMarker string, key []byte) (string, error) {
	nonce, err := parseIVMarker(ivMarker)
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("ciphertext is not valid base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to init gcm: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("nonce length %d does not match cipher", len(nonce))
	}

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(plain), nil
}

// RecoverLocator tries each candidate key in order, then falls back to a
// best-effort scan of the ciphertext bytes for a recognizable content-address
// pattern. The scan exists for capsules whose ownership changed after the
// locator was sealed under the old identity; it is explicitly a heuristic,
// not a security guarantee. Returns ErrNoLocatorRecovered when nothing works,
// so read paths can degrade instead of failing hard.
func RecoverLocator(ciphertext, ivMarker string, keys ...[]byte) (string, error) {
	for _, key := range keys {
		locator, err := Decrypt(ciphertext, ivMarker, key)
		if err == nil {
			return locator, nil
		}
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		raw = []byte(ciphertext)
	}
	if match := locatorPattern.Find(raw); match != nil {
		return string(match), nil
	}
	return "", fault.ErrNoLocatorRecovered
}

// ExtractIVMarker pulls the IV marker out of a content field, returning the
// marker and the content with the marker stripped.
func ExtractIVMarker(content string) (ivMarker string, rest string, ok bool) {
	start := strings.LastIndex(content, ivMarkerPrefix)
	if start < 0 {
		return "", content, false
	}
	end := strings.Index(content[start:], ivMarkerSuffix)
	if end < 0 {
		return "", content, false
	}
	end += start
	return content[start : end+1], content[:start] + content[end+1:], true
}

func parseIVMarker(ivMarker string) ([]byte, error) {
	s := strings.TrimSuffix(strings.TrimPrefix(ivMarker, ivMarkerPrefix), ivMarkerSuffix)
	nonce, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("iv marker is not valid base64: %w", err)
	}
	return nonce, nil
}
