package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/pbkdf2"
)

const (
	sealPrefix     = "enc:v1:"
	saltSize       = 16
	kdfIterations  = 100_000
	sealedKeyBytes = 32
)

var ErrNoExpiry = errors.New("token has no exp claim")

func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

func EncryptAES(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func DecryptAES(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return pt, nil
}

func DeriveKey(password string, salt []byte, iterations, keyLength int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha256.New)
}

// SealString encrypts plaintext with a key derived from passphrase. The result
// is printable: enc:v1:<base64(salt|nonce|ciphertext)>.
func SealString(passphrase, plaintext string) (string, error) {
	if passphrase == "" {
		return "", errors.New("passphrase must not be empty")
	}
	salt, err := GenerateRandomBytes(saltSize)
	if err != nil {
		return "", err
	}
	key := DeriveKey(passphrase, salt, kdfIterations, sealedKeyBytes)
	ct, err := EncryptAES(key, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return sealPrefix + base64.StdEncoding.EncodeToString(append(salt, ct...)), nil
}

func OpenString(passphrase, sealed string) (string, error) {
	if !IsSealed(sealed) {
		return sealed, nil
	}
	if passphrase == "" {
		return "", errors.New("value is encrypted but no passphrase is configured")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	if len(raw) < saltSize {
		return "", fmt.Errorf("sealed value too short")
	}
	key := DeriveKey(passphrase, raw[:saltSize], kdfIterations, sealedKeyBytes)
	pt, err := DecryptAES(key, raw[saltSize:])
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func IsSealed(s string) bool {
	return strings.HasPrefix(s, sealPrefix)
}

// TokenExpiry reads the exp claim of a JWT without checking its signature.
// The server remains the authority on validity.
func TokenExpiry(token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, errors.New("token must not be empty")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

func MaskSensitiveData(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

func RedactSecrets(v interface{}) interface{} {
	suspicious := map[string]struct{}{
		"password": {}, "secret": {}, "token": {}, "access_token": {},
		"refresh_token": {}, "apikey": {}, "api_key": {}, "authorization": {},
		"openaiapikey": {}, "openrouteapikey": {}, "openai_api_key": {}, "openroute_api_key": {},
		"cookie": {}, "jwt": {}, "client_secret": {},
	}
	return redactRecursive(v, suspicious)
}

func redactRecursive(v interface{}, keys map[string]struct{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			out[k] = redactValue(k, iter.Value().Interface(), keys)
		}
		return out

	case reflect.Struct:
		out := make(map[string]interface{}, rv.NumField())
		rt := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			f := rt.Field(i)
			if f.PkgPath != "" {
				continue
			}
			name := f.Name
			if tag := f.Tag.Get("json"); tag != "" && tag != "-" {
				if n := strings.Split(tag, ",")[0]; n != "" {
					name = n
				}
			}
			out[name] = redactValue(name, rv.Field(i).Interface(), keys)
		}
		return out

	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make([]interface{}, n)
		for i := 0; i < n; i++ {
			out[i] = redactRecursive(rv.Index(i).Interface(), keys)
		}
		return out

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return redactRecursive(rv.Elem().Interface(), keys)

	default:
		return v
	}
}

// empty secrets stay empty so "not set" remains visible
func redactValue(name string, v interface{}, keys map[string]struct{}) interface{} {
	if _, found := keys[strings.ToLower(name)]; found {
		if s, ok := v.(string); ok && s == "" {
			return ""
		}
		return "[REDACTED]"
	}
	return redactRecursive(v, keys)
}
