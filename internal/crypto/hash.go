package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrWrongKey indicates that a derived key does not match the stored check value.
var ErrWrongKey = errors.New("wrong passphrase")

// KeyCheck возвращает проверочное значение для ключа шифрования.
// Значение хранится рядом с зашифрованными данными и позволяет сразу
// обнаружить неверный пароль, не пытаясь расшифровать каждую запись.
func KeyCheck(key []byte) (string, error) {
	if len(key) == 0 {
		return "", fmt.Errorf("key cannot be empty")
	}

	// Домен "worksync-cache-check" отделяет проверку от других применений ключа
	hash := sha256.Sum256(append([]byte("worksync-cache-check\x00"), key...))

	return hex.EncodeToString(hash[:]), nil
}

// VerifyKeyCheck проверяет ключ по сохраненному проверочному значению.
func VerifyKeyCheck(key []byte, stored string) error {
	if stored == "" {
		return fmt.Errorf("stored key check cannot be empty")
	}

	computed, err := KeyCheck(key)
	if err != nil {
		return fmt.Errorf("failed to compute key check: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) != 1 {
		return ErrWrongKey
	}

	return nil
}
