package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// KeyLen - длина выходного ключа в байтах (AES-256)
	KeyLen = 32
	// SaltSize - размер соли в байтах
	SaltSize = 32
)

// KDFParams позволяет ослабить Argon2id в тестах.
type KDFParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultKDFParams returns the production Argon2id parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: Argon2Time, Memory: Argon2Memory, Threads: Argon2Threads}
}

// GenerateSalt генерирует криптографически случайную соль
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	_, err := rand.Read(salt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveCacheKey получает ключ шифрования локального кеша из пароля.
// Идентификатор рабочего пространства входит в материал ключа, поэтому
// один пароль дает разные ключи для разных рабочих пространств.
func DeriveCacheKey(passphrase, workspace string, salt []byte, params KDFParams) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	if workspace == "" {
		return nil, fmt.Errorf("workspace cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}

	// Разделитель исключает совпадение ("ab","c") и ("a","bc")
	input := []byte(passphrase + "\x00" + workspace + "\x00cache")

	return argon2.IDKey(input, salt, params.Time, params.Memory, params.Threads, KeyLen), nil
}
