package validation

import (
	"fmt"
	"regexp"
)

// WorkspaceKeyPattern определяет допустимый формат ключа рабочего пространства.
// Только латинские буквы, цифры, '_' и '-'. Длина: 1-64 символа.
// Ключ используется в URL, ключах Redis и bbolt, поэтому набор символов ограничен.
var WorkspaceKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

const (
	// MaxWorkspaceKeyLen максимальная длина ключа
	MaxWorkspaceKeyLen = 64
	// MinPassphraseLen минимальная длина пароля для шифрования кеша
	MinPassphraseLen = 12
)

// ValidateWorkspaceKey проверяет ключ удаленного документа.
func ValidateWorkspaceKey(key string) error {
	if key == "" {
		return fmt.Errorf("workspace key cannot be empty")
	}

	if len(key) > MaxWorkspaceKeyLen {
		return fmt.Errorf("workspace key must not exceed %d characters", MaxWorkspaceKeyLen)
	}

	if !WorkspaceKeyPattern.MatchString(key) {
		return fmt.Errorf("workspace key can only contain letters (a-z, A-Z), numbers (0-9), '_' and '-'")
	}

	return nil
}

// ValidatePassphrase проверяет минимальные требования к паролю локального кеша.
func ValidatePassphrase(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase cannot be empty")
	}

	if len(passphrase) < MinPassphraseLen {
		return fmt.Errorf("passphrase must be at least %d characters long", MinPassphraseLen)
	}

	return nil
}
