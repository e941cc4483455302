package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/worksync/internal/crypto"
)

// EnableEncryption включает шифрование значений bucket cache.
//
// При первом вызове генерирует соль и сохраняет проверочное значение ключа
// в bucket meta. При последующих запусках тот же пароль дает тот же ключ;
// неверный пароль обнаруживается сразу и возвращает crypto.ErrWrongKey.
// Включать шифрование нужно до первого обращения к кешу: значения,
// записанные без шифрования, после включения не читаются.
func (s *Storage) EnableEncryption(ctx context.Context, passphrase, workspace string, params crypto.KDFParams) error {
	salt, err := s.getMeta(keyCacheSalt)
	if err != nil {
		return fmt.Errorf("failed to get cache salt: %w", err)
	}

	firstRun := salt == nil
	if firstRun {
		salt, err = crypto.GenerateSalt()
		if err != nil {
			return err
		}
	}

	key, err := crypto.DeriveCacheKey(passphrase, workspace, salt, params)
	if err != nil {
		return fmt.Errorf("failed to derive cache key: %w", err)
	}

	if firstRun {
		check, err := crypto.KeyCheck(key)
		if err != nil {
			return err
		}

		// Соль и проверочное значение сохраняем в одной транзакции
		err = s.db.Update(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket(bucketMetadata)
			if bucket == nil {
				return fmt.Errorf("metadata bucket not found")
			}
			if err := bucket.Put([]byte(keyCacheSalt), salt); err != nil {
				return err
			}
			return bucket.Put([]byte(keyCacheKeyCheck), []byte(check))
		})
		if err != nil {
			return fmt.Errorf("failed to save cache key parameters: %w", err)
		}
	} else {
		stored, err := s.getMeta(keyCacheKeyCheck)
		if err != nil {
			return fmt.Errorf("failed to get cache key check: %w", err)
		}
		if err := crypto.VerifyKeyCheck(key, string(stored)); err != nil {
			return fmt.Errorf("failed to verify cache passphrase: %w", err)
		}
	}

	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return err
	}
	s.sealer = sealer

	return nil
}

// EncryptionConfigured reports whether a cache passphrase was set up by an earlier run.
func (s *Storage) EncryptionConfigured(ctx context.Context) (bool, error) {
	salt, err := s.getMeta(keyCacheSalt)
	if err != nil {
		return false, fmt.Errorf("failed to get cache salt: %w", err)
	}
	return salt != nil, nil
}
