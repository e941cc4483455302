package storage

import "errors"

// Common client storage errors
var (
	// ErrPermissionDenied indicates that the remote store rejected access to the document.
	// Это не временная ошибка: повтор без изменения настроек не поможет.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnavailable indicates a transient connectivity failure.
	// Локальный кеш остается источником данных для чтения.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrMalformedDocument indicates that the remote document cannot be interpreted.
	ErrMalformedDocument = errors.New("malformed remote document")

	// ErrVersionConflict indicates that the document changed between read and write.
	// Транспорты обрабатывают ее сами, повторяя чтение внутри Transact.
	ErrVersionConflict = errors.New("document version conflict")

	// ErrNotFound indicates that a cache key does not exist
	ErrNotFound = errors.New("key not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
