package api

import "encoding/json"

// Заголовки протокола документов
const (
	// HeaderIfMatch содержит версию, на основе которой клиент построил новый документ
	HeaderIfMatch = "If-Match"
	// HeaderDocumentVersion содержит версию документа в ответе
	HeaderDocumentVersion = "X-Document-Version"
)

// Типы сообщений потока подписки
const (
	StreamSnapshot = "snapshot" // StreamSnapshot полный снимок документа
	StreamError    = "error"    // StreamError ошибка на стороне сервера, соединение будет закрыто
)

// StreamMessage - сообщение WebSocket-подписки на документ.
// Document содержит документ в том же JSON-формате, что и тело GET.
type StreamMessage struct {
	Type     string          `json:"type"`
	Error    string          `json:"error,omitempty"`
	Document json.RawMessage `json:"document,omitempty"`
}

// PutDocumentResponse представляет ответ на успешную запись документа
type PutDocumentResponse struct {
	Version int64 `json:"version"` // новая версия документа
}
