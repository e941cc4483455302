package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/worksync/internal/models"
	"github.com/iudanet/worksync/internal/server/jwt"
	"github.com/iudanet/worksync/internal/server/storage"
	"github.com/iudanet/worksync/internal/validation"
	"github.com/iudanet/worksync/pkg/api"
)

// MaxDocumentSize ограничивает размер тела PUT
const MaxDocumentSize = 4 << 20

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// DocumentHandler обслуживает чтение, условную запись и подписку на документы
// рабочих пространств.
type DocumentHandler struct {
	logger       *slog.Logger
	storage      storage.DocumentStorage
	hub          *Hub
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(logger *slog.Logger, store storage.DocumentStorage, hub *Hub) *DocumentHandler {
	return &DocumentHandler{
		logger:  logger,
		storage: store,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Клиенты - CLI, а не браузеры; доступ проверяется токеном
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingInterval: defaultPingInterval,
		writeTimeout: defaultWriteTimeout,
	}
}

// workspaceKey извлекает и проверяет ключ из пути /api/v1/documents/{key}
func (h *DocumentHandler) workspaceKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.PathValue("key")
	if err := validation.ValidateWorkspaceKey(key); err != nil {
		WriteError(w, http.StatusBadRequest, api.ErrCodeInvalidDocument, err.Error())
		return "", false
	}
	return key, true
}

// Get обрабатывает GET /api/v1/documents/{key}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := h.workspaceKey(w, r)
	if !ok {
		return
	}

	doc, err := h.storage.GetDocument(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			WriteError(w, http.StatusNotFound, api.ErrCodeNotFound, "document does not exist")
			return
		}
		h.logger.Error("Failed to get document", "workspace", key, "error", err)
		WriteError(w, http.StatusInternalServerError, api.ErrCodeInternal, "")
		return
	}

	w.Header().Set(api.HeaderDocumentVersion, strconv.FormatInt(doc.Version, 10))
	writeJSON(w, http.StatusOK, doc)
}

// Put обрабатывает PUT /api/v1/documents/{key}.
// If-Match содержит версию, от которой построен документ (0 - создание).
// Новый документ обязан иметь версию If-Match+1.
func (h *DocumentHandler) Put(w http.ResponseWriter, r *http.Request) {
	key, ok := h.workspaceKey(w, r)
	if !ok {
		return
	}

	expected, err := strconv.ParseInt(r.Header.Get(api.HeaderIfMatch), 10, 64)
	if err != nil || expected < 0 {
		WriteError(w, http.StatusBadRequest, api.ErrCodeInvalidDocument, "If-Match must be a non-negative version")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDocumentSize))
	if err != nil {
		h.logger.Warn("Failed to read document body", "workspace", key, "error", err)
		WriteError(w, http.StatusBadRequest, api.ErrCodeInvalidDocument, "failed to read body")
		return
	}

	doc, dropped, err := validation.DecodeDocument(h.logger, body)
	if err != nil {
		h.logger.Warn("Rejected malformed document", "workspace", key, "error", err)
		WriteError(w, http.StatusBadRequest, api.ErrCodeInvalidDocument, err.Error())
		return
	}
	if dropped > 0 {
		h.logger.Warn("Dropped invalid items from incoming document", "workspace", key, "dropped", dropped)
	}

	err = h.storage.PutDocument(r.Context(), key, doc, expected)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrVersionConflict):
		h.logger.Info("Version conflict", "workspace", key, "expected", expected)
		WriteError(w, http.StatusConflict, api.ErrCodeVersionConflict, err.Error())
		return
	case errors.Is(err, storage.ErrInvalidVersion):
		WriteError(w, http.StatusBadRequest, api.ErrCodeInvalidDocument, "document version must be If-Match+1")
		return
	default:
		h.logger.Error("Failed to put document", "workspace", key, "error", err)
		WriteError(w, http.StatusInternalServerError, api.ErrCodeInternal, "")
		return
	}

	h.logger.Info("Document written",
		"workspace", key,
		"version", doc.Version,
		"writer", doc.LastWriterID)

	h.publish(key, doc)

	w.Header().Set(api.HeaderDocumentVersion, strconv.FormatInt(doc.Version, 10))
	writeJSON(w, http.StatusOK, api.PutDocumentResponse{Version: doc.Version})
}

// Subscribe обрабатывает GET /api/v1/documents/{key}/subscribe (WebSocket).
// Сразу после подключения отправляется текущий документ, затем каждая новая версия.
func (h *DocumentHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	key, ok := h.workspaceKey(w, r)
	if !ok {
		return
	}

	// Регистрируемся до чтения текущего документа, чтобы не потерять запись между ними
	sub := h.hub.Subscribe(key)
	defer h.hub.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("WebSocket upgrade failed", "workspace", key, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	subject := ""
	if claims, ok := jwt.ClaimsFromContext(r.Context()); ok {
		subject = claims.Subject
	}
	h.logger.Info("Subscriber connected", "workspace", key, "subject", subject)

	current, err := h.storage.GetDocument(r.Context(), key)
	switch {
	case err == nil:
		if err := h.write(conn, snapshotMessage(current)); err != nil {
			return
		}
	case errors.Is(err, storage.ErrDocumentNotFound):
	default:
		h.logger.Error("Failed to read document for subscriber", "workspace", key, "error", err)
		_ = h.write(conn, errorMessage("failed to read document"))
		return
	}

	// Читаем входящие кадры, чтобы обрабатывать close и pong
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.logger.Info("Subscriber disconnected", "workspace", key, "subject", subject)
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return
			}
		case msg, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(h.writeTimeout))
				return
			}
			if err := h.write(conn, msg); err != nil {
				h.logger.Warn("Failed to deliver snapshot", "workspace", key, "error", err)
				return
			}
		}
	}
}

func (h *DocumentHandler) write(conn *websocket.Conn, msg []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (h *DocumentHandler) publish(key string, doc *models.WorkspaceDocument) {
	if dropped := h.hub.Publish(key, snapshotMessage(doc)); dropped > 0 {
		h.logger.Warn("Slow subscribers skipped a snapshot", "workspace", key, "subscribers", dropped)
	}
}

func snapshotMessage(doc *models.WorkspaceDocument) []byte {
	raw, _ := json.Marshal(doc)
	msg, _ := json.Marshal(api.StreamMessage{Type: api.StreamSnapshot, Document: raw})
	return msg
}

func errorMessage(text string) []byte {
	msg, _ := json.Marshal(api.StreamMessage{Type: api.StreamError, Error: text})
	return msg
}
