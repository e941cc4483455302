package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/worksync/internal/client/storage"
	"github.com/iudanet/worksync/internal/models"
	"github.com/iudanet/worksync/internal/validation"
	"github.com/iudanet/worksync/pkg/api"
)

// documentsPath - префикс REST API документов
const documentsPath = "/api/v1/documents/"

// Client представляет HTTP клиент сервера документов. Реализует
// storage.RemoteStore: чтение и запись по HTTP, подписка через WebSocket.
type Client struct {
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *slog.Logger
	baseURL    string
	token      string
}

var _ storage.RemoteStore = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read возвращает текущий документ или nil, если он еще не создан
func (c *Client) Read(ctx context.Context, key string) (*models.WorkspaceDocument, error) {
	doc, err := c.getDocument(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", key, err)
	}
	return doc, nil
}

// Transact выполняет оптимистичную транзакцию: читает документ, применяет fn
// и записывает результат с If-Match. При конфликте версий чтение повторяется,
// не более storage.MaxTransactAttempts раз.
func (c *Client) Transact(ctx context.Context, key string, fn storage.TransactFunc) (*models.WorkspaceDocument, error) {
	for attempt := 1; attempt <= storage.MaxTransactAttempts; attempt++ {
		current, err := c.getDocument(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("transact %s: %w", key, err)
		}

		next, err := fn(current.Clone())
		if err != nil {
			return nil, err
		}

		var expected int64
		if current != nil {
			expected = current.Version
		}

		err = c.putDocument(ctx, key, next, expected)
		if errors.Is(err, storage.ErrVersionConflict) {
			c.logger.Debug("Document changed concurrently, retrying",
				"workspace", key, "attempt", attempt, "expected_version", expected)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("transact %s: %w", key, err)
		}

		return next, nil
	}

	return nil, fmt.Errorf("transact %s: gave up after %d attempts: %w",
		key, storage.MaxTransactAttempts, storage.ErrVersionConflict)
}

// Subscribe открывает WebSocket и передает в handler каждый полученный снимок.
// Сервер отправляет текущий документ сразу после подключения. Обрыв соединения
// логируется; переподключение остается за вызывающей стороной.
func (c *Client) Subscribe(ctx context.Context, key string, handler storage.SnapshotHandler) (func(), error) {
	wsURL, err := c.subscribeURL(key)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			defer func() {
				_ = resp.Body.Close()
			}()
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("subscribe %s: %w", key, statusError(resp.StatusCode, body))
		}
		return nil, fmt.Errorf("subscribe %s: %w: %w", key, storage.ErrUnavailable, err)
	}

	done := make(chan struct{})
	go c.readSnapshots(conn, key, handler, done)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
			<-done
		})
	}

	// Отмена контекста закрывает подписку
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	return stop, nil
}

// readSnapshots читает сообщения подписки до закрытия соединения
func (c *Client) readSnapshots(conn *websocket.Conn, key string, handler storage.SnapshotHandler, done chan<- struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("Subscription closed", "workspace", key)
			} else {
				c.logger.Warn("Subscription interrupted", "workspace", key, "error", err)
			}
			return
		}

		var msg api.StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Ignoring undecodable stream message", "workspace", key, "error", err)
			continue
		}

		switch msg.Type {
		case api.StreamSnapshot:
			doc, dropped, err := validation.DecodeDocument(c.logger, msg.Document)
			if err != nil {
				c.logger.Error("Ignoring malformed snapshot", "workspace", key, "error", err)
				continue
			}
			if dropped > 0 {
				c.logger.Warn("Snapshot contained invalid items", "workspace", key, "dropped", dropped)
			}
			handler(doc)
		case api.StreamError:
			c.logger.Warn("Server reported subscription error", "workspace", key, "error", msg.Error)
		default:
			c.logger.Debug("Ignoring unknown stream message", "workspace", key, "type", msg.Type)
		}
	}
}

// getDocument выполняет GET документа. 404 означает, что документа еще нет.
func (c *Client) getDocument(ctx context.Context, key string) (*models.WorkspaceDocument, error) {
	status, body, err := c.doRequest(ctx, http.MethodGet, documentsPath+url.PathEscape(key), nil, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, statusError(status, body)
	}

	doc, dropped, err := validation.DecodeDocument(c.logger, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrMalformedDocument, err)
	}
	if dropped > 0 {
		c.logger.Warn("Remote document contained invalid items", "workspace", key, "dropped", dropped)
	}

	return doc, nil
}

// putDocument выполняет условную запись документа
func (c *Client) putDocument(ctx context.Context, key string, doc *models.WorkspaceDocument, expected int64) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	header := http.Header{}
	header.Set(api.HeaderIfMatch, strconv.FormatInt(expected, 10))

	status, body, err := c.doRequest(ctx, http.MethodPut, documentsPath+url.PathEscape(key), payload, header)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return statusError(status, body)
	}

	return nil
}

// doRequest выполняет HTTP запрос и возвращает статус и тело ответа.
// Ошибки транспорта оборачиваются в storage.ErrUnavailable.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, header http.Header) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response body: %w", storage.ErrUnavailable, err)
	}

	return resp.StatusCode, respBody, nil
}

// subscribeURL строит ws:// или wss:// адрес подписки
func (c *Client) subscribeURL(key string) (string, error) {
	u, err := url.Parse(c.baseURL + documentsPath + url.PathEscape(key) + "/subscribe")
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}

	return u.String(), nil
}

// statusError переводит HTTP статус в ошибку хранилища
func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
		if errResp.Message != "" {
			msg += ": " + errResp.Message
		}
	}

	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w: server error (%d): %s", storage.ErrPermissionDenied, status, msg)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: server error (%d): %s", storage.ErrMalformedDocument, status, msg)
	case status == http.StatusConflict, status == http.StatusPreconditionFailed:
		return fmt.Errorf("%w: server error (%d): %s", storage.ErrVersionConflict, status, msg)
	case status >= 500:
		return fmt.Errorf("%w: server error (%d): %s", storage.ErrUnavailable, status, msg)
	default:
		return fmt.Errorf("request failed with status %d: %s", status, msg)
	}
}
