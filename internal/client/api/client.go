package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/iudanet/gymsync/internal/models"
	"github.com/iudanet/gymsync/pkg/api"
)

// ErrUnavailable сервер недоступен: транспортная ошибка или 5xx
// после исчерпания повторов. Диспетчер outbox трактует эту ошибку
// как отсутствие связи и ничего не помечает отправленным.
var ErrUnavailable = errors.New("server unavailable")

//go:generate go tool moq -out client_mock.go . ClientAPI

// ClientAPI определяет интерфейс удаленного sync-сервера.
type ClientAPI interface {
	// Ping проверяет доступность сервера через health endpoint.
	Ping(ctx context.Context) error

	// Pull запрашивает страницу записей вида kind после курсора cur.
	Pull(ctx context.Context, kind models.EntityKind, cur models.Cursor, take int) (*api.PullResponse, error)

	// Push отправляет батч локальных мутаций вида kind.
	Push(ctx context.Context, kind models.EntityKind, req api.PushRequest) (*api.PushResponse, error)
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	maxRetries uint64
}

// NewClient создает новый API клиент
// token - заранее выданный токен устройства, добавляется в Authorization
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
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
		maxRetries: 3,
	}
}

// Ping проверяет доступность сервера
func (c *Client) Ping(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, nil); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Pull запрашивает страницу записей после курсора
func (c *Client) Pull(ctx context.Context, kind models.EntityKind, cur models.Cursor, take int) (*api.PullResponse, error) {
	params := url.Values{}
	params.Set("ts", cur.Ts.UTC().Format(time.RFC3339Nano))
	params.Set("seq", strconv.FormatInt(cur.Seq, 10))
	params.Set("take", strconv.Itoa(take))

	path := fmt.Sprintf("/api/v1/sync/%s/pull?%s", kind, params.Encode())

	var resp api.PullResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("pull request failed: %w", err)
	}
	return &resp, nil
}

// Push отправляет батч локальных мутаций
func (c *Client) Push(ctx context.Context, kind models.EntityKind, req api.PushRequest) (*api.PushResponse, error) {
	path := fmt.Sprintf("/api/v1/sync/%s/push", kind)

	var resp api.PushResponse
	if err := c.doRequest(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос с повторами на транзиентных ошибках
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doOnce(ctx, method, path, body, result)
		// Транспортные ошибки и 5xx можно повторить
		if errors.Is(err, ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// doOnce выполняет один HTTP запрос
func (c *Client) doOnce(ctx context.Context, method, path string, body, result any) error {
	fullURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: server returned %d", ErrUnavailable, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
