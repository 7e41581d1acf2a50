package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Astemirdum/library-catalog/library/config"
	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/Astemirdum/library-catalog/pkg/circuit_breaker"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx answer of the catalog server.
// It unwraps to the matching errs sentinel so callers can use errors.Is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return errs.ErrNotFound
	case http.StatusConflict:
		switch {
		case strings.HasSuffix(e.Message, errs.ErrDuplicateName.Error()):
			return errs.ErrDuplicateName
		case strings.HasSuffix(e.Message, errs.ErrConflict.Error()):
			return errs.ErrConflict
		}
		return errs.ErrInvalidTransition
	case http.StatusBadRequest:
		return errs.ErrValidation
	case http.StatusUnauthorized:
		if strings.HasSuffix(e.Message, errs.ErrWrongCode.Error()) {
			return errs.ErrWrongCode
		}
		return errs.ErrUnauthorized
	case http.StatusForbidden:
		return errs.ErrWrongCurrentPassword
	}
	if e.StatusCode >= http.StatusInternalServerError {
		return errs.ErrPersistence
	}
	return nil
}

type Client struct {
	log     *zap.Logger
	client  *http.Client
	baseURL string
	cb      circuit_breaker.CircuitBreaker

	mu    sync.RWMutex
	token string
}

func New(cfg *config.Client, log *zap.Logger) *Client {
	return &Client{
		log:     log.Named("client"),
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cb:      circuit_breaker.New(cfg.Breaker),
		token:   cfg.Token,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Snapshot(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	err := c.do(ctx, http.MethodGet, "/snapshot", nil, &snap)
	return snap, err
}

func (c *Client) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	var books []model.Book
	err := c.do(ctx, http.MethodGet, "/books"+filterQuery(filter), nil, &books)
	return books, err
}

func (c *Client) GetBook(ctx context.Context, id string) (model.Book, error) {
	var book model.Book
	err := c.do(ctx, http.MethodGet, "/books/"+url.PathEscape(id), nil, &book)
	return book, err
}

func (c *Client) Catalog(ctx context.Context, filter model.BookFilter) ([]model.CategoryBooks, error) {
	var groups []model.CategoryBooks
	err := c.do(ctx, http.MethodGet, "/catalog"+filterQuery(filter), nil, &groups)
	return groups, err
}

func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := c.do(ctx, http.MethodGet, "/categories", nil, &categories)
	return categories, err
}

func (c *Client) Dashboard(ctx context.Context) (model.Dashboard, error) {
	var dash model.Dashboard
	err := c.do(ctx, http.MethodGet, "/dashboard", nil, &dash)
	return dash, err
}

func (c *Client) AddBook(ctx context.Context, req model.AddBookRequest) (model.Book, error) {
	var book model.Book
	err := c.do(ctx, http.MethodPost, "/books", req, &book)
	return book, err
}

func (c *Client) AddCategory(ctx context.Context, req model.AddCategoryRequest) (model.Category, error) {
	var category model.Category
	err := c.do(ctx, http.MethodPost, "/categories", req, &category)
	return category, err
}

func (c *Client) RequestBorrow(ctx context.Context, id string, req model.RequestBorrowRequest) (model.Book, error) {
	var book model.Book
	err := c.do(ctx, http.MethodPost, bookPath(id, "request"), req, &book)
	return book, err
}

func (c *Client) ApproveBorrow(ctx context.Context, id string, req model.ApproveBorrowRequest) (model.Book, error) {
	var book model.Book
	err := c.do(ctx, http.MethodPost, bookPath(id, "approve"), req, &book)
	return book, err
}

func (c *Client) RejectBorrow(ctx context.Context, id string) (model.Book, error) {
	var book model.Book
	err := c.do(ctx, http.MethodPost, bookPath(id, "reject"), nil, &book)
	return book, err
}

func (c *Client) ReturnBook(ctx context.Context, id string) (model.Book, error) {
	var book model.Book
	err := c.do(ctx, http.MethodPost, bookPath(id, "return"), nil, &book)
	return book, err
}

func (c *Client) DeleteBook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/books/"+url.PathEscape(id), nil, nil)
}

// Login exchanges the admin code for a session token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, code string) (string, error) {
	var resp model.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", model.LoginRequest{Code: code}, &resp); err != nil {
		return "", err
	}
	c.SetToken(resp.AccessToken)
	return resp.AccessToken, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) ChangePassword(ctx context.Context, currentCode, newCode string) error {
	return c.do(ctx, http.MethodPut, "/auth/password", model.ChangePasswordRequest{
		CurrentCode: currentCode,
		NewCode:     newCode,
	}, nil)
}

func (c *Client) BreakerState() circuit_breaker.State {
	return c.cb.State()
}

// do sends one JSON request. Transport failures and 5xx answers count against
// the circuit breaker, client errors do not.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b := bytes.NewBuffer(nil)
		if err := json.NewEncoder(b).Encode(in); err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = b
	}

	var apiErr *APIError
	err := c.cb.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
		if err != nil {
			return err
		}
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
		if token := c.Token(); token != "" {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			e := decodeError(resp)
			if resp.StatusCode >= http.StatusInternalServerError {
				return e
			}
			apiErr = e
			return nil
		}
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decode response")
		}
		return nil
	})
	if err != nil {
		c.log.Debug("request failed",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if apiErr != nil {
		return apiErr
	}
	return nil
}

func decodeError(resp *http.Response) *APIError {
	e := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		e.Message = http.StatusText(resp.StatusCode)
		return e
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		e.Message = strings.TrimSpace(string(data))
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return e
	}
	e.Message = body.Message
	return e
}

func bookPath(id, action string) string {
	return "/books/" + url.PathEscape(id) + "/" + action
}

func filterQuery(filter model.BookFilter) string {
	q := url.Values{}
	if filter.Query != "" {
		q.Set("q", filter.Query)
	}
	if filter.CategoryID != "" {
		q.Set("categoryId", filter.CategoryID)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
