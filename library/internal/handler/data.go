package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/labstack/echo/v4"
)

const maxDataBody = 8 << 20

// GetData returns the stored books and categories.
func (h *Handler) GetData(c echo.Context) error {
	snap, err := h.catalogSvc.Snapshot(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, model.DataUpdateRequest{Books: &snap.Books, Categories: &snap.Categories})
}

// PostData accepts a book array, a {books, categories} object with either part
// optional, or a single book that gets appended.
func (h *Handler) PostData(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxDataBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "request body is empty")
	}
	ctx := c.Request().Context()

	var snap model.Snapshot
	switch {
	case body[0] == '[':
		var books []model.Book
		if err := json.Unmarshal(body, &books); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		snap, err = h.catalogSvc.ReplaceData(ctx, model.DataUpdateRequest{Books: &books})
	case hasCollections(body):
		var req model.DataUpdateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		snap, err = h.catalogSvc.ReplaceData(ctx, req)
	default:
		var book model.Book
		if err := json.Unmarshal(body, &book); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		snap, err = h.catalogSvc.AppendBook(ctx, book)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, model.DataUpdateResponse{
		Message:         "Data updated successfully",
		BooksCount:      len(snap.Books),
		CategoriesCount: len(snap.Categories),
	})
}

func (h *Handler) PutData(c echo.Context) error {
	var book model.Book
	if err := c.Bind(&book); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := h.catalogSvc.PutBook(c.Request().Context(), book); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, model.DataPutResponse{Message: "Book updated successfully", Book: book})
}

func (h *Handler) DeleteData(c echo.Context) error {
	id := c.QueryParam("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Book ID is required")
	}
	snap, err := h.catalogSvc.RemoveBook(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, model.DataDeleteResponse{Message: "Book deleted successfully", Count: len(snap.Books)})
}

// hasCollections reports whether an object body carries a non-null books or categories key.
func hasCollections(body []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	for _, key := range []string{"books", "categories"} {
		if raw, ok := fields[key]; ok && string(raw) != "null" {
			return true
		}
	}
	return false
}
