package model

import (
	"time"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusRequested Status = "requested"
	StatusBorrowed  Status = "borrowed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusRequested, StatusBorrowed:
		return true
	}
	return false
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Book struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Author          string     `json:"author"`
	PlacementNumber string     `json:"placementNumber"`
	CategoryID      string     `json:"categoryId"`
	Status          Status     `json:"status"`
	BorrowerName    string     `json:"borrowerName,omitempty"`
	BorrowDate      *time.Time `json:"borrowDate,omitempty"`
	DueDate         *time.Time `json:"dueDate,omitempty"`
	ReturnDate      *time.Time `json:"returnDate,omitempty"`
	CoverImageID    string     `json:"coverImageId"`
	CoverImageURL   string     `json:"coverImageUrl,omitempty"`
}

// Snapshot is the whole catalog as persisted and transmitted in one unit.
// Version is bumped by the store on every successful save.
type Snapshot struct {
	Version    int64      `json:"version"`
	Books      []Book     `json:"books"`
	Categories []Category `json:"categories"`
}

// Clone copies the collections so callers can derive a new snapshot
// without aliasing the cached one.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Version:    s.Version,
		Books:      make([]Book, len(s.Books)),
		Categories: make([]Category, len(s.Categories)),
	}
	copy(out.Books, s.Books)
	copy(out.Categories, s.Categories)
	return out
}

func (s Snapshot) FindBook(id string) (Book, bool) {
	for _, b := range s.Books {
		if b.ID == id {
			return b, true
		}
	}
	return Book{}, false
}

type CategoryBooks struct {
	Category Category `json:"category"`
	Books    []Book   `json:"books"`
}

type Dashboard struct {
	Requested []Book `json:"requested"`
	Borrowed  []Book `json:"borrowed"`
	Overdue   []Book `json:"overdue"`
}

type BookFilter struct {
	Query      string `query:"q"`
	CategoryID string `query:"categoryId"`
	Status     Status `query:"status"`
}

type AddBookRequest struct {
	Name            string `json:"name" validate:"required,min=2"`
	Author          string `json:"author" validate:"required"`
	PlacementNumber string `json:"placementNumber" validate:"required"`
	CategoryID      string `json:"categoryId" validate:"required"`
	CoverImageURL   string `json:"coverImageUrl"`
}

type AddCategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

type RequestBorrowRequest struct {
	BorrowerName string `json:"borrowerName"`
}

type ApproveBorrowRequest struct {
	DueDate      Date   `json:"dueDate"`
	BorrowerName string `json:"borrowerName" validate:"required"`
}

type LoginRequest struct {
	Code string `json:"code" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
}

type ChangePasswordRequest struct {
	CurrentCode string `json:"currentCode" validate:"required"`
	NewCode     string `json:"newCode" validate:"required"`
}

// DataUpdateRequest is the `{books?, categories?}` body of the legacy /data endpoint.
type DataUpdateRequest struct {
	Books      *[]Book     `json:"books,omitempty"`
	Categories *[]Category `json:"categories,omitempty"`
}

type DataUpdateResponse struct {
	Message         string `json:"message"`
	BooksCount      int    `json:"booksCount"`
	CategoriesCount int    `json:"categoriesCount"`
}

type DataDeleteResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type DataPutResponse struct {
	Message string `json:"message"`
	Book    Book   `json:"book"`
}
