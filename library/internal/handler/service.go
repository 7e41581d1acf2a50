package handler

import (
	"context"

	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/Astemirdum/library-catalog/library/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type CatalogService interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
	ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	GetBook(ctx context.Context, id string) (model.Book, error)
	Catalog(ctx context.Context, filter model.BookFilter) ([]model.CategoryBooks, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	Dashboard(ctx context.Context) (model.Dashboard, error)

	AddBook(ctx context.Context, req model.AddBookRequest) (model.Book, error)
	AddCategory(ctx context.Context, req model.AddCategoryRequest) (model.Category, error)
	RequestBorrow(ctx context.Context, id string, req model.RequestBorrowRequest) (model.Book, error)
	ApproveBorrow(ctx context.Context, id string, req model.ApproveBorrowRequest) (model.Book, error)
	RejectBorrow(ctx context.Context, id string) (model.Book, error)
	ReturnBook(ctx context.Context, id string) (model.Book, error)
	DeleteBook(ctx context.Context, id string) error

	ReplaceData(ctx context.Context, req model.DataUpdateRequest) (model.Snapshot, error)
	AppendBook(ctx context.Context, b model.Book) (model.Snapshot, error)
	PutBook(ctx context.Context, b model.Book) (model.Snapshot, error)
	RemoveBook(ctx context.Context, id string) (model.Snapshot, error)
}

type AuthService interface {
	Login(ctx context.Context, code string) (string, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (string, error)
	ChangePassword(ctx context.Context, currentCode, newCode string) error
}

var (
	_ CatalogService = (*service.Service)(nil)
	_ AuthService    = (*service.AuthService)(nil)
)
