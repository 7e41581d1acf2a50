package client

import (
	"context"
	"sync"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/lifecycle"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/Astemirdum/library-catalog/pkg/poller"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// View is a local copy of the catalog kept fresh by a poller.
// Mutations are applied locally first and rolled back to the server's
// snapshot when the server refuses them.
type View struct {
	client *Client
	log    *zap.Logger
	clock  lifecycle.Clock
	poller *poller.Poller

	mu   sync.RWMutex
	snap model.Snapshot
	// gen changes whenever snap does.
	gen uint64
}

type ViewOption func(v *View)

func WithViewClock(clock lifecycle.Clock) ViewOption {
	return func(v *View) {
		v.clock = clock
	}
}

func NewView(client *Client, interval time.Duration, log *zap.Logger, opts ...ViewOption) *View {
	v := &View{
		client: client,
		log:    log.Named("view"),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.poller = poller.New(interval, v.Refresh, log)
	return v
}

// Run keeps the view in sync until ctx is done.
func (v *View) Run(ctx context.Context) error {
	return v.poller.Run(ctx)
}

// Sync asks for a refresh without waiting for the next tick.
func (v *View) Sync() {
	v.poller.Trigger()
}

// Refresh replaces the local snapshot with the server's one, including a
// lower version after the server's store was restored. A fetch that lost the
// race against a newer snapshot taken in the meantime is dropped.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.RLock()
	gen := v.gen
	v.mu.RUnlock()

	snap, err := v.client.Snapshot(ctx)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen && snap.Version < v.snap.Version {
		return nil
	}
	v.snap = snap
	v.gen++
	return nil
}

func (v *View) Snapshot() model.Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap.Clone()
}

func (v *View) Books(filter model.BookFilter) []model.Book {
	snap := v.Snapshot()
	books := lifecycle.Search(snap.Books, filter.Query, filter.CategoryID)
	if filter.Status != "" {
		books = lifecycle.ByStatus(books, filter.Status)
	}
	return books
}

func (v *View) Catalog(filter model.BookFilter) []model.CategoryBooks {
	snap := v.Snapshot()
	return lifecycle.GroupByCategory(snap.Categories, lifecycle.Search(snap.Books, filter.Query, filter.CategoryID))
}

func (v *View) Dashboard() model.Dashboard {
	return lifecycle.BuildDashboard(v.Snapshot().Books, v.clock())
}

func (v *View) RequestBorrow(ctx context.Context, id, borrowerName string) (model.Book, error) {
	return v.apply(ctx,
		func(books []model.Book) ([]model.Book, model.Book, error) {
			return lifecycle.RequestBorrow(books, id, borrowerName)
		},
		func(ctx context.Context) (model.Book, error) {
			return v.client.RequestBorrow(ctx, id, model.RequestBorrowRequest{BorrowerName: borrowerName})
		})
}

func (v *View) ApproveBorrow(ctx context.Context, id string, dueDate time.Time, borrowerName string) (model.Book, error) {
	return v.apply(ctx,
		func(books []model.Book) ([]model.Book, model.Book, error) {
			return lifecycle.ApproveBorrow(books, id, dueDate, borrowerName, v.clock())
		},
		func(ctx context.Context) (model.Book, error) {
			return v.client.ApproveBorrow(ctx, id, model.ApproveBorrowRequest{
				DueDate:      model.Date{Time: dueDate},
				BorrowerName: borrowerName,
			})
		})
}

func (v *View) RejectBorrow(ctx context.Context, id string) (model.Book, error) {
	return v.apply(ctx,
		func(books []model.Book) ([]model.Book, model.Book, error) {
			return lifecycle.RejectBorrow(books, id)
		},
		func(ctx context.Context) (model.Book, error) {
			return v.client.RejectBorrow(ctx, id)
		})
}

func (v *View) ReturnBook(ctx context.Context, id string) (model.Book, error) {
	return v.apply(ctx,
		func(books []model.Book) ([]model.Book, model.Book, error) {
			return lifecycle.ReturnBook(books, id, v.clock())
		},
		func(ctx context.Context) (model.Book, error) {
			return v.client.ReturnBook(ctx, id)
		})
}

func (v *View) DeleteBook(ctx context.Context, id string) error {
	_, err := v.apply(ctx,
		func(books []model.Book) ([]model.Book, model.Book, error) {
			return lifecycle.DeleteBook(books, id)
		},
		func(ctx context.Context) (model.Book, error) {
			return model.Book{}, v.client.DeleteBook(ctx, id)
		})
	return err
}

// AddBook is not optimistic: ids and cover ids come from the server.
func (v *View) AddBook(ctx context.Context, req model.AddBookRequest) (model.Book, error) {
	book, err := v.client.AddBook(ctx, req)
	if err != nil {
		return model.Book{}, err
	}
	v.mu.Lock()
	v.snap.Books = append(v.snap.Books, book)
	v.gen++
	v.mu.Unlock()
	v.Sync()
	return book, nil
}

func (v *View) AddCategory(ctx context.Context, name string) (model.Category, error) {
	category, err := v.client.AddCategory(ctx, model.AddCategoryRequest{Name: name})
	if err != nil {
		return model.Category{}, err
	}
	v.mu.Lock()
	v.snap.Categories = append(v.snap.Categories, category)
	v.gen++
	v.mu.Unlock()
	v.Sync()
	return category, nil
}

// apply runs local against the cached books, then remote against the server.
// A book unknown locally goes straight to the server. A refused remote call
// discards the local change by reloading the server's snapshot.
func (v *View) apply(
	ctx context.Context,
	local func(books []model.Book) ([]model.Book, model.Book, error),
	remote func(ctx context.Context) (model.Book, error),
) (model.Book, error) {
	v.mu.Lock()
	books, _, err := local(v.snap.Books)
	switch {
	case err == nil:
		v.snap.Books = books
		v.gen++
	case !errors.Is(err, errs.ErrNotFound):
		v.mu.Unlock()
		return model.Book{}, err
	}
	v.mu.Unlock()

	book, err := remote(ctx)
	if err != nil {
		v.log.Warn("local change discarded", zap.Error(err))
		if rerr := v.Refresh(ctx); rerr != nil {
			v.log.Error("reload snapshot", zap.Error(rerr))
		}
		return model.Book{}, err
	}

	v.mu.Lock()
	v.snap.Books = replaceBook(v.snap.Books, book)
	v.gen++
	v.mu.Unlock()
	v.Sync()
	return book, nil
}

func replaceBook(books []model.Book, book model.Book) []model.Book {
	for i := range books {
		if books[i].ID == book.ID {
			out := make([]model.Book, len(books))
			copy(out, books)
			out[i] = book
			return out
		}
	}
	return books
}
