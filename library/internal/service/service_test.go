package service_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/Astemirdum/library-catalog/library/internal/repository"
	"github.com/Astemirdum/library-catalog/library/internal/service"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func newService(t *testing.T, path string, opts ...service.Option) *service.Service {
	t.Helper()
	repo, err := repository.NewFileRepository(path, zap.NewNop())
	require.NoError(t, err)
	base := []service.Option{
		service.WithClock(func() time.Time { return now }),
		service.WithIDGenerator(sequentialIDs()),
		service.WithCoverIDGenerator(func() (string, error) { return "cover-test", nil }),
	}
	return service.NewService(repo, zap.NewNop(), append(base, opts...)...)
}

func dataPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "catalog.json")
}

func date(y int, m time.Month, d int) model.Date {
	return model.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func TestService_AddCategoryOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, dataPath(t))

	c, err := svc.AddCategory(ctx, model.AddCategoryRequest{Name: "Fiction"})
	require.NoError(t, err)
	require.Equal(t, model.Category{ID: "id-1", Name: "Fiction"}, c)

	categories, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Category{c}, categories)

	// no duplicate check for categories
	_, err = svc.AddCategory(ctx, model.AddCategoryRequest{Name: "Fiction"})
	require.NoError(t, err)
	categories, err = svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
}

func TestService_RequestThenApprove(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	svc := newService(t, dataPath(t), service.WithPublisher(rec))

	book, err := svc.AddBook(ctx, model.AddBookRequest{Name: "Dune", Author: "Frank Herbert", PlacementNumber: "A-1", CategoryID: "c1"})
	require.NoError(t, err)
	require.Equal(t, model.StatusAvailable, book.Status)
	require.Equal(t, "cover-test", book.CoverImageID)

	requested, err := svc.RequestBorrow(ctx, book.ID, model.RequestBorrowRequest{BorrowerName: "Ali"})
	require.NoError(t, err)
	require.Equal(t, model.StatusRequested, requested.Status)
	require.Nil(t, requested.BorrowDate)

	borrowed, err := svc.ApproveBorrow(ctx, book.ID, model.ApproveBorrowRequest{DueDate: date(2024, 6, 1), BorrowerName: "Ali"})
	require.NoError(t, err)
	require.Equal(t, model.StatusBorrowed, borrowed.Status)
	require.Equal(t, "Ali", borrowed.BorrowerName)
	require.Equal(t, now, *borrowed.BorrowDate)
	require.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *borrowed.DueDate)

	got, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, borrowed, got)

	require.Equal(t, []model.EventType{model.EventBookAdded, model.EventBookRequested, model.EventBookApproved}, rec.types())
	require.Equal(t, int64(3), rec.events[2].Version)

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Len(t, dash.Borrowed, 1)
	require.Empty(t, dash.Overdue)
}

func TestService_RejectAndReturn(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, dataPath(t))
	book, err := svc.AddBook(ctx, model.AddBookRequest{Name: "Dune", Author: "Frank Herbert", PlacementNumber: "A-1", CategoryID: "c1"})
	require.NoError(t, err)

	_, err = svc.RequestBorrow(ctx, book.ID, model.RequestBorrowRequest{BorrowerName: "Ali"})
	require.NoError(t, err)
	rejected, err := svc.RejectBorrow(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusAvailable, rejected.Status)
	require.Empty(t, rejected.BorrowerName)

	_, err = svc.RequestBorrow(ctx, book.ID, model.RequestBorrowRequest{})
	require.NoError(t, err)
	_, err = svc.ApproveBorrow(ctx, book.ID, model.ApproveBorrowRequest{DueDate: date(2024, 5, 20), BorrowerName: "Sara"})
	require.NoError(t, err)
	returned, err := svc.ReturnBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusAvailable, returned.Status)
	require.Nil(t, returned.DueDate)
	require.Equal(t, now, *returned.ReturnDate)
}

func TestService_GuardsLeaveStoreUntouched(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, dataPath(t))
	book, err := svc.AddBook(ctx, model.AddBookRequest{Name: "Dune", Author: "Frank Herbert", PlacementNumber: "A-1", CategoryID: "c1"})
	require.NoError(t, err)
	before, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	_, err = svc.ApproveBorrow(ctx, book.ID, model.ApproveBorrowRequest{DueDate: date(2024, 6, 1), BorrowerName: "Ali"})
	require.True(t, errors.Is(err, errs.ErrInvalidTransition), "got %v", err)

	_, err = svc.ReturnBook(ctx, book.ID)
	require.True(t, errors.Is(err, errs.ErrInvalidTransition), "got %v", err)

	_, err = svc.RequestBorrow(ctx, "missing", model.RequestBorrowRequest{})
	require.True(t, errors.Is(err, errs.ErrNotFound), "got %v", err)

	_, err = svc.AddBook(ctx, model.AddBookRequest{Name: "DUNE", Author: "Someone", PlacementNumber: "B-2", CategoryID: "c1"})
	require.True(t, errors.Is(err, errs.ErrDuplicateName), "got %v", err)

	_, err = svc.RequestBorrow(ctx, book.ID, model.RequestBorrowRequest{})
	require.NoError(t, err)
	_, err = svc.ApproveBorrow(ctx, book.ID, model.ApproveBorrowRequest{DueDate: date(2024, 5, 19), BorrowerName: "Ali"})
	require.True(t, errors.Is(err, errs.ErrValidation), "got %v", err)

	after, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, before.Version+1, after.Version)
}

func TestService_DeleteThenGet(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, dataPath(t))
	book, err := svc.AddBook(ctx, model.AddBookRequest{Name: "Dune", Author: "Frank Herbert", PlacementNumber: "A-1", CategoryID: "c1"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(ctx, book.ID))
	_, err = svc.GetBook(ctx, book.ID)
	require.True(t, errors.Is(err, errs.ErrNotFound))
	require.True(t, errors.Is(svc.DeleteBook(ctx, book.ID), errs.ErrNotFound))

	books, err := svc.ListBooks(ctx, model.BookFilter{})
	require.NoError(t, err)
	require.Empty(t, books)
}

func TestService_ListAndCatalog(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, dataPath(t))
	_, err := svc.Seed(ctx)
	require.NoError(t, err)

	books, err := svc.ListBooks(ctx, model.BookFilter{Status: model.StatusAvailable})
	require.NoError(t, err)
	require.Len(t, books, 4)

	books, err = svc.ListBooks(ctx, model.BookFilter{Query: "مانسون"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, "4", books[0].ID)

	catalog, err := svc.Catalog(ctx, model.BookFilter{CategoryID: "3"})
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	require.Equal(t, "3", catalog[0].Category.ID)
	require.Len(t, catalog[0].Books, 2)
}

func TestService_Seed(t *testing.T) {
	ctx := context.Background()
	path := dataPath(t)
	svc := newService(t, path)

	seeded, err := svc.Seed(ctx)
	require.NoError(t, err)
	require.True(t, seeded)

	seeded, err = newService(t, path).Seed(ctx)
	require.NoError(t, err)
	require.False(t, seeded)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Books, 6)
	require.Len(t, snap.Categories, 4)
	for _, b := range snap.Books {
		if b.Status == model.StatusBorrowed {
			require.NotNil(t, b.DueDate)
			require.NotNil(t, b.BorrowDate)
		}
	}
}

func TestService_ConcurrentApproveOneWinner(t *testing.T) {
	ctx := context.Background()
	path := dataPath(t)
	setup := newService(t, path)
	book, err := setup.AddBook(ctx, model.AddBookRequest{Name: "Dune", Author: "Frank Herbert", PlacementNumber: "A-1", CategoryID: "c1"})
	require.NoError(t, err)
	_, err = setup.RequestBorrow(ctx, book.ID, model.RequestBorrowRequest{})
	require.NoError(t, err)

	// two instances over the same data file
	instances := []*service.Service{newService(t, path), newService(t, path)}
	names := []string{"Ali", "Sara"}

	var (
		wg      sync.WaitGroup
		results = make([]error, len(instances))
	)
	start := make(chan struct{})
	for i := range instances {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = instances[i].ApproveBorrow(ctx, book.ID, model.ApproveBorrowRequest{DueDate: date(2024, 6, 1), BorrowerName: names[i]})
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	winner := ""
	for i, err := range results {
		if err == nil {
			winners++
			winner = names[i]
			continue
		}
		require.True(t, errors.Is(err, errs.ErrInvalidTransition) || errors.Is(err, errs.ErrConflict), "got %v", err)
	}
	require.Equal(t, 1, winners)

	got, err := setup.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusBorrowed, got.Status)
	require.Equal(t, winner, got.BorrowerName)
}

// conflictOnce fails the first Save as if another writer got there first.
type conflictOnce struct {
	repository.Repository
	failed atomic.Bool
}

func (r *conflictOnce) Save(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	if r.failed.CompareAndSwap(false, true) {
		return model.Snapshot{}, errors.Wrap(errs.ErrConflict, "injected")
	}
	return r.Repository.Save(ctx, snap)
}

func TestService_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	backend, err := repository.NewFileRepository(dataPath(t), zap.NewNop())
	require.NoError(t, err)

	svc := service.NewService(&conflictOnce{Repository: backend}, zap.NewNop())
	c, err := svc.AddCategory(ctx, model.AddCategoryRequest{Name: "History"})
	require.NoError(t, err)
	require.Equal(t, "History", c.Name)

	noRetry := service.NewService(&conflictOnce{Repository: backend}, zap.NewNop(), service.WithMaxRetries(0))
	_, err = noRetry.AddCategory(ctx, model.AddCategoryRequest{Name: "Science"})
	require.True(t, errors.Is(err, errs.ErrConflict))
}

func TestService_LegacyData(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, dataPath(t))
	_, err := svc.Seed(ctx)
	require.NoError(t, err)

	books := []model.Book{{ID: "x", Name: "Only", Status: model.StatusAvailable}}
	snap, err := svc.ReplaceData(ctx, model.DataUpdateRequest{Books: &books})
	require.NoError(t, err)
	require.Len(t, snap.Books, 1)
	require.Len(t, snap.Categories, 4)

	snap, err = svc.AppendBook(ctx, model.Book{Name: "Appended"})
	require.NoError(t, err)
	require.Len(t, snap.Books, 2)
	require.Equal(t, model.StatusAvailable, snap.Books[1].Status)
	require.NotEmpty(t, snap.Books[1].ID)

	version := snap.Version
	snap, err = svc.PutBook(ctx, model.Book{ID: "missing", Name: "Nope", Status: model.StatusAvailable})
	require.NoError(t, err)
	require.Equal(t, version, snap.Version)
	require.Len(t, snap.Books, 2)

	snap, err = svc.PutBook(ctx, model.Book{ID: "x", Name: "Renamed", Status: model.StatusAvailable})
	require.NoError(t, err)
	require.Equal(t, "Renamed", snap.Books[0].Name)

	snap, err = svc.RemoveBook(ctx, "x")
	require.NoError(t, err)
	require.Len(t, snap.Books, 1)
	version = snap.Version
	snap, err = svc.RemoveBook(ctx, "x")
	require.NoError(t, err)
	require.Len(t, snap.Books, 1)
	require.Equal(t, version, snap.Version)
}

func TestService_LegacyDataRejectsBrokenBooks(t *testing.T) {
	t.Parallel()
	due := now.Add(24 * time.Hour)

	tests := []struct {
		name  string
		write func(ctx context.Context, svc *service.Service) error
	}{
		{
			name: "put borrowed without loan",
			write: func(ctx context.Context, svc *service.Service) error {
				_, err := svc.PutBook(ctx, model.Book{ID: "1", Name: "X", Status: model.StatusBorrowed})
				return err
			},
		},
		{
			name: "put borrowed without due date",
			write: func(ctx context.Context, svc *service.Service) error {
				_, err := svc.PutBook(ctx, model.Book{ID: "1", Name: "X", Status: model.StatusBorrowed, BorrowerName: "Ali", BorrowDate: &now})
				return err
			},
		},
		{
			name: "put unknown status",
			write: func(ctx context.Context, svc *service.Service) error {
				_, err := svc.PutBook(ctx, model.Book{ID: "1", Name: "X", Status: "lost"})
				return err
			},
		},
		{
			name: "append available with borrower",
			write: func(ctx context.Context, svc *service.Service) error {
				_, err := svc.AppendBook(ctx, model.Book{Name: "X", BorrowerName: "Ali"})
				return err
			},
		},
		{
			name: "append requested with due date",
			write: func(ctx context.Context, svc *service.Service) error {
				_, err := svc.AppendBook(ctx, model.Book{Name: "X", Status: model.StatusRequested, DueDate: &due})
				return err
			},
		},
		{
			name: "replace with one broken book",
			write: func(ctx context.Context, svc *service.Service) error {
				books := []model.Book{
					{ID: "a", Name: "Fine", Status: model.StatusAvailable},
					{ID: "b", Name: "Broken", Status: model.StatusBorrowed, BorrowerName: "Ali"},
				}
				_, err := svc.ReplaceData(ctx, model.DataUpdateRequest{Books: &books})
				return err
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			svc := newService(t, dataPath(t))
			_, err := svc.Seed(ctx)
			require.NoError(t, err)
			before, err := svc.Snapshot(ctx)
			require.NoError(t, err)

			err = tt.write(ctx, svc)
			require.True(t, errors.Is(err, errs.ErrValidation), "got %v", err)

			after, err := svc.Snapshot(ctx)
			require.NoError(t, err)
			require.Equal(t, before.Version, after.Version)
			require.Equal(t, before.Books, after.Books)
		})
	}
}

func TestService_MutatesAfterDataFileRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := dataPath(t)
	file, err := repository.NewFileRepository(path, zap.NewNop())
	require.NoError(t, err)
	svc := service.NewService(repository.NewCached(file, zap.NewNop()), zap.NewNop(),
		service.WithIDGenerator(sequentialIDs()))

	_, err = svc.AddCategory(ctx, model.AddCategoryRequest{Name: "Fiction"})
	require.NoError(t, err)
	_, err = svc.AddCategory(ctx, model.AddCategoryRequest{Name: "History"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"books":[],"categories":[{"id":"c1","name":"Poetry"}]}`), 0o600))
	require.NoError(t, svc.Refresh(ctx))

	_, err = svc.AddCategory(ctx, model.AddCategoryRequest{Name: "Science"})
	require.NoError(t, err)
	categories, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	require.Equal(t, "Poetry", categories[0].Name)
	require.Equal(t, "Science", categories[1].Name)
}
