package service

import (
	"context"
	"strings"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/lifecycle"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	libraryRepo "github.com/Astemirdum/library-catalog/library/internal/repository"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	coverIDPrefix     = "cover-"
	coverIDAlphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	coverIDLength     = 12
)

// EventPublisher is told about every persisted change.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, model.Event) error { return nil }

// Refresher is implemented by repositories that cache the snapshot.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Option func(*Service)

func WithClock(clock lifecycle.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithCoverIDGenerator(newCoverID func() (string, error)) Option {
	return func(s *Service) { s.newCoverID = newCoverID }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMaxRetries bounds how many times a mutation is retried after a version conflict.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

type Service struct {
	log  *zap.Logger
	repo libraryRepo.Repository

	clock      lifecycle.Clock
	newID      func() string
	newCoverID func() (string, error)
	publisher  EventPublisher
	maxRetries int
}

func NewService(repo libraryRepo.Repository, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:        log.Named("service"),
		repo:       repo,
		clock:      time.Now,
		newID:      uuid.NewString,
		newCoverID: newCoverID,
		publisher:  noopPublisher{},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newCoverID() (string, error) {
	id, err := gonanoid.Generate(coverIDAlphabet, coverIDLength)
	if err != nil {
		return "", err
	}
	return coverIDPrefix + id, nil
}

func (s *Service) Snapshot(ctx context.Context) (model.Snapshot, error) {
	return s.repo.Load(ctx)
}

func (s *Service) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	books := lifecycle.Search(snap.Books, filter.Query, filter.CategoryID)
	if filter.Status != "" {
		books = lifecycle.ByStatus(books, filter.Status)
	}
	return books, nil
}

func (s *Service) GetBook(ctx context.Context, id string) (model.Book, error) {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return model.Book{}, err
	}
	book, ok := snap.FindBook(id)
	if !ok {
		return model.Book{}, errors.Wrapf(errs.ErrNotFound, "book %s", id)
	}
	return book, nil
}

func (s *Service) Catalog(ctx context.Context, filter model.BookFilter) ([]model.CategoryBooks, error) {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return lifecycle.GroupByCategory(snap.Categories, lifecycle.Search(snap.Books, filter.Query, filter.CategoryID)), nil
}

func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Categories, nil
}

func (s *Service) Dashboard(ctx context.Context) (model.Dashboard, error) {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return model.Dashboard{}, err
	}
	return lifecycle.BuildDashboard(snap.Books, s.clock()), nil
}

func (s *Service) AddBook(ctx context.Context, req model.AddBookRequest) (model.Book, error) {
	coverID, err := s.newCoverID()
	if err != nil {
		return model.Book{}, errors.Wrap(err, "cover id")
	}
	nb := lifecycle.NewBook{
		ID:              s.newID(),
		Name:            req.Name,
		Author:          strings.TrimSpace(req.Author),
		PlacementNumber: strings.TrimSpace(req.PlacementNumber),
		CategoryID:      req.CategoryID,
		CoverImageID:    coverID,
		CoverImageURL:   strings.TrimSpace(req.CoverImageURL),
	}
	var added model.Book
	_, err = s.mutate(ctx, func(snap *model.Snapshot) (model.Event, error) {
		books, book, err := lifecycle.AddBook(snap.Books, nb)
		if err != nil {
			return model.Event{}, err
		}
		snap.Books, added = books, book
		return model.Event{Type: model.EventBookAdded, BookID: book.ID, CategoryID: book.CategoryID}, nil
	})
	return added, err
}

func (s *Service) AddCategory(ctx context.Context, req model.AddCategoryRequest) (model.Category, error) {
	c := model.Category{ID: s.newID(), Name: req.Name}
	var added model.Category
	_, err := s.mutate(ctx, func(snap *model.Snapshot) (model.Event, error) {
		categories, category, err := lifecycle.AddCategory(snap.Categories, c)
		if err != nil {
			return model.Event{}, err
		}
		snap.Categories, added = categories, category
		return model.Event{Type: model.EventCategoryAdded, CategoryID: category.ID}, nil
	})
	return added, err
}

func (s *Service) RequestBorrow(ctx context.Context, id string, req model.RequestBorrowRequest) (model.Book, error) {
	return s.mutateBook(ctx, model.EventBookRequested, func(books []model.Book) ([]model.Book, model.Book, error) {
		return lifecycle.RequestBorrow(books, id, req.BorrowerName)
	})
}

func (s *Service) ApproveBorrow(ctx context.Context, id string, req model.ApproveBorrowRequest) (model.Book, error) {
	return s.mutateBook(ctx, model.EventBookApproved, func(books []model.Book) ([]model.Book, model.Book, error) {
		now := s.clock()
		return lifecycle.ApproveBorrow(books, id, calendarDay(req.DueDate.Time, now.Location()), req.BorrowerName, now)
	})
}

func (s *Service) RejectBorrow(ctx context.Context, id string) (model.Book, error) {
	return s.mutateBook(ctx, model.EventBookRejected, func(books []model.Book) ([]model.Book, model.Book, error) {
		return lifecycle.RejectBorrow(books, id)
	})
}

func (s *Service) ReturnBook(ctx context.Context, id string) (model.Book, error) {
	return s.mutateBook(ctx, model.EventBookReturned, func(books []model.Book) ([]model.Book, model.Book, error) {
		return lifecycle.ReturnBook(books, id, s.clock())
	})
}

func (s *Service) DeleteBook(ctx context.Context, id string) error {
	_, err := s.mutateBook(ctx, model.EventBookDeleted, func(books []model.Book) ([]model.Book, model.Book, error) {
		return lifecycle.DeleteBook(books, id)
	})
	return err
}

// Refresh reloads a cached repository from its backend. It is the poller's refresh func.
func (s *Service) Refresh(ctx context.Context) error {
	if r, ok := s.repo.(Refresher); ok {
		return r.Refresh(ctx)
	}
	return nil
}

type bookOp func(books []model.Book) ([]model.Book, model.Book, error)

func (s *Service) mutateBook(ctx context.Context, evType model.EventType, op bookOp) (model.Book, error) {
	var changed model.Book
	_, err := s.mutate(ctx, func(snap *model.Snapshot) (model.Event, error) {
		books, book, err := op(snap.Books)
		if err != nil {
			return model.Event{}, err
		}
		snap.Books, changed = books, book
		return model.Event{Type: evType, BookID: book.ID, CategoryID: book.CategoryID}, nil
	})
	if err != nil {
		return model.Book{}, err
	}
	return changed, nil
}

// errNoChange from a mutate func skips the save and returns the snapshot as read.
var errNoChange = errors.New("no change")

// mutate runs a read-modify-write cycle against the store. On a version conflict
// the snapshot is re-read and fn re-applied, so fn must be free of side effects.
func (s *Service) mutate(ctx context.Context, fn func(snap *model.Snapshot) (model.Event, error)) (model.Snapshot, error) {
	for attempt := 0; ; attempt++ {
		snap, err := s.repo.Load(ctx)
		if err != nil {
			return model.Snapshot{}, err
		}
		next := snap.Clone()
		ev, err := fn(&next)
		if errors.Is(err, errNoChange) {
			return snap, nil
		}
		if err != nil {
			return model.Snapshot{}, err
		}
		saved, err := s.repo.Save(ctx, next)
		if err == nil {
			ev.Version = saved.Version
			ev.Timestamp = s.clock().UTC()
			s.publish(ctx, ev)
			return saved, nil
		}
		if !errors.Is(err, errs.ErrConflict) || attempt >= s.maxRetries {
			return model.Snapshot{}, err
		}
		s.log.Debug("version conflict, retrying",
			zap.Int("attempt", attempt+1),
			zap.String("event", string(ev.Type)))
	}
}

func (s *Service) publish(ctx context.Context, ev model.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("publish event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// calendarDay keeps the date the caller wrote and moves it to loc.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
