// Package lifecycle implements the book status state machine as pure functions:
// every operation takes the current collection and returns a fresh one, never
// touching its input.
package lifecycle

import (
	"strings"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/pkg/errors"
)

// Clock supplies "now" to the time-dependent operations.
type Clock func() time.Time

type Op string

const (
	OpRequest Op = "request"
	OpApprove Op = "approve"
	OpReject  Op = "reject"
	OpReturn  Op = "return"
)

type transition struct {
	from model.Status
	to   model.Status
}

var transitions = map[Op]transition{
	OpRequest: {from: model.StatusAvailable, to: model.StatusRequested},
	OpApprove: {from: model.StatusRequested, to: model.StatusBorrowed},
	OpReject:  {from: model.StatusRequested, to: model.StatusAvailable},
	OpReturn:  {from: model.StatusBorrowed, to: model.StatusAvailable},
}

// Next returns the status reached by applying op to a book in status from.
func Next(from model.Status, op Op) (model.Status, error) {
	t, ok := transitions[op]
	if !ok {
		return "", errors.Wrapf(errs.ErrInvalidTransition, "unknown operation %q", op)
	}
	if t.from != from {
		return "", errors.Wrapf(errs.ErrInvalidTransition, "%s: book is %s, want %s", op, from, t.from)
	}
	return t.to, nil
}

const minBookNameLen = 2

// NewBook carries everything AddBook needs; ids are generated by the caller.
type NewBook struct {
	ID              string
	Name            string
	Author          string
	PlacementNumber string
	CategoryID      string
	CoverImageID    string
	CoverImageURL   string
}

func AddBook(books []model.Book, nb NewBook) ([]model.Book, model.Book, error) {
	name := strings.TrimSpace(nb.Name)
	switch {
	case len([]rune(name)) < minBookNameLen:
		return nil, model.Book{}, errors.Wrapf(errs.ErrValidation, "name must be at least %d characters", minBookNameLen)
	case strings.TrimSpace(nb.Author) == "":
		return nil, model.Book{}, errors.Wrap(errs.ErrValidation, "author is required")
	case strings.TrimSpace(nb.PlacementNumber) == "":
		return nil, model.Book{}, errors.Wrap(errs.ErrValidation, "placementNumber is required")
	case nb.CategoryID == "":
		return nil, model.Book{}, errors.Wrap(errs.ErrValidation, "categoryId is required")
	case nb.ID == "" || nb.CoverImageID == "":
		return nil, model.Book{}, errors.Wrap(errs.ErrValidation, "book ids must be generated")
	}
	for _, b := range books {
		if strings.EqualFold(strings.TrimSpace(b.Name), name) {
			return nil, model.Book{}, errors.Wrapf(errs.ErrDuplicateName, "%q", name)
		}
	}

	book := model.Book{
		ID:              nb.ID,
		Name:            name,
		Author:          strings.TrimSpace(nb.Author),
		PlacementNumber: strings.TrimSpace(nb.PlacementNumber),
		CategoryID:      nb.CategoryID,
		Status:          model.StatusAvailable,
		CoverImageID:    nb.CoverImageID,
		CoverImageURL:   nb.CoverImageURL,
	}
	out := make([]model.Book, 0, len(books)+1)
	out = append(out, books...)
	out = append(out, book)
	return out, book, nil
}

// AddCategory has no duplicate-name check, unlike AddBook.
func AddCategory(categories []model.Category, c model.Category) ([]model.Category, model.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, model.Category{}, errors.Wrap(errs.ErrValidation, "category name is required")
	}
	if c.ID == "" {
		return nil, model.Category{}, errors.Wrap(errs.ErrValidation, "category id must be generated")
	}
	out := make([]model.Category, 0, len(categories)+1)
	out = append(out, categories...)
	out = append(out, c)
	return out, c, nil
}

func RequestBorrow(books []model.Book, bookID, borrowerName string) ([]model.Book, model.Book, error) {
	return apply(books, bookID, OpRequest, func(b *model.Book) error {
		b.BorrowerName = strings.TrimSpace(borrowerName)
		b.BorrowDate = nil
		b.DueDate = nil
		return nil
	})
}

// ApproveBorrow marks a requested book as borrowed. dueDate may not be earlier
// than today in now's location.
func ApproveBorrow(books []model.Book, bookID string, dueDate time.Time, borrowerName string, now time.Time) ([]model.Book, model.Book, error) {
	name := strings.TrimSpace(borrowerName)
	if name == "" {
		return nil, model.Book{}, errors.Wrap(errs.ErrValidation, "borrowerName is required")
	}
	if dueDate.IsZero() {
		return nil, model.Book{}, errors.Wrap(errs.ErrValidation, "dueDate is required")
	}
	if day(dueDate, now.Location()).Before(day(now, now.Location())) {
		return nil, model.Book{}, errors.Wrapf(errs.ErrValidation, "dueDate %s is in the past", dueDate.Format(time.DateOnly))
	}
	return apply(books, bookID, OpApprove, func(b *model.Book) error {
		borrowed, due := now, dueDate
		b.BorrowerName = name
		b.BorrowDate = &borrowed
		b.DueDate = &due
		return nil
	})
}

func RejectBorrow(books []model.Book, bookID string) ([]model.Book, model.Book, error) {
	return apply(books, bookID, OpReject, func(b *model.Book) error {
		clearBorrower(b)
		return nil
	})
}

func ReturnBook(books []model.Book, bookID string, now time.Time) ([]model.Book, model.Book, error) {
	return apply(books, bookID, OpReturn, func(b *model.Book) error {
		returned := now
		clearBorrower(b)
		b.ReturnDate = &returned
		return nil
	})
}

// DeleteBook removes the book whatever its status.
func DeleteBook(books []model.Book, bookID string) ([]model.Book, model.Book, error) {
	idx := indexOf(books, bookID)
	if idx < 0 {
		return nil, model.Book{}, errors.Wrapf(errs.ErrNotFound, "book %s", bookID)
	}
	out := make([]model.Book, 0, len(books)-1)
	out = append(out, books[:idx]...)
	out = append(out, books[idx+1:]...)
	return out, books[idx], nil
}

func apply(books []model.Book, bookID string, op Op, mutate func(b *model.Book) error) ([]model.Book, model.Book, error) {
	idx := indexOf(books, bookID)
	if idx < 0 {
		return nil, model.Book{}, errors.Wrapf(errs.ErrNotFound, "book %s", bookID)
	}
	book := books[idx]
	next, err := Next(book.Status, op)
	if err != nil {
		return nil, model.Book{}, err
	}
	if err := mutate(&book); err != nil {
		return nil, model.Book{}, err
	}
	book.Status = next

	out := make([]model.Book, len(books))
	copy(out, books)
	out[idx] = book
	return out, book, nil
}

func clearBorrower(b *model.Book) {
	b.BorrowerName = ""
	b.BorrowDate = nil
	b.DueDate = nil
}

func indexOf(books []model.Book, id string) int {
	for i := range books {
		if books[i].ID == id {
			return i
		}
	}
	return -1
}

func day(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// CheckBook reports a book whose status disagrees with its loan fields.
// Writes that skip the transitions still have to pass it.
func CheckBook(b model.Book) error {
	if !b.Status.Valid() {
		return errors.Wrapf(errs.ErrValidation, "book %s: status %q is invalid", b.ID, b.Status)
	}
	hasDates := b.BorrowDate != nil || b.DueDate != nil
	switch b.Status {
	case model.StatusBorrowed:
		if strings.TrimSpace(b.BorrowerName) == "" || b.BorrowDate == nil || b.DueDate == nil {
			return errors.Wrapf(errs.ErrValidation, "book %s: borrowed book needs borrowerName, borrowDate and dueDate", b.ID)
		}
	case model.StatusRequested:
		if hasDates {
			return errors.Wrapf(errs.ErrValidation, "book %s: requested book carries loan dates", b.ID)
		}
	case model.StatusAvailable:
		if hasDates || b.BorrowerName != "" {
			return errors.Wrapf(errs.ErrValidation, "book %s: available book carries borrower fields", b.ID)
		}
	}
	return nil
}
