package lifecycle_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/lifecycle"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBorrowInvariantHolds(t *testing.T) {
	ops := []string{"add", "request", "approve", "reject", "return", "delete"}

	rapid.Check(t, func(t *rapid.T) {
		var (
			shelf []model.Book
			clock = now
			seq   int
		)
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			op := rapid.SampledFrom(ops).Draw(t, "op")
			bookID := "missing"
			if len(shelf) > 0 && rapid.IntRange(0, 9).Draw(t, "pickExisting") > 0 {
				bookID = shelf[rapid.IntRange(0, len(shelf)-1).Draw(t, "book")].ID
			}
			before := append([]model.Book(nil), shelf...)
			clock = clock.Add(time.Duration(rapid.IntRange(0, 72).Draw(t, "hours")) * time.Hour)

			var (
				next []model.Book
				err  error
			)
			switch op {
			case "add":
				seq++
				next, _, err = lifecycle.AddBook(shelf, lifecycle.NewBook{
					ID:              fmt.Sprintf("b%d", seq),
					Name:            rapid.StringMatching(`[a-cA-C]{2,3}`).Draw(t, "name"),
					Author:          "author",
					PlacementNumber: "A-1",
					CategoryID:      "1",
					CoverImageID:    fmt.Sprintf("cover-%d", seq),
				})
			case "request":
				next, _, err = lifecycle.RequestBorrow(shelf, bookID, rapid.StringMatching(`[a-z]{0,4}`).Draw(t, "requester"))
			case "approve":
				due := clock.AddDate(0, 0, rapid.IntRange(-3, 30).Draw(t, "dueInDays"))
				next, _, err = lifecycle.ApproveBorrow(shelf, bookID, due, rapid.StringMatching(`[a-z]{0,4}`).Draw(t, "borrower"), clock)
			case "reject":
				next, _, err = lifecycle.RejectBorrow(shelf, bookID)
			case "return":
				next, _, err = lifecycle.ReturnBook(shelf, bookID, clock)
			case "delete":
				next, _, err = lifecycle.DeleteBook(shelf, bookID)
			}

			if err != nil {
				if len(before) != len(shelf) {
					t.Fatalf("%s failed but collection size changed", op)
				}
				for j := range before {
					if before[j].ID != shelf[j].ID || before[j].Status != shelf[j].Status {
						t.Fatalf("%s failed but collection mutated", op)
					}
				}
				continue
			}
			shelf = next
			for _, b := range shelf {
				if err := lifecycle.CheckBook(b); err != nil {
					t.Fatalf("after %s: %v", op, err)
				}
			}
		}
	})
}

func TestDeleteNeverLeavesID(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		shelf := make([]model.Book, 0, n)
		for i := 0; i < n; i++ {
			shelf = append(shelf, model.Book{ID: fmt.Sprintf("b%d", i), Status: model.StatusAvailable})
		}
		victim := shelf[rapid.IntRange(0, n-1).Draw(t, "victim")].ID
		out, _, err := lifecycle.DeleteBook(shelf, victim)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if len(out) != n-1 {
			t.Fatalf("want %d books, got %d", n-1, len(out))
		}
		for _, b := range out {
			if b.ID == victim {
				t.Fatalf("deleted id %s still present", victim)
			}
		}
	})
}

func TestCheckBook(t *testing.T) {
	t.Parallel()
	for _, b := range books() {
		require.NoError(t, lifecycle.CheckBook(b))
	}

	day := date(2024, 5, 15)
	tests := []struct {
		name string
		book model.Book
	}{
		{"borrowed without loan", model.Book{ID: "x", Status: model.StatusBorrowed}},
		{"borrowed without due date", model.Book{ID: "x", Status: model.StatusBorrowed, BorrowerName: "Ali", BorrowDate: &day}},
		{"available with borrower", model.Book{ID: "x", Status: model.StatusAvailable, BorrowerName: "Ali"}},
		{"available with due date", model.Book{ID: "x", Status: model.StatusAvailable, DueDate: &day}},
		{"requested with borrow date", model.Book{ID: "x", Status: model.StatusRequested, BorrowDate: &day}},
		{"unknown status", model.Book{ID: "x", Status: "lost"}},
		{"empty status", model.Book{ID: "x"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := lifecycle.CheckBook(tt.book)
			require.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}
