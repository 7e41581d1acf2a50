package lifecycle

import (
	"strings"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/model"
)

const allCategories = "all"

// Search matches query against book name or author, case-insensitively.
// An empty categoryID or "all" matches every category.
func Search(books []model.Book, query, categoryID string) []model.Book {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Book, 0, len(books))
	for _, b := range books {
		if categoryID != "" && categoryID != allCategories && b.CategoryID != categoryID {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(b.Name), q) &&
			!strings.Contains(strings.ToLower(b.Author), q) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func ByStatus(books []model.Book, status model.Status) []model.Book {
	out := make([]model.Book, 0)
	for _, b := range books {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out
}

// GroupByCategory keeps category order. Books pointing at a missing category
// are not rendered and empty categories are left out.
func GroupByCategory(categories []model.Category, books []model.Book) []model.CategoryBooks {
	byCategory := make(map[string][]model.Book, len(categories))
	for _, b := range books {
		byCategory[b.CategoryID] = append(byCategory[b.CategoryID], b)
	}
	out := make([]model.CategoryBooks, 0, len(categories))
	for _, c := range categories {
		if len(byCategory[c.ID]) == 0 {
			continue
		}
		out = append(out, model.CategoryBooks{Category: c, Books: byCategory[c.ID]})
	}
	return out
}

// Overdue returns borrowed books whose due day is before today.
func Overdue(books []model.Book, now time.Time) []model.Book {
	today := day(now, now.Location())
	out := make([]model.Book, 0)
	for _, b := range books {
		if b.Status != model.StatusBorrowed || b.DueDate == nil {
			continue
		}
		if day(*b.DueDate, now.Location()).Before(today) {
			out = append(out, b)
		}
	}
	return out
}

func BuildDashboard(books []model.Book, now time.Time) model.Dashboard {
	return model.Dashboard{
		Requested: ByStatus(books, model.StatusRequested),
		Borrowed:  ByStatus(books, model.StatusBorrowed),
		Overdue:   Overdue(books, now),
	}
}
