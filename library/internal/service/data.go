package service

import (
	"context"

	"github.com/Astemirdum/library-catalog/library/internal/lifecycle"
	"github.com/Astemirdum/library-catalog/library/internal/model"
)

// The bulk operations below back the /data endpoints. They overwrite whole
// collections or books as given and skip the lifecycle transitions, but every
// stored book still has to pass lifecycle.CheckBook.

// ReplaceData swaps the collections that are present in req and keeps the others.
func (s *Service) ReplaceData(ctx context.Context, req model.DataUpdateRequest) (model.Snapshot, error) {
	if req.Books != nil {
		for _, b := range *req.Books {
			if err := lifecycle.CheckBook(b); err != nil {
				return model.Snapshot{}, err
			}
		}
	}
	return s.mutate(ctx, func(snap *model.Snapshot) (model.Event, error) {
		if req.Books != nil {
			snap.Books = append([]model.Book{}, *req.Books...)
		}
		if req.Categories != nil {
			snap.Categories = append([]model.Category{}, *req.Categories...)
		}
		return model.Event{Type: model.EventSnapshotReplaced}, nil
	})
}

// AppendBook adds b as is, filling in a missing id, status or cover id.
func (s *Service) AppendBook(ctx context.Context, b model.Book) (model.Snapshot, error) {
	if b.ID == "" {
		b.ID = s.newID()
	}
	if b.Status == "" {
		b.Status = model.StatusAvailable
	}
	if err := lifecycle.CheckBook(b); err != nil {
		return model.Snapshot{}, err
	}
	if b.CoverImageID == "" {
		coverID, err := s.newCoverID()
		if err != nil {
			return model.Snapshot{}, err
		}
		b.CoverImageID = coverID
	}
	return s.mutate(ctx, func(snap *model.Snapshot) (model.Event, error) {
		snap.Books = append(snap.Books, b)
		return model.Event{Type: model.EventBookAdded, BookID: b.ID, CategoryID: b.CategoryID}, nil
	})
}

// PutBook replaces the book with b.ID. Nothing is written when no book matches.
func (s *Service) PutBook(ctx context.Context, b model.Book) (model.Snapshot, error) {
	if err := lifecycle.CheckBook(b); err != nil {
		return model.Snapshot{}, err
	}
	return s.mutate(ctx, func(snap *model.Snapshot) (model.Event, error) {
		found := false
		for i := range snap.Books {
			if snap.Books[i].ID == b.ID {
				snap.Books[i] = b
				found = true
			}
		}
		if !found {
			return model.Event{}, errNoChange
		}
		return model.Event{Type: model.EventSnapshotReplaced, BookID: b.ID}, nil
	})
}

// RemoveBook drops every book with id and returns the resulting snapshot.
// A missing id leaves the store untouched.
func (s *Service) RemoveBook(ctx context.Context, id string) (model.Snapshot, error) {
	return s.mutate(ctx, func(snap *model.Snapshot) (model.Event, error) {
		kept := make([]model.Book, 0, len(snap.Books))
		for _, b := range snap.Books {
			if b.ID != id {
				kept = append(kept, b)
			}
		}
		if len(kept) == len(snap.Books) {
			return model.Event{}, errNoChange
		}
		snap.Books = kept
		return model.Event{Type: model.EventBookDeleted, BookID: id}, nil
	})
}
