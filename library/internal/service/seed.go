package service

import (
	"context"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func seedSnapshot() model.Snapshot {
	borrowed := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	due := borrowed.AddDate(0, 0, 14)
	return model.Snapshot{
		Categories: []model.Category{
			{ID: "1", Name: "أدب"},
			{ID: "2", Name: "تاريخ"},
			{ID: "3", Name: "علوم"},
			{ID: "4", Name: "تطوير ذات"},
		},
		Books: []model.Book{
			{ID: "1", Name: "ثلاثية غرناطة", Author: "رضوى عاشور", PlacementNumber: "A-101", CategoryID: "1", Status: model.StatusAvailable, CoverImageID: "book1"},
			{ID: "2", Name: "مقدمة ابن خلدون", Author: "ابن خلدون", PlacementNumber: "B-205", CategoryID: "2", Status: model.StatusAvailable, CoverImageID: "book2"},
			{ID: "3", Name: "قصة الخلق", Author: "نيل ديغراس تايسون", PlacementNumber: "C-310", CategoryID: "3", Status: model.StatusRequested, BorrowerName: "أحمد", CoverImageID: "book3"},
			{ID: "4", Name: "فن اللامبالاة", Author: "مارك مانسون", PlacementNumber: "D-415", CategoryID: "4", Status: model.StatusBorrowed, BorrowerName: "فاطمة", BorrowDate: &borrowed, DueDate: &due, CoverImageID: "book4"},
			{ID: "5", Name: "الحرب والسلم", Author: "ليو تولستوي", PlacementNumber: "A-102", CategoryID: "1", Status: model.StatusAvailable, CoverImageID: "book5"},
			{ID: "6", Name: "تاريخ موجز للزمان", Author: "ستيفن هوكينج", PlacementNumber: "C-311", CategoryID: "3", Status: model.StatusAvailable, CoverImageID: "book6"},
		},
	}
}

// Seed writes the sample catalog into a store that has never been saved.
// It reports whether anything was written.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	current, err := s.repo.Load(ctx)
	if err != nil {
		return false, err
	}
	if current.Version != 0 || len(current.Books) > 0 || len(current.Categories) > 0 {
		return false, nil
	}
	saved, err := s.repo.Save(ctx, seedSnapshot())
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			// another instance seeded first
			return false, nil
		}
		return false, err
	}
	s.log.Info("catalog seeded",
		zap.Int("books", len(saved.Books)),
		zap.Int("categories", len(saved.Categories)))
	return true, nil
}
