package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
)

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, id string, externalID int64) *domain.Course {
	tb.Helper()
	c := &domain.Course{ID: id, ShortName: id, FullName: "Course " + id, ExternalID: externalID}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID, id, title string, ordinal int) *domain.Document {
	tb.Helper()
	d := &domain.Document{ID: id, CourseID: courseID, Title: title, Ordinal: ordinal}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}
