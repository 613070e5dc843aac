package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/kvstore"
)

// CurriculumRepository stores the curriculum records that chapter exports
// read from.
type CurriculumRepository struct {
	store kvstore.Store
}

// NewCurriculumRepository creates a CurriculumRepository backed by store.
func NewCurriculumRepository(store kvstore.Store) *CurriculumRepository {
	return &CurriculumRepository{store: store}
}

// Save writes rec, replacing any previous version.
func (r *CurriculumRepository) Save(ctx context.Context, rec *domain.CurriculumRecord) error {
	weeks, err := json.Marshal(rec.Weeks)
	if err != nil {
		return fmt.Errorf("failed to encode weeks: %w", err)
	}
	likes, err := json.Marshal(rec.Likes)
	if err != nil {
		return fmt.Errorf("failed to encode likes: %w", err)
	}

	item := &kvstore.Item{
		Key: kvstore.Key{Owner: rec.OwnerID, Entity: curriculumEntity(rec.CurriculumID)},
		Attrs: map[string]string{
			"curriculumId":  rec.CurriculumID,
			"jobId":         rec.JobID,
			"subject":       rec.Subject,
			"passion":       rec.Passion,
			"ageRange":      rec.AgeRange,
			"notes":         rec.Notes,
			"likes":         string(likes),
			"weeks":         string(weeks),
			"curriculumKey": rec.CurriculumKey,
			"chapterKey":    rec.ChapterKey,
			"summaryKey":    rec.SummaryKey,
			"fallback":      strconv.FormatBool(rec.Fallback),
			"createdAt":     formatTime(rec.CreatedAt),
		},
	}
	if err := r.store.Put(ctx, item); err != nil {
		return fmt.Errorf("%w: save curriculum %s: %w", domain.ErrStorageFailure, rec.CurriculumID, err)
	}
	return nil
}

// Get loads a curriculum record. A missing record returns an error wrapping
// domain.ErrNotFound.
func (r *CurriculumRepository) Get(ctx context.Context, ownerID, curriculumID string) (*domain.CurriculumRecord, error) {
	item, err := r.store.Get(ctx, kvstore.Key{Owner: ownerID, Entity: curriculumEntity(curriculumID)})
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, fmt.Errorf("curriculum %s: %w", curriculumID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get curriculum %s: %w", curriculumID, err)
	}

	rec := &domain.CurriculumRecord{
		OwnerID:       item.Owner,
		CurriculumID:  curriculumID,
		JobID:         item.Attr("jobId"),
		Subject:       item.Attr("subject"),
		Passion:       item.Attr("passion"),
		AgeRange:      item.Attr("ageRange"),
		Notes:         item.Attr("notes"),
		CurriculumKey: item.Attr("curriculumKey"),
		ChapterKey:    item.Attr("chapterKey"),
		SummaryKey:    item.Attr("summaryKey"),
		CreatedAt:     parseTime(item.Attr("createdAt")),
	}
	rec.Fallback, _ = strconv.ParseBool(item.Attr("fallback"))
	if raw := item.Attr("weeks"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Weeks); err != nil {
			return nil, fmt.Errorf("curriculum %s has malformed weeks: %w", curriculumID, err)
		}
	}
	if raw := item.Attr("likes"); raw != "" && raw != "null" {
		_ = json.Unmarshal([]byte(raw), &rec.Likes)
	}
	return rec, nil
}
