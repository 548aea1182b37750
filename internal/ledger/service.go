package ledger

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/dripspot/dripspot-backend/pkg/db/models"
)

// Service records webhook event ids durably so replays can be detected after
// any cache expiry.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, eventID, eventType string) (alreadySeen bool, err error)
	Seen(ctx context.Context, eventID string) (bool, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

// Record appends the event id. It reports alreadySeen=true when a previous
// delivery landed the row first; the caller must then skip all side effects.
func (s *service) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, fmt.Errorf("event id is required")
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, &models.ProcessedEvent{
		EventID: eventID,
		Type:    strings.TrimSpace(eventType),
	})
	if err != nil {
		return false, err
	}
	return !inserted, nil
}

func (s *service) Seen(ctx context.Context, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return false, fmt.Errorf("event id is required")
	}
	return s.repo.Exists(ctx, eventID)
}
