package notifications

import (
	"context"
	"fmt"

	"github.com/markato-labs/markato/internal/identity"
	"github.com/markato-labs/markato/internal/platform/httpx"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, id identity.Identity) ([]Notification, error) {
	return s.repo.ListByUser(ctx, id.UserID)
}

// MarkRead flips the read flag. Only the recipient may touch their
// own notifications.
func (s *Service) MarkRead(ctx context.Context, id identity.Identity, notificationID string) (*Notification, error) {
	n, err := s.repo.Find(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != id.UserID {
		return nil, fmt.Errorf("%w: not your notification", httpx.ErrForbidden)
	}
	return s.repo.MarkRead(ctx, notificationID)
}
