package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventhub/internal/domain"
)

type userService struct {
	userRepo       domain.UserRepository
	eventRepo      domain.EventRepository
	contextTimeout time.Duration
}

// NewUserService creates a UserService over the identity and event stores.
func NewUserService(userRepo domain.UserRepository, eventRepo domain.EventRepository, timeout time.Duration) domain.UserService {
	return &userService{userRepo: userRepo, eventRepo: eventRepo, contextTimeout: timeout}
}

func (s *userService) me(ctx context.Context, caller domain.Caller) (*domain.User, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *userService) GetMe(ctx context.Context, caller domain.Caller) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.me(ctx, caller)
}

func (s *userService) UpdateProfile(ctx context.Context, caller domain.Caller, name, displayLabel *string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if name == nil && displayLabel == nil {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}
	user, err := s.me(ctx, caller)
	if err != nil {
		return nil, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
		}
		user.Name = trimmed
	}
	if displayLabel != nil {
		user.DisplayLabel = strings.TrimSpace(*displayLabel)
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (s *userService) LikeEvent(ctx context.Context, caller domain.Caller, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireCaller(caller); err != nil {
		return err
	}
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	if !canView(caller, event) {
		return domain.ErrNotFound
	}
	if err := s.userRepo.AddLikedEvent(ctx, caller.ID, event.ID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("like event: %w", err)
	}
	return nil
}

func (s *userService) UnlikeEvent(ctx context.Context, caller domain.Caller, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireCaller(caller); err != nil {
		return err
	}
	if err := s.userRepo.RemoveLikedEvent(ctx, caller.ID, eventID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("unlike event: %w", err)
	}
	return nil
}

// ListLikedEvents returns the liked events the caller can still see. Deleted
// events drop out silently.
func (s *userService) ListLikedEvents(ctx context.Context, caller domain.Caller) ([]*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	user, err := s.me(ctx, caller)
	if err != nil {
		return nil, err
	}
	events, err := s.eventRepo.ListByIDs(ctx, user.LikedEvents)
	if err != nil {
		return nil, fmt.Errorf("list liked events: %w", err)
	}
	visible := make([]*domain.Event, 0, len(events))
	for _, e := range events {
		if canView(caller, e) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}
