package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusCancelled: true,
	},
	StatusCancelled: {},
}

var (
	ErrNoItems           = errors.New("order must contain at least one item")
	ErrBadQuantity       = errors.New("order item quantity must be positive")
	ErrBadProductRef     = errors.New("order item product reference is invalid")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

type Service interface {
	Create(ctx context.Context, req Requester, items []ItemInput) (*Order, error)
	Get(ctx context.Context, req Requester, orderID uuid.UUID) (*Order, error)
	List(ctx context.Context, req Requester, f Filter) ([]Order, error)
	Update(ctx context.Context, req Requester, orderID uuid.UUID, newStatus Status, items []ItemInput) (*Order, error)
	Delete(ctx context.Context, req Requester, orderID uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, req Requester, items []ItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	orderID, err := s.repo.Create(ctx, req.UserID, StatusPending, items)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", req.UserID).Msg("service: failed to create order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("user_id", req.UserID).Msg("order created")

	return s.fetch(ctx, orderID)
}

func (s *service) Get(ctx context.Context, req Requester, orderID uuid.UUID) (*Order, error) {
	o, err := s.fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// A foreign order is indistinguishable from a missing one.
	if !req.Staff && o.UserID != req.UserID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *service) List(ctx context.Context, req Requester, f Filter) ([]Order, error) {
	if !req.Staff {
		f.UserID = req.UserID
	}

	orders, err := s.repo.List(ctx, f)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", req.UserID).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) Update(ctx context.Context, req Requester, orderID uuid.UUID, newStatus Status, items []ItemInput) (*Order, error) {
	// Ownership check only; the transition is validated against the status
	// read under the row lock, not this snapshot, so a writer committing in
	// between cannot be silently overwritten.
	if _, err := s.Get(ctx, req, orderID); err != nil {
		return nil, err
	}

	if err := validateItems(items); err != nil {
		return nil, err
	}

	var applied Status
	decide := func(current Status) (Status, error) {
		next := newStatus
		if next == "" {
			next = current
		}
		if next != current && !allowedTransitions[current][next] {
			log.Warn().
				Stringer("order_id", orderID).
				Stringer("current_status", current).
				Stringer("new_status", next).
				Msg("service: rejected status transition")
			return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
		}
		applied = next
		return next, nil
	}

	if err := s.repo.Replace(ctx, orderID, decide, items); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to replace order items")
		return nil, fmt.Errorf("service: failed to update order: %w", err)
	}

	log.Info().
		Stringer("order_id", orderID).
		Stringer("status", applied).
		Int("items", len(items)).
		Msg("order updated")

	return s.fetch(ctx, orderID)
}

func (s *service) Delete(ctx context.Context, req Requester, orderID uuid.UUID) error {
	// Scoping check first, so non-owners get the same answer as a missing id.
	if _, err := s.Get(ctx, req, orderID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, orderID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to delete order")
		return fmt.Errorf("service: failed to delete order: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Msg("order deleted")
	return nil
}

func (s *service) fetch(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to fetch order")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return o, nil
}

func validateItems(items []ItemInput) error {
	for _, item := range items {
		if item.ProductID <= 0 {
			return fmt.Errorf("%w: product id %d", ErrBadProductRef, item.ProductID)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: product %d has quantity %d", ErrBadQuantity, item.ProductID, item.Quantity)
		}
	}
	return nil
}
