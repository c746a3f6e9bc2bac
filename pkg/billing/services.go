package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/lifecycle"
)

// Services holds one lifecycle service per kind.
type Services struct {
	Catalog       *Catalog
	Subscriptions *lifecycle.Service[Subscription]
	PayToPublish  *lifecycle.Service[PayToPublish]
	PayToFeature  *lifecycle.Service[PayToFeature]
	AddOns        *lifecycle.Service[AddOn]
	Payments      *lifecycle.Service[Payment]
}

// NewServices builds a service for every kind in cat and registers the entity
// actor types on host.
func NewServices(cat *Catalog, host lifecycle.Host, store kvstore.Store, reminders lifecycle.Reminders, opts ...lifecycle.Option) (*Services, error) {
	if cat == nil {
		return nil, fmt.Errorf("%w: nil catalog", ErrInvalidCatalog)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	s := &Services{Catalog: cat}
	var err error
	if s.Subscriptions, err = newService(cat, SubscriptionPolicy, host, store, reminders, opts); err != nil {
		return nil, err
	}
	if s.PayToPublish, err = newService(cat, PayToPublishPolicy, host, store, reminders, opts); err != nil {
		return nil, err
	}
	if s.PayToFeature, err = newService(cat, PayToFeaturePolicy, host, store, reminders, opts); err != nil {
		return nil, err
	}
	if s.AddOns, err = newService(cat, AddOnPolicy, host, store, reminders, opts); err != nil {
		return nil, err
	}
	if s.Payments, err = newService(cat, PaymentPolicy, host, store, reminders, opts); err != nil {
		return nil, err
	}
	return s, nil
}

func newService[P any](
	cat *Catalog,
	policy func(*Catalog) (lifecycle.Policy[P], error),
	host lifecycle.Host,
	store kvstore.Store,
	reminders lifecycle.Reminders,
	opts []lifecycle.Option,
) (*lifecycle.Service[P], error) {
	p, err := policy(cat)
	if err != nil {
		return nil, err
	}
	return lifecycle.NewService(p, host, store, reminders, opts...)
}

// List returns every entity of kind.
func (s *Services) List(ctx context.Context, kind string) (any, error) {
	switch kind {
	case KindSubscription:
		return s.Subscriptions.List(ctx)
	case KindPayToPublish:
		return s.PayToPublish.List(ctx)
	case KindPayToFeature:
		return s.PayToFeature.List(ctx)
	case KindAddOn:
		return s.AddOns.List(ctx)
	case KindPayment:
		return s.Payments.List(ctx)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}

// Repair drops dangling members from the index of kind.
func (s *Services) Repair(ctx context.Context, kind string) (int, error) {
	switch kind {
	case KindSubscription:
		return s.Subscriptions.Collection().Repair(ctx, s.Subscriptions.Policy().CollectionKey)
	case KindPayToPublish:
		return s.PayToPublish.Collection().Repair(ctx, s.PayToPublish.Policy().CollectionKey)
	case KindPayToFeature:
		return s.PayToFeature.Collection().Repair(ctx, s.PayToFeature.Policy().CollectionKey)
	case KindAddOn:
		return s.AddOns.Collection().Repair(ctx, s.AddOns.Policy().CollectionKey)
	case KindPayment:
		return s.Payments.Collection().Repair(ctx, s.Payments.Policy().CollectionKey)
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}

// ListingQuota sums the listing quota of the active subscriptions of userID.
func (s *Services) ListingQuota(ctx context.Context, userID string) (int, error) {
	subs, err := s.Subscriptions.ActiveForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	quota := 0
	for _, sub := range subs {
		if plan, err := s.Catalog.Plan(sub.Payload.PlanID); err == nil {
			quota += plan.ListingQuota
		}
	}
	return quota, nil
}

func requirePaid(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s is not positive", ErrInvalidAmount, amount)
	}
	return nil
}
