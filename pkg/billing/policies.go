package billing

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/actorkit/pkg/lifecycle"
)

func basePolicy[P any](cat *Catalog, kind string) (lifecycle.Policy[P], error) {
	k, err := cat.Kind(kind)
	if err != nil {
		return lifecycle.Policy[P]{}, err
	}
	return lifecycle.Policy[P]{
		Kind:           kind,
		CollectionKey:  k.CollectionKey,
		ExpiryReminder: k.ExpiryReminder,
		StartReminder:  k.StartReminder,
		AutoStart:      k.AutoStart,
		Duration:       func(lifecycle.Entity[P]) time.Duration { return k.Duration },
	}, nil
}

// SubscriptionPolicy runs subscriptions for the plan duration. Activating a
// subscription to a plan missing from the catalog fails it.
func SubscriptionPolicy(cat *Catalog) (lifecycle.Policy[Subscription], error) {
	p, err := basePolicy[Subscription](cat, KindSubscription)
	if err != nil {
		return p, err
	}
	fallback := p.Duration
	p.Validate = Subscription.Validate
	p.Duration = func(e lifecycle.Entity[Subscription]) time.Duration {
		if plan, err := cat.Plan(e.Payload.PlanID); err == nil && plan.Duration > 0 {
			return plan.Duration
		}
		return fallback(e)
	}
	p.CheckActivation = func(e lifecycle.Entity[Subscription]) error {
		plan, err := cat.Plan(e.Payload.PlanID)
		if err != nil {
			return err
		}
		if e.Payload.Currency != "" && e.Payload.Currency != plan.Currency {
			return fmt.Errorf("%w: plan %s is sold in %s", ErrInvalidCurrency, plan.ID, plan.Currency)
		}
		return nil
	}
	return p, nil
}

// PayToPublishPolicy keeps a listing published for the kind duration.
func PayToPublishPolicy(cat *Catalog) (lifecycle.Policy[PayToPublish], error) {
	p, err := basePolicy[PayToPublish](cat, KindPayToPublish)
	if err != nil {
		return p, err
	}
	p.Validate = PayToPublish.Validate
	p.CheckActivation = func(e lifecycle.Entity[PayToPublish]) error {
		return requirePaid(e.Payload.Price)
	}
	return p, nil
}

// PayToFeaturePolicy keeps a listing promoted for the kind duration.
func PayToFeaturePolicy(cat *Catalog) (lifecycle.Policy[PayToFeature], error) {
	p, err := basePolicy[PayToFeature](cat, KindPayToFeature)
	if err != nil {
		return p, err
	}
	p.Validate = PayToFeature.Validate
	p.CheckActivation = func(e lifecycle.Entity[PayToFeature]) error {
		return requirePaid(e.Payload.Price)
	}
	return p, nil
}

// AddOnPolicy only activates add-ons offered by the catalog.
func AddOnPolicy(cat *Catalog) (lifecycle.Policy[AddOn], error) {
	p, err := basePolicy[AddOn](cat, KindAddOn)
	if err != nil {
		return p, err
	}
	p.Validate = AddOn.Validate
	p.CheckActivation = func(e lifecycle.Entity[AddOn]) error {
		offer, err := cat.AddOn(e.Payload.AddOnID)
		if err != nil {
			return err
		}
		if e.Payload.Currency != offer.Currency {
			return fmt.Errorf("%w: add-on %s is sold in %s", ErrInvalidCurrency, offer.ID, offer.Currency)
		}
		return nil
	}
	return p, nil
}

// PaymentPolicy activates payments with a positive amount. Payments without a
// configured duration never expire.
func PaymentPolicy(cat *Catalog) (lifecycle.Policy[Payment], error) {
	p, err := basePolicy[Payment](cat, KindPayment)
	if err != nil {
		return p, err
	}
	p.Validate = Payment.Validate
	p.CheckActivation = func(e lifecycle.Entity[Payment]) error {
		return requirePaid(e.Payload.Amount)
	}
	return p, nil
}
