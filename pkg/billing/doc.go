// Package billing defines the entity kinds of the classifieds billing engine
// and binds each of them to a lifecycle policy.
//
// The kinds are Subscription, PayToPublish, PayToFeature, AddOn and Payment.
// They share the lifecycle state machine and differ only in payload and
// policy: collection key, default duration, start behavior and the checks run
// on activation. Policies are built from a Catalog, a YAML document that also
// lists the subscription plans. A default catalog is embedded:
//
//	cat, err := billing.DefaultCatalog()
//	services, err := billing.NewServices(cat, runtime, store, scheduler)
//	sub, err := services.Subscriptions.Create(ctx, lifecycle.Entity[billing.Subscription]{
//		UserID:  "user-1",
//		Payload: billing.Subscription{PlanID: "basic"},
//	})
//
// Amounts are decimal.Decimal values with an ISO 4217 currency code.
package billing
