// Package lifecycle runs time-bound entities (subscriptions, paid listings,
// add-ons, payments) as actors.
//
// Every entity of a kind is owned by one EntityActor, so calls for the same
// entity never interleave. The entity record lives in an indexed collection
// keyed by the kind's Policy.CollectionKey, which makes List and the per-user
// queries work on a point-lookup store. Time-based transitions are driven by
// durable reminders: activation registers an expiry reminder at EndDate, and
// an activation with a future StartDate registers a start reminder instead.
//
//	svc, err := lifecycle.NewService(lifecycle.Policy[Plan]{
//		Kind:          "subscription",
//		CollectionKey: "subscriptions",
//		Duration:      func(e lifecycle.Entity[Plan]) time.Duration { return e.Payload.Period },
//	}, runtime, store, scheduler)
//
//	sub, _ := svc.Create(ctx, lifecycle.Entity[Plan]{UserID: "u-1", Payload: plan})
//	sub, _ = svc.Activate(ctx, sub.ID)
//
// # Transitions
//
//	pending            --activate-->  active | pending_activation (future start date) | failed (check rejected)
//	pending_activation --start----->  active (AutoStart) | ready
//	ready              --activate-->  active
//	active             --expire---->  expired (end date reached)
//	active             --renew----->  active (end date extended)
//	active, pending    --suspend--->  on_hold
//	on_hold            --resume---->  active
//	active, pending_activation, ready  --cancel-->  cancelled
//	any non-terminal   --delete---->  deleted (record kept)
//	pending            --fail------>  failed
//
// An event whose target is the current status succeeds without changes, so a
// repeated reminder or a retried call is harmless. Any other transition not in
// the table returns ErrInvalidTransition and leaves the entity untouched.
//
// Every applied change is appended to Entity.History and handed to the
// configured Notifier.
package lifecycle
