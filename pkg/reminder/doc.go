// Package reminder schedules durable, actor-owned timers.
//
// A Reminder is identified by (ActorType, ActorID, Name). Registered reminders
// are persisted through an indexed collection on the configured key/value
// store, so a restarted Scheduler re-arms everything on Start. Due reminders
// are handed to a Deliverer, usually an actor.Runtime, which runs them as a
// turn of the owning actor.
//
//	sched, _ := reminder.NewScheduler(store, runtime,
//		reminder.WithMaxConcurrentDeliveries(20),
//	)
//	_ = sched.Register(ctx, reminder.Reminder{
//		ActorType: "subscription",
//		ActorID:   "sub-1",
//		Name:      "expiry",
//		DueTime:   sub.EndDate,
//	})
//	g.Go(sched.Run(ctx))
//
// # Delivery
//
// Delivery is at-least-once: receivers must treat a repeated firing as a no-op.
// Deliveries for different reminders run concurrently up to the configured
// limit. One reminder is never delivered twice at the same time; its next
// firing is armed only after the previous delivery returned.
//
// After a delivery a periodic reminder moves to its next due time. Periods
// missed while the process was down are coalesced into one firing. A one-shot
// reminder is removed, unless it was re-registered during the delivery. A
// failed one-shot delivery is retried with exponential backoff starting at
// WithRetryDelay and capped by WithMaxRetryDelay. Transient failures (see
// Retryable) are retried until they succeed, so a store outage delays a
// reminder but never loses it. Permanent failures (see Permanent) drop the
// reminder at once. Other errors are dropped after WithMaxAttempts, when set.
// Errors and panics raised by the Deliverer are logged and never stop the
// scheduler.
package reminder
