// Package actor implements a turn-based virtual actor runtime.
//
// Every actor is addressed by an ID (actor type plus instance id). The first
// call for an ID activates it: the registered Factory builds the actor and its
// optional OnActivate hook runs. Calls to one actor are queued FIFO in its
// mailbox and executed one at a time by a single goroutine, so actor code never
// needs its own locking. Calls to different actors run concurrently.
//
//	rt := actor.NewRuntime(actor.WithIdleTimeout(10 * time.Minute))
//	_ = rt.Register("counter", func(id actor.ID) (actor.Actor, error) {
//		return &Counter{}, nil
//	})
//	go rt.Run(ctx)()
//
//	err := rt.Invoke(ctx, actor.ID{Type: "counter", ID: "c-1"}, func(ctx context.Context, a actor.Actor) error {
//		a.(*Counter).n++
//		return nil
//	})
//
// # Lifecycle
//
// An actor moves Inactive → Activating → Active → Deactivating → Inactive.
// A failed activation fails the call that triggered it with ErrActivationFailed
// and the next call tries again. Actors without queued or running calls are
// deactivated when they stay idle past WithIdleTimeout, on Deactivate, or on
// Stop; OnDeactivate runs as their last turn. A call that arrives while its
// actor is deactivating waits for it to finish and then gets a fresh
// activation, so two instances of one ID never run at the same time.
//
// # Host boundary
//
// Call passes a method name and a serialized argument to actors implementing
// Dispatcher. DeliverReminder hands reminder firings to actors implementing
// ReminderReceiver and makes a Runtime usable as a reminder deliverer.
package actor
