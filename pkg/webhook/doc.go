// Package webhook delivers entity lifecycle changes to an HTTP endpoint.
//
// A Notifier implements lifecycle.Notifier. Notify only enqueues the change,
// so an actor turn never waits on the network; a background worker posts each
// change as JSON, signed with HMAC-SHA256 over "timestamp.payload", and retries
// temporary failures with exponential backoff.
//
//	n, err := webhook.New(cfg, webhook.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	n.Start()
//	defer n.Stop(ctx)
//
// Receivers check the X-Webhook-Signature and X-Webhook-Timestamp headers
// with Verify.
package webhook
