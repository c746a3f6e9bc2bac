// Package logger provides a context-aware wrapper around Go's slog package
// adding functional options for configuration, helper attribute constructors,
// and transparent injection of values stored in context.Context.
//
// A single factory, New, creates a *slog.Logger configured by Option
// functions. These options allow you to:
//
//   - Select an output format (text or json)
//   - Set the minimum log level
//   - Supply default slog.Attr values applied to every record
//   - Register ContextExtractor callbacks that inject attributes pulled from
//     a context value every time Handle is invoked.
//
// # Architecture
//
// New picks slog.NewTextHandler or slog.NewJSONHandler based on the configured
// Format and wraps it with LogHandlerDecorator, which runs the registered
// ContextExtractor callbacks before delegating to the underlying handler.
//
// New always installs one extractor of its own: records logged with a context
// produced by WithActor carry an "actor" group with the actor type and id, so
// everything logged inside an actor turn is attributed without extra calls.
// WithoutActorContext turns it off.
//
// Helper constructors such as Group, Error, ActorType, Reminder and Collection
// live in attr.go and keep attribute naming consistent across the engine.
//
// # Usage
//
//	import "github.com/dmitrymomot/actorkit/pkg/logger"
//
//	func main() {
//	    log := logger.New(logger.WithDevelopment("actorhost"))
//	    logger.SetAsDefault(log)
//
//	    ctx := logger.WithActor(context.Background(), "subscription", "sub-1")
//	    log.InfoContext(ctx, "reminder delivered",
//	        logger.Reminder("expiry"),
//	        logger.Duration(time.Since(start)),
//	    )
//	}
//
// # Configuration
//
// Config carries env tags (LOG_SERVICE, APP_ENV, LOG_LEVEL, LOG_FORMAT) and is
// applied with FromConfig. The individual options are:
//
//   - WithDevelopment / WithStaging / WithProduction / WithEnvironment: presets per environment.
//   - WithFormat / WithTextFormatter: override output format.
//   - WithLevel: set a custom slog.Level.
//   - WithAttr: attach static attributes.
//   - WithContextExtractors: inject attributes from context.
//
// # Error Handling
//
// Error and Errors produce attributes only when the supplied error value is
// non-nil, allowing calls like:
//
//	log.Info("operation finished", logger.Error(err))
//
// without an additional nil check.
package logger
