package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// ActorType records the actor type under the key "actor_type".
func ActorType(actorType string) slog.Attr {
	return slog.String("actor_type", actorType)
}

// ActorID records the actor identifier under the key "actor_id".
func ActorID(id string) slog.Attr {
	return slog.String("actor_id", id)
}

// Reminder records the reminder name under the key "reminder".
func Reminder(name string) slog.Attr {
	return slog.String("reminder", name)
}

// Collection records the index record key under the key "collection".
func Collection(key string) slog.Attr {
	return slog.String("collection", key)
}

// Member records an index member key under the key "member".
func Member(key string) slog.Attr {
	return slog.String("member", key)
}

// Kind records the entity kind under the key "kind".
func Kind(kind string) slog.Attr {
	return slog.String("kind", kind)
}

// UserID records the owning user identifier under the key "user_id".
// If id is empty, it returns an empty Attr.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Transition groups the from/to states and the event of a lifecycle change.
func Transition(from, to, event string) slog.Attr {
	return Group("transition",
		slog.String("from", from),
		slog.String("to", to),
		slog.String("event", event),
	)
}

// DueTime records when a reminder is due under the key "due_time".
func DueTime(t time.Time) slog.Attr {
	return slog.Time("due_time", t)
}

// Attempt records the delivery attempt number under the key "attempt".
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}
