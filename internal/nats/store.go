package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName    = "automatr_journal"
	subjectPrefix = "automatr.journal"

	// Event types
	EventTypeSubmission = "submission"
	EventTypeOutcome    = "outcome"
)

// Retention is how long journal events are kept.
const Retention = 90 * 24 * time.Hour

// SubjectForEvent returns the subject for an event type.
// Example: "automatr.journal.outcome"
func SubjectForEvent(eventType string) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, eventType)
}

// SubjectAll matches every journal event.
func SubjectAll() string {
	return subjectPrefix + ".>"
}

// SetupStream creates or updates the journal stream.
func SetupStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{SubjectAll()},
		Storage:  jetstream.FileStorage,
		MaxAge:   Retention,
	})
}
