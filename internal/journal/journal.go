// Package journal keeps a local, append-only history of submitted
// compositions in a JetStream stream. Wizard state itself is never stored.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mark3labs/automatr/internal/logger"
	"github.com/mark3labs/automatr/internal/nats"
)

// Event is one entry of the journal stream.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`   // submission, outcome
	Action    string          `json:"action"` // submitted, created, failed
	Meta      json.RawMessage `json:"meta"`
	Data      string          `json:"data"`
}

// Outcome is the result of one create request.
type Outcome struct {
	StepID string `json:"step_id"`
	Action string `json:"action"` // "service/event"
	AreaID string `json:"area_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the automation was created.
func (o Outcome) OK() bool { return o.Error == "" }

// Submission is one press of the submit button.
type Submission struct {
	ID          string    `json:"id"`
	AreaName    string    `json:"area_name"`
	Trigger     string    `json:"trigger"` // "service/event"
	SubmittedAt time.Time `json:"submitted_at"`
	Outcomes    []Outcome `json:"outcomes"`
}

// Created counts successful outcomes.
func (s *Submission) Created() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed counts failed outcomes.
func (s *Submission) Failed() int {
	return len(s.Outcomes) - s.Created()
}

// Store appends to and replays the journal.
type Store struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	broker *nats.Broker // owned when opened through Open
}

// NewStore wraps an existing stream.
func NewStore(js jetstream.JetStream, stream jetstream.Stream) *Store {
	return &Store{js: js, stream: stream}
}

// Open starts an embedded server under dataDir and returns a store that owns
// it. Close releases it.
func Open(ctx context.Context, dataDir string) (*Store, error) {
	broker, err := nats.Start(filepath.Join(dataDir, "journal"))
	if err != nil {
		return nil, fmt.Errorf("starting journal: %w", err)
	}
	stream, err := nats.SetupStream(ctx, broker.JS)
	if err != nil {
		_ = broker.Close()
		return nil, fmt.Errorf("setting up journal stream: %w", err)
	}
	s := NewStore(broker.JS, stream)
	s.broker = broker
	return s, nil
}

// Close stops the embedded server if the store owns one.
func (s *Store) Close() error {
	return s.broker.Close()
}

// PublishEvent appends an event.
func (s *Store) PublishEvent(ctx context.Context, event Event) (*jetstream.PubAck, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := nats.SubjectForEvent(event.Type)
	ack, err := s.js.Publish(ctx, subject, data)
	if err != nil {
		logger.Error("Failed to publish event to subject %s: %v", subject, err)
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}
	logger.Debug("Journal event published: type=%s action=%s seq=%d", event.Type, event.Action, ack.Sequence)
	return ack, nil
}

type submissionMeta struct {
	Trigger string `json:"trigger"`
	Actions int    `json:"actions"`
}

type outcomeMeta struct {
	SubmissionID string `json:"submission_id"`
	Outcome
}

// Record appends a submission and each of its outcomes. The submission gets
// an id and timestamp when it has none.
func (s *Store) Record(ctx context.Context, sub Submission) (Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}

	meta, _ := json.Marshal(submissionMeta{Trigger: sub.Trigger, Actions: len(sub.Outcomes)})
	if _, err := s.PublishEvent(ctx, Event{
		ID:        sub.ID,
		Timestamp: sub.SubmittedAt,
		Type:      nats.EventTypeSubmission,
		Action:    "submitted",
		Meta:      meta,
		Data:      sub.AreaName,
	}); err != nil {
		return sub, err
	}

	for _, o := range sub.Outcomes {
		action := "created"
		if !o.OK() {
			action = "failed"
		}
		meta, _ := json.Marshal(outcomeMeta{SubmissionID: sub.ID, Outcome: o})
		if _, err := s.PublishEvent(ctx, Event{
			ID:        uuid.NewString(),
			Timestamp: sub.SubmittedAt,
			Type:      nats.EventTypeOutcome,
			Action:    action,
			Meta:      meta,
		}); err != nil {
			return sub, err
		}
	}
	return sub, nil
}

// State is the journal replayed.
type State struct {
	Submissions map[string]*Submission
}

// Apply reduces one event into the state.
func (st *State) Apply(event Event) {
	switch event.Type {
	case nats.EventTypeSubmission:
		var meta submissionMeta
		if err := json.Unmarshal(event.Meta, &meta); err != nil {
			logger.Warn("Malformed submission meta %s: %v", event.ID, err)
		}
		st.Submissions[event.ID] = &Submission{
			ID:          event.ID,
			AreaName:    event.Data,
			Trigger:     meta.Trigger,
			SubmittedAt: event.Timestamp,
		}
	case nats.EventTypeOutcome:
		var meta outcomeMeta
		if err := json.Unmarshal(event.Meta, &meta); err != nil {
			logger.Warn("Malformed outcome meta %s: %v", event.ID, err)
			return
		}
		sub, ok := st.Submissions[meta.SubmissionID]
		if !ok {
			logger.Warn("Outcome %s references unknown submission %s", event.ID, meta.SubmissionID)
			return
		}
		sub.Outcomes = append(sub.Outcomes, meta.Outcome)
	}
}

// List returns submissions oldest first.
func (st *State) List() []*Submission {
	out := make([]*Submission, 0, len(st.Submissions))
	for _, s := range st.Submissions {
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// LoadState replays the whole journal.
func (s *Store) LoadState(ctx context.Context) (*State, error) {
	consumer, err := s.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: nats.SubjectAll(),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	state := &State{Submissions: make(map[string]*Submission)}

	const batchSize = 1000
	total, malformed := 0, 0
	for {
		msgs, err := consumer.FetchNoWait(batchSize)
		if err != nil {
			break
		}
		n := 0
		for msg := range msgs.Messages() {
			n++
			total++
			var event Event
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				malformed++
				_ = msg.Ack()
				continue
			}
			state.Apply(event)
			_ = msg.Ack()
		}
		if n < batchSize {
			break
		}
	}

	if malformed > 0 {
		logger.Warn("Skipped %d malformed journal events", malformed)
	}
	logger.Debug("Journal loaded: %d events, %d submissions", total, len(state.Submissions))
	return state, nil
}
