package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	id "hearth/pkg/domain"
	"hearth/pkg/platform/audit"
)

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (s *recordingSink) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) snapshot() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}

func TestWorkerFansOutToEverySink(t *testing.T) {
	inbox := make(chan audit.Event, 4)
	first := &recordingSink{}
	second := &recordingSink{}
	w := NewWorker(inbox, slog.New(slog.NewTextHandler(io.Discard, nil)), first, second)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	personID := id.NewPersonID()
	inbox <- audit.Event{Action: string(audit.ActionClaimIssued), PersonID: personID}

	require.Eventually(t, func() bool {
		return len(first.snapshot()) == 1 && len(second.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, personID, first.snapshot()[0].PersonID)

	cancel()
	<-done
}

func TestWorkerDrainsInboxOnShutdown(t *testing.T) {
	inbox := make(chan audit.Event, 8)
	sink := &recordingSink{}
	w := NewWorker(inbox, slog.New(slog.NewTextHandler(io.Discard, nil)), sink)

	for range 5 {
		inbox <- audit.Event{Action: string(audit.ActionPreferenceWritten)}
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, sink.snapshot(), 5)
}

func TestWorkerFailingSinkDoesNotBlockOthers(t *testing.T) {
	inbox := make(chan audit.Event, 2)
	broken := &recordingSink{err: errors.New("disk full")}
	healthy := &recordingSink{}
	w := NewWorker(inbox, slog.New(slog.NewTextHandler(io.Discard, nil)), broken, healthy)

	inbox <- audit.Event{Action: string(audit.ActionMentionPromoted)}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_ = w.Run(ctx)
	require.Len(t, healthy.snapshot(), 1)
	require.Empty(t, broken.snapshot())
}
