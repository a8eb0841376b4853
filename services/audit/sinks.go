// Package auditsvc delivers engine events: to the logs, the audit_events table and teachers' inboxes.
// No sink ever fails its caller; delivery problems are logged.
package auditsvc

import (
	"context"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/audit"
)

// LogSink writes every event to logger.
type LogSink struct {
	logger core.Logger
}

var _ audit.Sink = (*LogSink)(nil)

func NewLogSink(logger core.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) LogEvent(_ context.Context, evt audit.Event) {
	evt = evt.Stamped()
	fields := map[string]interface{}{
		"event":   evt.ID,
		"type":    string(evt.Type),
		"actor":   evt.ActorLabel,
		"teacher": evt.TeacherID,
		"ref":     evt.RefID,
	}
	if evt.Amount != nil {
		fields["amount"] = evt.Amount.String()
	}
	s.logger.Info(evt.Description, fields)
}

// StoreSink appends every event to the audit trail.
type StoreSink struct {
	repo   audit.Repository
	logger core.Logger
}

var _ audit.Sink = (*StoreSink)(nil)

func NewStoreSink(repo audit.Repository, logger core.Logger) *StoreSink {
	return &StoreSink{repo: repo, logger: logger}
}

func (s *StoreSink) LogEvent(ctx context.Context, evt audit.Event) {
	evt = evt.Stamped()
	if err := s.repo.AppendEvent(ctx, evt); err != nil {
		s.logger.Error("storing audit event "+evt.ID, err, map[string]interface{}{"type": string(evt.Type)})
	}
}

type multi []audit.Sink

// Multi hands every event to each of sinks in turn, stamped once so they all agree on id and time.
func Multi(sinks ...audit.Sink) audit.Sink {
	return multi(sinks)
}

func (m multi) LogEvent(ctx context.Context, evt audit.Event) {
	evt = evt.Stamped()
	for _, s := range m {
		s.LogEvent(ctx, evt)
	}
}
