package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/homepage-tone/internal/progress"
)

// LogSink writes each event as a structured debug log line; run summaries are
// logged at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs every event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID.String()),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageRunStart:
			fields = append(fields, zap.String("command", string(evt.Command)), zap.Int("total", evt.Total))
		case progress.StageRunDone:
			fields = append(fields,
				zap.String("command", string(evt.Command)),
				zap.Int("ok", evt.OK),
				zap.Int("total", evt.Total),
				zap.Duration("dur", evt.Dur),
			)
			s.logger.Info("run finished", fields...)
			continue
		case progress.StageFetchDone:
			fields = append(fields,
				zap.String("url", evt.URL),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Int("words", evt.Words),
				zap.Duration("dur", evt.Dur),
			)
		case progress.StageClassifyDone:
			fields = append(fields, zap.String("url", evt.URL), zap.String("label", evt.Label), zap.Duration("dur", evt.Dur))
		case progress.StageFetchError, progress.StageClassifyError:
			fields = append(fields, zap.String("url", evt.URL), zap.String("note", evt.Note))
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
