package logger

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.uber.org/zap"
)

// MongoMonitor logs MongoDB commands through zap. Failures are logged as
// errors, commands slower than SlowThreshold as warnings, and everything
// else at debug level.
type MongoMonitor struct {
	ZapLogger     *zap.Logger
	SlowThreshold time.Duration

	// commands started but not yet finished, keyed by request ID
	inflight sync.Map
}

type startedCommand struct {
	database  string
	statement string
}

// NewMongoMonitor creates a command monitor for the MongoDB client.
func NewMongoMonitor(zapLogger *zap.Logger, slowThreshold time.Duration) *MongoMonitor {
	return &MongoMonitor{ZapLogger: zapLogger, SlowThreshold: slowThreshold}
}

// CommandMonitor returns the driver hooks backed by this monitor.
func (m *MongoMonitor) CommandMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started:   m.started,
		Succeeded: m.succeeded,
		Failed:    m.failed,
	}
}

func (m *MongoMonitor) started(_ context.Context, evt *event.CommandStartedEvent) {
	if !m.ZapLogger.Core().Enabled(zap.DebugLevel) && m.SlowThreshold == 0 {
		return
	}
	m.inflight.Store(evt.RequestID, startedCommand{
		database:  evt.DatabaseName,
		statement: truncate(evt.Command.String()),
	})
}

func (m *MongoMonitor) succeeded(ctx context.Context, evt *event.CommandSucceededEvent) {
	started := m.take(evt.RequestID)
	fields := []zap.Field{
		zap.String("command", evt.CommandName),
		zap.Duration("elapsed", evt.Duration),
	}
	if started.statement != "" {
		fields = append(fields,
			zap.String("database", started.database),
			zap.String("statement", started.statement),
		)
	}

	logger := WithContext(ctx, m.ZapLogger)
	if m.SlowThreshold != 0 && evt.Duration > m.SlowThreshold {
		logger.Warn("mongo slow command", append(fields, zap.Duration("threshold", m.SlowThreshold))...)
		return
	}
	logger.Debug("mongo command", fields...)
}

func (m *MongoMonitor) failed(ctx context.Context, evt *event.CommandFailedEvent) {
	started := m.take(evt.RequestID)
	WithContext(ctx, m.ZapLogger).Error("mongo command error",
		zap.String("command", evt.CommandName),
		zap.String("database", started.database),
		zap.String("statement", started.statement),
		zap.Duration("elapsed", evt.Duration),
		zap.String("failure", evt.Failure),
	)
}

func (m *MongoMonitor) take(requestID int64) startedCommand {
	v, ok := m.inflight.LoadAndDelete(requestID)
	if !ok {
		return startedCommand{}
	}
	return v.(startedCommand)
}
