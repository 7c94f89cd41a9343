package scanlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knowmystatus/internal/metrics"
	"knowmystatus/internal/queue"
	"knowmystatus/internal/teacher"
)

// MessageType tags scan events on the queue.
const MessageType = "scan"

// Publisher appends scan events to the queue. Failures are logged and
// counted, never returned.
type Publisher struct {
	q   queue.Queue
	log *zap.Logger
	now func() time.Time
}

func NewPublisher(q queue.Queue, log *zap.Logger) *Publisher {
	return &Publisher{q: q, log: log, now: time.Now}
}

// Record publishes a scan of teacherID from ip.
func (p *Publisher) Record(ctx context.Context, teacherID, ip string) {
	evt := teacher.ScanEvent{
		ID:        uuid.NewString(),
		TeacherID: teacherID,
		ScannedAt: p.now().UTC(),
		IPAddress: ip,
	}
	body, err := json.Marshal(evt)
	if err == nil {
		err = p.q.Publish(ctx, queue.Message{Type: MessageType, Body: body})
	}
	if err != nil {
		metrics.ScanLogFailures.Inc()
		p.log.Warn("scan log publish failed", zap.String("teacher_id", teacherID), zap.Error(err))
	}
}

// ScanWriter is the part of the record store the consumer needs.
type ScanWriter interface {
	InsertScan(ctx context.Context, evt teacher.ScanEvent) error
}

// Consumer drains scan events from the queue into the record store.
type Consumer struct {
	q     queue.Queue
	store ScanWriter
	log   *zap.Logger
}

func NewConsumer(q queue.Queue, store ScanWriter, log *zap.Logger) *Consumer {
	return &Consumer{q: q, store: store, log: log}
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.q.Consume(ctx)
	if err != nil {
		return err
	}
	c.log.Info("scan log consumer started")
	for msg := range msgs {
		c.handle(ctx, msg)
	}
	c.log.Info("scan log consumer stopped")
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg queue.Message) {
	if msg.Type != MessageType {
		c.log.Warn("unexpected message type", zap.String("type", msg.Type))
		return
	}
	var evt teacher.ScanEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		metrics.ScanLogFailures.Inc()
		c.log.Warn("invalid scan event", zap.Error(err))
		return
	}
	if err := c.store.InsertScan(ctx, evt); err != nil {
		metrics.ScanLogFailures.Inc()
		c.log.Warn("insert scan failed", zap.String("teacher_id", evt.TeacherID), zap.Error(err))
		return
	}
	c.log.Debug("scan recorded", zap.String("teacher_id", evt.TeacherID))
}
