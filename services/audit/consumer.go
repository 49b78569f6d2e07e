package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/taskplane/taskplane/shared/audit"
	"github.com/taskplane/taskplane/shared/models"
)

// AuditConsumer reads audit events off Kafka and persists them as
// audit_records rows, giving the override and graph-mutation trail a
// queryable home.
type AuditConsumer struct {
	reader *kafka.Reader
	db     *gorm.DB
}

// NewAuditConsumer creates a consumer in the audit-service group
func NewAuditConsumer(broker string, db *gorm.DB) *AuditConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          audit.Topic,
		GroupID:        "audit-service",
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})

	return &AuditConsumer{reader: reader, db: db}
}

// Run consumes events until ctx is cancelled
func (ac *AuditConsumer) Run(ctx context.Context) {
	logrus.Info("audit consumer started")

	for {
		readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		msg, err := ac.reader.ReadMessage(readCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logrus.WithField("error", err).Error("failed to read audit message")
			continue
		}

		ac.handleMessage(msg)
	}
}

func (ac *AuditConsumer) handleMessage(msg kafka.Message) {
	var event audit.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logrus.WithFields(logrus.Fields{
			"offset": msg.Offset,
			"error":  err,
		}).Warn("discarding malformed audit event")
		return
	}

	record := models.AuditRecord{
		ActorID:    event.ActorID,
		BrandID:    event.BrandID,
		Action:     event.Type,
		Detail:     event.Detail,
		Override:   event.Override,
		OccurredAt: event.OccurredAt,
	}

	if err := ac.db.Create(&record).Error; err != nil {
		logrus.WithFields(logrus.Fields{
			"type":     event.Type,
			"brand_id": event.BrandID,
			"error":    err,
		}).Error("failed to persist audit record")
		return
	}

	logrus.WithFields(logrus.Fields{
		"type":     event.Type,
		"actor_id": event.ActorID,
		"brand_id": event.BrandID,
		"override": event.Override,
	}).Info("audit record persisted")
}

// Close shuts down the Kafka reader
func (ac *AuditConsumer) Close() error {
	return ac.reader.Close()
}
