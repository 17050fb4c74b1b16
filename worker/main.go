package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/reflink/backend/internal/config"
	"github.com/DeafMist/reflink/backend/internal/dedupe"
	"github.com/DeafMist/reflink/backend/internal/elasticsearch"
	"github.com/DeafMist/reflink/backend/internal/logger"
	"github.com/DeafMist/reflink/backend/internal/models"
	"github.com/DeafMist/reflink/backend/internal/processing"
)

// extractionNotice is published when an extraction for a document finishes.
type extractionNotice struct {
	DocumentID   string             `json:"document_id"`
	ExtractionID string             `json:"extraction_id"`
	Extracted    string             `json:"extracted"`
	References   []models.Reference `json:"references"`
}

type referenceIndexer interface {
	IndexReferenceSet(ctx context.Context, set models.ReferenceSet) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

const dlqAttempts = 5

func main() {
	log := logger.New("worker")
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded", slog.Any("err", err))
	}

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = esClient.EnsureIndex(indexCtx)
	cancel()
	if err != nil {
		log.Error("ensure index", slog.Any("err", err))
		os.Exit(1)
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commits only
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        dlqTopic,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, cache, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)
			if !sendToDLQ(ctx, log, dlqWriter, msg, err, time.Second) {
				// Leave uncommitted so the message is redelivered after restart.
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				if ctx.Err() != nil {
					return
				}
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// processMessage turns one extraction notice into a stored reference set.
// Replayed notices are skipped.
func processMessage(ctx context.Context, log *slog.Logger, indexer referenceIndexer, cache *dedupe.Cache, msg kafka.Message) error {
	var notice extractionNotice
	if err := json.Unmarshal(msg.Value, &notice); err != nil {
		return fmt.Errorf("decode notice: %w", err)
	}

	documentID := strings.TrimSpace(notice.DocumentID)
	if documentID == "" {
		return errors.New("notice has no document_id")
	}

	refs := notice.References
	if refs == nil {
		refs = []models.Reference{}
	}
	if assigned := processing.AssignIdentifiers(refs); assigned > 0 {
		log.Debug("assigned reference identifiers",
			slog.String("document_id", documentID),
			slog.Int("count", assigned),
		)
	}

	set := models.ReferenceSet{
		DocumentID:   documentID,
		ExtractionID: strings.TrimSpace(notice.ExtractionID),
		Extracted:    parseTimestamp(notice.Extracted),
		References:   refs,
	}

	key := processing.BuildSetKey(set)
	if cache.IsSeen(key) {
		log.Debug("duplicate extraction", slog.String("key", key))
		return nil
	}

	if set.ExtractionID == "" {
		set.ExtractionID = uuid.NewString()
	}
	if set.Extracted.IsZero() {
		set.Extracted = time.Now().UTC()
	}

	if err := indexer.IndexReferenceSet(ctx, set); err != nil {
		return err
	}

	cache.MarkSeen(key)
	log.Info("indexed references",
		slog.String("document_id", set.DocumentID),
		slog.String("extraction_id", set.ExtractionID),
		slog.Int("references", len(set.References)),
		slog.Int("dedupe_keys", cache.Len()),
	)
	return nil
}

// sendToDLQ publishes msg with error context to the dead letter topic,
// backing off exponentially from baseDelay between attempts.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error, baseDelay time.Duration) bool {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
	)
	dlqMsg := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}

	for attempt := range dlqAttempts {
		err := w.WriteMessages(ctx, dlqMsg)
		if err == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := baseDelay * time.Duration(1<<uint(attempt))
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts.UTC()
		}
	}

	return time.Time{}
}
