package workers

import (
	"context"
	"encoding/json"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/surveillance/internal/extraction"
	"github.com/hetulpatel/surveillance/internal/kafka"
	"github.com/hetulpatel/surveillance/internal/logging"
)

type Handler func(context.Context, extraction.RulesRecord) error

// MessageReader is the part of *kafka.Reader a worker consumes from.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

func Run(ctx context.Context, brokers []string, topic, group string, workerCount int, handler Handler) {
	RunWith(ctx, func() MessageReader { return kafka.NewReader(brokers, topic, group) }, workerCount, handler)
}

// RunWith starts workerCount consumers, each with its own reader, and blocks
// until ctx is done and every consumer has returned.
func RunWith(ctx context.Context, newReader func() MessageReader, workerCount int, handler Handler) {
	if workerCount <= 0 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			reader := newReader()
			defer reader.Close()
			consume(ctx, reader, handler)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
}

func consume(ctx context.Context, reader MessageReader, handler Handler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf("worker read error: %v", err)
			continue
		}

		var rec extraction.RulesRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			logging.Errorf("worker unmarshal error: %v", err)
			continue
		}
		if rec.MarketID == "" {
			logging.Warnf("worker skipping rules record without market_id")
			continue
		}

		if handler != nil {
			if err := handler(ctx, rec); err != nil {
				logging.Errorf("worker handler error: %v", err)
			}
		}
	}
}
