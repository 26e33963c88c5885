package aggregator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type AggregatorWorker struct {
	aggregator *Aggregator
	workerID   int
	logger     *zap.Logger
}

func NewAggregatorWorker(aggregator *Aggregator, workerID int) *AggregatorWorker {
	return &AggregatorWorker{
		aggregator: aggregator,
		workerID:   workerID,
		logger:     aggregator.logger.With(zap.Int("worker_id", workerID)),
	}
}

func (w *AggregatorWorker) Start(ctx context.Context) {
	defer w.aggregator.workerWg.Done()

	queue, shutdown := w.aggregator.taskQueue, w.aggregator.shutdownCh

	w.logger.Debug("Worker started")

	for {
		select {
		case task := <-queue:
			w.logger.Debug("Processing task", zap.String("task_id", task.ID))
			w.processTask(task)

		case <-shutdown:
			w.logger.Debug("Shutdown signal received, worker stopping")
			return
		case <-ctx.Done():
			w.logger.Debug("Context cancelled, worker stopping")
			return
		}
	}
}

// processTask keeps the first requester's trace but is bounded only by the
// fetch timeout, so one cancelled caller cannot fail the others.
func (w *AggregatorWorker) processTask(task *Task) {
	ctx := task.Context
	if t := w.aggregator.fetchTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	tracer := w.aggregator.tele.GetTracer()
	ctx, span := tracer.Start(ctx, "aggregator.processTask")
	defer span.End()

	span.SetAttributes(
		attribute.String("task_id", task.ID),
		attribute.String("location", task.Location.Name),
		attribute.Int("worker_id", w.workerID),
	)

	data, err := w.aggregator.fetchForecast(ctx, task.Location)

	result := TaskResult{
		Data:  data,
		Error: err,
	}

	key := cacheKey(task.Location)
	if err == nil {
		w.aggregator.setCache(key, data)
		w.logger.Debug("Task completed successfully", zap.String("task_id", task.ID))
	} else {
		w.logger.Error("Task failed", zap.String("task_id", task.ID), zap.Error(err))
	}

	w.aggregator.notifyPendingTasks(key, result)
}
