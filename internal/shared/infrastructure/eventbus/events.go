package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Routing keys for model lifecycle events.
const (
	RoutingKeyModelTrained     = "model.trained"
	RoutingKeyModelTrainFailed = "model.train_failed"
	RoutingKeyModelLoaded      = "model.loaded"
)

// ModelTrainedEvent is published after a training run completes and the new
// artifact has been persisted and swapped in.
type ModelTrainedEvent struct {
	ModelVersion string    `json:"model_version"`
	TrainingRows int       `json:"training_rows"`
	TrainMAE     float64   `json:"train_mae"`
	ValMAE       float64   `json:"val_mae"`
	ValR2        float64   `json:"val_r2"`
	TrainedAt    time.Time `json:"trained_at"`
}

// ModelTrainFailedEvent is published when a training run halts at any stage.
type ModelTrainFailedEvent struct {
	Stage    string    `json:"stage"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// ModelLoadedEvent is published when a persisted model is loaded at startup.
type ModelLoadedEvent struct {
	ModelVersion string    `json:"model_version"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// PublishJSON marshals the event and publishes it under the routing key.
// Publish failures are the caller's to handle; marshal failures are wrapped.
func PublishJSON(ctx context.Context, pub Publisher, routingKey string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", routingKey, err)
	}
	return pub.Publish(ctx, routingKey, payload)
}
