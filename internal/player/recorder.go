package player

import (
	"context"

	"github.com/glizzus/dank-ditties/internal/repository"
)

// Recorder is told about every track that starts playing.
type Recorder interface {
	RecordPlay(ctx context.Context, record repository.PlayRecord) error
}

type NopRecorder struct{}

func (NopRecorder) RecordPlay(context.Context, repository.PlayRecord) error {
	return nil
}

var (
	_ Recorder = NopRecorder{}
	_ Recorder = (*repository.PostgresPlayHistoryRepository)(nil)
)
