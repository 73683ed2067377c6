package performance

import (
	"time"

	"cpis/internal/domain/cpis"
)

// ScoreRecorder receives one call per scored subject.
type ScoreRecorder interface {
	RecordScore(duration time.Duration, failed bool, dropped int)
}

type Service struct {
	store        StoreAPI
	engine       *cpis.Engine
	workers      int
	historyLimit int
	recorder     ScoreRecorder
}

func NewService(store StoreAPI, engine *cpis.Engine, workers, historyLimit int) *Service {
	return &Service{store: store, engine: engine, workers: workers, historyLimit: historyLimit}
}

func (s *Service) WithRecorder(recorder ScoreRecorder) *Service {
	s.recorder = recorder
	return s
}

func (s *Service) Policy() cpis.Policy {
	return s.engine.Policy()
}
