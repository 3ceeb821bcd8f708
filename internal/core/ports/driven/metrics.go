package driven

import "time"

// Metrics records pipeline telemetry.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// ObserveStage records how long one pipeline stage took
	ObserveStage(stage string, d time.Duration)

	// CountAnswer records the outcome of one question
	CountAnswer(outcome string)

	// CountIngestion records a completed ingestion run
	CountIngestion(documents, chunks int)
}

// NopMetrics discards every observation
type NopMetrics struct{}

func (NopMetrics) ObserveStage(string, time.Duration) {}
func (NopMetrics) CountAnswer(string)                 {}
func (NopMetrics) CountIngestion(int, int)            {}
