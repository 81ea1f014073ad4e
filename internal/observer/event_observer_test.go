package observer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event AnalysisEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                        { return "panicking" }

func TestMetricsObserver_Counts(t *testing.T) {
	publisher := NewEventPublisher()
	metrics := NewMetricsObserver()
	publisher.Subscribe(metrics)
	publisher.Subscribe(panickingObserver{})

	ctx := context.Background()
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisStarted, Filename: "a.jpg"})
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisCompleted, Filename: "a.jpg", ProcessingTime: 200 * time.Millisecond, Success: true})
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisStarted, Filename: "b.jpg"})
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisFailed, Filename: "b.jpg"})
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: SectionFailed, Filename: "a.jpg", Section: "copy_move"})
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: ImageFetchFailed, Filename: "c.jpg"})
	publisher.Flush()

	m := metrics.GetMetrics()
	if m["total_analyses"].(int64) != 2 {
		t.Errorf("Expected 2 analyses, got %v", m["total_analyses"])
	}
	if m["successful_analyses"].(int64) != 1 || m["failed_analyses"].(int64) != 1 {
		t.Errorf("Unexpected success/failure counts: %v", m)
	}
	if m["avg_processing_time_ms"].(int64) != 200 {
		t.Errorf("Expected 200ms average, got %v", m["avg_processing_time_ms"])
	}
	if m["section_failures"].(map[string]int64)["copy_move"] != 1 {
		t.Errorf("Expected one copy_move failure, got %v", m["section_failures"])
	}
	if m["fetch_failures"].(int64) != 1 {
		t.Errorf("Expected one fetch failure, got %v", m["fetch_failures"])
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher()
	metrics := NewMetricsObserver()
	publisher.Subscribe(metrics)
	publisher.Unsubscribe(metrics)

	publisher.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisStarted})
	publisher.Flush()

	if metrics.GetMetrics()["total_analyses"].(int64) != 0 {
		t.Error("Unsubscribed observer should not receive events")
	}
}

func TestLoggingObserver_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	obs := NewLoggingObserver(log)
	obs.OnEvent(context.Background(), AnalysisEvent{
		EventType:    SectionFailed,
		RequestID:    "req-1",
		Filename:     "a.jpg",
		Section:      "ela",
		ErrorMessage: "encode failed",
	})

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"section":"ela"`, `"error":"encode failed"`, `"level":"warning"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log to contain %s, got %s", want, out)
		}
	}
}
