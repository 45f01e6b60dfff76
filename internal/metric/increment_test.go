package metric

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebridgekit/Firebridge-sub000/internal/models"
	"github.com/firebridgekit/Firebridge-sub000/internal/timeline"
)

func TestIncrementWithoutConfig(t *testing.T) {
	ctx := context.Background()
	store, mem := newTestStore()

	err := store.Increment(ctx, "page", "view", "doc-1", IncrementOptions{Count: 1})
	if err != nil {
		t.Fatalf("Increment error: %v", err)
	}

	// Метрика без конфигурации принимает событие без единой записи.
	if len(mem.Collections) != 0 {
		t.Errorf("expected zero writes, got collections %v", mem.Collections)
	}
}

func TestIncrementMultiUnit(t *testing.T) {
	ctx := context.Background()
	store, mem := newTestStore()

	store.SetConfig(ctx, "page-view", models.MetricConfig{
		Units: []string{models.Hour, models.Day},
	})

	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	err := store.Increment(ctx, "page", "view", "doc-1", IncrementOptions{Count: 1, Value: 100, Time: at})
	if err != nil {
		t.Fatalf("Increment error: %v", err)
	}

	hourCol := "metrics/page-view/entities/doc-1/timelines/hour/cursors"
	dayCol := "metrics/page-view/entities/doc-1/timelines/day/cursors"

	hourDoc, ok := mem.Collections[hourCol]["2024-01-15T10:00:00Z"]
	if !ok {
		t.Fatal("hour cursor missing")
	}
	dayDoc, ok := mem.Collections[dayCol]["2024-01-15T00:00:00Z"]
	if !ok {
		t.Fatal("day cursor missing")
	}

	for name, doc := range map[string]map[string]any{"hour": hourDoc, "day": dayDoc} {
		if doc["count"] != float64(1) || doc["value"] != float64(100) {
			t.Errorf("%s cursor local totals: %v", name, doc)
		}
		if doc["totalCount"] != float64(1) || doc["totalValue"] != float64(100) {
			t.Errorf("%s cursor running totals: %v", name, doc)
		}
	}

	if hourDoc["startTime"] != "2024-01-15T10:00:00Z" || hourDoc["endTime"] != "2024-01-15T11:00:00Z" {
		t.Errorf("hour cursor bounds: %v", hourDoc)
	}
}

func TestIncrementAccumulatesWithinBucket(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	store.SetConfig(ctx, "page-view", models.MetricConfig{Units: []string{models.Day}})

	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.Increment(ctx, "page", "view", "doc-1", IncrementOptions{Count: 1, Value: 10, Time: at.Add(time.Duration(i) * time.Hour)})
		if err != nil {
			t.Fatalf("Increment error: %v", err)
		}
	}

	sections, err := store.Entity("page", "view", "doc-1").Timeline(models.Day, "").Sections(ctx)
	if err != nil {
		t.Fatalf("Sections error: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	if sections[0].Count != 3 || sections[0].Value != 30 {
		t.Errorf("section totals: %+v", sections[0])
	}
}

func TestIncrementUpdatesSummary(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	store.SetConfig(ctx, "page-view", models.MetricConfig{Units: []string{models.Day}})

	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	store.Increment(ctx, "page", "view", "doc-1", IncrementOptions{Count: 1, Value: 100, Time: at})
	store.Increment(ctx, "page", "view", "doc-1", IncrementOptions{Count: 2, Value: 50, Time: at})

	summary, err := store.Entity("page", "view", "doc-1").Summary(ctx)
	if err != nil {
		t.Fatalf("Summary error: %v", err)
	}
	if summary == nil {
		t.Fatal("summary missing after increments")
	}
	// Сводка растёт один раз за вызов, а не по разу на единицу времени.
	if summary.Count != 3 || summary.Value != 150 {
		t.Errorf("summary: got count=%d value=%v, want 3 and 150", summary.Count, summary.Value)
	}
}

func TestIncrementSummaryPolicyOff(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	store.UpdateSummaryOnIncrement = false

	store.SetConfig(ctx, "page-view", models.MetricConfig{Units: []string{models.Day}})

	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if err := store.Increment(ctx, "page", "view", "doc-1", IncrementOptions{Count: 1, Time: at}); err != nil {
		t.Fatalf("Increment error: %v", err)
	}

	summary, err := store.Entity("page", "view", "doc-1").Summary(ctx)
	if err != nil {
		t.Fatalf("Summary error: %v", err)
	}
	if summary != nil {
		t.Errorf("summary must stay untouched when policy is off, got %+v", summary)
	}
}

func TestIncrementZeroTimeUsesNow(t *testing.T) {
	ctx := context.Background()
	store, mem := newTestStore()

	store.SetConfig(ctx, "page-view", models.MetricConfig{Units: []string{models.Hour}})

	if err := store.Increment(ctx, "page", "view", "doc-1", IncrementOptions{Count: 1}); err != nil {
		t.Fatalf("Increment error: %v", err)
	}

	col := "metrics/page-view/entities/doc-1/timelines/hour/cursors"
	if _, ok := mem.Collections[col]["2024-06-18T12:00:00Z"]; !ok {
		t.Errorf("cursor not placed in the bucket of the injected clock: %v", mem.Collections[col])
	}
}

func TestIncrementInvalidInstant(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	store.SetConfig(ctx, "page-view", models.MetricConfig{Units: []string{models.Hour}})

	err := store.Increment(ctx, "page", "view", "doc-1", IncrementOptions{
		Count: 1,
		Time:  time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, timeline.ErrInvalidInstant) {
		t.Errorf("expected ErrInvalidInstant, got %v", err)
	}
}

func TestIncrementDSTFallBackSharedCursor(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	store.SetConfig(ctx, "page-view", models.MetricConfig{
		Units:    []string{models.Hour},
		Timezone: "America/New_York",
	})

	// Оба прохода повторяющегося часа пишут в один и тот же курсор.
	first := time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC)  // 01:30 EDT
	second := time.Date(2024, 11, 3, 6, 30, 0, 0, time.UTC) // 01:30 EST

	store.Increment(ctx, "page", "view", "doc-1", IncrementOptions{Count: 1, Time: first})
	store.Increment(ctx, "page", "view", "doc-1", IncrementOptions{Count: 1, Time: second})

	sections, err := store.Entity("page", "view", "doc-1").Timeline(models.Hour, "America/New_York").Sections(ctx)
	if err != nil {
		t.Fatalf("Sections error: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	if sections[0].Count != 2 {
		t.Errorf("count: got %d, want 2", sections[0].Count)
	}
}
