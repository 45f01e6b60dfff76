// Package metric реализует трёхуровневую иерархию документов движка метрик:
// конфигурация метрики, сводка по сущности и курсоры таймлайна по интервалам.
// Пакет является единственным читателем и писателем этих документов.
package metric

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/firebridgekit/Firebridge-sub000/internal/docstore"
	"github.com/firebridgekit/Firebridge-sub000/internal/models"
	"github.com/firebridgekit/Firebridge-sub000/internal/timeline"
)

const configCollection = "metrics"

// MetricName возвращает каноничное имя метрики для пары существительное-глагол.
func MetricName(noun, verb string) string {
	return noun + "-" + verb
}

func entitiesCollection(metricName string) string {
	return configCollection + "/" + metricName + "/entities"
}

func cursorsCollection(metricName, entityID, unit string) string {
	return entitiesCollection(metricName) + "/" + entityID + "/timelines/" + unit + "/cursors"
}

// Delta описывает приращение количества и значения.
type Delta struct {
	Count int64
	Value float64
}

// MetricStore предоставляет доступ к документам метрик поверх документного хранилища.
type MetricStore struct {
	store docstore.Store

	// UpdateSummaryOnIncrement определяет, обновляет ли инкрементный путь
	// сводку по сущности. При false сводку поддерживает только пересчёт.
	UpdateSummaryOnIncrement bool

	now func() time.Time
}

func NewMetricStore(store docstore.Store) *MetricStore {
	return &MetricStore{
		store:                    store,
		UpdateSummaryOnIncrement: true,
		now:                      time.Now,
	}
}

// GetConfig возвращает конфигурацию метрики или nil, если она не задана.
func (s *MetricStore) GetConfig(ctx context.Context, metricName string) (*models.MetricConfig, error) {
	doc, err := s.store.Get(ctx, configCollection, metricName)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return configFromDocument(doc)
}

// SetConfig записывает конфигурацию метрики.
func (s *MetricStore) SetConfig(ctx context.Context, metricName string, cfg models.MetricConfig) error {
	units := make([]any, 0, len(cfg.Units))
	for _, u := range cfg.Units {
		units = append(units, u)
	}

	doc := docstore.Document{"units": units}
	if cfg.Timezone != "" {
		doc["timezone"] = cfg.Timezone
	}

	return s.store.Set(ctx, configCollection, metricName, doc)
}

// ListConfigs возвращает конфигурации всех известных метрик.
func (s *MetricStore) ListConfigs(ctx context.Context) (map[string]models.MetricConfig, error) {
	docs, err := s.store.List(ctx, configCollection)
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.MetricConfig, len(docs))
	for name, doc := range docs {
		cfg, err := configFromDocument(doc)
		if err != nil {
			return nil, err
		}
		out[name] = *cfg
	}
	return out, nil
}

// Ping проверяет доступность документного хранилища.
func (s *MetricStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Entity возвращает обработчик документов одной сущности одной метрики.
func (s *MetricStore) Entity(noun, verb, entityID string) *EntityHandle {
	return &EntityHandle{
		store:  s.store,
		metric: MetricName(noun, verb),
		id:     entityID,
		now:    s.now,
	}
}

// --------------------- EntityHandle ---------------------

type EntityHandle struct {
	store  docstore.Store
	metric string
	id     string
	now    func() time.Time
}

// Summary возвращает сводку по сущности или nil, если событий ещё не было.
func (e *EntityHandle) Summary(ctx context.Context) (*models.EntitySummary, error) {
	doc, err := e.store.Get(ctx, entitiesCollection(e.metric), e.id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return summaryFromDocument(doc)
}

// SetSummary полностью перезаписывает сводку по сущности.
func (e *EntityHandle) SetSummary(ctx context.Context, summary models.EntitySummary) error {
	return e.store.Set(ctx, entitiesCollection(e.metric), e.id, docstore.Document{
		"count":       float64(summary.Count),
		"value":       summary.Value,
		"lastUpdated": summary.LastUpdated.Format(time.RFC3339),
	})
}

// IncrementSummary атомарно увеличивает сводку на delta и обновляет lastUpdated.
func (e *EntityHandle) IncrementSummary(ctx context.Context, delta Delta) error {
	return e.store.Merge(ctx, entitiesCollection(e.metric), e.id, map[string]docstore.FieldValue{
		"count":       docstore.Increment(float64(delta.Count)),
		"value":       docstore.Increment(delta.Value),
		"lastUpdated": docstore.Set(e.now().UTC().Format(time.RFC3339)),
	})
}

// DeleteSummary удаляет сводку вместе со всеми курсорами таймлайна
// по всем единицам времени для этой сущности.
func (e *EntityHandle) DeleteSummary(ctx context.Context) error {
	return e.store.Delete(ctx, entitiesCollection(e.metric), e.id, true)
}

// Timeline возвращает обработчик курсоров одной единицы времени.
func (e *EntityHandle) Timeline(unit, timezone string) *TimelineHandle {
	return &TimelineHandle{
		store:    e.store,
		metric:   e.metric,
		entity:   e.id,
		unit:     unit,
		timezone: timezone,
	}
}

// --------------------- TimelineHandle ---------------------

type TimelineHandle struct {
	store    docstore.Store
	metric   string
	entity   string
	unit     string
	timezone string
}

func (t *TimelineHandle) collection() string {
	return cursorsCollection(t.metric, t.entity, t.unit)
}

// CursorID возвращает детерминированный ключ курсора для интервала,
// содержащего момент at.
func (t *TimelineHandle) CursorID(at time.Time) (string, error) {
	loc, err := timeline.Zone(t.timezone)
	if err != nil {
		return "", err
	}
	return timeline.BucketID(at, t.unit, loc)
}

// SetSection полностью перезаписывает курсор секции.
func (t *TimelineHandle) SetSection(ctx context.Context, section models.TimelineSection) error {
	op, err := t.SectionOperation(section)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, op.Collection, op.ID, op.Doc)
}

// SectionOperation возвращает операцию пакетной записи для секции.
func (t *TimelineHandle) SectionOperation(section models.TimelineSection) (docstore.Operation, error) {
	id, err := t.CursorID(section.StartTime)
	if err != nil {
		return docstore.Operation{}, err
	}

	return docstore.Operation{
		Kind:       docstore.OpSet,
		Collection: t.collection(),
		ID:         id,
		Doc: docstore.Document{
			"startTime":  section.StartTime.Format(time.RFC3339),
			"endTime":    section.EndTime.Format(time.RFC3339),
			"count":      float64(section.Count),
			"value":      section.Value,
			"totalCount": float64(section.TotalCount),
			"totalValue": section.TotalValue,
		},
	}, nil
}

// IncrementSection атомарно увеличивает локальные и накопленные итоги курсора,
// содержащего момент at. Накопленные итоги увеличиваются на ту же дельту:
// одиночное инкрементное обновление не знает итогов других интервалов, поэтому
// корректность накопления требует применения событий в хронологическом порядке;
// авторитетным путём исправления является полный пересчёт.
func (t *TimelineHandle) IncrementSection(ctx context.Context, at time.Time, delta Delta) error {
	loc, err := timeline.Zone(t.timezone)
	if err != nil {
		return err
	}

	start, err := timeline.StartOf(at, t.unit, loc)
	if err != nil {
		return err
	}
	end, err := timeline.Next(start, t.unit)
	if err != nil {
		return err
	}

	return t.store.Merge(ctx, t.collection(), start.Format(time.RFC3339), map[string]docstore.FieldValue{
		"startTime":  docstore.Set(start.Format(time.RFC3339)),
		"endTime":    docstore.Set(end.Format(time.RFC3339)),
		"count":      docstore.Increment(float64(delta.Count)),
		"value":      docstore.Increment(delta.Value),
		"totalCount": docstore.Increment(float64(delta.Count)),
		"totalValue": docstore.Increment(delta.Value),
	})
}

// Sections возвращает материализованные секции таймлайна в хронологическом порядке.
func (t *TimelineHandle) Sections(ctx context.Context) ([]models.TimelineSection, error) {
	docs, err := t.store.List(ctx, t.collection())
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sections := make([]models.TimelineSection, 0, len(ids))
	for _, id := range ids {
		section, err := sectionFromDocument(docs[id])
		if err != nil {
			return nil, fmt.Errorf("cursor %s: %w", id, err)
		}
		sections = append(sections, *section)
	}
	return sections, nil
}

// --------------------- document conversion ---------------------

func configFromDocument(doc docstore.Document) (*models.MetricConfig, error) {
	cfg := models.MetricConfig{}

	switch units := doc["units"].(type) {
	case nil:
	case []any:
		for _, u := range units {
			s, ok := u.(string)
			if !ok {
				return nil, fmt.Errorf("config field units holds non-string element %v", u)
			}
			cfg.Units = append(cfg.Units, s)
		}
	case []string:
		cfg.Units = append(cfg.Units, units...)
	default:
		return nil, fmt.Errorf("config field units has unexpected type %T", doc["units"])
	}

	if tz, ok := doc["timezone"]; ok {
		s, ok := tz.(string)
		if !ok {
			return nil, fmt.Errorf("config field timezone has unexpected type %T", tz)
		}
		cfg.Timezone = s
	}

	return &cfg, nil
}

func summaryFromDocument(doc docstore.Document) (*models.EntitySummary, error) {
	count, err := intField(doc, "count")
	if err != nil {
		return nil, err
	}
	value, err := floatField(doc, "value")
	if err != nil {
		return nil, err
	}
	lastUpdated, err := timeField(doc, "lastUpdated")
	if err != nil {
		return nil, err
	}

	return &models.EntitySummary{Count: count, Value: value, LastUpdated: lastUpdated}, nil
}

func sectionFromDocument(doc docstore.Document) (*models.TimelineSection, error) {
	section := models.TimelineSection{}
	var err error

	if section.StartTime, err = timeField(doc, "startTime"); err != nil {
		return nil, err
	}
	if section.EndTime, err = timeField(doc, "endTime"); err != nil {
		return nil, err
	}
	if section.Count, err = intField(doc, "count"); err != nil {
		return nil, err
	}
	if section.Value, err = floatField(doc, "value"); err != nil {
		return nil, err
	}
	if section.TotalCount, err = intField(doc, "totalCount"); err != nil {
		return nil, err
	}
	if section.TotalValue, err = floatField(doc, "totalValue"); err != nil {
		return nil, err
	}

	return &section, nil
}

func floatField(doc docstore.Document, name string) (float64, error) {
	v, ok := doc[name]
	if !ok {
		return 0, nil
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("field %q has unexpected type %T", name, v)
	}
}

func intField(doc docstore.Document, name string) (int64, error) {
	f, err := floatField(doc, name)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func timeField(doc docstore.Document, name string) (time.Time, error) {
	v, ok := doc[name]
	if !ok {
		return time.Time{}, nil
	}

	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("field %q has unexpected type %T", name, v)
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q: %w", name, err)
	}
	return t, nil
}
