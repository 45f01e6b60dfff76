package metric

import (
	"context"

	"github.com/firebridgekit/Firebridge-sub000/internal/docstore"
	"github.com/firebridgekit/Firebridge-sub000/internal/models"
	"github.com/firebridgekit/Firebridge-sub000/internal/timeline"
)

// UpdateOptions задаёт параметры полного пересчёта.
type UpdateOptions struct {
	// StartingCount задаёт стартовое смещение накопленного количества.
	StartingCount int64

	// StartingValue задаёт стартовое смещение накопленного значения.
	StartingValue float64

	// Clean определяет, удалять ли прежнюю сводку и все курсоры таймлайна
	// перед пересчётом.
	Clean bool
}

// DefaultUpdateOptions возвращает параметры пересчёта по умолчанию.
func DefaultUpdateOptions() UpdateOptions {
	return UpdateOptions{Clean: true}
}

// Update пересчитывает метрику одной сущности по полной истории событий.
// Очистка по флагу Clean выполняется даже при пустой истории: пересчёт с
// clean=true всегда приводит хранилище к согласованному состоянию. Секции всех
// единиц времени записываются одной пакетной записью, после чего сводка
// перезаписывается финальными накопленными итогами последней единицы — они
// совпадают между единицами, поскольку все единицы агрегируют один и тот же
// список событий.
func (s *MetricStore) Update(ctx context.Context, noun, verb, entityID string, events []models.TrackableEvent, opts UpdateOptions) error {
	cfg, err := s.GetConfig(ctx, MetricName(noun, verb))
	if err != nil {
		return err
	}

	entity := s.Entity(noun, verb, entityID)

	if opts.Clean {
		if err := entity.DeleteSummary(ctx); err != nil {
			return err
		}
	}

	if cfg == nil || len(cfg.Units) == 0 || len(events) == 0 {
		return nil
	}

	var ops []docstore.Operation
	var last []models.TimelineSection

	for _, unit := range cfg.Units {
		sections, err := timeline.Build(events, timeline.BuildOptions{
			Unit:          unit,
			Timezone:      cfg.Timezone,
			StartingCount: opts.StartingCount,
			StartingValue: opts.StartingValue,
		})
		if err != nil {
			return err
		}

		handle := entity.Timeline(unit, cfg.Timezone)
		for _, section := range sections {
			op, err := handle.SectionOperation(section)
			if err != nil {
				return err
			}
			ops = append(ops, op)
		}

		if len(sections) > 0 {
			last = sections
		}
	}

	if err := s.store.BatchWrite(ctx, ops); err != nil {
		return err
	}

	if len(last) > 0 {
		final := last[len(last)-1]
		return entity.SetSummary(ctx, models.EntitySummary{
			Count:       final.TotalCount,
			Value:       final.TotalValue,
			LastUpdated: s.now().UTC(),
		})
	}

	return nil
}
