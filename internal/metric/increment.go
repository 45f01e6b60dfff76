package metric

import (
	"context"
	"time"
)

// IncrementOptions задаёт параметры одиночного инкрементного обновления.
type IncrementOptions struct {
	// Count содержит приращение количества. Вызывающая сторона применяет
	// значение по умолчанию (1) до вызова, см. models.TrackableEvent.
	Count int64

	// Value содержит приращение значения.
	Value float64

	// Time содержит момент события. Нулевое значение трактуется как "сейчас".
	Time time.Time
}

// Increment применяет одно новое событие к одной сущности: для каждой
// сконфигурированной единицы времени атомарно увеличивает курсор интервала,
// содержащего момент события. Метрика без конфигурации (или с пустым набором
// единиц) молча принимает событие без записей: это позволяет включить
// отслеживание позже, добавив конфигурацию, без изменения вызывающего кода.
//
// Единицы обрабатываются последовательно; ошибка записи прерывает обработку
// и оставляет уже записанные единицы применёнными. Отката нет, авторитетным
// путём восстановления согласованности является полный пересчёт.
func (s *MetricStore) Increment(ctx context.Context, noun, verb, entityID string, opts IncrementOptions) error {
	cfg, err := s.GetConfig(ctx, MetricName(noun, verb))
	if err != nil {
		return err
	}
	if cfg == nil || len(cfg.Units) == 0 {
		return nil
	}

	at := opts.Time
	if at.IsZero() {
		at = s.now()
	}

	delta := Delta{Count: opts.Count, Value: opts.Value}
	entity := s.Entity(noun, verb, entityID)

	for _, unit := range cfg.Units {
		if err := entity.Timeline(unit, cfg.Timezone).IncrementSection(ctx, at, delta); err != nil {
			return err
		}
	}

	if s.UpdateSummaryOnIncrement {
		return entity.IncrementSummary(ctx, delta)
	}
	return nil
}
