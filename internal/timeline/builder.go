package timeline

import (
	"sort"

	"github.com/firebridgekit/Firebridge-sub000/internal/models"
)

// BuildOptions задаёт параметры построения последовательности секций.
type BuildOptions struct {
	// Unit определяет единицу времени агрегации ("hour", "day", ...).
	Unit string

	// Timezone содержит IANA-идентификатор таймзоны (по умолчанию "UTC").
	Timezone string

	// StartingCount задаёт стартовое смещение накопленного количества.
	StartingCount int64

	// StartingValue задаёт стартовое смещение накопленного значения.
	StartingValue float64
}

// Build разбивает список событий на последовательные непустые интервалы
// от самого раннего до самого позднего события и возвращает по одной секции
// на каждый непустой интервал. Интервалы без событий не материализуются.
// Вход не обязан быть отсортированным; сортировка стабильная.
func Build(events []models.TrackableEvent, opts BuildOptions) ([]models.TimelineSection, error) {
	if len(events) == 0 {
		return nil, nil
	}

	loc, err := Zone(opts.Timezone)
	if err != nil {
		return nil, err
	}

	sorted := make([]models.TrackableEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	cursor, err := StartOf(sorted[0].Time, opts.Unit, loc)
	if err != nil {
		return nil, err
	}

	end, err := EndOf(sorted[len(sorted)-1].Time, opts.Unit, loc)
	if err != nil {
		return nil, err
	}

	totalCount := opts.StartingCount
	totalValue := opts.StartingValue

	var sections []models.TimelineSection

	for cursor.Before(end) {
		next, err := Next(cursor, opts.Unit)
		if err != nil {
			return nil, err
		}

		var count int64
		var value float64
		for _, e := range InRange(sorted, cursor, next) {
			count += e.EffectiveCount()
			value += e.EffectiveValue()
		}

		if count != 0 || value != 0 {
			totalCount += count
			totalValue += value

			sections = append(sections, models.TimelineSection{
				StartTime:  cursor,
				EndTime:    next,
				Count:      count,
				Value:      value,
				TotalCount: totalCount,
				TotalValue: totalValue,
			})
		}

		cursor = next
	}

	return sections, nil
}
