package timeline

import (
	"time"

	"github.com/firebridgekit/Firebridge-sub000/internal/models"
)

// InRange возвращает события, попадающие в полуоткрытый диапазон [from, to).
// Порядок событий на входе сохраняется. Перевёрнутый диапазон (from >= to)
// возвращает пустой результат, а не ошибку.
func InRange(events []models.TrackableEvent, from, to time.Time) []models.TrackableEvent {
	if !from.Before(to) {
		return nil
	}

	var selected []models.TrackableEvent
	for _, e := range events {
		if !e.Time.Before(from) && e.Time.Before(to) {
			selected = append(selected, e)
		}
	}
	return selected
}
