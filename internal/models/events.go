// Package models содержит структуры данных, описывающие основные сущности предметной области.
// Пакет не содержит бизнес-логику и используется для передачи данных между слоями приложения.
package models

import "time"

// Константы единиц времени, по которым агрегируются события.
const (
	// Hour представляет почасовую агрегацию.
	Hour = "hour"

	// Day представляет посуточную агрегацию.
	Day = "day"

	// Week представляет понедельную агрегацию.
	Week = "week"

	// Month представляет помесячную агрегацию.
	Month = "month"

	// Year представляет погодовую агрегацию.
	Year = "year"
)

// TrackableEvent представляет отдельное событие с временной меткой.
// Событие создаётся вызывающей стороной и никогда не изменяется движком.
type TrackableEvent struct {
	// Time содержит момент, в который произошло событие.
	Time time.Time `json:"time"`

	// Count содержит количество для события. Отсутствующее значение
	// трактуется как 1.
	Count *int64 `json:"count,omitempty"`

	// Value содержит числовое значение события (например, сумму покупки).
	// Отсутствующее значение трактуется как 0.
	Value *float64 `json:"value,omitempty"`
}

// EffectiveCount возвращает количество события с учётом значения по умолчанию.
func (e TrackableEvent) EffectiveCount() int64 {
	if e.Count == nil {
		return 1
	}
	return *e.Count
}

// EffectiveValue возвращает значение события с учётом значения по умолчанию.
func (e TrackableEvent) EffectiveValue() float64 {
	if e.Value == nil {
		return 0
	}
	return *e.Value
}

// MetricConfig описывает конфигурацию одной метрики: какие единицы времени
// отслеживаются и в какой таймзоне вычисляются границы интервалов.
type MetricConfig struct {
	// Units содержит упорядоченный набор единиц времени ("hour", "day", ...).
	Units []string `json:"units"`

	// Timezone содержит IANA-идентификатор таймзоны (по умолчанию "UTC").
	Timezone string `json:"timezone,omitempty"`
}

// EntitySummary представляет накопленный итог по одной сущности за всё время,
// независимо от разбиения на интервалы.
type EntitySummary struct {
	// Count содержит суммарное количество событий.
	Count int64 `json:"count"`

	// Value содержит суммарное значение событий.
	Value float64 `json:"value"`

	// LastUpdated содержит момент последнего обновления итога.
	LastUpdated time.Time `json:"lastUpdated"`
}

// TimelineSection представляет один интервал агрегации с локальными
// и накопленными итогами. Интервал полуоткрытый: [StartTime, EndTime).
type TimelineSection struct {
	// StartTime содержит начало интервала.
	StartTime time.Time `json:"startTime"`

	// EndTime содержит конец интервала (не включается).
	EndTime time.Time `json:"endTime"`

	// Count содержит количество событий внутри интервала.
	Count int64 `json:"count"`

	// Value содержит сумму значений событий внутри интервала.
	Value float64 `json:"value"`

	// TotalCount содержит накопленное количество на конец интервала,
	// включая все предыдущие интервалы и стартовое смещение.
	TotalCount int64 `json:"totalCount"`

	// TotalValue содержит накопленное значение на конец интервала.
	TotalValue float64 `json:"totalValue"`
}

// EventBatch содержит полную историю событий одной сущности вместе с
// параметрами пересчёта. Используется как тело запроса на пересчёт.
type EventBatch struct {
	// Events содержит список событий для пересчёта.
	Events []TrackableEvent `json:"events"`

	// StartingCount задаёт стартовое смещение накопленного количества.
	StartingCount int64 `json:"startingCount,omitempty"`

	// StartingValue задаёт стартовое смещение накопленного значения.
	StartingValue float64 `json:"startingValue,omitempty"`

	// Clean определяет, удалять ли прежние данные перед пересчётом.
	// Отсутствующее значение трактуется как true.
	Clean *bool `json:"clean,omitempty"`
}

// CleanRequested возвращает значение Clean с учётом значения по умолчанию.
func (b *EventBatch) CleanRequested() bool {
	if b.Clean == nil {
		return true
	}
	return *b.Clean
}

// Reset очищает батч для повторного использования через пул объектов.
func (b *EventBatch) Reset() {
	b.Events = b.Events[:0]
	b.StartingCount = 0
	b.StartingValue = 0
	b.Clean = nil
}

// AuditData представляет событие аудита с информацией об операции над метрикой.
// Используется для логирования операций инкремента и пересчёта.
type AuditData struct {
	// TS содержит временную метку события в формате Unix timestamp.
	TS int64 `json:"ts"`

	// Metric содержит имя метрики в формате "{noun}-{verb}".
	Metric string `json:"metric"`

	// Entity содержит идентификатор сущности, к которой относилась операция.
	Entity string `json:"entity"`

	// Op содержит тип операции: "increment" или "recompute".
	Op string `json:"op"`

	// IP содержит IP-адрес клиента, выполнившего операцию.
	IP string `json:"ip_address"`
}

// AuditList содержит список событий аудита, накопленных в файле.
type AuditList struct {
	Events []AuditData `json:"events"`
}
