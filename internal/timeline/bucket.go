// Package timeline реализует чистую календарную арифметику для агрегации событий:
// вычисление границ интервалов в заданной таймзоне, продвижение курсора по интервалам
// и построение последовательности секций с накопленными итогами.
package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/firebridgekit/Firebridge-sub000/internal/models"
)

// ErrInvalidInstant возвращается, когда временная метка не может быть
// сопоставлена с корректным календарным моментом.
var ErrInvalidInstant = errors.New("invalid instant")

// Zone возвращает *time.Location для IANA-идентификатора таймзоны.
// Пустая строка трактуется как UTC.
func Zone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

func validInstant(t time.Time) error {
	if t.IsZero() {
		return ErrInvalidInstant
	}

	// За пределами четырёхзначного года RFC 3339 ключи теряют сортируемость.
	if y := t.Year(); y < 1 || y > 9999 {
		return ErrInvalidInstant
	}
	return nil
}

// StartOf возвращает начало интервала, содержащего момент t,
// для заданной единицы времени в таймзоне loc.
func StartOf(t time.Time, unit string, loc *time.Location) (time.Time, error) {
	if err := validInstant(t); err != nil {
		return time.Time{}, err
	}

	lt := t.In(loc)
	y, m, d := lt.Date()

	switch unit {
	case models.Hour:
		return time.Date(y, m, d, lt.Hour(), 0, 0, 0, loc), nil
	case models.Day:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	case models.Week:
		return time.Date(y, m, d-int(lt.Weekday()), 0, 0, 0, 0, loc), nil
	case models.Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), nil
	case models.Year:
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc), nil
	default:
		return time.Time{}, fmt.Errorf("unknown time unit %q", unit)
	}
}

// Next продвигает начало интервала на одну единицу времени вперёд.
// Арифметика ведётся по настенным часам таймзоны start, поэтому переходы
// на летнее/зимнее время не создают разрывов и двойного учёта.
func Next(start time.Time, unit string) (time.Time, error) {
	if err := validInstant(start); err != nil {
		return time.Time{}, err
	}

	loc := start.Location()
	y, m, d := start.Date()

	switch unit {
	case models.Hour:
		return time.Date(y, m, d, start.Hour()+1, 0, 0, 0, loc), nil
	case models.Day:
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc), nil
	case models.Week:
		return time.Date(y, m, d+7, 0, 0, 0, 0, loc), nil
	case models.Month:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc), nil
	case models.Year:
		return time.Date(y+1, 1, 1, 0, 0, 0, 0, loc), nil
	default:
		return time.Time{}, fmt.Errorf("unknown time unit %q", unit)
	}
}

// EndOf возвращает конец интервала, содержащего момент t (начало следующего интервала).
func EndOf(t time.Time, unit string, loc *time.Location) (time.Time, error) {
	start, err := StartOf(t, unit, loc)
	if err != nil {
		return time.Time{}, err
	}
	return Next(start, unit)
}

// BucketID возвращает каноничный ключ интервала, содержащего момент t:
// представление начала интервала в формате RFC 3339. Ключ детерминирован,
// поэтому записи в один и тот же интервал идемпотентны.
func BucketID(t time.Time, unit string, loc *time.Location) (string, error) {
	start, err := StartOf(t, unit, loc)
	if err != nil {
		return "", err
	}
	return start.Format(time.RFC3339), nil
}
