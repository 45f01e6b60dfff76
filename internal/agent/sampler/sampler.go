package sampler

import (
	"log"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/firebridgekit/Firebridge-sub000/internal/models"
)

// Sample содержит один замер состояния хоста.
type Sample struct {
	Time              time.Time
	MemoryUsedPercent float64
	CPUPercent        float64
}

// Collect снимает текущие показатели памяти и процессора хоста.
func Collect() Sample {
	s := Sample{Time: time.Now()}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("Error collecting memory stats: %v", err)
	} else {
		s.MemoryUsedPercent = memStat.UsedPercent
	}

	cpuStat, err := cpu.Percent(0, false)
	if err != nil {
		log.Printf("Error collecting cpu stats: %v", err)
	} else if len(cpuStat) > 0 {
		s.CPUPercent = cpuStat[0]
	}

	return s
}

// Event переводит замер в событие метрики: один замер считается одним
// событием, значением служит процент занятой памяти.
func (s Sample) Event() models.TrackableEvent {
	count := int64(1)
	value := s.MemoryUsedPercent

	return models.TrackableEvent{
		Time:  s.Time,
		Count: &count,
		Value: &value,
	}
}

// Buffer накапливает события между отправками.
type Buffer struct {
	mu     sync.Mutex
	events []models.TrackableEvent
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append добавляет событие в буфер.
func (b *Buffer) Append(e models.TrackableEvent) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

// Drain возвращает накопленные события и очищает буфер.
func (b *Buffer) Drain() []models.TrackableEvent {
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()
	return events
}
