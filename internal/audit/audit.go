// Package audit реализует систему аудита операций с метриками.
// Использует паттерн Observer для уведомления различных подписчиков
// о событиях инкремента и пересчёта.
package audit

import (
	"bytes"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/firebridgekit/Firebridge-sub000/internal/models"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Consumer определяет интерфейс потребителя событий аудита.
// Реализации этого интерфейса обрабатывают события различными способами
// (запись в файл, отправка по HTTP и т.д.).
type Consumer interface {
	// Update обрабатывает событие аудита с данными об операции над метрикой.
	Update(data models.AuditData)
}

// Auditer координирует отправку событий аудита зарегистрированным подписчикам.
type Auditer struct {
	clients []Consumer
	message models.AuditData
}

// RegisterClient добавляет нового подписчика в список получателей уведомлений.
func (a *Auditer) RegisterClient(c Consumer) {
	a.clients = append(a.clients, c)
}

// NotifyClient отправляет текущее сообщение всем зарегистрированным подписчикам.
func (a *Auditer) NotifyClient() {
	for _, client := range a.clients {
		client.Update(a.message)
	}
}

// SetMessage устанавливает сообщение для отправки подписчикам.
func (a *Auditer) SetMessage(data models.AuditData) {
	a.message = data
}

// FileAuditer записывает события аудита в JSON файл.
type FileAuditer struct {
	path string
}

// NewFileAuditer создаёт новый экземпляр FileAuditer для записи в указанный файл.
func NewFileAuditer(path string) *FileAuditer {
	return &FileAuditer{
		path: path,
	}
}

// Update добавляет новое событие аудита в файл.
// Читает существующие события, добавляет новое и перезаписывает файл.
// Если путь пустой, операция пропускается.
func (a *FileAuditer) Update(data models.AuditData) {
	if a.path == "" {
		return
	}

	var dataList models.AuditList

	fileData, err := os.ReadFile(a.path)
	if err != nil && !os.IsNotExist(err) {
		log.Printf("failed to read file %s: %v", a.path, err)
		return
	}

	if len(fileData) > 0 {
		if err := json.Unmarshal(fileData, &dataList); err != nil {
			log.Printf("json.Unmarshal error: %v", err)
			return
		}
	}

	dataList.Events = append(dataList.Events, data)

	jsonData, err := json.Marshal(&dataList)
	if err != nil {
		log.Printf("json.Marshal error: %v", err)
		return
	}

	err = os.WriteFile(a.path, jsonData, 0644)
	if err != nil {
		log.Printf("write file error: %v", err)
		return
	}
}

// URLAuditer отправляет события аудита на внешний HTTP endpoint.
type URLAuditer struct {
	url string
}

// NewURLAuditer создаёт новый экземпляр URLAuditer для отправки на указанный URL.
func NewURLAuditer(url string) *URLAuditer {
	return &URLAuditer{
		url: url,
	}
}

// Update отправляет событие аудита на настроенный HTTP endpoint методом POST.
// Если URL пустой, операция пропускается.
func (a *URLAuditer) Update(data models.AuditData) {
	if a.url == "" {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("json.Marshal error: %v", err)
		return
	}

	resp, err := http.Post(a.url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		log.Printf("HTTP POST request error: %v", err)
		return
	}
	defer resp.Body.Close()
}

// NewAuditEvent создаёт и отправляет событие аудита для операции над метрикой.
// Настраивает подписчиков для файла и URL и уведомляет их.
//
// Параметры:
//
//	metric: имя метрики в формате "{noun}-{verb}"
//	entity: идентификатор сущности
//	op: тип операции ("increment" или "recompute")
//	path: путь к файлу аудита (пустая строка для отключения)
//	url: URL для отправки событий (пустая строка для отключения)
//	ip: IP-адрес клиента, выполнившего операцию
func NewAuditEvent(metric, entity, op, path, url, ip string) {
	data := models.AuditData{
		TS:     time.Now().Unix(),
		Metric: metric,
		Entity: entity,
		Op:     op,
		IP:     ip,
	}

	auditer := &Auditer{}
	auditer.RegisterClient(NewFileAuditer(path))
	auditer.RegisterClient(NewURLAuditer(url))

	auditer.SetMessage(data)
	auditer.NotifyClient()
}
