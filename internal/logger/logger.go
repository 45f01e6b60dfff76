// Package logger инициализирует zap-логгер и обёртку http.ResponseWriter,
// которая запоминает код и размер ответа для логирования запросов.
package logger

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// NewLogger создаёт SugaredLogger для сервера.
func NewLogger() (*zap.SugaredLogger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	sugar := logger.Sugar()
	return sugar, nil
}

// ResponseData накапливает код и размер ответа.
type ResponseData struct {
	Status int
	Size   int
}

// LoggingRW оборачивает http.ResponseWriter и записывает данные ответа в ResponseData.
type LoggingRW struct {
	http.ResponseWriter
	ResponseData *ResponseData
}

func (r *LoggingRW) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	r.ResponseData.Size += size
	return size, err
}

func (r *LoggingRW) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.ResponseData.Status = statusCode
}
