// Package agent реализует агента, который периодически снимает показатели
// хоста и отправляет их на сервер метрик как события метрики host-sample.
package agent

import (
	"bytes"
	"compress/gzip"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/firebridgekit/Firebridge-sub000/internal/agent/sampler"
	"github.com/firebridgekit/Firebridge-sub000/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	metricNoun = "host"
	metricVerb = "sample"
)

type Config struct {
	Addr         string `env:"ADDRESS"`
	PollInterval int    `env:"POLL_INTERVAL"`
	ReqInterval  int    `env:"REPORT_INTERVAL"`
	Entity       string `env:"ENTITY"`
}

// EnsureConfig регистрирует конфигурацию метрики host-sample на сервере.
// Повторная регистрация безопасна: сервер перезапишет документ тем же содержимым.
func EnsureConfig(endpoint string) error {
	cfg := models.MetricConfig{
		Units:    []string{models.Hour, models.Day},
		Timezone: "UTC",
	}

	url, err := url.JoinPath(endpoint, "config", metricNoun, metricVerb)
	if err != nil {
		return fmt.Errorf("failed to join URL path: %w", err)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return postJSON(url, data)
}

// SendEvents отправляет накопленные события по одному на точку инкремента.
func SendEvents(endpoint, entity string, events []models.TrackableEvent) error {
	if len(events) == 0 {
		log.Println("No events to send, skipping report")
		return nil
	}

	url, err := url.JoinPath(endpoint, "increment", metricNoun, metricVerb, entity)
	if err != nil {
		return fmt.Errorf("failed to join URL path: %w", err)
	}

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		if err := postJSON(url, data); err != nil {
			return err
		}
	}

	return nil
}

func postJSON(url string, data []byte) error {
	buffer, err := CompressData(data)
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}

	client := resty.New()
	resp, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Content-Encoding", "gzip").
		SetHeader("Accept-Encoding", "gzip").
		SetBody(buffer).
		Post(url)

	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

func CompressData(data []byte) ([]byte, error) {
	var buffer bytes.Buffer

	w := gzip.NewWriter(&buffer)

	_, err := w.Write(data)
	if err != nil {
		return nil, err
	}

	err = w.Close()
	if err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

func StartAgent() <-chan error {
	cfg := Config{}
	errCh := make(chan error)

	hostname, _ := os.Hostname()

	flag.StringVar(&cfg.Addr, "a", "localhost:8080", "Адрес сервера")
	flag.IntVar(&cfg.PollInterval, "p", 2, "Значение интервала снятия показателей в секундах")
	flag.IntVar(&cfg.ReqInterval, "r", 10, "Значение интервала отправки в секундах")
	flag.StringVar(&cfg.Entity, "e", hostname, "Идентификатор сущности хоста")
	flag.Parse()

	err := env.Parse(&cfg)
	if err != nil {
		errCh <- fmt.Errorf("ошибка парсинга ENV: %w", err)
		return errCh
	}

	if cfg.Entity == "" {
		cfg.Entity = "unknown-host"
	}

	buffer := sampler.NewBuffer()
	endpoint := "http://" + cfg.Addr

	if err := EnsureConfig(endpoint); err != nil {
		log.Printf("Failed to register metric config: %v", err)
	}

	go func() {
		pollTicker := time.NewTicker(time.Second * time.Duration(cfg.PollInterval))
		reqTicker := time.NewTicker(time.Second * time.Duration(cfg.ReqInterval))

		for {
			select {
			case <-pollTicker.C:
				buffer.Append(sampler.Collect().Event())

			case <-reqTicker.C:
				var connRefusedErr = syscall.ECONNREFUSED
				events := buffer.Drain()
				err := SendEvents(endpoint, cfg.Entity, events)

				if errors.Is(err, connRefusedErr) {
					intervals := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

					for i := 0; i < 3; i++ {
						log.Printf("Retry attempt %d after error: %v", i+1, err)
						time.Sleep(intervals[i])

						err = SendEvents(endpoint, cfg.Entity, events)
						if err == nil {
							log.Printf("Success after %d retries", i+1)
							break
						}

						if !errors.Is(err, connRefusedErr) {
							break
						}
					}
				}

				if err != nil {
					log.Printf("Final sending events error: %v", err)
				}
			}
		}
	}()

	return errCh
}
