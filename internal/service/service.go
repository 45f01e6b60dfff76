// Package service предоставляет основной функционал сервера агрегации метрик.
// Пакет управляет жизненным циклом HTTP-сервера, периодическим сохранением
// документов in-memory хранилища и корректным завершением работы
// при получении системных сигналов.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/firebridgekit/Firebridge-sub000/internal/config"
	"github.com/firebridgekit/Firebridge-sub000/internal/config/db"
	"github.com/firebridgekit/Firebridge-sub000/internal/docstore"
	"github.com/firebridgekit/Firebridge-sub000/internal/handler"
	"github.com/firebridgekit/Firebridge-sub000/internal/logger"
	"github.com/firebridgekit/Firebridge-sub000/internal/metric"
	"github.com/firebridgekit/Firebridge-sub000/migrations"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ServerComponents содержит все компоненты, необходимые для работы сервера.
// Включает HTTP-сервер, хранилище документов, логгер и опциональное
// подключение к базе данных.
type ServerComponents struct {
	server *http.Server
	mem    *docstore.MemStore
	logger *zap.SugaredLogger
	dbConn *sql.DB
}

// PeriodicSaver управляет автоматическим периодическим сохранением документов
// in-memory хранилища на диск. Запускает фоновую горутину, которая сохраняет
// снимок хранилища через заданные интервалы времени.
type PeriodicSaver struct {
	mem      *docstore.MemStore
	interval time.Duration
	filePath string
	logger   *zap.SugaredLogger
	stopCh   chan struct{}
	done     chan struct{}
}

// Serve инициализирует и запускает сервер метрик с указанной конфигурацией.
// Настраивает хранилище (в памяти или база данных), запускает периодическое
// сохранение, включает профилирование pprof и обрабатывает корректное
// завершение работы по SIGINT/SIGTERM.
//
// Возвращает ошибку, если запуск или завершение сервера завершились неудачей.
func Serve(cfg config.Config) error {
	sugar, err := logger.NewLogger()
	if err != nil {
		return err
	}

	components, err := setupServer(cfg, sugar)
	if err != nil {
		return err
	}
	saver := setupPeriodicSaver(cfg, components.mem, sugar)

	return runServerWithGracefulShutdown(components, saver, cfg)
}

func setupServer(cfg config.Config, sugar *zap.SugaredLogger) (*ServerComponents, error) {
	sugar.Infow("Starting server with config",
		"address", cfg.Addr,
		"storeInterval", cfg.StoreInterval,
		"fileStorage", cfg.FileStorage,
		"restore", cfg.Restore,
		"addressDB", cfg.AddrDB,
	)

	var store docstore.Store
	var mem *docstore.MemStore
	var dbConn *sql.DB

	if cfg.AddrDB != "" {
		conn, err := db.ConnectDB(cfg.AddrDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to DB: %w", err)
		}

		if err := migrations.RunMigrations(cfg.AddrDB, cfg.MigrationsPath); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		dbConn = conn
		store = docstore.NewDBStore(conn)
	} else {
		mem = docstore.NewMemStore()
		store = mem

		if cfg.Restore {
			if err := loadFromFile(mem, cfg.FileStorage, sugar); err != nil {
				sugar.Errorw("Failed to load documents from file", "error", err)
			}
		}
	}

	metrics := metric.NewMetricStore(store)
	router := handler.NewRouter(metrics, sugar, cfg)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	return &ServerComponents{
		server: srv,
		mem:    mem,
		logger: sugar,
		dbConn: dbConn,
	}, nil
}

func setupPeriodicSaver(cfg config.Config, mem *docstore.MemStore, sugar *zap.SugaredLogger) *PeriodicSaver {
	if mem == nil {
		return nil
	}
	if cfg.StoreInterval <= 0 {
		sugar.Infow("Periodic save disabled", "storeInterval", cfg.StoreInterval)
		return nil
	}

	saver := NewPeriodicSaver(mem, cfg.FileStorage, time.Duration(cfg.StoreInterval)*time.Second, sugar)
	saver.Start()

	return saver
}

// NewPeriodicSaver создает новый экземпляр PeriodicSaver, который будет
// сохранять снимок хранилища в указанный файл с заданным интервалом.
// Сохранение необходимо запустить методом Start и остановить методом Stop
// когда оно больше не требуется.
func NewPeriodicSaver(mem *docstore.MemStore, filePath string, interval time.Duration, logger *zap.SugaredLogger) *PeriodicSaver {
	return &PeriodicSaver{
		mem:      mem,
		interval: interval,
		filePath: filePath,
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает операцию периодического сохранения в фоновой горутине.
// Снимки будут сохраняться на диск с настроенным интервалом до вызова Stop.
func (ps *PeriodicSaver) Start() {
	go func() {
		defer close(ps.done)
		ticker := time.NewTicker(ps.interval)
		defer ticker.Stop()

		ps.logger.Infow("Starting periodic save", "interval", ps.interval, "file", ps.filePath)

		for {
			select {
			case <-ticker.C:
				ps.logger.Debugw("Periodic save triggered")
				if err := saveToFile(ps.mem, ps.filePath, ps.logger); err != nil {
					ps.logger.Errorw("Failed to save documents", "error", err)
				} else {
					ps.logger.Debugw("Documents saved successfully", "file", ps.filePath)
				}
			case <-ps.stopCh:
				ps.logger.Debugw("Stopping periodic save")
				return
			}
		}
	}()
}

// Stop корректно останавливает операцию периодического сохранения и ожидает
// завершения фоновой горутины.
func (ps *PeriodicSaver) Stop() {
	if ps.stopCh != nil {
		close(ps.stopCh)
		<-ps.done
	}
}

func runServerWithGracefulShutdown(components *ServerComponents, saver *PeriodicSaver, cfg config.Config) error {
	server := components.server
	sugar := components.logger

	go func() {
		pprofAddr := "localhost:6060"
		sugar.Infow("pprof server started", "address", pprofAddr)
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			sugar.Errorw("pprof server error", "error", err)
		}
	}()

	serverErr := make(chan error, 1)

	go func() {
		sugar.Infow("HTTP server started", "address", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			sugar.Errorw("Server error", "error", err)
			if saver != nil {
				saver.Stop()
			}
			return fmt.Errorf("server error: %w", err)
		}
	case <-quit:
		sugar.Infoln("Shutting down server...")
	}

	return gracefulShutdown(cfg, components, saver)
}

func gracefulShutdown(cfg config.Config, components *ServerComponents, saver *PeriodicSaver) error {
	sugar := components.logger

	if saver != nil {
		saver.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := components.server.Shutdown(ctx); err != nil {
		sugar.Errorw("Server shutdown error", "error", err)
	}

	if components.mem != nil {
		sugar.Infow("Performing final save on shutdown", "file", cfg.FileStorage)
		if err := saveToFile(components.mem, cfg.FileStorage, sugar); err != nil {
			return fmt.Errorf("failed to save documents on shutdown: %w", err)
		}
	}

	if components.dbConn != nil {
		sugar.Infow("Closing database connection")
		if err := components.dbConn.Close(); err != nil {
			sugar.Errorw("Error closing database connection", "error", err)
		}
	}

	sugar.Infoln("Server stopped gracefully")
	return nil
}

func saveToFile(mem *docstore.MemStore, fileName string, sugar *zap.SugaredLogger) error {
	if fileName == "" {
		sugar.Debugw("Save skipped - no filename specified")
		return nil
	}

	sugar.Debugw("Starting save to file", "file", fileName)

	snapshot := mem.Snapshot()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize documents: %w", err)
	}

	if err := writeFile(fileName, data); err != nil {
		return fmt.Errorf("failed to write file %s: %w", fileName, err)
	}

	sugar.Debugw("Successfully saved documents", "file", fileName, "size", len(data))
	return nil
}

func loadFromFile(mem *docstore.MemStore, fileName string, sugar *zap.SugaredLogger) error {
	if fileName == "" {
		return nil
	}

	data, err := readFile(fileName, sugar)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		sugar.Infow("Documents file is empty, starting with empty storage", "file", fileName)
		return nil
	}

	var snapshot map[string]map[string]docstore.Document
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal documents from %s: %w", fileName, err)
	}

	mem.Restore(snapshot)

	count := 0
	for _, docs := range snapshot {
		count += len(docs)
	}
	sugar.Infow("Documents loaded successfully", "file", fileName, "count", count)
	return nil
}

func readFile(fileName string, sugar *zap.SugaredLogger) ([]byte, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			sugar.Infow("Documents file does not exist, starting with empty storage", "file", fileName)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read documents file %s: %w", fileName, err)
	}
	return data, nil
}

func writeFile(fileName string, data []byte) error {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write %w", err)
	}

	return nil
}
