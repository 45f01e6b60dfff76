// Package config предоставляет функциональность для управления конфигурацией сервера.
// Поддерживает загрузку настроек из переменных окружения, флагов командной строки
// и JSON-файла, с приоритетом: переменные окружения, затем флаги, затем файл.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
)

// ConfigStruct описывает формат JSON-файла конфигурации.
type ConfigStruct struct {
	Addr           string `json:"address"`
	StoreInterval  int    `json:"store_interval"`
	FileStorage    string `json:"file_storage_path"`
	Restore        bool   `json:"restore"`
	AddrDB         string `json:"database_dsn"`
	MigrationsPath string `json:"migrations_path"`
	AuditFile      string `json:"audit_file"`
	AuditURL       string `json:"audit_url"`
}

// Config содержит все параметры конфигурации сервера метрик.
type Config struct {
	// Addr задает адрес и порт HTTP-сервера (например, "localhost:8080").
	Addr string `env:"ADDRESS"`

	// StoreInterval определяет интервал в секундах между автоматическими
	// снимками документного хранилища на диск. Значение 0 отключает
	// периодическое сохранение. Используется только хранилищем в памяти.
	StoreInterval int `env:"STORE_INTERVAL"`

	// FileStorage указывает путь к файлу для снимков хранилища в памяти.
	FileStorage string `env:"FILE_STORAGE_PATH"`

	ConfigFilePath string `env:"CONFIG"`

	// Restore определяет, нужно ли восстанавливать хранилище из файла при запуске.
	Restore bool `env:"RESTORE"`

	// AddrDB содержит строку подключения к базе данных PostgreSQL (DSN).
	// Если не указано, используется хранилище в памяти.
	AddrDB string `env:"DATABASE_DSN"`

	// MigrationsPath указывает каталог с SQL-миграциями схемы документов.
	MigrationsPath string `env:"MIGRATIONS_PATH"`

	// AuditFile указывает путь к файлу для записи аудит-логов.
	AuditFile string `env:"AUDIT_FILE"`

	// AuditURL содержит URL для отправки аудит-событий на внешний сервис.
	AuditURL string `env:"AUDIT_URL"`
}

// GetConfig загружает и возвращает конфигурацию приложения.
// Сначала обрабатываются флаги командной строки, затем переменные окружения.
// Переменные окружения имеют приоритет над флагами, флаги — над файлом.
//
// Поддерживаемые флаги:
//
//	-a: адрес сервера (по умолчанию "localhost:8080")
//	-i: интервал снимков в секундах (по умолчанию "300")
//	-f: путь к файлу снимков (по умолчанию "storage.json")
//	-r: восстанавливать ли хранилище при запуске (по умолчанию "false")
//	-d: строка подключения к базе данных (по умолчанию "")
//	-m: каталог SQL-миграций (по умолчанию "migrations/sql")
//	-p: путь к файлу аудита (по умолчанию "")
//	-u: URL для аудита (по умолчанию "")
//
// Соответствующие переменные окружения:
//
//	ADDRESS, STORE_INTERVAL, FILE_STORAGE_PATH, RESTORE,
//	DATABASE_DSN, MIGRATIONS_PATH, AUDIT_FILE, AUDIT_URL
func GetConfig() (Config, error) {
	configStruct := &ConfigStruct{}

	addrFlag := flag.String("a", "localhost:8080", "HTTP server address")
	storeIntFlag := flag.String("i", "300", "snapshot interval in seconds")
	fileFlag := flag.String("f", "storage.json", "path to snapshot file")
	configPathFlag := flag.String("config", "", "path to config file")
	restoreFlag := flag.String("r", "false", "restore documents from file on startup (true/false)")
	addrDBFlag := flag.String("d", "", "Database address")
	migrationsFlag := flag.String("m", "migrations/sql", "path to SQL migrations")
	auditFile := flag.String("p", "", "audit file path")
	auditURL := flag.String("u", "", "audit url")

	flag.Parse()

	configPath := getConfigPath(*configPathFlag, os.Getenv("CONFIG"))

	if configPath != "" {
		data, err := os.Open(configPath)
		if err != nil {
			log.Printf("failed to open config file: %v", err)
			return Config{}, err
		}
		defer data.Close()

		if err := json.NewDecoder(data).Decode(configStruct); err != nil {
			log.Printf("failed to decode config file: %v", err)
			return Config{}, err
		}
	}

	cfg := Config{
		Addr:           getString(os.Getenv("ADDRESS"), *addrFlag, configStruct.Addr),
		FileStorage:    getString(os.Getenv("FILE_STORAGE_PATH"), *fileFlag, configStruct.FileStorage),
		StoreInterval:  getInt(os.Getenv("STORE_INTERVAL"), *storeIntFlag, configStruct.StoreInterval),
		Restore:        getBool(os.Getenv("RESTORE"), *restoreFlag, configStruct.Restore),
		AddrDB:         getString(os.Getenv("DATABASE_DSN"), *addrDBFlag, configStruct.AddrDB),
		MigrationsPath: getString(os.Getenv("MIGRATIONS_PATH"), *migrationsFlag, configStruct.MigrationsPath),
		AuditFile:      getString(os.Getenv("AUDIT_FILE"), *auditFile, configStruct.AuditFile),
		AuditURL:       getString(os.Getenv("AUDIT_URL"), *auditURL, configStruct.AuditURL),
	}

	return cfg, nil
}

// getString возвращает значение переменной окружения, если она установлена,
// иначе возвращает значение флага командной строки.
func getString(envValue, flagValue, configValue string) string {
	if envValue != "" {
		return envValue
	} else if flagValue != "" {
		return flagValue
	}

	return configValue
}

// getInt преобразует строковое значение переменной окружения или флага в целое число.
// Приоритет отдается переменной окружения. При ошибке преобразования возвращает 0.
func getInt(envValue, flagValue string, configValue int) int {
	if envValue != "" {
		if v, err := strconv.Atoi(envValue); err == nil {
			return v
		}
	} else if flagValue != "" {
		v, _ := strconv.Atoi(flagValue)
		return v
	}

	return configValue
}

// getBool преобразует строковое значение переменной окружения или флага в булево значение.
// Приоритет отдается переменной окружения. При ошибке преобразования возвращает false.
func getBool(envValue, flagValue string, configValue bool) bool {
	if envValue != "" {
		if v, err := strconv.ParseBool(envValue); err == nil {
			return v
		}
	} else if flagValue != "" {
		v, _ := strconv.ParseBool(flagValue)
		return v
	}
	return configValue
}

func getConfigPath(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envValue
}
