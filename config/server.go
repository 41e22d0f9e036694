package config

import (
	"sync"
	"time"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig
)

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	MaxUploadSize   int64
	AllowedOrigins  []string
	// StorageBackend selects the blob store: "minio" or "s3".
	StorageBackend string
	LogLevel       string
	// WorkerConcurrency is the number of asynq handlers run by cmd/worker.
	WorkerConcurrency int
}

func GetServerConfig() *ServerConfig {
	serverOnce.Do(func() {
		loadEnv()
		serverConfig = &ServerConfig{
			Addr:              getEnv("SERVER_ADDR", ":8080"),
			ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
			MaxUploadSize:     int64(getEnvInt("MAX_UPLOAD_MB", 50)) << 20,
			AllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			StorageBackend:    getEnv("STORAGE_BACKEND", "minio"),
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),
		}
	})
	return serverConfig
}
