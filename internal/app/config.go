package app

import (
	"time"

	"github.com/yungbote/docflow-backend/internal/pkg/logger"
	"github.com/yungbote/docflow-backend/internal/utils"
)

type Config struct {
	Port        string
	Environment string

	AgentID         string
	LeaseTTL        time.Duration
	AcquireAttempts int
	AcquireBackoff  time.Duration
	BatchSize       int

	WorkerConcurrency int
	WorkerInterval    time.Duration

	ModelIdentity       string
	VectorDim           int
	SimilarityThreshold float64
	MaxResults          int

	// Optional YAML file restricting which agents may write each stage.
	AccessPolicyPath string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:        utils.GetEnv("PORT", "8080", log),
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),

		AgentID:         utils.GetEnv("AGENT_ID", "", log),
		LeaseTTL:        time.Duration(utils.GetEnvAsInt("LEASE_TTL_SECONDS", 30, log)) * time.Second,
		AcquireAttempts: utils.GetEnvAsInt("LEASE_ACQUIRE_ATTEMPTS", 3, log),
		AcquireBackoff:  time.Duration(utils.GetEnvAsInt("LEASE_ACQUIRE_BACKOFF_MS", 200, log)) * time.Millisecond,
		BatchSize:       utils.GetEnvAsInt("DRIVER_BATCH_SIZE", 20, log),

		WorkerConcurrency: utils.GetEnvAsInt("WORKER_CONCURRENCY", 2, log),
		WorkerInterval:    time.Duration(utils.GetEnvAsInt("WORKER_INTERVAL_MS", 2000, log)) * time.Millisecond,

		ModelIdentity:       utils.GetEnv("EMBEDDING_MODEL_IDENTITY", "hashing@v1", log),
		VectorDim:           utils.GetEnvAsInt("EMBEDDING_DIM", 256, log),
		SimilarityThreshold: utils.GetEnvAsFloat("SIMILARITY_THRESHOLD", 0.5, log),
		MaxResults:          utils.GetEnvAsInt("SIMILARITY_MAX_RESULTS", 10, log),

		AccessPolicyPath: utils.GetEnv("ACCESS_POLICY_PATH", "", log),
	}
}
