package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipelineConfig_ValidateRequiresCoreSettings(t *testing.T) {
	var cfg PipelineConfig
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "DATABASE_URL")
	require.Contains(t, err.Error(), "GEMINI_API_KEY")
	require.Contains(t, err.Error(), "S3_BUCKET")
}

func TestPipelineConfig_ValidatePassesWithRequiredFields(t *testing.T) {
	cfg := PipelineConfig{
		PostgresURL:  "postgresql://localhost/manda",
		GeminiAPIKey: "key",
		S3Bucket:     "bucket",
	}
	require.NoError(t, cfg.Validate())
}

func TestConfigFromEnv_AppliesDocumentedDefaults(t *testing.T) {
	cfg := ConfigFromEnv()

	require.Equal(t, "bolt://localhost:7687", cfg.Neo4jURL)
	require.Equal(t, "us-east-1", cfg.S3Region)
	require.Equal(t, "manda-documents", cfg.S3Bucket)
	require.Equal(t, "gemini-embedding-001", cfg.EmbeddingModel)
	require.Equal(t, "voyage-3", cfg.VoyageModel)
	require.Equal(t, 1024, cfg.VoyageDimension)
	require.Equal(t, 5, cfg.BatchSize)
	require.Equal(t, 5, cfg.PairBatchSize)
	require.Equal(t, "pipeline-worker", cfg.WorkerName)
	require.Nil(t, cfg.GeminiModels)
}

func TestConfigFromEnv_HonorsEnvironmentOverride(t *testing.T) {
	t.Setenv("S3_BUCKET", "custom-bucket")
	cfg := ConfigFromEnv()
	require.Equal(t, "custom-bucket", cfg.S3Bucket)
}
