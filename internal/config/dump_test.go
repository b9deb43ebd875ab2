package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSettingsMasksSecrets(t *testing.T) {
	cfg := &Config{
		Engine: EngineConfig{
			Kind:   EngineOpenAI,
			OpenAI: OpenAIConfig{BaseURL: "http://speech:8000/v1", APIKey: "sk-secret"},
		},
		Storage:  StorageConfig{EncryptionKey: "c2VjcmV0", S3: StorageS3Config{AccessKeyID: "AKIA", SecretAccessKey: "shh"}},
		Database: DatabaseConfig{URL: "postgres://voice:hunter2@db:5432/voice"},
		Redis:    RedisConfig{URL: "redis://localhost:6379/0"},
	}

	settings, err := cfg.Settings()
	require.NoError(t, err)

	values := make(map[string]string, len(settings))
	for i, s := range settings {
		values[s.Key] = s.Value
		if i > 0 {
			require.Less(t, settings[i-1].Key, s.Key)
		}
	}

	require.Equal(t, "openai", values["engine.kind"])
	require.Equal(t, "http://speech:8000/v1", values["engine.openai.base_url"])
	require.Equal(t, "****", values["engine.openai.api_key"])
	require.Equal(t, "****", values["storage.encryption_key"])
	require.Equal(t, "****", values["storage.s3.secret_access_key"])
	require.Equal(t, "AKIA", values["storage.s3.access_key_id"])
	require.Equal(t, "postgres://voice:xxxxx@db:5432/voice", values["database.url"])
	require.Equal(t, "redis://localhost:6379/0", values["redis.url"])
}
