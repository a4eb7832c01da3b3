package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadComputeConfig_Defaults(t *testing.T) {
	for _, k := range []string{"CHAIN", "COMPUTE_BATCH_SIZE", "DEFAULT_START_EPOCH", "RABBITMQ_HOST"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := LoadComputeConfig()
	require.NoError(t, err)
	assert.Equal(t, ChainDefault, cfg.Chain)
	assert.Equal(t, int64(100), cfg.BatchSize)
	assert.Equal(t, int64(0), cfg.DefaultStartEpoch)
	assert.Equal(t, int64(1), cfg.BatchEpochOffset)
}

func TestLoadUploadConfig_FailsFastWithoutCredentials(t *testing.T) {
	os.Unsetenv("R2_ENDPOINT_URL")
	os.Unsetenv("R2_ACCESS_KEY_ID")
	os.Unsetenv("R2_SECRET_ACCESS_KEY")

	_, err := LoadUploadConfig()
	assert.Error(t, err)
}

func TestLoadUploadConfig_SucceedsWithCredentials(t *testing.T) {
	t.Setenv("R2_ENDPOINT_URL", "https://example.r2.cloudflarestorage.com")
	t.Setenv("R2_ACCESS_KEY_ID", "id")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")

	cfg, err := LoadUploadConfig()
	require.NoError(t, err)
	assert.Equal(t, "id", cfg.ObjectStore.AccessKeyID)
}

func TestLoadBuildConfig_OpenQuestionDefaults(t *testing.T) {
	os.Unsetenv("BUILD_LATEST_V1")
	os.Unsetenv("BUILD_LATEST_SNAPSHOTS")

	cfg, err := LoadBuildConfig()
	require.NoError(t, err)
	assert.False(t, cfg.BuildLatestV1)
	assert.False(t, cfg.BuildLatestSnapshots)
	assert.True(t, cfg.WaitForComputation)
}

func TestLoadValidateConfig_PrimarySubcommandDefault(t *testing.T) {
	t.Setenv("R2_ENDPOINT_URL", "https://example.r2.cloudflarestorage.com")
	t.Setenv("R2_ACCESS_KEY_ID", "id")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	os.Unsetenv("VALIDATE_PRIMARY_SUBCOMMAND")

	cfg, err := LoadValidateConfig()
	require.NoError(t, err)
	assert.Equal(t, "validate-diffs", cfg.PrimarySubcommand)
}

func TestApplyYAMLOverrides_MissingFileIsNoop(t *testing.T) {
	err := ApplyYAMLOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, err)
}

func TestApplyYAMLOverrides_DoesNotClobberExistingEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forestpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("CHAIN: mainnet\n"), 0o644))

	t.Setenv("CHAIN", "calibnet")
	require.NoError(t, ApplyYAMLOverrides(path))
	assert.Equal(t, "calibnet", os.Getenv("CHAIN"))
}

func TestApplyYAMLOverrides_SetsUnsetKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forestpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SOME_TEST_OVERRIDE_KEY: value\n"), 0o644))

	os.Unsetenv("SOME_TEST_OVERRIDE_KEY")
	require.NoError(t, ApplyYAMLOverrides(path))
	assert.Equal(t, "value", os.Getenv("SOME_TEST_OVERRIDE_KEY"))
	os.Unsetenv("SOME_TEST_OVERRIDE_KEY")
}
