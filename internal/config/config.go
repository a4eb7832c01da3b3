// Package config loads per-worker configuration from the process
// environment, following the reference service's pkg/server.parseConfig
// shape: typed struct, sensible defaults, environment overrides, and a
// single fail-fast validation pass at startup.
package config

import (
	"os"
	"strconv"

	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
)

// Chain names the network a worker operates against.
const (
	ChainMainnet = "mainnet"
	ChainDefault = "testnet"
)

// BrokerConfig configures the RabbitMQ connection shared by every worker.
type BrokerConfig struct {
	Host     string
	User     string
	Password string
}

func loadBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Host:     getEnv("RABBITMQ_HOST", "localhost"),
		User:     getEnv("RABBITMQ_USER", "guest"),
		Password: getEnv("RABBITMQ_PASS", "guest"),
	}
}

func (c BrokerConfig) validate() error {
	if c.Host == "" {
		return pipelineerrors.New(pipelineerrors.ErrCodeFatal, "RABBITMQ_HOST must not be empty")
	}
	return nil
}

// ObjectStoreConfig configures the R2/S3-compatible object-store client.
type ObjectStoreConfig struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	ArchiveBucket   string
	LatestBucket    string
}

func loadObjectStoreConfig() ObjectStoreConfig {
	return ObjectStoreConfig{
		EndpointURL:     os.Getenv("R2_ENDPOINT_URL"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		ArchiveBucket:   os.Getenv("R2_ARCHIVE_BUCKET_NAME"),
		LatestBucket:    os.Getenv("R2_LATEST_BUCKET_NAME"),
	}
}

func (c ObjectStoreConfig) validate() error {
	if c.EndpointURL == "" || c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return pipelineerrors.New(pipelineerrors.ErrCodeFatal,
			"R2_ENDPOINT_URL, R2_ACCESS_KEY_ID and R2_SECRET_ACCESS_KEY must all be set")
	}
	return nil
}

// NotifyConfig configures the Slack notifier. An empty Token means
// notifications are disabled (internal/notify.NoopNotifier is used).
type NotifyConfig struct {
	Token   string
	Channel string
}

func loadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		Token:   os.Getenv("SLACK_TOKEN"),
		Channel: os.Getenv("SLACK_CHANNEL"),
	}
}

// ForestConfig configures access to the chain tool's RPC-serving node.
type ForestConfig struct {
	Host          string
	RPCPort       int
	TokenPath     string
}

func loadForestConfig() ForestConfig {
	return ForestConfig{
		Host:      getEnv("FOREST_HOST", "localhost"),
		RPCPort:   getEnvInt("FOREST_RPC_PORT", 2345),
		TokenPath: os.Getenv("FOREST_TOKEN_PATH"),
	}
}

// LotusConfig configures the secondary reference-daemon cross-check used
// by the Validate worker.
type LotusConfig struct {
	Host          string
	RPCPort       int
	FullRPCNode   string
	BackupRPCNode string

	// DaemonImage is the container image running the secondary reference
	// daemon (e.g. filecoin/lotus-all-in-one:v1.34.1).
	DaemonImage string
	// ContainerName is the fixed name the Validate worker creates and
	// tears down its reference-daemon container under, so a crashed
	// worker can find and remove a leftover instance on restart.
	ContainerName string
	// DockerNetwork attaches the daemon container to the same network as
	// the primary chain node.
	DockerNetwork string
	// HostSnapshotDir/ContainerSnapshotDir is the bind mount carrying the
	// artifact under test into the daemon container.
	HostSnapshotDir      string
	ContainerSnapshotDir string
}

func loadLotusConfig() LotusConfig {
	return LotusConfig{
		Host:                 getEnv("LOTUS_HOST", "localhost"),
		RPCPort:              getEnvInt("LOTUS_RPC_PORT", 1234),
		FullRPCNode:          getEnv("FULL_RPC_NODE", "http://127.0.0.1:1234/rpc/v0"),
		BackupRPCNode:        getEnv("BACKUP_RPC_NODE", "http://127.0.0.1:1234/rpc/v0"),
		DaemonImage:          getEnv("LOTUS_DAEMON_IMAGE", "filecoin/lotus-all-in-one:v1.34.1"),
		ContainerName:        getEnv("LOTUS_CONTAINER_NAME", "lotus-validate"),
		DockerNetwork:        os.Getenv("FOREST_HOST"),
		HostSnapshotDir:      os.Getenv("FOREST_HOST_SNAPSHOT_PATH"),
		ContainerSnapshotDir: os.Getenv("FOREST_CONTAINER_SNAPSHOT_PATH"),
	}
}

// ComputeConfig configures the Compute worker.
type ComputeConfig struct {
	Chain            string
	BatchSize        int64
	DefaultStartEpoch int64
	// BatchEpochOffset resolves Open Question (a), §12.3: the batch call
	// uses --epoch <e - BatchEpochOffset>.
	BatchEpochOffset int64
	MetricsPort      int

	Broker      BrokerConfig
	Notify      NotifyConfig
	Forest      ForestConfig
}

// LoadComputeConfig reads ComputeConfig from the environment.
func LoadComputeConfig() (ComputeConfig, error) {
	cfg := ComputeConfig{
		Chain:             getEnv("CHAIN", ChainDefault),
		BatchSize:         getEnvInt64("COMPUTE_BATCH_SIZE", 100),
		DefaultStartEpoch: getEnvInt64("DEFAULT_START_EPOCH", 0),
		BatchEpochOffset:  getEnvInt64("COMPUTE_BATCH_EPOCH_OFFSET", 1),
		MetricsPort:       getEnvInt("METRICS_PORT", 8000),
		Broker:            loadBrokerConfig(),
		Notify:            loadNotifyConfig(),
		Forest:            loadForestConfig(),
	}
	if err := cfg.Broker.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// BuildConfig configures the Build worker.
type BuildConfig struct {
	Chain                string
	SnapshotFormat       string
	SnapshotPath         string
	SnapshotArchivePath  string
	BuildDelay           int64 // seconds
	BuildLatestSnapshots bool
	// BuildLatestV1 resolves Open Question (b), §12.3.
	BuildLatestV1   bool
	WaitForComputation bool
	MetricsPort     int

	Broker BrokerConfig
	Notify NotifyConfig
	Forest ForestConfig
}

// LoadBuildConfig reads BuildConfig from the environment.
func LoadBuildConfig() (BuildConfig, error) {
	cfg := BuildConfig{
		Chain:                getEnv("CHAIN", ChainDefault),
		SnapshotFormat:       getEnv("SNAPSHOT_FORMAT", "v1"),
		SnapshotPath:         getEnv("SNAPSHOT_PATH", "/data/snapshots"),
		SnapshotArchivePath:  getEnv("SNAPSHOT_ARCHIVE_PATH", "/data/snapshots-archive"),
		BuildDelay:           getEnvInt64("BUILD_DELAY", 1200),
		BuildLatestSnapshots: getEnvBool("BUILD_LATEST_SNAPSHOTS", false),
		BuildLatestV1:        getEnvBool("BUILD_LATEST_V1", false),
		WaitForComputation:   getEnvBool("WAIT_FOR_COMPUTATION", true),
		MetricsPort:          getEnvInt("METRICS_PORT", 6116),
		Broker:               loadBrokerConfig(),
		Notify:               loadNotifyConfig(),
		Forest:               loadForestConfig(),
	}
	if err := cfg.Broker.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// UploadConfig configures the Upload worker.
type UploadConfig struct {
	Chain       string
	MetricsPort int

	Broker      BrokerConfig
	ObjectStore ObjectStoreConfig
	Notify      NotifyConfig
}

// LoadUploadConfig reads UploadConfig from the environment.
func LoadUploadConfig() (UploadConfig, error) {
	cfg := UploadConfig{
		Chain:       getEnv("CHAIN", ChainDefault),
		MetricsPort: getEnvInt("METRICS_PORT", 8000),
		Broker:      loadBrokerConfig(),
		ObjectStore: loadObjectStoreConfig(),
		Notify:      loadNotifyConfig(),
	}
	if err := cfg.Broker.validate(); err != nil {
		return cfg, err
	}
	if err := cfg.ObjectStore.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ValidateConfig configures the Validate worker.
type ValidateConfig struct {
	Chain string
	// PrimarySubcommand resolves Open Question (c), §12.3.
	PrimarySubcommand string
	MetricsPort       int

	Broker      BrokerConfig
	ObjectStore ObjectStoreConfig
	Notify      NotifyConfig
	Forest      ForestConfig
	Lotus       LotusConfig
}

// LoadValidateConfig reads ValidateConfig from the environment.
func LoadValidateConfig() (ValidateConfig, error) {
	cfg := ValidateConfig{
		Chain:             getEnv("CHAIN", ChainDefault),
		PrimarySubcommand: getEnv("VALIDATE_PRIMARY_SUBCOMMAND", "validate-diffs"),
		MetricsPort:       getEnvInt("METRICS_PORT", 8000),
		Broker:            loadBrokerConfig(),
		ObjectStore:       loadObjectStoreConfig(),
		Notify:            loadNotifyConfig(),
		Forest:            loadForestConfig(),
		Lotus:             loadLotusConfig(),
	}
	if err := cfg.Broker.validate(); err != nil {
		return cfg, err
	}
	if err := cfg.ObjectStore.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}
