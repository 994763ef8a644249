// Package config loads the pipeline's static and hot-reloadable settings.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultEmbeddingDimension is the fixed vector length shared by the index
// mapping, the embedding contract, and validators. An index whose vector
// mapping has a different dimension is reported by the registry's
// EnsureIndices as apperr.SchemaMismatch; a single vector of a different
// length is rejected as an error for that one write.
const DefaultEmbeddingDimension = 1024

// Config is the full configuration loaded once at process start. The
// GraphWriter and Query fields double as the ReloadableConfig snapshot:
// Watcher re-reads the same file and swaps those two out without touching
// GraphStore, SearchIndex, or Ledger, which require re-provisioning a
// client and so are fixed for the process lifetime.
type Config struct {
	GraphStore  GraphStoreConfig  `yaml:"graph_store" validate:"required"`
	SearchIndex SearchIndexConfig `yaml:"search_index" validate:"required"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Chunking    ChunkingConfig    `yaml:"chunking" validate:"required"`
	GraphWriter GraphWriterConfig `yaml:"graph_writer" validate:"required"`
	Query       QueryConfig       `yaml:"query" validate:"required"`
	Bedrock     BedrockConfig     `yaml:"bedrock" validate:"required"`
	AWSRegion   string            `yaml:"aws_region" validate:"omitempty,min=2"`
}

// BedrockConfig names the Bedrock model IDs the LLM and embedding
// adapters invoke; both are fixed for the process lifetime like
// GraphStore and SearchIndex.
type BedrockConfig struct {
	Endpoint        string `yaml:"endpoint" validate:"required,url"`
	CompletionModel string `yaml:"completion_model" validate:"required"`
	EmbeddingModel  string `yaml:"embedding_model" validate:"required"`
	RequestTimeout  int    `yaml:"request_timeout_seconds" validate:"required,min=1"`
}

// Reloadable extracts the subset of c safe to hot-swap at runtime.
func (c *Config) Reloadable() ReloadableConfig {
	return ReloadableConfig{GraphWriter: c.GraphWriter, Query: c.Query}
}

// GraphStoreConfig points at the Neptune openCypher-over-HTTPS endpoint.
type GraphStoreConfig struct {
	Endpoint       string `yaml:"endpoint" validate:"omitempty,url"`
	RequestTimeout int    `yaml:"request_timeout_seconds" validate:"required,min=1"`
}

// SearchIndexConfig points at the OpenSearch domain and its two indices.
type SearchIndexConfig struct {
	Endpoint       string  `yaml:"endpoint" validate:"omitempty,url"`
	EntitiesIndex  string  `yaml:"entities_index" validate:"required"`
	ChunksIndex    string  `yaml:"chunks_index" validate:"required"`
	Dimension      int     `yaml:"dimension" validate:"required,min=1"`
	MinMatchScore  float64 `yaml:"min_match_score" validate:"min=0"`
	RequestTimeout int     `yaml:"request_timeout_seconds" validate:"required,min=1"`
}

// LedgerConfig is the DynamoDB table backing the canonical-id claim
// ledger, the edge-pair lock, and the durable failure queue. It has no
// default: an operator supplies table_name via the config file before
// running any stage that touches the graph store.
type LedgerConfig struct {
	TableName string `yaml:"table_name"`
}

// ChunkingConfig holds the chunker's window and overlap defaults.
type ChunkingConfig struct {
	WindowSize int `yaml:"window_size" validate:"required,min=1"`
	Overlap    int `yaml:"overlap" validate:"min=0"`
}

// GraphWriterConfig holds the two-phase writer's concurrency and retry
// tuning.
type GraphWriterConfig struct {
	Phase1Workers  int     `yaml:"phase1_workers" validate:"required,min=1"`
	Phase2Workers  int     `yaml:"phase2_workers" validate:"required,min=1"`
	MaxAttempts    int     `yaml:"max_attempts" validate:"required,min=1"`
	BackoffUnit    float64 `yaml:"backoff_unit_seconds" validate:"min=0"`
	MaxDrainRounds int     `yaml:"max_drain_rounds" validate:"required,min=1"`
	LockTTLSeconds int     `yaml:"lock_ttl_seconds" validate:"min=0"`
}

// QueryConfig holds the query router's fan-out and deadline tuning.
type QueryConfig struct {
	TopKChunks      int `yaml:"top_k_chunks" validate:"required,min=1"`
	HopDepth        int `yaml:"hop_depth" validate:"min=0"`
	AgentPoolSize   int `yaml:"agent_pool_size" validate:"required,min=1"`
	QueryDeadlineMs int `yaml:"query_deadline_ms" validate:"required,min=1"`
}

// ReloadableConfig is the subset of configuration safe to hot-swap without
// a restart; everything else requires re-provisioning a client.
type ReloadableConfig struct {
	GraphWriter GraphWriterConfig `yaml:"graph_writer"`
	Query       QueryConfig       `yaml:"query"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		SearchIndex: SearchIndexConfig{
			EntitiesIndex:  "entities",
			ChunksIndex:    "chunks",
			Dimension:      DefaultEmbeddingDimension,
			MinMatchScore:  3.4,
			RequestTimeout: 10,
		},
		GraphStore: GraphStoreConfig{RequestTimeout: 15},
		Chunking: ChunkingConfig{
			WindowSize: 1500,
			Overlap:    100,
		},
		GraphWriter: GraphWriterConfig{
			Phase1Workers:  20,
			Phase2Workers:  1,
			MaxAttempts:    5,
			BackoffUnit:    0.5,
			MaxDrainRounds: 5,
			LockTTLSeconds: 30,
		},
		Query: QueryConfig{
			TopKChunks:      8,
			HopDepth:        2,
			AgentPoolSize:   5,
			QueryDeadlineMs: 20000,
		},
		Bedrock: BedrockConfig{
			Endpoint:        "https://bedrock-runtime.us-east-1.amazonaws.com",
			CompletionModel: "anthropic.claude-3-sonnet-20240229-v1:0",
			EmbeddingModel:  "amazon.titan-embed-text-v2:0",
			RequestTimeout:  60,
		},
	}
}

// Load reads a YAML config file and overlays it onto Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects a configuration that would violate a schema invariant
// before any pipeline stage starts, rather than failing mid-run. Struct
// tags catch per-field range/presence problems; validateBusinessRules
// catches the cross-field invariants struct tags can't express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("config: validation failed: %w", err)
		}
		msgs := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s", e.Namespace(), e.Tag()))
		}
		return fmt.Errorf("config: validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
	}
	return c.validateBusinessRules()
}

// validateBusinessRules checks invariants that span more than one field,
// which struct tags alone can't express.
func (c *Config) validateBusinessRules() error {
	if c.Chunking.WindowSize <= c.Chunking.Overlap {
		return fmt.Errorf("config: chunking.window_size must exceed chunking.overlap")
	}
	return nil
}
