// Command pipeline exposes one subcommand per ingestion/query stage so a
// run can be driven stage-by-stage from a scheduler or a human, resuming
// from the chunk artifacts left on disk by the previous stage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/artifact"
	"github.com/naeri-labs/filmgraph/internal/chunking"
	"github.com/naeri-labs/filmgraph/internal/config"
	"github.com/naeri-labs/filmgraph/internal/domain"
	"github.com/naeri-labs/filmgraph/internal/embedding"
	"github.com/naeri-labs/filmgraph/internal/extraction"
	"github.com/naeri-labs/filmgraph/internal/graphstore"
	"github.com/naeri-labs/filmgraph/internal/graphwriter"
	"github.com/naeri-labs/filmgraph/internal/indexpublisher"
	"github.com/naeri-labs/filmgraph/internal/ledger"
	"github.com/naeri-labs/filmgraph/internal/llm"
	"github.com/naeri-labs/filmgraph/internal/query"
	"github.com/naeri-labs/filmgraph/internal/registry"
	"github.com/naeri-labs/filmgraph/internal/resolution"
	"github.com/naeri-labs/filmgraph/internal/stats"
	"github.com/naeri-labs/filmgraph/internal/summarization"
	"github.com/naeri-labs/filmgraph/internal/websearch"
	"github.com/naeri-labs/filmgraph/pkg/sigv4http"
)

var (
	configPath  = flag.String("config", "", "path to pipeline config YAML")
	artifactDir = flag.String("artifacts", "./artifacts", "directory of chunk artifact JSON files")
	transcript  = flag.String("transcript", "", "path to a transcript text file (run_chunking)")
	movieID     = flag.String("movie-id", "", "movie id the transcript reviews (run_chunking)")
	reviewer    = flag.String("reviewer", "", "reviewer identifier (run_chunking)")
	question    = flag.String("question", "", "natural-language question to answer (run_query)")
)

// env is every collaborator a stage might need, built once per process
// from the loaded config. Subcommands pull out only the fields they use.
type env struct {
	cfg         *config.Config
	logger      *zap.Logger
	artifacts   *artifact.Store
	graphStore  *graphstore.NeptuneStore
	registry    *registry.OpenSearchRegistry
	llmProvider llm.Provider
	embedder    embedding.Embedder
	failureQ    *ledger.FailureQueue
	claimLedger *ledger.ClaimLedger
	pairLock    *ledger.PairLock
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	flag.CommandLine.Parse(os.Args[2:])

	if cmd == "validate" {
		runValidate(*configPath)
		return
	}

	e, err := bootstrap(*configPath, *artifactDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pipeline: bootstrap failed:", err)
		os.Exit(1)
	}
	defer e.logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	switch cmd {
	case "run_chunking":
		err = e.runChunking(ctx)
	case "run_entity_extraction":
		err = e.runEntityExtraction(ctx)
	case "run_entity_resolution":
		err = e.runEntityResolution(ctx)
	case "run_save_to_neptune":
		err = e.runSaveToNeptune(ctx)
	case "run_entity_summarization":
		err = e.runEntitySummarization(ctx)
	case "run_entity_to_opensearch":
		err = e.runEntityToOpenSearch(ctx)
	case "run_query":
		err = e.runQuery(ctx)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		e.logger.Error("pipeline: stage failed", zap.String("stage", cmd), zap.Error(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pipeline <subcommand> [-config path] [-artifacts dir]

subcommands:
  run_chunking              split a transcript (-transcript, -movie-id, -reviewer) into chunk artifacts
  run_entity_extraction     run LLM entity/relationship extraction over every chunk artifact
  run_entity_resolution     resolve every surface name against the canonical registry
  run_save_to_neptune       write chunks, entities, and edges into the graph store
  run_entity_summarization  summarize entities and edges that have descriptions but no summary, and assign canonical ids
  run_entity_to_opensearch  publish summarized entities and chunks into the search index
  run_query                 answer a question (-question) against the graph and search index
  validate                  load and validate a config file without connecting to anything`)
}

func runValidate(path string) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pipeline: invalid config:", err)
		os.Exit(1)
	}
	fmt.Printf("config OK: %d-dim index, %d-character chunk window, %d graph-writer workers\n",
		cfg.SearchIndex.Dimension, cfg.Chunking.WindowSize, cfg.GraphWriter.Phase1Workers)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func bootstrap(path, artifactDirPath string) (*env, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var logger *zap.Logger
	if os.Getenv("FILMGRAPH_ENV") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	store, err := artifact.NewStore(artifactDirPath)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	neptuneClient := sigv4http.New(cfg.GraphStore.Endpoint, "neptune-db", cfg.AWSRegion, awsCfg.Credentials,
		time.Duration(cfg.GraphStore.RequestTimeout)*time.Second)
	graphStore := graphstore.NewNeptuneStore(neptuneClient)

	bedrockClient := sigv4http.New(cfg.Bedrock.Endpoint, "bedrock", cfg.AWSRegion, awsCfg.Credentials,
		time.Duration(cfg.Bedrock.RequestTimeout)*time.Second)
	embedder := embedding.NewBedrockEmbedder(bedrockClient, cfg.Bedrock.EmbeddingModel)
	provider := llm.NewBedrockProvider(bedrockClient, cfg.Bedrock.CompletionModel)

	osClient := sigv4http.New(cfg.SearchIndex.Endpoint, "es", cfg.AWSRegion, awsCfg.Credentials,
		time.Duration(cfg.SearchIndex.RequestTimeout)*time.Second)
	reg := registry.NewOpenSearchRegistry(osClient, registry.Config{
		EntitiesIndex: cfg.SearchIndex.EntitiesIndex,
		ChunksIndex:   cfg.SearchIndex.ChunksIndex,
		Dimension:     cfg.SearchIndex.Dimension,
		MinScore:      cfg.SearchIndex.MinMatchScore,
		Embedder:      embedder,
	}, logger)

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	failureQ := ledger.NewFailureQueue(dynamoClient, cfg.Ledger.TableName, logger)
	claimLedger := ledger.NewClaimLedger(dynamoClient, cfg.Ledger.TableName, logger)
	pairLock := ledger.NewPairLock(dynamoClient, cfg.Ledger.TableName, logger)

	return &env{
		cfg: cfg, logger: logger, artifacts: store,
		graphStore: graphStore, registry: reg, llmProvider: provider,
		embedder: embedder, failureQ: failureQ,
		claimLedger: claimLedger, pairLock: pairLock,
	}, nil
}

func (e *env) runChunking(ctx context.Context) error {
	raw, err := os.ReadFile(*transcript)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	chunks, err := chunking.Produce(chunking.Transcript{
		Text: string(raw), MovieID: *movieID, Reviewer: *reviewer,
	}, e.cfg.Chunking.WindowSize, e.cfg.Chunking.Overlap)
	if err != nil {
		return fmt.Errorf("produce chunks: %w", err)
	}

	st := stats.NewStage()
	for i := range chunks {
		if err := e.artifacts.Save(&chunks[i]); err != nil {
			st.Record(stats.Outcome{Failed: true, Category: "io"})
			continue
		}
		st.Record(stats.Outcome{})
	}
	e.logger.Info("pipeline: chunking complete", zap.Int("chunks", len(chunks)), zap.Any("stats", st.Snapshot()))
	return nil
}

func (e *env) runEntityExtraction(ctx context.Context) error {
	chunks, err := e.artifacts.LoadAll()
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	adapter := &llm.ExtractionAdapter{Provider: e.llmProvider}
	movieContext := func(c *artifact.Chunk) string { return fmt.Sprintf("movie_id=%s reviewer=%s", c.MovieID, c.Reviewer) }

	errs := extraction.Run(ctx, adapter, chunks, movieContext)
	for _, c := range chunks {
		if err := e.artifacts.Save(c); err != nil {
			e.logger.Warn("pipeline: save chunk after extraction failed", zap.String("chunk_id", c.ChunkID), zap.Error(err))
		}
	}
	e.logger.Info("pipeline: extraction complete", zap.Int("chunks", len(chunks)), zap.Int("errors", len(errs)))
	return nil
}

func (e *env) runEntityResolution(ctx context.Context) error {
	chunks, err := e.artifacts.LoadAll()
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	for _, c := range chunks {
		resolution.Run(ctx, e.registry, c)
		if err := e.artifacts.Save(c); err != nil {
			e.logger.Warn("pipeline: save chunk after resolution failed", zap.String("chunk_id", c.ChunkID), zap.Error(err))
		}
	}
	e.logger.Info("pipeline: resolution complete", zap.Int("chunks", len(chunks)))
	return nil
}

func (e *env) runSaveToNeptune(ctx context.Context) error {
	chunks, err := e.artifacts.LoadAll()
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	w := graphwriter.New(e.graphStore, e.cfg.GraphWriter, e.logger)
	w.ClaimLedger = e.claimLedger
	w.PairLock = e.pairLock
	result := w.Run(ctx, chunks)
	e.logger.Info("pipeline: graph write complete",
		zap.Int("phase1_failed", len(result.Phase1Failures)), zap.Int("phase2_failed", len(result.Phase2Failures)))

	run := runID()
	for _, c := range result.Phase1Failures {
		pushFailure(ctx, e.failureQ, run, "phase1", c.ChunkID, e.logger)
	}
	for _, c := range result.Phase2Failures {
		pushFailure(ctx, e.failureQ, run, "phase2", c.ChunkID, e.logger)
	}
	return nil
}

func pushFailure(ctx context.Context, q *ledger.FailureQueue, runID, kind, itemID string, logger *zap.Logger) {
	if err := q.Push(ctx, ledger.FailureRecord{RunID: runID, Kind: kind, ItemID: itemID, Attempts: 0, Round: 0}); err != nil {
		logger.Error("pipeline: push failure record", zap.String("item_id", itemID), zap.Error(err))
	}
}

func runID() string {
	return time.Now().UTC().Format("20060102T150405")
}

func (e *env) runEntitySummarization(ctx context.Context) error {
	stage := summarization.New(e.graphStore, &llm.SummarizationAdapter{Provider: e.llmProvider}, domain.NewCanonicalID, e.logger)
	return stage.Run(ctx)
}

func (e *env) runEntityToOpenSearch(ctx context.Context) error {
	if err := e.registry.EnsureIndices(ctx); err != nil {
		return fmt.Errorf("ensure indices: %w", err)
	}
	pub := indexpublisher.New(e.graphStore, e.registry, e.embedder, e.logger)
	published, failed, err := pub.PublishEntities(ctx)
	if err != nil {
		return fmt.Errorf("publish entities: %w", err)
	}
	e.logger.Info("pipeline: entities published", zap.Int("published", published), zap.Int("failed", failed))

	published, failed, err = pub.PublishChunks(ctx)
	if err != nil {
		return fmt.Errorf("publish chunks: %w", err)
	}
	e.logger.Info("pipeline: chunks published", zap.Int("published", published), zap.Int("failed", failed))
	return nil
}

func (e *env) runQuery(ctx context.Context) error {
	if *question == "" {
		return fmt.Errorf("run_query: -question is required")
	}

	var webTool query.WebSearchTool
	if apiKey := os.Getenv("FILMGRAPH_WEBSEARCH_API_KEY"); apiKey != "" {
		webTool = websearch.NewHTTPTool(nil, os.Getenv("FILMGRAPH_WEBSEARCH_URL"), apiKey)
	}

	engine := query.New(e.registry, e.registry, e.graphStore, e.embedder, e.llmProvider, e.logger)
	engine.TopKChunks = e.cfg.Query.TopKChunks
	engine.NeighborhoodHops = e.cfg.Query.HopDepth
	engine.AgentPoolSize = e.cfg.Query.AgentPoolSize
	engine.WebSearch = webTool

	deadline := time.Duration(e.cfg.Query.QueryDeadlineMs) * time.Millisecond
	if deadline <= 0 {
		deadline = 20 * time.Second
	}
	qctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	result, err := engine.Run(qctx, *question)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	entityNames := make([]string, 0, len(result.Entities))
	for _, ent := range result.Entities {
		entityNames = append(entityNames, ent.Name)
	}
	sort.Strings(entityNames)

	out, err := json.MarshalIndent(struct {
		Answer   string   `json:"answer"`
		Entities []string `json:"entities"`
	}{Answer: result.Answer, Entities: entityNames}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
