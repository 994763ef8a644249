package main

import (
	"context"
	"log"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/config"
	"github.com/naeri-labs/filmgraph/internal/embedding"
	"github.com/naeri-labs/filmgraph/internal/graphstore"
	"github.com/naeri-labs/filmgraph/internal/httpapi"
	"github.com/naeri-labs/filmgraph/internal/llm"
	"github.com/naeri-labs/filmgraph/internal/query"
	"github.com/naeri-labs/filmgraph/internal/registry"
	"github.com/naeri-labs/filmgraph/pkg/sigv4http"
)

var (
	chiLambda     *chiadapter.ChiLambdaV2
	logger        *zap.Logger
	coldStart     = true
	coldStartTime time.Time
)

// init runs once per cold start: it builds the query engine's
// collaborators and wraps the chi router httpapi.NewRouter assembles so
// every later invocation only pays for ProxyWithContextV2.
func init() {
	coldStartTime = time.Now()
	log.Println("filmgraph lambda: cold start initiated")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Load(os.Getenv("FILMGRAPH_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("filmgraph lambda: load config: %v", err)
	}

	if os.Getenv("FILMGRAPH_ENV") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("filmgraph lambda: build logger: %v", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("filmgraph lambda: load aws config: %v", err)
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

	engine := query.New(reg, reg, graphStore, embedder, provider, logger)
	engine.TopKChunks = cfg.Query.TopKChunks
	engine.NeighborhoodHops = cfg.Query.HopDepth
	engine.AgentPoolSize = cfg.Query.AgentPoolSize

	handler := httpapi.NewRouter(engine, httpapi.Config{
		JWTSecret:     os.Getenv("FILMGRAPH_JWT_SECRET"),
		JWTIssuer:     os.Getenv("FILMGRAPH_JWT_ISSUER"),
		QueryDeadline: time.Duration(cfg.Query.QueryDeadlineMs) * time.Millisecond,
	}, logger)

	chiRouter, ok := handler.(*chi.Mux)
	if !ok {
		log.Fatal("filmgraph lambda: httpapi.NewRouter did not return a *chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	log.Printf("filmgraph lambda: cold start completed in %v", time.Since(coldStartTime))
}

// Handler proxies one API Gateway HTTP API (v2 payload) request through
// the chi router; httpapi.QueryHandler's per-request deadline bounds the
// work done per invocation independently of the Lambda timeout.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := chiLambda.ProxyWithContextV2(ctx, req)
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		coldStart = false
	} else {
		resp.Headers["X-Cold-Start"] = "false"
	}
	resp.Headers["X-Request-ID"] = req.RequestContext.RequestID

	logger.Info("filmgraph lambda: request",
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("path", req.RequestContext.HTTP.Path),
		zap.Int("status", resp.StatusCode),
	)
	return resp, err
}

func main() {
	lambda.Start(Handler)
}
