package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v2"

	apiClassify "github.com/contaflow/classifier-core/pkg/api/classify"
	"github.com/contaflow/classifier-core/pkg/api/config"
	apiCorrection "github.com/contaflow/classifier-core/pkg/api/correction"
	"github.com/contaflow/classifier-core/pkg/core/agent"
	"github.com/contaflow/classifier-core/pkg/core/catalog"
	coreClassify "github.com/contaflow/classifier-core/pkg/core/classify"
	"github.com/contaflow/classifier-core/pkg/core/correction"
	"github.com/contaflow/classifier-core/pkg/core/learning"
	"github.com/contaflow/classifier-core/pkg/core/prompt"
	"github.com/contaflow/classifier-core/pkg/core/store"
	"github.com/contaflow/classifier-core/pkg/core/tenantctx"
)

func main() {
	godotenv.Load()

	resourcesPath := "resources"
	if _, err := os.Stat(resourcesPath); os.IsNotExist(err) {
		exePath, _ := os.Executable()
		resourcesPath = filepath.Join(filepath.Dir(exePath), "resources")
	}
	if err := prompt.LoadFromDirectory(resourcesPath); err != nil {
		fmt.Printf("[WARNING] Failed to load prompt library: %v\n", err)
		fmt.Println("  Falling back to hardcoded prompts")
	} else {
		fmt.Printf("[PROMPT] Loaded %d prompts from %s\n", prompt.Get().Count(), resourcesPath)
	}

	configData, _ := ioutil.ReadFile("config/classifier.yaml")
	var agentCfg agent.Config
	yaml.Unmarshal(configData, &agentCfg)
	agentMgr := agent.NewManager(agentCfg)

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		fmt.Printf("[FATAL] Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	if err := store.Migrate(ctx); err != nil {
		fmt.Printf("[FATAL] Failed to apply migrations: %v\n", err)
		os.Exit(1)
	}
	pool := store.GetPool()

	var redisClient *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			fmt.Printf("[WARNING] Invalid REDIS_URL, running without cache: %v\n", err)
		} else {
			redisClient = redis.NewClient(opts)
		}
	}

	catalogRepo := catalog.NewRepo(pool)
	learningRepo := learning.NewRepo(pool)
	learningWriter := learning.NewWriter(pool)
	learningLookup := learning.NewLookup(learningRepo)
	tenantCache := tenantctx.NewCache(redisClient)
	contextor := tenantctx.NewProvider(pool, tenantCache)

	modelSelector := coreClassify.NewModelSelector()
	familyClassifier := coreClassify.NewFamilyClassifier(agentMgr, modelSelector, contextor, catalogRepo)
	subfamilyClassifier := coreClassify.NewSubfamilyClassifier(agentMgr, modelSelector, catalogRepo)
	retriever := coreClassify.NewRetriever(agentMgr, catalogRepo, coreClassify.StrategyVector)
	accountSelector := coreClassify.NewAccountSelector(agentMgr, modelSelector, catalogRepo, learningRepo, contextor)

	pipeline := coreClassify.NewPipeline(learningLookup, familyClassifier, subfamilyClassifier, retriever, accountSelector, learningWriter, contextor, catalogRepo)
	correctionService := correction.NewService(learningLookup, learningWriter, learningRepo, catalogRepo)

	configHandler := config.NewHandler(agentMgr, agentCfg)
	http.HandleFunc("/api/config", configHandler.HandleConfig)

	classifyHandler := apiClassify.NewHandler(pipeline)
	http.HandleFunc("/api/classify", classifyHandler.HandleClassify)
	http.HandleFunc("/api/classify/confirm", classifyHandler.HandleConfirm)

	correctionHandler := apiCorrection.NewHandler(correctionService)
	http.HandleFunc("/api/correction/correct", correctionHandler.HandleCorrect)
	http.HandleFunc("/api/correction/search-similar", correctionHandler.HandleSearchSimilar)
	http.HandleFunc("/api/correction/learning-stats", correctionHandler.HandleLearningStats)
	http.HandleFunc("/api/correction/batch-auto-apply", correctionHandler.HandleBatchAutoApply)

	fmt.Println("Classification API server starting on :8080...")
	fmt.Println("  - GET  /api/config")
	fmt.Println("  - POST /api/classify")
	fmt.Println("  - POST /api/classify/confirm")
	fmt.Println("  - POST /api/correction/correct")
	fmt.Println("  - GET  /api/correction/search-similar")
	fmt.Println("  - GET  /api/correction/learning-stats")
	fmt.Println("  - POST /api/correction/batch-auto-apply")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		fmt.Printf("[FATAL] Server failed: %v\n", err)
		os.Exit(1)
	}
}
