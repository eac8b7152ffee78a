package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v2"

	"github.com/contaflow/classifier-core/pkg/core/agent"
	"github.com/contaflow/classifier-core/pkg/core/catalog"
	"github.com/contaflow/classifier-core/pkg/core/classify"
	"github.com/contaflow/classifier-core/pkg/core/learning"
	"github.com/contaflow/classifier-core/pkg/core/prompt"
	"github.com/contaflow/classifier-core/pkg/core/store"
	"github.com/contaflow/classifier-core/pkg/core/tenant"
	"github.com/contaflow/classifier-core/pkg/core/tenantctx"
)

func logStep(step string, details string) {
	fmt.Printf("\n[STEP] %s\n", step)
	fmt.Println("---------------------------------------------------------")
	fmt.Println(details)
	fmt.Println("---------------------------------------------------------")
}

// sampleInvoice is a fictitious CFDI: a logistics/freight concept that
// exercises the subfamily hard rule (almacenamiento/logistica/fletes -> 602)
// and the Model Selector's complexity heuristics.
func sampleInvoice() classify.InvoiceSnapshot {
	return classify.InvoiceSnapshot{
		TenantID:       tenant.ID(1),
		EmisorRFC:      "LOG850101AB1",
		EmisorName:     "Logistica y Fletes del Norte SA de CV",
		ReceptorRFC:    "ACM010101XYZ",
		ReceptorName:   "Contaflow Demo SA de CV",
		PrimaryConcept: "Servicio de fletes y almacenamiento de mercancia",
		ClaveProdServ:  "78101801",
		Total:          48500.00,
		Currency:       "MXN",
		MetodoPago:     classify.PaymentPUE,
		UsoCFDI:        "G03",
		Conceptos: []classify.ConceptLine{
			{Description: "Servicio de fletes y almacenamiento de mercancia", Amount: 48500.00, ClaveProdServ: "78101801", SharePct: 1.0},
		},
	}
}

func main() {
	logStep("0. Initialization", "Starting End-to-End Classification Pipeline Demo...")

	godotenv.Load()

	if err := prompt.LoadFromDirectory("resources"); err != nil {
		fmt.Printf("Warning: Failed to load prompts from 'resources': %v\n", err)
	} else {
		fmt.Println("Prompt library loaded")
	}

	configData, _ := ioutil.ReadFile("config/classifier.yaml")
	var agentCfg agent.Config
	yaml.Unmarshal(configData, &agentCfg)
	agentMgr := agent.NewManager(agentCfg)

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		fmt.Printf("Error: %v (set DATABASE_URL to a Postgres instance with the pgvector extension)\n", err)
		os.Exit(1)
	}
	if err := store.Migrate(ctx); err != nil {
		fmt.Printf("Error applying migrations: %v\n", err)
		os.Exit(1)
	}
	pool := store.GetPool()

	var redisClient *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		if opts, err := redis.ParseURL(redisURL); err == nil {
			redisClient = redis.NewClient(opts)
		}
	}

	catalogRepo := catalog.NewRepo(pool)
	learningRepo := learning.NewRepo(pool)
	learningWriter := learning.NewWriter(pool)
	learningLookup := learning.NewLookup(learningRepo)
	contextor := tenantctx.NewProvider(pool, tenantctx.NewCache(redisClient))

	modelSelector := classify.NewModelSelector()
	familyClassifier := classify.NewFamilyClassifier(agentMgr, modelSelector, contextor, catalogRepo)
	subfamilyClassifier := classify.NewSubfamilyClassifier(agentMgr, modelSelector, catalogRepo)
	retriever := classify.NewRetriever(agentMgr, catalogRepo, classify.StrategyVector)
	accountSelector := classify.NewAccountSelector(agentMgr, modelSelector, catalogRepo, learningRepo, contextor)

	pipeline := classify.NewPipeline(learningLookup, familyClassifier, subfamilyClassifier, retriever, accountSelector, learningWriter, contextor, catalogRepo)

	invoice := sampleInvoice()
	logStep("1. Invoice Snapshot", fmt.Sprintf(
		"Emisor: %s (%s)\nConcepto: %s\nTotal: %.2f %s\nUsoCFDI declarado: %s",
		invoice.EmisorName, invoice.EmisorRFC, invoice.PrimaryConcept, invoice.Total, invoice.Currency, invoice.UsoCFDI))

	result, err := pipeline.Classify(ctx, invoice)
	if err != nil {
		logStep("ERROR", fmt.Sprintf("Pipeline failed: %v", err))
		os.Exit(1)
	}

	resultJSON, _ := json.MarshalIndent(result, "", "  ")
	logStep("2. Classification Result", string(resultJSON))

	stats := modelSelector.Stats()
	logStep("3. Model Selector Usage", fmt.Sprintf(
		"Cheap-tier calls: %d\nStrong-tier calls: %d\nEstimated cost: $%.4f",
		stats.CheapCount, stats.StrongCount, stats.TotalCost))
}
