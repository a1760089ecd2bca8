package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"caresignal.com/triage/ai"
	"caresignal.com/triage/alerts"
	"caresignal.com/triage/api"
	"caresignal.com/triage/episodes"
	"caresignal.com/triage/logger"
	"caresignal.com/triage/pipeline"
	"caresignal.com/triage/rmq"
	"caresignal.com/triage/s3client"
	"caresignal.com/triage/triage"
)

type Config struct {
	Port            string `envconfig:"TRIAGE_REST_API_PORT" default:"10000"`
	RuleCatalogPath string `envconfig:"TRIAGE_RULE_CATALOG_PATH" default:""`
	RosterPath      string `envconfig:"TRIAGE_SUPERVISOR_ROSTER_PATH" required:"true"`
	AIActive        bool   `envconfig:"TRIAGE_AI_ACTIVE" default:"true"`
	AuditActive     bool   `envconfig:"TRIAGE_AUDIT_ARCHIVE_ACTIVE" default:"true"`
}

const rmqConnectMaxRetries = 5

func main() {
	logger.SetupLogging()
	mainLogger := logger.NewLogger("Main")
	fatalErrLogger := mainLogger.Fatal().Caller()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fatalErrLogger.Err(err).Msg("Failed to read environment")
		os.Exit(1)
	}

	rules := triage.DefaultCatalog()
	if config.RuleCatalogPath != "" {
		loaded, err := triage.LoadCatalog(config.RuleCatalogPath)
		if err != nil {
			fatalErrLogger.Err(err).Msg("Failed to load rule catalog")
			os.Exit(1)
		}
		mainLogger.Info().Msgf("Loaded %d rules from catalog file", len(loaded))
		rules = loaded
	}
	engine, err := triage.NewEngine(rules)
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to build rule engine")
		os.Exit(1)
	}

	roster, err := alerts.LoadRoster(config.RosterPath)
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to load supervisor roster")
		os.Exit(1)
	}
	mainLogger.Info().Msgf("Loaded %d supervisors", len(roster))

	store, err := episodes.NewStore()
	if err != nil {
		fatalErrLogger.Err(err).Msg("Could not create episode store")
		os.Exit(1)
	}
	defer store.Close()

	var rmqClient *rmq.Client
	for retry := 0; ; retry++ {
		rmqClient, err = rmq.NewClient()
		if err == nil {
			break
		}
		if retry >= rmqConnectMaxRetries {
			fatalErrLogger.Err(err).Msg("Could not create RMQ client")
			os.Exit(1)
		}
		mainLogger.Err(err).Msg("Failed to connect to RMQ. Retrying in 5 sec")
		time.Sleep(5 * time.Second)
	}
	defer rmqClient.Close()

	var assessor *ai.Assessor
	if config.AIActive {
		assessor, err = ai.New()
		if err != nil {
			fatalErrLogger.Err(err).Msg("Could not create AI assessor")
			os.Exit(1)
		}
	} else {
		mainLogger.Info().Msg("AI assistance gate is disabled, triage will be rule-based only")
	}

	var archive *s3client.Client
	if config.AuditActive {
		archive, err = s3client.New()
		if err != nil {
			fatalErrLogger.Err(err).Msg("Could not create audit archive client")
			os.Exit(1)
		}
		defer archive.Close()
	} else {
		mainLogger.Info().Msg("Audit archive is disabled")
	}

	dispatcher := alerts.NewDispatcher(rmqClient, roster)
	triagePipeline := pipeline.New(engine, store, assessor, archive, dispatcher)

	handlers := &api.Handlers{
		Store:    store,
		Pipeline: triagePipeline,
		Audit:    archive,
	}
	mux := http.NewServeMux()
	handlers.Register(mux)

	host := fmt.Sprintf(":%s", config.Port)
	mainLogger.Info().Msgf("REST API on %s", host)
	err = http.ListenAndServe(host, mux)
	fatalErrLogger.Err(err).Msg("REST API stopped with error")
	os.Exit(1)
}
