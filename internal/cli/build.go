package cli

import (
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"shipdecl/internal/aggregator"
	"shipdecl/internal/audit"
	"shipdecl/internal/classifier"
	"shipdecl/internal/config"
	"shipdecl/internal/domain"
	"shipdecl/internal/export"
	"shipdecl/internal/ledger"
	"shipdecl/internal/parser"
	_ "shipdecl/internal/parser/claude"
	_ "shipdecl/internal/parser/openai"
	"shipdecl/internal/reconcile"
	"shipdecl/internal/repository/postgres"
	"shipdecl/internal/service"
	"shipdecl/internal/session"
	s3storage "shipdecl/internal/storage/s3"
	"shipdecl/internal/validator"
)

// pipeline is a wired PipelineService plus the resources it holds open.
type pipeline struct {
	svc      service.PipelineService
	sessions *session.Store
	db       *sqlx.DB
}

func (p *pipeline) Close() {
	if p.db != nil {
		_ = p.db.Close()
	}
}

func newClassifier(cfg *config.Config) (*classifier.Classifier, error) {
	c := classifier.New()
	if cfg.Classifier.RulesFile != "" {
		if err := c.LoadRulesFile(cfg.Classifier.RulesFile); err != nil {
			return nil, fmt.Errorf("classifier rules: %w", err)
		}
	}
	return c, nil
}

// buildPipeline wires every collaborator from cfg. Missing provider credentials leave the
// extractor unset so ledger-only runs still work; optional sinks that fail to connect
// are fatal because the user asked for them.
func buildPipeline(cfg *config.Config, sessionID string, onProgress func(service.Progress)) (*pipeline, error) {
	cls, err := newClassifier(cfg)
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(cfg.Session.Dir, sessionID)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	p := &pipeline{sessions: store}

	var trailOpts []audit.Option
	if cfg.DB.Enabled {
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("audit sink: %w", err)
		}
		p.db = db
		trailOpts = append(trailOpts, audit.WithSink(postgres.NewAuditRepo(db)))
	}

	var archiver *export.Archiver
	if cfg.Export.ArchiveToS3 {
		objects, err := s3storage.NewS3Client(&cfg.S3)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("archive storage: %w", err)
		}
		archiver = export.NewArchiver(objects, cfg.S3.Bucket, cfg.Export.ArchivePrefix)
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		p.Close()
		return nil, err
	}

	p.svc = service.NewPipelineService(service.PipelineDeps{
		Extractor:    extractor,
		LedgerParser: ledger.NewParser(cfg.Pipeline.CountryCodeMap),
		Aggregator:   aggregator.New(cfg.Pipeline.CarrierToMode),
		Reconciler:   reconcile.NewEngine(cfg.Pipeline.ValueTolerancePercent),
		Validator: validator.NewEngine(validator.Options{
			KnownBrands:     cfg.Pipeline.KnownBrands,
			ValidCurrencies: cfg.Pipeline.ValidCurrencies,
		}),
		Classifier: cls,
		Generator: export.NewGenerator(export.Options{
			HeaderFillColor: cfg.Export.HeaderFillColor,
			HeaderFontColor: cfg.Export.HeaderFontColor,
			DefaultFCLLCL:   cfg.Pipeline.DefaultFCLLCL,
			CurrencyOrder:   cfg.Pipeline.OutboundCurrencyOrder,
			DefaultCurrency: cfg.Pipeline.OutboundDefaultCurrency,
		}),
		Archiver:        archiver,
		Audit:           audit.NewTrail(store.SessionID(), trailOpts...),
		Sessions:        store,
		HomeCountry:     cfg.Pipeline.HomeCountry,
		DefaultFCLLCL:   cfg.Pipeline.DefaultFCLLCL,
		AutoApplyLedger: cfg.Pipeline.AutoApplyLedger,
		SaveRawLLM:      cfg.Session.SaveRawLLM,
		OnProgress:      onProgress,
	})
	return p, nil
}

// newExtractor returns nil without error when no provider credentials are configured.
func newExtractor(cfg *config.Config) (*parser.Extractor, error) {
	provider, err := parser.NewPageExtractor(&cfg.Parser)
	if errors.Is(err, domain.ErrMissingAPIKey) {
		log.Printf("cli.newExtractor: no API key configured; document extraction disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("extraction provider: %w", err)
	}

	opts := []parser.ExtractorOption{
		parser.WithPrompts(parser.LoadPrompts(cfg.Parser.PromptsDir)),
		parser.WithHomeCountry(cfg.Pipeline.HomeCountry),
	}
	if cfg.Cache.Enabled {
		opts = append(opts, parser.WithCache(parser.NewResponseCache(cfg.Cache.TTL)))
	}
	return parser.NewExtractor(provider, parser.NewRateLimiter(cfg.Parser.APIDelay()), opts...)
}
