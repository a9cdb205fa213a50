package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mcpadapter "github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/adapters/mcp"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/config"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/ports"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/usecase"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/automationfile"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/directory/fixture"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/llm/anthropic"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/llm/openai"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/queue/nats"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/repository/postgres"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/resilience"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/observability/metrics"
)

const Version = "0.1.0"

type App struct {
	Config     config.Config
	Metrics    *metrics.HTTPServerMetrics
	Automation domain.AutomationConfig

	Providers      *usecase.ProviderFactory
	Tools          *usecase.ToolRegistry
	Actions        *usecase.ActionLogger
	Steward        *usecase.Steward
	Communications *usecase.CommunicationsModule
	Maintenance    *usecase.MaintenanceModule
	MCP            *mcpadapter.Server

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	appMetrics := metrics.NewHTTPServerMetrics("api")

	automation, err := automationfile.Resolve(cfg.AutomationConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load automation config: %w", err)
	}

	directory, err := fixture.Load(cfg.FixturesPath)
	if err != nil {
		return nil, fmt.Errorf("load property directory: %w", err)
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store, err := openActionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if store.close != nil {
		closers = append(closers, store.close)
	}

	var events ports.ActionEventPublisher
	if cfg.NATSURL != "" {
		bus, err := nats.New(cfg.NATSURL, nats.Options{
			SubjectPrefix:      cfg.NATSSubjectPrefix,
			QueueGroup:         cfg.NATSQueueGroup,
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		events = bus
		closers = append(closers, bus.Close)
	}

	providers := newProviderFactory(cfg, appMetrics)
	for _, status := range providers.Providers() {
		slog.Info("provider_configured", "provider", status.Type, "available", status.Available, "primary", status.Primary)
	}

	tools := usecase.NewToolRegistry()
	tools.MustRegister(usecase.StewardTools(directory)...)

	actions := usecase.NewActionLogger(store.store, events)
	communications := usecase.NewCommunicationsModule(providers, actions, automation)
	maintenance := usecase.NewMaintenanceModule(providers, actions, automation)
	modules := []ports.PromptModule{
		communications,
		maintenance,
		usecase.NewLeasingModule(providers, actions, automation),
		usecase.NewAccountingModule(providers, actions, automation),
	}

	steward := usecase.NewSteward(providers, tools, actions, modules, usecase.StewardOptions{
		MaxToolSteps: cfg.StewardMaxToolSteps,
		Automation:   automation,
		Observer:     appMetrics,
	})

	var mcpServer *mcpadapter.Server
	if cfg.MCPEnabled {
		mcpServer, err = mcpadapter.NewServer(Version, tools, usecase.ReadOnlyTools)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init mcp server: %w", err)
		}
	}

	return &App{
		Config:         cfg,
		Metrics:        appMetrics,
		Automation:     automation,
		Providers:      providers,
		Tools:          tools,
		Actions:        actions,
		Steward:        steward,
		Communications: communications,
		Maintenance:    maintenance,
		MCP:            mcpServer,
		closeFn:        closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

type actionStore struct {
	store ports.ActionLogStore
	close func()
}

// openActionStore returns a nil store when no DSN is configured; the action
// logger then keeps entries in process memory.
func openActionStore(ctx context.Context, cfg config.Config) (actionStore, error) {
	if cfg.PostgresDSN == "" {
		slog.Warn("action_store_in_memory", "reason", "POSTGRES_DSN not set")
		return actionStore{}, nil
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return actionStore{}, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return actionStore{}, fmt.Errorf("ensure schema: %w", err)
	}
	return actionStore{
		store: postgres.NewActionLogRepository(db),
		close: func() { _ = db.Close() },
	}, nil
}

// newProviderFactory wires both vendors behind their own breaker with the
// preferred one first.
func newProviderFactory(cfg config.Config, appMetrics *metrics.HTTPServerMetrics) *usecase.ProviderFactory {
	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.BreakerEnabled = cfg.BreakerEnabled
	resilienceCfg.BreakerMinRequests = uint32(max(cfg.BreakerMinRequests, 0))
	resilienceCfg.BreakerFailureRatio = cfg.BreakerFailureRate
	resilienceCfg.BreakerOpenTimeout = time.Duration(cfg.BreakerOpenSeconds) * time.Second
	resilienceCfg.OnStateChange = appMetrics.RecordBreakerTransition

	claude := metrics.InstrumentProvider(anthropic.New(cfg.AnthropicAPIKey, anthropic.Options{
		BaseURL:  cfg.AnthropicBaseURL,
		Model:    cfg.AnthropicModel,
		Timeout:  cfg.ProviderTimeout,
		Executor: resilience.NewExecutor(resilienceCfg),
	}), appMetrics)
	gpt := metrics.InstrumentProvider(openai.New(cfg.OpenAIAPIKey, openai.Options{
		BaseURL:        cfg.OpenAIBaseURL,
		Model:          cfg.OpenAIModel,
		EmbeddingModel: cfg.OpenAIEmbedModel,
		Timeout:        cfg.ProviderTimeout,
		Executor:       resilience.NewExecutor(resilienceCfg),
	}), appMetrics)

	primary, secondary := claude, gpt
	if domain.ProviderType(cfg.PreferredProvider) == domain.ProviderOpenAI {
		primary, secondary = gpt, claude
	}
	factory := usecase.NewProviderFactory(primary, secondary)
	factory.OnFallback(appMetrics.RecordFallback)
	return factory
}

// Worker is the audit consumer: it folds action lifecycle events from NATS
// into worker metrics.
type Worker struct {
	Config  config.Config
	Events  ports.ActionEventSubscriber
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(cfg config.Config) (*Worker, error) {
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("NATS_URL is required for the audit worker")
	}
	bus, err := nats.New(cfg.NATSURL, nats.Options{
		SubjectPrefix: cfg.NATSSubjectPrefix,
		QueueGroup:    cfg.NATSQueueGroup,
	})
	if err != nil {
		return nil, fmt.Errorf("init event bus: %w", err)
	}
	return &Worker{
		Config:  cfg,
		Events:  bus,
		Metrics: metrics.NewWorkerMetrics("worker"),
		closeFn: bus.Close,
	}, nil
}

// HandleEvent records one event and always returns nil.
func (w *Worker) HandleEvent(_ context.Context, event domain.ActionEvent) error {
	start := time.Now()
	w.Metrics.StartEvent()
	if !event.OccurredAt.IsZero() {
		w.Metrics.ObserveEventLag(start.Sub(event.OccurredAt))
	}
	w.Metrics.RecordActionEvent(event)
	w.Metrics.FinishEvent(event.Type, time.Since(start), nil)

	slog.Info("action_event_consumed",
		"action_id", event.ActionID,
		"type", event.Type,
		"module", event.Module,
		"action_type", event.ActionType,
		"decision", event.Decision,
	)
	return nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
