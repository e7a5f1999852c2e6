package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/handlers"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/services/chat"
	"github.com/ternarybob/lectio/internal/services/documents"
	"github.com/ternarybob/lectio/internal/services/embeddings"
	"github.com/ternarybob/lectio/internal/services/ingest"
	"github.com/ternarybob/lectio/internal/services/llm"
	"github.com/ternarybob/lectio/internal/services/pdf"
	"github.com/ternarybob/lectio/internal/services/retrieval"
	"github.com/ternarybob/lectio/internal/services/scheduler"
	"github.com/ternarybob/lectio/internal/services/summary"
	badgerstorage "github.com/ternarybob/lectio/internal/storage/badger"
)

// App wires configuration, storage, services and handlers together.
// Construction order matters: storage first, then the LLM stack, then
// the domain services that depend on both, handlers last.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	StorageManager interfaces.StorageManager

	// Services
	LLMService       interfaces.LLMService
	EmbeddingService interfaces.EmbeddingService
	IngestService    interfaces.IngestService
	RetrievalService interfaces.RetrievalService
	ChatService      interfaces.ChatService
	SummaryService   interfaces.SummaryService
	DocumentService  interfaces.DocumentService
	PDFExtractor     interfaces.PDFExtractor
	Scheduler        *scheduler.Service

	// Handlers
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
	APIHandler      *handlers.APIHandler
}

// New builds the application from configuration.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := badgerstorage.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	docStorage := storageManager.DocumentStorage()

	llmService, err := llm.NewLLMService(cfg, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
	}

	embeddingService := embeddings.NewEmbeddingService(llmService, cfg.LLM.EmbedRPS, logger)
	retrievalService := retrieval.NewEngine(embeddingService, cfg.Retrieval.TopK, logger)
	ingestService := ingest.NewCoordinator(docStorage, embeddingService, cfg, logger)
	chatService := chat.NewChatService(docStorage, retrievalService, llmService, cfg, logger)
	summaryService := summary.NewSummaryService(docStorage, llmService, cfg, logger)
	documentService := documents.NewDocumentService(docStorage, logger)
	pdfExtractor := pdf.NewExtractor(logger)

	var maintenance *scheduler.Service
	if cfg.Maintenance.Enabled {
		maintenance, err = scheduler.NewService(docStorage, cfg, logger)
		if err != nil {
			llmService.Close()
			storageManager.Close()
			return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
		}
	}

	application := &App{
		Config:           cfg,
		Logger:           logger,
		StorageManager:   storageManager,
		LLMService:       llmService,
		EmbeddingService: embeddingService,
		IngestService:    ingestService,
		RetrievalService: retrievalService,
		ChatService:      chatService,
		SummaryService:   summaryService,
		DocumentService:  documentService,
		PDFExtractor:     pdfExtractor,
		Scheduler:        maintenance,
	}

	application.DocumentHandler = handlers.NewDocumentHandler(ingestService, documentService, pdfExtractor, docStorage, logger)
	application.ChatHandler = handlers.NewChatHandler(chatService, summaryService, llmService, logger)
	application.APIHandler = handlers.NewAPIHandler(logger)

	logger.Info().
		Str("llm_provider", cfg.LLM.Provider).
		Bool("maintenance", cfg.Maintenance.Enabled).
		Msg("Application initialized")

	return application, nil
}

// Start launches background components.
func (a *App) Start() error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}
	return nil
}

// Close releases all resources in reverse construction order.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	var firstErr error
	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			firstErr = err
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	a.Logger.Info().Msg("Application closed")
	return firstErr
}
