package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/anuntul/api/internal/catalog"
	"github.com/anuntul/api/internal/handlers"
	"github.com/anuntul/api/internal/listings"
	"github.com/anuntul/api/internal/platform/auth"
	"github.com/anuntul/api/internal/platform/config"
	pfirestore "github.com/anuntul/api/internal/platform/firestore"
	"github.com/anuntul/api/internal/platform/jobs"
	"github.com/anuntul/api/internal/platform/observability"
	"github.com/anuntul/api/internal/platform/pagination"
	platformstorage "github.com/anuntul/api/internal/platform/storage"
	firestoreRepo "github.com/anuntul/api/internal/repositories/firestore"
	"github.com/anuntul/api/internal/services"
	"github.com/anuntul/api/internal/wizard"

	"github.com/oklog/ulid/v2"
)

const sessionRateLimit = 10

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	listingRepo, err := firestoreRepo.NewListingRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise listing repository", zap.Error(err))
	}
	locationRepo, err := firestoreRepo.NewLocationRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise location repository", zap.Error(err))
	}
	favoriteRepo, err := firestoreRepo.NewFavoriteRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise favorite repository", zap.Error(err))
	}

	tree, err := loadCatalogTree(cfg.Catalog)
	if err != nil {
		logger.Fatal("failed to load catalog tree", zap.Error(err))
	}

	pipeline, err := listings.NewPipeline(listings.PipelineDeps{
		Listings:  listingRepo,
		Locations: locationRepo,
		Tree:      tree,
		BatchSize: cfg.Listings.BatchSize,
	})
	if err != nil {
		logger.Fatal("failed to initialise listing pipeline", zap.Error(err))
	}

	var eventPublisher services.ListingEventPublisher
	if !cfg.Events.Disabled {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		topic := pubsubClient.Topic(cfg.Events.Topic)
		defer topic.Stop()

		eventPublisher, err = jobs.NewPubSubListingEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise listing event publisher", zap.Error(err))
		}
	} else {
		logger.Info("listing events disabled")
	}

	listingService, err := services.NewListingService(services.ListingServiceDeps{
		Listings: listingRepo,
		Pipeline: pipeline,
		Events:   eventPublisher,
		Lifetime: cfg.Listings.Lifetime,
	})
	if err != nil {
		logger.Fatal("failed to initialise listing service", zap.Error(err))
	}

	favoriteService, err := services.NewFavoriteService(services.FavoriteServiceDeps{
		Favorites: favoriteRepo,
		Listings:  listingRepo,
		Limit:     cfg.Listings.FavoriteLimit,
	})
	if err != nil {
		logger.Fatal("failed to initialise favorite service", zap.Error(err))
	}

	sessionStore, err := wizard.NewSessionStore(wizard.SessionStoreDeps{
		Tree: tree,
		TTL:  cfg.Wizard.SessionTTL,
	})
	if err != nil {
		logger.Fatal("failed to initialise wizard session store", zap.Error(err))
	}
	submitter, err := wizard.NewSubmitter(wizard.SubmitterDeps{Listings: listingService})
	if err != nil {
		logger.Fatal("failed to initialise wizard submitter", zap.Error(err))
	}
	wizardService, err := services.NewWizardService(services.WizardServiceDeps{
		Store:     sessionStore,
		Submitter: submitter,
	})
	if err != nil {
		logger.Fatal("failed to initialise wizard service", zap.Error(err))
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		sweepLogger := logger.Named("wizard")
		ticker := time.NewTicker(cfg.Wizard.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if removed := sessionStore.Sweep(now); removed > 0 {
					sweepLogger.Info("expired wizard sessions reaped", zap.Int("count", removed))
				}
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	uploadSigner := buildUploadSigner(logger, cfg.Storage)

	pager := pagination.Options{
		DefaultPageSize: cfg.Listings.PageSize,
		MaxPageSize:     cfg.Listings.MaxPageSize,
	}

	publicHandlers, err := handlers.NewPublicHandlers(handlers.PublicHandlersDeps{
		Tree:      tree,
		Listings:  listingService,
		Locations: locationRepo,
		Pager:     pager,
	})
	if err != nil {
		logger.Fatal("failed to initialise public handlers", zap.Error(err))
	}

	wizardHandlers, err := handlers.NewWizardHandlers(handlers.WizardHandlersDeps{
		Wizard:         wizardService,
		Tree:           tree,
		Uploads:        uploadSigner,
		Bucket:         cfg.Storage.ImagesBucket,
		UploadValidity: cfg.Storage.UploadURLValid,
		UploadIDGen: func() string {
			return "upl_" + ulid.Make().String()
		},
		SessionRateLimit: handlers.NewRateLimiter(sessionRateLimit, time.Minute),
	})
	if err != nil {
		logger.Fatal("failed to initialise wizard handlers", zap.Error(err))
	}

	meHandlers, err := handlers.NewMeHandlers(handlers.MeHandlersDeps{
		Favorites: favoriteService,
		Listings:  listingService,
		Pager:     pager,
	})
	if err != nil {
		logger.Fatal("failed to initialise me handlers", zap.Error(err))
	}

	adminHandlers, err := handlers.NewAdminHandlers(handlers.AdminHandlersDeps{
		Listings: listingService,
	})
	if err != nil {
		logger.Fatal("failed to initialise admin handlers", zap.Error(err))
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck("firestore", func(ctx context.Context) error {
			checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
			defer cancel()
			iter := firestoreClient.Collections(checkCtx)
			_, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			return err
		}),
	)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(publicHandlers.Routes),
		handlers.WithWizardRoutes(wizardHandlers.Routes),
		handlers.WithWizardMiddlewares(authenticator.RequireFirebaseAuth()),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithMeMiddlewares(authenticator.RequireFirebaseAuth()),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithAdminMiddlewares(authenticator.RequireFirebaseAuth(auth.RoleAdmin)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("anuntul api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	sweepCancel()
	sweepWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func loadCatalogTree(cfg config.CatalogConfig) (*catalog.Tree, error) {
	if path := strings.TrimSpace(cfg.File); path != "" {
		return catalog.LoadFile(path)
	}
	return catalog.LoadDefault(), nil
}

// buildUploadSigner assembles the signed URL client when a signer key is
// configured. Without one the wizard upload endpoint reports unavailability
// instead of failing at startup, so local runs work without GCS credentials.
func buildUploadSigner(logger *zap.Logger, cfg config.StorageConfig) handlers.UploadSigner {
	keyFile := strings.TrimSpace(cfg.SignerKeyFile)
	if keyFile == "" {
		logger.Warn("storage signer key not configured; image uploads disabled")
		return nil
	}

	signer, err := platformstorage.NewServiceAccountSignerFromFile(keyFile)
	if err != nil {
		logger.Fatal("failed to load storage signer key", zap.Error(err))
	}
	client, err := platformstorage.NewClient(signer)
	if err != nil {
		logger.Fatal("failed to initialise signed url client", zap.Error(err))
	}
	return client
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
