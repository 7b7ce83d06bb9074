package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/logging"
	"github.com/ecoshop/ecoshop/internal/monitoring"
	"github.com/ecoshop/ecoshop/internal/tasks"
)

// ProductServiceConfig holds configuration for the product service
type ProductServiceConfig struct {
	CacheTTL        time.Duration
	AnalysisTimeout time.Duration
}

// SubmitResult is the outcome of a product submission: either a stored
// analysis (StatusFound) or the id of the task producing one (StatusProcessing).
type SubmitResult struct {
	Status  string
	Payload *domain.ProductPayload
	TaskID  string
}

// ProductService resolves product analyses.
// Flow: validate -> listing key -> cache -> store -> in-flight task -> new analysis task
type ProductService struct {
	cache    domain.CacheRepository
	store    domain.ProductRepository
	analyzer domain.ProductAnalyzer
	tasks    *tasks.Registry
	brands   *BrandService
	metrics  *monitoring.Metrics
	logger   logrus.FieldLogger

	cacheTTL        time.Duration
	analysisTimeout time.Duration
	now             func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewProductService creates a new product service with dependencies.
// brands and metrics may be nil.
func NewProductService(
	cache domain.CacheRepository,
	store domain.ProductRepository,
	analyzer domain.ProductAnalyzer,
	registry *tasks.Registry,
	brands *BrandService,
	metrics *monitoring.Metrics,
	config ProductServiceConfig,
	logger logrus.FieldLogger,
) *ProductService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 720 * time.Hour // Default 30 days
	}
	timeout := config.AnalysisTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ProductService{
		cache:           cache,
		store:           store,
		analyzer:        analyzer,
		tasks:           registry,
		brands:          brands,
		metrics:         metrics,
		logger:          logging.Component(logger, "products"),
		cacheTTL:        cacheTTL,
		analysisTimeout: timeout,
		now:             time.Now,
		baseCtx:         ctx,
		cancel:          cancel,
	}
}

// Submit looks up the analysis of a product listing, starting one if none exists.
// Two submissions for the same listing while its analysis runs share one task.
func (s *ProductService) Submit(ctx context.Context, info domain.ProductInfo) (*SubmitResult, error) {
	if !info.Dispatchable() {
		s.metrics.IncProducts("invalid")
		return nil, fmt.Errorf("%w: brand or name is required", domain.ErrInvalidRequest)
	}

	key, err := ListingKeyFor(info)
	if err != nil {
		s.metrics.IncProducts("invalid")
		return nil, err
	}
	log := s.logger.WithField("listing", key.String())

	if payload, err := s.getFromCache(ctx, key); err == nil {
		s.metrics.IncCache(true)
		s.metrics.IncProducts("found")
		log.Debug("Product served from cache")
		return &SubmitResult{Status: domain.WireStatusFound, Payload: payload}, nil
	}
	s.metrics.IncCache(false)

	record, err := s.store.GetByListing(ctx, key)
	switch {
	case err == nil:
		payload := PayloadFromRecord(record)
		if err := s.setInCache(ctx, key, payload); err != nil {
			log.WithError(err).Warn("Failed to cache stored product")
		}
		s.metrics.IncProducts("found")
		log.Debug("Product served from store")
		return &SubmitResult{Status: domain.WireStatusFound, Payload: payload}, nil
	case !errors.Is(err, domain.ErrProductNotFound):
		s.metrics.IncErrors("store")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	task, created := s.tasks.Create(key.String(), info)
	if created {
		s.wg.Add(1)
		go s.analyze(task.ID, key, info)
		log.WithField("task_id", task.ID).Info("Analysis task created")
	} else {
		log.WithField("task_id", task.ID).Debug("Reusing in-flight analysis task")
	}
	s.metrics.IncProducts("processing")
	return &SubmitResult{Status: domain.WireStatusProcessing, TaskID: task.ID}, nil
}

// Task returns the current state of an analysis task
func (s *ProductService) Task(id string) (domain.AnalysisTask, error) {
	return s.tasks.Get(id)
}

// Subscribe streams the events of an analysis task
func (s *ProductService) Subscribe(id string) (<-chan domain.TaskEvent, func(), error) {
	return s.tasks.Subscribe(id)
}

// analyze runs one analysis task to a terminal state
func (s *ProductService) analyze(taskID string, key domain.ListingKey, info domain.ProductInfo) {
	defer s.wg.Done()
	started := s.now()
	log := s.logger.WithFields(logrus.Fields{"task_id": taskID, "listing": key.String()})

	if err := s.tasks.Start(taskID); err != nil {
		log.WithError(err).Warn("Could not start analysis task")
		return
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, s.analysisTimeout)
	defer cancel()

	fail := func(kind, message string, err error) {
		log.WithError(err).Error(message)
		s.metrics.IncErrors(kind)
		s.metrics.ObserveTask(string(domain.TaskError), s.now().Sub(started))
		if ferr := s.tasks.Fail(taskID, message); ferr != nil {
			log.WithError(ferr).Warn("Could not fail analysis task")
		}
	}

	cleaned := info
	cleaned.Specifications = CleanSpecifications(info.Specifications)

	analysis, err := s.analyzer.Analyze(ctx, cleaned)
	if err != nil {
		fail("analyzer", "Sustainability analysis failed", err)
		return
	}

	record := NewRecord(key, info, analysis, s.now())
	if s.brands != nil {
		record.Alternatives = s.brands.Alternatives(record.DefaultScore, record.Brand)
	}

	if err := s.store.Save(ctx, record); err != nil {
		fail("store", "Failed to store analysis", err)
		return
	}

	payload := PayloadFromRecord(record)
	if err := s.setInCache(ctx, key, payload); err != nil {
		log.WithError(err).Warn("Failed to cache analysis")
	}

	if err := s.tasks.Complete(taskID, payload); err != nil {
		log.WithError(err).Warn("Could not complete analysis task")
		return
	}
	s.metrics.ObserveTask(string(domain.TaskDone), s.now().Sub(started))
	log.WithField("certainty", record.Certainty).Info("Analysis completed")
}

// Shutdown waits for running analyses. When ctx expires first they are cancelled
// and ctx's error is returned.
func (s *ProductService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// cacheKey generates the cache key of a listing.
// Format: "product:{site}:{listing}"
func cacheKey(key domain.ListingKey) string {
	return "product:" + key.String()
}

// getFromCache retrieves a payload from cache
func (s *ProductService) getFromCache(ctx context.Context, key domain.ListingKey) (*domain.ProductPayload, error) {
	data, err := s.cache.Get(ctx, cacheKey(key))
	if err != nil {
		return nil, err
	}
	var payload domain.ProductPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: corrupt entry: %v", domain.ErrCacheMiss, err)
	}
	return &payload, nil
}

// setInCache stores a payload in cache
func (s *ProductService) setInCache(ctx context.Context, key domain.ListingKey, payload *domain.ProductPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, cacheKey(key), data, s.cacheTTL)
}
