package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/gateway"
	"github.com/ecoshop/ecoshop/internal/logging"
	"github.com/ecoshop/ecoshop/internal/monitoring"
)

func f(v float64) *float64 { return &v }

func payload(brand string, production, circularity, material *float64) *domain.ProductPayload {
	return &domain.ProductPayload{
		Brand:       brand,
		ProductName: brand + " product",
		Breakdown: map[domain.Category]domain.CategoryPayload{
			domain.CategoryProductionAndBrand:      {Score: production, Analysis: "production"},
			domain.CategoryCircularityAndEndOfLife: {Score: circularity, Analysis: "circularity"},
			domain.CategoryMaterialComposition:     {Score: material, Analysis: "material"},
		},
		Certainty:    domain.CertaintyHigh,
		Alternatives: []domain.Alternative{{Brand: "Fairphone", Score: 90}},
	}
}

// mockGateway is a hand-written Gateway fake
type mockGateway struct {
	mu          sync.Mutex
	submits     int
	awaits      int
	submitFunc  func(info domain.ProductInfo) (*gateway.Outcome, error)
	awaitFunc   func(ctx context.Context, taskID string) (*domain.ProductPayload, error)
	submittedTo []string
}

func (m *mockGateway) Submit(ctx context.Context, info domain.ProductInfo) (*gateway.Outcome, error) {
	m.mu.Lock()
	m.submits++
	m.submittedTo = append(m.submittedTo, info.URL)
	m.mu.Unlock()
	return m.submitFunc(info)
}

func (m *mockGateway) AwaitTask(ctx context.Context, taskID string) (*domain.ProductPayload, error) {
	m.mu.Lock()
	m.awaits++
	m.mu.Unlock()
	return m.awaitFunc(ctx, taskID)
}

func (m *mockGateway) Submits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submits
}

func found(p *domain.ProductPayload) func(domain.ProductInfo) (*gateway.Outcome, error) {
	return func(domain.ProductInfo) (*gateway.Outcome, error) {
		return &gateway.Outcome{Kind: gateway.OutcomeFound, Payload: p}, nil
	}
}

type badgeCall struct {
	tabID int
	score *int
}

type mockBadge struct {
	mu    sync.Mutex
	calls []badgeCall
}

func (m *mockBadge) UpdateBadge(tabID int, score *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, badgeCall{tabID, score})
}

func (m *mockBadge) Calls() []badgeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]badgeCall(nil), m.calls...)
}

type mockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockNotifier) Notify(tabID int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
}

type staticWeights struct{ w domain.UserWeights }

func (s *staticWeights) Weights() domain.UserWeights { return s.w }

type fixture struct {
	gw       *mockGateway
	badge    *mockBadge
	notifier *mockNotifier
	weights  *staticWeights
	coord    *Coordinator
}

func newFixture(gw *mockGateway) *fixture {
	fx := &fixture{
		gw:       gw,
		badge:    &mockBadge{},
		notifier: &mockNotifier{},
		weights:  &staticWeights{w: domain.DefaultWeights()},
	}
	fx.coord = New(gw, fx.badge, fx.notifier, fx.weights, Config{TabCacheTTL: time.Minute}, logging.Discard())
	return fx
}

func sony(url string) domain.ProductInfo {
	return domain.ProductInfo{
		Brand:          "Sony",
		Name:           "Sony WH-1000XM5 Wireless Noise Cancelling Headphones",
		URL:            url,
		Specifications: map[string]string{"material": "plastic"},
	}
}

func TestCheckSustainability_EndToEnd(t *testing.T) {
	gw := &mockGateway{submitFunc: found(payload("Sony", f(7), f(6), f(8)))}
	fx := newFixture(gw)

	result, err := fx.coord.CheckSustainability(context.Background(), 1, sony("https://shop/sony"))

	require.NoError(t, err)
	require.NotNil(t, result.CompositeScore)
	assert.Equal(t, 70, *result.CompositeScore)
	assert.Equal(t, "Sony", result.Brand)
	assert.Equal(t, "https://shop/sony", result.URL)
	assert.Equal(t, domain.CertaintyHigh, result.Certainty)

	calls := fx.badge.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 1, calls[0].tabID)
	assert.Equal(t, 70, *calls[0].score)

	cached, ok := fx.coord.TabResult(1)
	require.True(t, ok)
	assert.Equal(t, 70, *cached.CompositeScore)
}

func TestCheckSustainability_PendingTask(t *testing.T) {
	gw := &mockGateway{
		submitFunc: func(domain.ProductInfo) (*gateway.Outcome, error) {
			return &gateway.Outcome{Kind: gateway.OutcomeProcessing, TaskID: "task-1"}, nil
		},
		awaitFunc: func(ctx context.Context, taskID string) (*domain.ProductPayload, error) {
			assert.Equal(t, "task-1", taskID)
			return payload("Sony", f(10), f(10), f(10)), nil
		},
	}
	fx := newFixture(gw)

	result, err := fx.coord.CheckSustainability(context.Background(), 1, sony("https://shop/sony"))

	require.NoError(t, err)
	assert.Equal(t, 100, *result.CompositeScore)
	assert.Equal(t, 1, gw.awaits)
}

func TestCheckSustainability_BrandCacheHit(t *testing.T) {
	gw := &mockGateway{submitFunc: found(payload("Sony", f(7), f(6), f(8)))}
	fx := newFixture(gw)
	ctx := context.Background()

	_, err := fx.coord.CheckSustainability(ctx, 1, sony("https://shop/a"))
	require.NoError(t, err)

	info := sony("https://shop/b")
	info.Brand = "  SONY "
	result, err := fx.coord.CheckSustainability(ctx, 2, info)

	require.NoError(t, err)
	assert.Equal(t, 1, gw.Submits(), "cached brand must not reach the gateway")
	assert.Equal(t, 70, *result.CompositeScore)
	assert.Equal(t, "https://shop/b", result.URL)
}

func TestCheckSustainability_BrandCacheFirstWriteWins(t *testing.T) {
	gw := &mockGateway{}
	fx := newFixture(gw)

	first, _ := resultFromPayload(payload("Sony", f(1), f(1), f(1)), sony(""))
	second, _ := resultFromPayload(payload("Sony", f(9), f(9), f(9)), sony(""))
	fx.coord.remember("sony", first)
	fx.coord.remember("sony", second)

	v, ok := fx.coord.brandCache.Get("sony")
	require.True(t, ok)
	assert.Equal(t, 1.0, *v.(*domain.ScoreResult).Breakdown[0].RawScore)
}

func TestCheckSustainability_BrandCacheAppliesCurrentWeights(t *testing.T) {
	gw := &mockGateway{submitFunc: found(payload("Sony", f(10), f(0), f(0)))}
	fx := newFixture(gw)
	ctx := context.Background()

	first, err := fx.coord.CheckSustainability(ctx, 1, sony("https://shop/a"))
	require.NoError(t, err)
	assert.Equal(t, 34, *first.CompositeScore)

	fx.weights.w = domain.UserWeights{ProductionAndBrand: 5, CircularityAndEndOfLife: 1, MaterialComposition: 1}
	second, err := fx.coord.CheckSustainability(ctx, 2, sony("https://shop/b"))
	require.NoError(t, err)
	assert.Equal(t, 72, *second.CompositeScore)
	assert.Equal(t, 1, gw.Submits())
}

func TestOnExtraction_DedupPerURL(t *testing.T) {
	gw := &mockGateway{submitFunc: found(payload("Sony", f(7), f(6), f(8)))}
	fx := newFixture(gw)
	ctx := context.Background()

	// distinct brands so the brand cache cannot hide a second submission
	first := sony("https://shop/p1")
	second := first
	second.Brand = "Sony Music"

	_, err := fx.coord.OnExtraction(ctx, 1, first)
	require.NoError(t, err)

	result, err := fx.coord.OnExtraction(ctx, 1, second)
	assert.ErrorIs(t, err, ErrAlreadyDispatched)
	assert.Nil(t, result)
	assert.Equal(t, 1, gw.Submits())

	// navigation resets the gate
	assert.True(t, fx.coord.Navigate(1, "https://shop/p2"))
	assert.False(t, fx.coord.Navigate(1, "https://shop/p2"))
	second.URL = "https://shop/p2"
	_, err = fx.coord.OnExtraction(ctx, 1, second)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.Submits())
}

func TestOnExtraction_ConcurrentSameURL(t *testing.T) {
	release := make(chan struct{})
	gw := &mockGateway{submitFunc: func(domain.ProductInfo) (*gateway.Outcome, error) {
		<-release
		return &gateway.Outcome{Kind: gateway.OutcomeFound, Payload: payload("Sony", f(7), f(6), f(8))}, nil
	}}
	fx := newFixture(gw)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.coord.OnExtraction(context.Background(), 7, sony("https://shop/p"))
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	dropped := 0
	for _, err := range errs {
		if errors.Is(err, ErrAlreadyDispatched) {
			dropped++
		}
	}
	assert.Equal(t, 9, dropped)
	assert.Equal(t, 1, gw.Submits())
}

func TestOnExtraction_NotDispatchable(t *testing.T) {
	gw := &mockGateway{}
	fx := newFixture(gw)

	_, err := fx.coord.OnExtraction(context.Background(), 1, domain.ProductInfo{URL: "https://shop/p"})

	assert.ErrorIs(t, err, domain.ErrExtractionEmpty)
	assert.Equal(t, 0, gw.Submits())
	assert.Empty(t, fx.notifier.messages)

	// an empty extraction does not close the gate
	gw.submitFunc = found(payload("Sony", f(7), f(6), f(8)))
	_, err = fx.coord.OnExtraction(context.Background(), 1, sony("https://shop/p"))
	require.NoError(t, err)
}

func TestStaleResultDiscarded(t *testing.T) {
	releaseA := make(chan struct{})
	gw := &mockGateway{
		submitFunc: func(info domain.ProductInfo) (*gateway.Outcome, error) {
			if info.URL == "https://shop/a" {
				return &gateway.Outcome{Kind: gateway.OutcomeProcessing, TaskID: "A"}, nil
			}
			return &gateway.Outcome{Kind: gateway.OutcomeProcessing, TaskID: "B"}, nil
		},
		awaitFunc: func(ctx context.Context, taskID string) (*domain.ProductPayload, error) {
			if taskID == "A" {
				<-releaseA
				return payload("BrandA", f(1), f(1), f(1)), nil
			}
			return payload("BrandB", f(9), f(9), f(9)), nil
		},
	}
	fx := newFixture(gw)
	ctx := context.Background()

	type outcome struct {
		result *domain.ScoreResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		info := sony("https://shop/a")
		info.Brand = "BrandA"
		r, err := fx.coord.OnExtraction(ctx, 1, info)
		done <- outcome{r, err}
	}()

	// wait for A to be in flight
	require.Eventually(t, func() bool { return gw.Submits() == 1 }, time.Second, time.Millisecond)

	fx.coord.Navigate(1, "https://shop/b")
	infoB := sony("https://shop/b")
	infoB.Brand = "BrandB"
	resultB, err := fx.coord.OnExtraction(ctx, 1, infoB)
	require.NoError(t, err)
	assert.Equal(t, 90, *resultB.CompositeScore)

	close(releaseA)
	a := <-done
	assert.ErrorIs(t, a.err, domain.ErrStaleResult)
	assert.Nil(t, a.result)

	calls := fx.badge.Calls()
	require.Len(t, calls, 1, "stale result must not touch the badge")
	assert.Equal(t, 90, *calls[0].score)

	cached, ok := fx.coord.TabResult(1)
	require.True(t, ok)
	assert.Equal(t, "BrandB", cached.Brand)

	// the stale payload is still valid data for its brand
	_, ok = fx.coord.brandCache.Get("branda")
	assert.True(t, ok)
}

func TestTimeoutYieldsErrorResult(t *testing.T) {
	gw := &mockGateway{
		submitFunc: func(domain.ProductInfo) (*gateway.Outcome, error) {
			return &gateway.Outcome{Kind: gateway.OutcomeProcessing, TaskID: "slow"}, nil
		},
		awaitFunc: func(ctx context.Context, taskID string) (*domain.ProductPayload, error) {
			return nil, domain.ErrTimeout
		},
	}
	fx := newFixture(gw)

	// earlier valid score on the badge must survive the failure
	fx.coord.Navigate(1, "https://shop/p")
	score := 55
	fx.badge.UpdateBadge(1, &score)

	result, err := fx.coord.CheckSustainability(context.Background(), 1, sony("https://shop/p"))

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, domain.ErrTimeout)
	assert.Nil(t, result.CompositeScore, "no fabricated score")
	assert.Equal(t, domain.CertaintyPending, result.Certainty)
	assert.Equal(t, domain.UserMessage(domain.ErrTimeout), result.Message)

	assert.Len(t, fx.badge.Calls(), 1, "badge left in its previous state")
	assert.Equal(t, []string{domain.UserMessage(domain.ErrTimeout)}, fx.notifier.messages)

	_, cached := fx.coord.TabResult(1)
	assert.False(t, cached)
	_, inBrandCache := fx.coord.brandCache.Get("sony")
	assert.False(t, inBrandCache, "failures are not cached")
}

func TestErrorsHaveDistinctMessages(t *testing.T) {
	kinds := []error{domain.ErrTransport, domain.ErrTimeout, domain.ErrNotFound, domain.ErrInvalidResponse}
	seen := map[string]bool{}

	for _, kind := range kinds {
		kind := kind
		gw := &mockGateway{submitFunc: func(domain.ProductInfo) (*gateway.Outcome, error) { return nil, kind }}
		fx := newFixture(gw)

		result, err := fx.coord.CheckSustainability(context.Background(), 1, sony("https://shop/p"))
		require.NoError(t, err)
		assert.Nil(t, result.CompositeScore)
		assert.False(t, seen[result.Message], "duplicate message %q", result.Message)
		seen[result.Message] = true
	}
}

func TestRecompute_NoGatewayCall(t *testing.T) {
	gw := &mockGateway{submitFunc: found(payload("Sony", f(10), f(0), f(0)))}
	fx := newFixture(gw)

	_, err := fx.coord.CheckSustainability(context.Background(), 1, sony("https://shop/p"))
	require.NoError(t, err)
	require.Equal(t, 1, gw.Submits())

	n := fx.coord.Recompute(domain.UserWeights{ProductionAndBrand: 5, CircularityAndEndOfLife: 1, MaterialComposition: 1})

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, gw.Submits(), "re-weighting must not reach the gateway")

	cached, ok := fx.coord.TabResult(1)
	require.True(t, ok)
	assert.Equal(t, 72, *cached.CompositeScore)
	assert.Equal(t, 10.0, *cached.Breakdown[0].RawScore, "category display is unweighted")

	calls := fx.badge.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 72, *calls[1].score)
}

func TestRestoreBadgeAndCloseTab(t *testing.T) {
	gw := &mockGateway{submitFunc: found(payload("Sony", f(7), f(6), f(8)))}
	fx := newFixture(gw)

	assert.False(t, fx.coord.RestoreBadge(1))

	_, err := fx.coord.CheckSustainability(context.Background(), 1, sony("https://shop/p"))
	require.NoError(t, err)

	assert.True(t, fx.coord.RestoreBadge(1))
	assert.Len(t, fx.badge.Calls(), 2)

	fx.coord.CloseTab(1)
	_, ok := fx.coord.TabResult(1)
	assert.False(t, ok)
}

func TestNavigateClearsTabCache(t *testing.T) {
	gw := &mockGateway{submitFunc: found(payload("Sony", f(7), f(6), f(8)))}
	fx := newFixture(gw)

	_, err := fx.coord.CheckSustainability(context.Background(), 1, sony("https://shop/p"))
	require.NoError(t, err)

	fx.coord.Navigate(1, "https://shop/other")
	_, ok := fx.coord.TabResult(1)
	assert.False(t, ok)
}

func TestAbsentScoresStayAbsent(t *testing.T) {
	gw := &mockGateway{submitFunc: found(payload("Sony", nil, nil, nil))}
	fx := newFixture(gw)

	result, err := fx.coord.CheckSustainability(context.Background(), 1, sony("https://shop/p"))

	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Nil(t, result.CompositeScore)
	assert.Equal(t, domain.RatingNoData, result.Breakdown[0].RatingLabel)

	calls := fx.badge.Calls()
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].score)
}

func TestMetricsRecorded(t *testing.T) {
	gw := &mockGateway{submitFunc: found(payload("Sony", f(7), f(6), f(8)))}
	fx := newFixture(gw)
	m := monitoring.NewClientMetrics(prometheus.NewRegistry())
	fx.coord.SetMetrics(m)
	ctx := context.Background()

	_, _ = fx.coord.OnExtraction(ctx, 1, sony("https://shop/p"))
	_, _ = fx.coord.OnExtraction(ctx, 1, sony("https://shop/p"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("dispatched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("found")))
}

func TestResultFromPayload(t *testing.T) {
	p := payload("", f(12), f(-1), nil)
	p.Certainty = "bogus"
	p.Breakdown[domain.CategoryProductionAndBrand] = domain.CategoryPayload{Score: f(12)}

	result, err := resultFromPayload(p, domain.ProductInfo{Brand: "Acme", Name: "Widget", URL: "u"})
	require.NoError(t, err)

	assert.Equal(t, "Acme", result.Brand)
	assert.Equal(t, 10.0, *result.Breakdown[0].RawScore, "clamped")
	assert.Equal(t, domain.RatingGood, result.Breakdown[0].RatingLabel)
	assert.Nil(t, result.Breakdown[1].RawScore, "negative is no data")
	assert.Equal(t, domain.RatingNoData, result.Breakdown[1].RatingLabel)
	assert.Nil(t, result.Breakdown[2].RawScore)
	assert.Equal(t, domain.CertaintyLow, result.Certainty)

	_, err = resultFromPayload(nil, domain.ProductInfo{})
	assert.ErrorIs(t, err, domain.ErrInvalidResponse)
}
