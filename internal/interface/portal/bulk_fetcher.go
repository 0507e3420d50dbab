package portal

import (
	"context"
	"sync"
	"time"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/pkg/logger"
	"callwatch-service/pkg/metrics"
	"callwatch-service/pkg/utils"

	"github.com/google/uuid"
)

// PageFetcher is the slice of the portal client the bulk fetcher needs.
type PageFetcher interface {
	FetchHistoryPage(ctx context.Context, page int) (string, error)
}

// crawlHandle is the shared result of one in-flight crawl. Every caller
// that arrives while the crawl runs waits on done and receives the same
// records.
type crawlHandle struct {
	done    chan struct{}
	records []*entity.CallRecord
	err     error
}

// BulkFetcher walks the portal's paginated call history: fixed-size
// batches of concurrent page fetches, merged in page order, deduplicated
// by call id. The last result is cached process-wide and concurrent
// callers coalesce onto a single crawl.
type BulkFetcher struct {
	mu       sync.Mutex
	cache    []*entity.CallRecord
	inflight *crawlHandle

	client    PageFetcher
	extractor *utils.CallExtractor
	metrics   *metrics.Metrics
	logger    logger.Logger
	pageCap   int
	batchSize int
}

// NewBulkFetcher creates a new history crawler
func NewBulkFetcher(
	client PageFetcher,
	extractor *utils.CallExtractor,
	m *metrics.Metrics,
	logger logger.Logger,
	pageCap, batchSize int,
) *BulkFetcher {
	return &BulkFetcher{
		client:    client,
		extractor: extractor,
		metrics:   m,
		logger:    logger,
		pageCap:   pageCap,
		batchSize: batchSize,
	}
}

// FetchAll returns the full call history. With forceRefresh false a
// non-empty cached result short-circuits without network activity. If a
// crawl is already in flight, the caller shares its result instead of
// starting a second crawl; progress then reports only to the original
// caller.
func (f *BulkFetcher) FetchAll(ctx context.Context, forceRefresh bool, progress func(count int)) ([]*entity.CallRecord, error) {
	f.mu.Lock()
	if !forceRefresh && len(f.cache) > 0 {
		cached := f.cache
		f.mu.Unlock()
		return cached, nil
	}
	if f.inflight != nil {
		handle := f.inflight
		f.mu.Unlock()
		<-handle.done
		return handle.records, handle.err
	}
	handle := &crawlHandle{done: make(chan struct{})}
	f.inflight = handle
	f.mu.Unlock()

	// The in-flight marker is cleared however the crawl ends, so a failed
	// crawl never blocks future attempts. The accumulator becomes the new
	// cache even on abort.
	defer func() {
		f.mu.Lock()
		f.cache = handle.records
		f.inflight = nil
		f.mu.Unlock()
		close(handle.done)
	}()

	handle.records, handle.err = f.crawl(ctx, progress)
	return handle.records, handle.err
}

// pageResult carries one fetched page; results are indexed by page so
// concurrency within a batch never reorders the logical page sequence.
type pageResult struct {
	page int
	body string
	err  error
}

func (f *BulkFetcher) crawl(ctx context.Context, progress func(int)) ([]*entity.CallRecord, error) {
	crawlID := uuid.NewString()
	started := time.Now()
	defer func() {
		f.metrics.CrawlDuration.Observe(time.Since(started).Seconds())
	}()

	var records []*entity.CallRecord
	seen := make(map[string]bool)

	for first := 1; first <= f.pageCap; first += f.batchSize {
		last := min(first+f.batchSize-1, f.pageCap)

		stop := false
		for _, result := range f.fetchBatch(ctx, first, last) {
			if result.err != nil || f.extractor.DetectLoginPage(result.body) {
				if result.page == 1 {
					// not authenticated, abort rather than treating it
					// as end of data
					f.logger.Warn("History crawl aborted on login redirect", "crawlId", crawlID, "error", result.err)
					return records, ErrNotAuthenticated
				}
				f.metrics.ErrorsCount.WithLabelValues("history_page").Inc()
				stop = true
				continue
			}
			f.metrics.HistoryPages.Inc()

			found := f.extractor.ExtractAllCalls(result.body)
			if len(found) == 0 {
				// an empty page means we walked past the end of history
				stop = true
				continue
			}
			for _, rec := range found {
				if rec.ID != "" {
					if seen[rec.ID] {
						continue
					}
					seen[rec.ID] = true
				}
				records = append(records, rec)
			}
		}

		if progress != nil {
			progress(len(records))
		}
		f.logger.Info("History crawl batch complete",
			"crawlId", crawlID,
			"throughPage", last,
			"records", len(records))

		if stop {
			break
		}
	}

	return records, nil
}

// fetchBatch fetches pages first..last concurrently and returns them in
// page order.
func (f *BulkFetcher) fetchBatch(ctx context.Context, first, last int) []pageResult {
	results := make([]pageResult, last-first+1)

	var wg sync.WaitGroup
	for page := first; page <= last; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			body, err := f.client.FetchHistoryPage(ctx, page)
			results[page-first] = pageResult{page: page, body: body, err: err}
		}(page)
	}
	wg.Wait()

	return results
}
