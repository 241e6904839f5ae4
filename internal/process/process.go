package process

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reddot-watch/feedfetcher"
	"github.com/rs/zerolog/log"

	"adoptik/petfeed/internal/models"
	"adoptik/petfeed/internal/server/storage"
)

// Entry is one item of a shelter feed that links to a video.
type Entry struct {
	URL         string
	Title       string
	PublishedAt time.Time
}

// Fetcher retrieves the entries of a feed.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]Entry, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, feedURL string) ([]Entry, error)

func (f FetcherFunc) Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	return f(ctx, feedURL)
}

type feedFetcher struct {
	ff *feedfetcher.FeedFetcher
}

// NewFeedFetcher returns a Fetcher backed by feedfetcher.
func NewFeedFetcher() Fetcher {
	return &feedFetcher{ff: feedfetcher.NewFeedFetcher(feedfetcher.Config{
		UserAgent:            "petfeed-sync/1.0",
		RequestTimeout:       15 * time.Second,
		MaxItems:             100,
		MaxHeadingLength:     200,
		MaxAge:               30 * 24 * time.Hour,
		FutureDriftTolerance: 12 * time.Hour,
	})}
}

func (f *feedFetcher) Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	items, err := f.ff.FetchAndProcess(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{
			URL:         item.URL,
			Title:       item.Headline,
			PublishedAt: item.PublishedAt,
		})
	}
	return entries, nil
}

// SourceSyncer pulls video links from every active source in parallel and
// stores them as feed videos. Its queues are closed at the end of Sync, so
// each cycle needs a fresh SourceSyncer.
type SourceSyncer struct {
	repo         *storage.Repository
	fetcher      Fetcher
	WorkerCount  int
	sourceQueue  chan models.VideoSource
	entryQueue   chan models.Video
	dbWriteQueue chan models.Video
	errorQueue   chan error

	workerWg   sync.WaitGroup
	filterWg   sync.WaitGroup
	inserted   atomic.Int64
	duplicates atomic.Int64
	skipped    atomic.Int64

	activeWorkers    atomic.Int32
	currentBatchSize atomic.Int32

	batchSize    int
	batchTimeout time.Duration
	now          func() time.Time
}

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 2 * time.Second
)

// errStorage marks failures that abort a sync run.
var errStorage = errors.New("storage")

// NewSourceSyncer creates a syncer writing through repo. A nil fetcher uses
// the feedfetcher-backed default.
func NewSourceSyncer(repo *storage.Repository, fetcher Fetcher, workerCount int) (*SourceSyncer, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if fetcher == nil {
		fetcher = NewFeedFetcher()
	}

	entryQueueSize := workerCount * 5
	return &SourceSyncer{
		repo:         repo,
		fetcher:      fetcher,
		WorkerCount:  workerCount,
		sourceQueue:  make(chan models.VideoSource, workerCount*2),
		entryQueue:   make(chan models.Video, entryQueueSize),
		dbWriteQueue: make(chan models.Video, entryQueueSize*2),
		errorQueue:   make(chan error, workerCount*4),
		batchSize:    defaultBatchSize,
		batchTimeout: defaultBatchTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Sync runs one pass over all active sources. Fetch failures are recorded on
// the source and logged; only storage failures are returned.
func (s *SourceSyncer) Sync(ctx context.Context) error {
	progressTicker := time.NewTicker(time.Minute)
	defer progressTicker.Stop()

	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	go func() {
		for {
			select {
			case <-progressTicker.C:
				inserted, duplicates := s.Stats()
				log.Info().
					Int64("inserted", inserted).
					Int64("duplicates", duplicates).
					Int32("active_workers", s.activeWorkers.Load()).
					Int32("current_batch_size", s.currentBatchSize.Load()).
					Int("source_queue_size", len(s.sourceQueue)).
					Int("db_write_queue_size", len(s.dbWriteQueue)).
					Msg("Sync progress")
			case <-progressCtx.Done():
				return
			}
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		var firstErr error
		for err := range s.errorQueue {
			log.Error().Err(err).Msg("Sync error")
			if firstErr == nil && errors.Is(err, errStorage) {
				firstErr = err
			}
		}
		errChan <- firstErr
	}()

	var stages sync.WaitGroup
	stages.Add(3)
	go func() {
		defer stages.Done()
		for i := 0; i < s.WorkerCount; i++ {
			s.workerWg.Add(1)
			go s.sourceWorker(ctx)
		}
		s.workerWg.Wait()
		close(s.entryQueue)
	}()
	go func() {
		defer stages.Done()
		s.filterWg.Add(1)
		go s.entryFilter(ctx)
		s.filterWg.Wait()
		close(s.dbWriteQueue)
	}()
	go func() {
		defer stages.Done()
		s.databaseWriter(ctx)
	}()

	sources, err := s.repo.ActiveSources(ctx)
	if err != nil {
		close(s.sourceQueue)
		stages.Wait()
		close(s.errorQueue)
		<-errChan
		return fmt.Errorf("failed to load sources: %w", err)
	}
	log.Info().Int("sources", len(sources)).Msg("Loaded active sources")

queueLoop:
	for _, src := range sources {
		select {
		case s.sourceQueue <- src:
		case <-ctx.Done():
			log.Info().Err(ctx.Err()).Msg("Context cancelled while queueing sources")
			break queueLoop
		}
	}
	close(s.sourceQueue)

	stages.Wait()
	close(s.errorQueue)
	if firstErr := <-errChan; firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// sourceWorker fetches each source, records the outcome and queues its entries.
func (s *SourceSyncer) sourceWorker(ctx context.Context) {
	defer s.workerWg.Done()
	s.activeWorkers.Add(1)
	defer s.activeWorkers.Add(-1)

	for src := range s.sourceQueue {
		if ctx.Err() != nil {
			continue
		}
		s.syncSource(ctx, src)
	}
}

func (s *SourceSyncer) syncSource(ctx context.Context, src models.VideoSource) {
	fetchCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	log.Debug().Int64("source_id", src.ID).Str("url", src.URL).Msg("Fetching source")
	entries, fetchErr := s.fetcher.Fetch(fetchCtx, src.URL)

	updateCtx, cancelUpdate := context.WithTimeout(ctx, 15*time.Second)
	defer cancelUpdate()
	now := s.now()

	if fetchErr != nil {
		if strings.Contains(fetchErr.Error(), "429") {
			// Rate limiting is not the source's fault; retry next run.
			log.Warn().Int64("source_id", src.ID).Str("url", src.URL).Msg("Rate limited by source")
			return
		}
		if err := s.repo.RecordSourceFailure(updateCtx, &src, fetchErr, now); err != nil {
			s.sendError(fmt.Errorf("%w: %v", errStorage, err))
		}
		s.sendError(fmt.Errorf("error fetching source %d (%s): %w", src.ID, src.URL, fetchErr))
		if src.Status == models.SourceInactive {
			log.Warn().Int64("source_id", src.ID).Int("failures", src.FailuresCount).Msg("Source deactivated")
		}
		return
	}
	if err := s.repo.RecordSourceSuccess(updateCtx, src.ID, now); err != nil {
		s.sendError(fmt.Errorf("%w: %v", errStorage, err))
	}

	if len(entries) > 0 {
		log.Info().Int64("source_id", src.ID).Int("entries", len(entries)).Msg("Source fetched")
	}
	for _, e := range entries {
		v := models.NewVideo(e.URL)
		v.CreatedAt = now
		v.AnimalID = src.AnimalID
		v.SourceID = sql.NullInt64{Int64: src.ID, Valid: true}
		v.Title = sql.NullString{String: e.Title, Valid: e.Title != ""}
		v.PublishedAt = sql.NullTime{Time: e.PublishedAt.UTC(), Valid: !e.PublishedAt.IsZero()}

		select {
		case s.entryQueue <- *v:
		case <-ctx.Done():
			return
		}
	}
}

// entryFilter drops entries without a playable link and links already seen
// during this run.
func (s *SourceSyncer) entryFilter(ctx context.Context) {
	defer s.filterWg.Done()
	seen := make(map[string]struct{})

	for v := range s.entryQueue {
		if !playable(v.VideoURL.String) {
			s.skipped.Add(1)
			log.Debug().Str("url", v.VideoURL.String).Int64("source_id", v.SourceID.Int64).Msg("Skipping entry without video link")
			continue
		}
		if _, dup := seen[v.VideoURL.String]; dup {
			s.duplicates.Add(1)
			continue
		}
		seen[v.VideoURL.String] = struct{}{}

		select {
		case s.dbWriteQueue <- v:
		case <-ctx.Done():
			// Drain so producers never block on a cancelled run.
			for range s.entryQueue {
			}
			return
		}
	}
}

func playable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// databaseWriter batches videos into the store.
func (s *SourceSyncer) databaseWriter(ctx context.Context) {
	batch := make([]models.Video, 0, s.batchSize)
	ticker := time.NewTicker(s.batchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Writes go through even after cancellation so fetched work is kept.
		s.writeBatch(context.WithoutCancel(ctx), batch)
		batch = make([]models.Video, 0, s.batchSize)
		s.currentBatchSize.Store(0)
	}

	for {
		select {
		case v, ok := <-s.dbWriteQueue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, v)
			s.currentBatchSize.Store(int32(len(batch)))
			if len(batch) >= s.batchSize {
				flush()
				ticker.Reset(s.batchTimeout)
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *SourceSyncer) writeBatch(ctx context.Context, batch []models.Video) {
	inserted, duplicates, err := s.repo.InsertVideos(ctx, batch)
	if err != nil {
		s.sendError(fmt.Errorf("%w: videos writer: %v", errStorage, err))
		return
	}
	s.inserted.Add(int64(inserted))
	s.duplicates.Add(int64(duplicates))
	log.Info().Int("inserted", inserted).Int("duplicates", duplicates).Msg("Batch written")
}

// sendError queues err without blocking.
func (s *SourceSyncer) sendError(err error) {
	if err == nil {
		return
	}
	select {
	case s.errorQueue <- err:
	default:
		log.Error().Err(err).Msg("Error queue full, logging error instead of queuing")
	}
}

// Stats returns how many videos were inserted and how many were already known.
func (s *SourceSyncer) Stats() (inserted, duplicates int64) {
	return s.inserted.Load(), s.duplicates.Load()
}

// Skipped returns how many entries had no usable video link.
func (s *SourceSyncer) Skipped() int64 {
	return s.skipped.Load()
}

// PurgeAdopted removes videos of animals adopted more than retentionDays ago.
func (s *SourceSyncer) PurgeAdopted(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retentionDays must be positive")
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	log.Info().Time("cutoff", cutoff).Int("retention_days", retentionDays).Msg("Purging videos of adopted animals")

	n, err := s.repo.PurgeAdoptedVideos(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("rows_affected", n).Msg("Purged adopted videos")
	return n, nil
}
