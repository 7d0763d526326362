package scanner

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/events"
)

func testScannerConfig() config.ScannerConfig {
	return config.ScannerConfig{
		TVBatchSize:        5,
		MovieBatchSize:     25,
		StaleRunningAfter:  24 * time.Hour,
		FailedRetention:    168 * time.Hour,
		BroadRootSample:    50,
		BroadRootThreshold: 0.7,
	}
}

func newTestScheduler(t *testing.T) (*Scheduler, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	bus := events.NewEventBus(events.DefaultBusConfig())
	return NewScheduler(db, testScannerConfig(), bus, nil), db
}

func waitForJob(t *testing.T, s *Scheduler, jobID uint32, want database.ScanJobStatus) *database.ScanJob {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.Job(jobID)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		if job.Terminal() && job.Status != want {
			t.Fatalf("job %d reached %s, wanted %s (%s)", jobID, job.Status, want, job.StatusMessage)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d never reached %s", jobID, want)
	return nil
}

func TestEnqueueRejectsInvalidMediaType(t *testing.T) {
	s, db := newTestScheduler(t)

	_, err := s.Enqueue(t.TempDir(), ScanOptions{MediaType: "PODCAST"})

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	var count int64
	db.Model(&database.ScanJob{}).Count(&count)
	assert.Zero(t, count, "rejected requests must not create jobs")
}

func TestEnqueueRejectsMissingPath(t *testing.T) {
	s, db := newTestScheduler(t)

	_, err := s.Enqueue("/definitely/not/here", ScanOptions{MediaType: database.MediaTypeMovie})

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	var count int64
	db.Model(&database.ScanJob{}).Count(&count)
	assert.Zero(t, count)
}

func TestScanNewMovieLibrary(t *testing.T) {
	s, db := newTestScheduler(t)

	root := t.TempDir()
	writeTree(t, root, "Inception (2010)/Inception (2010).mkv")

	result, err := s.Enqueue(root, ScanOptions{MediaType: database.MediaTypeMovie})
	require.NoError(t, err)
	assert.False(t, result.Queued)
	require.NotZero(t, result.ScanJobID)

	job := waitForJob(t, s, result.ScanJobID, database.ScanJobCompleted)
	assert.Equal(t, 1, job.ScannedCount)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)

	var media database.Media
	require.NoError(t, db.Where("type = ?", database.MediaTypeMovie).First(&media).Error)
	assert.Equal(t, "Inception", media.Title)

	var movie database.Movie
	require.NoError(t, db.Where("media_id = ?", media.ID).First(&movie).Error)
	assert.Equal(t, 2010, movie.Year)
	assert.Equal(t, int64(1), movie.FileSize)

	var linkCount int64
	db.Model(&database.MediaCollection{}).Where("media_id = ?", media.ID).Count(&linkCount)
	assert.Equal(t, int64(1), linkCount)
}

func TestScanIsIdempotent(t *testing.T) {
	s, db := newTestScheduler(t)

	root := t.TempDir()
	writeTree(t, root,
		"Alien (1979)/Alien (1979).mkv",
		"Heat (1995)/Heat (1995).mkv",
	)

	first, err := s.Enqueue(root, ScanOptions{MediaType: database.MediaTypeMovie})
	require.NoError(t, err)
	waitForJob(t, s, first.ScanJobID, database.ScanJobCompleted)

	second, err := s.Enqueue(root, ScanOptions{MediaType: database.MediaTypeMovie})
	require.NoError(t, err)
	waitForJob(t, s, second.ScanJobID, database.ScanJobCompleted)

	var mediaCount, movieCount int64
	db.Model(&database.Media{}).Count(&mediaCount)
	db.Model(&database.Movie{}).Count(&movieCount)
	assert.Equal(t, int64(2), mediaCount)
	assert.Equal(t, int64(2), movieCount)
}

func TestScanTVShowBuildsHierarchy(t *testing.T) {
	s, db := newTestScheduler(t)

	root := t.TempDir()
	writeTree(t, root,
		"Breaking Bad/Season 1/Breaking.Bad.S01E01.mkv",
		"Breaking Bad/Season 1/Breaking.Bad.S01E02.mkv",
		"Breaking Bad/Season 2/Breaking.Bad.S02E01.mkv",
	)

	result, err := s.Enqueue(root, ScanOptions{MediaType: database.MediaTypeTVShow, BatchScan: true})
	require.NoError(t, err)
	waitForJob(t, s, result.ScanJobID, database.ScanJobCompleted)

	var showCount, seasonCount, episodeCount int64
	db.Model(&database.TVShow{}).Count(&showCount)
	db.Model(&database.Season{}).Count(&seasonCount)
	db.Model(&database.Episode{}).Count(&episodeCount)
	assert.Equal(t, int64(1), showCount)
	assert.Equal(t, int64(2), seasonCount)
	assert.Equal(t, int64(3), episodeCount)

	var media database.Media
	require.NoError(t, db.Where("type = ?", database.MediaTypeTVShow).First(&media).Error)
	assert.Equal(t, "Breaking Bad", media.Title)
}

func TestScanExcludesUnparsableTVFiles(t *testing.T) {
	s, db := newTestScheduler(t)

	root := t.TempDir()
	writeTree(t, root,
		"Some Show/Random.mkv",
		"Some Show/Some.Show.S01E01.mkv",
	)

	result, err := s.Enqueue(root, ScanOptions{MediaType: database.MediaTypeTVShow})
	require.NoError(t, err)
	job := waitForJob(t, s, result.ScanJobID, database.ScanJobCompleted)

	assert.Equal(t, 2, job.ScannedCount)

	var episodeCount int64
	db.Model(&database.Episode{}).Count(&episodeCount)
	assert.Equal(t, int64(1), episodeCount)
}

func TestScanPicksUpExternalIDTags(t *testing.T) {
	s, db := newTestScheduler(t)

	root := t.TempDir()
	writeTree(t, root, "The Matrix (1999) {tmdb-603}/The Matrix (1999).mkv")

	result, err := s.Enqueue(root, ScanOptions{MediaType: database.MediaTypeMovie})
	require.NoError(t, err)
	waitForJob(t, s, result.ScanJobID, database.ScanJobCompleted)

	var extID database.ExternalID
	require.NoError(t, db.Where("source = ?", "tmdb").First(&extID).Error)
	assert.Equal(t, "603", extID.ExternalID)
}

func TestQueueIsFIFO(t *testing.T) {
	s, _ := newTestScheduler(t)

	rootB := t.TempDir()
	rootC := t.TempDir()
	writeTree(t, rootB, "Movie B (2001)/Movie B (2001).mkv")
	writeTree(t, rootC, "Movie C (2002)/Movie C (2002).mkv")

	// Hold the slot so the next requests queue up.
	blocker := &ScanTask{JobID: 9999, done: make(chan struct{})}
	s.mu.Lock()
	s.active = blocker
	s.mu.Unlock()

	resB, err := s.Enqueue(rootB, ScanOptions{MediaType: database.MediaTypeMovie})
	require.NoError(t, err)
	assert.True(t, resB.Queued)
	assert.Equal(t, 1, resB.QueuePosition)

	resC, err := s.Enqueue(rootC, ScanOptions{MediaType: database.MediaTypeMovie})
	require.NoError(t, err)
	assert.True(t, resC.Queued)
	assert.Equal(t, 2, resC.QueuePosition)
	assert.Equal(t, 2, s.QueueLength())

	close(blocker.done)
	s.onTaskComplete(blocker)

	jobB := waitForJob(t, s, resB.ScanJobID, database.ScanJobCompleted)
	jobC := waitForJob(t, s, resC.ScanJobID, database.ScanJobCompleted)

	require.NotNil(t, jobB.CompletedAt)
	require.NotNil(t, jobC.StartedAt)
	assert.False(t, jobC.StartedAt.Before(*jobB.CompletedAt),
		"queued jobs must run in submission order")
	assert.Zero(t, s.QueueLength())
	assert.Nil(t, s.ActiveTask())
}

func TestScanTaskHandleReportsCompletion(t *testing.T) {
	s, _ := newTestScheduler(t)

	root := t.TempDir()
	writeTree(t, root, "Heat (1995)/Heat (1995).mkv")

	result, err := s.Enqueue(root, ScanOptions{MediaType: database.MediaTypeMovie})
	require.NoError(t, err)

	task := s.ActiveTask()
	if task == nil {
		// Fast scan may already be done.
		waitForJob(t, s, result.ScanJobID, database.ScanJobCompleted)
		return
	}
	require.Equal(t, result.ScanJobID, task.JobID)

	select {
	case <-task.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("task never completed")
	}
	assert.NoError(t, task.Err())
}

func TestResumeReDerivesRemainingWork(t *testing.T) {
	s, db := newTestScheduler(t)

	root := t.TempDir()
	writeTree(t, root,
		"Alien (1979)/Alien (1979).mkv",
		"Heat (1995)/Heat (1995).mkv",
	)

	first, err := s.Enqueue(root, ScanOptions{MediaType: database.MediaTypeMovie})
	require.NoError(t, err)
	waitForJob(t, s, first.ScanJobID, database.ScanJobCompleted)

	// A file appears after the first pass; resume picks up only the delta.
	writeTree(t, root, "Zodiac (2007)/Zodiac (2007).mkv")

	resumed, err := s.Resume(first.ScanJobID)
	require.NoError(t, err)
	assert.Equal(t, first.ScanJobID, resumed.ScanJobID)
	require.False(t, resumed.Queued)

	// The job row still reads COMPLETED from the first pass, so wait on the
	// task handle rather than polling status.
	if task := s.ActiveTask(); task != nil && task.JobID == first.ScanJobID {
		select {
		case <-task.Done():
		case <-time.After(10 * time.Second):
			t.Fatal("resumed scan never completed")
		}
	}
	job := waitForJob(t, s, first.ScanJobID, database.ScanJobCompleted)

	assert.Equal(t, 3, job.ScannedCount)

	var movieCount int64
	db.Model(&database.Movie{}).Count(&movieCount)
	assert.Equal(t, int64(3), movieCount)
}

func TestResumeUnknownJob(t *testing.T) {
	s, _ := newTestScheduler(t)

	_, err := s.Resume(424242)

	assert.Error(t, err)
}

func TestResumeRejectsQueuedJob(t *testing.T) {
	s, _ := newTestScheduler(t)

	root := t.TempDir()
	writeTree(t, root, "Heat (1995)/Heat (1995).mkv")

	blocker := &ScanTask{JobID: 9999, done: make(chan struct{})}
	s.mu.Lock()
	s.active = blocker
	s.mu.Unlock()

	result, err := s.Enqueue(root, ScanOptions{MediaType: database.MediaTypeMovie})
	require.NoError(t, err)
	require.True(t, result.Queued)

	_, err = s.Resume(result.ScanJobID)
	assert.Error(t, err)

	close(blocker.done)
	s.onTaskComplete(blocker)
	waitForJob(t, s, result.ScanJobID, database.ScanJobCompleted)
}

// hierarchySummary flattens the persisted show/season/episode tree into a
// comparable map of show title to sorted episode labels.
func hierarchySummary(t *testing.T, db *gorm.DB) map[string][]string {
	t.Helper()
	out := map[string][]string{}

	var shows []database.TVShow
	require.NoError(t, db.Find(&shows).Error)
	for _, show := range shows {
		var media database.Media
		require.NoError(t, db.First(&media, "id = ?", show.MediaID).Error)

		var labels []string
		var seasons []database.Season
		require.NoError(t, db.Where("tv_show_id = ?", show.ID).Find(&seasons).Error)
		for _, season := range seasons {
			var episodes []database.Episode
			require.NoError(t, db.Where("season_id = ?", season.ID).Find(&episodes).Error)
			for _, ep := range episodes {
				labels = append(labels, fmt.Sprintf("S%02dE%02d", season.Number, ep.Number))
			}
		}
		sort.Strings(labels)
		out[media.Title] = labels
	}
	return out
}

func TestBatchedScanPersistsSameEntitiesAsFull(t *testing.T) {
	tree := []string{
		"Show A/Season 1/Show A S01E01.mkv",
		"Show A/Season 1/Show A S01E02.mkv",
		"Show B/Season 2/Show B S02E01.mkv",
		"Show C/Show C S01E01.mkv",
		"Show D/Show D S01E01.mkv",
		"Show E/Show E S01E01.mkv",
		"Show F/Show F S01E01.mkv",
		"Show G/Show G S01E01.mkv",
	}

	fullScheduler, fullDB := newTestScheduler(t)
	fullRoot := t.TempDir()
	writeTree(t, fullRoot, tree...)
	result, err := fullScheduler.Enqueue(fullRoot, ScanOptions{MediaType: database.MediaTypeTVShow})
	require.NoError(t, err)
	waitForJob(t, fullScheduler, result.ScanJobID, database.ScanJobCompleted)

	// Seven top-level shows against a batch size of five forces multiple
	// batches.
	batchScheduler, batchDB := newTestScheduler(t)
	batchRoot := t.TempDir()
	writeTree(t, batchRoot, tree...)
	result, err = batchScheduler.Enqueue(batchRoot, ScanOptions{MediaType: database.MediaTypeTVShow, BatchScan: true})
	require.NoError(t, err)
	waitForJob(t, batchScheduler, result.ScanJobID, database.ScanJobCompleted)

	full := hierarchySummary(t, fullDB)
	assert.Len(t, full, 7)
	assert.Equal(t, full, hierarchySummary(t, batchDB))
}
