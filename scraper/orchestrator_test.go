package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"necc_scraper/models"
)

type stubFetcher struct {
	html  string
	err   error
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, year, month int) (string, error) {
	f.calls++
	return f.html, f.err
}

type runStore struct {
	zones  []models.Zone
	prices map[string]*models.PriceRecord
	runs   []*models.ScrapeRunLog
	logErr error
}

func newRunStore(names ...string) *runStore {
	s := &runStore{prices: map[string]*models.PriceRecord{}}
	for _, n := range names {
		s.zones = append(s.zones, models.Zone{ID: uuid.New(), Name: n, IsActive: true})
	}
	return s
}

func (s *runStore) ActiveZones(ctx context.Context) ([]models.Zone, error) {
	return s.zones, nil
}

func (s *runStore) GetPriceRecord(ctx context.Context, zoneID uuid.UUID, date time.Time) (*models.PriceRecord, error) {
	rec, ok := s.prices[zoneID.String()+date.Format(models.DateLayout)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *runStore) InsertPriceRecord(ctx context.Context, rec *models.PriceRecord) error {
	cp := *rec
	s.prices[rec.ZoneID.String()+rec.Date.Format(models.DateLayout)] = &cp
	return nil
}

func (s *runStore) UpdatePriceRecord(ctx context.Context, rec *models.PriceRecord) error {
	return s.InsertPriceRecord(ctx, rec)
}

func (s *runStore) CreateScrapeRunLog(ctx context.Context, run *models.ScrapeRunLog) error {
	if s.logErr != nil {
		return s.logErr
	}
	s.runs = append(s.runs, run)
	return nil
}

type recordingArchiver struct {
	keys []string
	err  error
}

func (a *recordingArchiver) ArchivePage(ctx context.Context, year, month int, runID uuid.UUID, html string) error {
	a.keys = append(a.keys, runID.String())
	return a.err
}

type recordingPublisher struct {
	runs []*models.ScrapeRunLog
}

func (p *recordingPublisher) PublishRun(run *models.ScrapeRunLog) error {
	p.runs = append(p.runs, run)
	return nil
}

func newTestOrchestrator(t *testing.T, html string, store *runStore) (*Orchestrator, *stubFetcher) {
	t.Helper()
	fetcher := &stubFetcher{html: html}
	o := NewOrchestrator(fetcher, "tblEggPrice", store, time.UTC, zap.NewNop())
	return o, fetcher
}

func TestOrchestrator_Run_Success(t *testing.T) {
	store := newRunStore("Namakkal", "Hyderabad", "Chennai (CC)")
	o, _ := newTestOrchestrator(t, loadFixture(t, "necc_march_2024.html"), store)
	archiver := &recordingArchiver{err: errors.New("bucket gone")}
	publisher := &recordingPublisher{}
	o.SetArchiver(archiver)
	o.SetPublisher(publisher)

	result, err := o.Run(context.Background(), 2024, 3)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 8, result.ZonesScraped)
	assert.Equal(t, 8, result.ZonesSuccessful)
	assert.Len(t, store.prices, 8)

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.Equal(t, 8, run.PricesInserted)
	assert.Equal(t, 2024, run.TargetYear)
	assert.Equal(t, 3, run.TargetMonth)

	require.Len(t, archiver.keys, 1, "archive failure must not stop the run")
	assert.Equal(t, run.ID.String(), archiver.keys[0])
	require.Len(t, publisher.runs, 1)
	assert.Equal(t, run.ID, publisher.runs[0].ID)
}

func TestOrchestrator_Run_Partial(t *testing.T) {
	store := newRunStore("Namakkal")
	o, _ := newTestOrchestrator(t, loadFixture(t, "necc_march_2024.html"), store)

	result, err := o.Run(context.Background(), 2024, 3)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.ZonesSuccessful)
	assert.Equal(t, 5, result.ZonesFailed)
	assert.Contains(t, result.Errors, "Zone not found: Hyderabad")
	assert.Contains(t, result.Errors, "Zone not found: Chennai (CC)")

	require.Len(t, store.runs, 1)
	assert.Equal(t, models.RunStatusPartial, store.runs[0].Status)
	assert.Len(t, store.runs[0].ErrorDetails, 5)
}

func TestOrchestrator_Run_Idempotent(t *testing.T) {
	store := newRunStore("Namakkal", "Hyderabad", "Chennai (CC)")
	o, _ := newTestOrchestrator(t, loadFixture(t, "necc_march_2024.html"), store)

	_, err := o.Run(context.Background(), 2024, 3)
	require.NoError(t, err)
	_, err = o.Run(context.Background(), 2024, 3)
	require.NoError(t, err)

	assert.Len(t, store.prices, 8)
	assert.Len(t, store.runs, 2)
}

func TestOrchestrator_Run_FetchFailureIsLogged(t *testing.T) {
	store := newRunStore("Namakkal")
	o, fetcher := newTestOrchestrator(t, "", store)
	fetcher.err = &StatusError{StatusCode: 502, Status: "Bad Gateway"}

	_, err := o.Run(context.Background(), 2024, 3)
	require.Error(t, err)

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, models.RunStatusFailure, run.Status)
	assert.Zero(t, run.ZonesScraped)
	require.NotNil(t, run.ErrorMessage)
	assert.Contains(t, *run.ErrorMessage, "502")
	assert.Empty(t, store.prices)
}

func TestOrchestrator_Run_MissingTableIsLogged(t *testing.T) {
	store := newRunStore("Namakkal")
	o, _ := newTestOrchestrator(t, "<html><body><p>Under maintenance</p></body></html>", store)

	_, err := o.Run(context.Background(), 2024, 3)
	require.ErrorIs(t, err, ErrTableNotFound)

	require.Len(t, store.runs, 1)
	assert.Equal(t, models.RunStatusFailure, store.runs[0].Status)
	assert.Zero(t, store.runs[0].ZonesScraped)
}

func TestOrchestrator_Run_PausedWritesNoLog(t *testing.T) {
	store := newRunStore("Namakkal")
	o, fetcher := newTestOrchestrator(t, loadFixture(t, "necc_march_2024.html"), store)

	o.Pause()
	_, err := o.Run(context.Background(), 2024, 3)
	require.ErrorIs(t, err, ErrPaused)
	assert.Zero(t, fetcher.calls)
	assert.Empty(t, store.runs)

	o.Resume()
	_, err = o.Run(context.Background(), 2024, 3)
	require.NoError(t, err)
	assert.Len(t, store.runs, 1)
}

func TestOrchestrator_Run_InvalidTarget(t *testing.T) {
	store := newRunStore("Namakkal")
	o, fetcher := newTestOrchestrator(t, "", store)

	_, err := o.Run(context.Background(), 2024, 0)
	require.Error(t, err)
	assert.Zero(t, fetcher.calls)
	assert.Empty(t, store.runs)
}

func TestOrchestrator_Run_LogWriteFailureKeepsResult(t *testing.T) {
	store := newRunStore("Namakkal")
	store.logErr = errors.New("insert failed")
	o, _ := newTestOrchestrator(t, loadFixture(t, "necc_march_2024.html"), store)

	result, err := o.Run(context.Background(), 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ZonesSuccessful)
}

func TestOrchestrator_CurrentTargetUsesLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	o := NewOrchestrator(&stubFetcher{}, "t", newRunStore(), ist, zap.NewNop())
	o.now = func() time.Time { return time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC) }

	year, month := o.CurrentTarget()
	assert.Equal(t, 2024, year)
	assert.Equal(t, 4, month)
}
