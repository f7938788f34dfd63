package dataset

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/observability"
)

// ErrNotLoaded is returned when no snapshot has been loaded yet.
var ErrNotLoaded = errors.New("dataset not loaded")

// Dataset is an immutable snapshot of rental records.
type Dataset struct {
	Records  []models.RentalRecord
	Source   string
	Version  string
	LoadedAt time.Time
}

// Source produces the full set of records.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]models.RentalRecord, error)
}

// CSVSource loads records from a CSV file.
type CSVSource struct {
	Path string
}

func (s CSVSource) Name() string { return "csv:" + s.Path }

func (s CSVSource) Load(ctx context.Context) ([]models.RentalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadCSV(s.Path)
}

// RepositorySource loads records from a Repository.
type RepositorySource struct {
	Repo Repository
	Path string
}

func (s RepositorySource) Name() string { return "sqlite:" + s.Path }

func (s RepositorySource) Load(ctx context.Context) ([]models.RentalRecord, error) {
	return s.Repo.LoadRecords(ctx)
}

// Store holds the current snapshot. Readers never block; Reload swaps the
// snapshot only after a successful load, so a failed reload keeps serving
// the previous data.
type Store struct {
	source  Source
	logger  *zap.Logger
	current atomic.Pointer[Dataset]
	mu      sync.Mutex // serializes reloads
	onLoad  []func(ctx context.Context, ds *Dataset)
}

// NewStore returns an empty Store backed by source.
func NewStore(source Source, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{source: source, logger: logger}
}

// OnLoad registers fn to run after a load that changed the dataset version.
// Register before the first Reload.
func (s *Store) OnLoad(fn func(ctx context.Context, ds *Dataset)) {
	s.onLoad = append(s.onLoad, fn)
}

// Current returns the loaded snapshot or ErrNotLoaded.
func (s *Store) Current() (*Dataset, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrNotLoaded
	}
	return ds, nil
}

// Reload loads the source and replaces the snapshot.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	records, err := s.source.Load(ctx)
	if err != nil {
		observability.DatasetReloadsTotal.WithLabelValues("error").Inc()
		s.logger.Error("dataset load failed", zap.String("source", s.source.Name()), zap.Error(err))
		return fmt.Errorf("load %s: %w", s.source.Name(), err)
	}
	if len(records) == 0 {
		observability.DatasetReloadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("load %s: %w: no records", s.source.Name(), ErrMalformed)
	}

	ds := &Dataset{
		Records:  records,
		Source:   s.source.Name(),
		Version:  Version(records),
		LoadedAt: time.Now().UTC(),
	}
	prev := s.current.Swap(ds)

	observability.DatasetReloadsTotal.WithLabelValues("success").Inc()
	observability.DatasetRecords.Set(float64(len(records)))
	fields := []zap.Field{
		zap.String("source", ds.Source),
		zap.Int("records", len(records)),
		zap.String("version", ds.Version),
		zap.Duration("duration", time.Since(start)),
	}
	if prev != nil && prev.Version == ds.Version {
		s.logger.Debug("dataset reloaded, unchanged", fields...)
		return nil
	}
	s.logger.Info("dataset loaded", fields...)
	for _, fn := range s.onLoad {
		fn(ctx, ds)
	}
	return nil
}

// Version fingerprints records so caches can tell snapshots apart.
func Version(records []models.RentalRecord) string {
	h := fnv.New64a()
	var buf []byte
	for _, r := range records {
		buf = buf[:0]
		buf = r.Date.AppendFormat(buf, models.DateLayout)
		for _, v := range []int{r.Year, r.Hour, r.Weather, r.Casual, r.Registered, r.Count} {
			buf = append(buf, ',')
			buf = strconv.AppendInt(buf, int64(v), 10)
		}
		buf = append(buf, ',')
		buf = append(buf, r.Season...)
		buf = append(buf, ',')
		buf = append(buf, r.Weekday...)
		buf = strconv.AppendBool(append(buf, ','), r.WorkingDay)
		h.Write(buf)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
