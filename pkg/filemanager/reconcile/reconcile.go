// Package reconcile compares the metadata store with the object store.
// Upload and delete touch both stores without a shared transaction, so a
// crash between the steps leaves an object without a record or a record
// without an object. The sweeper reports those pairs; it never repairs them.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/robfig/cron/v3"
	"github.com/tendant/filemanager/pkg/filemanager"
	"github.com/tendant/filemanager/pkg/filemanager/objectkey"
)

// Report lists the inconsistencies found by one run
type Report struct {
	Records int `json:"records"`
	Objects int `json:"objects"`

	// Orphans are object keys without a record
	Orphans []string `json:"orphans"`

	// Dangling are records whose object is missing
	Dangling []*filemanager.Record `json:"dangling"`

	// Unparseable are object keys outside the owner/name layout
	Unparseable []string `json:"unparseable"`
}

// Clean reports whether both stores agree
func (r *Report) Clean() bool {
	return len(r.Orphans) == 0 && len(r.Dangling) == 0 && len(r.Unparseable) == 0
}

// Sweeper builds reports
type Sweeper struct {
	repository filemanager.Repository
	objects    filemanager.ObjectStore
	logger     *slog.Logger
	observers  []func(*Report)
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithLogger sets the logger used by scheduled runs
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithObserver registers a callback that receives every successful report
func WithObserver(fn func(*Report)) Option {
	return func(s *Sweeper) {
		s.observers = append(s.observers, fn)
	}
}

func NewSweeper(repo filemanager.Repository, store filemanager.ObjectStore, opts ...Option) *Sweeper {
	s := &Sweeper{
		repository: repo,
		objects:    store,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run lists every record and every object and returns the differences
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	records, err := s.repository.ListAllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	infos, err := s.objects.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	report := &Report{
		Records:     len(records),
		Objects:     len(infos),
		Orphans:     []string{},
		Dangling:    []*filemanager.Record{},
		Unparseable: []string{},
	}

	recordKeys := make(map[string]struct{}, len(records))
	for _, record := range records {
		recordKeys[objectkey.Build(record.OwnerID, record.Name)] = struct{}{}
	}

	objectKeys := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		objectKeys[info.Key] = struct{}{}
		if _, _, err := objectkey.Parse(info.Key); err != nil {
			report.Unparseable = append(report.Unparseable, info.Key)
			continue
		}
		if _, ok := recordKeys[info.Key]; !ok {
			report.Orphans = append(report.Orphans, info.Key)
		}
	}

	for _, record := range records {
		if _, ok := objectKeys[objectkey.Build(record.OwnerID, record.Name)]; !ok {
			report.Dangling = append(report.Dangling, record)
		}
	}

	sort.Strings(report.Orphans)
	sort.Strings(report.Unparseable)
	sort.Slice(report.Dangling, func(i, j int) bool { return report.Dangling[i].ID < report.Dangling[j].ID })

	for _, observe := range s.observers {
		observe(report)
	}
	return report, nil
}

// Schedule runs the sweeper on a cron spec (standard five fields or a
// descriptor such as "@hourly") and logs every report. Overlapping runs
// are skipped. The caller stops the returned cron.
func Schedule(ctx context.Context, spec string, sweeper *Sweeper) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(spec, func() {
		sweeper.runLogged(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}

	c.Start()
	return c, nil
}

func (s *Sweeper) runLogged(ctx context.Context) {
	report, err := s.Run(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Reconcile failed", "error", err)
		return
	}
	if report.Clean() {
		s.logger.InfoContext(ctx, "Reconcile finished", "records", report.Records, "objects", report.Objects)
		return
	}
	s.logger.WarnContext(ctx, "Reconcile found inconsistencies",
		"records", report.Records,
		"objects", report.Objects,
		"orphans", report.Orphans,
		"dangling", len(report.Dangling),
		"unparseable", report.Unparseable)
}
