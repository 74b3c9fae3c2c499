package reconcile

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/filemanager/pkg/filemanager"
	"github.com/tendant/filemanager/pkg/filemanager/repo/memory"
	memorystorage "github.com/tendant/filemanager/pkg/filemanager/storage/memory"
)

func seed(t *testing.T) (*memory.Repository, *memorystorage.Backend, *filemanager.User) {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	store := memorystorage.New("exams")

	user := &filemanager.User{FullName: "Ana", Email: "ana@example.com", BiologicalSex: filemanager.SexFemale}
	require.NoError(t, repo.CreateUser(ctx, user))
	return repo, store, user
}

func put(t *testing.T, store *memorystorage.Backend, key string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), key, strings.NewReader("x"), 1, filemanager.PDFContentType))
}

func TestRun_Clean(t *testing.T) {
	repo, store, user := seed(t)
	record := &filemanager.Record{OwnerID: user.ID, Name: "a.pdf"}
	require.NoError(t, repo.CreateRecord(context.Background(), record))
	put(t, store, "1/a.pdf")

	report, err := NewSweeper(repo, store).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.Records)
	assert.Equal(t, 1, report.Objects)
}

func TestRun_FindsInconsistencies(t *testing.T) {
	ctx := context.Background()
	repo, store, user := seed(t)

	kept := &filemanager.Record{OwnerID: user.ID, Name: "kept.pdf"}
	dangling := &filemanager.Record{OwnerID: user.ID, Name: "dangling.pdf"}
	require.NoError(t, repo.CreateRecord(ctx, kept))
	require.NoError(t, repo.CreateRecord(ctx, dangling))

	put(t, store, "1/kept.pdf")
	put(t, store, "1/orphan.pdf")
	put(t, store, "2/other.pdf")
	put(t, store, "loose-file.pdf")

	var observed *Report
	sweeper := NewSweeper(repo, store, WithObserver(func(r *Report) { observed = r }))

	report, err := sweeper.Run(ctx)
	require.NoError(t, err)

	assert.False(t, report.Clean())
	assert.Equal(t, []string{"1/orphan.pdf", "2/other.pdf"}, report.Orphans)
	assert.Equal(t, []string{"loose-file.pdf"}, report.Unparseable)
	require.Len(t, report.Dangling, 1)
	assert.Equal(t, "dangling.pdf", report.Dangling[0].Name)
	assert.Same(t, report, observed)

	// stores are untouched
	assert.Equal(t, 4, store.Len())
	records, err := repo.ListAllRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

type failingStore struct {
	*memorystorage.Backend
}

func (failingStore) List(ctx context.Context, prefix string) ([]filemanager.ObjectInfo, error) {
	return nil, errors.New("list denied")
}

func TestRun_ListFailure(t *testing.T) {
	repo, store, _ := seed(t)

	_, err := NewSweeper(repo, failingStore{store}).Run(context.Background())
	assert.ErrorContains(t, err, "list denied")
}

func TestSchedule(t *testing.T) {
	repo, store, _ := seed(t)
	put(t, store, "9/orphan.pdf")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	runs := make(chan *Report, 4)
	sweeper := NewSweeper(repo, store, WithLogger(logger), WithObserver(func(r *Report) { runs <- r }))

	_, err := Schedule(context.Background(), "not a spec", sweeper)
	assert.ErrorContains(t, err, "invalid reconcile schedule")

	c, err := Schedule(context.Background(), "@every 1s", sweeper)
	require.NoError(t, err)
	defer c.Stop()

	select {
	case report := <-runs:
		assert.Equal(t, []string{"9/orphan.pdf"}, report.Orphans)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled reconcile did not run")
	}
}
