package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/filemanager/pkg/filemanager"
)

type recordKey struct {
	ownerID int64
	name    string
}

// Repository implements filemanager.Repository using in-memory storage
type Repository struct {
	mu           sync.RWMutex
	users        map[int64]*filemanager.User
	emails       map[string]int64
	records      map[int64]*filemanager.Record
	recordByName map[recordKey]int64
	nextUserID   int64
	nextRecordID int64
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		users:        make(map[int64]*filemanager.User),
		emails:       make(map[string]int64),
		records:      make(map[int64]*filemanager.Record),
		recordByName: make(map[recordKey]int64),
	}
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *filemanager.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := r.emails[email]; exists {
		return fmt.Errorf("user with email %q already exists", user.Email)
	}

	r.nextUserID++
	user.ID = r.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	// Store a copy to avoid external modifications
	userCopy := *user
	r.users[user.ID] = &userCopy
	r.emails[email] = user.ID
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*filemanager.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, filemanager.ErrUserNotFound
	}
	userCopy := *user
	return &userCopy, nil
}

// Record operations

func (r *Repository) CreateRecord(ctx context.Context, record *filemanager.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[record.OwnerID]; !exists {
		return fmt.Errorf("owner %d: %w", record.OwnerID, filemanager.ErrUserNotFound)
	}

	key := recordKey{ownerID: record.OwnerID, name: record.Name}
	if _, exists := r.recordByName[key]; exists {
		return fmt.Errorf("record %q of owner %d: %w", record.Name, record.OwnerID, filemanager.ErrDuplicateName)
	}

	r.nextRecordID++
	record.ID = r.nextRecordID

	recordCopy := *record
	r.records[record.ID] = &recordCopy
	r.recordByName[key] = record.ID
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, ownerID, id int64) (*filemanager.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists || record.OwnerID != ownerID {
		return nil, filemanager.ErrRecordNotFound
	}
	recordCopy := *record
	return &recordCopy, nil
}

func (r *Repository) FindRecordByName(ctx context.Context, ownerID int64, name string) (*filemanager.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.recordByName[recordKey{ownerID: ownerID, name: name}]
	if !exists {
		return nil, filemanager.ErrRecordNotFound
	}
	recordCopy := *r.records[id]
	return &recordCopy, nil
}

func (r *Repository) ListRecords(ctx context.Context, ownerID int64) ([]*filemanager.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*filemanager.Record{}
	for _, record := range r.records {
		if record.OwnerID == ownerID {
			recordCopy := *record
			result = append(result, &recordCopy)
		}
	}

	sortByID(result)
	return result, nil
}

func (r *Repository) ListAllRecords(ctx context.Context) ([]*filemanager.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*filemanager.Record, 0, len(r.records))
	for _, record := range r.records {
		recordCopy := *record
		result = append(result, &recordCopy)
	}

	sortByID(result)
	return result, nil
}

func (r *Repository) DeleteRecord(ctx context.Context, ownerID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.records[id]
	if !exists || record.OwnerID != ownerID {
		return filemanager.ErrRecordNotFound
	}

	delete(r.recordByName, recordKey{ownerID: record.OwnerID, name: record.Name})
	delete(r.records, id)
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return nil
}

func sortByID(records []*filemanager.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
}
