package filemanager

import "context"

// NoopHooks is a no-operation implementation of Hooks
type NoopHooks struct{}

// NewNoopHooks creates a new no-operation hooks implementation
func NewNoopHooks() Hooks {
	return NoopHooks{}
}

func (NoopHooks) FileUploaded(ctx context.Context, record *Record, size int64)            {}
func (NoopHooks) FileRejected(ctx context.Context, ownerID int64, name string, kind Kind) {}
func (NoopHooks) RecordDeleted(ctx context.Context, record *Record)                       {}
func (NoopHooks) DeleteFailed(ctx context.Context, ownerID int64, kind Kind)              {}
