// Package filemanager stores exam documents uploaded by users.
//
// Each uploaded PDF is written to an object store under the key
// "{owner_id}/{display_name}" and described by a Record in a metadata
// store. The Service coordinates both stores: an upload only creates a
// Record after the object write succeeded, and a delete only removes the
// Record after the object delete succeeded.
//
// The two stores are not updated transactionally. A failure between the
// object write and the record insert leaves an orphaned object, and a
// failure between the object delete and the record delete leaves a
// dangling record. The reconcile subpackage reports both conditions.
//
// Repository and ObjectStore implementations live under repo/ and
// storage/ respectively and are injected with WithRepository and
// WithObjectStore.
package filemanager
