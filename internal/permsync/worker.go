// internal/permsync/worker.go
package permsync

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pulsar-base/pulsar-backend/config"
	"github.com/pulsar-base/pulsar-backend/internal/schema"
	"github.com/pulsar-base/pulsar-backend/internal/storage"
)

// RemotePermissions is the per-table rule block of the remote document.
type RemotePermissions struct {
	View   *string `json:"view"`
	Create *string `json:"create"`
	Update *string `json:"update"`
	Delete *string `json:"delete"`
}

// RemoteDocument is the payload served by the configured permissions endpoint.
// Tables is keyed by table name.
type RemoteDocument struct {
	UpdatedAt time.Time                    `json:"updatedAt"`
	Tables    map[string]RemotePermissions `json:"tables"`
}

// Worker pulls the remote permission document and applies it to every table
// in strict mode. Syncs run one at a time through the task queue, fed by the
// periodic ticker and webhook triggers.
type Worker struct {
	db     *sql.DB
	cfg    *config.Config
	client *http.Client
	queue  *TaskQueue
}

func NewWorker(db *sql.DB, cfg *config.Config) *Worker {
	return &Worker{
		db:     db,
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		queue:  NewTaskQueue(8),
	}
}

// Run drives the worker until the context is cancelled: one immediate sync,
// then one per tick. Sync failures are logged and retried on the next tick.
func (w *Worker) Run(ctx context.Context) {
	if w.cfg.PermissionsURL == "" {
		customLog.Println("PermSync: No permissions URL configured, worker disabled.")
		return
	}
	go w.queue.Run(ctx)

	w.Trigger()
	ticker := time.NewTicker(w.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			customLog.Println("PermSync: Worker stopped.")
			return
		case <-ticker.C:
			w.Trigger()
		}
	}
}

// Trigger enqueues one sync. Safe to call from request handlers.
func (w *Worker) Trigger() {
	w.queue.Enqueue(func(ctx context.Context) {
		if err := w.Sync(ctx); err != nil {
			customLog.Warnf("PermSync: Sync failed: %v", err)
		}
	})
}

// Sync fetches the remote document and applies it when it is new. The body
// hash and the document timestamp both gate application, so replayed webhook
// triggers and unchanged documents are cheap no-ops.
func (w *Worker) Sync(ctx context.Context) error {
	body, err := w.fetch(ctx)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])

	lastHash, lastSyncedAt, err := storage.GetSyncState(ctx, w.db)
	if err != nil {
		return err
	}
	if hash == lastHash {
		customLog.Println("PermSync: Document unchanged, skipping.")
		return nil
	}

	var doc RemoteDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("malformed permission document: %w", err)
	}
	if lastSyncedAt.Valid && !doc.UpdatedAt.After(lastSyncedAt.Time) {
		customLog.Printf("PermSync: Document timestamp %s is not newer than last sync, skipping.", doc.UpdatedAt)
		return nil
	}

	applied, err := w.apply(ctx, &doc)
	if err != nil {
		return err
	}

	syncedAt := sql.NullTime{Time: doc.UpdatedAt, Valid: true}
	if err := storage.UpdateSyncState(ctx, w.db, hash, syncedAt); err != nil {
		return err
	}
	customLog.Printf("PermSync: Applied permission document (%d tables updated).", applied)
	return nil
}

func (w *Worker) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.PermissionsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed building permissions request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed fetching permission document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("permissions endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed reading permission document: %w", err)
	}
	return body, nil
}

// apply overwrites the rules of every strict-mode table named in the document.
// Tables managing their own permissions (strict = false) and tables absent
// from the document are left untouched.
func (w *Worker) apply(ctx context.Context, doc *RemoteDocument) (int, error) {
	schemas, err := storage.ListSchemas(ctx, w.db)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, s := range schemas {
		if !s.Permissions.Strict {
			continue
		}
		remote, ok := doc.Tables[s.Name]
		if !ok {
			continue
		}
		perms := schema.Permissions{
			View:   remote.View,
			Create: remote.Create,
			Update: remote.Update,
			Delete: remote.Delete,
			Strict: true,
		}
		if err := storage.UpdateSchemaPermissions(ctx, w.db, s, perms); err != nil {
			return applied, fmt.Errorf("failed applying permissions to '%s': %w", s.Name, err)
		}
		applied++
	}
	return applied, nil
}
