// Package backup orchestrates snapshot exports and imports, keeps their
// history, and ships encrypted copies to S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ButBow/kernel-gmbh-sub000/internal/content"
	"github.com/ButBow/kernel-gmbh-sub000/internal/metrics"
	"github.com/ButBow/kernel-gmbh-sub000/internal/model"
	"github.com/ButBow/kernel-gmbh-sub000/internal/snapshot"
	"github.com/ButBow/kernel-gmbh-sub000/internal/store"
	"github.com/ButBow/kernel-gmbh-sub000/internal/telemetry"
	"github.com/ButBow/kernel-gmbh-sub000/internal/websocket"
)

const (
	defaultPrefix        = "snapshots/"
	defaultRetentionDays = 30
	encryptedSuffix      = ".json.enc"
)

var (
	// ErrNotConfigured is returned by offsite operations when no bucket
	// credentials are set.
	ErrNotConfigured = errors.New("offsite backup not configured: S3 credentials missing")
	// ErrNoPassphrase is returned when an offsite operation has no passphrase.
	ErrNoPassphrase = errors.New("offsite backup passphrase required")
	// ErrIncomplete is returned when restoring an offsite copy whose upload
	// failed.
	ErrIncomplete = errors.New("offsite backup incomplete")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration.
type Config struct {
	S3 S3Config
	// Prefix is prepended to every offsite object key.
	Prefix string
	// Interval between scheduled offsite pushes. Zero disables the scheduler.
	Interval time.Duration
	// RetentionDays bounds how long offsite copies are kept.
	RetentionDays int
}

// Broadcaster receives backup lifecycle events.
type Broadcaster interface {
	Broadcast(websocket.Event)
}

// Deps are the collaborators of a Manager. Only Engine is required;
// without Content imports are validated but not applied, and without
// History nothing is recorded.
type Deps struct {
	Engine  *snapshot.Engine
	Content *content.Service
	History *store.BackupStore
	Metrics *metrics.Metrics
	Events  Broadcaster
	Logger  *slog.Logger
}

// State represents the offsite backup state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current offsite backup status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the offsite state changes.
type StatusCallback func(Status)

// Source describes where an imported snapshot came from.
type Source struct {
	Filename string
	Size     int64
}

// Export is a serialized snapshot ready to be handed to the user.
type Export struct {
	Document *snapshot.Document
	Data     []byte
	Filename string
	Record   *model.Backup
}

// ImportOutcome is everything an import produced. Result is set even when
// the import was rejected.
type ImportOutcome struct {
	OpID    string                `json:"op_id"`
	Result  snapshot.ImportResult `json:"-"`
	Applied *content.Applied      `json:"applied,omitempty"`
	Record  *model.Backup         `json:"record,omitempty"`
}

// Manager runs backup operations and records them.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	engine  *snapshot.Engine
	content *content.Service
	history *store.BackupStore
	metrics *metrics.Metrics
	events  Broadcaster
	logger  *slog.Logger
	client  s3Client
	now     func() time.Time

	// passphrase is cached in memory for scheduled pushes.
	passphrase string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager.
func NewManager(cfg Config, deps Deps, callback StatusCallback) *Manager {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	engine := deps.Engine
	if engine == nil {
		engine = snapshot.NewEngine(snapshot.Config{})
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:      cfg,
		callback: callback,
		engine:   engine,
		content:  deps.Content,
		history:  deps.History,
		metrics:  deps.Metrics,
		events:   deps.Events,
		logger:   logger.With("component", "backup"),
		now:      time.Now,
		status:   Status{State: StateDisabled},
	}

	if cfg.S3.complete() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	if m.history != nil {
		last, err := m.history.LatestCompleted(model.BackupKindOffsite)
		if err != nil {
			m.logger.Warn("load last offsite backup", "error", err)
		} else if last != nil && last.CompletedAt != nil {
			t := *last.CompletedAt
			m.status.LastBackup = &t
		}
	}

	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// UpdateS3Config hot-reloads the S3 configuration.
func (m *Manager) UpdateS3Config(s3cfg S3Config) {
	m.mu.Lock()
	m.cfg.S3 = s3cfg
	if s3cfg.complete() {
		m.client = newS3Client(s3cfg)
		m.status.State = StateIdle
	} else {
		m.client = nil
		m.status.State = StateDisabled
	}
	status := m.status
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(status)
	}
}

// Start begins the scheduled offsite push loop. It does nothing when
// offsite storage is disabled or no interval is configured.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled || m.cfg.Interval <= 0 || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	interval := m.cfg.Interval
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.logger.Info("offsite scheduler started", "interval", interval)

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.scheduledPush(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current offsite status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// setStatus replaces the status. The last backup time carries over unless s
// sets a new one.
func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// CacheKey keeps the passphrase in memory for scheduled pushes.
func (m *Manager) CacheKey(passphrase string) {
	m.mu.Lock()
	m.passphrase = passphrase
	m.mu.Unlock()
}

// HasCachedKey reports whether scheduled pushes can run.
func (m *Manager) HasCachedKey() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.passphrase != ""
}

func (m *Manager) scheduledPush(ctx context.Context) {
	m.mu.RLock()
	passphrase := m.passphrase
	m.mu.RUnlock()

	if passphrase == "" {
		m.logger.Warn("skipping scheduled offsite push: no cached passphrase")
		return
	}

	if _, err := m.PushOffsite(ctx, passphrase); err != nil {
		m.logger.Error("scheduled offsite push failed", "error", err)
	}
	if err := m.Cleanup(ctx); err != nil {
		m.logger.Error("offsite cleanup failed", "error", err)
	}
}

// Export builds a snapshot of live data and records it in the history.
func (m *Manager) Export(ctx context.Context, opts snapshot.Options) (_ *Export, err error) {
	ctx, span := m.startSpan(ctx, "backup.export")
	start := m.now()
	defer func() { m.finish(span, metrics.OpExport, start, err) }()

	filename := snapshot.DefaultFilename(start)
	rec := m.record(model.BackupKindExport, filename, "")

	doc, err := m.engine.CreateFullBackup(ctx, opts)
	if err != nil {
		m.fail(rec, metrics.OpExport, err, "")
		return nil, fmt.Errorf("export snapshot: %w", err)
	}
	data, err := snapshot.Serialize(doc)
	if err != nil {
		m.fail(rec, metrics.OpExport, err, "")
		return nil, fmt.Errorf("export snapshot: %w", err)
	}

	m.metrics.ObserveSize(metrics.OpExport, len(data))
	span.SetAttributes(attribute.Int("snapshot.bytes", len(data)), attribute.StringSlice("snapshot.features", doc.Meta.Features))
	rec = m.complete(rec, metrics.OpExport, int64(len(data)), int(doc.Meta.SchemaVersion), false, "")

	m.logger.Info("snapshot exported", "filename", filename, "bytes", len(data), "features", doc.Meta.Features)
	return &Export{Document: doc, Data: data, Filename: filename, Record: rec}, nil
}

// Validate checks a candidate snapshot without touching live data.
func (m *Manager) Validate(ctx context.Context, candidate any) snapshot.Report {
	_, span := m.startSpan(ctx, "backup.validate")
	start := m.now()

	report := m.engine.ValidateBackup(candidate)

	var err error
	if !report.Valid {
		err = fmt.Errorf("%w: %s", snapshot.ErrInvalid, strings.Join(report.Errors, "; "))
	}
	span.SetAttributes(attribute.Bool("snapshot.valid", report.Valid), attribute.Int("snapshot.warnings", len(report.Warnings)))
	m.finish(span, metrics.OpValidate, start, err)
	return report
}

// Import resolves a candidate snapshot and applies it to live data. A
// rejected snapshot yields an outcome whose Result carries the reasons and
// an error wrapping snapshot.ErrInvalid.
func (m *Manager) Import(ctx context.Context, candidate any, src Source, mode content.Mode) (_ *ImportOutcome, err error) {
	ctx, span := m.startSpan(ctx, "backup.import")
	start := m.now()
	defer func() { m.finish(span, metrics.OpImport, start, err) }()

	out := &ImportOutcome{OpID: uuid.NewString()}
	span.SetAttributes(attribute.String("backup.op_id", out.OpID), attribute.String("import.mode", string(mode)))
	logger := m.logger.With("op_id", out.OpID, "filename", src.Filename)

	rec := m.record(model.BackupKindImport, src.Filename, "")
	out.Record = rec

	res := m.engine.ImportBackup(candidate)
	out.Result = res
	if !res.Success {
		err = importError(res)
		out.Record = m.fail(rec, metrics.OpImport, err, out.OpID)
		if res.Rejected {
			logger.Warn("import rejected", "error", res.Error)
		} else {
			logger.Error("import failed", "error", res.Error)
		}
		return out, err
	}

	span.SetAttributes(
		attribute.Bool("snapshot.migrated", res.Migrated),
		attribute.Int("snapshot.from_version", res.FromVersion),
	)
	if res.Migrated && m.metrics != nil {
		m.metrics.MigrationsTotal.WithLabelValues(strconv.Itoa(res.FromVersion)).Inc()
	}

	if m.content != nil {
		applied, err := m.content.Apply(ctx, res, mode)
		if err != nil {
			out.Record = m.fail(rec, metrics.OpImport, err, out.OpID)
			return out, fmt.Errorf("import snapshot: %w", err)
		}
		out.Applied = applied
	}

	out.Record = m.complete(rec, metrics.OpImport, src.Size, res.FromVersion, res.Migrated, out.OpID)
	logger.Info("snapshot imported",
		"mode", mode,
		"from_version", res.FromVersion,
		"to_version", res.ToVersion,
		"migrated", res.Migrated,
		"skipped", res.Skipped,
		"notes", res.Notes,
	)
	return out, nil
}

// importError classifies a failed ImportResult: ErrInvalid for a snapshot
// that failed validation, ErrImportFailed for anything after that.
func importError(res snapshot.ImportResult) error {
	if res.Rejected {
		return fmt.Errorf("%w: %s", snapshot.ErrInvalid, res.Error)
	}
	return fmt.Errorf("%w: %s", snapshot.ErrImportFailed, res.Error)
}

// Migrate upgrades a candidate snapshot to the current schema without
// applying it.
func (m *Manager) Migrate(ctx context.Context, candidate any) (_ *snapshot.Document, err error) {
	_, span := m.startSpan(ctx, "backup.migrate")
	start := m.now()
	defer func() { m.finish(span, metrics.OpMigrate, start, err) }()

	return snapshot.MigrateValue(candidate)
}

// PushOffsite exports every domain, encrypts the snapshot with passphrase
// and uploads it. A successful push caches the passphrase for the scheduler.
func (m *Manager) PushOffsite(ctx context.Context, passphrase string) (_ *model.Backup, err error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	prefix := m.cfg.Prefix
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConfigured
	}
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}

	ctx, span := m.startSpan(ctx, "backup.push")
	start := m.now()
	defer func() { m.finish(span, metrics.OpPush, start, err) }()

	m.setStatus(Status{State: StateRunning, InProgress: true})

	key := prefix + ulid.MustNew(ulid.Timestamp(start), ulid.DefaultEntropy()).String() + encryptedSuffix
	span.SetAttributes(attribute.String("s3.key", key))
	rec := m.record(model.BackupKindOffsite, snapshot.DefaultFilename(start), key)

	fail := func(err error) (*model.Backup, error) {
		m.fail(rec, metrics.OpPush, err, "")
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}

	doc, err := m.engine.CreateFullBackup(ctx, snapshot.AllOptions())
	if err != nil {
		return fail(fmt.Errorf("export snapshot: %w", err))
	}
	data, err := snapshot.Serialize(doc)
	if err != nil {
		return fail(fmt.Errorf("serialize snapshot: %w", err))
	}

	salt, err := GenerateSalt()
	if err != nil {
		return fail(err)
	}
	sealed, err := Encrypt(data, passphrase, salt)
	if err != nil {
		return fail(fmt.Errorf("encrypt: %w", err))
	}

	if rec != nil {
		if err := m.history.UpdateStatus(rec.ID, model.BackupStatusUploading, ""); err != nil {
			m.logger.Warn("update backup record", "id", rec.ID, "error", err)
		}
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fail(fmt.Errorf("upload to s3: %w", err))
	}

	m.metrics.ObserveSize(metrics.OpPush, len(sealed))
	rec = m.complete(rec, metrics.OpPush, int64(len(sealed)), int(doc.Meta.SchemaVersion), false, "")
	m.CacheKey(passphrase)

	now := m.now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("offsite snapshot uploaded", "key", key, "bytes", len(sealed))
	return rec, nil
}

// PullOffsite downloads and decrypts an offsite snapshot. The returned value
// is a parsed candidate for Validate, Migrate or Import.
func (m *Manager) PullOffsite(ctx context.Context, key, passphrase string) (_ any, err error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConfigured
	}
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}

	ctx, span := m.startSpan(ctx, "backup.pull")
	span.SetAttributes(attribute.String("s3.key", key))
	start := m.now()
	defer func() { m.finish(span, metrics.OpPull, start, err) }()

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	data, err := Decrypt(sealed, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot: %w", err)
	}
	return snapshot.Parse(data)
}

// RestoreOffsite pulls an offsite snapshot and imports it. Keys this
// instance recorded as failed uploads are refused; unknown keys are allowed
// so copies pushed by another instance can be restored.
func (m *Manager) RestoreOffsite(ctx context.Context, key, passphrase string, mode content.Mode) (*ImportOutcome, error) {
	if m.history != nil {
		rec, err := m.history.GetByObjectKey(key)
		if err != nil {
			return nil, fmt.Errorf("look up offsite record: %w", err)
		}
		if rec != nil && rec.Status == model.BackupStatusFailed {
			return nil, fmt.Errorf("%w: upload of %s did not complete", ErrIncomplete, key)
		}
	}

	candidate, err := m.PullOffsite(ctx, key, passphrase)
	if err != nil {
		return nil, err
	}
	return m.Import(ctx, candidate, Source{Filename: key}, mode)
}

// History returns the most recent backup records, newest first.
func (m *Manager) History(limit int) ([]model.Backup, error) {
	if m.history == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return m.history.List(limit)
}

// OffsiteBytes returns the total size of completed offsite copies.
func (m *Manager) OffsiteBytes() (int64, error) {
	if m.history == nil {
		return 0, nil
	}
	return m.history.TotalSize(model.BackupKindOffsite)
}

// Cleanup deletes offsite copies older than the retention period.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	retention := m.cfg.RetentionDays
	m.mu.RUnlock()

	if client == nil || m.history == nil {
		return nil
	}

	before := m.now().UTC().AddDate(0, 0, -retention)
	keys, err := m.history.DeleteOlderThan(before)
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete offsite object", "key", key, "error", err)
		}
	}
	if len(keys) > 0 {
		m.logger.Info("offsite retention applied", "deleted", len(keys), "retention_days", retention)
	}
	return nil
}

func (m *Manager) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name)
}

func (m *Manager) finish(span trace.Span, op string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	m.metrics.Observe(op, start, err)
}

// record opens a history entry. Failures are logged and yield nil so that a
// broken history table never blocks a backup.
func (m *Manager) record(kind model.BackupKind, filename, key string) *model.Backup {
	if m.history == nil {
		return nil
	}
	rec, err := m.history.Create(kind, filename, key)
	if err != nil {
		m.logger.Warn("create backup record", "kind", kind, "error", err)
		return nil
	}
	m.publish(websocket.NewEvent(string(kind), "started", rec.ID, nil))
	return rec
}

func (m *Manager) complete(rec *model.Backup, op string, size int64, schemaVersion int, migrated bool, opID string) *model.Backup {
	detail := map[string]any{"size_bytes": size, "schema_version": schemaVersion, "migrated": migrated}
	var id int64
	if rec != nil {
		id = rec.ID
		if err := m.history.UpdateCompleted(rec.ID, size, schemaVersion, migrated); err != nil {
			m.logger.Warn("complete backup record", "id", rec.ID, "error", err)
		} else if updated, err := m.history.GetByID(rec.ID); err == nil && updated != nil {
			rec = updated
		}
	}
	m.publish(websocket.NewEvent(eventOperation(op), "completed", id, detail).WithOp(opID))
	return rec
}

func (m *Manager) fail(rec *model.Backup, op string, cause error, opID string) *model.Backup {
	var id int64
	if rec != nil {
		id = rec.ID
		if err := m.history.UpdateStatus(rec.ID, model.BackupStatusFailed, cause.Error()); err != nil {
			m.logger.Warn("fail backup record", "id", rec.ID, "error", err)
		} else if updated, err := m.history.GetByID(rec.ID); err == nil && updated != nil {
			rec = updated
		}
	}
	m.publish(websocket.NewEvent(eventOperation(op), "failed", id, map[string]any{"error": cause.Error()}).WithOp(opID))
	return rec
}

func (m *Manager) publish(ev websocket.Event) {
	if m.events != nil {
		m.events.Broadcast(ev)
	}
}

// eventOperation maps a metrics operation to the history kind clients see.
func eventOperation(op string) string {
	switch op {
	case metrics.OpPush, metrics.OpPull:
		return string(model.BackupKindOffsite)
	}
	return op
}
