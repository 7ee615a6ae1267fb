// Package update is the consumer-side orchestrator: a state machine that
// drives check, download and install against a release channel, with a
// full-tree backup before every install and automatic rollback when an
// install fails.
package update

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/avendale/updraft/pkg/backup"
	"github.com/avendale/updraft/pkg/download"
	"github.com/avendale/updraft/pkg/install"
	"github.com/avendale/updraft/pkg/logging"
	"github.com/avendale/updraft/pkg/models"
	"github.com/avendale/updraft/pkg/release"
)

// ErrBusy reports that another update operation is currently running.
// Callers retry once the engine settles.
var ErrBusy = errors.New("another update operation is in progress")

// Options configures an Engine
type Options struct {
	// InstallRoot is the application tree being updated
	InstallRoot string

	// StagingDir holds downloaded assets before install
	StagingDir string

	// BackupDir holds pre-install snapshots
	BackupDir string

	// EntryPoint, relative to InstallRoot, is checked after every install
	EntryPoint string

	// FallbackVersion is used when InstallRoot has no version marker yet
	FallbackVersion string

	// BackupRetention overrides the default backup retention when > 0
	BackupRetention int

	// Logger may be nil
	Logger logging.Logger
}

// Snapshot is a point-in-time view of the engine, safe to hand to
// status displays
type Snapshot struct {
	State          models.UpdateState
	SessionID      string
	CurrentVersion string

	// Available is the manifest of the known newer release, if any
	Available *models.UpdateManifest

	// Progress is download completion in [0, 1]; meaningful while
	// downloading and once downloaded
	Progress float64

	// RequiresRestart is set after an install whose manifest demands a
	// full application restart
	RequiresRestart bool

	// LastError describes the most recent failure, empty otherwise
	LastError string

	// HasBackup reports whether a rollback target exists
	HasBackup bool
}

// Engine serializes update operations over one install tree. All exported
// methods are safe for concurrent use; at most one operation runs at a
// time and re-entrant calls fail fast with ErrBusy.
type Engine struct {
	installRoot     string
	fallbackVersion string
	logger          logging.Logger

	client     *release.Client
	downloader *download.Downloader
	installer  *install.Installer
	backups    *backup.Manager

	mu              sync.Mutex
	state           models.UpdateState
	sessionID       string
	progress        float64
	requiresRestart bool
	lastErr         error
	check           *release.CheckResult
	staged          *download.StagedUpdate
}

// NewEngine wires an engine against the given release channel
func NewEngine(opts Options, channel release.Channel) *Engine {
	logger := logging.OrNull(opts.Logger)

	// the backup must not swallow the engine's own staging area when it
	// lives inside the install tree
	var backupExcludes []string
	if rel, err := filepath.Rel(opts.InstallRoot, opts.StagingDir); err == nil && filepath.IsLocal(rel) {
		backupExcludes = append(backupExcludes, filepath.ToSlash(rel)+"/")
	}

	return &Engine{
		installRoot:     opts.InstallRoot,
		fallbackVersion: opts.FallbackVersion,
		logger:          logger,
		client:          release.NewClient(channel, logger),
		downloader:      download.New(opts.StagingDir, channel, logger),
		installer:       install.New(opts.InstallRoot, opts.EntryPoint, logger),
		backups:         backup.NewManager(opts.BackupDir, opts.BackupRetention, backupExcludes, logger),
		state:           models.StateIdle,
	}
}

// State returns a snapshot of the engine
func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State:           e.state,
		SessionID:       e.sessionID,
		CurrentVersion:  e.currentVersion(),
		Progress:        e.progress,
		RequiresRestart: e.requiresRestart,
		HasBackup:       e.backups.HasBackup(),
	}
	if e.check != nil {
		snap.Available = e.check.Manifest
	}
	if e.lastErr != nil {
		snap.LastError = e.lastErr.Error()
	}
	return snap
}

// Check queries the release channel. It returns the manifest of a newer
// release, or nil when already up to date.
func (e *Engine) Check(ctx context.Context) (*models.UpdateManifest, error) {
	current, err := e.begin(models.StateChecking,
		models.StateIdle, models.StateUpdateAvailable, models.StateInstalled, models.StateFailed)
	if err != nil {
		return nil, err
	}

	result, err := e.client.CheckForUpdates(ctx, current)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.fail(err)
		return nil, err
	}

	e.check = result
	e.lastErr = nil
	if result == nil {
		e.state = models.StateIdle
		return nil, nil
	}
	e.state = models.StateUpdateAvailable
	return result.Manifest, nil
}

// Download stages every asset of the known newer release. Valid only
// after a Check reported an update.
func (e *Engine) Download(ctx context.Context) error {
	if _, err := e.begin(models.StateDownloading, models.StateUpdateAvailable); err != nil {
		return err
	}

	e.mu.Lock()
	check := e.check
	e.progress = 0
	e.mu.Unlock()

	staged, err := e.downloader.Download(ctx, check.Manifest, check.Release, func(read, total int64) {
		e.mu.Lock()
		if total > 0 {
			e.progress = float64(read) / float64(total)
		}
		e.mu.Unlock()
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		// the manifest is still known; a retry does not need a re-check
		e.lastErr = err
		e.state = models.StateUpdateAvailable
		return err
	}

	e.staged = staged
	e.lastErr = nil
	e.state = models.StateDownloaded
	return nil
}

// Install snapshots the install tree, applies the staged update and
// records the new version. When the apply fails the snapshot is restored
// before the error surfaces; when the rollback fails too, both errors
// are reported together.
func (e *Engine) Install(ctx context.Context) error {
	current, err := e.begin(models.StateInstalling, models.StateDownloaded)
	if err != nil {
		return err
	}

	e.mu.Lock()
	check, staged := e.check, e.staged
	e.mu.Unlock()

	if _, err := e.backups.Create(ctx, e.installRoot, current); err != nil {
		// the tree is untouched and the assets are still staged, so the
		// install may simply be retried
		err = fmt.Errorf("pre-install backup failed: %w", err)
		e.mu.Lock()
		e.lastErr = err
		e.state = models.StateDownloaded
		e.mu.Unlock()
		return err
	}

	if err := e.installer.Install(ctx, check.Manifest, staged); err != nil {
		if restoreErr := e.backups.RestoreLatest(ctx, e.installRoot); restoreErr != nil {
			err = fmt.Errorf("install failed and rollback failed: %w", errors.Join(err, restoreErr))
			e.mu.Lock()
			e.fail(err)
			e.mu.Unlock()
			return err
		}

		e.logger.Warn(ctx, "install failed, previous version restored", logging.Fields{"error": err.Error()})
		err = fmt.Errorf("install failed, previous version restored: %w", err)

		// the rollback left a consistent tree: settle to idle and drop
		// the staged assets that failed to apply
		staged.Discard()
		e.mu.Lock()
		e.lastErr = err
		e.check = nil
		e.staged = nil
		e.state = models.StateIdle
		e.mu.Unlock()
		return err
	}

	if err := WriteVersion(e.installRoot, check.Manifest.Version); err != nil {
		e.settle(err)
		return err
	}

	staged.Discard()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.requiresRestart = check.Manifest.RequiresFullRestart
	e.check = nil
	e.staged = nil
	e.lastErr = nil
	e.state = models.StateInstalled

	e.logger.Info(ctx, "updated", logging.Fields{"version": check.Manifest.Version})
	return nil
}

// Rollback restores the latest backup on demand
func (e *Engine) Rollback(ctx context.Context) error {
	if _, err := e.begin(models.StateInstalling,
		models.StateIdle, models.StateUpdateAvailable, models.StateDownloaded,
		models.StateInstalled, models.StateFailed); err != nil {
		return err
	}

	err := e.backups.RestoreLatest(ctx, e.installRoot)
	e.settle(err)
	return err
}

// begin transitions the engine into the given running state after
// validating the current state, and returns the current version. Running
// states reject re-entrant calls with ErrBusy.
func (e *Engine) begin(to models.UpdateState, from ...models.UpdateState) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case models.StateChecking, models.StateDownloading, models.StateInstalling:
		return "", ErrBusy
	}

	ok := false
	for _, s := range from {
		if e.state == s {
			ok = true
			break
		}
	}
	if !ok {
		return "", fmt.Errorf("cannot start while %s", e.state)
	}

	e.state = to
	e.sessionID = uuid.New().String()
	return e.currentVersion(), nil
}

// settle leaves a running state, recording err as the outcome
func (e *Engine) settle(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.fail(err)
		return
	}
	e.lastErr = nil
	e.state = models.StateIdle
}

// fail records err and moves to the failed state. Caller holds e.mu.
func (e *Engine) fail(err error) {
	e.lastErr = err
	e.state = models.StateFailed
}

// currentVersion reads the version marker, falling back to the
// configured value. Caller holds e.mu.
func (e *Engine) currentVersion() string {
	v, err := ReadVersion(e.installRoot)
	if err != nil || v == "" {
		return e.fallbackVersion
	}
	return v
}
