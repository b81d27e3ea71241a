// Package job drives a single document through upload, translation and,
// for large jobs, background-task tracking. One job at a time: a second
// Start while a job is active is rejected, never queued.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/osolomko/doctran/internal/api"
)

// Phase is the job lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUploading
	PhaseTranslating
	PhaseDone
	PhaseFailed
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUploading:
		return "uploading"
	case PhaseTranslating:
		return "translating"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether the phase ends the job.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed || p == PhaseCancelled
}

// Mode distinguishes a translation answered within one request from one
// dispatched as a polled server-side task.
type Mode int

const (
	ModeNone Mode = iota
	ModeDirect
	ModeBackground
)

// ProgressKind tags whether the progress value is a client-side estimate
// or came verbatim from a task-status poll.
type ProgressKind int

const (
	ProgressEstimated ProgressKind = iota
	ProgressReported
)

// API is the slice of the service client the orchestrator needs.
type API interface {
	Upload(ctx context.Context, filename string, content io.Reader) (string, error)
	Translate(ctx context.Context, docID, sourceLang, targetLang string) (*api.TranslateResponse, error)
	TaskStatus(ctx context.Context, taskID string) (*api.TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	Documents(ctx context.Context) ([]api.Document, error)
}

// Session supplies the admission guards and the post-completion refresh.
type Session interface {
	IsAuthenticated() bool
	CanTranslate() bool
	RefreshUser(ctx context.Context) error
}

// DocumentCache receives the refreshed document list after a job
// completes. May be nil.
type DocumentCache interface {
	ReplaceDocuments(ctx context.Context, docs []api.Document) error
}

// Config carries the timing constants. The defaults reproduce the
// production cadence; tests shrink them.
type Config struct {
	UploadStep    int           // fabricated upload progress increment
	UploadTick    time.Duration // cadence of the upload ramp
	TranslateStep int           // fabricated direct-translate increment
	TranslateTick time.Duration // cadence of the translate ramp
	ProgressCap   int           // estimates never exceed this before the response
	PollInterval  time.Duration // background task poll cadence
	ResetDelay    time.Duration // pause before a finished job resets to idle
}

func (c *Config) setDefaults() {
	if c.UploadStep <= 0 {
		c.UploadStep = 10
	}
	if c.UploadTick <= 0 {
		c.UploadTick = 200 * time.Millisecond
	}
	if c.TranslateStep <= 0 {
		c.TranslateStep = 15
	}
	if c.TranslateTick <= 0 {
		c.TranslateTick = 300 * time.Millisecond
	}
	if c.ProgressCap <= 0 {
		c.ProgressCap = 90
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.ResetDelay <= 0 {
		c.ResetDelay = time.Second
	}
}

// Snapshot is a consistent copy of the job state for presentation.
type Snapshot struct {
	Phase        Phase
	Mode         Mode
	TaskID       string
	Progress     int
	ProgressKind ProgressKind
	Message      string
	Filename     string
}

var (
	ErrNoFile           = errors.New("no file selected")
	ErrUnsupportedFile  = errors.New("only .docx files are supported")
	ErrNotAuthenticated = errors.New("sign in before translating")
	ErrQuotaExceeded    = errors.New("translation limit reached, upgrade required")
	ErrBusy             = errors.New("a translation job is already in progress")
	ErrNotCancellable   = errors.New("job cannot be cancelled")
)

type Orchestrator struct {
	api      API
	session  Session
	docs     DocumentCache
	log      *zap.Logger
	config   Config
	onUpdate func(Snapshot)

	mu           sync.Mutex
	phase        Phase
	mode         Mode
	taskID       string
	progress     int
	progressKind ProgressKind
	message      string
	selectedFile string
	filename     string
	sourceLang   string
	targetLang   string
	ramp         *interval
	poller       *interval
	done         chan struct{}
}

func New(apiClient API, sess Session, docs DocumentCache, log *zap.Logger, config Config) *Orchestrator {
	config.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		api:     apiClient,
		session: sess,
		docs:    docs,
		log:     log,
		config:  config,
	}
}

// SetOnUpdate registers a callback invoked after every state change.
func (o *Orchestrator) SetOnUpdate(fn func(Snapshot)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onUpdate = fn
}

// Select stages a local file for the next job. The file must carry the
// accepted extension; it is not opened until Start.
func (o *Orchestrator) Select(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".docx") {
		return ErrUnsupportedFile
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == PhaseUploading || o.phase == PhaseTranslating {
		return ErrBusy
	}
	o.selectedFile = path
	return nil
}

// Start runs the admission guards and, if they pass, launches the job.
// No network call is issued when a guard rejects. The job itself runs
// asynchronously; watch Done and Snapshot for progress.
func (o *Orchestrator) Start(ctx context.Context, sourceLang, targetLang string) error {
	o.mu.Lock()
	if o.phase == PhaseUploading || o.phase == PhaseTranslating {
		o.mu.Unlock()
		return ErrBusy
	}
	if o.selectedFile == "" {
		o.mu.Unlock()
		return ErrNoFile
	}
	if !o.session.IsAuthenticated() {
		o.mu.Unlock()
		return ErrNotAuthenticated
	}
	if !o.session.CanTranslate() {
		o.mu.Unlock()
		return ErrQuotaExceeded
	}

	path := o.selectedFile
	o.filename = filepath.Base(path)
	o.sourceLang = sourceLang
	o.targetLang = targetLang
	o.phase = PhaseUploading
	o.mode = ModeNone
	o.taskID = ""
	o.progress = 0
	o.progressKind = ProgressEstimated
	o.message = "Uploading " + filepath.Base(path)
	o.done = make(chan struct{})
	o.mu.Unlock()
	o.notify()

	go o.run(ctx, path)
	return nil
}

// Done returns the channel closed when the current job reaches a
// terminal phase. Nil when no job has started.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:        o.phase,
		Mode:         o.mode,
		TaskID:       o.taskID,
		Progress:     o.progress,
		ProgressKind: o.progressKind,
		Message:      o.message,
		Filename:     o.filename,
	}
}

func (o *Orchestrator) notify() {
	o.mu.Lock()
	fn := o.onUpdate
	snap := o.snapshotLocked()
	o.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (o *Orchestrator) run(ctx context.Context, path string) {
	// Fabricated upload progress: the transport gives no incremental
	// signal, so ramp on a timer and hold below the cap until the server
	// acknowledges the file.
	o.startRamp(o.config.UploadStep, o.config.UploadTick)

	docID, err := o.upload(ctx, path)
	o.stopRamp()
	if err != nil {
		o.fail(fmt.Sprintf("Upload failed: %v", err))
		return
	}

	o.mu.Lock()
	o.phase = PhaseTranslating
	o.progress = 0
	o.progressKind = ProgressEstimated
	o.message = "Translating document"
	o.selectedFile = "" // consumed by the successful upload
	o.mu.Unlock()
	o.notify()

	o.mu.Lock()
	sourceLang, targetLang := o.sourceLang, o.targetLang
	o.mu.Unlock()

	o.startRamp(o.config.TranslateStep, o.config.TranslateTick)
	resp, err := o.api.Translate(ctx, docID, sourceLang, targetLang)
	o.stopRamp()
	if err != nil {
		o.fail(fmt.Sprintf("Translation failed: %v", err))
		return
	}

	if !resp.Background() {
		o.complete(ctx)
		return
	}

	// Large job: the server handed back a task to poll.
	o.mu.Lock()
	o.mode = ModeBackground
	o.taskID = resp.TaskID
	o.progress = 0
	o.progressKind = ProgressReported
	if resp.Message != "" {
		o.message = resp.Message
	}
	o.poller = startInterval(o.config.PollInterval, true, func() { o.pollTick(ctx) })
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	docID, err := o.api.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	o.progress = 100
	o.mu.Unlock()
	o.notify()
	return docID, nil
}

func (o *Orchestrator) startRamp(step int, tick time.Duration) {
	o.mu.Lock()
	o.ramp = startInterval(tick, false, func() {
		o.mu.Lock()
		if o.progressKind == ProgressEstimated && o.progress < o.config.ProgressCap {
			o.progress += step
			if o.progress > o.config.ProgressCap {
				o.progress = o.config.ProgressCap
			}
		}
		o.mu.Unlock()
		o.notify()
	})
	o.mu.Unlock()
}

func (o *Orchestrator) stopRamp() {
	o.mu.Lock()
	if o.ramp != nil {
		o.ramp.Stop()
		o.ramp = nil
	}
	o.mu.Unlock()
}

// pollTick handles one background-task status poll. Transient fetch
// errors leave the timer running; only an explicit failed status from a
// successful poll is terminal.
func (o *Orchestrator) pollTick(ctx context.Context) {
	o.mu.Lock()
	taskID := o.taskID
	phase := o.phase
	o.mu.Unlock()
	if phase != PhaseTranslating || taskID == "" {
		return
	}

	status, err := o.api.TaskStatus(ctx, taskID)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			// Forced sign-out has already fired; drop the job.
			o.stopPolling()
			o.fail("Session expired")
			return
		}
		o.log.Warn("task poll failed", zap.String("task_id", taskID), zap.Error(err))
		return
	}

	o.mu.Lock()
	if o.phase != PhaseTranslating {
		// The job was cancelled or aborted while this poll was in flight.
		o.mu.Unlock()
		return
	}
	o.progress = status.Progress
	o.progressKind = ProgressReported
	o.message = status.Message
	o.mu.Unlock()
	o.notify()

	if !status.Completed {
		return
	}
	o.stopPolling()
	if status.Status == api.DocStatusCompleted {
		o.complete(ctx)
		return
	}
	detail := status.Error
	if detail == "" {
		detail = status.Message
	}
	o.fail(fmt.Sprintf("Translation failed: %s", detail))
}

func (o *Orchestrator) stopPolling() {
	o.mu.Lock()
	if o.poller != nil {
		o.poller.Stop()
		o.poller = nil
	}
	o.mu.Unlock()
}

// Cancel aborts a background job. A direct translation is one in-flight
// request with no server-side cancel hook, so it cannot be cancelled.
// Cancellation is client-authoritative: the phase resets before the
// server-side cancel call, whose failure is logged, never surfaced.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	if o.phase != PhaseTranslating || o.mode != ModeBackground {
		o.mu.Unlock()
		return ErrNotCancellable
	}
	taskID := o.taskID
	if o.poller != nil {
		o.poller.Stop()
		o.poller = nil
	}
	o.phase = PhaseCancelled
	o.taskID = ""
	o.message = "Translation cancelled"
	done := o.done
	o.mu.Unlock()
	o.notify()
	if done != nil {
		close(done)
	}

	// Client-authoritative: back to idle right away, whatever the cancel
	// call returns.
	o.Dismiss()

	// Issued synchronously so the request leaves the process before the
	// caller moves on; a CLI invocation exits right after this returns.
	if err := o.api.CancelTask(ctx, taskID); err != nil {
		o.log.Warn("task cancel failed", zap.String("task_id", taskID), zap.Error(err))
	}
	return nil
}

// Abort drops any active job without touching the server. Wired to the
// session's sign-out hook so polling halts the moment credentials go away.
func (o *Orchestrator) Abort() {
	o.mu.Lock()
	if o.phase == PhaseIdle || o.phase.Terminal() {
		o.mu.Unlock()
		return
	}
	if o.ramp != nil {
		o.ramp.Stop()
		o.ramp = nil
	}
	if o.poller != nil {
		o.poller.Stop()
		o.poller = nil
	}
	o.phase = PhaseFailed
	o.message = "Session expired"
	o.taskID = ""
	done := o.done
	o.mu.Unlock()
	o.notify()
	if done != nil {
		close(done)
	}
}

// Dismiss resets a finished job back to idle.
func (o *Orchestrator) Dismiss() {
	o.mu.Lock()
	if !o.phase.Terminal() {
		o.mu.Unlock()
		return
	}
	o.phase = PhaseIdle
	o.mode = ModeNone
	o.taskID = ""
	o.progress = 0
	o.progressKind = ProgressEstimated
	o.message = ""
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) complete(ctx context.Context) {
	o.mu.Lock()
	if o.phase.Terminal() {
		o.mu.Unlock()
		return
	}
	o.phase = PhaseDone
	o.progress = 100
	o.message = "Translation completed"
	done := o.done
	o.mu.Unlock()
	o.notify()

	// Usage was incremented server-side; re-read the authoritative user
	// and document list.
	if err := o.session.RefreshUser(ctx); err != nil {
		o.log.Warn("user refresh after completion failed", zap.Error(err))
	}
	o.refreshDocuments(ctx)

	if done != nil {
		close(done)
	}
	o.scheduleReset()
}

func (o *Orchestrator) fail(message string) {
	o.mu.Lock()
	if o.phase.Terminal() {
		o.mu.Unlock()
		return
	}
	o.phase = PhaseFailed
	o.progress = 0
	o.message = message
	done := o.done
	o.mu.Unlock()
	o.notify()
	if done != nil {
		close(done)
	}
}

func (o *Orchestrator) refreshDocuments(ctx context.Context) {
	if o.docs == nil {
		return
	}
	docs, err := o.api.Documents(ctx)
	if err != nil {
		o.log.Warn("document list refresh failed", zap.Error(err))
		return
	}
	if err := o.docs.ReplaceDocuments(ctx, docs); err != nil {
		o.log.Warn("document cache update failed", zap.Error(err))
	}
}

func (o *Orchestrator) scheduleReset() {
	time.AfterFunc(o.config.ResetDelay, o.Dismiss)
}
