package coordinator

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/coordinatorsvc/coordinator/internal/domain/candidate"
	"github.com/coordinatorsvc/coordinator/internal/domain/control"
	"github.com/coordinatorsvc/coordinator/internal/domain/pipeline"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/foi"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/itm"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/iqube"
	"github.com/coordinatorsvc/coordinator/internal/infra/share"
)

// TestMain guards the fan-out worker pool in Run: every semaphore slot and
// its goroutine must exit before Run returns, or this package's tests leak.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGateway is an in-memory ShareGateway. Its file list is fixed at
// construction; MoveToArchive records which sources the coordinator moved.
type fakeGateway struct {
	mu          sync.Mutex
	files       []candidate.File
	stats       map[string]share.StatResult
	statErr     map[string]error
	moved       []string
	openErr     map[string]error
	sourceRoot  string
	archiveRoot string
}

func (g *fakeGateway) ListFiles(ctx context.Context, root string) ([]candidate.File, error) {
	return g.files, nil
}

func (g *fakeGateway) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err, ok := g.openErr[path]; ok {
		return nil, err
	}
	return io.NopCloser(strings.NewReader("content")), nil
}

func (g *fakeGateway) Stat(ctx context.Context, path string) (share.StatResult, error) {
	if err, ok := g.statErr[path]; ok {
		return share.StatResult{}, err
	}
	if s, ok := g.stats[path]; ok {
		return s, nil
	}
	return share.StatResult{ModTime: time.Unix(0, 0)}, nil
}

func (g *fakeGateway) MoveToArchive(ctx context.Context, src, dst string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.moved = append(g.moved, src)
	return nil
}

func (g *fakeGateway) ComputeArchivePath(src string) string {
	rel := strings.TrimPrefix(src, g.sourceRoot)
	return g.archiveRoot + rel
}

// fakeExtractor returns a canned outcome per path, or a network-style error.
type fakeExtractor struct {
	outcomes map[string]pipeline.Outcome
	errs     map[string]error
}

func (f *fakeExtractor) Extract(ctx context.Context, u foi.Upload) (pipeline.Outcome, error) {
	key := u.Remitter + "/" + u.Filename
	if err, ok := f.errs[key]; ok {
		return pipeline.Outcome{}, err
	}
	return f.outcomes[key], nil
}

type fakeSubmitter struct {
	ok      bool
	message string
	err     error
	calls   int
}

func (s *fakeSubmitter) Submit(ctx context.Context, instructions []itm.Instruction) (bool, string, error) {
	s.calls++
	return s.ok, s.message, s.err
}

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []iqube.Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, note iqube.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, note)
	return nil
}

type syncArchiver struct{}

func (syncArchiver) Go(ctx context.Context, fileName string, fn func(ctx context.Context) error) {
	_ = fn(ctx)
}

// fakeRepo is an in-memory control.Repository + control.TxManager. It
// supports a rollback failpoint by snapshotting and restoring its claims
// map when InTransaction's fn returns a non-nil error, mirroring a real
// database transaction's all-or-nothing semantics.
type fakeRepo struct {
	mu     sync.Mutex
	claims map[string]control.Row
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{claims: make(map[string]control.Row)}
}

func (r *fakeRepo) TryClaim(ctx context.Context, fileName string) (control.Row, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.claims[fileName]; exists {
		return control.Row{}, false, nil
	}
	row := control.NewClaim("rec-"+fileName, fileName, time.Unix(0, 0))
	r.claims[fileName] = row
	return row, true, nil
}

func (r *fakeRepo) Finalize(ctx context.Context, fileName string, status control.Status, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.claims[fileName]
	if !ok {
		return errors.New("finalize: no claimed row")
	}
	r.claims[fileName] = row.Finalized(status, message, time.Unix(0, 0))
	return nil
}

func (r *fakeRepo) Exists(ctx context.Context, fileName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.claims[fileName]
	return ok, nil
}

func (r *fakeRepo) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	snapshot := make(map[string]control.Row, len(r.claims))
	for k, v := range r.claims {
		snapshot[k] = v
	}
	r.mu.Unlock()

	err := fn(ctx)
	if err != nil {
		r.mu.Lock()
		r.claims = snapshot
		r.mu.Unlock()
	}
	return err
}

func newTestCoordinator(gw *fakeGateway, ex *fakeExtractor, sub *fakeSubmitter, notify *fakeNotifier, repo *fakeRepo, fp *Failpoints) *Coordinator {
	return New(
		Config{SourceRoot: gw.sourceRoot, ProcessConcurrency: 4, ITMConsumerType: "invoices"},
		gw, repo, repo, ex, sub, notify, syncArchiver{}, fp, zap.NewNop(),
	)
}

func TestRun_NewestVersionWins_OlderArchived(t *testing.T) {
	gw := &fakeGateway{
		sourceRoot:  "/src",
		archiveRoot: "/archive",
		files: []candidate.File{
			candidate.NewFile("/src", "/src/acme/report_20240101.csv", 10, time.Unix(100, 0)),
			candidate.NewFile("/src", "/src/acme/report_20240102.csv", 10, time.Unix(200, 0)),
		},
	}
	ex := &fakeExtractor{outcomes: map[string]pipeline.Outcome{
		"acme/report_20240102.csv": {Kind: pipeline.ExtractionSuccess, Result: nil},
	}}
	sub := &fakeSubmitter{ok: true}
	notify := &fakeNotifier{}
	repo := newFakeRepo()

	c := newTestCoordinator(gw, ex, sub, notify, repo, nil)
	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(summary.Processed) != 1 || summary.Processed[0] != "/src/acme/report_20240102.csv" {
		t.Fatalf("expected only the newest version processed, got %v", summary.Processed)
	}
	if len(gw.moved) != 2 || gw.moved[0] != "/src/acme/report_20240101.csv" || gw.moved[1] != "/src/acme/report_20240102.csv" {
		t.Fatalf("expected the older version archived directly and the processed newest archived after success, got %v", gw.moved)
	}
}

func TestRun_UnstableFileSkipped(t *testing.T) {
	gw := &fakeGateway{
		sourceRoot: "/src",
		files: []candidate.File{
			candidate.NewFile("/src", "/src/acme/report.csv", 10, time.Unix(100, 0)),
		},
		stats: map[string]share.StatResult{
			"/src/acme/report.csv": {ModTime: time.Now()},
		},
	}
	ex := &fakeExtractor{}
	sub := &fakeSubmitter{}
	notify := &fakeNotifier{}
	repo := newFakeRepo()

	c := newTestCoordinator(gw, ex, sub, notify, repo, nil)
	c.cfg.Stability = share.StabilityPolicy{MinAge: time.Hour}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Processed) != 0 {
		t.Fatalf("expected no files processed while unstable, got %v", summary.Processed)
	}
	if claimed, _ := repo.Exists(context.Background(), "/src/acme/report.csv"); claimed {
		t.Fatalf("expected an unstable file to never be claimed")
	}
}

func TestRun_ExtractionFailure_NotifiesIQubeAndDoesNotArchive(t *testing.T) {
	gw := &fakeGateway{sourceRoot: "/src", files: []candidate.File{
		candidate.NewFile("/src", "/src/acme/report.csv", 10, time.Unix(100, 0)),
	}}
	ex := &fakeExtractor{outcomes: map[string]pipeline.Outcome{
		"acme/report.csv": {Kind: pipeline.ExtractionFileFailed, Detail: "no matched template"},
	}}
	sub := &fakeSubmitter{}
	notify := &fakeNotifier{}
	repo := newFakeRepo()

	c := newTestCoordinator(gw, ex, sub, notify, repo, nil)
	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Processed) != 1 || summary.Processed[0] != "/src/acme/report.csv" {
		t.Fatalf("a classified extraction failure is a terminal outcome and is listed as processed, got processed=%v", summary.Processed)
	}
	if len(gw.moved) != 0 {
		t.Fatalf("a failed extraction must never be archived")
	}
	if len(notify.notifications) != 1 {
		t.Fatalf("expected exactly one iqube notification, got %d", len(notify.notifications))
	}
	if sub.calls != 0 {
		t.Fatalf("ITM must not be called when extraction fails")
	}

	row := repo.claims["/src/acme/report.csv"]
	if row.Status() != control.StatusExtractionFileFailed {
		t.Fatalf("expected status extraction_file_failed, got %s", row.Status())
	}
}

func TestRun_ITMFailure_NoIQubeNoArchive(t *testing.T) {
	gw := &fakeGateway{sourceRoot: "/src", files: []candidate.File{
		candidate.NewFile("/src", "/src/acme/report.csv", 10, time.Unix(100, 0)),
	}}
	ex := &fakeExtractor{outcomes: map[string]pipeline.Outcome{
		"acme/report.csv": {Kind: pipeline.ExtractionSuccess},
	}}
	sub := &fakeSubmitter{ok: false, message: "rejected"}
	notify := &fakeNotifier{}
	repo := newFakeRepo()

	c := newTestCoordinator(gw, ex, sub, notify, repo, nil)
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notify.notifications) != 0 {
		t.Fatalf("ITM failure must not trigger an iqube notification")
	}
	if len(gw.moved) != 0 {
		t.Fatalf("ITM failure must not archive the file")
	}
	row := repo.claims["/src/acme/report.csv"]
	if row.Status() != control.StatusITMFailed {
		t.Fatalf("expected status itm_failed, got %s", row.Status())
	}
}

func TestRun_AlreadyClaimedFileSkippedSilently(t *testing.T) {
	gw := &fakeGateway{sourceRoot: "/src", files: []candidate.File{
		candidate.NewFile("/src", "/src/acme/report.csv", 10, time.Unix(100, 0)),
	}}
	ex := &fakeExtractor{outcomes: map[string]pipeline.Outcome{
		"acme/report.csv": {Kind: pipeline.ExtractionSuccess},
	}}
	sub := &fakeSubmitter{ok: true}
	notify := &fakeNotifier{}
	repo := newFakeRepo()
	repo.claims["/src/acme/report.csv"] = control.NewClaim("rec-1", "/src/acme/report.csv", time.Unix(0, 0)).
		Finalized(control.StatusSuccess, "", time.Unix(0, 0))

	c := newTestCoordinator(gw, ex, sub, notify, repo, nil)
	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Processed) != 0 || len(summary.Errors) != 0 {
		t.Fatalf("a file already claimed by a prior run is neither processed nor an error, got %+v", summary)
	}
	if sub.calls != 0 {
		t.Fatalf("a previously claimed file must never reach ITM again")
	}
}

func TestRun_UnknownExceptionRollsBackClaim_ZeroRows(t *testing.T) {
	fileName := "/src/acme/" + FailpointTag + "_report.csv"
	gw := &fakeGateway{sourceRoot: "/src", files: []candidate.File{
		candidate.NewFile("/src", fileName, 10, time.Unix(100, 0)),
	}}
	ex := &fakeExtractor{outcomes: map[string]pipeline.Outcome{
		"acme/" + FailpointTag + "_report.csv": {Kind: pipeline.ExtractionSuccess},
	}}
	sub := &fakeSubmitter{ok: true}
	notify := &fakeNotifier{}
	repo := newFakeRepo()
	fp := NewFailpoints(true)

	c := newTestCoordinator(gw, ex, sub, notify, repo, fp)
	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected exactly one rolled-back file in the error list, got %+v", summary.Errors)
	}
	if _, exists := repo.claims[fileName]; exists {
		t.Fatalf("expected zero rows after an unknown-exception rollback, found a row")
	}
	if len(gw.moved) != 0 {
		t.Fatalf("a rolled-back file must not be archived")
	}

	// A second run with the failpoint already fired for this name proceeds
	// normally and leaves exactly one successful row.
	summary2, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run (retry): %v", err)
	}
	if len(summary2.Processed) != 1 {
		t.Fatalf("expected the retry to succeed, got %+v", summary2)
	}
	row := repo.claims[fileName]
	if row.Status() != control.StatusSuccess {
		t.Fatalf("expected status success on retry, got %s", row.Status())
	}
}

func TestRun_ProcessesOnlyWhatListFilesReturns(t *testing.T) {
	gw := &fakeGateway{sourceRoot: "/src", files: []candidate.File{
		// The gateway's own ListFiles is responsible for ignore-filtering in
		// production; this test exercises the coordinator's contract that it
		// only ever claims what ListFiles hands it.
		candidate.NewFile("/src", "/src/acme/report.csv", 10, time.Unix(100, 0)),
	}}
	ex := &fakeExtractor{outcomes: map[string]pipeline.Outcome{
		"acme/report.csv": {Kind: pipeline.ExtractionSuccess},
	}}
	sub := &fakeSubmitter{ok: true}
	notify := &fakeNotifier{}
	repo := newFakeRepo()

	c := newTestCoordinator(gw, ex, sub, notify, repo, nil)
	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Processed) != 1 {
		t.Fatalf("expected the single listed file to be processed, got %+v", summary)
	}
}
