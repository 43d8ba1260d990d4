// Package coordinator orchestrates one run: scan, filter, group, select,
// stability-gate, claim, process through FOI/ITM/IQube, and schedule
// archival. It is the component the HTTP trigger endpoint calls.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/coordinatorsvc/coordinator/internal/domain/candidate"
	"github.com/coordinatorsvc/coordinator/internal/domain/control"
	"github.com/coordinatorsvc/coordinator/internal/domain/pipeline"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/foi"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/itm"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/iqube"
	"github.com/coordinatorsvc/coordinator/internal/infra/share"
)

// Config bounds one coordinator's run-time behavior.
type Config struct {
	SourceRoot         string
	ProcessConcurrency int
	Stability          share.StabilityPolicy
	ITMConsumerType    string
}

// Coordinator holds everything one Run needs. It carries no mutable state
// between runs beyond what the control store and share persist.
type Coordinator struct {
	cfg Config

	gateway ShareGateway
	repo    control.Repository
	tx      control.TxManager

	foiClient   ExtractionClient
	itmClient   SubmissionClient
	iqubeClient NotificationClient

	archive ArchiveScheduler

	failpoints *Failpoints
	logger     *zap.Logger
}

// New builds a Coordinator. failpoints may be nil, in which case the
// failpoint gate is permanently disabled.
func New(
	cfg Config,
	gateway ShareGateway,
	repo control.Repository,
	tx control.TxManager,
	foiClient ExtractionClient,
	itmClient SubmissionClient,
	iqubeClient NotificationClient,
	archive ArchiveScheduler,
	failpoints *Failpoints,
	logger *zap.Logger,
) *Coordinator {
	if failpoints == nil {
		failpoints = NewFailpoints(false)
	}
	if cfg.ProcessConcurrency < 1 {
		cfg.ProcessConcurrency = 1
	}
	return &Coordinator{
		cfg:         cfg,
		gateway:     gateway,
		repo:        repo,
		tx:          tx,
		foiClient:   foiClient,
		itmClient:   itmClient,
		iqubeClient: iqubeClient,
		archive:     archive,
		failpoints:  failpoints,
		logger:      logger,
	}
}

// Run performs a single scan-through-archive pass.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	files, err := c.gateway.ListFiles(ctx, c.cfg.SourceRoot)
	if err != nil {
		return Summary{}, fmt.Errorf("list files: %w", err)
	}

	groups := candidate.GroupByVersion(files)

	summary := Summary{}
	var mu sync.Mutex

	for _, group := range groups {
		for _, f := range group.ArchiveOnly() {
			c.archiveOldVersion(ctx, f)
		}
	}

	var process []candidate.File
	for _, group := range groups {
		process = append(process, group.Newest())
	}

	sem := make(chan struct{}, c.cfg.ProcessConcurrency)
	var wg sync.WaitGroup

	for _, f := range process {
		stable, err := share.IsStable(ctx, c.cfg.Stability, c.gateway.Stat, f.AbsPath)
		if err != nil {
			mu.Lock()
			summary.Errors = append(summary.Errors, RunError{FileName: f.AbsPath, Error: err.Error()})
			mu.Unlock()
			continue
		}
		if !stable {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(file candidate.File) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					summary.Errors = append(summary.Errors, RunError{FileName: file.AbsPath, Error: fmt.Sprintf("panic: %v", r)})
					mu.Unlock()
				}
			}()

			processed, runErr := c.processFile(ctx, file)

			mu.Lock()
			defer mu.Unlock()
			if runErr != nil {
				summary.Errors = append(summary.Errors, *runErr)
			} else if processed {
				summary.Processed = append(summary.Processed, file.AbsPath)
			}
		}(f)
	}

	wg.Wait()
	return summary, nil
}

// archiveOldVersion moves a stable, non-newest version group member to
// archive. An unstable file is skipped silently and a failing probe or move
// is logged; either way the file is left for the next run. Archive-only
// candidates never touch the control store.
func (c *Coordinator) archiveOldVersion(ctx context.Context, f candidate.File) {
	stable, err := share.IsStable(ctx, c.cfg.Stability, c.gateway.Stat, f.AbsPath)
	if err != nil {
		c.logger.Warn("stability probe failed for archive-only candidate", zap.String("file_name", f.AbsPath), zap.Error(err))
		return
	}
	if !stable {
		return
	}

	dst := c.gateway.ComputeArchivePath(f.AbsPath)
	if err := c.gateway.MoveToArchive(ctx, f.AbsPath, dst); err != nil {
		c.logger.Warn("archive-only move failed", zap.String("file_name", f.AbsPath), zap.Error(err))
	}
}

// fileOutcome carries the terminal state decided inside the claim
// transaction forward to the post-commit actions (archive scheduling,
// IQube notification) that must only run once the row is durable.
type fileOutcome struct {
	status          control.Status
	scheduleArchive bool
	notifyIQube     bool
	iqubeReason     string
}

// processFile claims, processes, and finalizes a single file. The boolean
// return reports whether the file reached a terminal state this run
// (false for "already claimed by a prior run", which is not an error).
func (c *Coordinator) processFile(ctx context.Context, file candidate.File) (bool, *RunError) {
	var outcome fileOutcome
	claimed := false

	err := c.tx.InTransaction(ctx, func(txCtx context.Context) error {
		_, wasClaimed, err := c.repo.TryClaim(txCtx, file.AbsPath)
		if err != nil {
			return err
		}
		claimed = wasClaimed
		if !wasClaimed {
			return nil
		}

		if fpErr := c.failpoints.Fire(file.AbsPath); fpErr != nil {
			return fpErr
		}

		return c.runPipeline(txCtx, file, &outcome)
	})

	if err != nil {
		return false, &RunError{FileName: file.AbsPath, Error: err.Error()}
	}
	if !claimed {
		return false, nil
	}

	if outcome.scheduleArchive {
		dst := c.gateway.ComputeArchivePath(file.AbsPath)
		c.archive.Go(context.Background(), file.AbsPath, func(bgCtx context.Context) error {
			return c.gateway.MoveToArchive(bgCtx, file.AbsPath, dst)
		})
	}
	if outcome.notifyIQube {
		if err := c.iqubeClient.Notify(ctx, iqube.Notification{FilePath: file.AbsPath, Reason: outcome.iqubeReason}); err != nil {
			c.logger.Warn("iqube notification failed", zap.String("file_name", file.AbsPath), zap.Error(err))
		}
	}
	return true, nil
}

// runPipeline opens the file, calls FOI, and on success calls ITM,
// finalizing the control row before returning. Any error here rolls back
// the enclosing transaction, which spans claim through finalize.
func (c *Coordinator) runPipeline(ctx context.Context, file candidate.File, outcome *fileOutcome) error {
	content, err := c.gateway.Open(ctx, file.AbsPath)
	if err != nil {
		return fmt.Errorf("open %s for extraction: %w", file.AbsPath, err)
	}
	defer content.Close()

	extracted, err := c.foiClient.Extract(ctx, foi.Upload{
		Remitter: file.Remitter,
		Filename: file.Basename,
		Content:  content,
	})
	if err != nil {
		return fmt.Errorf("foi extract %s: %w", file.AbsPath, err)
	}

	if extracted.IsSuccess() {
		instructions, err := buildInstructions(file, extracted, c.cfg.ITMConsumerType)
		if err != nil {
			return fmt.Errorf("build itm instruction for %s: %w", file.AbsPath, err)
		}
		ok, message, err := c.itmClient.Submit(ctx, instructions)
		if err != nil {
			return fmt.Errorf("itm submit %s: %w", file.AbsPath, err)
		}
		if ok {
			if err := c.repo.Finalize(ctx, file.AbsPath, control.StatusSuccess, ""); err != nil {
				return err
			}
			outcome.status = control.StatusSuccess
			outcome.scheduleArchive = true
			return nil
		}
		if err := c.repo.Finalize(ctx, file.AbsPath, control.StatusITMFailed, message); err != nil {
			return err
		}
		outcome.status = control.StatusITMFailed
		return nil
	}

	status := control.Status(extracted.Kind)
	message := extracted.ControlMessage()
	if err := c.repo.Finalize(ctx, file.AbsPath, status, message); err != nil {
		return err
	}
	outcome.status = status
	if extracted.NotifiesIQube() {
		outcome.notifyIQube = true
		outcome.iqubeReason = message
	}
	return nil
}

// buildInstructions maps one extracted file onto the single ITM
// instruction it produces. sourceUniqueRef is the claimed file's absolute
// path (it doubles as the control row's key, so it is unique by
// construction); clientAccountRegion is the remitter; productIdentifier is
// the version-stripped basename, which identifies the same document type
// across versions of the same drop. The FOI result array is forwarded
// verbatim as the payload.
func buildInstructions(file candidate.File, outcome pipeline.Outcome, consumerType string) ([]itm.Instruction, error) {
	payload, err := json.Marshal(outcome.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal foi result as itm payload: %w", err)
	}
	return []itm.Instruction{{
		SourceUniqueRef:     file.AbsPath,
		ClientAccountRegion: file.Remitter,
		MessageCategory:     consumerType,
		ProductIdentifier:   candidate.StripTSBasename(file.Basename),
		Payload:             payload,
	}}, nil
}
