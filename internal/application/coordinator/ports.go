package coordinator

import (
	"context"
	"io"

	"github.com/coordinatorsvc/coordinator/internal/domain/candidate"
	"github.com/coordinatorsvc/coordinator/internal/domain/pipeline"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/foi"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/itm"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/iqube"
	"github.com/coordinatorsvc/coordinator/internal/infra/share"
)

// ShareGateway is the subset of share.Gateway the coordinator depends on,
// declared locally so tests can supply a fake share without standing up a
// real SMB session.
type ShareGateway interface {
	ListFiles(ctx context.Context, root string) ([]candidate.File, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Stat(ctx context.Context, path string) (share.StatResult, error)
	MoveToArchive(ctx context.Context, src, dst string) error
	ComputeArchivePath(src string) string
}

// ExtractionClient is the FOI port.
type ExtractionClient interface {
	Extract(ctx context.Context, u foi.Upload) (pipeline.Outcome, error)
}

// SubmissionClient is the ITM port.
type SubmissionClient interface {
	Submit(ctx context.Context, instructions []itm.Instruction) (ok bool, message string, err error)
}

// NotificationClient is the IQube port.
type NotificationClient interface {
	Notify(ctx context.Context, n iqube.Notification) error
}

// ArchiveScheduler is the archive task registry port.
type ArchiveScheduler interface {
	Go(ctx context.Context, fileName string, fn func(ctx context.Context) error)
}
