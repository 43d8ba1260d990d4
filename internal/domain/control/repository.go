package control

import "context"

// Repository is the control-store port. Implementations must use ctx to pick
// up an in-flight transaction (see the application-layer TxManager) so that
// TryClaim and Finalize participate in the same outer transaction the
// coordinator opens for a single file.
type Repository interface {
	// TryClaim inserts a processing row for fileName. claimed is false, with
	// no error, if a row for fileName already exists — the unique
	// constraint on file_name is the authoritative exactly-once guard, not
	// Exists.
	TryClaim(ctx context.Context, fileName string) (row Row, claimed bool, err error)

	// Finalize transitions the single claimed row for fileName to a
	// terminal status. It must be called at most once per TryClaim that
	// returned claimed=true.
	Finalize(ctx context.Context, fileName string, status Status, message string) error

	// Exists is a pre-check optimisation only; callers must still treat a
	// failed TryClaim as the authoritative "already claimed" signal.
	Exists(ctx context.Context, fileName string) (bool, error)
}

// TxManager runs fn inside a single outer transaction. Any error returned by
// fn rolls the transaction back; a nil error commits it. Repository
// implementations read the active transaction, if any, out of the context fn
// is given.
type TxManager interface {
	InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}
