package control

import "time"

// Row is one coordinator_control record: the durable claim on a file_name.
// Exactly one row exists per file_name for the lifetime of the system; the
// coordinator never deletes rows.
type Row struct {
	recordID  string
	fileName  string
	status    Status
	message   string
	attemptNo int
	createdAt time.Time
	updatedAt time.Time
}

// NewClaim builds the row written at claim time: status processing,
// attempt_no 1.
func NewClaim(recordID, fileName string, now time.Time) Row {
	return Row{
		recordID:  recordID,
		fileName:  fileName,
		status:    StatusProcessing,
		attemptNo: 1,
		createdAt: now,
		updatedAt: now,
	}
}

// Reconstruct rebuilds a Row from persisted columns. Used by the repository
// when loading a row back from storage.
func Reconstruct(recordID, fileName string, status Status, message string, attemptNo int, createdAt, updatedAt time.Time) Row {
	return Row{
		recordID:  recordID,
		fileName:  fileName,
		status:    status,
		message:   message,
		attemptNo: attemptNo,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (r Row) RecordID() string     { return r.recordID }
func (r Row) FileName() string     { return r.fileName }
func (r Row) Status() Status       { return r.status }
func (r Row) Message() string      { return r.message }
func (r Row) AttemptNo() int       { return r.attemptNo }
func (r Row) CreatedAt() time.Time { return r.createdAt }
func (r Row) UpdatedAt() time.Time { return r.updatedAt }

// Finalized returns a copy of r transitioned to a terminal status. The
// coordinator calls this exactly once per claimed row.
func (r Row) Finalized(status Status, message string, now time.Time) Row {
	r.status = status
	r.message = message
	r.updatedAt = now
	return r
}
