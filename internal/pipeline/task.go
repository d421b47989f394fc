package pipeline

import "github.com/nvalkov/station-core/internal/telemetry"

// WriteTask is a single unit of persistence work. Exactly one of Scalar or
// Accel is set; the batch writer buffers each kind separately so a flush can
// insert them with two statements inside one transaction.
type WriteTask struct {
	Scalar *telemetry.ScalarSample
	Accel  *telemetry.AccelBatch
}

// ScalarTask wraps a scalar sample as a write task.
func ScalarTask(s telemetry.ScalarSample) WriteTask {
	return WriteTask{Scalar: &s}
}

// AccelTask wraps an acceleration batch as a write task.
func AccelTask(b telemetry.AccelBatch) WriteTask {
	return WriteTask{Accel: &b}
}

// Kind reports which telemetry kind the task carries.
func (t WriteTask) Kind() telemetry.Kind {
	if t.Accel != nil {
		return telemetry.KindAccelBatch
	}
	return telemetry.KindScalar
}
