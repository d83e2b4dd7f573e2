package worker

import "errors"

var (
	// ErrRunNotFound — запрошенного run нет в журнале; сообщение уходит в DLQ.
	ErrRunNotFound = errors.New("run not found in ledger")

	// ErrRunNotPending — run уже забран или завершён, повторно не выполняется.
	ErrRunNotPending = errors.New("run already claimed or finished")

	// ErrRunAlreadyActive — этот процесс уже выполняет run.
	ErrRunAlreadyActive = errors.New("run active in this process")

	// ErrWorkerStopped — воркер остановлен и не принимает новые runs.
	ErrWorkerStopped = errors.New("worker is stopped")
)
