// Package telemetry — логирование и метрики Cascade.
//
//   - logging.go — slog с уровнем и форматом из LOG_LEVEL/LOG_FORMAT,
//     логгер run в контексте (run_id, workflow_id, stage)
//   - metrics.go — Prometheus метрики run, стадий, ожидания landing,
//     ошибок dispatch и HTTP API
//
// Долгоживущие бинарники отдают метрики на /metrics.
package telemetry
