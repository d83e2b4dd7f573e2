// Package orchestrator выполняет один run батч-пайплайна.
//
// Run проходит конечный автомат (см. State):
//
//  1. загрузка и проверка конфигурации (config.Loader)
//  2. ожидание входных данных (sensor.Sensor), с жёстким таймаутом
//  3. стадии lnd_to_dq → dq_to_stg → stg_to_ref по одной, до первой ошибки
//     (stage.Controller)
//  4. dispatch: событие, аудит, уведомление (dispatch.Dispatcher)
//
// Любая ошибка на шагах 1-3 завершает run со статусом FAILED и причиной
// (domain.FailureCause). Dispatch вызывается ровно один раз на любом пути,
// в том числе при отмене контекста.
//
// Параметры стадий могут содержать шаблоны text/template ({{ .BatchDate }},
// {{ .RunID }}, {{ .StageKey }}); они рендерятся до начала ожидания.
package orchestrator
