// Package dispatch — финальные callback'и run.
//
// Dispatcher вызывается оркестратором ровно один раз на run, на любом пути
// завершения. Порядок действий:
//
//  1. BuildEvent — чистая функция, собирает domain.RunEvent
//  2. событие пишется в лог и отдаётся EventSink'ам (например, в RabbitMQ)
//  3. строка аудита через AuditSink, если задан options.log_table
//  4. уведомление через Notifier, если задан options.notify_to
//
// Шаги 2-4 (кроме записи в лог) выполняются по принципу best-effort: ошибка
// превращается в *SideEffectError, логируется и учитывается в метрике
// cascade_dispatch_side_effect_failures_total, но не возвращается и не меняет
// статус run.
package dispatch
