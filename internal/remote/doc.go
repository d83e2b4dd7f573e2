// Package remote — HTTP-клиент удалённого движка workflow.
//
// Client реализует stage.Engine поверх REST API движка:
//
//	POST /api/v1/flows/{id}/runs   — запуск run с inputs
//	GET  /api/v1/runs/{id}         — статус run
//
// Ответы обёрнуты в {"data": ...}, ошибки — в {"error": {"code", "message"}}.
//
// Статусы PENDING, QUEUED и RUNNING считаются промежуточными, все прочие —
// финальными. Финальный статус передаётся контроллеру стадии в нижнем регистре.
//
// Опрос статуса (GET) повторяется при сетевых ошибках и ответах 5xx;
// запуск (POST) не повторяется, чтобы не создать дубликат run.
package remote
