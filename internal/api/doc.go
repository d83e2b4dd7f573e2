// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go        — Handler с DI (журнал запусков, publisher, загрузчик конфигурации)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (logging, recovery)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - dto.go            — Data Transfer Objects (request/response)
//   - run_handler.go    — обработчики для /runs
//   - config_handler.go — проверка конфигурации run
//
// API позволяет запросить run, посмотреть журнал запусков и проверить
// конфигурацию до запуска (со списком всех нарушений).
package api
