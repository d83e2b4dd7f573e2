// Package app собирает компоненты Cascade из окружения процесса.
//
// Используется бинарниками cascade-orchestrator и cascade-scanner:
// оба запускают один и тот же граф (хранилище, загрузчик конфигурации,
// sensor, контроллер стадий, dispatcher, оркестратор, scanner) и
// отличаются только способом получения запросов на run.
package app
