// Package cli реализует инструмент командной строки Cascade.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Cascade API.
// Запросы run и просмотр журнала идут по HTTP; проверка локальных
// конфигураций и предпросмотр конфигурации scanner'а выполняются на месте
// через пакеты config и scanner.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Cascade API. Все запросы идут через один хелпер,
// который разбирает конверт ответа (data, total, error); ошибки сервера
// возвращаются как *APIError с кодом и request_id.
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(ctx, cli.ListRunsOpts{Status: "FAILED"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: cascade run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - run: list, start, get, stages
//   - config: validate, render
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd, NewConfigCmd),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
