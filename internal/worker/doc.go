// Package worker выполняет runs из журнала запусков.
//
// # Обзор
//
// Worker — сервисная обвязка вокруг orchestrator и scanner. Он отвечает за:
//
//   - Получение запросов run.requested из RabbitMQ (event-driven)
//   - Периодическую проверку PENDING runs в БД (polling fallback)
//   - Атомарный захват run (PENDING → RUNNING) через RunStore.Claim
//   - Выполнение run и запись итога (статус, причина, стадии) в журнал
//
// Несколько экземпляров могут потреблять из одной очереди: Claim гарантирует,
// что каждый run выполнится один раз.
//
// # Выполнение run
//
//  1. Загрузка run из журнала, проверка статуса PENDING
//  2. Claim: PENDING → RUNNING
//  3. Есть config_uri — orchestrator.Run по этой конфигурации;
//     нет — scanner.ProduceRun: сборка, сохранение и запуск
//  4. Итог записывается в журнал, даже если воркер останавливается
//
// Пример:
//
//	w := worker.New(worker.Config{
//	    Store:        runRepo,
//	    Orchestrator: orch,
//	    Producer:     scan,
//	    Conn:         mqConn,
//	    Logger:       logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Ошибки обработки сообщений
//
// Run не найден или payload не разбирается — сообщение уходит в DLQ.
// Run уже взят или завершён — сообщение подтверждается. Прочие ошибки
// (например, БД недоступна) возвращают сообщение в очередь.
package worker
