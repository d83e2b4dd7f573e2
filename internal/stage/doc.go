// Package stage — запуск дочернего workflow и ожидание его завершения.
//
// Controller делегирует запуск и опрос статуса удалённому движку (Engine)
// и опрашивает его с заданным интервалом, пока run не станет финальным.
//
// Финальные статусы движка сводятся к двум:
//
//	succeeded → StageStatusSucceeded
//	failed    → StageStatusFailed
//	любой другой финальный статус → StageStatusFailed
//
// Ограничения на общее время ожидания здесь нет: его задаёт вызывающий
// через контекст. Последовательность стадий (по одной, в объявленном
// порядке, до первой ошибки) обеспечивает оркестратор.
package stage
