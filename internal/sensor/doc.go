// Package sensor — ожидание поступления входных данных (landing).
//
// Sensor периодически (раз в poke interval) спрашивает Lister, есть ли
// объекты под префиксом, и возвращает управление, как только найден хотя бы
// один. Ожидание ограничено жёстким таймаутом: по его истечении возвращается
// Result{Found: false} — это штатный результат, а не ошибка.
//
// Ожидание отменяется через context: при отмене AwaitLanding возвращает
// ErrCancelled, не дожидаясь следующей проверки.
package sensor
