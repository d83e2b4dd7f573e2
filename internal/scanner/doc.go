// Package scanner — производитель run'ов.
//
// Scanner собирает свежую конфигурацию run (Builder), сохраняет её
// (ConfigStore), запускает по сохранённому URI оркестратор и ждёт его
// завершения. Статус run оркестратора становится статусом scanner'а:
// cmd/cascade-scanner превращает его в код выхода процесса.
package scanner
