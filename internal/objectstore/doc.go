// Package objectstore — доступ к S3-совместимому объектному хранилищу (MinIO, AWS S3).
//
// Хранилище используется в трёх местах:
//   - Landing sensor: List проверяет, появились ли объекты под префиксом
//   - Загрузчик конфигурации: Get читает документ по s3://bucket/key
//   - Scanner: Put сохраняет собранную конфигурацию
//
// URI объектов имеют вид s3://bucket/key (допускается s3:///bucket/key).
package objectstore
