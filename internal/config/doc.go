// Package config — загрузка и валидация конфигурации run.
//
// Конфигурация — YAML-документ, лежащий по URI:
//
//	landing:
//	  container: landing-container
//	  prefix: landing/path/
//	  poke_interval_seconds: 60
//	  timeout_seconds: 1800
//	stages:
//	  lnd_to_dq:  {workflow_id: lnd_to_dq_template, params: {batch_date: "2024-01-01"}}
//	  dq_to_stg:  {workflow_id: dq_to_stg_template}
//	  stg_to_ref: {workflow_id: stg_to_ref_template, poll_interval_seconds: 30}
//	options:
//	  notify_to: [data-team@example.org]
//	  log_table: etl_logs
//
// Источник документа выбирается по схеме URI (см. Fetcher):
// путь без схемы и file:// читаются с диска, s3:// — из объектного хранилища.
//
// Валидация полная: Decode собирает все нарушения и возвращает их
// одним *ValidationError, а не останавливается на первом.
package config
