// Package cli реализует инструмент командной строки Conveyor.
//
// # Обзор
//
// CLI — утилита оператора. validate работает офлайн по файлам
// определений; остальные команды обращаются к БД напрямую через
// те же reconciler и barrier synchronizer, что и orchestrator.
//
// # Ключевые компоненты
//
// ## Backend
//
// Пул соединений и собранные поверх него repo, Reconciler и Synchronizer.
// Создаётся лениво, только командами, которым нужна БД. С --amqp-url
// команды публикуют события для orchestrator, без него выполняют
// операции напрямую.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conveyor barrier list PE_ID --json | jq .
//
// ## Commands
//
//   - validate: офлайн-проверка pipeline и список будущих barrier
//   - pipeline: apply, start
//   - refresh: пересчёт проекции pipeline execution
//   - execution: show, record, abort
//   - barrier: list, arrive, wait, release
//
// Фабричные функции (NewBarrierCmd и т.д.) принимают backendFn и outputFn —
// замыкания, создающие Backend и Output после парсинга PersistentFlags.
package cli
