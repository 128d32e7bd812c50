// Package engine работает с определениями pipeline и workflow.
//
// Включает:
//   - parser.go  — разбор определений из JSON/YAML и валидация pipeline
//   - compile.go — компиляция pipeline в StateMachine и группировка
//     параллельных стадий
//
// Engine только читает структуру; выполнением графа занимается
// внешний execution engine.
package engine
