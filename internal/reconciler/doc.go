// Package reconciler пересчитывает проекцию pipeline execution.
//
// Проекция строится чистой функцией Project из графа pipeline,
// записей runtime о выполнении state и статуса объемлющего
// workflow execution, после чего сохраняется одной записью.
package reconciler
