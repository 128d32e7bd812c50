// Package barrier реализует синхронизацию независимых workflow executions
// одного pipeline execution.
//
// Barrier — именованная точка встречи. Поиск barrier выполняется при
// старте pipeline execution (ObtainInstances, ConstructBarriers):
// identifier, встречающийся в двух и более одновременно выполняющихся
// workflow, образует BarrierInstance.
//
// Во время выполнения участник сообщает о прибытии (Arrive).
// Последний прибывший атомарно переводит barrier в DOWN и уведомляет
// остальных; ожидающие участники также могут опрашивать состояние (Wait).
// Отменённый pipeline execution снимает все стоящие barrier (Abandon).
package barrier
