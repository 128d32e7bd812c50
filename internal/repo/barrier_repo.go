package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// BarrierRepo — репозиторий barrier instances.
//
// Состояние barrier меняется только одиночными UPDATE с условием на
// текущее состояние, поэтому конкурентные прибытия из разных процессов
// не требуют блокировок на стороне приложения.
type BarrierRepo struct {
	pool *pgxpool.Pool
}

// NewBarrierRepo создаёт новый BarrierRepo.
func NewBarrierRepo(pool *pgxpool.Pool) *BarrierRepo {
	return &BarrierRepo{pool: pool}
}

const barrierColumns = `id, name, app_id, pipeline_execution_id, participants, arrived,
	state, release_reason, created_at, released_at`

// Upsert создаёт instance, если для (name, pipeline_execution_id) его ещё нет.
func (r *BarrierRepo) Upsert(ctx context.Context, inst *domain.BarrierInstance) (*domain.BarrierInstance, bool, error) {
	participantsJSON, err := json.Marshal(inst.Participants)
	if err != nil {
		return nil, false, fmt.Errorf("marshal participants: %w", err)
	}
	arrived := inst.Arrived
	if arrived == nil {
		arrived = []domain.BarrierParticipant{}
	}
	arrivedJSON, err := json.Marshal(arrived)
	if err != nil {
		return nil, false, fmt.Errorf("marshal arrived: %w", err)
	}

	query := `
		INSERT INTO barrier_instances
			(id, name, app_id, pipeline_execution_id, participants, arrived, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name, pipeline_execution_id) DO NOTHING
		RETURNING ` + barrierColumns

	created, err := scanBarrier(r.pool.QueryRow(ctx, query,
		inst.ID,
		inst.Name,
		inst.AppID,
		inst.PipelineExecutionID,
		participantsJSON,
		arrivedJSON,
		domain.BarrierStateStanding,
		inst.CreatedAt,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("insert barrier: %w", err)
	}

	existing, err := r.Get(ctx, inst.PipelineExecutionID, inst.Name)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get возвращает instance по (pipelineExecutionID, name).
func (r *BarrierRepo) Get(ctx context.Context, pipelineExecutionID, name string) (*domain.BarrierInstance, error) {
	query := `
		SELECT ` + barrierColumns + `
		FROM barrier_instances
		WHERE pipeline_execution_id = $1 AND name = $2
	`
	return scanBarrier(r.pool.QueryRow(ctx, query, pipelineExecutionID, name))
}

// List возвращает instances pipeline execution, упорядоченные по имени.
func (r *BarrierRepo) List(ctx context.Context, pipelineExecutionID string) ([]domain.BarrierInstance, error) {
	query := `
		SELECT ` + barrierColumns + `
		FROM barrier_instances
		WHERE pipeline_execution_id = $1
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query, pipelineExecutionID)
	if err != nil {
		return nil, fmt.Errorf("list barriers: %w", err)
	}
	defer rows.Close()

	var out []domain.BarrierInstance
	for rows.Next() {
		inst, err := scanBarrier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}

// Arrive атомарно добавляет участника в arrived.
//
// UPDATE применяется только к STANDING instance, если участник
// зарегистрирован и ещё не прибыл. Переход в DOWN вычисляется в том же
// UPDATE, поэтому его видит ровно один вызов.
func (r *BarrierRepo) Arrive(ctx context.Context, pipelineExecutionID, name string, p domain.BarrierParticipant) (bool, bool, error) {
	participantJSON, err := json.Marshal([]domain.BarrierParticipant{p})
	if err != nil {
		return false, false, fmt.Errorf("marshal participant: %w", err)
	}

	query := `
		UPDATE barrier_instances
		SET arrived = arrived || $3::jsonb,
		    state = CASE WHEN jsonb_array_length(arrived) + 1 >= jsonb_array_length(participants)
		                 THEN 'DOWN' ELSE 'STANDING' END,
		    release_reason = CASE WHEN jsonb_array_length(arrived) + 1 >= jsonb_array_length(participants)
		                 THEN 'ALL_ARRIVED' ELSE release_reason END,
		    released_at = CASE WHEN jsonb_array_length(arrived) + 1 >= jsonb_array_length(participants)
		                 THEN now() ELSE released_at END
		WHERE pipeline_execution_id = $1
		  AND name = $2
		  AND state = 'STANDING'
		  AND participants @> $3::jsonb
		  AND NOT arrived @> $3::jsonb
		RETURNING state
	`

	var state domain.BarrierState
	err = r.pool.QueryRow(ctx, query, pipelineExecutionID, name, participantJSON).Scan(&state)
	if err == nil {
		return true, state == domain.BarrierStateDown, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, false, fmt.Errorf("arrive at barrier: %w", err)
	}

	// Обновление не применилось: различаем отсутствие instance и прочие случаи
	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM barrier_instances WHERE pipeline_execution_id = $1 AND name = $2)`,
		pipelineExecutionID, name,
	).Scan(&exists)
	if err != nil {
		return false, false, fmt.Errorf("check barrier: %w", err)
	}
	if !exists {
		return false, false, ErrNotFound
	}
	return false, false, nil
}

// Release переводит STANDING instance в DOWN.
func (r *BarrierRepo) Release(ctx context.Context, pipelineExecutionID, name string, reason domain.ReleaseReason) (bool, error) {
	query := `
		UPDATE barrier_instances
		SET state = 'DOWN', release_reason = $3, released_at = now()
		WHERE pipeline_execution_id = $1 AND name = $2 AND state = 'STANDING'
	`
	result, err := r.pool.Exec(ctx, query, pipelineExecutionID, name, reason)
	if err != nil {
		return false, fmt.Errorf("release barrier: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListOrphanedExecutions возвращает ID pipeline executions, которые уже
// завершены, но ещё держат STANDING barrier.
func (r *BarrierRepo) ListOrphanedExecutions(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT b.pipeline_execution_id
		FROM barrier_instances b
		JOIN pipeline_executions pe ON pe.id = b.pipeline_execution_id
		WHERE b.state = 'STANDING'
		  AND pe.status IN ('SUCCESS', 'FAILED', 'ERROR', 'ABORTED', 'REJECTED', 'EXPIRED', 'SKIPPED')
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list orphaned barriers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pipeline execution id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanBarrier сканирует одну строку в BarrierInstance.
func scanBarrier(row pgx.Row) (*domain.BarrierInstance, error) {
	var inst domain.BarrierInstance
	var participantsJSON, arrivedJSON []byte
	var reason *string

	err := row.Scan(
		&inst.ID,
		&inst.Name,
		&inst.AppID,
		&inst.PipelineExecutionID,
		&participantsJSON,
		&arrivedJSON,
		&inst.State,
		&reason,
		&inst.CreatedAt,
		&inst.ReleasedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan barrier: %w", err)
	}

	if err := json.Unmarshal(participantsJSON, &inst.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}
	if err := json.Unmarshal(arrivedJSON, &inst.Arrived); err != nil {
		return nil, fmt.Errorf("unmarshal arrived: %w", err)
	}
	if reason != nil {
		inst.ReleaseReason = domain.ReleaseReason(*reason)
	}
	return &inst, nil
}
