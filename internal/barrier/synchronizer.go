package barrier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 2 * time.Second
)

// WaitOutcome — результат прибытия участника к barrier.
type WaitOutcome string

const (
	// OutcomeProceed — barrier не задерживает участника.
	OutcomeProceed WaitOutcome = "PROCEED"

	// OutcomeWait — участник должен ждать снятия barrier.
	OutcomeWait WaitOutcome = "WAIT"

	// OutcomeReleased — участник прибыл последним и снял barrier.
	OutcomeReleased WaitOutcome = "RELEASED"
)

// Synchronizer находит barrier при старте pipeline execution
// и реализует протокол встречи участников.
//
// Состояние barrier хранится только в Store и меняется атомарными
// обновлениями; Synchronizer не держит его в памяти.
type Synchronizer struct {
	store     Store
	workflows WorkflowReader
	notifier  Notifier

	pollInterval time.Duration
	newID        func() string
	now          func() time.Time
	logger       *slog.Logger
}

// Config — конфигурация Synchronizer.
type Config struct {
	Store     Store
	Workflows WorkflowReader

	// Notifier — push-уведомления о снятии (nil — только polling).
	Notifier Notifier

	// PollInterval — интервал опроса в Wait (default: 2s).
	PollInterval time.Duration

	NewID func() string
	Now   func() time.Time

	Logger *slog.Logger
}

// New создаёт Synchronizer.
func New(cfg Config) *Synchronizer {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Synchronizer{
		store:        cfg.Store,
		workflows:    cfg.Workflows,
		notifier:     cfg.Notifier,
		pollInterval: pollInterval,
		newID:        newID,
		now:          now,
		logger:       logger,
	}
}

// occurrence — barrier шаг внутри workflow.
type occurrence struct {
	participant   domain.BarrierParticipant
	phaseName     string
	phaseStepName string
}

// ObtainInstances находит barrier среди workflows одного pipeline execution
// и сохраняет их.
//
// Identifier, встречающийся в одном workflow, barrier не образует.
// Identifier из двух и более workflows образует один instance.
// Повторный вызов возвращает уже сохранённые instances.
// Результат упорядочен по имени.
func (s *Synchronizer) ObtainInstances(
	ctx context.Context,
	appID string,
	infos []domain.OrchestrationWorkflowInfo,
	pipelineExecutionID string,
) ([]domain.BarrierInstance, error) {
	byIdentifier, err := collectOccurrences(infos)
	if err != nil {
		return nil, configError(err)
	}
	return s.persist(ctx, appID, byIdentifier, pipelineExecutionID)
}

// persist сохраняет instances для identifier с двумя и более участниками.
func (s *Synchronizer) persist(
	ctx context.Context,
	appID string,
	byIdentifier map[string][]occurrence,
	pipelineExecutionID string,
) ([]domain.BarrierInstance, error) {
	names := barrierNames(byIdentifier)
	logger := telemetry.WithPipelineExecutionID(s.logger, pipelineExecutionID)

	out := make([]domain.BarrierInstance, 0, len(names))
	for _, name := range names {
		occ := byIdentifier[name]
		participants := make([]domain.BarrierParticipant, len(occ))
		for i, o := range occ {
			participants[i] = o.participant
		}

		inst := &domain.BarrierInstance{
			ID:                  s.newID(),
			Name:                name,
			AppID:               appID,
			PipelineExecutionID: pipelineExecutionID,
			Participants:        participants,
			Arrived:             []domain.BarrierParticipant{},
			State:               domain.BarrierStateStanding,
			CreatedAt:           s.now(),
		}

		stored, created, err := s.store.Upsert(ctx, inst)
		if err != nil {
			return nil, fmt.Errorf("upsert barrier %s: %w", name, err)
		}
		if created {
			telemetry.BarriersCreated.Inc()
			telemetry.WithBarrier(logger, name).Info("barrier created", "participants", len(participants))
		}
		out = append(out, *stored)
	}

	return out, nil
}

// barrierNames возвращает отсортированные identifier, образующие barrier.
func barrierNames(byIdentifier map[string][]occurrence) []string {
	names := make([]string, 0, len(byIdentifier))
	for name, occ := range byIdentifier {
		if len(occ) >= 2 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// configError учитывает ошибку конфигурации в метриках.
func configError(err error) error {
	var bErr *Error
	if errors.As(err, &bErr) {
		telemetry.BarrierConfigErrors.WithLabelValues(string(bErr.Code)).Inc()
	}
	return err
}

// collectOccurrences группирует barrier шаги по identifier.
func collectOccurrences(infos []domain.OrchestrationWorkflowInfo) (map[string][]occurrence, error) {
	byIdentifier := make(map[string][]occurrence)

	for _, info := range infos {
		if info.Workflow == nil {
			continue
		}

		seen := make(map[string]occurrence)
		for _, loc := range info.Workflow.Orchestration.AllSteps() {
			step, ok := loc.Step.Barrier()
			if !ok {
				continue
			}

			occ := occurrence{
				participant: domain.BarrierParticipant{
					WorkflowID:             info.WorkflowID,
					PipelineStageElementID: info.PipelineStageElementID,
				},
				phaseName:     loc.PhaseName,
				phaseStepName: loc.PhaseStepName,
			}

			if step.Identifier == "" {
				return nil, newError(CodeInvalidBarrierConfiguration, fmt.Sprintf(
					"barrier step %q in workflow %s (stage element %s, phase step %q) has no identifier",
					loc.Step.Name, info.WorkflowID, info.PipelineStageElementID, loc.PhaseStepName))
			}

			if prev, dup := seen[step.Identifier]; dup {
				return nil, newError(CodeBarriersNotRunningConcurrently, fmt.Sprintf(
					"barrier %q is used more than once in workflow %s (stage element %s): phase step %q and phase step %q",
					step.Identifier, info.WorkflowID, info.PipelineStageElementID,
					prev.phaseName+"/"+prev.phaseStepName, occ.phaseName+"/"+occ.phaseStepName))
			}
			seen[step.Identifier] = occ

			byIdentifier[step.Identifier] = append(byIdentifier[step.Identifier], occ)
		}
	}

	return byIdentifier, nil
}

// ConstructBarriers находит barrier при старте pipeline execution.
//
// Стадии разбиваются на группы одновременно выполняющихся элементов,
// barrier ищутся внутри каждой группы. Выключенные и не-ENV_STATE
// элементы пропускаются. Identifier, образующий barrier в двух разных
// группах, является ошибкой конфигурации: такие шаги не выполняются одновременно.
func (s *Synchronizer) ConstructBarriers(ctx context.Context, p *domain.Pipeline, pipelineExecutionID string) ([]domain.BarrierInstance, error) {
	var out []domain.BarrierInstance
	owner := make(map[string]string)

	for _, group := range engine.ConcurrentGroups(p) {
		infos := make([]domain.OrchestrationWorkflowInfo, 0, len(group.Elements))
		for _, el := range group.Elements {
			if el.Disabled || el.Type != domain.StateTypeEnvState {
				continue
			}

			wf, err := s.workflows.ReadWorkflow(ctx, p.AppID, el.WorkflowID())
			if err != nil {
				return nil, fmt.Errorf("read workflow %s: %w", el.WorkflowID(), err)
			}

			infos = append(infos, domain.OrchestrationWorkflowInfo{
				WorkflowID:             el.WorkflowID(),
				PipelineStageElementID: el.ID,
				Workflow:               wf,
			})
		}

		byIdentifier, err := collectOccurrences(infos)
		if err != nil {
			return nil, configError(err)
		}

		stages := fmt.Sprint(group.Stages)
		for _, name := range barrierNames(byIdentifier) {
			if prev, ok := owner[name]; ok {
				return nil, configError(newError(CodeBarriersNotRunningConcurrently, fmt.Sprintf(
					"barrier %q is used by stages %s and %s which do not run concurrently", name, prev, stages)))
			}
			owner[name] = stages
		}

		instances, err := s.persist(ctx, p.AppID, byIdentifier, pipelineExecutionID)
		if err != nil {
			return nil, err
		}
		out = append(out, instances...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Arrive регистрирует прибытие участника к barrier.
//
// Если barrier для identifier нет или он уже снят, участник продолжает.
// Повторное прибытие не учитывается дважды.
// Последний прибывший снимает barrier и уведомляет всех участников.
func (s *Synchronizer) Arrive(
	ctx context.Context,
	pipelineExecutionID, identifier string,
	participant domain.BarrierParticipant,
) (WaitOutcome, error) {
	logger := telemetry.WithBarrier(telemetry.WithPipelineExecutionID(s.logger, pipelineExecutionID), identifier)

	applied, released, err := s.store.Arrive(ctx, pipelineExecutionID, identifier, participant)
	if errors.Is(err, repo.ErrNotFound) {
		return s.arrived(OutcomeProceed), nil
	}
	if err != nil {
		return "", fmt.Errorf("arrive at barrier %s: %w", identifier, err)
	}

	if applied {
		if !released {
			logger.Debug("participant arrived", "workflow_id", participant.WorkflowID)
			return s.arrived(OutcomeWait), nil
		}

		logger.Info("barrier released", "reason", domain.ReleaseReasonAllArrived)
		telemetry.BarrierReleases.WithLabelValues(string(domain.ReleaseReasonAllArrived)).Inc()
		s.notify(ctx, pipelineExecutionID, identifier)
		return s.arrived(OutcomeReleased), nil
	}

	// Обновление не применено: уточняем причину
	inst, err := s.store.Get(ctx, pipelineExecutionID, identifier)
	if errors.Is(err, repo.ErrNotFound) {
		return s.arrived(OutcomeProceed), nil
	}
	if err != nil {
		return "", fmt.Errorf("get barrier %s: %w", identifier, err)
	}

	switch {
	case inst.IsDown():
		return s.arrived(OutcomeProceed), nil
	case !inst.HasParticipant(participant):
		// Одиночный шаг с тем же identifier в другой группе не является точкой синхронизации
		logger.Warn("arrival from non-participant, proceeding",
			"workflow_id", participant.WorkflowID,
			"stage_element_id", participant.PipelineStageElementID,
		)
		return s.arrived(OutcomeProceed), nil
	default:
		// Повторное прибытие
		return s.arrived(OutcomeWait), nil
	}
}

func (s *Synchronizer) arrived(outcome WaitOutcome) WaitOutcome {
	telemetry.BarrierArrivals.WithLabelValues(string(outcome)).Inc()
	return outcome
}

// Abandon принудительно снимает все STANDING barrier pipeline execution.
// Возвращает количество снятых этим вызовом barrier.
func (s *Synchronizer) Abandon(ctx context.Context, pipelineExecutionID string) (int, error) {
	instances, err := s.store.List(ctx, pipelineExecutionID)
	if err != nil {
		return 0, fmt.Errorf("list barriers: %w", err)
	}

	logger := telemetry.WithPipelineExecutionID(s.logger, pipelineExecutionID)

	var count int
	for _, inst := range instances {
		if inst.IsDown() {
			continue
		}

		released, err := s.store.Release(ctx, pipelineExecutionID, inst.Name, domain.ReleaseReasonAbandoned)
		if err != nil {
			return count, fmt.Errorf("release barrier %s: %w", inst.Name, err)
		}
		if !released {
			continue
		}

		count++
		telemetry.BarrierReleases.WithLabelValues(string(domain.ReleaseReasonAbandoned)).Inc()
		telemetry.WithBarrier(logger, inst.Name).Warn("barrier abandoned",
			"arrived", len(inst.Arrived),
			"participants", len(inst.Participants),
		)
		s.notify(ctx, pipelineExecutionID, inst.Name)
	}

	return count, nil
}

// notify отправляет уведомление о снятии каждому участнику.
// Ошибки доставки только логируются: ожидающие участники увидят DOWN при опросе.
func (s *Synchronizer) notify(ctx context.Context, pipelineExecutionID, name string) {
	if s.notifier == nil {
		return
	}

	inst, err := s.store.Get(ctx, pipelineExecutionID, name)
	if err != nil {
		s.logger.Warn("failed to load released barrier", "barrier", name, "error", err)
		return
	}

	for _, p := range inst.Participants {
		if err := s.notifier.PublishBarrierReleased(ctx, inst, p); err != nil {
			s.logger.Warn("failed to publish barrier release",
				"barrier", name,
				"workflow_id", p.WorkflowID,
				"error", err,
			)
		}
	}
}

// Wait блокирует до снятия barrier или отмены ctx.
// Отсутствующий barrier считается снятым.
func (s *Synchronizer) Wait(ctx context.Context, pipelineExecutionID, identifier string) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		inst, err := s.store.Get(ctx, pipelineExecutionID, identifier)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get barrier %s: %w", identifier, err)
		}
		if inst.IsDown() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// List возвращает barrier instances pipeline execution.
func (s *Synchronizer) List(ctx context.Context, pipelineExecutionID string) ([]domain.BarrierInstance, error) {
	return s.store.List(ctx, pipelineExecutionID)
}
