package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/repository"
)

type stubUserRepo struct {
	users map[uint]models.User
}

func newStubUserRepo(users ...models.User) *stubUserRepo {
	repo := &stubUserRepo{users: map[uint]models.User{}}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (s *stubUserRepo) GetByID(_ context.Context, id uint) (models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return models.User{}, gorm.ErrRecordNotFound
}

type stubSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[string]models.Submission
	outcomes    map[string]models.AnalysisOutcome
}

func newStubSubmissionRepo() *stubSubmissionRepo {
	return &stubSubmissionRepo{
		submissions: map[string]models.Submission{},
		outcomes:    map[string]models.AnalysisOutcome{},
	}
}

func (s *stubSubmissionRepo) Put(_ context.Context, submission *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[submission.ID] = *submission
	return nil
}

func (s *stubSubmissionRepo) GetByID(_ context.Context, id string) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if submission, ok := s.submissions[id]; ok {
		return submission, nil
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (s *stubSubmissionRepo) UpdateStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	submission := s.submissions[id]
	submission.Status = status
	s.submissions[id] = submission
	return nil
}

func (s *stubSubmissionRepo) MarkErrored(_ context.Context, id, kind, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	submission := s.submissions[id]
	submission.Status = models.SubmissionStatusErrored
	submission.ErrorKind = kind
	submission.ErrorDetail = detail
	s.submissions[id] = submission
	return nil
}

func (s *stubSubmissionRepo) PutOutcome(_ context.Context, outcome *models.AnalysisOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.outcomes[outcome.SubmissionID]; exists {
		return nil
	}
	s.outcomes[outcome.SubmissionID] = *outcome
	return nil
}

func (s *stubSubmissionRepo) GetOutcome(_ context.Context, submissionID string) (models.AnalysisOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if outcome, ok := s.outcomes[submissionID]; ok {
		return outcome, nil
	}
	return models.AnalysisOutcome{}, gorm.ErrRecordNotFound
}

func (s *stubSubmissionRepo) ListOutcomesByUser(_ context.Context, userID uint, limit int) ([]models.AnalysisOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []models.AnalysisOutcome
	for _, outcome := range s.outcomes {
		if outcome.UserID == userID {
			all = append(all, outcome)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].SubmittedAt.Equal(all[j].SubmittedAt) {
			return all[i].SubmittedAt.Before(all[j].SubmittedAt)
		}
		return all[i].SubmissionID < all[j].SubmissionID
	})
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

type stubWeakAreaRepo struct {
	mu      sync.Mutex
	records map[uint]map[string]models.WeakAreaRecord
}

func newStubWeakAreaRepo() *stubWeakAreaRepo {
	return &stubWeakAreaRepo{records: map[uint]map[string]models.WeakAreaRecord{}}
}

func (s *stubWeakAreaRepo) Upsert(_ context.Context, record *models.WeakAreaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[record.UserID] == nil {
		s.records[record.UserID] = map[string]models.WeakAreaRecord{}
	}
	s.records[record.UserID][record.Tag] = *record
	return nil
}

func (s *stubWeakAreaRepo) GetByTag(_ context.Context, userID uint, tag string) (models.WeakAreaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[userID][tag]; ok {
		return record, nil
	}
	return models.WeakAreaRecord{}, gorm.ErrRecordNotFound
}

func (s *stubWeakAreaRepo) ListByUser(_ context.Context, userID uint) ([]models.WeakAreaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []models.WeakAreaRecord
	for _, record := range s.records[userID] {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Tag < records[j].Tag })
	return records, nil
}

type stubGrowthRepo struct {
	mu        sync.Mutex
	states    map[uint]models.GrowthState
	snapshots []models.GrowthScoreSnapshot
	nextID    uint
}

func newStubGrowthRepo() *stubGrowthRepo {
	return &stubGrowthRepo{states: map[uint]models.GrowthState{}}
}

func (s *stubGrowthRepo) GetState(_ context.Context, userID uint) (models.GrowthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[userID]; ok {
		return state, nil
	}
	return models.GrowthState{}, gorm.ErrRecordNotFound
}

func (s *stubGrowthRepo) SaveState(_ context.Context, state *models.GrowthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserID] = *state
	return nil
}

func (s *stubGrowthRepo) AppendSnapshot(_ context.Context, snapshot *models.GrowthScoreSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !snapshot.Superseding {
		for i := len(s.snapshots) - 1; i >= 0; i-- {
			prior := s.snapshots[i]
			if prior.UserID != snapshot.UserID || prior.Superseding {
				continue
			}
			if !snapshot.WeekStart.After(prior.WeekStart) {
				return repository.ErrNonMonotonicWeek
			}
			break
		}
	}

	s.nextID++
	snapshot.ID = s.nextID
	s.snapshots = append(s.snapshots, *snapshot)
	return nil
}

func (s *stubGrowthRepo) SnapshotForWeek(_ context.Context, userID uint, weekStart time.Time) (models.GrowthScoreSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		snapshot := s.snapshots[i]
		if snapshot.UserID == userID && snapshot.WeekStart.Equal(weekStart) {
			return snapshot, nil
		}
	}
	return models.GrowthScoreSnapshot{}, gorm.ErrRecordNotFound
}

func (s *stubGrowthRepo) LatestSnapshotBefore(_ context.Context, userID uint, weekStart time.Time) (models.GrowthScoreSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.GrowthScoreSnapshot
	for i := range s.snapshots {
		snapshot := s.snapshots[i]
		if snapshot.UserID != userID || !snapshot.WeekStart.Before(weekStart) {
			continue
		}
		if best == nil || snapshot.WeekStart.After(best.WeekStart) ||
			(snapshot.WeekStart.Equal(best.WeekStart) && snapshot.ID > best.ID) {
			best = &snapshot
		}
	}
	if best == nil {
		return models.GrowthScoreSnapshot{}, gorm.ErrRecordNotFound
	}
	return *best, nil
}

func (s *stubGrowthRepo) ListSnapshots(_ context.Context, userID uint, limit int) ([]models.GrowthScoreSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.GrowthScoreSnapshot
	for _, snapshot := range s.snapshots {
		if snapshot.UserID == userID {
			all = append(all, snapshot)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].WeekStart.Equal(all[j].WeekStart) {
			return all[i].WeekStart.Before(all[j].WeekStart)
		}
		return all[i].ID < all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

type stubCatalogRepo struct {
	mu       sync.Mutex
	problems []models.PracticeProblem
}

func newStubCatalogRepo(problems ...models.PracticeProblem) *stubCatalogRepo {
	return &stubCatalogRepo{problems: problems}
}

func (s *stubCatalogRepo) Query(_ context.Context, tags []string, difficulty string) ([]models.PracticeProblem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.PracticeProblem
	for _, problem := range s.problems {
		if difficulty != "" && problem.Difficulty != difficulty {
			continue
		}
		if len(tags) == 0 {
			matched = append(matched, problem)
			continue
		}
		for _, tag := range tags {
			if problem.Targets(tag) {
				matched = append(matched, problem)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (s *stubCatalogRepo) GetByID(_ context.Context, id uint) (models.PracticeProblem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, problem := range s.problems {
		if problem.ID == id {
			return problem, nil
		}
	}
	return models.PracticeProblem{}, gorm.ErrRecordNotFound
}

func (s *stubCatalogRepo) Seed(_ context.Context, problems []models.PracticeProblem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range problems {
		if problems[i].ID == 0 {
			problems[i].ID = uint(len(s.problems) + i + 1)
		}
	}
	s.problems = append(s.problems, problems...)
	return nil
}

type stubAttemptRepo struct {
	mu       sync.Mutex
	attempts []models.PracticeAttempt
}

func newStubAttemptRepo() *stubAttemptRepo {
	return &stubAttemptRepo{}
}

func (s *stubAttemptRepo) Create(_ context.Context, attempt *models.PracticeAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt.ID = uint(len(s.attempts) + 1)
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *stubAttemptRepo) ListRecent(_ context.Context, userID uint, before time.Time, limit int) ([]models.PracticeAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.PracticeAttempt
	for _, attempt := range s.attempts {
		if attempt.UserID != userID {
			continue
		}
		if !before.IsZero() && !attempt.AttemptedAt.Before(before) {
			continue
		}
		matched = append(matched, attempt)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].AttemptedAt.Equal(matched[j].AttemptedAt) {
			return matched[i].AttemptedAt.After(matched[j].AttemptedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

type stubLease struct{}

func (stubLease) Release(context.Context) error { return nil }

type stubLeaser struct {
	mu       sync.Mutex
	acquired []string
	err      error
}

func (s *stubLeaser) Acquire(_ context.Context, key string) (Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.acquired = append(s.acquired, key)
	return stubLease{}, nil
}

type stubEnqueuer struct {
	mu       sync.Mutex
	enqueued []string
	err      error
}

func (s *stubEnqueuer) EnqueueReprocess(_ context.Context, submissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, submissionID)
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []PipelineEvent
}

func (r *recordingEvents) PublishPipelineEvent(_ context.Context, event PipelineEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEvents) all() []PipelineEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PipelineEvent, len(r.events))
	copy(out, r.events)
	return out
}
