package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pettit/internal/models"
	"pettit/internal/notifications"
	"pettit/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errStoreShouldNotBeCalled = errors.New("store should not be called")

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn           func(context.Context, *models.Post) error
	getByIDFn          func(context.Context, uint, uint) (*models.Post, error)
	listFn             func(context.Context, repository.PostQuery) ([]*models.Post, error)
	updateFn           func(context.Context, *models.Post, []string) error
	updateModerationFn func(context.Context, uint, map[string]any) error
	deleteFn           func(context.Context, *models.Post) error
	incrementViewsFn   func(context.Context, uint) error
	applyVoteFn        func(context.Context, uint, uint, models.VoteAction) (*models.VoteResult, error)
	toggleSaveFn       func(context.Context, uint, uint) (bool, error)
	addReportFn        func(context.Context, *models.PostReport) error
	recomputeFn        func(context.Context, uint) (int64, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) List(ctx context.Context, q repository.PostQuery) ([]*models.Post, error) {
	return s.listFn(ctx, q)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post, tags []string) error {
	return s.updateFn(ctx, post, tags)
}
func (s *postRepoStub) UpdateModeration(ctx context.Context, id uint, updates map[string]any) error {
	return s.updateModerationFn(ctx, id, updates)
}
func (s *postRepoStub) Delete(ctx context.Context, post *models.Post) error {
	return s.deleteFn(ctx, post)
}
func (s *postRepoStub) IncrementViews(ctx context.Context, id uint) error {
	return s.incrementViewsFn(ctx, id)
}
func (s *postRepoStub) ApplyVote(ctx context.Context, postID, userID uint, action models.VoteAction) (*models.VoteResult, error) {
	return s.applyVoteFn(ctx, postID, userID, action)
}
func (s *postRepoStub) ToggleSave(ctx context.Context, postID, userID uint) (bool, error) {
	return s.toggleSaveFn(ctx, postID, userID)
}
func (s *postRepoStub) AddReport(ctx context.Context, report *models.PostReport) error {
	return s.addReportFn(ctx, report)
}
func (s *postRepoStub) RecomputeVoteScores(ctx context.Context, communityID uint) (int64, error) {
	return s.recomputeFn(ctx, communityID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:           func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn:          func(_ context.Context, _, _ uint) (*models.Post, error) { return &models.Post{}, nil },
		listFn:             func(_ context.Context, _ repository.PostQuery) ([]*models.Post, error) { return nil, nil },
		updateFn:           func(_ context.Context, _ *models.Post, _ []string) error { return nil },
		updateModerationFn: func(_ context.Context, _ uint, _ map[string]any) error { return nil },
		deleteFn:           func(_ context.Context, _ *models.Post) error { return nil },
		incrementViewsFn:   func(_ context.Context, _ uint) error { return nil },
		applyVoteFn: func(_ context.Context, _, _ uint, _ models.VoteAction) (*models.VoteResult, error) {
			return &models.VoteResult{UserVote: models.VoteStateNone}, nil
		},
		toggleSaveFn: func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		addReportFn:  func(_ context.Context, _ *models.PostReport) error { return nil },
		recomputeFn:  func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

// failingPostRepo fails every call; used to prove a code path never reaches the store.
func failingPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:           func(_ context.Context, _ *models.Post) error { return errStoreShouldNotBeCalled },
		getByIDFn:          func(_ context.Context, _, _ uint) (*models.Post, error) { return nil, errStoreShouldNotBeCalled },
		listFn:             func(_ context.Context, _ repository.PostQuery) ([]*models.Post, error) { return nil, errStoreShouldNotBeCalled },
		updateFn:           func(_ context.Context, _ *models.Post, _ []string) error { return errStoreShouldNotBeCalled },
		updateModerationFn: func(_ context.Context, _ uint, _ map[string]any) error { return errStoreShouldNotBeCalled },
		deleteFn:           func(_ context.Context, _ *models.Post) error { return errStoreShouldNotBeCalled },
		incrementViewsFn:   func(_ context.Context, _ uint) error { return errStoreShouldNotBeCalled },
		applyVoteFn: func(_ context.Context, _, _ uint, _ models.VoteAction) (*models.VoteResult, error) {
			return nil, errStoreShouldNotBeCalled
		},
		toggleSaveFn: func(_ context.Context, _, _ uint) (bool, error) { return false, errStoreShouldNotBeCalled },
		addReportFn:  func(_ context.Context, _ *models.PostReport) error { return errStoreShouldNotBeCalled },
		recomputeFn:  func(_ context.Context, _ uint) (int64, error) { return 0, errStoreShouldNotBeCalled },
	}
}

// communityRepoStub is a stub for repository.CommunityRepository.
type communityRepoStub struct {
	createFn     func(context.Context, *models.Community) error
	getByIDFn    func(context.Context, uint) (*models.Community, error)
	getByNameFn  func(context.Context, string) (*models.Community, error)
	updateFn     func(context.Context, uint, map[string]any) error
	softDeleteFn func(context.Context, uint) error
	listFn       func(context.Context, repository.CommunityQuery) ([]models.Community, int64, error)
	searchFn     func(context.Context, string, int) ([]models.Community, error)
}

func (s *communityRepoStub) Create(ctx context.Context, c *models.Community) error {
	return s.createFn(ctx, c)
}
func (s *communityRepoStub) GetByID(ctx context.Context, id uint) (*models.Community, error) {
	return s.getByIDFn(ctx, id)
}
func (s *communityRepoStub) GetByName(ctx context.Context, name string) (*models.Community, error) {
	return s.getByNameFn(ctx, name)
}
func (s *communityRepoStub) Update(ctx context.Context, id uint, updates map[string]any) error {
	return s.updateFn(ctx, id, updates)
}
func (s *communityRepoStub) SoftDelete(ctx context.Context, id uint) error {
	return s.softDeleteFn(ctx, id)
}
func (s *communityRepoStub) List(ctx context.Context, q repository.CommunityQuery) ([]models.Community, int64, error) {
	return s.listFn(ctx, q)
}
func (s *communityRepoStub) Search(ctx context.Context, term string, limit int) ([]models.Community, error) {
	return s.searchFn(ctx, term, limit)
}

// activeCommunityRepo serves a single active community for every lookup.
func activeCommunityRepo(community *models.Community) *communityRepoStub {
	return &communityRepoStub{
		createFn:     func(_ context.Context, _ *models.Community) error { return nil },
		getByIDFn:    func(_ context.Context, _ uint) (*models.Community, error) { return community, nil },
		getByNameFn:  func(_ context.Context, _ string) (*models.Community, error) { return community, nil },
		updateFn:     func(_ context.Context, _ uint, _ map[string]any) error { return nil },
		softDeleteFn: func(_ context.Context, _ uint) error { return nil },
		listFn: func(_ context.Context, _ repository.CommunityQuery) ([]models.Community, int64, error) {
			return nil, 0, nil
		},
		searchFn: func(_ context.Context, _ string, _ int) ([]models.Community, error) { return nil, nil },
	}
}

func failingCommunityRepo() *communityRepoStub {
	return &communityRepoStub{
		createFn:     func(_ context.Context, _ *models.Community) error { return errStoreShouldNotBeCalled },
		getByIDFn:    func(_ context.Context, _ uint) (*models.Community, error) { return nil, errStoreShouldNotBeCalled },
		getByNameFn:  func(_ context.Context, _ string) (*models.Community, error) { return nil, errStoreShouldNotBeCalled },
		updateFn:     func(_ context.Context, _ uint, _ map[string]any) error { return errStoreShouldNotBeCalled },
		softDeleteFn: func(_ context.Context, _ uint) error { return errStoreShouldNotBeCalled },
		listFn: func(_ context.Context, _ repository.CommunityQuery) ([]models.Community, int64, error) {
			return nil, 0, errStoreShouldNotBeCalled
		},
		searchFn: func(_ context.Context, _ string, _ int) ([]models.Community, error) {
			return nil, errStoreShouldNotBeCalled
		},
	}
}

// membershipRepoStub is a stub for repository.MembershipRepository.
type membershipRepoStub struct {
	getFn         func(context.Context, uint, uint) (*models.Membership, error)
	joinFn        func(context.Context, *models.Membership) error
	leaveFn       func(context.Context, *models.Membership) error
	updateFn      func(context.Context, *models.Membership) error
	listMembersFn func(context.Context, uint, models.MembershipRole, int, int) ([]models.Membership, int64, error)
	listForUserFn func(context.Context, uint, []uint) (map[uint]models.Membership, error)
	listByUserFn  func(context.Context, uint, int, int) ([]models.Membership, int64, error)
	reconcileFn   func(context.Context, uint) error
}

func (s *membershipRepoStub) Get(ctx context.Context, userID, communityID uint) (*models.Membership, error) {
	return s.getFn(ctx, userID, communityID)
}
func (s *membershipRepoStub) Join(ctx context.Context, m *models.Membership) error {
	return s.joinFn(ctx, m)
}
func (s *membershipRepoStub) Leave(ctx context.Context, m *models.Membership) error {
	return s.leaveFn(ctx, m)
}
func (s *membershipRepoStub) Update(ctx context.Context, m *models.Membership) error {
	return s.updateFn(ctx, m)
}
func (s *membershipRepoStub) ListMembers(ctx context.Context, communityID uint, role models.MembershipRole, limit, offset int) ([]models.Membership, int64, error) {
	return s.listMembersFn(ctx, communityID, role, limit, offset)
}
func (s *membershipRepoStub) ListForUser(ctx context.Context, userID uint, ids []uint) (map[uint]models.Membership, error) {
	return s.listForUserFn(ctx, userID, ids)
}
func (s *membershipRepoStub) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Membership, int64, error) {
	return s.listByUserFn(ctx, userID, limit, offset)
}
func (s *membershipRepoStub) Reconcile(ctx context.Context, communityID uint) error {
	return s.reconcileFn(ctx, communityID)
}

// membershipsOf serves memberships keyed by user ID; absent users are not members.
func membershipsOf(byUser map[uint]*models.Membership) *membershipRepoStub {
	return &membershipRepoStub{
		getFn: func(_ context.Context, userID, _ uint) (*models.Membership, error) {
			if m, ok := byUser[userID]; ok {
				return m, nil
			}
			return nil, gorm.ErrRecordNotFound
		},
		joinFn:   func(_ context.Context, _ *models.Membership) error { return nil },
		leaveFn:  func(_ context.Context, _ *models.Membership) error { return nil },
		updateFn: func(_ context.Context, _ *models.Membership) error { return nil },
		listMembersFn: func(_ context.Context, _ uint, _ models.MembershipRole, _, _ int) ([]models.Membership, int64, error) {
			return nil, 0, nil
		},
		listForUserFn: func(_ context.Context, _ uint, _ []uint) (map[uint]models.Membership, error) {
			return map[uint]models.Membership{}, nil
		},
		listByUserFn: func(_ context.Context, _ uint, _, _ int) ([]models.Membership, int64, error) {
			return nil, 0, nil
		},
		reconcileFn: func(_ context.Context, _ uint) error { return nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	searchFn func(context.Context, string, int) ([]models.User, error)
}

func (s *userRepoStub) Create(context.Context, *models.User) error { return errStoreShouldNotBeCalled }
func (s *userRepoStub) GetByID(context.Context, uint) (*models.User, error) {
	return nil, errStoreShouldNotBeCalled
}
func (s *userRepoStub) Search(ctx context.Context, term string, limit int) ([]models.User, error) {
	return s.searchFn(ctx, term, limit)
}
func (s *userRepoStub) List(context.Context, int, int) ([]models.User, error) {
	return nil, errStoreShouldNotBeCalled
}

// mediaStoreStub records puts and deletes.
type mediaStoreStub struct {
	mu      sync.Mutex
	putErr  error
	put     []string
	deleted []string
}

func (m *mediaStoreStub) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return "", m.putErr
	}
	m.put = append(m.put, key)
	return "/uploads/" + key, nil
}

func (m *mediaStoreStub) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeValidation)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeForbidden)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }
func tagsPtr(t []string) *[]string { return &t }
