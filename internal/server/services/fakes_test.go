package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/dmitrijs2005/taskauth/internal/dbx"
	"github.com/dmitrijs2005/taskauth/internal/logging"
	"github.com/dmitrijs2005/taskauth/internal/server/auth"
	"github.com/dmitrijs2005/taskauth/internal/server/models"
	"github.com/dmitrijs2005/taskauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskauth/internal/server/repositories/roles"
	"github.com/dmitrijs2005/taskauth/internal/server/repositories/users"
)

// -------- test fakes --------

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type fakeUsersRepo struct {
	mu     sync.Mutex
	byID   map[int64]*models.User
	nextID int64

	insertErr error
	updateErr error
	findErr   error
	existsErr error

	updates int
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[int64]*models.User{}}
}

func (f *fakeUsersRepo) put(u models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == 0 {
		f.nextID++
		u.ID = f.nextID
	} else if u.ID > f.nextID {
		f.nextID = u.ID
	}
	f.byID[u.ID] = &u
	return &u
}

func (f *fakeUsersRepo) get(id int64) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (f *fakeUsersRepo) Insert(ctx context.Context, u *models.User) (*models.User, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if exists, _ := f.ExistsByEmail(ctx, u.Email, 0); exists {
		return nil, common.ErrEmailInUse
	}
	cp := *u
	cp.CreatedAt = time.Now()
	return f.put(cp), nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, u *models.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[u.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *u
	f.byID[u.ID] = &cp
	f.updates++
	return nil
}

func (f *fakeUsersRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if u := f.get(id); u != nil {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type fakeRolesRepo struct {
	mu       sync.Mutex
	byName   map[string]*models.Role
	assigned map[int64][]int64
	nextID   int64

	findErr    error
	ensureErr  error
	replaceErr error
	listErr    error
	hasErr     error
	countErr   error

	findCalls int
}

func newFakeRolesRepo(names ...string) *fakeRolesRepo {
	f := &fakeRolesRepo{byName: map[string]*models.Role{}, assigned: map[int64][]int64{}}
	for _, n := range names {
		_, _ = f.Ensure(context.Background(), n)
	}
	return f
}

func (f *fakeRolesRepo) FindByName(ctx context.Context, name string) (*models.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	r, ok := f.byName[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRolesRepo) Ensure(ctx context.Context, name string) (*models.Role, error) {
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.byName[name]; ok {
		cp := *r
		return &cp, nil
	}
	f.nextID++
	r := &models.Role{ID: f.nextID, Name: name}
	f.byName[name] = r
	cp := *r
	return &cp, nil
}

func (f *fakeRolesRepo) ReplaceRole(ctx context.Context, userID, roleID int64) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned[userID] = []int64{roleID}
	return nil
}

func (f *fakeRolesRepo) ListRoleNames(ctx context.Context, userID int64) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	names := []string{}
	for _, id := range f.assigned[userID] {
		for _, r := range f.byName {
			if r.ID == id {
				names = append(names, r.Name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeRolesRepo) HasRole(ctx context.Context, userID, roleID int64) (bool, error) {
	if f.hasErr != nil {
		return false, f.hasErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.assigned[userID] {
		if id == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRolesRepo) CountUsersWithRole(ctx context.Context, roleID int64) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, ids := range f.assigned {
		for _, id := range ids {
			if id == roleID {
				n++
			}
		}
	}
	return n, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRolesRepo
}

var _ repomanager.RepositoryManager = (*fakeRepoManager)(nil)

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository          { return m.u }
func (m *fakeRepoManager) Roles(db dbx.DBTX) roles.Repository          { return m.r }

type recordedEvent struct{ operation, outcome string }

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *fakeRecorder) AuthEvent(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{operation, outcome})
}

func (r *fakeRecorder) last() recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return recordedEvent{}
	}
	return r.events[len(r.events)-1]
}

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// fastHasher keeps the production shape with fewer rounds.
func fastHasher() *auth.Hasher {
	return &auth.Hasher{SaltSize: auth.DefaultSaltSize, Iterations: 16, KeyLength: auth.DefaultKeyLength}
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCodec() *auth.TokenCodec {
	return auth.NewTokenCodec("test-secret", "taskauth", "taskauth-api", time.Hour, func() time.Time { return testNow })
}

func newAuthService(db *sql.DB, rm *fakeRepoManager, rec *fakeRecorder) *AuthService {
	return NewAuthService(db, rm, fastHasher(), newTestCodec(), logging.Discard(), rec)
}

func newModerationService(db *sql.DB, rm *fakeRepoManager, rec *fakeRecorder) *ModerationService {
	return NewModerationService(db, rm, logging.Discard(), rec)
}

// seedUser stores a user with a real credential for password.
func seedUser(t *testing.T, u *fakeUsersRepo, email, password string, banned bool) *models.User {
	t.Helper()
	salt, digest, err := fastHasher().NewCredential(password)
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	return u.put(models.User{Email: email, FullName: "Test " + email, Salt: salt, PasswordHash: digest, Banned: banned})
}
