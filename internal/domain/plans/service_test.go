package plans

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmds/internal/domain/auth"
	"pmds/internal/domain/notifications"
	"pmds/internal/domain/users"
)

type fakeStore struct {
	StoreAPI

	plans       map[string]ImprovementPlan
	development map[string]DevelopmentPlan
	due         []DueRow
	nextID      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{plans: map[string]ImprovementPlan{}, development: map[string]DevelopmentPlan{}}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return prefix + string(rune('0'+f.nextID))
}

func (f *fakeStore) GetImprovementPlan(_ context.Context, _, id string) (ImprovementPlan, error) {
	p, ok := f.plans[id]
	if !ok {
		return ImprovementPlan{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) CurrentImprovementPlan(_ context.Context, _, employeeID string) (ImprovementPlan, error) {
	for _, p := range f.plans {
		if p.EmployeeID == employeeID && p.Status != StatusCompleted {
			return p, nil
		}
	}
	return ImprovementPlan{}, ErrNotFound
}

func (f *fakeStore) CreateImprovementPlan(_ context.Context, _ string, p ImprovementPlan) (string, error) {
	p.ID = f.id("p")
	f.plans[p.ID] = p
	return p.ID, nil
}

func (f *fakeStore) UpdateImprovementPlan(_ context.Context, _ string, p ImprovementPlan) error {
	f.plans[p.ID] = p
	return nil
}

func (f *fakeStore) AddItem(_ context.Context, _ string, it Item) (string, error) {
	p, ok := f.plans[it.PlanID]
	if !ok {
		return "", ErrNotFound
	}
	it.ID = f.id("i")
	p.Items = append(p.Items, it)
	f.plans[p.ID] = p
	return it.ID, nil
}

func (f *fakeStore) UpdateItem(_ context.Context, _ string, it Item) error {
	p := f.plans[it.PlanID]
	for i := range p.Items {
		if p.Items[i].ID == it.ID {
			p.Items[i] = it
		}
	}
	f.plans[p.ID] = p
	return nil
}

func (f *fakeStore) GetDevelopmentPlan(_ context.Context, _, id string) (DevelopmentPlan, error) {
	d, ok := f.development[id]
	if !ok {
		return DevelopmentPlan{}, ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) CreateDevelopmentPlan(_ context.Context, _ string, d DevelopmentPlan) (string, error) {
	d.ID = f.id("d")
	f.development[d.ID] = d
	return d.ID, nil
}

func (f *fakeStore) UpdateDevelopmentPlan(_ context.Context, _ string, d DevelopmentPlan) error {
	f.development[d.ID] = d
	return nil
}

func (f *fakeStore) DeleteDevelopmentPlan(_ context.Context, _, id string) error {
	delete(f.development, id)
	return nil
}

func (f *fakeStore) DueItems(context.Context, string, time.Time) ([]DueRow, error) {
	return f.due, nil
}

type fakeDirectory map[string]users.User

func (d fakeDirectory) Get(_ context.Context, _, id string) (users.User, error) {
	u, ok := d[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

type fakeNotifier struct{ sent []notifications.Message }

func (n *fakeNotifier) NotifyMany(_ context.Context, ids []string, msg notifications.Message) {
	for _, id := range ids {
		msg.UserID = id
		n.sent = append(n.sent, msg)
	}
}

func strPtr(v string) *string { return &v }

func newTestService() (*Service, *fakeStore, *fakeNotifier) {
	dir := fakeDirectory{
		"emp":   {ID: "emp", ManagerID: strPtr("mgr")},
		"mgr":   {ID: "mgr"},
		"other": {ID: "other"},
	}
	store := newFakeStore()
	svc := NewService(store, dir)
	svc.now = func() time.Time { return time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC) }
	notifier := &fakeNotifier{}
	svc.Notify = notifier
	return svc, store, notifier
}

func user(id, role string) auth.UserContext {
	return auth.UserContext{UserID: id, TenantID: "t1", RoleName: role}
}

func TestCreateImprovementPlanByManager(t *testing.T) {
	svc, _, notifier := newTestService()
	ctx := context.Background()

	p, err := svc.CreateImprovementPlan(ctx, user("mgr", auth.RoleManager), PlanInput{EmployeeID: "emp"})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, p.Status)
	assert.Equal(t, "mgr", deref(p.SupervisorID))
	assert.True(t, p.CanEdit)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "emp", notifier.sent[0].UserID)
	assert.Equal(t, notifications.TypePlanUpdate, notifier.sent[0].Type)

	_, err = svc.CreateImprovementPlan(ctx, user("other", auth.RoleManager), PlanInput{EmployeeID: "emp"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.CreateImprovementPlan(ctx, user("emp", auth.RoleEmployee), PlanInput{EmployeeID: "emp"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPlanStatusMovesForward(t *testing.T) {
	svc, _, notifier := newTestService()
	ctx := context.Background()
	p, err := svc.CreateImprovementPlan(ctx, user("mgr", auth.RoleManager), PlanInput{EmployeeID: "emp"})
	require.NoError(t, err)

	_, after, err := svc.UpdateImprovementPlan(ctx, user("mgr", auth.RoleManager), p.ID, PlanInput{Status: strPtr("in_progress")})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, after.Status)
	assert.Equal(t, "mgr", deref(after.ApprovedBy))
	require.NotNil(t, after.ApprovalDate)
	assert.Contains(t, notifier.sent[len(notifier.sent)-1].Message, "In Progress")

	_, _, err = svc.UpdateImprovementPlan(ctx, user("mgr", auth.RoleManager), p.ID, PlanInput{Status: strPtr(StatusDraft)})
	assert.ErrorIs(t, err, ErrStatusBackwards)

	_, _, err = svc.UpdateImprovementPlan(ctx, user("emp", auth.RoleEmployee), p.ID, PlanInput{Status: strPtr(StatusCompleted)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetImprovementPlan(ctx, user("other", auth.RoleEmployee), p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmployeeMayOnlyReportProgress(t *testing.T) {
	svc, store, notifier := newTestService()
	ctx := context.Background()
	p, err := svc.CreateImprovementPlan(ctx, user("mgr", auth.RoleManager), PlanInput{EmployeeID: "emp"})
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, user("mgr", auth.RoleManager), p.ID, ItemInput{AreaForDevelopment: strPtr("Report writing")})
	require.NoError(t, err)

	_, _, err = svc.UpdateItem(ctx, user("emp", auth.RoleEmployee), p.ID, item.ID, ItemInput{Timeline: strPtr("Q3")})
	assert.ErrorIs(t, err, ErrForbidden)

	before := len(notifier.sent)
	_, after, err := svc.UpdateItem(ctx, user("emp", auth.RoleEmployee), p.ID, item.ID, ItemInput{Progress: strPtr("Completed writing course")})
	require.NoError(t, err)
	assert.Equal(t, "Completed writing course", after.Progress)
	assert.Equal(t, "Completed writing course", store.plans[p.ID].Items[0].Progress)
	assert.Len(t, notifier.sent, before, "employee is not notified about their own update")

	_, err = svc.AddItem(ctx, user("mgr", auth.RoleManager), p.ID, ItemInput{AreaForDevelopment: strPtr("  ")})
	assert.ErrorIs(t, err, ErrAreaRequired)
}

func TestAddToImprovementPlanReusesCurrentPlan(t *testing.T) {
	svc, store, notifier := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.AddToImprovementPlan(ctx, "t1", "emp", "mgr", "r1", []string{"Budget control", "Job knowledge"}))
	require.Len(t, store.plans, 1)
	var plan ImprovementPlan
	for _, p := range store.plans {
		plan = p
	}
	assert.Equal(t, StatusDraft, plan.Status)
	require.Len(t, plan.Items, 2)
	assert.Equal(t, "r1", deref(plan.Items[0].SourceReviewID))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notifications.ObjectImprovementPlan, notifier.sent[0].RelatedObjectType)

	// the same review is not added twice; a later review joins the same plan
	require.NoError(t, svc.AddToImprovementPlan(ctx, "t1", "emp", "mgr", "r1", []string{"Budget control"}))
	require.NoError(t, svc.AddToImprovementPlan(ctx, "t1", "emp", "mgr", "r2", []string{"Budget control"}))
	require.Len(t, store.plans, 1)
	assert.Len(t, store.plans[plan.ID].Items, 3)

	require.NoError(t, svc.AddToImprovementPlan(ctx, "t1", "emp", "mgr", "r3", nil))
}

func TestDevelopmentPlanRules(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	d, err := svc.CreateDevelopmentPlan(ctx, user("emp", auth.RoleEmployee), DevelopmentInput{CompetencyGap: strPtr("Public speaking")})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC), d.StartDate)
	assert.Equal(t, time.Date(2027, time.June, 1, 0, 0, 0, 0, time.UTC), d.EndDate)
	assert.True(t, d.CanEdit)

	_, err = svc.CreateDevelopmentPlan(ctx, user("emp", auth.RoleEmployee), DevelopmentInput{EmployeeID: "other", CompetencyGap: strPtr("x")})
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = svc.UpdateDevelopmentPlan(ctx, user("emp", auth.RoleEmployee), d.ID, DevelopmentInput{Progress: intPtr(120)})
	assert.ErrorIs(t, err, ErrInvalidProgress)

	early := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	_, _, err = svc.UpdateDevelopmentPlan(ctx, user("emp", auth.RoleEmployee), d.ID, DevelopmentInput{EndDate: &early})
	assert.ErrorIs(t, err, ErrInvalidDates)

	got, err := svc.GetDevelopmentPlan(ctx, user("mgr", auth.RoleManager), d.ID)
	require.NoError(t, err)
	assert.False(t, got.CanEdit, "supervisors may view only")
	_, _, err = svc.UpdateDevelopmentPlan(ctx, user("mgr", auth.RoleManager), d.ID, DevelopmentInput{Progress: intPtr(50)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.DeleteDevelopmentPlan(ctx, user("hr", auth.RoleHR), d.ID)
	require.NoError(t, err)
}

func TestDueItemsMessages(t *testing.T) {
	svc, store, _ := newTestService()
	due := time.Date(2026, time.June, 5, 0, 0, 0, 0, time.UTC)
	store.due = []DueRow{
		{ObjectType: notifications.ObjectImprovementPlan, ObjectID: "p1", UserID: "emp", Title: "Budget control", DueDate: due},
		{ObjectType: notifications.ObjectDevelopmentPlan, ObjectID: "d1", UserID: "emp", Title: "Public speaking", DueDate: due},
	}
	items, err := svc.DueItems(context.Background(), "t1", due)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Contains(t, items[0].Message, "Budget control")
	assert.Equal(t, "Reminder: development plan", items[1].Title)
}

func intPtr(v int) *int { return &v }
