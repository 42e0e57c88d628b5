package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

type roleStubStore struct {
	roles  []*UserRole
	writes int
	addErr error
}

func (s *roleStubStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	for _, r := range s.roles {
		if r.UserID == userID && r.Role == role {
			return true, nil
		}
	}
	return false, nil
}

func (s *roleStubStore) AddRole(ctx context.Context, r *UserRole) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.writes++
	copy := *r
	s.roles = append(s.roles, &copy)
	return nil
}

func (s *roleStubStore) RemoveRole(ctx context.Context, userID, role string) (bool, error) {
	s.writes++
	for i, r := range s.roles {
		if r.UserID == userID && r.Role == role {
			s.roles = append(s.roles[:i], s.roles[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *roleStubStore) ListRoles(ctx context.Context) ([]*UserRole, error) {
	out := append([]*UserRole(nil), s.roles...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *roleStubStore) InsertFirstAdmin(ctx context.Context, r *UserRole) (bool, error) {
	for _, existing := range s.roles {
		if existing.Role == RoleAdmin {
			return false, nil
		}
	}
	return true, s.AddRole(ctx, r)
}

func newTestRoleService(store RoleStore) *RoleService {
	svc := NewRoleService(store, "setup-secret", nil)
	clock := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	n := 0
	svc.idGen = func() string {
		n++
		return "role-" + string(rune('a'+n))
	}
	return svc
}

func TestRoleManageNonAdminForbiddenForEveryAction(t *testing.T) {
	for _, action := range []string{"add", "remove", "list", "bogus", ""} {
		store := &roleStubStore{roles: []*UserRole{{UserID: "u-admin", Role: RoleAdmin}}}
		svc := newTestRoleService(store)
		_, err := svc.Manage(context.Background(), "u-plain", RoleRequest{Action: action, UserID: "u-x", Role: RoleAdmin})
		if !HasCode(err, ErrorForbidden) {
			t.Fatalf("action %q: expected forbidden, got %v", action, err)
		}
		if store.writes != 0 || len(store.roles) != 1 {
			t.Fatalf("action %q: role table mutated", action)
		}
	}
}

func TestRoleManageAddRemoveList(t *testing.T) {
	store := &roleStubStore{roles: []*UserRole{{UserID: "u-admin", Role: RoleAdmin}}}
	svc := newTestRoleService(store)
	ctx := context.Background()

	res, err := svc.Manage(ctx, "u-admin", RoleRequest{Action: "add", UserID: "u-new", Role: "admin"})
	if err != nil || res.Message != "Role added successfully" {
		t.Fatalf("add: %+v, %v", res, err)
	}
	res, err = svc.Manage(ctx, "u-admin", RoleRequest{Action: "list", UserID: "u-new", Role: "admin"})
	if err != nil || !res.Listed || len(res.Roles) != 2 {
		t.Fatalf("list: %+v, %v", res, err)
	}
	if res.Roles[0].UserID != "u-new" {
		t.Fatalf("expected newest first, got %s", res.Roles[0].UserID)
	}
	res, err = svc.Manage(ctx, "u-admin", RoleRequest{Action: "remove", UserID: "u-new", Role: "admin"})
	if err != nil || res.Message != "Role removed successfully" {
		t.Fatalf("remove: %+v, %v", res, err)
	}
	if ok, _ := store.HasRole(ctx, "u-new", RoleAdmin); ok {
		t.Fatalf("role should be gone")
	}
}

func TestRoleManageValidation(t *testing.T) {
	store := &roleStubStore{roles: []*UserRole{{UserID: "u-admin", Role: RoleAdmin}}}
	svc := newTestRoleService(store)
	if _, err := svc.Manage(context.Background(), "u-admin", RoleRequest{Action: "add"}); !HasCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid for missing fields, got %v", err)
	}
	if _, err := svc.Manage(context.Background(), "u-admin", RoleRequest{Action: "promote", UserID: "x", Role: "admin"}); !HasCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid action, got %v", err)
	}
}

func TestRoleManageStoreFailure(t *testing.T) {
	store := &roleStubStore{roles: []*UserRole{{UserID: "u-admin", Role: RoleAdmin}}, addErr: errors.New("unique violation")}
	svc := newTestRoleService(store)
	if _, err := svc.Manage(context.Background(), "u-admin", RoleRequest{Action: "add", UserID: "u", Role: "admin"}); !HasCode(err, ErrorStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestRoleBootstrap(t *testing.T) {
	store := &roleStubStore{}
	svc := newTestRoleService(store)
	ctx := context.Background()

	if err := svc.Bootstrap(ctx, "wrong", "u1"); !HasCode(err, ErrorUnauthorized) {
		t.Fatalf("expected unauthorized for bad secret, got %v", err)
	}
	if err := svc.Bootstrap(ctx, "setup-secret", ""); !HasCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid for missing user, got %v", err)
	}
	if err := svc.Bootstrap(ctx, "setup-secret", "u1"); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if ok, _ := store.HasRole(ctx, "u1", RoleAdmin); !ok {
		t.Fatalf("u1 should be admin")
	}
	if err := svc.Bootstrap(ctx, "setup-secret", "u2"); !HasCode(err, ErrorAdminExists) {
		t.Fatalf("expected admin_exists on second bootstrap, got %v", err)
	}
}

func TestRoleBootstrapWithoutConfiguredSecret(t *testing.T) {
	svc := NewRoleService(&roleStubStore{}, "", nil)
	if err := svc.Bootstrap(context.Background(), "", "u1"); !HasCode(err, ErrorUnauthorized) {
		t.Fatalf("empty configured secret must reject, got %v", err)
	}
}
