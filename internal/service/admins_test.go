package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopmanager/internal/domain"
)

const testPassword = "correct-horse"

func bootstrap(t *testing.T) (fixture, domain.AdminUser) {
	t.Helper()
	f := setup(t)
	ctx := context.Background()
	if err := f.svc.EnsureSuperAdmin(ctx, "Owner@Shop.test", "Owner", testPassword); err != nil {
		t.Fatalf("ensure superadmin: %v", err)
	}
	admins, err := f.svc.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("list admins: %v", err)
	}
	if len(admins) != 1 {
		t.Fatalf("expected one admin, got %d", len(admins))
	}
	return f, admins[0]
}

func actorFor(a domain.AdminUser) domain.Actor {
	return domain.Actor{AdminID: a.ID, Email: a.Email, Role: a.Role, Permissions: a.Permissions}
}

func TestEnsureSuperAdminIsIdempotent(t *testing.T) {
	f, owner := bootstrap(t)
	if owner.Email != "owner@shop.test" || owner.Role != domain.RoleSuperAdmin {
		t.Fatalf("unexpected superadmin %+v", owner)
	}
	for _, p := range domain.AllPermissions {
		if !owner.Permissions.Has(p) {
			t.Fatalf("superadmin missing permission %s", p)
		}
	}

	if err := f.svc.EnsureSuperAdmin(context.Background(), "other@shop.test", "Other", testPassword); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	admins, _ := f.svc.ListAdmins(context.Background())
	if len(admins) != 1 {
		t.Fatalf("expected bootstrap to run once, got %d admins", len(admins))
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f, owner := bootstrap(t)

	res, err := f.svc.Login(ctx, "owner@shop.test", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token == "" || res.Admin.ID != owner.ID || !res.ExpiresAt.After(time.Now()) {
		t.Fatalf("unexpected login result %+v", res)
	}
	actor, err := f.svc.tokens.Parse(res.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if actor.AdminID != owner.ID || actor.Role != domain.RoleSuperAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}

	for _, tc := range []struct{ email, password string }{
		{"owner@shop.test", "wrong-password"},
		{"nobody@shop.test", testPassword},
	} {
		if _, err := f.svc.Login(ctx, tc.email, tc.password); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("login %s: expected unauthorized, got %v", tc.email, err)
		}
	}
}

func TestInvitationSignup(t *testing.T) {
	ctx := context.Background()
	f, owner := bootstrap(t)
	ownerActor := actorFor(owner)

	inv, err := f.svc.CreateInvitation(ctx, ownerActor, "clerk@shop.test")
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if inv.Code == "" || !inv.ExpiresAt.After(time.Now()) {
		t.Fatalf("unexpected invitation %+v", inv)
	}
	if _, err := f.svc.CreateInvitation(ctx, ownerActor, "owner@shop.test"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict inviting existing admin, got %v", err)
	}
	if _, err := f.svc.CreateInvitation(ctx, ownerActor, "not-an-email"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	wrongEmail := SignupInput{Name: "Clerk", Email: "other@shop.test", Password: testPassword, InvitationCode: inv.Code}
	if _, err := f.svc.Signup(ctx, wrongEmail); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected code to be bound to its email, got %v", err)
	}
	short := SignupInput{Name: "Clerk", Email: "clerk@shop.test", Password: "short", InvitationCode: inv.Code}
	if _, err := f.svc.Signup(ctx, short); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected short password to be rejected, got %v", err)
	}

	input := SignupInput{Name: "Clerk", Email: "Clerk@shop.test", Password: testPassword, InvitationCode: inv.Code}
	res, err := f.svc.Signup(ctx, input)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if res.Admin.Role != domain.RoleAdmin || len(res.Admin.Permissions) != 0 {
		t.Fatalf("signup should create an admin without permissions, got %+v", res.Admin)
	}
	if _, err := f.svc.Signup(ctx, input); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected consumed code to be rejected, got %v", err)
	}
}

func TestInvitationExpires(t *testing.T) {
	ctx := context.Background()
	f, owner := bootstrap(t)

	inv, err := f.svc.CreateInvitation(ctx, actorFor(owner), "late@shop.test")
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = f.svc.Signup(ctx, SignupInput{Name: "Late", Email: "late@shop.test", Password: testPassword, InvitationCode: inv.Code})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected expired invitation to be rejected, got %v", err)
	}
}

func TestAdminManagementRules(t *testing.T) {
	ctx := context.Background()
	f, owner := bootstrap(t)
	ownerActor := actorFor(owner)

	clerk, err := f.svc.CreateAdmin(ctx, ownerActor, AdminInput{
		Name:        "Clerk",
		Email:       "clerk@shop.test",
		Password:    testPassword,
		Permissions: domain.Permissions{domain.PermSales, domain.PermReturns},
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if clerk.Role != domain.RoleAdmin || !clerk.Permissions.Has(domain.PermSales) || clerk.Permissions.Has(domain.PermProducts) {
		t.Fatalf("unexpected admin %+v", clerk)
	}
	if _, err := f.svc.CreateAdmin(ctx, ownerActor, AdminInput{Name: "Dup", Email: "clerk@shop.test", Password: testPassword}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected duplicate email conflict, got %v", err)
	}
	if _, err := f.svc.CreateAdmin(ctx, ownerActor, AdminInput{Name: "X", Email: "x@shop.test", Password: testPassword, Role: "root"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected unknown role to be rejected, got %v", err)
	}

	perms := domain.Permissions{domain.PermProducts}
	updated, err := f.svc.UpdateAdmin(ctx, ownerActor, clerk.ID, AdminPatch{Permissions: &perms})
	if err != nil {
		t.Fatalf("update admin: %v", err)
	}
	if !updated.Permissions.Has(domain.PermProducts) || updated.Permissions.Has(domain.PermSales) {
		t.Fatalf("permissions not replaced: %+v", updated.Permissions)
	}

	admin := string(domain.RoleAdmin)
	if _, err := f.svc.UpdateAdmin(ctx, ownerActor, owner.ID, AdminPatch{Role: &admin}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected own role change to be rejected, got %v", err)
	}
	if err := f.svc.DeleteAdmin(ctx, ownerActor, owner.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected self delete to be rejected, got %v", err)
	}

	superRole := string(domain.RoleSuperAdmin)
	promoted, err := f.svc.UpdateAdmin(ctx, ownerActor, clerk.ID, AdminPatch{Role: &superRole})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := f.svc.DeleteAdmin(ctx, actorFor(promoted), owner.ID); err != nil {
		t.Fatalf("delete other superadmin: %v", err)
	}

	second, err := f.svc.CreateAdmin(ctx, actorFor(promoted), AdminInput{Name: "Second", Email: "second@shop.test", Password: testPassword})
	if err != nil {
		t.Fatalf("create second admin: %v", err)
	}
	if err := f.svc.DeleteAdmin(ctx, actorFor(promoted), second.ID); err != nil {
		t.Fatalf("delete admin: %v", err)
	}
	if err := f.svc.DeleteAdmin(ctx, actorFor(promoted), 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	count, err := f.svc.CountActions(ctx, "admin")
	if err != nil {
		t.Fatalf("count actions: %v", err)
	}
	if count == 0 {
		t.Fatalf("expected admin changes to be audited")
	}
}

func TestCurrentAdminAfterDelete(t *testing.T) {
	ctx := context.Background()
	f, owner := bootstrap(t)

	clerk, err := f.svc.CreateAdmin(ctx, actorFor(owner), AdminInput{Name: "Clerk", Email: "clerk@shop.test", Password: testPassword})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, err := f.svc.CurrentAdmin(ctx, actorFor(clerk)); err != nil {
		t.Fatalf("current admin: %v", err)
	}
	if err := f.svc.DeleteAdmin(ctx, actorFor(owner), clerk.ID); err != nil {
		t.Fatalf("delete admin: %v", err)
	}
	if _, err := f.svc.CurrentAdmin(ctx, actorFor(clerk)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for deleted account, got %v", err)
	}
}
