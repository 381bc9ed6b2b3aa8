package user

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/pishro-capital/ledger-core/internal/user/entity"
)

type fakeStore struct {
	users  map[int64]*entity.User
	nextID int64
}

func newFakeStore() *fakeStore { return &fakeStore{users: map[int64]*entity.User{}} }

func (f *fakeStore) Create(_ context.Context, u *entity.User) (int64, error) {
	f.nextID++
	cp := *u
	cp.ID = f.nextID
	f.users[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetByTelegramID(_ context.Context, telegramID int64) (*entity.User, error) {
	for _, u := range f.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) GetByPhone(_ context.Context, phone string) (*entity.User, error) {
	for _, u := range f.users {
		if u.PhoneNumber == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) Verify(_ context.Context, id int64) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.IsVerified = true
	return nil
}

func (f *fakeStore) UpdateRole(_ context.Context, id int64, role entity.Role) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = role
	return nil
}

func (f *fakeStore) List(_ context.Context, limit, offset int) ([]*entity.User, error) {
	out := make([]*entity.User, 0, len(f.users))
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (f *fakeStore) Search(_ context.Context, query string) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range f.users {
		if strings.Contains(u.Name, query) || strings.Contains(u.PhoneNumber, query) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return NewService(store, zap.NewNop().Sugar()), store
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"09123456789", "09123456789", true},
		{"+989123456789", "09123456789", true},
		{"989123456789", "09123456789", true},
		{"0912 345 6789", "09123456789", true},
		{"0912-345-6789", "09123456789", true},
		{"9123456789", "", false},  // too short after folding
		{"08123456789", "", false}, // not a mobile prefix
		{"0912345678a", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, err := NormalizePhone(c.in)
		if c.ok != (err == nil) {
			t.Errorf("NormalizePhone(%q) err=%v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("NormalizePhone(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, 1001, "+989123456789", "Sara")
	if err != nil {
		t.Fatal(err)
	}
	if u.PhoneNumber != "09123456789" {
		t.Fatalf("phone=%q want normalized form", u.PhoneNumber)
	}
	if u.Role != entity.RoleInvestor || u.IsVerified {
		t.Fatalf("new users start as unverified investors: %+v", u)
	}

	// the normalized phone collides with its international spelling
	if _, err := svc.Register(ctx, 1002, "09123456789", "Sara Again"); !errors.Is(err, ErrPhoneInUse) {
		t.Fatalf("want ErrPhoneInUse, got %v", err)
	}
	if _, err := svc.Register(ctx, 1001, "09129999999", "Other"); !errors.Is(err, ErrTelegramInUse) {
		t.Fatalf("want ErrTelegramInUse, got %v", err)
	}
	if _, err := svc.Register(ctx, 1003, "09129999999", "   "); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("want ErrNameRequired, got %v", err)
	}
	if _, err := svc.Register(ctx, 1003, "12345", "Bad Phone"); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("want ErrInvalidPhone, got %v", err)
	}
}

func TestVerifyAndRoles(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, 1001, "09123456789", "Sara")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Verify(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if !store.users[u.ID].IsVerified {
		t.Fatal("verify did not stick")
	}
	if err := svc.Verify(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}

	if err := svc.UpdateRole(ctx, u.ID, entity.RoleAccountant); err != nil {
		t.Fatal(err)
	}
	got, err := svc.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != entity.RoleAccountant {
		t.Fatalf("role=%s want accountant", got.Role)
	}
	if err := svc.UpdateRole(ctx, u.ID, "auditor"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("want ErrInvalidRole, got %v", err)
	}
}

func TestRolePermissions(t *testing.T) {
	cases := []struct {
		role    entity.Role
		record  bool
		valuate bool
	}{
		{entity.RoleInvestor, false, false},
		{entity.RoleAccountant, true, false},
		{entity.RoleAdmin, true, true},
	}
	for _, c := range cases {
		if c.role.CanRecord() != c.record {
			t.Errorf("%s.CanRecord()=%v want %v", c.role, c.role.CanRecord(), c.record)
		}
		if c.role.CanValuate() != c.valuate {
			t.Errorf("%s.CanValuate()=%v want %v", c.role, c.role.CanValuate(), c.valuate)
		}
	}
}

func TestLookupsAndChatDirectory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, 1001, "09123456789", "Sara")
	if err != nil {
		t.Fatal(err)
	}

	byTg, err := svc.GetByTelegramID(ctx, 1001)
	if err != nil || byTg.ID != u.ID {
		t.Fatalf("by telegram: %v %+v", err, byTg)
	}
	byPhone, err := svc.GetByPhone(ctx, "+98 912 345 6789")
	if err != nil || byPhone.ID != u.ID {
		t.Fatalf("by phone should normalize first: %v %+v", err, byPhone)
	}
	if _, err := svc.GetByTelegramID(ctx, 424242); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}

	chat, err := svc.TelegramChatID(ctx, u.ID)
	if err != nil || chat != 1001 {
		t.Fatalf("chat id=%d err=%v want 1001", chat, err)
	}
}

func TestSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, 1001, "09123456789", "Sara Ahmadi"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(ctx, 1002, "09351112233", "Reza Karimi"); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Search(ctx, "Sara")
	if err != nil || len(got) != 1 {
		t.Fatalf("search by name: %v len=%d", err, len(got))
	}
	got, err = svc.Search(ctx, "0935")
	if err != nil || len(got) != 1 {
		t.Fatalf("search by phone: %v len=%d", err, len(got))
	}
	got, err = svc.Search(ctx, "   ")
	if err != nil || len(got) != 0 {
		t.Fatalf("blank search should be empty, got %d", len(got))
	}
}
