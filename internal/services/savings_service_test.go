package services

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"ahorro/internal/adapters"
	"ahorro/internal/advisor"
	"ahorro/internal/amqp"
	"ahorro/internal/backup"
	"ahorro/internal/core"
	"ahorro/internal/kv/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
}

func (f *fakePublisher) PublishLedgerEvent(_ context.Context, e amqp.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakePublisher) kinds() []amqp.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]amqp.EventKind, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Kind)
	}
	return out
}

type fakeAdvisor struct {
	gotBalance, gotGoal int64
	gotQuery            string
}

func (f *fakeAdvisor) Advise(_ context.Context, balance, goal int64, query string) string {
	f.gotBalance, f.gotGoal, f.gotQuery = balance, goal, query
	return "ok"
}

// failingStore rejects writes once armed.
type failingStore struct {
	*memory.Store
	fail bool
}

func (f *failingStore) SetMany(ctx context.Context, pairs map[string]string) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.SetMany(ctx, pairs)
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, mem *memory.Store) (*SavingsService, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	svc := NewSavingsService(adapters.NewSavingsStore(mem, nil), Options{
		Publisher: pub,
		Now:       func() time.Time { return fixedNow },
		NewID:     func() string { return "id1" },
	})
	return svc, pub
}

func started(t *testing.T, mem *memory.Store, challengeID string) (*SavingsService, *fakePublisher) {
	t.Helper()
	svc, pub := newTestService(t, mem)
	if _, err := svc.Start(context.Background(), core.Dark, challengeID); err != nil {
		t.Fatalf("start: %v", err)
	}
	return svc, pub
}

func TestOperationsRequireStart(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.New())

	if _, err := svc.Toggle(ctx, 1); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("toggle: expected ErrNotStarted, got %v", err)
	}
	if _, err := svc.Withdraw(ctx, "5"); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("withdraw: expected ErrNotStarted, got %v", err)
	}
	if _, err := svc.SelectChallenge(ctx, "52"); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("select: expected ErrNotStarted, got %v", err)
	}
}

func TestStartDefaultsAndPersistsSession(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, _ := newTestService(t, mem)

	st, err := svc.Start(ctx, core.Light, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !st.Started || st.Challenge.ID != "250" || st.Theme != core.Light {
		t.Fatalf("unexpected state %+v", st)
	}
	if len(st.Zones) != 5 {
		t.Fatalf("expected 5 zones, got %d", len(st.Zones))
	}
	snap := mem.Snapshot()
	if snap[adapters.KeyTheme] != "light" || snap[adapters.KeyLastChallengeID] != "250" {
		t.Fatalf("session not stored: %v", snap)
	}
	if _, ok := snap[adapters.DataKey("250")]; ok {
		t.Fatalf("start must not write the ledger")
	}

	if _, err := svc.Start(ctx, "neon", "250"); !errors.Is(err, core.ErrInvalidTheme) {
		t.Fatalf("expected ErrInvalidTheme, got %v", err)
	}
	if _, err := svc.Start(ctx, core.Dark, "nope"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestToggleCommitsAndPublishes(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, pub := started(t, mem, "52")

	res, err := svc.Toggle(ctx, 10)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if res.Action != core.ActionDeposited || res.State.Balances.NetBalance != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
	if mem.Snapshot()[adapters.DataKey("52")] != "[10]" {
		t.Fatalf("ledger not stored: %v", mem.Snapshot())
	}

	if _, err := svc.Toggle(ctx, 10); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !slices.Equal(pub.kinds(), []amqp.EventKind{amqp.EventDeposited, amqp.EventRemoved}) {
		t.Fatalf("unexpected events %v", pub.kinds())
	}

	if _, err := svc.Toggle(ctx, 53); !errors.Is(err, ErrSlotOutOfRange) {
		t.Fatalf("expected ErrSlotOutOfRange, got %v", err)
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	svc, pub := started(t, memory.New(), "52")
	pub.err = errors.New("broker down")

	if _, err := svc.Toggle(context.Background(), 3); err != nil {
		t.Fatalf("publish errors must be swallowed: %v", err)
	}
}

func TestFailedCommitKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{Store: memory.New()}
	svc := NewSavingsService(adapters.NewSavingsStore(fs, nil), Options{Now: func() time.Time { return fixedNow }})
	if _, err := svc.Start(ctx, core.Dark, "52"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Toggle(ctx, 5); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	fs.fail = true
	if _, err := svc.Toggle(ctx, 6); err == nil {
		t.Fatalf("expected write error")
	}
	st, err := svc.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !slices.Equal(st.Selected, []int64{5}) {
		t.Fatalf("in-memory state changed after failed write: %v", st.Selected)
	}
}

func TestWithdrawAndCashOut(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, pub := started(t, mem, "100")
	for _, v := range []int64{10, 20, 70} {
		if _, err := svc.Toggle(ctx, v); err != nil {
			t.Fatalf("toggle %d: %v", v, err)
		}
	}

	res, err := svc.Withdraw(ctx, "25")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !slices.Equal(res.Loaned, []int64{70}) || res.State.Balances.NetBalance != 30 {
		t.Fatalf("unexpected withdraw result %+v", res)
	}
	want := "Se ha registrado el retiro de $25. Se han marcado 1 casillas en ROJO como 'Préstamo'."
	if res.Message != want {
		t.Fatalf("message = %q", res.Message)
	}
	if mem.Snapshot()[adapters.LoansKey("100")] != "[70]" {
		t.Fatalf("loans not stored")
	}

	if _, err := svc.Withdraw(ctx, "abc"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Withdraw(ctx, "31"); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	_, err = svc.CashOut(ctx, false)
	var ce *ConfirmationError
	if !errors.As(err, &ce) || !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	if !strings.Contains(ce.Prompt, "$30") {
		t.Fatalf("prompt should carry net balance: %q", ce.Prompt)
	}

	out, err := svc.CashOut(ctx, true)
	if err != nil {
		t.Fatalf("cash out: %v", err)
	}
	if out.CashedOut != 30 || len(out.State.Selected) != 0 || len(out.State.Loaned) != 0 {
		t.Fatalf("unexpected cash out %+v", out)
	}
	if mem.Snapshot()[adapters.DataKey("100")] != "[]" {
		t.Fatalf("cleared ledger not stored")
	}
	kinds := pub.kinds()
	if kinds[len(kinds)-1] != amqp.EventCashOut {
		t.Fatalf("expected cash_out event last, got %v", kinds)
	}
}

func TestSelectChallengeDoesNotWriteLedger(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, _ := started(t, mem, "52")
	if _, err := svc.Toggle(ctx, 1); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	st, err := svc.SelectChallenge(ctx, "100")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if st.Challenge.ID != "100" || len(st.Selected) != 0 {
		t.Fatalf("unexpected state %+v", st)
	}
	snap := mem.Snapshot()
	if _, ok := snap[adapters.DataKey("100")]; ok {
		t.Fatalf("selecting must not write the target ledger")
	}
	if snap[adapters.KeyLastChallengeID] != "100" {
		t.Fatalf("last challenge not updated")
	}
	if st.Balances.GlobalTotal != 1 {
		t.Fatalf("global total should include stored 52 ledger, got %d", st.Balances.GlobalTotal)
	}

	back, err := svc.SelectChallenge(ctx, "52")
	if err != nil || !slices.Equal(back.Selected, []int64{1}) {
		t.Fatalf("switching back should reload ledger: %+v err=%v", back, err)
	}
}

func TestCreateCustomChallenges(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, _ := started(t, mem, "")

	st, err := svc.CreateRangeChallenge(ctx, "1", "10")
	if err != nil {
		t.Fatalf("create range: %v", err)
	}
	if st.Challenge.ID != "custom_range_id1" || st.Challenge.GoalAmount != 55 {
		t.Fatalf("unexpected challenge %+v", st.Challenge)
	}
	if _, ok := mem.Snapshot()[adapters.ConfigKey("custom_range_id1")]; !ok {
		t.Fatalf("custom config not stored")
	}

	if _, err := svc.CreateRangeChallenge(ctx, "5", "5"); !errors.Is(err, core.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := svc.CreateProgressionChallenge(ctx, "50", "x", "52"); !errors.Is(err, core.ErrNotInteger) {
		t.Fatalf("expected ErrNotInteger, got %v", err)
	}

	st, err = svc.CreateProgressionChallenge(ctx, "50", "10", "52")
	if err != nil || st.Challenge.GoalAmount != 15860 {
		t.Fatalf("create progression: %+v err=%v", st.Challenge, err)
	}

	list, err := svc.ListChallenges(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("expected 3 presets and 2 custom, got %d", len(list))
	}
}

func TestRestoreRequiresThemeAndChallenge(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, _ := started(t, mem, "52")
	if _, err := svc.Toggle(ctx, 7); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	reloaded, _ := newTestService(t, mem)
	if err := reloaded.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	st, _ := reloaded.State(ctx)
	if !st.Started || st.Challenge.ID != "52" || !slices.Equal(st.Selected, []int64{7}) {
		t.Fatalf("session not restored: %+v", st)
	}

	if err := svc.Logout(ctx, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected confirmation, got %v", err)
	}
	if err := svc.Logout(ctx, true); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := mem.Snapshot()[adapters.DataKey("52")]; !ok {
		t.Fatalf("logout must keep ledger data")
	}

	fresh, _ := newTestService(t, mem)
	if err := fresh.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if st, _ := fresh.State(ctx); st.Started {
		t.Fatalf("session without theme must show start screen")
	}
}

func TestThemeAndProfile(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, _ := started(t, mem, "52")

	st, err := svc.ToggleTheme(ctx)
	if err != nil || st.Theme != core.Light {
		t.Fatalf("toggle theme: %+v err=%v", st.Theme, err)
	}
	st, err = svc.UpdateProfile(ctx, core.UserProfile{Name: "Ana"})
	if err != nil || st.Profile.Name != "Ana" {
		t.Fatalf("update profile: %+v err=%v", st.Profile, err)
	}
	if !strings.Contains(mem.Snapshot()[adapters.KeyProfile], "Ana") {
		t.Fatalf("profile not stored")
	}
}

func TestAdviseUsesNetBalanceAndGoal(t *testing.T) {
	ctx := context.Background()
	adv := &fakeAdvisor{}
	svc := NewSavingsService(adapters.NewSavingsStore(memory.New(), nil), Options{Advisor: adv})

	if _, err := svc.Advise(ctx, "hola"); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if _, err := svc.Start(ctx, core.Dark, "52"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Toggle(ctx, 40); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := svc.Withdraw(ctx, "5"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if _, err := svc.Advise(ctx, "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	msg, err := svc.Advise(ctx, "¿voy bien?")
	if err != nil || msg.Text != "ok" || msg.Role != advisor.RoleModel {
		t.Fatalf("unexpected reply %+v err=%v", msg, err)
	}
	if adv.gotBalance != 0 || adv.gotGoal != 1378 || adv.gotQuery != "¿voy bien?" {
		t.Fatalf("advisor got balance=%d goal=%d query=%q", adv.gotBalance, adv.gotGoal, adv.gotQuery)
	}
	if n := len(svc.Transcript()); n != 3 {
		t.Fatalf("expected greeting plus 2 messages, got %d", n)
	}
}

func TestBackupRoundTripReloadsSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := started(t, memory.New(), "52")
	if _, err := svc.Toggle(ctx, 9); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	b, err := svc.ExportBackup(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := b.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	other, pub := newTestService(t, memory.New())
	if _, err := other.ImportBackup(ctx, data, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected confirmation, got %v", err)
	}
	if _, err := other.ImportBackup(ctx, []byte(`{"profile":{}}`), true); !errors.Is(err, backup.ErrInvalidBackup) {
		t.Fatalf("expected ErrInvalidBackup, got %v", err)
	}
	n, err := other.ImportBackup(ctx, data, true)
	if err != nil || n == 0 {
		t.Fatalf("import: n=%d err=%v", n, err)
	}
	st, _ := other.State(ctx)
	if !st.Started || st.Challenge.ID != "52" || !slices.Equal(st.Selected, []int64{9}) {
		t.Fatalf("import should restore session: %+v", st)
	}
	if !slices.Equal(pub.kinds(), []amqp.EventKind{amqp.EventImported}) {
		t.Fatalf("expected imported event, got %v", pub.kinds())
	}
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	svc, _ := started(t, memory.New(), "52")
	if _, err := svc.Toggle(ctx, 12); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	var buf bytes.Buffer
	name, err := svc.ExportCSV(ctx, &buf)
	if err != nil {
		t.Fatalf("export csv: %v", err)
	}
	if name != backup.CSVFileName("52") {
		t.Fatalf("unexpected file name %q", name)
	}
	if !strings.HasPrefix(buf.String(), "Fecha,Tipo,Monto") || !strings.Contains(buf.String(), "12") {
		t.Fatalf("unexpected csv %q", buf.String())
	}
	if err := svc.ImportCSV(ctx, strings.NewReader("")); !errors.Is(err, backup.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestCashOutLeavesOtherChallengesUntouched(t *testing.T) {
	ctx := context.Background()
	other := map[string]string{
		adapters.DataKey("52"):    "[1,2,3]",
		adapters.LoansKey("52"):   "[3]",
		adapters.HistoryKey("52"): `[{"value":1,"timestamp":"2025-01-01T00:00:00.000Z","type":"deposit"}]`,
	}
	seed := make(map[string]string, len(other))
	for k, v := range other {
		seed[k] = v
	}
	mem := memory.NewWith(seed)
	svc, _ := started(t, mem, "100")
	if _, err := svc.Toggle(ctx, 10); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	if _, err := svc.CashOut(ctx, true); err != nil {
		t.Fatalf("cash out: %v", err)
	}

	snap := mem.Snapshot()
	for k, want := range other {
		if snap[k] != want {
			t.Fatalf("%s changed: got %q, want %q", k, snap[k], want)
		}
	}
	if snap[adapters.DataKey("100")] != "[]" || snap[adapters.HistoryKey("100")] != "[]" {
		t.Fatalf("active challenge not cleared: %v", snap)
	}
}

func TestOversizedCustomChallengeIsRejectedBeforeCommit(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, _ := started(t, mem, "")

	cases := []struct {
		name   string
		create func() (State, error)
		want   error
	}{
		{"huge range", func() (State, error) { return svc.CreateRangeChallenge(ctx, "1", "100000000000000") }, core.ErrInvalidRange},
		{"range above grid bound", func() (State, error) { return svc.CreateRangeChallenge(ctx, "1", "1000000000") }, core.ErrInvalidRange},
		{"progression too long", func() (State, error) { return svc.CreateProgressionChallenge(ctx, "1", "1000000000000", "10000000") }, core.ErrInvalidProgression},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.create(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	snap := mem.Snapshot()
	if snap[adapters.KeyLastChallengeID] != "250" {
		t.Fatalf("active challenge must not change: %v", snap)
	}
	for k := range snap {
		if strings.HasPrefix(k, adapters.ConfigKey("")) {
			t.Fatalf("rejected challenge was stored under %s", k)
		}
	}
	st, err := svc.State(ctx)
	if err != nil || st.Challenge.ID != "250" {
		t.Fatalf("state after rejection: %+v err=%v", st.Challenge, err)
	}
}

func TestRestoreSkipsOversizedStoredChallenge(t *testing.T) {
	ctx := context.Background()
	id := core.RangeID("big")
	mem := memory.NewWith(map[string]string{
		adapters.KeyTheme:           "dark",
		adapters.KeyLastChallengeID: id,
		adapters.ConfigKey(id):      `{"id":"` + id + `","name":"BIG","startNumber":1,"endNumber":100000000000000,"totalItems":100000000000000,"goalAmount":1}`,
	})
	svc, _ := newTestService(t, mem)

	if err := svc.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := svc.Toggle(ctx, 1); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("oversized stored challenge must not be activated, got %v", err)
	}
}
