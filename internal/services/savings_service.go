package services

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ahorro/internal/adapters"
	"ahorro/internal/advisor"
	"ahorro/internal/amqp"
	"ahorro/internal/backup"
	"ahorro/internal/core"
	"ahorro/internal/log"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, e amqp.LedgerEvent) error
}

type Options struct {
	Publisher EventPublisher
	Advisor   advisor.Advisor
	Logger    *log.Logger
	Now       func() time.Time
	NewID     func() string
}

// State is the view of the active session returned after every operation.
type State struct {
	Started   bool                 `json:"started"`
	Theme     core.ThemeMode       `json:"theme,omitempty"`
	Challenge core.ChallengeConfig `json:"challenge"`
	Selected  []int64              `json:"selected"`
	Loaned    []int64              `json:"loaned"`
	Balances  core.Balances        `json:"balances"`
	Progress  float64              `json:"progress"`
	Zones     []core.Zone          `json:"zones"`
	Profile   core.UserProfile     `json:"profile"`
}

type ToggleResult struct {
	Action core.ToggleAction `json:"action"`
	State  State             `json:"state"`
}

type WithdrawResult struct {
	Amount  float64 `json:"amount"`
	Loaned  []int64 `json:"loaned"`
	Message string  `json:"message"`
	State   State   `json:"state"`
}

type CashOutResult struct {
	CashedOut int64  `json:"cashedOut"`
	Message   string `json:"message"`
	State     State  `json:"state"`
}

// SavingsService owns the single active session. Every operation holds the
// mutex, so state changes are applied one at a time in arrival order.
type SavingsService struct {
	mu         sync.Mutex
	store      *adapters.SavingsStore
	publisher  EventPublisher
	advisor    advisor.Advisor
	transcript *advisor.Transcript
	logger     *log.Logger
	now        func() time.Time
	newID      func() string

	started   bool
	theme     core.ThemeMode
	challenge core.ChallengeConfig
	ledger    core.Ledger
	profile   core.UserProfile
}

func NewSavingsService(store *adapters.SavingsStore, opts Options) *SavingsService {
	s := &SavingsService{
		store:      store,
		publisher:  opts.Publisher,
		advisor:    opts.Advisor,
		transcript: advisor.NewTranscript(),
		logger:     opts.Logger,
		now:        opts.Now,
		newID:      opts.NewID,
		challenge:  core.DefaultChallenge(),
	}
	if s.advisor == nil {
		s.advisor = advisor.NewService(nil)
	}
	if s.logger == nil {
		s.logger = log.Wrap(nil, log.ComponentSavings)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Restore reloads the persisted session. The start screen is skipped only
// when both a theme and a resolvable last challenge were stored.
func (s *SavingsService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked(ctx)
}

func (s *SavingsService) restoreLocked(ctx context.Context) error {
	sess, err := s.store.LoadSession(ctx)
	if err != nil {
		return err
	}
	s.profile = sess.Profile
	s.started = false
	s.theme = ""
	s.ledger = core.Ledger{}
	if !sess.HasActiveSession() {
		return nil
	}
	c, ok, err := s.store.LoadChallenge(ctx, sess.LastChallengeID)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.WarnContext(ctx, "Last challenge no longer resolvable", log.FieldChallengeID, sess.LastChallengeID)
		return nil
	}
	l, err := s.store.LoadLedger(ctx, c.ID)
	if err != nil {
		return err
	}
	s.started, s.theme, s.challenge, s.ledger = true, sess.Theme, c, l
	s.logger.InfoContext(ctx, "Session restored", log.FieldChallengeID, c.ID, "theme", sess.Theme)
	return nil
}

// Start leaves the start screen with theme and challenge. An empty id
// selects the default challenge.
func (s *SavingsService) Start(ctx context.Context, theme core.ThemeMode, challengeID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := core.ParseTheme(string(theme)); err != nil {
		return State{}, err
	}
	if strings.TrimSpace(challengeID) == "" {
		challengeID = core.DefaultChallenge().ID
	}
	c, err := s.resolveLocked(ctx, challengeID)
	if err != nil {
		return State{}, err
	}
	l, err := s.store.LoadLedger(ctx, c.ID)
	if err != nil {
		return State{}, err
	}
	if err := s.commitLocked(ctx, theme, c, s.profile, l, core.Transition{Persist: false}); err != nil {
		return State{}, err
	}
	s.started, s.theme, s.challenge, s.ledger = true, theme, c, l
	s.logger.InfoContext(ctx, "Session started", log.FieldChallengeID, c.ID, "theme", theme)
	return s.stateLocked(ctx)
}

func (s *SavingsService) State(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(ctx)
}

// Toggle flips one grid slot of the active challenge.
func (s *SavingsService) Toggle(ctx context.Context, value int64) (ToggleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ToggleResult{}, ErrNotStarted
	}
	if !s.challenge.Contains(value) {
		return ToggleResult{}, fmt.Errorf("%d: %w", value, ErrSlotOutOfRange)
	}

	next := s.ledger.Clone()
	action := next.Toggle(value, s.now())
	if err := s.applyLocked(ctx, next); err != nil {
		return ToggleResult{}, err
	}

	kind := map[core.ToggleAction]amqp.EventKind{
		core.ActionDeposited: amqp.EventDeposited,
		core.ActionRemoved:   amqp.EventRemoved,
		core.ActionRepaid:    amqp.EventRepaid,
	}[action]
	ev := amqp.NewLedgerEvent(kind, s.challenge.ID, float64(value), s.ledger.NetBalance())
	ev.Slots = []int64{value}
	s.publish(ctx, ev)

	s.logger.InfoContext(ctx, "Slot toggled",
		log.FieldChallengeID, s.challenge.ID,
		log.FieldSlotValue, value,
		log.FieldAction, action)

	st, err := s.stateLocked(ctx)
	return ToggleResult{Action: action, State: st}, err
}

// Withdraw parses amountText as pesos and loans slots to cover it.
func (s *SavingsService) Withdraw(ctx context.Context, amountText string) (WithdrawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return WithdrawResult{}, ErrNotStarted
	}
	amount, err := core.ParseMoney(amountText)
	if err != nil {
		return WithdrawResult{}, err
	}

	next := s.ledger.Clone()
	loaned, err := next.Withdraw(amount, s.now())
	if err != nil {
		return WithdrawResult{}, err
	}
	if err := s.applyLocked(ctx, next); err != nil {
		return WithdrawResult{}, err
	}

	ev := amqp.NewLedgerEvent(amqp.EventWithdrawal, s.challenge.ID, -amount.Pesos(), s.ledger.NetBalance())
	ev.Slots = loaned
	s.publish(ctx, ev)

	s.logger.InfoContext(ctx, "Withdrawal registered",
		log.FieldChallengeID, s.challenge.ID,
		log.FieldAmountCents, amount.Cents,
		"loaned_slots", len(loaned))

	st, err := s.stateLocked(ctx)
	return WithdrawResult{
		Amount: amount.Pesos(),
		Loaned: loaned,
		Message: fmt.Sprintf("Se ha registrado el retiro de $%s. Se han marcado %d casillas en ROJO como 'Préstamo'.",
			strconv.FormatFloat(amount.Pesos(), 'f', -1, 64), len(loaned)),
		State: st,
	}, err
}

// CashOut empties the active ledger once confirmed.
func (s *SavingsService) CashOut(ctx context.Context, confirm bool) (CashOutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return CashOutResult{}, ErrNotStarted
	}
	net := s.ledger.NetBalance()
	if !confirm {
		return CashOutResult{}, confirmation(fmt.Sprintf(
			"¿Estás seguro de COBRAR TODO (%s) y REINICIAR esta plantilla? Esta acción no se puede deshacer.",
			core.FormatMXN(net)))
	}

	next := s.ledger.Clone()
	next.CashOut()
	if err := s.applyLocked(ctx, next); err != nil {
		return CashOutResult{}, err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventCashOut, s.challenge.ID, float64(net), 0))
	s.logger.InfoContext(ctx, "Challenge cashed out", log.FieldChallengeID, s.challenge.ID, "amount", net)

	st, err := s.stateLocked(ctx)
	return CashOutResult{
		CashedOut: net,
		Message:   "¡Felicidades! Has cobrado tus ahorros. La plantilla se ha reiniciado.",
		State:     st,
	}, err
}

// ListChallenges returns the presets followed by stored custom challenges.
func (s *SavingsService) ListChallenges(ctx context.Context) ([]core.ChallengeConfig, error) {
	custom, err := s.store.ListCustomConfigs(ctx)
	if err != nil {
		return nil, err
	}
	return append(core.Presets(), custom...), nil
}

// SelectChallenge switches the active challenge. The previous working set
// was already persisted by the operation that produced it, so the switch
// loads the target ledger and never writes one.
func (s *SavingsService) SelectChallenge(ctx context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return State{}, ErrNotStarted
	}
	c, err := s.resolveLocked(ctx, id)
	if err != nil {
		return State{}, err
	}
	return s.switchLocked(ctx, c)
}

// CreateRangeChallenge builds, stores and activates a consecutive challenge.
func (s *SavingsService) CreateRangeChallenge(ctx context.Context, start, end string) (State, error) {
	a, b, err := core.ParseRangeInput(start, end)
	if err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return State{}, ErrNotStarted
	}
	c, err := core.NewRangeChallenge(a, b, core.RangeID(s.newID()))
	if err != nil {
		return State{}, err
	}
	return s.switchLocked(ctx, c)
}

// CreateProgressionChallenge builds, stores and activates a weekly
// progression challenge.
func (s *SavingsService) CreateProgressionChallenge(ctx context.Context, start, increment, count string) (State, error) {
	a, inc, n, err := core.ParseProgressionInput(start, increment, count)
	if err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return State{}, ErrNotStarted
	}
	c, err := core.NewProgressionChallenge(a, inc, n, core.ProgressionID(s.newID()))
	if err != nil {
		return State{}, err
	}
	return s.switchLocked(ctx, c)
}

func (s *SavingsService) switchLocked(ctx context.Context, c core.ChallengeConfig) (State, error) {
	l, err := s.store.LoadLedger(ctx, c.ID)
	if err != nil {
		return State{}, err
	}
	if err := s.commitLocked(ctx, s.theme, c, s.profile, l, core.Transition{Persist: false}); err != nil {
		return State{}, err
	}
	prev := s.challenge.ID
	s.challenge, s.ledger = c, l
	s.logger.InfoContext(ctx, "Challenge switched", "from", prev, log.FieldChallengeID, c.ID)
	return s.stateLocked(ctx)
}

// UpdateProfile replaces the profile. Fields are free-form.
func (s *SavingsService) UpdateProfile(ctx context.Context, p core.UserProfile) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commitLocked(ctx, s.theme, s.challenge, p, s.ledger, core.Transition{Persist: false}); err != nil {
		return State{}, err
	}
	s.profile = p
	return s.stateLocked(ctx)
}

func (s *SavingsService) ToggleTheme(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return State{}, ErrNotStarted
	}
	theme := s.theme.Toggle()
	if err := s.commitLocked(ctx, theme, s.challenge, s.profile, s.ledger, core.Transition{Persist: false}); err != nil {
		return State{}, err
	}
	s.theme = theme
	return s.stateLocked(ctx)
}

// Logout returns to the start screen and forgets the theme. Ledger data
// stays stored.
func (s *SavingsService) Logout(ctx context.Context, confirm bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !confirm {
		return confirmation("¿Estás seguro de cerrar sesión y volver al inicio?")
	}
	if err := s.store.ClearTheme(ctx); err != nil {
		return err
	}
	s.started, s.theme = false, ""
	s.logger.InfoContext(ctx, "Session closed")
	return nil
}

// GlobalTotal sums net balances across the presets and the active
// challenge, using the in-memory ledger for the active one.
func (s *SavingsService) GlobalTotal(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalTotalLocked(ctx)
}

func (s *SavingsService) globalTotalLocked(ctx context.Context) (int64, error) {
	var ids []string
	for _, p := range core.Presets() {
		if p.ID != s.challenge.ID {
			ids = append(ids, p.ID)
		}
	}

	balances := make([]int64, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			n, err := s.store.NetBalance(gctx, id)
			balances[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("global total: %w", err)
	}

	total := s.ledger.NetBalance()
	for _, b := range balances {
		total += b
	}
	return total, nil
}

func (s *SavingsService) Report(ctx context.Context) (core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return core.Report{}, ErrNotStarted
	}
	global, err := s.globalTotalLocked(ctx)
	if err != nil {
		return core.Report{}, err
	}
	return core.BuildReport(s.challenge, s.ledger, global, s.profile), nil
}

// Advise asks the advisor about the active challenge. The lock is released
// while waiting so the grid stays usable.
func (s *SavingsService) Advise(ctx context.Context, query string) (advisor.Message, error) {
	if strings.TrimSpace(query) == "" {
		return advisor.Message{}, ErrEmptyQuery
	}
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return advisor.Message{}, ErrNotStarted
	}
	balance, goal := s.ledger.NetBalance(), s.challenge.GoalAmount
	s.mu.Unlock()

	return s.transcript.Ask(ctx, s.advisor, balance, goal, query), nil
}

func (s *SavingsService) Transcript() []advisor.Message {
	return s.transcript.Messages()
}

func (s *SavingsService) ExportBackup(ctx context.Context) (backup.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return backup.Export(ctx, s.store, backup.Meta{
		Profile:            s.profile,
		Theme:              s.theme,
		CurrentChallengeID: s.challenge.ID,
	}, s.now())
}

// ImportBackup overwrites stored keys with the backup and reloads the
// session from storage.
func (s *SavingsService) ImportBackup(ctx context.Context, data []byte, confirm bool) (int, error) {
	if _, err := backup.Parse(data); err != nil {
		return 0, err
	}
	if !confirm {
		return 0, confirmation("Restaurar este respaldo sobrescribirá los datos guardados. ¿Continuar?")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := backup.Import(ctx, s.store, data)
	if err != nil {
		return 0, err
	}
	if err := s.restoreLocked(ctx); err != nil {
		return n, err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventImported, s.challenge.ID, float64(n), s.ledger.NetBalance()))
	s.logger.InfoContext(ctx, "Backup restored", log.FieldKeys, n, "started", s.started)
	return n, nil
}

// ExportCSV writes the active challenge history and returns the file name.
func (s *SavingsService) ExportCSV(ctx context.Context, w io.Writer) (string, error) {
	s.mu.Lock()
	history := slices.Clone(s.ledger.History)
	id := s.challenge.ID
	s.mu.Unlock()

	if err := backup.WriteCSV(w, history, time.Local); err != nil {
		return "", err
	}
	return backup.CSVFileName(id), nil
}

func (s *SavingsService) ImportCSV(_ context.Context, r io.Reader) error {
	return backup.ImportCSV(r)
}

func (s *SavingsService) resolveLocked(ctx context.Context, id string) (core.ChallengeConfig, error) {
	c, ok, err := s.store.LoadChallenge(ctx, id)
	if err != nil {
		return core.ChallengeConfig{}, err
	}
	if !ok {
		return core.ChallengeConfig{}, fmt.Errorf("%q: %w", id, ErrChallengeNotFound)
	}
	return c, nil
}

// applyLocked persists next as the active ledger and installs it only when
// the write succeeded.
func (s *SavingsService) applyLocked(ctx context.Context, next core.Ledger) error {
	if err := s.commitLocked(ctx, s.theme, s.challenge, s.profile, next, core.Transition{Persist: true}); err != nil {
		return err
	}
	s.ledger = next
	return nil
}

func (s *SavingsService) commitLocked(ctx context.Context, theme core.ThemeMode, c core.ChallengeConfig, p core.UserProfile, l core.Ledger, t core.Transition) error {
	sess := adapters.Session{Theme: theme, LastChallengeID: c.ID, Profile: p}
	var ledger *core.Ledger
	if t.Persist {
		ledger = &l
	}
	if err := s.store.Commit(ctx, sess, c, ledger); err != nil {
		s.logger.LogError(ctx, "Persisting state failed", err, log.OpSync, log.NewFields().WithChallenge(c.ID))
		return err
	}
	return nil
}

// publish reports a ledger change. Failures are logged and never fail the
// operation, which has already been stored.
func (s *SavingsService) publish(ctx context.Context, e amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event", "error", err, "kind", e.Kind, log.FieldChallengeID, e.ChallengeID)
	}
}

func (s *SavingsService) stateLocked(ctx context.Context) (State, error) {
	st := State{
		Started:   s.started,
		Theme:     s.theme,
		Challenge: s.challenge,
		Selected:  slices.Clone(s.ledger.Selected),
		Loaned:    slices.Clone(s.ledger.Loaned),
		Profile:   s.profile,
	}
	if st.Selected == nil {
		st.Selected = []int64{}
	}
	if st.Loaned == nil {
		st.Loaned = []int64{}
	}
	if !s.started {
		return st, nil
	}
	global, err := s.globalTotalLocked(ctx)
	if err != nil {
		return State{}, err
	}
	st.Balances = core.BalancesOf(s.ledger)
	st.Balances.GlobalTotal = global
	st.Progress = core.Progress(st.Balances.NetBalance, s.challenge.GoalAmount)
	st.Zones = s.challenge.Zones(core.ZoneSize)
	return st, nil
}
