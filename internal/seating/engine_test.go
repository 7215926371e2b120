package seating

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/subscription-seating/internal/model"
	"github.com/iliyamo/subscription-seating/internal/queue"
	"github.com/iliyamo/subscription-seating/internal/repository"
)

// fakeLedger is an in-memory Ledger with the same contract as the MySQL
// repositories: passive expiration on every read, atomic recount and
// capacity check inside CreateSeat, case-insensitive email matching.
type fakeLedger struct {
	mu        sync.Mutex
	subs      map[string]*model.Subscription
	seats     map[string]model.Seat
	summaries map[string]model.SeatingSummary
	now       func() time.Time

	conflicts   int // pending CreateSeat calls to fail with ErrSummaryConflict
	createCalls int
}

func newFakeLedger(now func() time.Time) *fakeLedger {
	return &fakeLedger{
		subs:      make(map[string]*model.Subscription),
		seats:     make(map[string]model.Seat),
		summaries: make(map[string]model.SeatingSummary),
		now:       now,
	}
}

func (f *fakeLedger) addSub(sub *model.Subscription) { f.subs[sub.ID] = sub }

func (f *fakeLedger) addSeat(s model.Seat) { f.seats[s.ID] = s }

func (f *fakeLedger) visible(s *model.Seat) bool {
	return !s.Expired(f.now())
}

func (f *fakeLedger) GetSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return nil, repository.ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeLedger) GetSeat(ctx context.Context, seatID, subscriptionID string) (*model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seats[seatID]
	if !ok || s.SubscriptionID != subscriptionID || !f.visible(&s) {
		return nil, repository.ErrSeatNotFound
	}
	return &s, nil
}

func matchEmail(e *string, want string) bool {
	return e != nil && strings.EqualFold(*e, want)
}

func (f *fakeLedger) ListSeats(ctx context.Context, subscriptionID string, flt repository.SeatFilter) ([]model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Seat
	for _, s := range f.seats {
		if s.SubscriptionID != subscriptionID || !f.visible(&s) {
			continue
		}
		if flt.UserID != "" {
			occ := s.Occupant != nil && s.Occupant.UserID == flt.UserID
			res := s.Reservation != nil && s.Reservation.UserID != nil && *s.Reservation.UserID == flt.UserID
			if !occ && !res {
				continue
			}
		}
		if flt.Email != "" {
			occ := s.Occupant != nil && matchEmail(s.Occupant.Email, flt.Email)
			res := s.Reservation != nil && matchEmail(s.Reservation.Email, flt.Email)
			if !occ && !res {
				continue
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeLedger) RedeemSeat(ctx context.Context, seat *model.Seat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.seats[seat.ID]
	if !ok || existing.SubscriptionID != seat.SubscriptionID ||
		existing.Occupant != nil || !f.visible(&existing) {
		return repository.ErrSeatNotFound
	}
	f.seats[seat.ID] = *seat
	return nil
}

func (f *fakeLedger) CreateSeat(ctx context.Context, seat *model.Seat, sub *model.Subscription) (*repository.SeatCreationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.conflicts > 0 {
		f.conflicts--
		return nil, repository.ErrSummaryConflict
	}
	if _, exists := f.seats[seat.ID]; exists {
		return nil, repository.ErrDuplicateSeat
	}

	summary := f.summaries[sub.ID]
	summary.SubscriptionID = sub.ID
	summary.StandardCount, summary.LimitedCount = 0, 0
	for _, s := range f.seats {
		if s.SubscriptionID != sub.ID || !f.visible(&s) {
			continue
		}
		if s.SeatType == model.SeatTypeLimited {
			summary.LimitedCount++
		} else {
			summary.StandardCount++
		}
	}

	if seat.SeatType == model.SeatTypeStandard && sub.TotalSeats != nil && summary.StandardCount >= *sub.TotalSeats {
		f.summaries[sub.ID] = summary
		return &repository.SeatCreationResult{Created: false, Summary: summary}, nil
	}
	if seat.SeatType == model.SeatTypeLimited {
		summary.LimitedCount++
	} else {
		summary.StandardCount++
	}
	summary.Version++
	f.summaries[sub.ID] = summary
	f.seats[seat.ID] = *seat
	return &repository.SeatCreationResult{Created: true, Seat: seat, Summary: summary}, nil
}

func (f *fakeLedger) DeleteSeat(ctx context.Context, seatID, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.seats[seatID]; ok && s.SubscriptionID == subscriptionID {
		delete(f.seats, seatID)
	}
	return nil
}

// capturePublisher records events in publish order.
type capturePublisher struct {
	mu     sync.Mutex
	events []queue.SeatingEvent
}

func (p *capturePublisher) Publish(ctx context.Context, event queue.SeatingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

var testNow = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

func newTestEngine(ledger *fakeLedger, pub *capturePublisher) *Engine {
	e := NewEngine(ledger, pub)
	e.Backoff = time.Millisecond
	e.Now = func() time.Time { return testNow }
	return e
}

func strPtr(s string) *string { return &s }

func activeSub(total int) *model.Subscription {
	t := total
	return &model.Subscription{
		ID:       "sub-1",
		TenantID: "tenant-1",
		State:    model.StateActive,
		TotalSeats: func() *int {
			if t < 0 {
				return nil
			}
			return &t
		}(),
		Seating: model.SeatingConfiguration{Strategy: model.StrategyMonthlyActiveUser},
	}
}

func requester(user string) model.SeatRequester {
	return model.SeatRequester{
		UserID:   user,
		TenantID: "tenant-1",
		Emails:   []string{user + "@example.com"},
	}
}

func TestAdmitProvidesSeatWithinCapacity(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(5))
	eng := newTestEngine(ledger, pub)

	res, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSeatProvided {
		t.Fatalf("result = %s, want %s", res.Code, ResultSeatProvided)
	}
	if res.Seat == nil || res.Seat.Occupant == nil || res.Seat.Occupant.UserID != "alice" {
		t.Fatalf("seat not occupied by requester: %+v", res.Seat)
	}
	if res.Seat.SeatType != model.SeatTypeStandard {
		t.Fatalf("seat type = %s, want standard", res.Seat.SeatType)
	}
	wantExpiry := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	if res.Seat.ExpiresAt == nil || !res.Seat.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("seat expiry = %v, want %v", res.Seat.ExpiresAt, wantExpiry)
	}
	if !res.Seat.CreatedAt.Equal(testNow) {
		t.Fatalf("seat created_at = %v, want %v", res.Seat.CreatedAt, testNow)
	}
	if kinds := pub.kinds(); len(kinds) != 1 || kinds[0] != queue.KindSeatProvided {
		t.Fatalf("events = %v, want [seat_provided]", kinds)
	}
}

func TestAdmitHealsCorruptedSummary(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(5))
	// The cached counter claims the subscription is far over capacity
	// while the seats table is empty.  The creation attempt must trust
	// the recount, admit the user and write back the healed counts.
	ledger.summaries["sub-1"] = model.SeatingSummary{
		SubscriptionID: "sub-1",
		StandardCount:  99,
		LimitedCount:   3,
		Version:        7,
	}
	eng := newTestEngine(ledger, pub)

	res, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSeatProvided {
		t.Fatalf("result = %s, want seat_provided", res.Code)
	}
	healed := ledger.summaries["sub-1"]
	if healed.StandardCount != 1 || healed.LimitedCount != 0 {
		t.Fatalf("summary = %d standard / %d limited, want 1/0", healed.StandardCount, healed.LimitedCount)
	}
	if healed.Version != 8 {
		t.Fatalf("summary version = %d, want 8", healed.Version)
	}
	if ledger.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", ledger.createCalls)
	}
}

func TestAdmitReusesExistingSeat(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(1))
	ledger.addSeat(model.Seat{
		ID:             "seat-1",
		SubscriptionID: "sub-1",
		SeatType:       model.SeatTypeStandard,
		Occupant:       &model.Occupant{UserID: "alice", TenantID: "tenant-1"},
		CreatedAt:      testNow.Add(-time.Hour),
	})
	eng := newTestEngine(ledger, pub)

	res, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSeatProvided || res.Seat.ID != "seat-1" {
		t.Fatalf("expected existing seat-1 back, got %s (%+v)", res.Code, res.Seat)
	}
	if ledger.createCalls != 0 {
		t.Fatalf("createCalls = %d, want 0", ledger.createCalls)
	}
}

func TestAdmitExpiredSeatIsIgnored(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(1))
	gone := testNow.Add(-time.Minute)
	ledger.addSeat(model.Seat{
		ID:             "seat-old",
		SubscriptionID: "sub-1",
		SeatType:       model.SeatTypeStandard,
		Occupant:       &model.Occupant{UserID: "alice", TenantID: "tenant-1"},
		CreatedAt:      testNow.Add(-48 * time.Hour),
		ExpiresAt:      &gone,
	})
	eng := newTestEngine(ledger, pub)

	res, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSeatProvided {
		t.Fatalf("result = %s, want seat_provided", res.Code)
	}
	if res.Seat.ID == "seat-old" {
		t.Fatal("expired seat was reused instead of replaced")
	}
}

func TestAdmitDenyGates(t *testing.T) {
	role := "member"
	cases := []struct {
		name string
		mod  func(*model.Subscription)
		req  model.SeatRequester
		want ResultCode
	}{
		{"purchased", func(s *model.Subscription) { s.State = model.StatePurchased }, requester("alice"), ResultSubscriptionNotReady},
		{"configuring", func(s *model.Subscription) { s.IsBeingConfigured = true }, requester("alice"), ResultSubscriptionNotReady},
		{"suspended", func(s *model.Subscription) { s.State = model.StateSuspended }, requester("alice"), ResultSubscriptionSuspended},
		{"canceled", func(s *model.Subscription) { s.State = model.StateCanceled }, requester("alice"), ResultSubscriptionCanceled},
		{"wrong tenant", func(s *model.Subscription) {}, model.SeatRequester{UserID: "alice", TenantID: "other"}, ResultAccessDenied},
		{"missing role", func(s *model.Subscription) { s.UserRoleName = &role }, requester("alice"), ResultAccessDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := newFakeLedger(func() time.Time { return testNow })
			pub := &capturePublisher{}
			sub := activeSub(1)
			tc.mod(sub)
			ledger.addSub(sub)
			eng := newTestEngine(ledger, pub)

			res, err := eng.Admit(context.Background(), "sub-1", tc.req)
			if err != nil {
				t.Fatalf("Admit returned error: %v", err)
			}
			if res.Code != tc.want {
				t.Fatalf("result = %s, want %s", res.Code, tc.want)
			}
			kinds := pub.kinds()
			if len(kinds) != 1 || kinds[0] != queue.KindAdmissionDenied {
				t.Fatalf("events = %v, want [admission_denied]", kinds)
			}
		})
	}
}

func TestAdmitRoleGateIsCaseInsensitive(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	sub := activeSub(1)
	sub.UserRoleName = strPtr("Member")
	ledger.addSub(sub)
	eng := newTestEngine(ledger, pub)

	req := requester("alice")
	req.Roles = []string{"MEMBER"}
	res, err := eng.Admit(context.Background(), "sub-1", req)
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSeatProvided {
		t.Fatalf("result = %s, want seat_provided", res.Code)
	}
}

func TestAdmitUnknownSubscription(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	eng := newTestEngine(ledger, pub)

	res, err := eng.Admit(context.Background(), "missing", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSubscriptionNotFound {
		t.Fatalf("result = %s, want subscription_not_found", res.Code)
	}
	if len(pub.kinds()) != 0 {
		t.Fatalf("no event expected for an unknown subscription, got %v", pub.kinds())
	}
}

func TestAdmitRedeemsReservationByUserID(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(1))
	ledger.addSeat(model.Seat{
		ID:             "seat-r",
		SubscriptionID: "sub-1",
		SeatType:       model.SeatTypeStandard,
		Reservation:    &model.Reservation{UserID: strPtr("alice"), TenantID: strPtr("tenant-1")},
		CreatedAt:      testNow.Add(-time.Hour),
	})
	eng := newTestEngine(ledger, pub)

	res, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSeatProvided || res.Seat.ID != "seat-r" {
		t.Fatalf("expected reservation seat-r redeemed, got %s (%+v)", res.Code, res.Seat)
	}
	if res.Seat.Reservation != nil || res.Seat.Occupant == nil || res.Seat.Occupant.UserID != "alice" {
		t.Fatalf("redeemed seat not occupied: %+v", res.Seat)
	}
	if res.Seat.RedeemedAt == nil || !res.Seat.RedeemedAt.Equal(testNow) {
		t.Fatalf("redeemed_at = %v, want %v", res.Seat.RedeemedAt, testNow)
	}
	if ledger.createCalls != 0 {
		t.Fatalf("redemption must not create seats, createCalls = %d", ledger.createCalls)
	}
}

func TestAdmitRedeemsReservationByEmailCaseInsensitive(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(1))
	ledger.addSeat(model.Seat{
		ID:             "seat-e",
		SubscriptionID: "sub-1",
		SeatType:       model.SeatTypeStandard,
		Reservation:    &model.Reservation{Email: strPtr("Alice@Example.COM")},
		CreatedAt:      testNow.Add(-time.Hour),
	})
	eng := newTestEngine(ledger, pub)

	res, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSeatProvided || res.Seat.ID != "seat-e" {
		t.Fatalf("expected reservation seat-e redeemed, got %s (%+v)", res.Code, res.Seat)
	}
	// The occupant carries the email the requester claimed with, not the
	// casing stored on the reservation.
	if res.Seat.Occupant.Email == nil || *res.Seat.Occupant.Email != "alice@example.com" {
		t.Fatalf("occupant email = %v, want alice@example.com", res.Seat.Occupant.Email)
	}
}

func TestAdmitNoSeatsAvailable(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(1))
	ledger.addSeat(model.Seat{
		ID:             "seat-1",
		SubscriptionID: "sub-1",
		SeatType:       model.SeatTypeStandard,
		Occupant:       &model.Occupant{UserID: "bob", TenantID: "tenant-1"},
		CreatedAt:      testNow.Add(-time.Hour),
	})
	eng := newTestEngine(ledger, pub)

	res, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultNoSeatsAvailable {
		t.Fatalf("result = %s, want no_seats_available", res.Code)
	}
	if kinds := pub.kinds(); len(kinds) != 1 || kinds[0] != queue.KindNoSeatsAvailable {
		t.Fatalf("events = %v, want [no_seats_available]", kinds)
	}
}

func TestAdmitLimitedOverflow(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	sub := activeSub(1)
	sub.Seating.LimitedOverflowEnabled = true
	ledger.addSub(sub)
	ledger.addSeat(model.Seat{
		ID:             "seat-1",
		SubscriptionID: "sub-1",
		SeatType:       model.SeatTypeStandard,
		Occupant:       &model.Occupant{UserID: "bob", TenantID: "tenant-1"},
		CreatedAt:      testNow.Add(-time.Hour),
	})
	eng := newTestEngine(ledger, pub)

	res, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSeatProvided {
		t.Fatalf("result = %s, want seat_provided", res.Code)
	}
	if res.Seat.SeatType != model.SeatTypeLimited {
		t.Fatalf("seat type = %s, want limited", res.Seat.SeatType)
	}
	wantExpiry := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	if res.Seat.ExpiresAt == nil || !res.Seat.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("limited seat expiry = %v, want %v", res.Seat.ExpiresAt, wantExpiry)
	}
}

func TestAdmitUnlimitedSeating(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(-1)) // nil TotalSeats
	eng := newTestEngine(ledger, pub)

	for _, user := range []string{"alice", "bob", "carol"} {
		res, err := eng.Admit(context.Background(), "sub-1", requester(user))
		if err != nil {
			t.Fatalf("Admit(%s) returned error: %v", user, err)
		}
		if res.Code != ResultSeatProvided {
			t.Fatalf("Admit(%s) = %s, want seat_provided", user, res.Code)
		}
	}
}

func TestAdmitRetriesOnSummaryConflict(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(5))
	ledger.conflicts = 2
	eng := newTestEngine(ledger, pub)

	res, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSeatProvided {
		t.Fatalf("result = %s, want seat_provided", res.Code)
	}
	if ledger.createCalls != 3 {
		t.Fatalf("createCalls = %d, want 3", ledger.createCalls)
	}
}

func TestAdmitRetryBudgetExhausted(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(5))
	ledger.conflicts = 100
	eng := newTestEngine(ledger, pub)
	eng.Retries = 3

	_, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if !errors.Is(err, repository.ErrSummaryConflict) {
		t.Fatalf("err = %v, want wrapped ErrSummaryConflict", err)
	}
	if ledger.createCalls != 3 {
		t.Fatalf("createCalls = %d, want 3", ledger.createCalls)
	}
}

func TestAdmitUnknownStrategyIsFatal(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	sub := activeSub(5)
	sub.Seating.Strategy = "round_robin"
	ledger.addSub(sub)
	eng := newTestEngine(ledger, pub)

	if _, err := eng.Admit(context.Background(), "sub-1", requester("alice")); err == nil {
		t.Fatal("expected error for unknown strategy, got nil")
	}
}

func TestLowSeatWarningFires(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(4))
	for _, user := range []string{"u1", "u2"} {
		ledger.addSeat(model.Seat{
			ID:             "seat-" + user,
			SubscriptionID: "sub-1",
			SeatType:       model.SeatTypeStandard,
			Occupant:       &model.Occupant{UserID: user, TenantID: "tenant-1"},
			CreatedAt:      testNow.Add(-time.Hour),
		})
	}
	eng := newTestEngine(ledger, pub)

	// Third of four seats leaves a quarter free, exactly at the default
	// warning threshold.
	res, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSeatProvided {
		t.Fatalf("result = %s, want seat_provided", res.Code)
	}
	kinds := pub.kinds()
	if len(kinds) != 2 || kinds[0] != queue.KindSeatProvided || kinds[1] != queue.KindLowSeatWarning {
		t.Fatalf("events = %v, want [seat_provided low_seat_warning]", kinds)
	}
}

func TestExhaustionWarningFiresOnLastSeat(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(1))
	eng := newTestEngine(ledger, pub)

	res, err := eng.Admit(context.Background(), "sub-1", requester("alice"))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if res.Code != ResultSeatProvided {
		t.Fatalf("result = %s, want seat_provided", res.Code)
	}
	kinds := pub.kinds()
	if len(kinds) != 2 || kinds[0] != queue.KindSeatProvided || kinds[1] != queue.KindNoSeatsAvailable {
		t.Fatalf("events = %v, want [seat_provided no_seats_available]", kinds)
	}
}

func TestConcurrentLastSeatExactlyOneWins(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	ledger.addSub(activeSub(1))
	eng := newTestEngine(ledger, pub)

	results := make(chan ResultCode, 2)
	var wg sync.WaitGroup
	for _, user := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			res, err := eng.Admit(context.Background(), "sub-1", requester(user))
			if err != nil {
				t.Errorf("Admit(%s) returned error: %v", user, err)
				return
			}
			results <- res.Code
		}(user)
	}
	wg.Wait()
	close(results)

	var provided, denied int
	for code := range results {
		switch code {
		case ResultSeatProvided:
			provided++
		case ResultNoSeatsAvailable:
			denied++
		default:
			t.Fatalf("unexpected result %s", code)
		}
	}
	if provided != 1 || denied != 1 {
		t.Fatalf("provided=%d denied=%d, want exactly one of each", provided, denied)
	}
}

func TestReservePublishesAndConsumesCapacity(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	sub := activeSub(1)
	ledger.addSub(sub)
	eng := newTestEngine(ledger, pub)

	created, err := eng.Reserve(context.Background(), sub, "seat-r", model.Reservation{Email: strPtr("carol@example.com")})
	if err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	if !created.Created || !created.Seat.Reserved() {
		t.Fatalf("expected a reserved seat, got %+v", created)
	}
	wantExpiry := testNow.AddDate(0, 0, DefaultReservationExpiryDays)
	if created.Seat.ExpiresAt == nil || !created.Seat.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("reservation expiry = %v, want %v", created.Seat.ExpiresAt, wantExpiry)
	}

	// The reservation holds the only standard seat.
	second, err := eng.Reserve(context.Background(), sub, "seat-r2", model.Reservation{Email: strPtr("dave@example.com")})
	if err != nil {
		t.Fatalf("second Reserve returned error: %v", err)
	}
	if second.Created {
		t.Fatal("second reservation created despite exhausted capacity")
	}
	kinds := pub.kinds()
	if len(kinds) == 0 || kinds[0] != queue.KindSeatReserved {
		t.Fatalf("events = %v, want seat_reserved first", kinds)
	}
}

func TestReleasePublishesOnlyForExistingSeats(t *testing.T) {
	ledger := newFakeLedger(func() time.Time { return testNow })
	pub := &capturePublisher{}
	sub := activeSub(1)
	ledger.addSub(sub)
	ledger.addSeat(model.Seat{
		ID:             "seat-1",
		SubscriptionID: "sub-1",
		SeatType:       model.SeatTypeStandard,
		Occupant:       &model.Occupant{UserID: "alice", TenantID: "tenant-1"},
		CreatedAt:      testNow.Add(-time.Hour),
	})
	eng := newTestEngine(ledger, pub)

	if err := eng.Release(context.Background(), sub, "seat-1"); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if _, err := ledger.GetSeat(context.Background(), "seat-1", "sub-1"); !errors.Is(err, repository.ErrSeatNotFound) {
		t.Fatalf("seat still present after release: %v", err)
	}
	if kinds := pub.kinds(); len(kinds) != 1 || kinds[0] != queue.KindSeatReleased {
		t.Fatalf("events = %v, want [seat_released]", kinds)
	}

	// Releasing an absent seat succeeds without a second event.
	if err := eng.Release(context.Background(), sub, "seat-ghost"); err != nil {
		t.Fatalf("Release of absent seat returned error: %v", err)
	}
	if kinds := pub.kinds(); len(kinds) != 1 {
		t.Fatalf("events = %v, want no event for absent seat", kinds)
	}
}
