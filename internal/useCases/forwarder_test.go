package useCases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/larriantoniy/tg_forward_bot/internal/adapters/stats"
	"github.com/larriantoniy/tg_forward_bot/internal/domain"
)

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func TestForwarderRelaysToAllDestinations(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo,
		domain.Account{Phone: "+1", Session: "1", Username: "alice", SourceChats: []int64{10}, DestinationChats: []int64{20, 30, 40}},
		domain.Account{Phone: "+2", Session: "2", Username: "bob", SourceChats: []int64{10}},
	)
	factory := newFakeFactory()
	c := factory.client("1")
	c.failTo[30] = true
	st := stats.NewMemory()
	logger, logs := captureLogger()
	f := NewForwarder(repo, factory, st, logger, ForwarderOptions{})

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background()) }()

	waitSignal(t, c.listening, "listener")
	c.msgs <- domain.Message{ChatID: 99, ID: 1}
	c.msgs <- domain.Message{ChatID: 10, ID: 2}
	for i := 0; i < 3; i++ {
		select {
		case <-c.forwardedCh:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d forwards happened", i)
		}
	}
	close(c.msgs)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after disconnect")
	}

	want := []forwardCall{{2, 20}, {2, 30}, {2, 40}}
	if diff := cmp.Diff(want, c.forwardCalls()); diff != "" {
		t.Fatalf("forwards mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]domain.Session{{Name: "1", Phone: "+1"}}, factory.openedSessions()); diff != "" {
		t.Fatalf("opened sessions mismatch (-want +got):\n%s", diff)
	}
	if !c.isClosed() {
		t.Fatal("client must be closed after Run")
	}

	// аккаунт без destination_chats пропущен с предупреждением
	skipped := logs.records(t, "forwarding setup missing, skipping account")
	if len(skipped) != 1 || skipped[0]["phone"] != "+2" || skipped[0]["level"] != "WARN" {
		t.Fatalf("skip warning for +2 not logged: %v", skipped)
	}

	totals, err := st.Totals(context.Background(), "+1")
	if err != nil {
		t.Fatal(err)
	}
	wantTotals := map[int64]domain.ForwardCounts{
		20: {Forwarded: 1},
		30: {Failed: 1},
		40: {Forwarded: 1},
	}
	if diff := cmp.Diff(wantTotals, totals); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestForwarderStopsOnCancel(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo,
		domain.Account{Phone: "+1", Session: "1", SourceChats: []int64{10}, DestinationChats: []int64{20}},
		domain.Account{Phone: "+2", Session: "2", SourceChats: []int64{11}, DestinationChats: []int64{21}},
	)
	factory := newFakeFactory()
	f := NewForwarder(repo, factory, stats.NewMemory(), testLogger(), ForwarderOptions{
		MinDelay: time.Hour,
		MaxDelay: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	c1, c2 := factory.client("1"), factory.client("2")
	waitSignal(t, c1.listening, "listener 1")
	waitSignal(t, c2.listening, "listener 2")

	// пересылка уходит в часовую паузу, отмена должна её прервать
	c1.msgs <- domain.Message{ChatID: 10, ID: 1}
	select {
	case <-c1.forwardedCh:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not forwarded")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !c1.isClosed() || !c2.isClosed() {
		t.Fatal("all clients must be closed")
	}
}

func TestForwarderKeepsDrainingWhileRelaySleeps(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo,
		domain.Account{Phone: "+1", Session: "1", SourceChats: []int64{10}, DestinationChats: []int64{20, 30}},
	)
	factory := newFakeFactory()
	c := factory.client("1")
	f := NewForwarder(repo, factory, stats.NewMemory(), testLogger(), ForwarderOptions{
		MinDelay: time.Hour,
		MaxDelay: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	waitSignal(t, c.listening, "listener")
	c.msgs <- domain.Message{ChatID: 10, ID: 1}
	select {
	case <-c.forwardedCh:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not forwarded")
	}

	// пересылка спит час после первого чата; обновления клиента всё равно вычитываются
	for i := int64(2); i < 2000; i++ {
		chat := int64(99)
		if i%10 == 0 {
			chat = 10
		}
		select {
		case c.msgs <- domain.Message{ChatID: chat, ID: i}:
		case <-time.After(5 * time.Second):
			t.Fatalf("update %d blocked while relay is sleeping", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if diff := cmp.Diff([]forwardCall{{1, 20}}, c.forwardCalls()); diff != "" {
		t.Fatalf("forwards mismatch (-want +got):\n%s", diff)
	}
}

func TestForwarderPrerequisites(t *testing.T) {
	ctx := context.Background()

	repo := newTestRepo(t)
	factory := newFakeFactory()
	f := NewForwarder(repo, factory, stats.NewMemory(), testLogger(), ForwarderOptions{})
	if err := f.Run(ctx); !errors.Is(err, domain.ErrNoAccounts) {
		t.Fatalf("Run on empty store = %v, want ErrNoAccounts", err)
	}

	seedAccount(t, repo,
		domain.Account{Phone: "+1", Session: "1", SourceChats: []int64{10}},
		domain.Account{Phone: "+2", Session: "2", DestinationChats: []int64{20}},
	)
	if err := f.Run(ctx); !errors.Is(err, domain.ErrNoActiveAccounts) {
		t.Fatalf("Run without rules = %v, want ErrNoActiveAccounts", err)
	}
	if n := len(factory.openedSessions()); n != 0 {
		t.Fatalf("no connection must be opened, got %d", n)
	}
}

func TestForwarderNoConnections(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo, domain.Account{Phone: "+1", Session: "1", SourceChats: []int64{10}, DestinationChats: []int64{20}})
	factory := newFakeFactory()
	factory.openErr["1"] = errors.New("AUTH_KEY_UNREGISTERED")
	f := NewForwarder(repo, factory, stats.NewMemory(), testLogger(), ForwarderOptions{})

	if err := f.Run(context.Background()); !errors.Is(err, ErrNoConnections) {
		t.Fatalf("got %v, want ErrNoConnections", err)
	}
}

func TestReloadRules(t *testing.T) {
	repo := newTestRepo(t)
	initial := domain.Account{Phone: "+1", Session: "1", SourceChats: []int64{10}, DestinationChats: []int64{20}}
	seedAccount(t, repo, initial)
	f := NewForwarder(repo, newFakeFactory(), stats.NewMemory(), testLogger(), ForwarderOptions{Reload: true})

	s := newAccountSession(initial, newFakeClient(), testLogger())
	ghost := newAccountSession(domain.Account{Phone: "+9", Session: "9", SourceChats: []int64{1}, DestinationChats: []int64{2}}, newFakeClient(), testLogger())

	updated := domain.Account{Phone: "+1", Session: "1", SourceChats: []int64{11, 12}, DestinationChats: []int64{21}}
	seedAccount(t, repo, updated)
	f.reloadRules(context.Background(), testLogger(), []*accountSession{s, ghost})

	if diff := cmp.Diff(updated, *s.rules.Load()); diff != "" {
		t.Fatalf("rules not reloaded (-want +got):\n%s", diff)
	}
	if got := ghost.rules.Load().Phone; got != "+9" {
		t.Fatalf("missing account must keep previous rules, got %q", got)
	}
}

func TestRandomDelay(t *testing.T) {
	start := time.Now()
	if err := randomDelay(context.Background(), 10*time.Millisecond, 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("delay too short: %s", elapsed)
	}

	if err := randomDelay(context.Background(), 0, 0); err != nil {
		t.Fatalf("zero delay: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := randomDelay(ctx, time.Hour, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
