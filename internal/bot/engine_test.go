package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asiatek/partsbot/internal/order"
	"github.com/asiatek/partsbot/internal/session"
)

type fakeRepo struct {
	mu        sync.Mutex
	orders    []order.Order
	usage     []order.UsageEntry
	insertErr error
}

func (r *fakeRepo) Insert(_ context.Context, o order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.orders = append(r.orders, o)
	return nil
}

func (r *fakeRepo) LogUsage(_ context.Context, e order.UsageEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage = append(r.usage, e)
	return nil
}

func (r *fakeRepo) Stats(context.Context) (order.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return order.Stats{Orders: int64(len(r.orders)), Interactions: int64(len(r.usage))}, nil
}

func (r *fakeRepo) usageDetails() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.usage))
	for _, e := range r.usage {
		out = append(out, e.InteractionType+"/"+e.Detail)
	}
	return out
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []order.Order
	fail  bool
	calls int
}

func (n *fakeNotifier) Send(_ context.Context, o order.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.fail {
		return errors.New("smtp unreachable")
	}
	n.sent = append(n.sent, o)
	return nil
}

// syncTasks runs enqueued jobs inline so tests observe side effects
// deterministically.
type syncTasks struct{}

func (syncTasks) Enqueue(_ context.Context, _ string, _ bool, run func() error) error {
	_ = run()
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeRepo, *fakeNotifier, session.Manager) {
	t.Helper()
	repo := &fakeRepo{}
	notifier := &fakeNotifier{}
	sessions := session.NewMemoryManager()
	e := NewEngine(sessions, repo, notifier, syncTasks{})
	return e, repo, notifier, sessions
}

var testUser = User{ID: 100500, Username: "driver", FirstName: "Ivan"}

func texts(replies []Reply) []string {
	out := make([]string, 0, len(replies))
	for _, r := range replies {
		out = append(out, r.Text)
	}
	return out
}

func TestFullFlowWithVin(t *testing.T) {
	ctx := context.Background()
	e, repo, notifier, sessions := newTestEngine(t)

	replies, err := e.Start(ctx, testUser, false)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.True(t, replies[0].HTML)
	assert.Contains(t, replies[0].Text, "Добро пожаловать")
	assert.Equal(t, KeyboardVinChoice, replies[1].Keyboard)

	replies, err = e.HandleChoice(ctx, testUser, TagVinYes)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Edit)
	assert.Equal(t, askVin, replies[0].Text)

	replies, err = e.HandleText(ctx, testUser, "wvwzzz1jzxw000001")
	require.NoError(t, err)
	assert.Equal(t, []string{askContactAfterVin}, texts(replies))

	replies, err = e.HandleText(ctx, testUser, "+992 900 00 00 00")
	require.NoError(t, err)
	assert.Equal(t, []string{askParts}, texts(replies))

	replies, err = e.HandleText(ctx, testUser, "передние тормозные колодки")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, savedOK, replies[0].Text)
	assert.Equal(t, KeyboardNewRequest, replies[0].Keyboard)

	require.Len(t, repo.orders, 1)
	o := repo.orders[0]
	assert.Equal(t, int64(100500), o.TelegramUserID)
	assert.Equal(t, "WVWZZZ1JZXW000001", o.VIN)
	assert.Equal(t, "+992 900 00 00 00", o.ContactInfo)
	assert.Equal(t, "передние тормозные колодки", o.PartsNeeded)

	require.Len(t, notifier.sent, 1)
	assert.False(t, e.InProgress(ctx, testUser.ID))

	s, err := sessions.Get(ctx, testUser.ID)
	require.NoError(t, err)
	assert.Nil(t, s)

	assert.Equal(t, []string{
		"command//start",
		"callback_query/vin_yes",
		"action_completed/vin_provided",
		"action_completed/contact_provided",
		"action_completed/parts_provided",
		"action_completed/order_saved_successfully",
	}, repo.usageDetails())
}

func TestFullFlowWithoutVin(t *testing.T) {
	ctx := context.Background()
	e, repo, notifier, _ := newTestEngine(t)

	_, err := e.Start(ctx, testUser, false)
	require.NoError(t, err)

	replies, err := e.HandleChoice(ctx, testUser, TagVinNo)
	require.NoError(t, err)
	assert.Equal(t, askContact, replies[0].Text)
	assert.True(t, replies[0].Edit)

	_, err = e.HandleText(ctx, testUser, "user@example.com")
	require.NoError(t, err)

	replies, err = e.HandleText(ctx, testUser, "фильтр салона")
	require.NoError(t, err)
	assert.Equal(t, savedOK, replies[0].Text)

	require.Len(t, repo.orders, 1)
	assert.Empty(t, repo.orders[0].VIN)
	assert.Equal(t, "user@example.com", repo.orders[0].ContactInfo)
	require.Len(t, notifier.sent, 1)
}

func TestInvalidVinReprompts(t *testing.T) {
	ctx := context.Background()
	e, repo, _, _ := newTestEngine(t)

	_, err := e.Start(ctx, testUser, false)
	require.NoError(t, err)
	_, err = e.HandleChoice(ctx, testUser, TagVinYes)
	require.NoError(t, err)

	for _, bad := range []string{"TOO-SHORT", "WVWZZZ1JZIW000001", "WVWZZZ1JZXW0000012"} {
		replies, err := e.HandleText(ctx, testUser, bad)
		require.NoError(t, err)
		assert.Equal(t, invalidVin, replies[0].Text)
	}

	replies, err := e.HandleText(ctx, testUser, "  wvwzzz1jzxw000001  ")
	require.NoError(t, err)
	assert.Equal(t, askContactAfterVin, replies[0].Text)
	assert.True(t, e.InProgress(ctx, testUser.ID))
	assert.Empty(t, repo.orders)
}

func TestShortContactReprompts(t *testing.T) {
	ctx := context.Background()
	e, _, _, _ := newTestEngine(t)

	_, err := e.Start(ctx, testUser, false)
	require.NoError(t, err)
	_, err = e.HandleChoice(ctx, testUser, TagVinNo)
	require.NoError(t, err)

	replies, err := e.HandleText(ctx, testUser, "abc")
	require.NoError(t, err)
	assert.Equal(t, invalidContact, replies[0].Text)

	replies, err = e.HandleText(ctx, testUser, "   ")
	require.NoError(t, err)
	assert.Equal(t, emptyContact, replies[0].Text)

	replies, err = e.HandleText(ctx, testUser, "98765")
	require.NoError(t, err)
	assert.Equal(t, askParts, replies[0].Text)
}

func TestInsertFailure(t *testing.T) {
	ctx := context.Background()
	e, repo, notifier, sessions := newTestEngine(t)
	repo.insertErr = errors.New(`pq: relation "orders" does not exist`)

	_, err := e.Start(ctx, testUser, false)
	require.NoError(t, err)
	_, err = e.HandleChoice(ctx, testUser, TagVinNo)
	require.NoError(t, err)
	_, err = e.HandleText(ctx, testUser, "user@example.com")
	require.NoError(t, err)

	replies, err := e.HandleText(ctx, testUser, "стартер")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, savedFail, replies[0].Text)
	assert.Equal(t, KeyboardNewRequest, replies[0].Keyboard)

	// No admin mail on a failed save, and the session is gone either way.
	assert.Zero(t, notifier.calls)
	s, err := sessions.Get(ctx, testUser.ID)
	require.NoError(t, err)
	assert.Nil(t, s)

	assert.Contains(t, repo.usageDetails(), "action_failed/order_save_failed")
	assert.NotContains(t, repo.usageDetails(), "action_completed/order_saved_successfully")
}

func TestCorruptedSessionAtPartsStep(t *testing.T) {
	ctx := context.Background()
	e, repo, notifier, sessions := newTestEngine(t)

	// A session that reached the parts step without a contact should never
	// exist, but a truncated store record can produce one.
	require.NoError(t, sessions.Save(ctx, &session.Session{
		UserID: testUser.ID,
		Step:   session.StepGetParts,
	}))

	replies, err := e.HandleText(ctx, testUser, "тормозные колодки")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, sessionLost, replies[0].Text)

	assert.Empty(t, repo.orders)
	assert.Zero(t, notifier.calls)
	s, err := sessions.Get(ctx, testUser.ID)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestCancelFromAnyStep(t *testing.T) {
	ctx := context.Background()
	e, _, _, _ := newTestEngine(t)

	_, err := e.Start(ctx, testUser, false)
	require.NoError(t, err)
	_, err = e.HandleChoice(ctx, testUser, TagVinYes)
	require.NoError(t, err)

	replies, err := e.Cancel(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, cancelled, replies[0].Text)
	assert.False(t, e.InProgress(ctx, testUser.ID))

	// Cancel with nothing active still answers politely.
	replies, err = e.Cancel(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, cancelled, replies[0].Text)
}

func TestRestartClearsPreviousAnswers(t *testing.T) {
	ctx := context.Background()
	e, repo, _, _ := newTestEngine(t)

	_, err := e.Start(ctx, testUser, false)
	require.NoError(t, err)
	_, err = e.HandleChoice(ctx, testUser, TagVinYes)
	require.NoError(t, err)
	_, err = e.HandleText(ctx, testUser, "WVWZZZ1JZXW000001")
	require.NoError(t, err)

	replies, err := e.Start(ctx, testUser, true)
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Снова здравствуйте")
	assert.Contains(t, repo.usageDetails(), "callback_restart/new_request")

	// The old VIN must not leak into the new request.
	_, err = e.HandleChoice(ctx, testUser, TagVinNo)
	require.NoError(t, err)
	_, err = e.HandleText(ctx, testUser, "user@example.com")
	require.NoError(t, err)
	_, err = e.HandleText(ctx, testUser, "аккумулятор")
	require.NoError(t, err)

	require.Len(t, repo.orders, 1)
	assert.Empty(t, repo.orders[0].VIN)
}

func TestUnknownChoiceTagReprompts(t *testing.T) {
	ctx := context.Background()
	e, _, _, _ := newTestEngine(t)

	_, err := e.Start(ctx, testUser, false)
	require.NoError(t, err)

	replies, err := e.HandleChoice(ctx, testUser, "bogus_tag")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, askVinKnown, replies[0].Text)
	assert.Equal(t, KeyboardVinChoice, replies[0].Keyboard)
	assert.True(t, e.InProgress(ctx, testUser.ID))
}

func TestChoiceWithoutSession(t *testing.T) {
	ctx := context.Background()
	e, _, _, _ := newTestEngine(t)

	replies, err := e.HandleChoice(ctx, testUser, TagVinYes)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, unknownChoice, replies[0].Text)
}

func TestTypedTextAtChoiceStep(t *testing.T) {
	ctx := context.Background()
	e, _, _, _ := newTestEngine(t)

	_, err := e.Start(ctx, testUser, false)
	require.NoError(t, err)

	replies, err := e.HandleText(ctx, testUser, "да, знаю")
	require.NoError(t, err)
	assert.Equal(t, askVinKnown, replies[0].Text)
	assert.Equal(t, KeyboardVinChoice, replies[0].Keyboard)
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	e, repo, _, _ := newTestEngine(t)

	replies := e.Fallback(ctx, testUser, "/weather")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "/weather")

	replies = e.Fallback(ctx, testUser, "привет")
	require.Len(t, replies, 1)
	assert.Equal(t, fallbackText, replies[0].Text)

	// Keep-alive pings are swallowed without a reply or a usage entry.
	replies = e.Fallback(ctx, testUser, "ping")
	assert.Nil(t, replies)

	details := repo.usageDetails()
	assert.Len(t, details, 2)
	assert.NotContains(t, details, "fallback/ping")
}

func TestEmptyPartsReprompts(t *testing.T) {
	ctx := context.Background()
	e, repo, _, _ := newTestEngine(t)

	_, err := e.Start(ctx, testUser, false)
	require.NoError(t, err)
	_, err = e.HandleChoice(ctx, testUser, TagVinNo)
	require.NoError(t, err)
	_, err = e.HandleText(ctx, testUser, "user@example.com")
	require.NoError(t, err)

	replies, err := e.HandleText(ctx, testUser, "   ")
	require.NoError(t, err)
	assert.Equal(t, emptyParts, replies[0].Text)
	assert.True(t, e.InProgress(ctx, testUser.ID))
	assert.Empty(t, repo.orders)
}
