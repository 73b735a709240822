package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/CalCounter/internal/diary"
	"github.com/BTreeMap/CalCounter/internal/flow"
	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/report"
	"github.com/BTreeMap/CalCounter/internal/session"
	"github.com/BTreeMap/CalCounter/internal/store"
	"github.com/BTreeMap/CalCounter/internal/testutil"
)

var now = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

type brokenStore struct {
	store.Store
}

func (brokenStore) AllFood(ctx context.Context, userID string) ([]models.FoodEntry, error) {
	return nil, errors.New("disk on fire")
}

func newTestRouter(t *testing.T, st store.Store) (*Router, *testutil.FakeMessenger, store.Store) {
	t.Helper()
	if st == nil {
		st = store.NewInMemoryStore()
	}
	msg := testutil.NewFakeMessenger()
	extractor := &testutil.FakeExtractor{Nutrition: models.Nutrition{Name: "Tostadas", Calories: 200, Protein: 6, Carbs: 30, Fat: 5, Portion: "2 unidades"}}
	d := diary.NewService(st, diary.WithClock(func() time.Time { return now }))
	engine := flow.NewEngine(session.NewMemoryStore(), d, extractor, msg)
	reports := report.NewReporter(d, extractor, msg)
	return NewRouter(msg, engine, reports), msg, st
}

func textEvent(user, text string) models.Event {
	return models.Event{Kind: models.EventText, UserID: user, Text: text, ReceivedAt: now}
}

func buttonEvent(user, payload string) models.Event {
	return models.Event{Kind: models.EventButton, UserID: user, CallbackID: "cb-" + payload, Payload: payload, ReceivedAt: now}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in        string
		name, arg string
		ok        bool
	}{
		{"/start", "start", "", true},
		{"  /peso 80,5 ", "peso", "80,5", true},
		{"/ejercicio@CalCounterBot correr 300", "ejercicio", "correr 300", true},
		{"/consultar\nuna manzana", "consultar", "una manzana", true},
		{"/Calorias", "Calorias", "", true},
		{"hola /start", "", "", false},
		{"/", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, arg, ok := ParseCommand(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.arg, arg)
		})
	}
}

func TestStartCommandCreatesProfile(t *testing.T) {
	r, msg, st := newTestRouter(t, nil)
	ctx := context.Background()

	evt := textEvent("7", "/start")
	evt.Username = "ana"
	evt.FirstName = "Ana"
	r.Handle(ctx, evt)

	p, err := st.GetProfile(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.FirstName)
	assert.Contains(t, msg.Last().Text, "Bienvenido a CalCounter")
}

func TestCommandWithBotSuffix(t *testing.T) {
	r, msg, _ := newTestRouter(t, nil)
	r.Handle(context.Background(), textEvent("7", "/calorias@CalCounterBot"))
	assert.Contains(t, msg.Last().Text, "Calorías de hoy")
}

func TestUnknownCommand(t *testing.T) {
	r, msg, _ := newTestRouter(t, nil)
	ctx := context.Background()

	r.Handle(ctx, textEvent("7", "/Calorias"))
	assert.Equal(t, msgUnknownCommand, msg.Last().Text)

	r.Handle(ctx, textEvent("7", "/borrar"))
	assert.Equal(t, msgUnknownCommand, msg.Last().Text)
}

func TestFreeTextIsExtractedAndConfirmed(t *testing.T) {
	r, msg, st := newTestRouter(t, nil)
	ctx := context.Background()

	r.Handle(ctx, textEvent("7", "dos tostadas con queso"))
	last := msg.Last()
	require.Equal(t, testutil.KindMenu, last.Kind)
	assert.Contains(t, last.Text, "Tostadas")

	r.Handle(ctx, buttonEvent("7", flow.PayloadConfirmFood))
	foods, err := st.AllFood(ctx, "7")
	require.NoError(t, err)
	require.Len(t, foods, 1)
	assert.Equal(t, "Tostadas", foods[0].Name)

	acks := msg.Acks()
	require.Len(t, acks, 1)
	assert.NotEmpty(t, acks[0].Text)
	assert.Equal(t, "cb-"+flow.PayloadConfirmFood, acks[0].Event.CallbackID)
}

func TestStaleButtonIsAckedOnce(t *testing.T) {
	r, msg, st := newTestRouter(t, nil)
	ctx := context.Background()

	r.Handle(ctx, buttonEvent("7", flow.PayloadConfirmFood))
	r.Handle(ctx, buttonEvent("7", "garbage"))
	r.Handle(ctx, buttonEvent("7", report.PrefixFrequent+"missing"))

	acks := msg.Acks()
	require.Len(t, acks, 3)
	for _, a := range acks {
		assert.Empty(t, a.Text)
	}
	assert.Empty(t, msg.Sent())
	foods, err := st.AllFood(ctx, "7")
	require.NoError(t, err)
	assert.Empty(t, foods)
}

func TestPhotoEvent(t *testing.T) {
	r, msg, _ := newTestRouter(t, nil)
	evt := models.Event{
		Kind:       models.EventPhoto,
		UserID:     "7",
		Caption:    "desayuno",
		FetchPhoto: func(ctx context.Context) ([]byte, error) { return []byte{0xff, 0xd8}, nil },
	}
	r.Handle(context.Background(), evt)
	assert.Equal(t, testutil.KindMenu, msg.Last().Kind)
}

func TestHandlerErrorSendsGenericMessage(t *testing.T) {
	r, msg, _ := newTestRouter(t, brokenStore{Store: store.NewInMemoryStore()})
	r.Handle(context.Background(), textEvent("7", "/exportar"))
	assert.Equal(t, msgGenericError, msg.Last().Text)
}

func TestCommandCancelsFlow(t *testing.T) {
	r, msg, _ := newTestRouter(t, nil)
	ctx := context.Background()

	r.Handle(ctx, textEvent("7", "/peso"))
	r.Handle(ctx, textEvent("7", "/cancelar"))
	msg.Reset()

	// Without an active flow a number is treated as food.
	r.Handle(ctx, textEvent("7", "80"))
	assert.Equal(t, testutil.KindMenu, msg.Last().Kind)
}

func TestDispatchKeepsPerUserOrder(t *testing.T) {
	r, msg, _ := newTestRouter(t, nil)
	ctx := context.Background()

	const n = 20
	for i := 1; i <= n; i++ {
		r.Dispatch(ctx, textEvent("a", fmt.Sprintf("/peso %d", 60+i)))
		r.Dispatch(ctx, textEvent("b", fmt.Sprintf("/peso %d", 100+i)))
	}
	r.Wait()
	assert.Equal(t, 0, r.ActiveQueues())

	var gotA, gotB []string
	for _, s := range msg.Sent() {
		first, _, _ := strings.Cut(s.Text, "\n")
		switch s.To {
		case "a":
			gotA = append(gotA, first)
		case "b":
			gotB = append(gotB, first)
		}
	}
	require.Len(t, gotA, n)
	require.Len(t, gotB, n)
	for i := 1; i <= n; i++ {
		assert.Equal(t, fmt.Sprintf("✅ Peso registrado: %d kg", 60+i), gotA[i-1])
		assert.Equal(t, fmt.Sprintf("✅ Peso registrado: %d kg", 100+i), gotB[i-1])
	}
}

func TestStartConsumesEvents(t *testing.T) {
	r, msg, _ := newTestRouter(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Start(ctx)
	msg.Emit(textEvent("7", "/ayuda"))

	assert.Eventually(t, func() bool {
		return msg.Contains("Bienvenido a CalCounter")
	}, time.Second, 10*time.Millisecond)
	cancel()
	r.Wait()
}
