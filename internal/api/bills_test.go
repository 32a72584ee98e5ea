package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/agent"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/router"
	"github.com/Veraticus/billsplit/internal/service"
	"github.com/Veraticus/billsplit/internal/splitter"
	"github.com/Veraticus/billsplit/internal/testutil"
)

func TestSubmitBill_Accepted(t *testing.T) {
	bills := &fakeRouter{calls: make(chan router.Input, 1)}
	h := newHarness(t, Deps{Bills: bills})
	h.server.newID = func() string { return "req-fixed" }

	rec := h.do(t, http.MethodPost, "/api/bills", map[string]any{"image_url": "https://example.com/bill.png"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	status := decode[billStatus](t, rec)
	assert.Equal(t, "req-fixed", status.RequestID)
	assert.Equal(t, model.StatusProcessing, status.Status)

	in := <-bills.calls
	assert.Equal(t, "https://example.com/bill.png", in.ImageURL)
	assert.Equal(t, "req-fixed", in.RequestID)
	h.server.Wait()

	rec = h.do(t, http.MethodGet, "/api/bills/req-fixed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusProcessing, decode[billStatus](t, rec).Status)
}

func TestSubmitBill_RoutingFailureIsRecorded(t *testing.T) {
	bills := &fakeRouter{
		calls: make(chan router.Input, 1),
		err:   fmt.Errorf("%w: missing agent", router.ErrMalformedDecision),
	}
	h := newHarness(t, Deps{Bills: bills})

	rec := h.do(t, http.MethodPost, "/api/bills", map[string]any{"text": "pizza 12", "request_id": "r-err"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-bills.calls
	h.server.Wait()

	rec = h.do(t, http.MethodGet, "/api/bills/r-err", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[billStatus](t, rec)
	assert.Equal(t, model.StatusError, status.Status)
	assert.Contains(t, status.Error, "Routing failed")
}

func TestSubmitBill_Validation(t *testing.T) {
	h := newHarness(t, Deps{Bills: &fakeRouter{calls: make(chan router.Input, 1)}})

	rec := h.do(t, http.MethodPost, "/api/bills", map[string]any{"metadata": map[string]any{"a": 1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/bills", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h = newHarness(t, Deps{})
	rec = h.do(t, http.MethodPost, "/api/bills", map[string]any{"text": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetBill_FallsBackToResponseStore(t *testing.T) {
	store := agent.NewMemoryStore(time.Minute)
	defer store.Close()
	h := newHarness(t, Deps{Responses: store})

	rec := h.do(t, http.MethodGet, "/api/bills/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store.Put("cached", &model.BillAnalysisResponse{RequestID: "cached", Status: model.StatusError, Error: "Failed to download image"})
	rec = h.do(t, http.MethodGet, "/api/bills/cached", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[billStatus](t, rec)
	assert.Equal(t, model.StatusError, status.Status)
	assert.Equal(t, "Failed to download image", status.Error)
	require.NotNil(t, status.Response)
}

// scriptedLLM answers every call with the same reply.
type scriptedLLM struct {
	reply string
}

func (s scriptedLLM) Complete(ctx context.Context, _ llm.Request) (string, error) {
	return s.reply, ctx.Err()
}

type stubSplitter struct {
	txn model.Transaction
}

func (s stubSplitter) Split(_ context.Context, items []model.BillItem, _ string) (splitter.Allocation, error) {
	if len(items) == 0 {
		return splitter.Allocation{}, errors.New("no items")
	}
	txn := s.txn
	return splitter.Allocation{Transaction: &txn, Attempts: 1}, nil
}

func TestSubmitBill_PipelineIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{
		People: testutil.BasicPeople(),
		Splits: []testutil.SplitFixture{{Name: "Lunch", Members: []testutil.PersonName{testutil.Alice, testutil.Bob}}},
	})
	alice := db.MustPerson(testutil.Alice)
	bob := db.MustPerson(testutil.Bob)
	split := db.MustSplit("Lunch")

	bus := agent.NewBus(8, nil)
	responses := agent.NewMemoryStore(time.Minute)
	defer responses.Close()
	tracker := agent.NewTracker(time.Minute, responses, db.Storage, nil)

	splitAgent := agent.NewSplitterAgent(agent.SplitterAgentConfig{DefaultSplitID: split.ID}, stubSplitter{txn: model.Transaction{
		Title:           "Lunch",
		TransactionType: model.TypeDining,
		BillAmount:      24,
		Date:            "2024-05-17",
		Items:           []model.TransactionItem{{Name: "Burger", Price: 24}},
		Splits:          []model.Share{testutil.Share(alice, 12), testutil.Share(bob, 12)},
		PaidBy:          []model.Share{testutil.Share(alice, 24)},
	}}, db.Storage, responses, tracker, nil)
	require.NoError(t, bus.Register("splitter", splitAgent))

	decision := `{"agent": "agent_2", "input_format": {"items": [{"name": "Burger", "price": 12, "quantity": 2, "total": 24}], "status": "completed"}}`
	rt := router.New(scriptedLLM{reply: "```json\n" + decision + "\n```"}, bus, tracker,
		router.Addresses{Extractor: "extractor", Splitter: "splitter"}, nil)

	server, err := NewServer(Deps{Storage: db.Storage, Bills: rt, Responses: responses})
	require.NoError(t, err)
	h := &harness{db: db, server: server, handler: server.Handler()}

	submit := func() *billStatus {
		rec := h.do(t, http.MethodPost, "/api/bills", map[string]any{"text": "Burger 12 x2", "request_id": "lunch-1"})
		require.Contains(t, []int{http.StatusAccepted, http.StatusOK}, rec.Code, rec.Body.String())
		status := decode[billStatus](t, rec)
		return &status
	}

	submit()
	require.Eventually(t, func() bool {
		result, err := db.Storage.GetBillResult(context.Background(), "lunch-1")
		return err == nil && result.Status == model.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	again := submit()
	assert.Equal(t, model.StatusCompleted, again.Status)
	require.NotNil(t, again.TransactionID)

	server.Wait()
	bus.Shutdown()

	txns, err := db.Storage.GetTransactions(context.Background(), service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, *again.TransactionID, txns[0].ID)
	assert.Equal(t, split.ID, txns[0].SplitID)

	rec := h.do(t, http.MethodGet, "/api/bills/lunch-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[billStatus](t, rec)
	require.NotNil(t, status.Response)
	assert.True(t, strings.EqualFold("Burger", status.Response.Items[0].Name))
	assert.InDelta(t, 24.0, status.Response.TotalAmount, 0.001)
}
