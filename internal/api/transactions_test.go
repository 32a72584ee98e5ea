package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/testutil"
)

func TestCreateTransaction_EchoesInput(t *testing.T) {
	h := newHarness(t, Deps{})
	split := h.db.MustSplit("Dinner Club")
	alice := h.db.MustPerson(testutil.Alice)

	body := fmt.Sprintf(`{
		"splitId": %d,
		"billAmount": 15,
		"items": [{"name": "Pizza", "price": 15}],
		"splits": [{"person": {"id": %d}, "amount": 15}],
		"paidBy": [{"person": {"id": %d}, "amount": 15}]
	}`, split.ID, alice.ID, alice.ID)

	rec := h.do(t, http.MethodPost, "/api/transactions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	txn := decode[model.Transaction](t, rec)
	assert.Positive(t, txn.ID)
	assert.Equal(t, split.ID, txn.SplitID)
	assert.InDelta(t, 15.0, txn.BillAmount, 0.001)
	assert.Equal(t, []model.TransactionItem{{Name: "Pizza", Price: 15}}, txn.Items)
	assert.Equal(t, []model.Share{{Person: alice, Amount: 15}}, txn.Splits)
	assert.Equal(t, []model.Share{{Person: alice, Amount: 15}}, txn.PaidBy)
	assert.Equal(t, model.TypeOther, txn.TransactionType)
	assert.Equal(t, "2024-05-17", txn.Date)
	assert.Nil(t, txn.BillLink)
}

func TestCreateTransaction_Errors(t *testing.T) {
	h := newHarness(t, Deps{})
	split := h.db.MustSplit("Dinner Club")
	alice := h.db.MustPerson(testutil.Alice)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed json", body: `{"splitId": `, want: http.StatusBadRequest},
		{name: "missing split", body: `{"billAmount": 5}`, want: http.StatusBadRequest},
		{name: "unknown type", body: fmt.Sprintf(`{"splitId": %d, "transactionType": "TRAVEL"}`, split.ID), want: http.StatusBadRequest},
		{name: "unknown split", body: `{"splitId": 999}`, want: http.StatusNotFound},
		{
			name: "unknown person",
			body: fmt.Sprintf(`{"splitId": %d, "splits": [{"person": {"id": 999}, "amount": 1}], "paidBy": [{"person": {"id": %d}, "amount": 1}]}`, split.ID, alice.ID),
			want: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/transactions", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestTransactions_ListUpdateDelete(t *testing.T) {
	h := newHarness(t, Deps{})
	split := h.db.MustSplit("Dinner Club")
	alice := h.db.MustPerson(testutil.Alice)
	bob := h.db.MustPerson(testutil.Bob)

	create := func(title, date string) model.Transaction {
		rec := h.do(t, http.MethodPost, "/api/transactions", map[string]any{
			"splitId":         split.ID,
			"title":           title,
			"transactionType": "DINING",
			"date":            date,
			"billAmount":      20,
			"splits":          []map[string]any{{"person": map[string]any{"id": alice.ID}, "amount": 10}, {"person": map[string]any{"id": bob.ID}, "amount": 10}},
			"paidBy":          []map[string]any{{"person": map[string]any{"id": bob.ID}, "amount": 20}},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[model.Transaction](t, rec)
	}
	first := create("Tacos", "2024-04-01")
	create("Ramen", "2024-04-02")

	rec := h.do(t, http.MethodGet, fmt.Sprintf("/api/transactions?splitId=%d", split.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]model.Transaction](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Ramen", list[0].Title)

	rec = h.do(t, http.MethodGet, "/api/transactions?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := fmt.Sprintf("/api/transactions/%d", first.ID)
	rec = h.do(t, http.MethodPut, path, map[string]any{"title": "Tacos Tuesday", "billLink": "https://example.com/r.png"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.Transaction](t, rec)
	assert.Equal(t, "Tacos Tuesday", updated.Title)
	require.NotNil(t, updated.BillLink)
	assert.Equal(t, "https://example.com/r.png", *updated.BillLink)
	assert.Len(t, updated.Splits, 2, "shares are kept when absent from the body")

	rec = h.do(t, http.MethodPut, path, map[string]any{"transactionType": "CRUISE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Transaction deleted"}`, rec.Body.String())

	rec = h.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(t, http.MethodPut, path, map[string]any{"title": "gone"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
