package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/model"
)

func TestChatGPT(t *testing.T) {
	txn := &model.Transaction{
		Title:           "Coffee",
		TransactionType: model.TypeDining,
		BillAmount:      4,
		Date:            "2024-05-17",
	}
	chat := &fakeChat{txn: txn}
	h := newHarness(t, Deps{Chat: chat})

	rec := h.do(t, http.MethodPost, "/api/chat/gpt", map[string]any{
		"id":       "m-1",
		"type":     "text",
		"sender":   "alice",
		"imageUrl": "",
		"message":  "I paid 4 for coffee",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Coffee", decode[model.Transaction](t, rec).Title)
	assert.Equal(t, "I paid 4 for coffee", chat.got.Message)
	assert.Equal(t, "m-1", chat.got.ID)
}

func TestChatGPT_MissingFields(t *testing.T) {
	chat := &fakeChat{}
	h := newHarness(t, Deps{Chat: chat})

	rec := h.do(t, http.MethodPost, "/api/chat/gpt", map[string]any{"id": "m-1", "message": "hi"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "Missing required fields")
	assert.Empty(t, chat.got.ID, "normalizer must not be called")
}

func TestChatGPT_UpstreamFailure(t *testing.T) {
	chat := &fakeChat{err: fmt.Errorf("%w: splits total 3 does not match billAmount 4", common.ErrSchemaViolation)}
	h := newHarness(t, Deps{Chat: chat})

	rec := h.do(t, http.MethodPost, "/api/chat/gpt", map[string]any{
		"id": "m-2", "type": "text", "sender": "bob", "imageUrl": "", "message": "lunch",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "does not match")
}

func TestChatGPT_NotConfigured(t *testing.T) {
	h := newHarness(t, Deps{})
	rec := h.do(t, http.MethodPost, "/api/chat/gpt", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
