package normalizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/validate"
)

func TestParseChatRequest(t *testing.T) {
	t.Run("string image", func(t *testing.T) {
		req, err := ParseChatRequest([]byte(`{"id": 7, "type": "text", "sender": "alice", "imageUrl": "https://example.com/r.png", "message": "pizza 15"}`))
		require.NoError(t, err)
		assert.Equal(t, "7", req.ID)
		assert.Equal(t, "text", req.Type)
		assert.Equal(t, "alice", req.Sender)
		assert.Equal(t, "https://example.com/r.png", req.ImageURL)
		assert.Equal(t, "pizza 15", req.Message)
	})

	t.Run("byte image", func(t *testing.T) {
		req, err := ParseChatRequest([]byte(`{"id": "1", "type": "image", "sender": "alice", "imageUrl": [137, 80, 78, 71, 13, 10, 26, 10], "message": "receipt"}`))
		require.NoError(t, err)
		assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", req.ImageURL)
	})

	t.Run("empty image", func(t *testing.T) {
		req, err := ParseChatRequest([]byte(`{"id": "1", "type": "text", "sender": "a", "imageUrl": "", "message": "m"}`))
		require.NoError(t, err)
		assert.Empty(t, req.ImageURL)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := ParseChatRequest([]byte(`{"id": "1", "type": "text", "message": "m"}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Contains(t, err.Error(), "Missing required fields")
		assert.Contains(t, err.Error(), "sender")
		assert.Contains(t, err.Error(), "imageUrl")
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseChatRequest([]byte(`id=1`))
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("object image", func(t *testing.T) {
		_, err := ParseChatRequest([]byte(`{"id": "1", "type": "t", "sender": "a", "imageUrl": {"x": 1}, "message": "m"}`))
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

type fakeLLM struct {
	err   error
	reply string
	last  llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.last = req
	return f.reply, f.err
}

type directory struct {
	people []model.Person
	splits []model.Split
}

func (d directory) GetPeople(context.Context) ([]model.Person, error) { return d.people, nil }
func (d directory) GetSplits(context.Context) ([]model.Split, error)  { return d.splits, nil }

var testDirectory = directory{
	people: []model.Person{{ID: 1, Name: "Alice", Email: "alice@example.com"}, {ID: 2, Name: "Bob", Email: "bob@example.com"}},
	splits: []model.Split{{ID: 4, Name: "Dinner Out", People: []model.Person{{ID: 1}, {ID: 2}}}},
}

const chatReply = "```json\n" + `{
  "splitId": 4,
  "title": "Pizza",
  "transactionType": "DINING",
  "billAmount": 15,
  "items": [{"name": "Pizza", "price": 15}],
  "splits": [{"person": {"id": 1, "name": "Alice"}, "amount": 7.5}, {"person": {"id": 2, "name": "Bob"}, "amount": 7.5}],
  "paidBy": [{"person": {"id": 1, "name": "Alice"}, "amount": 15}]
}` + "\n```"

func newTestNormalizer(client llm.Client) *Normalizer {
	n := New(client, testDirectory, validate.New(nil), "Alice", nil)
	n.now = func() time.Time { return time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC) }
	return n
}

func TestNormalize(t *testing.T) {
	client := &fakeLLM{reply: chatReply}

	txn, err := newTestNormalizer(client).Normalize(context.Background(), ChatRequest{
		ID: "9", Type: "text", Sender: "alice", Message: "Pizza for 15 with Bob",
	})
	require.NoError(t, err)
	assert.Equal(t, "Pizza", txn.Title)
	assert.Equal(t, int64(4), txn.SplitID)
	assert.Equal(t, "2025-03-03", txn.Date)

	assert.Nil(t, client.last.Image)
	assert.Contains(t, client.last.Prompt, "user_text:Pizza for 15 with Bob")
	assert.Contains(t, client.last.Prompt, "metadata:9 text alice")
	require.Len(t, client.last.Context, 1)
	assert.Contains(t, client.last.Context[0], "I am Alice")
	assert.Contains(t, client.last.Context[0], `"splits": [`)
	assert.Contains(t, client.last.Context[0], `"name": "Bob"`)
}

func TestNormalize_WithImage(t *testing.T) {
	client := &fakeLLM{reply: chatReply}
	_, err := newTestNormalizer(client).Normalize(context.Background(), ChatRequest{Message: "see receipt", ImageURL: "data:image/png;base64,iVA="})
	require.NoError(t, err)
	require.NotNil(t, client.last.Image)
	assert.Equal(t, "data:image/png;base64,iVA=", client.last.Image.URL)
}

func TestNormalize_Failures(t *testing.T) {
	tests := []struct {
		client *fakeLLM
		want   error
		name   string
	}{
		{
			name:   "prose",
			client: &fakeLLM{reply: "It looks like pizza."},
			want:   common.ErrMalformedResponse,
		},
		{
			name:   "amount invariant",
			client: &fakeLLM{reply: `{"title":"Pizza","transactionType":"DINING","billAmount":15,"date":"2025-01-01","items":[],"splits":[{"person":{"id":1},"amount":5}],"paidBy":[{"person":{"id":1},"amount":15}]}`},
			want:   common.ErrSchemaViolation,
		},
		{
			name:   "upstream",
			client: &fakeLLM{err: errors.New("boom")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestNormalizer(tt.client).Normalize(context.Background(), ChatRequest{Message: "x"})
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}
