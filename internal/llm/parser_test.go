package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/common"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json fence",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "bare fence",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "fence with other language tag",
			input: "```javascript\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "prose around json fence",
			input: "Here is the result:\n```json\n{\"a\": 1}\n```\nLet me know!",
			want:  `{"a": 1}`,
		},
		{
			name:  "json fence preferred over earlier bare fence",
			input: "```\nnot this\n```\n```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "no fence",
			input: "  {\"a\": 1}  \n",
			want:  `{"a": 1}`,
		},
		{
			name:  "single line fence",
			input: "```{\"a\": 1}```",
			want:  `{"a": 1}`,
		},
		{
			name:  "unterminated fence",
			input: "```json\n{\"a\": 1}",
			want:  `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.input))
		})
	}
}

func TestStripCodeFenceIdempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"items\": []}\n```",
		"```\n[1, 2, 3]\n```",
		"plain text",
		"",
		"   spaced   ",
		"```python\nprint(1)\n```",
		"prefix ```json\n{}\n``` suffix",
	}

	for _, in := range inputs {
		once := StripCodeFence(in)
		assert.Equal(t, once, StripCodeFence(once), "input %q", in)
	}
}

func TestDecodeObject(t *testing.T) {
	t.Run("fenced object", func(t *testing.T) {
		obj, err := DecodeObject("```json\n{\"total_amount\": 12.50, \"items\": []}\n```")
		require.NoError(t, err)
		assert.Equal(t, json.Number("12.50"), obj["total_amount"])
		assert.Equal(t, []any{}, obj["items"])
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodeObject("{not json")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrMalformedResponse)
	})

	t.Run("array is not an object", func(t *testing.T) {
		_, err := DecodeObject("[1,2]")
		assert.ErrorIs(t, err, common.ErrMalformedResponse)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := DecodeObject("```json\n```")
		assert.ErrorIs(t, err, common.ErrMalformedResponse)
	})
}

func TestDecodeJSON(t *testing.T) {
	type target struct {
		Agent string `json:"agent"`
	}

	var got target
	require.NoError(t, DecodeJSON("```json\n{\"agent\": \"agent_1\"}\n```", &got))
	assert.Equal(t, "agent_1", got.Agent)

	err := DecodeJSON(`{"agent": "agent_1", "extra": true}`, &got)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestCoercions(t *testing.T) {
	tests := []struct {
		in     any
		name   string
		want   float64
		wantOK bool
	}{
		{name: "json number", in: json.Number("3.5"), want: 3.5, wantOK: true},
		{name: "float", in: 2.25, want: 2.25, wantOK: true},
		{name: "int", in: 4, want: 4, wantOK: true},
		{name: "currency string", in: "$1,234.50", want: 1234.50, wantOK: true},
		{name: "empty string", in: "", wantOK: false},
		{name: "garbage string", in: "twelve", wantOK: false},
		{name: "nil", in: nil, wantOK: false},
		{name: "bool", in: true, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsFloat(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 0.0001)
			}
		})
	}

	n, ok := AsInt(json.Number("2"))
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	n, ok = AsInt(json.Number("2.9"))
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	_, ok = AsInt("x")
	assert.False(t, ok)

	s, ok := AsString("hi")
	assert.True(t, ok)
	assert.Equal(t, "hi", s)

	_, ok = AsSlice(map[string]any{})
	assert.False(t, ok)

	_, ok = AsMap([]any{})
	assert.False(t, ok)
}
