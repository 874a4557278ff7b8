package jsonextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "bare object",
			in:   `{"elements": []}`,
			want: `{"elements":[]}`,
		},
		{
			name: "fenced json block",
			in:   "```json\n{\"completed\": true, \"progress\": \"done\"}\n```",
			want: `{"completed":true,"progress":"done"}`,
		},
		{
			name: "fence without language tag",
			in:   "```\n[{\"elementId\": 7}]\n```",
			want: `[{"elementId":7}]`,
		},
		{
			name: "conversational wrapping",
			in:   `Sure! Here is the result you asked for: {"tool": "act", "instruction": "click login"} Hope that helps.`,
			want: `{"tool":"act","instruction":"click login"}`,
		},
		{
			name: "nested braces inside strings",
			in:   `The answer: {"note": "a {weird} value", "n": 1}`,
			want: `{"note":"a {weird} value","n":1}`,
		},
		{
			name:    "no json at all",
			in:      "I could not find any matching elements on this page.",
			wantErr: true,
		},
		{
			name:    "empty input",
			in:      "   ",
			wantErr: true,
		},
		{
			name:    "truncated object",
			in:      `{"elements": [{"elementId": 3, "description": "subm`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestUnmarshal(t *testing.T) {
	var out struct {
		Completed bool   `json:"completed"`
		Progress  string `json:"progress"`
	}
	err := Unmarshal("```json\n{\"completed\": false, \"progress\": \"2 of 3 chunks\"}\n```", &out)
	require.NoError(t, err)
	assert.False(t, out.Completed)
	assert.Equal(t, "2 of 3 chunks", out.Progress)
}
