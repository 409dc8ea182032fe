package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"eduvid/internal/job"
)

func TestStripFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "json fence",
			in:   "```json\n{\"title\": \"x\"}\n```",
			want: `{"title": "x"}`,
		},
		{
			name: "bare fence",
			in:   "```\n{\"title\": \"x\"}\n```",
			want: `{"title": "x"}`,
		},
		{
			name: "fence with surrounding prose",
			in:   "Here is the script:\n```json\n{\"a\": 1}\n```\nLet me know!",
			want: `{"a": 1}`,
		},
		{
			name: "no fence",
			in:   "  {\"a\": 1}\n",
			want: `{"a": 1}`,
		},
		{
			name: "multiline fenced body",
			in:   "```json\n{\n  \"a\": 1\n}\n```",
			want: "{\n  \"a\": 1\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFence(tt.in, jsonFenceRe); got != tt.want {
				t.Errorf("stripFence = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnsureClassName(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		index     int
		wantClass string
	}{
		{
			name:      "renames mismatched class",
			code:      "from manim import *\n\nclass MyAnimation(Scene):\n    def construct(self):\n        pass\n",
			index:     0,
			wantClass: "class Scene1(Scene)",
		},
		{
			name:      "keeps exact name",
			code:      "class Scene2(Scene):\n    def construct(self):\n        pass\n",
			index:     1,
			wantClass: "class Scene2(Scene)",
		},
		{
			name:      "keeps name containing scene number",
			code:      "class Scene3Intro(Scene):\n    def construct(self):\n        pass\n",
			index:     2,
			wantClass: "class Scene3Intro(Scene)",
		},
		{
			name:      "handles odd whitespace",
			code:      "class  Weird ( Scene ):\n    def construct(self):\n        pass\n",
			index:     0,
			wantClass: "class Scene1(Scene)",
		},
		{
			name:      "missing class gets placeholder",
			code:      "print('no class here')",
			index:     4,
			wantClass: "class Scene5(Scene)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ensureClassName(tt.code, tt.index)
			if !strings.Contains(got, tt.wantClass) {
				t.Errorf("result missing %q:\n%s", tt.wantClass, got)
			}
		})
	}
}

func TestValidateScript(t *testing.T) {
	valid := func() *job.Script {
		return &job.Script{
			Title:       "T",
			Description: "D",
			Scenes: []job.Scene{{
				Narration:         "n",
				VisualDescription: "v",
				StartTime:         "00:00",
				EndTime:           "00:10",
			}},
		}
	}

	if err := validateScript(valid()); err != nil {
		t.Fatalf("valid script rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*job.Script)
	}{
		{"no title", func(s *job.Script) { s.Title = "" }},
		{"no scenes", func(s *job.Script) { s.Scenes = nil }},
		{"scene missing narration", func(s *job.Script) { s.Scenes[0].Narration = "" }},
		{"scene missing timestamps", func(s *job.Script) { s.Scenes[0].StartTime = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			if err := validateScript(s); err == nil {
				t.Error("invalid script accepted")
			}
		})
	}
}

func TestGenerateScriptParsesFencedResponse(t *testing.T) {
	script := job.Script{
		Title:       "Gravity",
		Description: "An intro to gravity",
		Scenes: []job.Scene{
			{Narration: "a", VisualDescription: "b", StartTime: "00:00", EndTime: "00:10"},
			{Narration: "c", VisualDescription: "d", StartTime: "00:10", EndTime: "00:20"},
			{Narration: "e", VisualDescription: "f", StartTime: "00:20", EndTime: "00:30"},
		},
	}
	payload, _ := json.Marshal(script)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fenced := "```json\n" + string(payload) + "\n```"
		body, _ := json.Marshal(map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"parts": []any{map[string]any{"text": fenced}},
					},
				},
			},
		})
		w.Write(body)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := c.GenerateScript(context.Background(), "gravity")
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	if got.Title != "Gravity" || len(got.Scenes) != 3 {
		t.Errorf("script = %+v", got)
	}
}

func TestGenerateScriptAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"code": 429, "message": "quota exhausted", "status": "RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.GenerateScript(context.Background(), "gravity")
	if err == nil {
		t.Fatal("GenerateScript succeeded on API error")
	}
	if !strings.Contains(err.Error(), "quota exhausted") {
		t.Errorf("error does not carry API message: %v", err)
	}
}
