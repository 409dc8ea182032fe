package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"eduvid/internal/job"
)

const scriptPromptTemplate = `Create an educational video script with precise timestamps for a video about: %q.
Format the script as JSON with the following structure:
{
  "title": "Video Title",
  "description": "Brief description of the video",
  "scenes": [
    {
      "startTime": "00:00",
      "endTime": "00:XX",
      "narration": "What should be spoken during this scene",
      "visualDescription": "Detailed description of what should be shown visually, suitable for generating Manim code"
    }
  ]
}
Make sure each scene has detailed visual descriptions that can be used to generate mathematical animations with Manim.
Keep scenes between 5-20 seconds each.
The visual descriptions should be very specific about what mathematical elements to show and how they should be animated.
Include at least 3 scenes but no more than 6 scenes.`

var (
	jsonFenceRe = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```")
	anyFenceRe  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)\\n```")
)

// GenerateScript asks the model for a structured script and validates the
// result before returning it.
func (c *Client) GenerateScript(ctx context.Context, prompt string) (*job.Script, error) {
	text, err := c.generate(ctx, fmt.Sprintf(scriptPromptTemplate, prompt))
	if err != nil {
		return nil, err
	}

	raw := stripFence(text, jsonFenceRe)

	var script job.Script
	if err := json.Unmarshal([]byte(raw), &script); err != nil {
		return nil, fmt.Errorf("gemini: script is not valid JSON: %w", err)
	}
	if err := validateScript(&script); err != nil {
		return nil, err
	}
	return &script, nil
}

// stripFence returns the content inside a markdown code fence, trying the
// language-specific fence first and a bare fence second. Unfenced text is
// returned trimmed.
func stripFence(text string, langRe *regexp.Regexp) string {
	if m := langRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := anyFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

func validateScript(s *job.Script) error {
	if s.Title == "" || s.Description == "" {
		return fmt.Errorf("gemini: script missing title or description")
	}
	if len(s.Scenes) == 0 {
		return fmt.Errorf("gemini: script has no scenes")
	}
	for i, scene := range s.Scenes {
		if scene.Narration == "" || scene.VisualDescription == "" {
			return fmt.Errorf("gemini: scene %d missing narration or visual description", i)
		}
		if scene.StartTime == "" || scene.EndTime == "" {
			return fmt.Errorf("gemini: scene %d missing timestamps", i)
		}
	}
	return nil
}
