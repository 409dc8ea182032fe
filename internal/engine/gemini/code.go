package gemini

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"eduvid/internal/job"
)

const codePromptTemplate = `Generate Manim Python code for the following scene description: %q

This should be scene #%d running from %s to %s.

Generate a complete, executable Manim Python class that extends Scene. The code should:
1. Create appropriate mathematical visualizations based on the description
2. Use appropriate animations with proper timing
3. Include any necessary text elements that match the narration: %q
4. Be fully self-contained and runnable as a single file
5. Use best practices for clean, efficient Manim code

Return ONLY the Python code without any explanations or markdown.

Make sure the class name is unique and includes the scene number, like 'Scene%d' or similar.

The code should work with Manim Community Edition.`

var (
	pyFenceRe    = regexp.MustCompile("(?s)```python\\s*\\n(.*?)\\n```")
	sceneClassRe = regexp.MustCompile(`class\s+(\w+)\s*\(\s*Scene\s*\)`)
)

// GenerateSceneCode asks the model for a Manim scene class and normalizes
// its class name so the renderer can find it.
func (c *Client) GenerateSceneCode(ctx context.Context, scene job.Scene, index int) (string, error) {
	prompt := fmt.Sprintf(codePromptTemplate,
		scene.VisualDescription,
		index+1,
		scene.StartTime, scene.EndTime,
		scene.Narration,
		index+1,
	)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	code := stripFence(text, pyFenceRe)
	return ensureClassName(code, index), nil
}

// ensureClassName makes sure the code defines a Scene subclass named for the
// scene number. Code without any Scene class gets a minimal placeholder so
// rendering produces something rather than nothing.
func ensureClassName(code string, index int) string {
	want := fmt.Sprintf("Scene%d", index+1)

	m := sceneClassRe.FindStringSubmatch(code)
	if m == nil {
		return fmt.Sprintf(`from manim import *

class %s(Scene):
    def construct(self):
        title = Text("Scene %d")
        self.play(Write(title))
        self.wait(2)
        self.play(FadeOut(title))
`, want, index+1)
	}

	if strings.Contains(m[1], want) {
		return code
	}
	return sceneClassRe.ReplaceAllString(code, fmt.Sprintf("class %s(Scene)", want))
}
