package render

import "strings"

// Markdown renders markdown content for terminal display. Renderers are
// reused across calls with equal options, so re-rendering a streaming reply
// on every increment stays cheap.
func Markdown(content string, opts Options) (string, error) {
	r, err := renderers.acquire(opts)
	if err != nil {
		return "", err
	}
	defer renderers.release(opts, r)

	return r.Render(content)
}

// Partial renders a reply that is still streaming. An unterminated code fence
// is closed first so the rest of the reply is not swallowed into it.
func Partial(content string, opts Options) (string, error) {
	return Markdown(CloseOpenFence(content), opts)
}

// CloseOpenFence appends a closing ``` when content has an odd number of
// fence lines.
func CloseOpenFence(content string) string {
	open := false
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			open = !open
		}
	}
	if !open {
		return content
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "```"
}
