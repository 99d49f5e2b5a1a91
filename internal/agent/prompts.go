package agent

import (
	"fmt"
	"strings"
)

func systemPrompt() string {
	return strings.TrimSpace(`You are a helpful assistant with access to tools.

Requirements:
- Use tools when they can answer the question with real data; do not guess values a tool can provide.
- If a tool call fails, read the error, correct the arguments or approach, and try again or explain the failure.
- Respond in plain text. Be concise unless the user asks for more detail.
- Never invent tool names or results.`)
}

func developerPrompt(toolNames []string) string {
	return strings.TrimSpace(fmt.Sprintf(`You can call tools: %s.

Tool usage rules:
- Keep tool inputs minimal and focused.
- Tool results may be truncated; ask again with narrower arguments if needed.
- After the tools have answered, reply to the user with a final text message instead of calling more tools.`, strings.Join(toolNames, ", ")))
}
