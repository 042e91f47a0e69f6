package router

import (
	"fmt"
	"strings"
)

const promptHead = `You are an information retrieval bot. You are given the latest chat messages addressed to %s and a set of tools. Your job is to select the information collection tools needed to answer the last message.

Tools format:
tool["parameter"]: description (tools can be called multiple times with different parameters, 0-1 parameter per call)

Tools:
recent-turns[]: recent full text chat messages
summarized-memory[]: compressed summary of the conversation so far, covers many more messages than recent-turns
long-term-memory["query"]: facts remembered from past days; the parameter is the search query
`

const webSearchTool = `web-search["query"]: search the web; use only for current events or facts you cannot know
`

const promptExamples = `ready[]: you have selected everything needed, end of the list

Answer with one "Thought:" line, then "Tools:" followed by one tool call per line, ending with ready[].

Example 1:
bob: Do you think you can help me with that?
Thought: This continues a previous conversation, recent chat history is needed
Tools:
recent-turns[]
summarized-memory[]
ready[]

Example 2:
bob: What is the capital of France?
Thought: No additional information is needed
Tools:
ready[]

Example 3:
bob: Do you remember when we talked about my dogs? Do you remember their names?
Thought: This asks about bob, the answer may be in any of the memories
Tools:
recent-turns[]
summarized-memory[]
long-term-memory["bob's dogs names"]
ready[]
`

const webSearchExample = `
Example 4:
bob: Who won the football match last night?
Thought: This is about a recent event
Tools:
web-search["football match result last night"]
ready[]
`

// buildPrompt returns the classification prompt advertising web-search only
// when enabled.
func buildPrompt(agentName string, webSearch bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, promptHead, agentName)
	if webSearch {
		b.WriteString(webSearchTool)
	}
	b.WriteString(promptExamples)
	if webSearch {
		b.WriteString(webSearchExample)
	}
	b.WriteString("\nYour turn!")
	return b.String()
}
