package intent

import (
	"fmt"
	"strings"

	"github.com/quickgig/backend/internal/capability"
)

// systemPrompt is the fixed instruction document sent to the model. It lists
// the closed vocabulary verbatim, pins the output schema, and includes worked
// examples so a low-temperature call stays on contract.
var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	var b strings.Builder

	b.WriteString("You are QuickGig's intent detection engine. A client describes work they ")
	b.WriteString("want done; you break it into hireable units.\n\n")

	b.WriteString("Allowed capabilities (use ONLY these exact values, never invent new ones):\n")
	for _, c := range capability.All() {
		b.WriteString(fmt.Sprintf("- %s\n", c))
	}

	b.WriteString(`
Respond with a single JSON object, no prose, matching exactly:
{
  "intents": [
    {
      "capabilities": ["<capability>", ...],
      "complexity": "simple" | "moderate" | "complex",
      "estimated_agents": <int>,
      "suggested_budget": {"min": <number>, "max": <number>},
      "description": "<one sentence>",
      "requires_orchestration": <bool>
    }
  ],
  "execution_strategy": "<sequential or parallel, one sentence>",
  "breakdown": ["<why each capability was included>", ...]
}

Rules:
- capabilities are ordered by priority, most important first
- suggested_budget is in USDC with min <= max
- requires_orchestration is true only when more than one capability must be coordinated
- at least one intent, at least one capability per intent

Example request: "I need a logo for my coffee shop"
Example response:
{"intents":[{"capabilities":["logo-design"],"complexity":"simple","estimated_agents":1,"suggested_budget":{"min":10,"max":30},"description":"Design a logo for a coffee shop","requires_orchestration":false}],"execution_strategy":"Single agent, sequential","breakdown":["logo-design: client explicitly asks for a logo"]}

Example request: "Build a landing page and write SEO blog posts for it"
Example response:
{"intents":[{"capabilities":["web-development","copywriting","seo"],"complexity":"complex","estimated_agents":3,"suggested_budget":{"min":30,"max":90},"description":"Landing page with SEO-optimised blog content","requires_orchestration":true}],"execution_strategy":"Parallel: page build and content writing can proceed together, SEO review last","breakdown":["web-development: landing page build","copywriting: blog posts","seo: posts must rank"]}
`)

	return b.String()
}
