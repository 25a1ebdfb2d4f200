package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// Dedicated dump log for model exchanges. Prompts and raw responses are
// long multi-line blocks; keeping them out of the main log keeps the main
// log scannable while preserving every exchange for offline inspection.

var (
	llmMu  sync.Mutex
	llmLog *log.Logger
)

func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

type llmSection struct {
	title string
	body  string
}

func logLLM(kind, provider, purpose string, sections []llmSection) {
	llmMu.Lock()
	l := llmLog
	llmMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[LLM][" + kind + "]")
	if provider != "" {
		b.WriteString("[" + provider + "]")
	}
	if purpose != "" {
		b.WriteString("[" + purpose + "]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		title := strings.TrimSpace(sec.title)
		if title == "" {
			title = "CONTENT"
		}
		b.WriteString("--- " + title + " ---\n")
		b.WriteString(sec.body)
		if !strings.HasSuffix(sec.body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}

func LogLLMRequest(provider, purpose, systemPrompt, userPrompt string, images []string) {
	sections := []llmSection{
		{title: "SYSTEM", body: systemPrompt},
		{title: "USER", body: userPrompt},
	}
	for i, img := range images {
		sections = append(sections, llmSection{title: fmt.Sprintf("IMAGE#%d", i+1), body: img})
	}
	logLLM("request", provider, purpose, sections)
}

func LogLLMResponse(provider, purpose, raw string) {
	logLLM("response", provider, purpose, []llmSection{{title: "RAW", body: raw}})
}
