package rag

import (
	"fmt"
	"strings"

	"groundchat/internal/citation"
	"groundchat/internal/llm"
)

// Sources are the evidence pools offered to the model for one question.
type Sources struct {
	KB   []citation.KBInput
	Web  []citation.WebInput
	Meta []citation.MetaInput
	// ListMode asks for an answer about the document listing itself.
	ListMode bool
}

const systemPrompt = "You are an assistant that answers using only the numbered sources provided. " +
	"Cite knowledge-base sources as [cit:N] and web sources as [web:N], where N is the number shown " +
	"next to the source. Several sources go in one bracket: [cit:1, cit:3] or [cit:2, web:1]. " +
	"Never cite a number that is not listed. If the sources do not answer the question, say so."

const listModePrompt = " The question is about the document collection itself: refer to each document " +
	"by its number in the listing, e.g. [cit:3] for the third document."

// BuildMessages formats the system prompt and the user message carrying every pool.
func BuildMessages(question string, src Sources) []llm.Message {
	system := systemPrompt
	if src.ListMode {
		system += listModePrompt
	}

	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n\n")

	switch {
	case src.ListMode && len(src.Meta) > 0:
		b.WriteString("--- Documents ---\n")
		for _, m := range src.Meta {
			fmt.Fprintf(&b, "[cit:%d] %s\n", m.Index, m.Filename)
		}
		b.WriteString("\n")
	case len(src.KB) > 0:
		b.WriteString("--- Knowledge base ---\n")
		for _, kb := range src.KB {
			fmt.Fprintf(&b, "[cit:%d] %s (chunk %d)\n%s\n\n", kb.Index, kb.Filename, kb.ChunkIndex, kb.Content)
		}
	}

	if len(src.Web) > 0 {
		b.WriteString("--- Web ---\n")
		for _, w := range src.Web {
			fmt.Fprintf(&b, "[web:%d] %s <%s>\n%s\n\n", w.Index, w.Title, w.URL, w.Content)
		}
	}

	if len(src.KB) == 0 && len(src.Web) == 0 && len(src.Meta) == 0 {
		b.WriteString("(no sources available)\n")
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: strings.TrimRight(b.String(), "\n")},
	}
}

// Pools converts the prompt sources into the evidence pools the answer is resolved against.
func (s Sources) Pools() citation.Pools {
	return citation.NewPools(s.KB, s.Web, s.Meta)
}
