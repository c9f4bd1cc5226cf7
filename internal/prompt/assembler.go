// Package prompt builds system and user prompts for each conversation mode
// and manages the stored prompt templates.
package prompt

import (
	"fmt"
	"math"
	"strings"

	"lantern/internal/domain"
	"lantern/internal/domain/models"
)

// Assembled is the prompt pair handed to the upstream client.
type Assembled struct {
	System string
	User   string
}

// Inputs carries the pre-step products consumed by assembly. Search results
// and retrieval matches are opaque collaborator output.
type Inputs struct {
	Prompts       Prompts
	SearchResults []models.SearchResult
	RAGMatches    []models.RAGMatch
}

// Assemble builds the prompt pair for one turn. Free chat passes the message
// through untouched with no system prompt. Search mode requires at least one
// result and fails with a validation error otherwise. Retrieval matches drive
// the whole user prompt in RAG mode; in every other mode they are appended as
// supplementary reference material when present.
func Assemble(mode models.ConversationMode, message string, in Inputs) (Assembled, error) {
	assembled, err := assembleMode(mode, message, in)
	if err != nil {
		return Assembled{}, err
	}
	if mode != models.ModeRAG && len(in.RAGMatches) > 0 {
		assembled.User += "\n\nSupplementary reference material:\n\n" +
			joinMatches(in.RAGMatches) +
			"\n\nUse it when relevant and cite the filenames."
	}
	return assembled, nil
}

func assembleMode(mode models.ConversationMode, message string, in Inputs) (Assembled, error) {
	switch mode {
	case models.ModeFree:
		return Assembled{User: message}, nil

	case models.ModeExplain:
		return Assembled{
			System: joinInstructions(in.Prompts.Common, in.Prompts.Explain),
			User: fmt.Sprintf("Explain the following.\n\n%s\n\n"+
				"Structure the answer in this exact order: overview, details, concrete examples, summary.",
				message),
		}, nil

	case models.ModeIdea:
		return Assembled{
			System: joinInstructions(in.Prompts.Common, in.Prompts.Idea),
			User: fmt.Sprintf("Brainstorm around the following.\n\n%s\n\n"+
				"Structure the answer in this exact order: framing of the problem, candidate ideas, recommended next steps.",
				message),
		}, nil

	case models.ModeSearch:
		if len(in.SearchResults) == 0 {
			return Assembled{}, &domain.ValidationError{Message: "search mode requires search results"}
		}
		return Assembled{
			System: in.Prompts.Common,
			User:   searchPrompt(message, in.SearchResults),
		}, nil

	case models.ModeRAG:
		return Assembled{
			System: in.Prompts.Common,
			User:   ragPrompt(message, in.RAGMatches),
		}, nil

	default:
		return Assembled{}, &domain.ValidationError{Message: fmt.Sprintf("unknown conversation mode: %s", mode)}
	}
}

func joinInstructions(common, specific string) string {
	switch {
	case common == "":
		return specific
	case specific == "":
		return common
	}
	return common + "\n\n" + specific
}

// searchPrompt embeds each result indexed [1], [2], ... and instructs the
// model to cite source URLs.
func searchPrompt(message string, results []models.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Answer the question using the web search results below.\n\nQuestion: %s\n\nSearch results:\n", message)
	for i, r := range results {
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n%s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	b.WriteString("\nCite the URLs of the results you rely on.")
	return b.String()
}

// ragSeparator joins retrieval matches in the assembled prompt.
const ragSeparator = "\n\n---\n\n"

// ragPrompt embeds each retrieval match with its source filename and
// relevance score rounded to the nearest percent. With no matches, the model
// is told to say so rather than fabricate an answer.
func ragPrompt(message string, matches []models.RAGMatch) string {
	if len(matches) == 0 {
		return fmt.Sprintf("%s\n\n"+
			"No matching reference material was found in the knowledge base for this question. "+
			"Say so explicitly instead of guessing.", message)
	}

	return fmt.Sprintf("%s\n\nReference material:\n\n%s\n\nCite the filenames of the material you rely on.",
		message, joinMatches(matches))
}

func joinMatches(matches []models.RAGMatch) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		percent := int(math.Round(m.Score * 100))
		parts[i] = fmt.Sprintf("[%s] (relevance %d%%)\n%s", m.Metadata.Filename, percent, m.Content)
	}
	return strings.Join(parts, ragSeparator)
}
