package models

// FragmentKind discriminates the two sub-streams a model can emit.
type FragmentKind string

const (
	// FragmentContent is visible assistant text.
	FragmentContent FragmentKind = "content"
	// FragmentReasoning is the model's internal deliberation. Reasoning text
	// is wrapped in <think>...</think> delimiters at the point of emission,
	// so downstream consumers treat it as ordinary content.
	FragmentReasoning FragmentKind = "reasoning"
)

// ThinkOpen and ThinkClose delimit reasoning text inside assistant content.
const (
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"
)

// Fragment is one incremental unit of generated text. Fragments are transient;
// they exist for the duration of one generation and are folded into a
// ChatTurn's content when the stream ends.
type Fragment struct {
	Kind FragmentKind
	Text string
}
