package dialogue

import "github.com/vovakirdan/voiceaccess/internal/platform"

// Step is the position of a conversation in the menu flow. The set of
// steps is closed; each variant carries only the data it needs.
type Step interface {
	step() string
}

// MenuStep waits for a menu digit.
type MenuStep struct{}

// AddTypeStep waits for the channel type (public or private).
type AddTypeStep struct{}

// AddPublicStep waits for "@handle label".
type AddPublicStep struct{}

// AddPrivateSearchStep waits for a title substring.
type AddPrivateSearchStep struct{}

// AddPrivateChoiceStep waits for the number of one of several matches.
type AddPrivateChoiceStep struct {
	Candidates []platform.Dialog
}

// DeleteSelectStep waits for the number of the channel to delete, as listed.
type DeleteSelectStep struct {
	Labels []string
}

// SetDefaultSelectStep waits for the number of the new default channel.
type SetDefaultSelectStep struct {
	Labels []string
}

// LinkKindSelectStep waits for the link kind to generate.
type LinkKindSelectStep struct{}

func (MenuStep) step() string             { return "menu" }
func (AddTypeStep) step() string          { return "add_type" }
func (AddPublicStep) step() string        { return "add_public" }
func (AddPrivateSearchStep) step() string { return "add_private_search" }
func (AddPrivateChoiceStep) step() string { return "add_private_choice" }
func (DeleteSelectStep) step() string     { return "delete_select" }
func (SetDefaultSelectStep) step() string { return "set_default_select" }
func (LinkKindSelectStep) step() string   { return "link_kind_select" }

// StepName returns a stable name for logging.
func StepName(s Step) string {
	if s == nil {
		return "none"
	}
	return s.step()
}

// State is the dialogue state of one conversation.
type State struct {
	Step Step
	// Watermark is the highest message id already handled. Messages at or
	// below it are dropped.
	Watermark int64
}
