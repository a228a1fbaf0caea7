package agent

import internalutil "github.com/hupe1980/accountplan/internal/util"

// Instruction is a prompt template rendered as a text/template against the
// prompt data.
type Instruction struct {
	text string
}

// NewInstructionFromText creates an Instruction from a template string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// Resolve renders the instruction against data.
func (i Instruction) Resolve(data any) (string, error) {
	return internalutil.RenderTemplate(i.text, data)
}
