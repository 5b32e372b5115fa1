package domain

// Model variants a personality may select.
const (
	ModelFlash = "gemini-3-flash-preview"
	ModelPro   = "gemini-3-pro-preview"
)

// Personality is a named configuration bundle that selects the remote model's behavior.
type Personality struct {
	ID                string   `json:"id" yaml:"id"`
	Name              string   `json:"name" yaml:"name"`
	Description       string   `json:"description" yaml:"description"`
	SystemInstruction string   `json:"systemInstruction" yaml:"system_instruction"`
	Icon              string   `json:"icon" yaml:"icon"`
	Color             string   `json:"color" yaml:"color"`
	Model             string   `json:"model" yaml:"model"`
	Starters          []string `json:"starters,omitempty" yaml:"starters,omitempty"`
}

// Clone returns a deep copy of p.
func (p Personality) Clone() Personality {
	if p.Starters != nil {
		p.Starters = append([]string(nil), p.Starters...)
	}
	return p
}

// BrevityConstraint is appended to every personality instruction sent upstream.
const BrevityConstraint = "\n\nCRITICAL CONSTRAINT: Keep your response STRICTLY under 20 words. \nEXCEPTION: If the user explicitly asks for an explanation, details, or to 'elaborate', IGNORE the word count limit and provide a full, detailed answer."

// Instruction returns the system instruction sent to the model.
func (p Personality) Instruction() string {
	return p.SystemInstruction + BrevityConstraint
}
