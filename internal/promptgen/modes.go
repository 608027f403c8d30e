package promptgen

import "server/internal/domain"

// ModeInstruction describes one sensory mode to the model: what the tag
// means and the heuristic for choosing it.
type ModeInstruction struct {
	Mode        domain.SensoryMode
	Description string
	Examples    string
}

var modeInstructions = map[domain.SensoryMode]ModeInstruction{
	domain.ModeWrite: {
		Mode:        domain.ModeWrite,
		Description: "memorization-critical material the learner should reproduce by hand from memory",
		Examples:    "definitions, formulas, key dates, vocabulary",
	},
	domain.ModeType: {
		Mode:        domain.ModeType,
		Description: "moderately important or intuitive material the learner should retype to internalize",
		Examples:    "worked explanations, cause-and-effect statements",
	},
	domain.ModeListen: {
		Mode:        domain.ModeListen,
		Description: "background or supplementary material suited to passive audio review",
		Examples:    "historical context, anecdotes, motivation",
	},
	domain.ModeMermaid: {
		Mode:        domain.ModeMermaid,
		Description: "processes or relationships best studied as a diagram",
		Examples:    "workflows, hierarchies, state transitions",
	},
}

// Instruction returns the instruction entry for a mode.
func Instruction(mode domain.SensoryMode) (ModeInstruction, bool) {
	inst, ok := modeInstructions[mode]
	return inst, ok
}
