package intake

import "triage/assistant/internal/types"

// Question ids used by the record field table and the urgency table.
const (
	QuestionName      = 1
	QuestionAge       = 2
	QuestionGender    = 3
	QuestionSymptoms  = 4
	QuestionBleeding  = 5
	QuestionBreathing = 6
	QuestionChestPain = 7
	QuestionMobility  = 8
)

// GenderKind lists Female before Male so "female" is not read as "male".
var GenderKind = types.Enum(
	types.Option{Label: types.GenderFemale, Aliases: []string{"woman", "girl"}},
	types.Option{Label: types.GenderMale, Aliases: []string{"man", "boy"}},
	types.Option{Label: types.GenderOther, Aliases: []string{"non-binary", "nonbinary"}},
)

// DefaultQuestions is the emergency intake questionnaire.
func DefaultQuestions() []types.Question {
	return []types.Question{
		{
			ID:     QuestionName,
			Key:    "name",
			Prompt: "Hi, I'm your emergency room triage assistant. I'm here to help you today and assess your condition. Let's start. What is your name?",
			Kind:   types.Name(),
		},
		{ID: QuestionAge, Key: "age", Prompt: "What is your age?", Kind: types.IntegerRange(0, 150)},
		{ID: QuestionGender, Key: "gender", Prompt: "What is your gender? Please say male, female, or other.", Kind: GenderKind},
		{ID: QuestionSymptoms, Key: "symptoms", Prompt: "Please describe your main symptoms and what brought you here today.", Kind: types.FreeText()},
		{ID: QuestionBleeding, Key: "bleeding", Prompt: "Are you currently bleeding from any wounds? Please answer yes or no.", Kind: types.YesNo()},
		{ID: QuestionBreathing, Key: "breathing", Prompt: "Are you having trouble breathing? Please answer yes or no.", Kind: types.YesNo()},
		{ID: QuestionChestPain, Key: "chest_pain", Prompt: "Are you experiencing chest pain? Please answer yes or no.", Kind: types.YesNo()},
		{ID: QuestionMobility, Key: "mobility", Prompt: "Are you able to walk without assistance? Please answer yes or no.", Kind: types.YesNo()},
	}
}
