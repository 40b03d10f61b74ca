package api

// Question is an immutable quiz question. Each question carries exactly
// four answer options and the index of the correct one.
type Question struct {
	ID           string   `json:"id"                    yaml:"ID"`
	Prompt       string   `json:"prompt"                yaml:"Prompt"`
	Options      []string `json:"options"               yaml:"Options"`
	CorrectIndex int      `json:"correctIndex"          yaml:"CorrectIndex"`
	Category     string   `json:"category,omitempty"    yaml:"Category"`
	Difficulty   string   `json:"difficulty,omitempty"  yaml:"Difficulty"`
	Explanation  *string  `json:"explanation,omitempty" yaml:"Explanation"`
}

// NumOptions is the number of answer options every question must carry.
const NumOptions = 4
