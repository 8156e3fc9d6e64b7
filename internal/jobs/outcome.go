package jobs

// Outcome is the single result produced for every request.
type Outcome struct {
	Success          bool   `json:"success"`
	Filename         string `json:"filename,omitempty"`
	OriginalFilename string `json:"originalFilename,omitempty"`
	Error            string `json:"error,omitempty"`
	Sarcasm          string `json:"sarcasm,omitempty"`
}

// Failed builds a failure outcome.
func Failed(message, sarcasm string) Outcome {
	return Outcome{Success: false, Error: message, Sarcasm: sarcasm}
}
