package output

// Result values carried by a terminal Message.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Message is the JSON frame pushed to a live listener. Exactly one field
// group is set per frame.
type Message struct {
	// Output is one progress line rendered as markup.
	Output string `json:"output,omitempty"`

	// Result is the terminal outcome of a run.
	Result string `json:"result,omitempty"`

	// Step and Status report a step state change.
	Step   string `json:"step,omitempty"`
	Status string `json:"status,omitempty"`

	// Error reports a run that could not be executed.
	Error string `json:"error,omitempty"`
}

// ResultMessage builds the terminal frame for a run outcome.
func ResultMessage(ok bool) Message {
	if ok {
		return Message{Result: ResultSuccess}
	}
	return Message{Result: ResultFailure}
}
