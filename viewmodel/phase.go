package viewmodel

// Phase is the lifecycle of a compose session.
type Phase int

const (
	PhaseEditing Phase = iota
	PhaseSubmitting
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhaseCompleted:
		return "completed"
	default:
		return "editing"
	}
}

// FormError is the derived validation state of a post draft.
type FormError int

const (
	FormErrorNone FormError = iota
	FormErrorTitle
)
