package log

const (
	FieldKeyRound = "round"
	FieldKeyGroup = "group"
	FieldKeyProbe = "probe"
	FieldKeyStage = "stage"
	FieldKeySlot  = "slot"
)

// Fields type, used to pass to `WithFields`.
type Fields map[string]any
