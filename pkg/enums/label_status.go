package enums

// LabelStatus tracks whether a carrier label is still usable.
type LabelStatus string

const (
	LabelStatusCreated LabelStatus = "created"
	LabelStatusVoided  LabelStatus = "voided"
)

func (l LabelStatus) String() string { return string(l) }
