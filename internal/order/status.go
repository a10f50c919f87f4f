package order

import "fmt"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// noRank marks a status outside the forward ordering.
const noRank = -1

type statusMeta struct {
	rank     int
	label    string
	color    string
	terminal bool
}

// statusTable is the only place statuses are described. Adding a status means
// adding a row here; every consumer reads through the accessors below.
var statusTable = map[Status]statusMeta{
	StatusPending:    {rank: 0, label: "Menunggu", color: "yellow"},
	StatusProcessing: {rank: 1, label: "Diproses", color: "blue"},
	StatusReady:      {rank: 2, label: "Siap Diambil", color: "green"},
	StatusCompleted:  {rank: 3, label: "Selesai", color: "gray", terminal: true},
	StatusCancelled:  {rank: noRank, label: "Dibatalkan", color: "red", terminal: true},
}

var statusOrder = []Status{
	StatusPending,
	StatusProcessing,
	StatusReady,
	StatusCompleted,
	StatusCancelled,
}

// Statuses lists the vocabulary in display order.
func Statuses() []Status {
	out := make([]Status, len(statusOrder))
	copy(out, statusOrder)
	return out
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTargetStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

// Rank is the position in pending < processing < ready < completed.
// Cancelled and unknown statuses have no rank.
func (s Status) Rank() int {
	if m, ok := statusTable[s]; ok {
		return m.rank
	}
	return noRank
}

func (s Status) Label() string {
	return statusTable[s].label
}

func (s Status) Color() string {
	return statusTable[s].color
}

func (s Status) IsTerminal() bool {
	return statusTable[s].terminal
}

func (s Status) String() string {
	return string(s)
}

// CheckTransition reports whether an order in from may move to to.
// Any non-terminal order may be cancelled; otherwise the target must rank
// strictly higher, skipping ranks is allowed.
func CheckTransition(from, to Status) error {
	if !to.Valid() {
		return ErrInvalidTargetStatus
	}
	if from.IsTerminal() {
		return ErrTerminalState
	}
	if to == StatusCancelled {
		return nil
	}
	if to.Rank() <= from.Rank() {
		return ErrNonForwardTransition
	}
	return nil
}
