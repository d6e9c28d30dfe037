package conversation

import "strings"

// Accumulator collects the increments of the reply being streamed. The
// Controller commits its text into the placeholder after every increment.
type Accumulator struct {
	text     strings.Builder
	received int
}

// Append adds delta in delivery order and returns the text so far
func (a *Accumulator) Append(delta string) string {
	a.text.WriteString(delta)
	a.received++
	return a.text.String()
}

// Text returns the accumulated reply
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Received returns how many increments were appended
func (a *Accumulator) Received() int {
	return a.received
}

// Reset empties the accumulator for the next reply
func (a *Accumulator) Reset() {
	a.text.Reset()
	a.received = 0
}
