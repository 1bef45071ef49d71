package instance

import (
	"fmt"
	"strings"

	"github.com/TheBB/Grevling/pkg/gerr"
)

// Status is one of the five monotonic lifecycle states an Instance
// passes through.
type Status string

const (
	Created    Status = "created"
	Prepared   Status = "prepared"
	Started    Status = "started"
	Finished   Status = "finished"
	Downloaded Status = "downloaded"
)

// order gives each status its position for monotonicity checks.
var order = map[Status]int{
	Created:    0,
	Prepared:   1,
	Started:    2,
	Finished:   3,
	Downloaded: 4,
}

// ParseStatus validates a status.txt value.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if _, ok := order[st]; !ok {
		return "", gerr.Wrap("instance.ParseStatus", s, gerr.ErrInvalidStatus)
	}
	return st, nil
}

// before reports whether a may transition to b (b strictly later, or
// equal — re-persisting the same status is a no-op, not an error).
func (a Status) before(b Status) bool {
	return order[a] <= order[b]
}

func (a Status) validateTransition(to Status) error {
	if !a.before(to) {
		return gerr.Wrap("instance.Status.validateTransition", fmt.Sprintf("%s -> %s", a, to), gerr.ErrInvalidStatus)
	}
	return nil
}
