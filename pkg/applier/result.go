package applier

type Result string

const (
	Created       Result = "created"
	Updated       Result = "updated"
	AlreadyExists Result = "already_exists"
	Failed        Result = "failed"
)

func (r Result) String() string {
	return string(r)
}
