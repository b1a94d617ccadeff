package errorvalues

import "errors"

var (
	ErrUserExists       = errors.New("such user already exists")
	ErrUserNotFound     = errors.New("user doesn't exists")
	ErrWrongCredentials = errors.New("wrong name or password")
	ErrInvalidToken     = errors.New("invalid token")

	// ErrAuthRequired is returned by every user-scoped operation
	// called without an authenticated user.
	ErrAuthRequired = errors.New("no authenticated user")

	ErrActivityNotFound = errors.New("activity doesn't exists")
	ErrGoalNotFound     = errors.New("goal doesn't exists")
	ErrWrongOwner       = errors.New("record belongs to another user")
	ErrOwnerNotFound    = errors.New("owner of record doesn't exists")
)

// RemoteError wraps a store gateway failure with the operation that hit it.
// The local cache is guaranteed untouched whenever one is returned.
type RemoteError struct {
	Op  string
	Err error
}

func (re *RemoteError) Error() string {
	return "remote " + re.Op + " failed: " + re.Err.Error()
}

func (re *RemoteError) Unwrap() error {
	return re.Err
}

func Remote(op string, err error) error {
	return &RemoteError{Op: op, Err: err}
}
