package authz

import "errors"

// ErrDenied is returned when no rule in the table allows the operation.
// Handlers surface it as 404 for reads where existence is sensitive, 403
// otherwise; it is never downgraded to an empty result set.
var ErrDenied = errors.New("authorization denied")

// ErrBadKey is returned when a blob key does not start with a numeric
// owner segment.
var ErrBadKey = errors.New("blob key has no owner segment")
