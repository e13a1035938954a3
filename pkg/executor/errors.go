package executor

import "errors"

var errShortKey = errors.New("row key ended before every primary-key column was decoded")
