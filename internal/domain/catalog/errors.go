package catalog

import "errors"

// ErrProductNotFound is returned for unknown or inactive catalog items.
var ErrProductNotFound = errors.New("product not found")
