package nowfile

import "github.com/toschoo/nowdb-go/nowerr"

// ErrNotMapped is returned by operations requiring a mapped writer
// window when none is currently held.
var ErrNotMapped = nowerr.Sentinel(nowerr.Invalid)
