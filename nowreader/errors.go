package nowreader

import (
	"strconv"

	"github.com/toschoo/nowdb-go/nowerr"
)

func nowerrNoSuchFile(fileID uint32) error {
	return nowerr.New(nowerr.Invalid, "nowreader.PageCache.Load", strconv.FormatUint(uint64(fileID), 10), nil)
}
