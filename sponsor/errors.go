package sponsor

import "github.com/bitfsorg/sponsor-go/fault"

// ErrDataDirLocked indicates another process already serves this data directory.
var ErrDataDirLocked = fault.New(fault.KindStorage, "DataDirLocked", "sponsor: data directory in use")
