package ir

// Dense ids. Negative means "absent"; the No* sentinels are the only
// negative values that should ever appear.
type (
	FuncID  int32
	BlockID int32
	LocalID int32
)

const (
	NoFuncID  FuncID  = -1
	NoBlockID BlockID = -1
	NoLocalID LocalID = -1
)

func (id FuncID) IsValid() bool  { return id >= 0 }
func (id BlockID) IsValid() bool { return id >= 0 }
func (id LocalID) IsValid() bool { return id >= 0 }
