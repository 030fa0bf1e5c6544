package bc

type FuncID int32
type BlockID int32
type LocalID int32
type ClsRefSlot int32

const (
	NoFuncID     FuncID     = -1
	NoBlockID    BlockID    = -1
	NoLocalID    LocalID    = -1
	NoClsRefSlot ClsRefSlot = -1
)
