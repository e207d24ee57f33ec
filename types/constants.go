package types

const (
	// DefaultAccountTreeLevels is the depth of the account tree.
	DefaultAccountTreeLevels = 8
	// DefaultTxTreeLevels is the depth of the per-batch transaction tree, so a
	// batch holds exactly 1<<DefaultTxTreeLevels transfers.
	DefaultTxTreeLevels = 2
	// MaxTreeLevels bounds the depth of any tree handled by the sequencer.
	MaxTreeLevels = 32
	// FieldElementSize is the size in bytes of a serialized field element.
	FieldElementSize = 32
)
