package llmq

// BlockIndex is a node in the in-memory block tree. Each index holds a back
// pointer to its parent, so ancestry can be resolved without touching disk.
type BlockIndex struct {
	Hash   Identifier
	Height uint32
	Parent *BlockIndex
}

// GetAncestor walks back from this index and returns the ancestor at the
// given height, or nil if the height is above this index or the chain of
// parents ends before reaching it.
func (b *BlockIndex) GetAncestor(height uint32) *BlockIndex {
	if height > b.Height {
		return nil
	}
	index := b
	for index != nil && index.Height > height {
		index = index.Parent
	}
	return index
}
