package model

// PassInfo describes a pass to pipeline options.
type PassInfo struct {
	ID   PassID
	Name string
}

// ItemInfo describes an item to pipeline options.
type ItemInfo struct {
	ID     ItemID
	Name   string
	Pass   PassID
	Kind   ItemKind
	Status BuildState
}

// Key is the unique label of an item in measures and drawings.
func (i *ItemInfo) Key() string {
	return i.Name + " (" + i.ID.String() + ")"
}

// Key is the unique label of a pass in measures and drawings.
func (p *PassInfo) Key() string {
	return p.Name + " (" + p.ID.String() + ")"
}
