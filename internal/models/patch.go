package models

// Dimensions is the width and height of one pyramid level in pixels
type Dimensions struct {
	// Width is the number of columns at the level
	Width int

	// Height is the number of rows at the level
	Height int
}

// Coordinate is a level-0 pixel position used to seed patch extraction
type Coordinate struct {
	// Row is the vertical position (the "h" column of a patch frame)
	Row int

	// Col is the horizontal position (the "w" column of a patch frame)
	Col int
}

// PatchRecord describes one accepted patch
type PatchRecord struct {
	// ID is the identifier of the source image (file name without extension)
	ID string

	// Row is the level-0 row of the patch's top-left corner
	Row int

	// Col is the level-0 column of the patch's top-left corner
	Col int

	// Class is the label the patch was sampled for; 0 is unannotated tissue
	Class uint8

	// Level is the pyramid level the patch is read at
	Level int

	// Size is the side length of the square patch in pixels at Level
	Size int

	// Parent is the path of the source image
	Parent string
}

// Coordinate returns the level-0 anchor of the patch
func (p PatchRecord) Coordinate() Coordinate {
	return Coordinate{Row: p.Row, Col: p.Col}
}
