//go:build !unix

package termcap

func cellSize() CellSize { return CellSize{} }
