//go:build unix

package termcap

import (
	"os"

	"golang.org/x/sys/unix"
)

// cellSize returns the cell dimensions in pixels by querying TIOCGWINSZ.
// The zero CellSize is returned when the terminal does not report pixels.
func cellSize() CellSize {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 || ws.Row == 0 || ws.Xpixel == 0 || ws.Ypixel == 0 {
		return CellSize{}
	}
	return CellSize{
		Width:  int(ws.Xpixel) / int(ws.Col),
		Height: int(ws.Ypixel) / int(ws.Row),
	}
}
