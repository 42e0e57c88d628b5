package tui

// Key bindings. Right and left stand in for the tap zones of the screen.
const (
	KeyNext      = "right"
	KeyNextAlt   = "l"
	KeyNextSpace = " "
	KeyPrev      = "left"
	KeyPrevAlt   = "h"
	KeyPause     = "p"
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
)
