// Package keymap defines key bindings and action dispatch for the viewer.
package keymap

// Action represents a user-triggerable action.
type Action string

const (
	// Global actions
	ActionQuit       Action = "quit"
	ActionHelp       Action = "help"
	ActionToggleGrid Action = "toggle_grid"
	ActionCycleStyle Action = "cycle_style"

	// Single image view
	ActionNext    Action = "next"
	ActionPrev    Action = "prev"
	ActionFirst   Action = "first"
	ActionLast    Action = "last"
	ActionRestart Action = "restart_animation"

	// Grid navigation
	ActionMoveUp    Action = "move_up"
	ActionMoveDown  Action = "move_down"
	ActionMoveLeft  Action = "move_left"
	ActionMoveRight Action = "move_right"
	ActionOpen      Action = "open" // enter - show the selected image
)
