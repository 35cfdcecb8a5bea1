package dashboard

import "fmt"

type Action int

const (
	AddDownloads Action = iota
	Autoclear
	Cancel
	Enter
	Filter
	Help
	MoveDown
	MoveDownStep
	MoveEnd
	MoveHome
	MoveLeft
	MoveRight
	MoveUp
	MoveUpStep
	NextSort
	PreviousSort
	PriorityDown
	PriorityUp
	Quit
	RemoveAsk
	Retry
	RetryAll
	ReverseSort
	SelectSort
	TogglePause
	TogglePauseAll
)

// Names as used in key binding configuration.
var actionNames = map[Action]string{
	AddDownloads:   "ADD_DOWNLOADS",
	Autoclear:      "AUTOCLEAR",
	Cancel:         "CANCEL",
	Enter:          "ENTER",
	Filter:         "FILTER",
	Help:           "HELP",
	MoveDown:       "MOVE_DOWN",
	MoveDownStep:   "MOVE_DOWN_STEP",
	MoveEnd:        "MOVE_END",
	MoveHome:       "MOVE_HOME",
	MoveLeft:       "MOVE_LEFT",
	MoveRight:      "MOVE_RIGHT",
	MoveUp:         "MOVE_UP",
	MoveUpStep:     "MOVE_UP_STEP",
	NextSort:       "NEXT_SORT",
	PreviousSort:   "PREVIOUS_SORT",
	PriorityDown:   "PRIORITY_DOWN",
	PriorityUp:     "PRIORITY_UP",
	Quit:           "QUIT",
	RemoveAsk:      "REMOVE_ASK",
	Retry:          "RETRY",
	RetryAll:       "RETRY_ALL",
	ReverseSort:    "REVERSE_SORT",
	SelectSort:     "SELECT_SORT",
	TogglePause:    "TOGGLE_RESUME_PAUSE",
	TogglePauseAll: "TOGGLE_RESUME_PAUSE_ALL",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction returns the action with the configuration name s.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action: %s", s)
}

// Actions returns all actions in declaration order.
func Actions() []Action {
	actions := make([]Action, 0, len(actionNames))
	for a := AddDownloads; a <= TogglePauseAll; a++ {
		actions = append(actions, a)
	}
	return actions
}

// Descriptions shown in the help overlay, in display order.
var helpLines = []struct {
	action Action
	text   string
}{
	{Help, "show this help screen"},
	{MoveUp, "scroll downloads list"},
	{MoveUpStep, "scroll downloads list (steps)"},
	{MoveDown, "scroll downloads list"},
	{MoveDownStep, "scroll downloads list (steps)"},
	{MoveLeft, "scroll columns left"},
	{MoveRight, "scroll columns right"},
	{TogglePause, "toggle pause/resume"},
	{TogglePauseAll, "toggle pause/resume all"},
	{PriorityUp, "priority up (-)"},
	{PriorityDown, "priority down (+)"},
	{ReverseSort, "invert sort order"},
	{NextSort, "sort next column"},
	{PreviousSort, "sort previous column"},
	{SelectSort, "select sort column"},
	{Filter, "cycle status filter"},
	{RemoveAsk, "remove download"},
	{Autoclear, "autopurge downloads"},
	{AddDownloads, "add downloads"},
	{MoveHome, "move focus to first download"},
	{MoveEnd, "move focus to last download"},
	{Retry, "retry failed download"},
	{RetryAll, "retry all failed downloads"},
	{Quit, "quit"},
}
