package logsvc

import (
	"os"

	"golang.org/x/term"
)

var isTerminal = func(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }
