package handler

import "fmt"

// keySequences maps the named keys accepted by the input endpoint's
// "key" field to their terminal escape sequences.
var keySequences = map[string]string{
	"enter":     "\r",
	"escape":    "\x1b",
	"backspace": "\x7f",
	"tab":       "\t",
	"up":        "\x1b[A",
	"down":      "\x1b[B",
	"right":     "\x1b[C",
	"left":      "\x1b[D",
	"home":      "\x1b[H",
	"end":       "\x1b[F",
	"pageup":    "\x1b[5~",
	"pagedown":  "\x1b[6~",
	"delete":    "\x1b[3~",
	"ctrl-c":    "\x03",
	"ctrl-d":    "\x04",
	"ctrl-z":    "\x1a",
	"ctrl-l":    "\x0c",
	"f1":        "\x1bOP",
	"f2":        "\x1bOQ",
	"f3":        "\x1bOR",
	"f4":        "\x1bOS",
}

func keySequence(name string) (string, bool) {
	seq, ok := keySequences[name]
	return seq, ok
}

func errUnknownKey(name string) error {
	return fmt.Errorf("unknown key %q", name)
}
