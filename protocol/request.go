package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"stepjog/motion"
)

// Kind classifies a request
type Kind uint8

const (
	KindMotion Kind = iota // carries a motion.Command
	KindSpeed              // selects a speed tier
	KindStatus             // asks for one status line
	KindHelp               // asks for the command list
	KindDump               // asks for the timing ring
	KindInfo               // asks for the backend description
)

// Request is one parsed request line
type Request struct {
	Kind    Kind
	Command motion.Command // KindMotion

	// KindSpeed: either an absolute tier (Relative == 0) or a step of
	// +1/-1 tiers
	Tier     int
	Relative int
}

// HelpText lists the requests understood by the controller
var HelpText = []string{
	"jog + | jog - | fwd | rev   start jogging",
	"stop                        decelerate to rest",
	"estop                       halt immediately",
	"zero                        set position to 0",
	"speed <tier> | speed + | speed -",
	"status                      report position and state",
	"dump                        print the motion event log",
	"info                        describe the step backend",
}

// ParseRequest tokenizes line with shell quoting rules and decodes it.
// Blank lines and comments return ErrEmptyRequest.
func ParseRequest(line string) (Request, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	if len(words) == 0 {
		return Request{}, ErrEmptyRequest
	}

	verb := strings.ToLower(words[0])
	args := words[1:]

	switch verb {
	case "jog":
		if len(args) != 1 {
			return Request{}, fmt.Errorf("%w: jog takes + or -", ErrBadArgument)
		}
		switch args[0] {
		case "+", "fwd", "forward":
			return motionRequest(motion.JogForward), nil
		case "-", "rev", "reverse":
			return motionRequest(motion.JogReverse), nil
		}
		return Request{}, fmt.Errorf("%w: jog direction %q", ErrBadArgument, args[0])
	case "fwd", "jog+":
		return noArgs(args, motionRequest(motion.JogForward))
	case "rev", "jog-":
		return noArgs(args, motionRequest(motion.JogReverse))
	case "stop":
		return noArgs(args, motionRequest(motion.Stop))
	case "zero":
		return noArgs(args, motionRequest(motion.SetZero))
	case "estop", "!":
		return noArgs(args, motionRequest(motion.EmergencyStop))
	case "speed":
		return parseSpeed(args)
	case "status", "?":
		return noArgs(args, Request{Kind: KindStatus})
	case "help":
		return noArgs(args, Request{Kind: KindHelp})
	case "dump":
		return noArgs(args, Request{Kind: KindDump})
	case "info":
		return noArgs(args, Request{Kind: KindInfo})
	}
	return Request{}, fmt.Errorf("%w: %s", ErrUnknownCommand, verb)
}

func motionRequest(cmd motion.Command) Request {
	return Request{Kind: KindMotion, Command: cmd}
}

func noArgs(args []string, req Request) (Request, error) {
	if len(args) != 0 {
		return Request{}, fmt.Errorf("%w: unexpected %q", ErrBadArgument, args[0])
	}
	return req, nil
}

func parseSpeed(args []string) (Request, error) {
	if len(args) != 1 {
		return Request{}, fmt.Errorf("%w: speed takes a tier, + or -", ErrBadArgument)
	}
	switch args[0] {
	case "+":
		return Request{Kind: KindSpeed, Relative: 1}, nil
	case "-":
		return Request{Kind: KindSpeed, Relative: -1}, nil
	}
	tier, err := strconv.Atoi(args[0])
	if err != nil || tier < 0 {
		return Request{}, fmt.Errorf("%w: speed tier %q", ErrBadArgument, args[0])
	}
	return Request{Kind: KindSpeed, Tier: tier}, nil
}

// String renders the request in its canonical line form
func (r Request) String() string {
	switch r.Kind {
	case KindMotion:
		return FormatCommand(r.Command)
	case KindSpeed:
		switch {
		case r.Relative > 0:
			return "speed +"
		case r.Relative < 0:
			return "speed -"
		}
		return "speed " + strconv.Itoa(r.Tier)
	case KindStatus:
		return "status"
	case KindHelp:
		return "help"
	case KindDump:
		return "dump"
	case KindInfo:
		return "info"
	}
	return ""
}

// FormatCommand renders a motion command as a request line
func FormatCommand(cmd motion.Command) string {
	switch cmd {
	case motion.JogForward:
		return "jog +"
	case motion.JogReverse:
		return "jog -"
	case motion.Stop:
		return "stop"
	case motion.SetZero:
		return "zero"
	case motion.EmergencyStop:
		return "estop"
	}
	return ""
}
