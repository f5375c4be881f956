package interactive

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MOYARU/vigil/internal/app/scan"
	"github.com/MOYARU/vigil/internal/app/ui"
	msges "github.com/MOYARU/vigil/internal/messages"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var usage = []string{
	"file <path> [--json] [--html] [--yes]",
	"url <url> [--json] [--html] [--yes]",
	"email <path|-> [--json] [--html]",
	"claim <text...> [--json] [--html]",
	"media <path> [--type MIME] [--json] [--html]",
	"help",
	"clear / cls",
	"exit / quit",
}

// RunInteractiveMode reads commands from a raw-mode prompt until exit or Ctrl+C.
func RunInteractiveMode(cmdObj *cobra.Command, base scan.Options) {
	ui.PrintGradientAsciiArt()

	helpText := cmdObj.Long
	helpText = strings.Replace(helpText, ui.AsciiArt, "", 1)
	fmt.Println(helpText)

	fmt.Println()
	fmt.Printf("%s%s%s\n", ui.ColorGray, msges.GetUIMessage("InteractiveWelcome"), ui.ColorReset)

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		fmt.Println("Failed to enter raw mode:", err)
		return
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	var cmdBuffer []rune
	var cursorPos int
	history := []string{}
	historyIndex := 0
	readBuf := make([]byte, 1024)

Loop:
	for {
		moveBack := 0
		for _, r := range cmdBuffer[cursorPos:] {
			moveBack += runeWidth(r)
		}

		fmt.Print("\r\033[K" + getPrompt() + string(cmdBuffer))
		if moveBack > 0 {
			fmt.Printf("\033[%dD", moveBack)
		}

		n, err := os.Stdin.Read(readBuf)
		if err != nil {
			break
		}

		// arrow keys
		if n >= 3 && readBuf[0] == 27 && readBuf[1] == 91 {
			switch readBuf[2] {
			case 65: // Up
				if historyIndex > 0 {
					historyIndex--
					cmdBuffer = []rune(history[historyIndex])
					cursorPos = len(cmdBuffer)
				}
			case 66: // Down
				if historyIndex < len(history)-1 {
					historyIndex++
					cmdBuffer = []rune(history[historyIndex])
					cursorPos = len(cmdBuffer)
				} else {
					historyIndex = len(history)
					cmdBuffer = []rune{}
					cursorPos = 0
				}
			case 68: // Left
				if cursorPos > 0 {
					cursorPos--
				}
			case 67: // Right
				if cursorPos < len(cmdBuffer) {
					cursorPos++
				}
			}
			continue
		}

		for _, char := range []rune(string(readBuf[:n])) {
			switch char {
			case 3: // Ctrl+C
				term.Restore(int(os.Stdin.Fd()), oldState)
				fmt.Println()
				return
			case 13, 10: // Enter
				term.Restore(int(os.Stdin.Fd()), oldState)
				fmt.Println()
				input := strings.TrimSpace(string(cmdBuffer))
				if len(input) > 0 {
					history = append(history, input)
					historyIndex = len(history)
				}
				cmdBuffer = []rune{}
				cursorPos = 0

				if processCommand(input, base) {
					return
				}
				oldState, _ = term.MakeRaw(int(os.Stdin.Fd()))
				continue Loop
			case 127, 8: // Backspace
				if cursorPos > 0 {
					cmdBuffer = append(cmdBuffer[:cursorPos-1], cmdBuffer[cursorPos:]...)
					cursorPos--
				}
			default:
				if char >= 32 {
					cmdBuffer = append(cmdBuffer, 0)
					copy(cmdBuffer[cursorPos+1:], cmdBuffer[cursorPos:])
					cmdBuffer[cursorPos] = char
					cursorPos++
				}
			}
		}
	}
}

// runeWidth counts East Asian wide characters as two cells.
func runeWidth(r rune) int {
	if r >= 0x1100 && (r <= 0x115f || r == 0x2329 || r == 0x232a ||
		(r >= 0x2e80 && r <= 0xa4cf && r != 0x303f) ||
		(r >= 0xac00 && r <= 0xd7a3) ||
		(r >= 0xf900 && r <= 0xfaff) ||
		(r >= 0xfe10 && r <= 0xfe19) ||
		(r >= 0xfe30 && r <= 0xfe6f) ||
		(r >= 0xff00 && r <= 0xff60) ||
		(r >= 0xffe0 && r <= 0xffe6)) {
		return 2
	}
	return 1
}

func getPrompt() string {
	return fmt.Sprintf("%svigil > %s", ui.ColorGray, ui.ColorReset)
}

func processCommand(input string, base scan.Options) bool {
	if input == "exit" || input == "quit" {
		fmt.Printf("%s%s%s\n", ui.ColorGray, msges.GetUIMessage("InteractiveExit"), ui.ColorReset)
		return true
	}

	if input == "clear" || input == "cls" {
		fmt.Print("\033[H\033[2J")
		return false
	}

	if input == "help" {
		fmt.Printf("%s%s%s\n", ui.ColorWhite, msges.GetUIMessage("InteractiveHelp"), ui.ColorReset)
		for _, line := range usage {
			fmt.Printf("%s  %s%s\n", ui.ColorGray, line, ui.ColorReset)
		}
		return false
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}

	command := parts[0]
	args, opts, contentType, err := parseFlags(parts[1:], base)
	if err != nil {
		fmt.Printf("%s%s%s\n", ui.ColorRed, err, ui.ColorReset)
		return false
	}

	var run func() error
	switch command {
	case "file":
		run = func() error { return scan.RunFile(args[0], opts) }
	case "url":
		run = func() error { return scan.RunURL(args[0], opts) }
	case "email":
		run = func() error { return scan.RunEmail(args[0], opts) }
	case "claim":
		run = func() error { return scan.RunClaim(strings.Join(args, " "), opts) }
	case "media":
		run = func() error { return scan.RunMedia(args[0], contentType, opts) }
	default:
		fmt.Printf("%s%s%s\n", ui.ColorRed, msges.GetUIMessage("InteractiveUnknown", command), ui.ColorReset)
		return false
	}
	if len(args) == 0 {
		fmt.Printf("%s%s%s\n", ui.ColorRed, msges.GetUIMessage("InteractiveErrorArg", command), ui.ColorReset)
		return false
	}
	// runners print their own failure details
	_ = run()
	return false
}

// parseFlags splits the report and upload flags from the positional arguments.
func parseFlags(in []string, base scan.Options) ([]string, scan.Options, string, error) {
	opts := base
	var args []string
	contentType := ""
	for i := 0; i < len(in); i++ {
		switch arg := in[i]; arg {
		case "--json":
			opts.JSON = true
		case "--html":
			opts.HTML = true
		case "--yes", "-y":
			opts.AssumeYes = true
		case "--type":
			if i+1 >= len(in) {
				return nil, opts, "", errors.New(msges.GetUIMessage("InteractiveErrorArg", arg))
			}
			contentType = in[i+1]
			i++
		default:
			if strings.HasPrefix(arg, "--") {
				return nil, opts, "", errors.New(msges.GetUIMessage("InteractiveBadFlag", arg))
			}
			args = append(args, arg)
		}
	}
	return args, opts, contentType, nil
}
