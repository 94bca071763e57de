package walhist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vasylcode/walhist/internal/model"
	"github.com/vasylcode/walhist/internal/util"
)

// CommandResult represents the result of a command execution
type CommandResult struct {
	Success  bool
	Message  string
	IsHelp   bool   // Show as popup
	HelpText string // Multi-line help content
	Quit     bool   // Signal to quit app
}

// paletteTarget is what palette commands act on
type paletteTarget interface {
	SelectTicker(ticker string) error
	Assets() []model.Symbol
	Top()
	DecryptAll() int
	AddOwner(address, name string) error
	Owners() map[string]string
	Reload()
}

// CommandPalette handles command parsing and execution
type CommandPalette struct {
	target  paletteTarget
	history []string
	histIdx int
}

// NewCommandPalette creates a new command palette
func NewCommandPalette(target paletteTarget) *CommandPalette {
	return &CommandPalette{
		target:  target,
		history: []string{},
		histIdx: -1,
	}
}

// Execute parses and executes a command string
func (cp *CommandPalette) Execute(input string) CommandResult {
	input = strings.TrimSpace(input)
	if input == "" {
		return CommandResult{Success: false, Message: ""}
	}

	// Add to history
	cp.history = append(cp.history, input)
	cp.histIdx = len(cp.history)

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "q", "quit", "exit":
		return CommandResult{Quit: true}
	case "asset", "a":
		return cp.cmdAsset(args)
	case "decrypt", "dec":
		return cp.cmdDecrypt()
	case "top", "t":
		cp.target.Top()
		return CommandResult{Success: true, Message: "Scrolled to top"}
	case "owner", "o":
		return cp.cmdOwner(args)
	case "owners":
		return cp.cmdOwners()
	case "reload", "r":
		cp.target.Reload()
		return CommandResult{Success: true, Message: "Reloading history"}
	case "help", "h", "?":
		return cp.cmdHelp()
	default:
		return CommandResult{Success: false, Message: fmt.Sprintf("Unknown command: %s (:help for commands)", cmd)}
	}
}

// GetHistory returns previous command (for up arrow)
func (cp *CommandPalette) GetHistory(direction int) string {
	if len(cp.history) == 0 {
		return ""
	}
	cp.histIdx += direction
	if cp.histIdx < 0 {
		cp.histIdx = 0
	}
	if cp.histIdx >= len(cp.history) {
		cp.histIdx = len(cp.history)
		return ""
	}
	return cp.history[cp.histIdx]
}

func (cp *CommandPalette) cmdAsset(args []string) CommandResult {
	if len(args) == 0 {
		assets := cp.target.Assets()
		if len(assets) == 0 {
			return CommandResult{Success: false, Message: "No assets in the ledger"}
		}
		var b strings.Builder
		b.WriteString("[yellow]Assets:[white]\n\n")
		for _, symbol := range assets {
			fmt.Fprintf(&b, "[green]%s[white] %s\n", symbol.Ticker, util.ShortAddress(symbol.Address))
		}
		return CommandResult{Success: true, IsHelp: true, HelpText: b.String()}
	}

	if err := cp.target.SelectTicker(args[0]); err != nil {
		return CommandResult{Success: false, Message: fmt.Sprintf("Error: %v", err)}
	}
	return CommandResult{Success: true, Message: fmt.Sprintf("Showing %s", args[0])}
}

func (cp *CommandPalette) cmdDecrypt() CommandResult {
	n := cp.target.DecryptAll()
	if n == 0 {
		return CommandResult{Success: true, Message: "No encrypted comments"}
	}
	return CommandResult{Success: true, Message: fmt.Sprintf("Decrypting %d comments", n)}
}

func (cp *CommandPalette) cmdOwner(args []string) CommandResult {
	// owner <address> <name...>
	if len(args) < 2 {
		return CommandResult{Success: false, Message: "Usage: owner ADDR NAME"}
	}
	name := strings.Join(args[1:], " ")
	if err := cp.target.AddOwner(args[0], name); err != nil {
		return CommandResult{Success: false, Message: fmt.Sprintf("Error: %v", err)}
	}
	return CommandResult{Success: true, Message: fmt.Sprintf("Added owner: %s (%s)", name, util.ShortAddress(args[0]))}
}

func (cp *CommandPalette) cmdOwners() CommandResult {
	owners := cp.target.Owners()
	if len(owners) == 0 {
		return CommandResult{Success: false, Message: "No owners recorded"}
	}
	addresses := make([]string, 0, len(owners))
	for address := range owners {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	var b strings.Builder
	b.WriteString("[yellow]Owners:[white]\n\n")
	for _, address := range addresses {
		fmt.Fprintf(&b, "[green]%s[white] %s\n", owners[address], util.ShortAddress(address))
	}
	return CommandResult{Success: true, IsHelp: true, HelpText: b.String()}
}

func (cp *CommandPalette) cmdHelp() CommandResult {
	help := `[yellow]Commands:[white]

[green]asset[white] (TICKER)   list assets or show one
[green]decrypt[white]          decrypt every encrypted comment
[green]top[white]              scroll to the newest transaction

[green]owner[white] ADDR NAME  name a token wallet owner
[green]owners[white]           list owner names

[green]reload[white]           reload the ledger
[green]q[white]                quit

[yellow]Shortcuts:[white] a=asset dec=decrypt t=top o=owner r=reload`
	return CommandResult{Success: true, IsHelp: true, HelpText: help}
}
