package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

// allOption clears a filter field, matching the "All" entry of a selector.
const allOption = "All"

const helpText = `Commands:
  /company <name|All>                     filter answers by company
  /year <year|All>                        filter answers by year
  /ingest [--company X] [--year Y] FILE…  replace the collection with FILEs
  /load                                   reload the stored collection
  /clear                                  clear the chat history
  /delete                                 delete the stored collection
  /help                                   show this help
  /quit                                   exit`

type command struct {
	name    string
	args    []string
	company string
	year    string
}

// value returns the single free-text argument, with "All" read as blank.
func (c command) value() string {
	v := strings.Join(c.args, " ")
	if strings.EqualFold(v, allOption) {
		return ""
	}
	return v
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return command{}, fmt.Errorf("empty command, try /help")
	}
	cmd := command{name: strings.ToLower(fields[0]), args: fields[1:]}

	switch cmd.name {
	case "company", "year":
		if len(cmd.args) == 0 {
			return command{}, fmt.Errorf("usage: /%s <value|All>", cmd.name)
		}
	case "ingest":
		fs := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.StringVar(&cmd.company, "company", "", "company name for every file")
		fs.StringVar(&cmd.year, "year", "", "report year for every file")
		if err := fs.Parse(cmd.args); err != nil {
			return command{}, fmt.Errorf("ingest: %w", err)
		}
		cmd.args = fs.Args()
		if len(cmd.args) == 0 {
			return command{}, fmt.Errorf("usage: /ingest [--company X] [--year Y] FILE...")
		}
	case "load", "clear", "delete", "help", "quit", "exit":
	default:
		return command{}, fmt.Errorf("unknown command /%s, try /help", cmd.name)
	}
	return cmd, nil
}
