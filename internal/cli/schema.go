// Package cli holds what reportqa and reportqad share: a machine readable command
// schema behind --help-json, so scripts can discover commands, arguments and flags.
package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const helpJSONFlag = "help-json"

// FlagSchema describes one flag.
type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Inherited   bool   `json:"inherited,omitempty"`
}

// CommandSchema describes a command and, recursively, its visible subcommands.
type CommandSchema struct {
	Name        string          `json:"name"`
	Args        string          `json:"args,omitempty"`
	Aliases     []string        `json:"aliases,omitempty"`
	Description string          `json:"description,omitempty"`
	Long        string          `json:"long,omitempty"`
	Example     string          `json:"example,omitempty"`
	Runnable    bool            `json:"runnable"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

// GenerateSchema describes cmd. Store flags declared on the root show up on every
// subcommand as inherited so each entry is self contained.
func GenerateSchema(cmd *cobra.Command) CommandSchema {
	schema := CommandSchema{
		Name:        cmd.Name(),
		Args:        argsOf(cmd),
		Aliases:     cmd.Aliases,
		Description: cmd.Short,
		Long:        cmd.Long,
		Example:     cmd.Example,
		Runnable:    cmd.Runnable(),
		Flags:       flagsOf(cmd),
	}

	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		schema.Subcommands = append(schema.Subcommands, GenerateSchema(sub))
	}
	return schema
}

// argsOf returns the positional part of Use, e.g. "<file>..." for "ingest <file>...".
func argsOf(cmd *cobra.Command) string {
	_, rest, _ := strings.Cut(cmd.Use, " ")
	return strings.TrimSpace(rest)
}

func flagsOf(cmd *cobra.Command) []FlagSchema {
	var flags []FlagSchema
	add := func(inherited bool) func(*pflag.Flag) {
		return func(f *pflag.Flag) {
			if f.Hidden || f.Name == helpJSONFlag || f.Name == "help" {
				return
			}
			flags = append(flags, FlagSchema{
				Name:        f.Name,
				Shorthand:   f.Shorthand,
				Type:        f.Value.Type(),
				Default:     f.DefValue,
				Description: f.Usage,
				Required:    isRequired(f),
				Inherited:   inherited,
			})
		}
	}
	cmd.LocalFlags().VisitAll(add(false))
	cmd.InheritedFlags().VisitAll(add(true))
	return flags
}

// isRequired reports flags marked with cobra's MarkFlagRequired.
func isRequired(f *pflag.Flag) bool {
	vals, ok := f.Annotations[cobra.BashCompOneRequiredFlag]
	return ok && slices.Contains(vals, "true")
}

// AddHelpJSONFlag registers --help-json so it shows up in --help output and is
// accepted anywhere on the command line.
func AddHelpJSONFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool(helpJSONFlag, false, "Output command schema as JSON")
}

// Execute runs root with args. When args contain --help-json, the schema of the
// command named before it is written to root's output instead; argument
// validation is skipped, so "reportqa ask --help-json" works without a question.
func Execute(root *cobra.Command, args []string) error {
	if i := slices.Index(args, "--"+helpJSONFlag); i >= 0 {
		target := findTargetCommand(root, args[:i])
		out, err := json.MarshalIndent(GenerateSchema(target), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to generate schema: %w", err)
		}
		_, err = fmt.Fprintln(root.OutOrStdout(), string(out))
		return err
	}

	root.SetArgs(args)
	return root.Execute()
}

// findTargetCommand follows args down the command tree until a word is not a
// subcommand name or alias.
func findTargetCommand(cmd *cobra.Command, args []string) *cobra.Command {
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		next := cmd
		for _, sub := range cmd.Commands() {
			if sub.Name() == arg || sub.HasAlias(arg) {
				next = sub
				break
			}
		}
		if next == cmd {
			return cmd
		}
		cmd = next
	}
	return cmd
}
