package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() (*cobra.Command, *bool) {
	ran := false
	root := &cobra.Command{Use: "reportqa", Short: "root"}
	AddHelpJSONFlag(root)
	root.PersistentFlags().String("db-path", "", "Vector store directory")

	ask := &cobra.Command{
		Use:     "ask <question>",
		Short:   "Ask",
		Aliases: []string{"q"},
		Args:    cobra.ExactArgs(1),
		Run:     func(*cobra.Command, []string) { ran = true },
	}
	ask.Flags().String("company", "", "Only use chunks from this company")
	ask.Flags().String("year", "", "Only use chunks from this year")
	_ = ask.MarkFlagRequired("year")

	hidden := &cobra.Command{Use: "secret", Hidden: true, Run: func(*cobra.Command, []string) {}}
	root.AddCommand(ask, hidden)
	return root, &ran
}

func TestGenerateSchema(t *testing.T) {
	root, _ := testTree()

	schema := GenerateSchema(root)

	assert.Equal(t, "reportqa", schema.Name)
	assert.False(t, schema.Runnable)
	require.Len(t, schema.Subcommands, 1)

	ask := schema.Subcommands[0]
	assert.Equal(t, "ask", ask.Name)
	assert.Equal(t, "<question>", ask.Args)
	assert.Equal(t, []string{"q"}, ask.Aliases)
	assert.True(t, ask.Runnable)
	assert.Equal(t, []FlagSchema{
		{Name: "company", Type: "string", Description: "Only use chunks from this company"},
		{Name: "year", Type: "string", Description: "Only use chunks from this year", Required: true},
		{Name: "db-path", Type: "string", Description: "Vector store directory", Inherited: true},
	}, ask.Flags)
}

func TestExecute_HelpJSONSkipsArgValidation(t *testing.T) {
	root, ran := testTree()
	var out bytes.Buffer
	root.SetOut(&out)

	require.NoError(t, Execute(root, []string{"q", "--help-json"}))

	assert.False(t, *ran)
	var schema CommandSchema
	require.NoError(t, json.Unmarshal(out.Bytes(), &schema))
	assert.Equal(t, "ask", schema.Name)
}

func TestExecute_RunsCommand(t *testing.T) {
	root, ran := testTree()

	require.NoError(t, Execute(root, []string{"ask", "--year", "2023", "what?"}))
	assert.True(t, *ran)

	root, _ = testTree()
	assert.Error(t, Execute(root, []string{"ask", "what?"}))
}

func TestFindTargetCommand(t *testing.T) {
	root := &cobra.Command{Use: "reportqad"}
	migrate := &cobra.Command{Use: "migrate"}
	up := &cobra.Command{Use: "up", Run: func(*cobra.Command, []string) {}}
	migrate.AddCommand(up)
	root.AddCommand(migrate)

	assert.Equal(t, up, findTargetCommand(root, []string{"migrate", "up"}))
	assert.Equal(t, up, findTargetCommand(root, []string{"--db-path", "migrate", "up"}))
	assert.Equal(t, migrate, findTargetCommand(root, []string{"migrate", "sideways", "up"}))
	assert.Equal(t, root, findTargetCommand(root, nil))
}
