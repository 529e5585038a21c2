package cmd

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxquery/internal/resources"
	"github.com/teemow/inboxquery/internal/tools/gmail_tools"
	"github.com/teemow/inboxquery/internal/tools/google_tools"
	"github.com/teemow/inboxquery/internal/tools/sql_tools"
)

// docSection is one server's part of the generated reference.
type docSection struct {
	kind      serverKind
	tools     []mcp.Tool
	resources []mcp.Resource
}

func docSections() []docSection {
	return []docSection{
		{kind: kindGmail, tools: slices.Concat(gmail_tools.Tools(), google_tools.Tools())},
		{kind: kindSQL, tools: sql_tools.Tools(), resources: resources.Resources()},
	}
}

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for the tools and resources of both
servers. The reference is built from the definitions the servers register.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(cmd, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(cmd *cobra.Command, outputFile string) error {
	markdown := generateDocsMarkdown(docSections())

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Documentation written to: %s\n", outputFile)
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), markdown)
	return nil
}

func generateDocsMarkdown(sections []docSection) string {
	var sb strings.Builder

	sb.WriteString("# MCP Reference\n\n")
	sb.WriteString("Tools and resources of `inboxquery serve gmail` and `inboxquery serve sql`, generated from their definitions.\n\n")

	sb.WriteString("## Table of Contents\n\n")
	for _, sec := range sections {
		fmt.Fprintf(&sb, "- [serve %s](#serve-%s)\n", sec.kind, sec.kind)
		for _, category := range sortedCategories(sec.tools) {
			fmt.Fprintf(&sb, "  - [%s](#%s)\n", category, anchor(category))
		}
		if len(sec.resources) > 0 {
			sb.WriteString("  - [Resources](#resources)\n")
		}
	}
	sb.WriteString("\n")

	for _, sec := range sections {
		fmt.Fprintf(&sb, "## serve %s\n\n", sec.kind)

		byCategory := groupToolsByCategory(sec.tools)
		for _, category := range sortedCategories(sec.tools) {
			tools := byCategory[category]
			sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

			fmt.Fprintf(&sb, "### %s\n\n", category)
			for _, tool := range tools {
				sb.WriteString(generateToolMarkdown(tool))
				sb.WriteString("\n")
			}
		}

		if len(sec.resources) > 0 {
			sb.WriteString("### Resources\n\n")
			for _, r := range sec.resources {
				fmt.Fprintf(&sb, "- `%s` (%s): %s\n", r.URI, r.MIMEType, r.Description)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func anchor(title string) string {
	return strings.ToLower(strings.ReplaceAll(title, " ", "-"))
}

func sortedCategories(tools []mcp.Tool) []string {
	var categories []string
	for _, tool := range tools {
		c := getCategoryFromToolName(tool.Name)
		if !slices.Contains(categories, c) {
			categories = append(categories, c)
		}
	}
	sort.Strings(categories)
	return categories
}

func groupToolsByCategory(tools []mcp.Tool) map[string][]mcp.Tool {
	categories := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		category := getCategoryFromToolName(tool.Name)
		categories[category] = append(categories[category], tool)
	}
	return categories
}

func getCategoryFromToolName(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	switch prefix {
	case "gmail":
		return "Gmail Tools"
	case "google":
		return "Google Auth Tools"
	case "sql":
		return "SQL Tools"
	default:
		return "Other"
	}
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "#### %s\n\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
	}

	props := tool.InputSchema.Properties
	if len(props) == 0 {
		sb.WriteString("No arguments.\n")
		return sb.String()
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	sb.WriteString("**Arguments:**\n")
	for _, name := range names {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}

		requirement := "optional"
		if slices.Contains(tool.InputSchema.Required, name) {
			requirement = "required"
		}
		fmt.Fprintf(&sb, "- `%s` (%s, %s): ", name, propertyType(prop), requirement)

		if desc, ok := prop["description"].(string); ok {
			sb.WriteString(desc)
		} else {
			fmt.Fprintf(&sb, "%s parameter", propertyType(prop))
		}
		if values := enumValues(prop); len(values) > 0 {
			fmt.Fprintf(&sb, " One of `%s`.", strings.Join(values, "`, `"))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func propertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}

func enumValues(prop map[string]any) []string {
	switch v := prop["enum"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	return nil
}
