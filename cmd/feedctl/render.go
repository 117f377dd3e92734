package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"public-feed/domain"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// renderWindow prints messages oldest first, the way the feed shows them.
// Messages of highlight are colored.
func renderWindow(w io.Writer, messages []domain.Message, highlight string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Author", "Message", "Image"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.AppendBulk(lo.Map(messages, func(m domain.Message, _ int) []string {
		return messageRow(m, highlight)
	}))
	table.Render()
	if len(messages) == 0 {
		fmt.Fprintln(w, "no message yet")
	}
}

func messageRow(m domain.Message, highlight string) []string {
	author := m.Author
	if highlight != "" && strings.EqualFold(m.Author, highlight) {
		author = color.FgCyan.Render(author)
	}
	image := ""
	if m.HasMedia() {
		image = m.Media.Locator
	}
	return []string{
		m.CreatedAt.Local().Format(time.TimeOnly),
		author,
		strings.ReplaceAll(m.Body, "\n", " "),
		image,
	}
}
