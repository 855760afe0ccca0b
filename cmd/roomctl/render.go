package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/cwrk-planet/roomsync/internal/domain"
)

const previewWidth = 48

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// renderRoom печатает сводку комнаты и таблицу участников.
func renderRoom(w io.Writer, room *domain.Room) {
	info := newTable(w, "Room")
	info.AppendRows([]table.Row{
		{"ID", room.ID},
		{"Active tab", room.ActiveTab},
		{"Created", room.CreatedAt.Format(time.RFC3339)},
		{"Updated", room.UpdatedAt.Format(time.RFC3339)},
	})
	info.Render()

	renderParticipants(w, room.Participants)
	renderDocuments(w, room.Documents)
}

func renderParticipants(w io.Writer, list []domain.Participant) {
	t := newTable(w, fmt.Sprintf("Participants (%d)", len(list)))
	t.AppendHeader(table.Row{"#", "Name", "Role", "ID"})
	for i, p := range list {
		t.AppendRow(table.Row{i + 1, p.DisplayName, p.Role, p.ID})
	}
	t.Render()
}

func renderDocuments(w io.Writer, docs domain.Documents) {
	t := newTable(w, "Documents")
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"language", docs.Language},
		{"code", preview(docs.Code)},
		{"saved languages", savedLanguages(docs.Codes)},
		{"notes", preview(docs.Notes)},
		{"whiteboard", fmt.Sprintf("%d strokes", len(docs.Whiteboard))},
		{"input", preview(docs.Input)},
		{"output", preview(docs.Output)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: previewWidth},
	})
	t.Render()
}

func savedLanguages(codes map[domain.Language]string) string {
	out := make([]string, 0, len(codes))
	for l := range codes {
		out = append(out, string(l))
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

// preview — первая строка текста, обрезанная по ширине колонки.
func preview(s string) string {
	first, _, multi := strings.Cut(s, "\n")
	if multi {
		first += " ..."
	}
	return text.Trim(first, previewWidth)
}
