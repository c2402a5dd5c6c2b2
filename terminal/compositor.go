package terminal

import (
	"fmt"
	"strings"
	"time"

	"claude-ptyhost/log"
)

// Extract walks the top-left columns×rows region of g and returns the styled
// runs for it. Adjacent cells with the same style share one run, rows are
// separated by "\n" runs and trailing blank content is dropped. A row whose
// cells cannot be read is emitted as unstyled text instead.
func Extract(g Grid, columns, rows int) []StyledRun {
	start := time.Now()
	defer func() { log.GetProfiler().RecordPass(time.Since(start)) }()

	gc, gr := g.Size()
	columns = min(columns, gc)
	rows = min(rows, gr)

	runs := make([]StyledRun, 0, rows*2)
	for row := 0; row < rows; row++ {
		rowRuns, err := extractRow(g, row, columns)
		if err != nil {
			log.WarningLog.Printf("compositor: row %d: %v; using plain text", row, err)
			rowRuns = plainRow(g, row, columns)
		}
		runs = append(runs, rowRuns...)
		if row < rows-1 {
			runs = append(runs, StyledRun{Text: "\n"})
		}
	}
	return trimTrailingRuns(runs)
}

// ExtractBuffer runs Extract while holding the buffer lock.
func ExtractBuffer(b ScreenBuffer) []StyledRun {
	var runs []StyledRun
	b.View(func(g Grid) {
		columns, rows := g.Size()
		runs = Extract(g, columns, rows)
	})
	return runs
}

func extractRow(g Grid, row, columns int) (runs []StyledRun, err error) {
	defer func() {
		if r := recover(); r != nil {
			runs, err = nil, fmt.Errorf("cell access failed: %v", r)
		}
	}()

	var (
		text    strings.Builder
		current Style
		started bool
	)
	flush := func() {
		if text.Len() == 0 {
			return
		}
		runs = append(runs, StyledRun{Text: text.String(), FG: current.FG, BG: current.BG, Attrs: current.Attrs})
		text.Reset()
	}

	for col := 0; col < columns; col++ {
		cell := g.CellAt(row, col)
		if cell.Width == 0 {
			continue
		}
		style := cell.Style()
		if !started || !style.Equal(current) {
			flush()
			current = style
			started = true
		}
		ch := cell.Char
		if ch == 0 {
			ch = ' '
		}
		text.WriteRune(ch)
	}
	flush()
	return trimRowEnd(runs), nil
}

// trimRowEnd strips trailing whitespace from the last runs of a row.
func trimRowEnd(runs []StyledRun) []StyledRun {
	for len(runs) > 0 {
		last := &runs[len(runs)-1]
		trimmed := strings.TrimRight(last.Text, " \t")
		if trimmed != "" {
			last.Text = trimmed
			return runs
		}
		runs = runs[:len(runs)-1]
	}
	return runs
}

func plainRow(g Grid, row, columns int) (runs []StyledRun) {
	defer func() {
		if r := recover(); r != nil {
			runs = nil
		}
	}()
	text := []rune(g.RowText(row))
	if len(text) > columns {
		text = text[:columns]
	}
	trimmed := strings.TrimRight(string(text), " \t")
	if trimmed == "" {
		return nil
	}
	return []StyledRun{{Text: trimmed}}
}

func trimTrailingRuns(runs []StyledRun) []StyledRun {
	for len(runs) > 0 && strings.TrimSpace(runs[len(runs)-1].Text) == "" {
		runs = runs[:len(runs)-1]
	}
	return runs
}

// FormatRuns renders runs one per line for logs and golden files.
func FormatRuns(runs []StyledRun) string {
	var sb strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&sb, "%q", r.Text)
		if r.FG != nil {
			sb.WriteString(" fg=" + r.FG.Hex())
		}
		if r.BG != nil {
			sb.WriteString(" bg=" + r.BG.Hex())
		}
		if r.Attrs != 0 {
			sb.WriteString(" attrs=" + r.Attrs.String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// RunsText joins the text of runs.
func RunsText(runs []StyledRun) string {
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}
