package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Header is the first CSV line.
var Header = []string{"Date", "Project", "Task", "Duration (h)", "Amount", "Note"}

const dateLayout = "02/01/2006 15:04:05"

// WriteCSV writes rows separated by ';' with every field quoted. Newlines in
// notes become spaces so each entry stays on one line.
func WriteCSV(w io.Writer, rows []Row, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	bw := bufio.NewWriter(w)
	if err := writeLine(bw, Header); err != nil {
		return err
	}
	for _, r := range rows {
		note := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(r.Note)
		line := []string{
			r.StartAt.In(loc).Format(dateLayout),
			r.Project,
			r.Task,
			fmt.Sprintf("%.2f", r.Hours()),
			fmt.Sprintf("%.2f", r.Amount),
			note,
		}
		if err := writeLine(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeLine(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(';')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	_, err := w.WriteString("\n")
	return err
}

// ToCSV writes the report to a file at path.
func ToCSV(rows []Row, loc *time.Location, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if err := WriteCSV(f, rows, loc); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}
