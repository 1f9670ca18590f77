package pdfinput

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document abstracts the PDF reader so the table walk can be tested on
// fixture grids without a PDF library.
type Document interface {
	PageCount() int
	// PageText returns the page's extracted text, reading order.
	PageText(page int) string
	// PageTables returns the tables reconstructed from the page, each a
	// slice of rows of cells. The release-input document carries at most
	// one grid per page.
	PageTables(page int) [][][]string
}

// pdfDocument reads a release-input PDF through pdfcpu. Text is pulled
// from page content streams; the grid is reconstructed by clustering
// positioned text runs into rows (by Y) and columns (by X).
type pdfDocument struct {
	ctx   *model.Context
	pages map[int][]textRun
}

// Open reads and validates a PDF file. Failure to open is the only fatal
// condition of the PDF path.
func Open(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read %s: %w", path, err)
	}

	return &pdfDocument{ctx: ctx, pages: map[int][]textRun{}}, nil
}

func (d *pdfDocument) PageCount() int {
	return d.ctx.PageCount
}

func (d *pdfDocument) PageText(page int) string {
	runs := d.pageRuns(page)
	var sb strings.Builder
	for i, row := range clusterRows(runs) {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, r := range row {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(r.text)
		}
	}
	return sb.String()
}

func (d *pdfDocument) PageTables(page int) [][][]string {
	runs := d.pageRuns(page)
	if len(runs) == 0 {
		return nil
	}

	rows := clusterRows(runs)
	cols := clusterColumns(runs)
	if len(cols) < 2 {
		return nil
	}

	var table [][]string
	for _, row := range rows {
		cells := make([]string, len(cols))
		for _, r := range row {
			c := columnIndex(cols, r.x)
			if cells[c] != "" {
				cells[c] += " "
			}
			cells[c] += r.text
		}
		table = append(table, cells)
	}
	return [][][]string{table}
}

func (d *pdfDocument) pageRuns(page int) []textRun {
	if runs, ok := d.pages[page]; ok {
		return runs
	}
	var runs []textRun
	if r, err := pdfcpu.ExtractPageContent(d.ctx, page); err == nil {
		if data, err := io.ReadAll(r); err == nil {
			runs = extractTextRuns(data)
		}
	}
	d.pages[page] = runs
	return runs
}

// textRun is one positioned text show operation.
type textRun struct {
	x, y float64
	text string
}

const (
	rowTolerance = 3.0
	colTolerance = 12.0
)

// clusterRows groups runs into visual lines, top of page first.
func clusterRows(runs []textRun) [][]textRun {
	sorted := make([]textRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].y-sorted[j].y) > rowTolerance {
			return sorted[i].y > sorted[j].y
		}
		return sorted[i].x < sorted[j].x
	})

	var rows [][]textRun
	for _, r := range sorted {
		if r.text == "" {
			continue
		}
		if len(rows) > 0 {
			last := rows[len(rows)-1]
			if math.Abs(last[0].y-r.y) <= rowTolerance {
				rows[len(rows)-1] = append(last, r)
				continue
			}
		}
		rows = append(rows, []textRun{r})
	}
	return rows
}

// clusterColumns derives column start positions from run X coordinates.
func clusterColumns(runs []textRun) []float64 {
	xs := make([]float64, 0, len(runs))
	for _, r := range runs {
		xs = append(xs, r.x)
	}
	sort.Float64s(xs)

	var cols []float64
	for _, x := range xs {
		if len(cols) == 0 || x-cols[len(cols)-1] > colTolerance {
			cols = append(cols, x)
		}
	}
	return cols
}

func columnIndex(cols []float64, x float64) int {
	idx := 0
	for i, c := range cols {
		if x >= c-colTolerance/2 {
			idx = i
		}
	}
	return idx
}

var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// extractTextRuns parses PDF content stream operators, tracking the text
// position through Tm/Td/TD and emitting a run per Tj/TJ/' show.
func extractTextRuns(data []byte) []textRun {
	var (
		runs     []textRun
		x, y     float64
		lx, ly   float64 // line start, for T* and '
		leading  float64 = 12
		pending  strings.Builder
		pX, pY   float64
		havePend bool
	)

	flush := func() {
		if havePend {
			text := cleanCellText(pending.String())
			if text != "" {
				runs = append(runs, textRun{x: pX, y: pY, text: text})
			}
			pending.Reset()
			havePend = false
		}
	}

	emit := func(text string) {
		if !havePend {
			pX, pY = x, y
			havePend = true
		}
		pending.WriteString(text)
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tm")):
			ops := operands(line, 6)
			if len(ops) == 6 {
				flush()
				x, y = ops[4], ops[5]
				lx, ly = x, y
			}
		case bytes.HasSuffix(line, []byte("TD")):
			ops := operands(line, 2)
			if len(ops) == 2 {
				flush()
				lx += ops[0]
				ly += ops[1]
				x, y = lx, ly
				if ops[1] != 0 {
					leading = math.Abs(ops[1])
				}
			}
		case bytes.HasSuffix(line, []byte("Td")):
			ops := operands(line, 2)
			if len(ops) == 2 {
				flush()
				lx += ops[0]
				ly += ops[1]
				x, y = lx, ly
			}
		case bytes.HasSuffix(line, []byte("TL")):
			ops := operands(line, 1)
			if len(ops) == 1 {
				leading = ops[0]
			}
		case bytes.Equal(line, []byte("T*")):
			flush()
			ly -= leading
			x, y = lx, ly
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				emit(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			flush()
			ly -= leading
			x, y = lx, ly
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				emit(decodePDFString(m[1]))
			}
		}
	}
	flush()
	return runs
}

func operands(line []byte, n int) []float64 {
	fields := bytes.Fields(line)
	if len(fields) < n+1 {
		return nil
	}
	ops := make([]float64, 0, n)
	for _, f := range fields[len(fields)-n-1 : len(fields)-1] {
		v, err := strconv.ParseFloat(string(f), 64)
		if err != nil {
			return nil
		}
		ops = append(ops, v)
	}
	return ops
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '\\', '(', ')':
				sb.WriteByte(raw[i])
			default:
				if raw[i] >= '0' && raw[i] <= '7' {
					val := int(raw[i] - '0')
					for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(raw[i]-'0')
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(raw[i])
				}
			}
		} else {
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

// cleanCellText normalises whitespace and common extraction artifacts.
func cleanCellText(text string) string {
	replacer := strings.NewReplacer("\ue081", "(", "\ue082", ")", "\ue0a3", "~", "\ue0a4", "")
	text = replacer.Replace(text)

	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) && r != '\n' {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else if unicode.IsPrint(r) || r == '\n' {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
