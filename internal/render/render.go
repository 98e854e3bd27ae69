// Package render emits the rigid legacy text formats the embedded firmware
// parses. Layouts here are byte-exact contracts; changing a separator or a
// decimal width breaks deployed terminals.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"dairy-collection-backend/internal/model"
)

// TimeLayout is the timestamp layout every device-facing response uses.
const TimeLayout = "02-01-2006 03:04:05 PM"

// Handshake status lines.
const (
	HandshakeNoUpdate = "No update"
	HandshakeError    = "Error"
)

func quoted(s string) string {
	return `"` + s + `"`
}

// RosterPage renders one page of farmers in the double-quoted paginated
// format: records joined by "||", no separator after the last record.
func RosterPage(farmers []model.Farmer) string {
	recs := make([]string, len(farmers))
	for i, f := range farmers {
		recs[i] = fmt.Sprintf("%s|%s|%s|%s|%d|%.2f", f.Code, f.RFID, f.Name, f.Phone, f.SMS, f.Bonus)
	}
	return quoted(strings.Join(recs, "||"))
}

// RosterCSV renders the full roster export. Bonus is integer-rounded in
// this format only.
func RosterCSV(farmers []model.Farmer) string {
	var b strings.Builder
	b.WriteString("RF-ID,ID,NAME,MOBILE,SMS,BONUS\n")
	for _, f := range farmers {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%d,%d\n", f.RFID, f.Code, f.Name, f.Phone, f.SMS, int(math.Round(f.Bonus)))
	}
	return b.String()
}

// Correction renders the active correction row: creation timestamp, then
// all three channels regardless of which the device last wrote.
func Correction(c *model.MachineCorrection) string {
	var b strings.Builder
	b.WriteString(c.CreatedAt.Format(TimeLayout))
	writeChannel(&b, 1, c.Fat1, c.Snf1, c.Clr1, c.Temp1, c.Water1, c.Protein1)
	writeChannel(&b, 2, c.Fat2, c.Snf2, c.Clr2, c.Temp2, c.Water2, c.Protein2)
	writeChannel(&b, 3, c.Fat3, c.Snf3, c.Clr3, c.Temp3, c.Water3, c.Protein3)
	return quoted(b.String())
}

func writeChannel(b *strings.Builder, ch int, fat, snf, clr, temp, water, protein float64) {
	fmt.Fprintf(b, "||%d|%.2f|%.2f|%.2f|%.2f|%.2f|%.2f", ch, fat, snf, clr, temp, water, protein)
}

// Credential renders a delivered password tagged with its role marker.
func Credential(role byte, password string) string {
	return quoted(fmt.Sprintf("P%c|%s", role, password))
}

// RateChartCSV renders the chart's price points. The trailing
// "Price chart not found." line is a legacy end-of-data marker the
// firmware expects even on success.
func RateChartCSV(prices []model.RateChartPrice) string {
	var b strings.Builder
	b.WriteString("Clr,Fat,Snf,Rate\n")
	for _, p := range prices {
		fmt.Fprintf(&b, "%.2f,%.2f,%.2f,%.2f\n", p.Clr, p.Fat, p.Snf, p.Rate)
	}
	b.WriteString("Price chart not found.")
	return b.String()
}

// Handshake renders the firmware-update status line, unquoted.
func Handshake(now time.Time, status string) string {
	return now.Format(TimeLayout) + "|" + status
}
