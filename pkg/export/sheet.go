package export

import "time"

// SheetRow is one roster line of an attendance sheet.
type SheetRow struct {
	Name     string
	Role     string
	Status   string
	MarkedAt *time.Time
	Method   string
}

// HearingSheet is the printable summary handed to court staff.
type HearingSheet struct {
	CaseID     string
	CourtName  string
	Location   string
	Date       string
	Time       string
	Status     string
	QRToken    string
	ManualCode string
	Rows       []SheetRow
	Generated  time.Time
}

var rosterHeaders = []string{"Name", "Role", "Status", "Marked At", "Method"}

func (r SheetRow) cells(loc *time.Location) []string {
	marked := ""
	if r.MarkedAt != nil {
		marked = r.MarkedAt.In(loc).Format("15:04")
	}
	return []string{r.Name, r.Role, r.Status, marked, r.Method}
}
