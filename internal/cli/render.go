package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"text/template"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bolasblack/medbuddy/internal/engine"
	"github.com/bolasblack/medbuddy/internal/model"
	"github.com/bolasblack/medbuddy/internal/tracker"
)

var statusTmpl = template.Must(template.New("status").Parse(`{{ .Header }}
  Remote:    {{ .Remote }}
  Last sync: {{ .LastSync }}
{{ if .LastError }}  Error:     {{ .LastError }}
{{ end }}  Records:   {{ .Users }} people, {{ .Fevers }} fever readings, {{ .Prescriptions }} prescriptions
{{ if .Footer }}{{ .Footer }}
{{ end }}`))

type statusData struct {
	Header        string
	Remote        string
	LastSync      string
	LastError     string
	Users         int
	Fevers        int
	Prescriptions int
	Footer        string
}

// renderStatus writes the sync status block. lipgloss strips colors when w
// is not a terminal.
func renderStatus(w io.Writer, st engine.Status, cfg *model.SyncConfig, ds model.Dataset) {
	renderer := lipgloss.NewRenderer(w)
	green := renderer.NewStyle().Foreground(lipgloss.Color("2"))
	yellow := renderer.NewStyle().Foreground(lipgloss.Color("3"))
	red := renderer.NewStyle().Foreground(lipgloss.Color("1"))

	data := statusData{
		Remote:        "not configured",
		LastSync:      "never",
		LastError:     st.LastError,
		Users:         len(ds.Users),
		Fevers:        len(ds.FeverLogs),
		Prescriptions: len(ds.Prescriptions),
	}
	if cfg != nil {
		data.Remote = cfg.String()
	}
	if !st.LastSyncAt.IsZero() {
		data.LastSync = st.LastSyncAt.Local().Format(time.DateTime)
	}

	switch st.State {
	case engine.StateError:
		data.Header = red.Render("✗ Sync failed")
		data.Footer = yellow.Render("Local changes are kept. Run 'medbuddy sync' to retry.")
	case engine.StateSyncing:
		data.Header = yellow.Render("→ Syncing")
	default:
		if cfg == nil {
			data.Header = yellow.Render("● Offline")
			data.Footer = "Run 'medbuddy remote set' to sync with other devices."
		} else {
			data.Header = green.Render("✓ Up to date")
		}
	}

	var buf strings.Builder
	_ = statusTmpl.Execute(&buf, data)
	_, _ = io.WriteString(w, buf.String())
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func printProfiles(w io.Writer, users []model.Profile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tTYPE\tCREATED")
	for _, u := range users {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Type, formatMillis(u.CreatedAt))
	}
	_ = tw.Flush()
}

func printFevers(w io.Writer, records []model.FeverRecord, names map[string]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tWHO\tTEMP (°F)\tWHEN\tNOTES")
	for _, r := range records {
		temp := fmt.Sprintf("%.1f", r.Temperature)
		if r.Temperature >= tracker.FeverThreshold {
			temp += " !"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, nameOf(names, r.UserID), temp, formatMillis(r.Timestamp), r.Notes)
	}
	_ = tw.Flush()
}

func printPrescriptions(w io.Writer, list []model.Prescription, names map[string]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tWHO\tMEDICINE\tDOSAGE\tILLNESS\tBY\tACTIVE\tWHEN")
	for _, p := range list {
		active := "no"
		if p.IsActive {
			active = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, nameOf(names, p.UserID), p.MedicineName, p.Dosage, p.Illness, p.PrescribedBy, active, formatMillis(p.Timestamp))
	}
	_ = tw.Flush()
}

func printFeverSummary(w io.Writer, name string, s tracker.FeverSummary) {
	if s.Count == 0 {
		_, _ = fmt.Fprintf(w, "No fever readings for %s.\n", name)
		return
	}
	_, _ = fmt.Fprintf(w, "%s: %d readings\n", name, s.Count)
	_, _ = fmt.Fprintf(w, "  Latest: %.1f°F at %s\n", s.Latest.Temperature, formatMillis(s.Latest.Timestamp))
	_, _ = fmt.Fprintf(w, "  Peak:   %.1f°F at %s\n", s.Peak.Temperature, formatMillis(s.Peak.Timestamp))
	if s.HasFever {
		_, _ = fmt.Fprintf(w, "  Latest reading is at or above %.1f°F.\n", tracker.FeverThreshold)
	}
}

// profileNames maps profile ids to names for table output.
func profileNames(users []model.Profile) map[string]string {
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names
}

func nameOf(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id
}
