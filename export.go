package main

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/hansolcho/linkring/internal/engine"
)

// exportText renders final standings and every connection record as plain
// text, suitable for pasting into a follow-up mail.
func exportText(room *engine.Room) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", room.Name)
	fmt.Fprintf(&b, "Status: %s\n", room.Status)
	fmt.Fprintf(&b, "Exported: %s\n\n", time.Now().Format(logDate))

	b.WriteString("Standings\n---------\n")
	for rank, p := range room.Leaderboard() {
		fmt.Fprintf(&b, "%2d. %s (%s) — %d points, %d people met\n",
			rank+1, p.Name, p.Affiliation, p.Score, len(p.Met))
	}

	fmt.Fprintf(&b, "\nConnections (%d)\n---------------\n", len(room.Connections))
	for _, c := range room.Connections {
		names := make([]string, 0, len(c.MemberIDs))
		for _, id := range c.MemberIDs {
			if p, ok := room.Participants[id]; ok {
				names = append(names, p.Name)
			} else {
				names = append(names, "(left)")
			}
		}
		fmt.Fprintf(&b, "\n%s\n", strings.Join(names, " + "))
		fmt.Fprintf(&b, "  found at %s\n", c.CreatedAt.Format("15:04:05"))
		fmt.Fprintf(&b, "  common: %s\n", strings.Join(c.CommonTraits, ", "))
		for _, id := range c.MemberIDs {
			traits, ok := c.IndividualTraits[id]
			if !ok {
				continue
			}
			name := "(left)"
			if p, exists := room.Participants[id]; exists {
				name = p.Name
			}
			fmt.Fprintf(&b, "  %s wrote: %s\n", name, strings.Join(traits, ", "))
		}
	}

	return b.String()
}

// exportHTML renders the same report as a standalone page.
func exportHTML(room *engine.Room) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	b.WriteString(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
	fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(room.Name))
	b.WriteString(`<style>body{font-family:sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem;}`)
	b.WriteString(`table{border-collapse:collapse;width:100%;}td,th{border:1px solid #ccc;padding:.4rem;text-align:left;}`)
	b.WriteString(`.traits{color:#555;}</style></head><body>`)

	fmt.Fprintf(&b, "<h1>%s</h1>", html.EscapeString(room.Name))
	fmt.Fprintf(&b, "<p>Status: %s</p>", room.Status)

	b.WriteString("<h2>Standings</h2><table><tr><th>#</th><th>Name</th><th>Affiliation</th><th>Score</th><th>Met</th></tr>")
	for rank, p := range room.Leaderboard() {
		fmt.Fprintf(&b, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td></tr>",
			rank+1, html.EscapeString(p.Name), html.EscapeString(p.Affiliation), p.Score, len(p.Met))
	}
	b.WriteString("</table>")

	fmt.Fprintf(&b, "<h2>Connections (%d)</h2>", len(room.Connections))
	for _, c := range room.Connections {
		names := make([]string, 0, len(c.MemberIDs))
		for _, id := range c.MemberIDs {
			if p, ok := room.Participants[id]; ok {
				names = append(names, html.EscapeString(p.Name))
			} else {
				names = append(names, "(left)")
			}
		}
		fmt.Fprintf(&b, "<h3>%s</h3>", strings.Join(names, " + "))
		escaped := make([]string, len(c.CommonTraits))
		for i, t := range c.CommonTraits {
			escaped[i] = html.EscapeString(t)
		}
		fmt.Fprintf(&b, `<p class="traits">%s</p>`, strings.Join(escaped, ", "))
	}

	b.WriteString("</body></html>")

	return b.String()
}

func serveExportText(cfg *Config, eng *engine.Engine, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		room := eng.Snapshot()
		if room == nil {
			http.Error(w, "no room open", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		written, err := w.Write([]byte(exportText(room)))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Text export (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveExportHTML(cfg *Config, eng *engine.Engine, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		room := eng.Snapshot()
		if room == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			securityHeaders(cfg, w)
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(newPage("No Room", "No room is open.")))
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		written, err := w.Write([]byte(exportHTML(room)))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: HTML export (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
