// attentix-report renders session analytics from the attentix database.
// Without flags it lists recorded sessions; -session writes a
// self-contained HTML report with attention charts.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/attentix/attentix/internal/config"
	"github.com/attentix/attentix/pkg/session"
)

func main() {
	dbPath := flag.String("db", config.DBPath(), "Session database path")
	id := flag.String("session", "", "Session to report on, empty lists all sessions")
	out := flag.String("o", "", "Report output file, defaults to <session>.html")
	flag.Parse()

	store, err := session.Open(*dbPath)
	if err != nil {
		log.Fatalf("❌ Open database: %v", err)
	}
	defer store.Close()

	if *id == "" {
		if err := listSessions(store); err != nil {
			log.Fatalf("❌ List sessions: %v", err)
		}
		return
	}

	path := *out
	if path == "" {
		path = *id + ".html"
	}
	if err := writeReport(store, *id, path); err != nil {
		log.Fatalf("❌ Report: %v", err)
	}
	fmt.Printf("📊 Report written to %s\n", path)
}

func listSessions(store *session.Store) error {
	infos, err := store.Sessions()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	for _, info := range infos {
		sum, err := store.Summarize(info.ID)
		if err != nil {
			return err
		}
		state := "open"
		if !sum.EndedAt.IsZero() {
			state = sum.Duration.Round(time.Second).String()
		}
		fmt.Printf("%s  %s  %-18s  %s  attentive %3.0f%%  %d transitions\n",
			sum.ID,
			sum.StartedAt.Format("2006-01-02 15:04"),
			sum.Source,
			state,
			sum.AttentiveRatio*100,
			sum.Transitions)
	}
	return nil
}

func writeReport(store *session.Store, id, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := store.RenderReport(f, id); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
