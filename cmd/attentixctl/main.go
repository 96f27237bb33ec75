// attentixctl drives a running attentix instance over its REST API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/attentix/attentix/internal/httpc"
)

func main() {
	addr := flag.String("addr", "http://localhost:8089", "Attentix dashboard address")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	base := strings.TrimRight(*addr, "/")
	cmd, args := flag.Arg(0), flag.Args()[1:]

	var err error
	switch cmd {
	case "status":
		err = show(base + "/api/status")
	case "play", "pause", "stop", "next", "prev":
		err = post(base+"/api/video/"+cmd, nil)
	case "seek":
		if len(args) != 1 {
			log.Fatal("usage: attentixctl seek <fraction>")
		}
		f, perr := strconv.ParseFloat(args[0], 64)
		if perr != nil {
			log.Fatalf("❌ Bad fraction %q", args[0])
		}
		err = post(base+"/api/video/seek", map[string]float64{"fraction": f})
	case "load":
		if len(args) != 1 {
			log.Fatal("usage: attentixctl load <path>")
		}
		err = post(base+"/api/video/load", map[string]string{"path": args[0]})
	case "detection":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			log.Fatal("usage: attentixctl detection on|off")
		}
		action := "enable"
		if args[0] == "off" {
			action = "disable"
		}
		err = post(base+"/api/detection/"+action, nil)
	case "config":
		if len(args) == 0 {
			err = show(base + "/api/config")
		} else {
			err = updateConfig(base, args)
		}
	case "sessions":
		err = show(base + "/api/sessions")
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: attentixctl [-addr url] <command>

Commands:
  status                     Show pipeline and playback state
  play|pause|stop|next|prev  Playback transport
  seek <fraction>            Jump to a position, 0.0 to 1.0
  load <path>                Load a video file
  detection on|off           Toggle attention-driven playback control
  config [key=value ...]     Show or update detection tuning
  sessions                   List recorded sessions

Flags:
`)
	flag.PrintDefaults()
}

func show(url string) error {
	resp, err := httpc.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return render(resp)
}

func post(url string, body any) error {
	var resp *http.Response
	var err error
	if body == nil {
		resp, err = httpc.Post(url, "application/json", nil)
	} else {
		resp, err = httpc.PostJSON(url, body)
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return render(resp)
}

// updateConfig PUTs the key=value pairs as a partial config update.
// Values are numeric; the server validates the merged result.
func updateConfig(base string, args []string) error {
	payload := make(map[string]float64, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("bad setting %q, want key=value", arg)
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("bad value %q for %s", value, key)
		}
		payload[key] = f
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, base+"/api/config", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return render(resp)
}

// render prints the response body, pretty-printing JSON, and turns
// error statuses into errors.
func render(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var buf bytes.Buffer
	if json.Indent(&buf, body, "", "  ") == nil {
		fmt.Println(buf.String())
	} else {
		fmt.Println(strings.TrimSpace(string(body)))
	}
	return nil
}
