package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"tagengine"
)

// REPL drives one interactive tagctl session against a single in-process
// Engine, following cmd/sloty's REPL shape: a liner.State prompt, a
// Fields-split command line, and one handler function per verb.
type REPL struct {
	engine *tagengine.Engine
	liner  *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tagctl_history")
}

// Run starts the REPL loop; it returns when the user exits or stdin
// closes.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()
	r.liner.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("tagctl - interactive tag engine CLI")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("tagctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "open":
			r.cmdOpen(args)
		case "send":
			r.cmdSend(args)
		case "recv", "receive":
			r.cmdRecv(args)
		case "awake":
			r.cmdAwake(args)
		case "remove", "rm":
			r.cmdRemove(args)
		case "snapshot", "snap":
			r.cmdSnapshot()
		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) printHelp() {
	fmt.Println(`Commands:
  open <key> <create|lookup> [user]   Open or create an instance (key 0 = private)
  send <tag> <level> <text>           Publish a message on a level
  recv <tag> <level> [timeoutMs]      Wait for one message (default 5000ms)
  awake <tag>                         Cancel every receiver on <tag>
  remove <tag>                        Retire an instance
  snapshot                            Dump the tab-separated status stream
  help                                Show this help
  exit / quit / q                     Exit`)
}

func (r *REPL) cmdOpen(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: open <key> <create|lookup> [user]")
		return
	}
	key, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		fmt.Println("bad key:", err)
		return
	}
	var cmd tagengine.OpenCmd
	switch strings.ToLower(args[1]) {
	case "create":
		cmd = tagengine.Create
	case "lookup", "open":
		cmd = tagengine.Open
	default:
		fmt.Println("second argument must be create or lookup")
		return
	}
	perm := tagengine.PermAll
	if len(args) >= 3 {
		perm = tagengine.PermUser
	}
	tag, err := r.engine.Open(context.Background(), tagengine.RootIdentity, int32(key), cmd, perm)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("tag:", tag)
}

func (r *REPL) cmdSend(args []string) {
	if len(args) < 3 {
		fmt.Println("usage: send <tag> <level> <text...>")
		return
	}
	tag, level, ok := parseTagLevel(args[0], args[1])
	if !ok {
		return
	}
	msg := strings.Join(args[2:], " ")
	err := r.engine.Send(context.Background(), tagengine.RootIdentity, tag, level, []byte(msg))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}

func (r *REPL) cmdRecv(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: recv <tag> <level> [timeoutMs]")
		return
	}
	tag, level, ok := parseTagLevel(args[0], args[1])
	if !ok {
		return
	}
	timeout := 5 * time.Second
	if len(args) >= 3 {
		ms, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Println("bad timeout:", err)
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	buf := make([]byte, 65536)
	n, err := r.engine.Receive(ctx, tagengine.RootIdentity, tag, level, buf)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("received %d bytes: %q\n", n, buf[:n])
}

func (r *REPL) cmdAwake(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: awake <tag>")
		return
	}
	tag, ok := parseTag(args[0])
	if !ok {
		return
	}
	if err := r.engine.Control(context.Background(), tagengine.RootIdentity, tag, tagengine.AwakeAll); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}

func (r *REPL) cmdRemove(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: remove <tag>")
		return
	}
	tag, ok := parseTag(args[0])
	if !ok {
		return
	}
	if err := r.engine.Control(context.Background(), tagengine.RootIdentity, tag, tagengine.Remove); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}

func (r *REPL) cmdSnapshot() {
	if err := tagengine.WriteSnapshotStream(os.Stdout, r.engine.Snapshot()); err != nil {
		fmt.Println("error:", err)
	}
}

func parseTag(s string) (tagengine.Tag, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		fmt.Println("bad tag:", err)
		return 0, false
	}
	return tagengine.Tag(n), true
}

func parseTagLevel(tagStr, levelStr string) (tagengine.Tag, int, bool) {
	tag, ok := parseTag(tagStr)
	if !ok {
		return 0, 0, false
	}
	level, err := strconv.Atoi(levelStr)
	if err != nil {
		fmt.Println("bad level:", err)
		return 0, 0, false
	}
	return tag, level, true
}
