// tagctl is an interactive CLI over an in-process tag engine, grounded on
// cmd/sloty's REPL in the same pack: a liner.State prompt dispatching to
// one function per command. It does not speak to a separate tagd
// process — the syscall/ABI/transport layer is explicitly out of scope
// for the core (spec.md §1), so tagctl simply embeds its own
// tagengine.Engine for exploring the rendezvous protocol locally.
//
// Commands:
//
//	open <key> <create|lookup> [user]   Open or create an instance
//	send <tag> <level> <text>           Publish a message on a level
//	recv <tag> <level> [timeoutMs]      Wait for one message
//	awake <tag>                         Cancel every receiver on <tag>
//	remove <tag>                        Retire an instance
//	snapshot                            Dump the tab-separated status stream
//	help                                Show this help
//	exit / quit / q                     Exit
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"tagengine"
)

func main() {
	maxInstances := pflag.Int("max-instances", 256, "instance table size")
	maxMessageSize := pflag.Int("max-message-size", 4096, "maximum message size in bytes")
	pflag.Parse()

	engine := tagengine.New(tagengine.Config{
		MaxInstances:   *maxInstances,
		MaxMessageSize: *maxMessageSize,
	})

	repl := &REPL{engine: engine}
	if err := repl.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tagctl:", err)
		os.Exit(1)
	}
}
