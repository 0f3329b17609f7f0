// Package crack is the dictionary attack sample: hash every candidate
// word until one matches the target MD5 digest. The loop demonstrates
// cooperative cancellation: it polls a task-owned flag between
// iterations, set by Stop or by the terminal cancel event.
package crack

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"hax/haxos/kernel"
)

const defaultWordlist = "/etc/words"

type Task struct {
	ctx    *kernel.Context
	cancel atomic.Bool
}

func New() *Task { return &Task{} }

func (t *Task) Start(ctx *kernel.Context) error {
	t.ctx = ctx

	wordlist := defaultWordlist
	var digestArg string
	args := ctx.Args()
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-w" && i+1 < len(args):
			i++
			wordlist = args[i]
		case digestArg == "":
			digestArg = args[i]
		default:
			digestArg = "-" // force usage
		}
	}

	digestB, err := hex.DecodeString(digestArg)
	if err != nil || len(digestB) != md5.Size {
		ctx.Terminal().WriteLn("usage: crack [-w wordlist] <md5hex>")
		ctx.Exit()
		return nil
	}
	var digest [md5.Size]byte
	copy(digest[:], digestB)

	words := t.loadWords(wordlist)
	go t.run(words, digest)
	return nil
}

func (t *Task) Stop() {
	t.cancel.Store(true)
}

// HandleInput maps the cancel event (ESC) onto the stop flag; the
// search loop observes it at its next iteration.
func (t *Task) HandleInput(b []byte) {
	if len(b) == 0 {
		t.cancel.Store(true)
	}
}

// loadWords reads the wordlist, degrading to a generated candidate
// list when the file is missing rather than failing hard.
func (t *Task) loadWords(path string) [][]byte {
	b, ok := t.ctx.ReadFile(path)
	if !ok {
		t.ctx.Terminal().WriteLn(fmt.Sprintf("crack: %s missing, using generated candidates", path))
		return genCandidates()
	}
	var words [][]byte
	for _, line := range bytes.Split(b, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		words = append(words, line)
	}
	return words
}

// genCandidates is the fallback dictionary: all 4-digit PINs.
func genCandidates() [][]byte {
	out := make([][]byte, 0, 10000)
	for i := 0; i < 10000; i++ {
		out = append(out, []byte(fmt.Sprintf("%04d", i)))
	}
	return out
}

func (t *Task) run(words [][]byte, digest [md5.Size]byte) {
	word, found, aborted := search(words, digest, &t.cancel)
	switch {
	case aborted:
		t.ctx.Terminal().WriteLn("crack: aborted")
	case found:
		t.ctx.Terminal().WriteLn("crack: password found: " + word)
	default:
		t.ctx.Terminal().WriteLn("crack: no match")
	}
	t.ctx.Exit()
}

// search hashes candidates until a match, exhaustion, or cancellation.
func search(words [][]byte, digest [md5.Size]byte, cancel *atomic.Bool) (word string, found, aborted bool) {
	for _, w := range words {
		if cancel.Load() {
			return "", false, true
		}
		if md5.Sum(w) == digest {
			return string(w), true, false
		}
	}
	return "", false, false
}
