package main

import (
	"fmt"
	"io"

	"github.com/suPer8Hu/relaychat/internal/client"
)

// tailPrinter writes only the new text of the last model entry.
type tailPrinter struct {
	w       io.Writer
	id      string
	printed int
}

func newTailPrinter(w io.Writer) *tailPrinter { return &tailPrinter{w: w} }

func (p *tailPrinter) onChange(entries []client.Entry) {
	if len(entries) == 0 {
		return
	}
	last := entries[len(entries)-1]
	if last.Role != client.RoleModel {
		return
	}
	if last.ID != p.id {
		p.id = last.ID
		// a temp id swapped for the server id keeps the same text
		if p.printed > len(last.Content) {
			p.printed = 0
		}
	}
	if len(last.Content) > p.printed {
		fmt.Fprint(p.w, last.Content[p.printed:])
		p.printed = len(last.Content)
	}
}
