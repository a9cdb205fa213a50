// Package sse reads server-sent event streams produced by completion APIs.
package sse

import (
	"bufio"
	"io"
	"strings"
)

const maxEventBytes = 1 << 20

type Event struct {
	Name string
	Data string
}

type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes)
	return &Reader{scanner: scanner}
}

// Next returns the next event. It returns io.EOF once the stream is drained;
// a trailing event without a blank line terminator is still delivered.
func (r *Reader) Next() (Event, error) {
	var (
		event   Event
		data    []string
		started bool
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if started {
				event.Data = strings.Join(data, "\n")
				return event, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event.Name = value
			started = true
		case "data":
			data = append(data, value)
			started = true
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if started {
		event.Data = strings.Join(data, "\n")
		return event, nil
	}
	return Event{}, io.EOF
}
