// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
)

// Doc generator. Reads docs/commands/*.md and emits, per command:
//
//	docs/man/share/man1/preheat-<cmd>.1   the full markdown through md2man
//	docs/tldr/preheat-<cmd>.md            the short description plus the
//	                                      "Quick examples" block

func main() {
	root := flag.String("root", ".", "repo root (default current dir)")
	onlyIfChanged := flag.Bool("only-if-changed", true, "skip writes when content is unchanged")
	flag.Parse()

	g := generator{
		commands: filepath.Join(*root, "docs", "commands"),
		man:      filepath.Join(*root, "docs", "man", "share", "man1"),
		tldr:     filepath.Join(*root, "docs", "tldr"),
		lazy:     *onlyIfChanged,
	}

	if err := g.run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type generator struct {
	commands string
	man      string
	tldr     string
	lazy     bool
}

func (g generator) run() error {
	for _, dir := range []string{g.man, g.tldr} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(g.commands)
	if err != nil {
		return fmt.Errorf("reading commands dir %s: %w", g.commands, err)
	}

	var converted int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		if err := g.generate(strings.TrimSuffix(e.Name(), ".md")); err != nil {
			return err
		}
		converted++
	}

	if converted == 0 {
		return fmt.Errorf("no command markdown found under %s", g.commands)
	}

	return nil
}

// generate renders one command's man and tldr pages from its markdown doc.
func (g generator) generate(cmd string) error {
	raw, err := os.ReadFile(filepath.Join(g.commands, cmd+".md"))
	if err != nil {
		return err
	}

	manPath := filepath.Join(g.man, "preheat-"+cmd+".1")
	if err := g.write(manPath, md2man.Render(raw)); err != nil {
		return fmt.Errorf("writing man page for %s: %w", cmd, err)
	}

	p := parsePage(string(raw))
	tldrPath := filepath.Join(g.tldr, "preheat-"+cmd+".md")
	if err := g.write(tldrPath, []byte(p.tldr(cmd))); err != nil {
		return fmt.Errorf("writing tldr page for %s: %w", cmd, err)
	}

	return nil
}

// write skips the file when lazy mode is on and the content has not changed,
// so repeated runs keep file mtimes stable.
func (g generator) write(path string, content []byte) error {
	if g.lazy {
		prev, err := os.ReadFile(path)
		if err == nil && bytes.Equal(bytes.TrimSpace(prev), bytes.TrimSpace(content)) {
			return nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return os.WriteFile(path, content, 0o644)
}

type page struct {
	title    string
	short    string
	examples []example
}

type example struct {
	desc string
	cmd  string
}

// Parser states. The command docs follow a fixed shape: an H1 title, a
// "Short description" section holding a one-paragraph summary, and a
// "Quick examples" section whose first fenced block pairs # comment lines
// with the command line each one describes.
const (
	idle = iota
	shortDesc
	awaitFence
	exampleBlock
)

func parsePage(md string) page {
	var (
		p     page
		state = idle
		short []string
		desc  string
	)

	sc := bufio.NewScanner(strings.NewReader(md))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if state != exampleBlock && strings.HasPrefix(line, "#") {
			heading := strings.TrimSpace(strings.TrimLeft(line, "#"))
			if p.title == "" && strings.HasPrefix(line, "# ") {
				p.title = heading
			}
			switch {
			case strings.EqualFold(heading, "short description"):
				state = shortDesc
			case strings.EqualFold(heading, "quick examples"):
				state = awaitFence
			default:
				state = idle
			}
			continue
		}

		switch state {
		case shortDesc:
			switch {
			case line == "":
				if len(short) > 0 {
					state = idle
				}
			case strings.HasSuffix(line, ":"):
				state = idle
			default:
				short = append(short, line)
			}

		case awaitFence:
			if strings.HasPrefix(line, "```") {
				state = exampleBlock
			}

		case exampleBlock:
			switch {
			case strings.HasPrefix(line, "```"):
				// Only the first block counts.
				state = idle
			case line == "":
			case strings.HasPrefix(line, "#"):
				desc = strings.TrimSpace(strings.TrimPrefix(line, "#"))
			default:
				if desc == "" {
					desc = "Example"
				}
				p.examples = append(p.examples, example{desc: desc, cmd: line})
				desc = ""
			}
		}
	}

	p.short = strings.Join(short, " ")
	if p.short == "" && p.title != "" {
		p.short = p.title + "."
	}
	return p
}

func (p page) tldr(cmd string) string {
	lead := p.short
	if lead == "" {
		lead = "preheat " + cmd
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# preheat-%s\n\n", cmd)
	fmt.Fprintf(&b, "> %s\n", lead)
	b.WriteString("> More information: https://github.com/go-preheat/preheat.\n\n")

	if len(p.examples) == 0 {
		fmt.Fprintf(&b, "- Show help for the command:\n\n`preheat %s --help`\n\n", cmd)
		return b.String()
	}

	for i, ex := range p.examples {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s:\n\n`%s`\n", ex.desc, strings.Join(strings.Fields(ex.cmd), " "))
	}
	return b.String()
}
