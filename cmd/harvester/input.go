package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type inputs struct {
	ForwardStart  uint64
	BackwardStart uint64
	Output        string
}

// prompter asks the operator one question per line.
type prompter struct {
	in    *bufio.Reader
	out   io.Writer
	style func(a ...any) string
}

// newPrompter highlights questions only when out is a terminal.
func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out, style: fmt.Sprint}
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		p.style = color.New(color.FgCyan, color.Bold).SprintFunc()
	}
	return p
}

func (p *prompter) ask(msg string) (string, error) {
	fmt.Fprintln(p.out, p.style(msg))
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("`%s` is not a valid input, please input a non-negative integer: %w", s, err)
	}
	return id, nil
}

// collectInputs resolves the three values the scan needs, prompting only for
// those the environment did not supply.
func collectInputs(cfg config, p *prompter) (inputs, error) {
	var in inputs

	answer := cfg.ForwardStart
	var err error
	if answer == "" {
		if answer, err = p.ask("Which ID should the forward scan start at?"); err != nil {
			return inputs{}, err
		}
	}
	if in.ForwardStart, err = parseID(answer); err != nil {
		return inputs{}, err
	}

	answer = cfg.BackwardStart
	if answer == "" {
		if answer, err = p.ask("Which ID should the backward scan start below?"); err != nil {
			return inputs{}, err
		}
	}
	if in.BackwardStart, err = parseID(answer); err != nil {
		return inputs{}, err
	}

	in.Output = cfg.Output
	if in.Output == "" {
		if in.Output, err = p.ask("Please specify an output file."); err != nil {
			return inputs{}, err
		}
	}
	if in.Output == "" {
		return inputs{}, errors.New("output file must not be empty")
	}
	return in, nil
}
