package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/KaramelBytes/pipeflow-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/pipeflow-cli/internal/config"
)

// prompter reads answers line by line. secret, when set, reads a line
// without echo.
type prompter struct {
	in     *bufio.Reader
	out    io.Writer
	secret func() (string, error)
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		p.secret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return string(b), err
		}
	}
	return p
}

func (p *prompter) line() (string, error) {
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// ask prints label and returns the answer, or def when the answer is empty.
func (p *prompter) ask(label, def string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.line()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return def, nil
		}
		return "", err
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

func (p *prompter) askSecret(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if p.secret != nil {
		s, err := p.secret()
		return strings.TrimSpace(s), err
	}
	s, err := p.line()
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	return s, err
}

// runInputs are the answers collected before a run.
type runInputs struct {
	Query      string
	SourcePath string
	OutputDir  string
	APIKey     string
}

// collectInputs asks for the query, source file, output directory and,
// when the provider needs one, the API key. An empty key falls back to the
// environment and config.
func collectInputs(p *prompter, cfg *cfgpkg.Global, provider string) (runInputs, error) {
	var in runInputs
	q, err := p.ask("Enter your query: ", "")
	if err != nil {
		return in, fmt.Errorf("read query: %w", err)
	}
	if q == "" {
		return in, errors.New("a query is required")
	}
	in.Query = q

	defSource, defDir := "pipeline_data.parquet", "data"
	if cfg != nil {
		if cfg.SourcePath != "" {
			defSource = cfg.SourcePath
		}
		if cfg.OutputDir != "" {
			defDir = cfg.OutputDir
		}
	}
	if in.SourcePath, err = p.ask(fmt.Sprintf("Enter the path to the data file (default: %s): ", defSource), defSource); err != nil {
		return in, fmt.Errorf("read data path: %w", err)
	}
	if in.OutputDir, err = p.ask(fmt.Sprintf("Enter the output directory (default: %s): ", defDir), defDir); err != nil {
		return in, fmt.Errorf("read output dir: %w", err)
	}

	if ai.NeedsAPIKey(provider) {
		key, err := p.askSecret("Enter your API key (leave empty to use " + ai.APIKeyEnv(provider) + "): ")
		if err != nil {
			return in, fmt.Errorf("read api key: %w", err)
		}
		if cfg != nil {
			key = cfg.ResolveAPIKey(provider, key)
		}
		in.APIKey = key
	}
	return in, nil
}
