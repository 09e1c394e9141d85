// Package history reads recent shell history for the capture command.
package history

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Recent returns up to limit unique history entries, most recent first.
// Zsh extended history is preferred; bash history is the fallback.
func Recent(limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	path := historyPath()
	if path == "" {
		return nil, nil
	}

	entries, err := readHistory(path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var results []string
	for i := len(entries) - 1; i >= 0 && len(results) < limit; i-- {
		entry := strings.TrimSpace(entries[i])
		if entry == "" || seen[entry] {
			continue
		}
		seen[entry] = true
		results = append(results, entry)
	}
	return results, nil
}

// historyPath picks the history file: HISTFILE, then ~/.zsh_history,
// then ~/.bash_history.
func historyPath() string {
	if histFile := os.Getenv("HISTFILE"); histFile != "" {
		return histFile
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{".zsh_history", ".bash_history"} {
		path := filepath.Join(home, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// historyParser accumulates parsed history entries, handling multiline commands
type historyParser struct {
	multilineCmd strings.Builder
	entries      []string
}

// processLine parses a single history file line, accumulating entries
func (p *historyParser) processLine(line string) {
	if p.multilineCmd.Len() > 0 {
		p.continueMultiline(line)
		return
	}
	p.parseFreshLine(line)
}

// continueMultiline appends to an in-progress multiline command
func (p *historyParser) continueMultiline(line string) {
	if strings.HasSuffix(line, "\\") {
		p.multilineCmd.WriteString(strings.TrimSuffix(line, "\\"))
		p.multilineCmd.WriteString("\n")
		return
	}
	p.multilineCmd.WriteString(line)
	p.entries = append(p.entries, p.multilineCmd.String())
	p.multilineCmd.Reset()
}

// parseFreshLine handles a line that is not part of an ongoing multiline
// command. The zsh extended format ": timestamp:duration;command" is
// unwrapped to the bare command.
func (p *historyParser) parseFreshLine(line string) {
	if strings.HasPrefix(line, ": ") {
		if idx := strings.Index(line, ";"); idx != -1 {
			p.addCommand(line[idx+1:])
			return
		}
	}
	p.addCommand(line)
}

// addCommand adds a command, starting a multiline accumulation if it ends with backslash
func (p *historyParser) addCommand(cmd string) {
	if strings.HasSuffix(cmd, "\\") {
		p.multilineCmd.WriteString(strings.TrimSuffix(cmd, "\\"))
		p.multilineCmd.WriteString("\n")
		return
	}
	if cmd != "" {
		p.entries = append(p.entries, cmd)
	}
}

// readHistory reads and parses a history file in either plain bash
// format or zsh extended format.
func readHistory(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var p historyParser
	for scanner.Scan() {
		p.processLine(scanner.Text())
	}

	if p.multilineCmd.Len() > 0 {
		p.entries = append(p.entries, strings.TrimSuffix(p.multilineCmd.String(), "\n"))
	}

	return p.entries, scanner.Err()
}
