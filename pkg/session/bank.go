package session

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

//go:embed questions.yaml
var defaultBankYAML []byte

// QuizQuestion is one multiple-choice question with the index of the
// correct option.
type QuizQuestion struct {
	ID       int      `yaml:"id"`
	Question string   `yaml:"question"`
	Options  []string `yaml:"options"`
	Correct  int      `yaml:"correct"`
}

// Bank holds the tutoring content for one topic: the diagnostic
// questions asked before teaching begins and the quiz given after.
type Bank struct {
	Topic       string         `yaml:"topic"`
	Diagnostics []string       `yaml:"diagnostics"`
	Quiz        []QuizQuestion `yaml:"quiz"`
}

// DefaultBank returns the built-in quadratic equations bank.
func DefaultBank() *Bank {
	bank, err := decodeBank(defaultBankYAML)
	if err != nil {
		panic(fmt.Sprintf("session: embedded question bank is invalid: %v", err))
	}
	return bank
}

// LoadBank decodes a question bank from YAML.
func LoadBank(r io.Reader) (*Bank, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return decodeBank(raw)
}

// LoadBankFile decodes a question bank from a YAML file.
func LoadBankFile(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question bank: %w", err)
	}
	defer f.Close()
	return LoadBank(f)
}

func decodeBank(raw []byte) (*Bank, error) {
	var bank Bank
	if err := yaml.Unmarshal(raw, &bank); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	if err := bank.validate(); err != nil {
		return nil, err
	}
	return &bank, nil
}

func (b *Bank) validate() error {
	if b.Topic == "" {
		return fmt.Errorf("question bank has no topic")
	}
	if len(b.Diagnostics) == 0 {
		return fmt.Errorf("question bank %q has no diagnostic questions", b.Topic)
	}
	if len(b.Quiz) == 0 {
		return fmt.Errorf("question bank %q has no quiz questions", b.Topic)
	}
	for i, q := range b.Quiz {
		if q.Question == "" {
			return fmt.Errorf("quiz question %d has no text", i+1)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("quiz question %d needs at least two options", i+1)
		}
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return fmt.Errorf("quiz question %d: correct index %d out of range", i+1, q.Correct)
		}
	}
	return nil
}
