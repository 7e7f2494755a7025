package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lehigh-university-libraries/cropocr/pkg/languages"
	"github.com/lehigh-university-libraries/cropocr/pkg/translate"
)

var (
	translateLang string
	translateCopy bool
)

var translateCmd = &cobra.Command{
	Use:   "translate [text...]",
	Short: "Translate text through the translation service",
	Long: `Translate sends text to the translation service. Text is taken from the
arguments, or read from stdin when no arguments are given.

Without --lang an interactive language picker is shown on a terminal; otherwise
the configured target language is used.`,
	RunE: runTranslate,
}

func init() {
	RootCmd.AddCommand(translateCmd)
	translateCmd.Flags().StringVarP(&translateLang, "lang", "l", "", "Target language code or name")
	translateCmd.Flags().BoolVar(&translateCopy, "copy", false, "Copy the translation to the clipboard")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to translate")
	}

	lang, err := targetLanguage(translateLang, cfg.TargetLang, "Translate to", len(args) > 0 && isTerminal(cmd.InOrStdin()))
	if err != nil {
		return err
	}

	out, err := translate.New(cfg.Translate()).Translate(cmd.Context(), text, lang)
	if err != nil {
		printNotice("Translation failed")
		return err
	}
	slog.Debug("Translated", "lang", lang, "chars", len(text))

	if translateCopy {
		if err := clipboard.WriteAll(out); err != nil {
			slog.Warn("Unable to copy to clipboard", "err", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// targetLanguage resolves --lang, asks interactively when allowed, and falls
// back to the configured default.
func targetLanguage(flag, fallback, title string, interactive bool) (string, error) {
	if flag != "" {
		return languages.Resolve(flag)
	}
	if !interactive {
		return fallback, nil
	}
	return pickLanguage(title, fallback)
}

func pickLanguage(title, preselected string) (string, error) {
	var options []huh.Option[string]
	for _, l := range languages.All() {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", l.Name, l.Code), l.Code))
	}

	lang := preselected
	err := huh.NewSelect[string]().
		Title(title).
		Options(options...).
		Value(&lang).
		Run()
	if err != nil {
		return "", fmt.Errorf("language selection: %w", err)
	}
	return lang, nil
}

// isTerminal reports whether in is an interactive terminal.
func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
