// Package console holds the interactive startup prompt.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nadzzz/sidekick/internal/audio"
)

// ErrNoInput is returned when the input closes before a valid choice.
var ErrNoInput = errors.New("no mode selected: input closed")

// SelectMode asks for the session mode and re-prompts until it reads "1"
// or "2".
func SelectMode(in io.Reader, out io.Writer) (audio.Mode, error) {
	fmt.Fprintln(out, "Por favor, selecione o modo de execução:")
	fmt.Fprintln(out, "1. Modo Entrevista Ao Vivo (Ouve o áudio da chamada - Zoom/Meet)")
	fmt.Fprintln(out, "2. Modo de Teste/Desenvolvimento (Ouve o seu microfone padrão)")

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Digite 1 ou 2 e pressione Enter: ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			if err := sc.Err(); err != nil {
				return 0, fmt.Errorf("reading mode: %w", err)
			}
			return 0, ErrNoInput
		}
		switch strings.TrimSpace(sc.Text()) {
		case "1":
			return audio.ModeLive, nil
		case "2":
			return audio.ModeLocal, nil
		}
		fmt.Fprintln(out, "Escolha inválida. Por favor, digite 1 ou 2.")
	}
}
