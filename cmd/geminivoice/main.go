// Command geminivoice is a voice-enabled terminal chat client for Google Gemini.
package main

import "github.com/diogo/geminivoice/internal/commands"

func main() {
	commands.Execute()
}
