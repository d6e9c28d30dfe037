package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/geminivoice/internal/config"
	"github.com/diogo/geminivoice/internal/conversation"
	"github.com/diogo/geminivoice/internal/render"
	"github.com/diogo/geminivoice/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive voice chat session",
	Long: `Start an interactive chat session with Gemini.

The chat maintains conversation context across messages. Replies are read
aloud when voice output is on; Ctrl+T records a spoken message.
Type 'exit', 'quit', or press Ctrl+C to end the session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

func runChat(cmd *cobra.Command) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, closeLog := deps.ChatLogger(cfg, logLevel(cfg))
	defer closeLog()

	instruction, personaModel, err := config.ResolveSystemInstruction(cfg, personaFlag)
	if err != nil {
		return fmt.Errorf("failed to load persona: %w", err)
	}
	model := getModel(cfg, personaModel)

	session, release, err := deps.OpenSession(cfg, model, instruction, log)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer release()

	voice := deps.NewVoice(cfg, log)
	defer voice.Close()

	log.Info().
		Str("model", model.Name).
		Bool("voice_input", voice.CanListen()).
		Bool("voice_output", voice.CanSpeak()).
		Msg("starting chat")

	ctrl := conversation.New(session, voice,
		conversation.WithSpeakingEnabled(cfg.SpeakResponses && !noSpeakFlag),
		conversation.WithSpeechText(render.PlainText),
		conversation.WithLogger(log),
	)

	tui.ApplyTheme(cfg.TUITheme)

	err = deps.TUI.RunChat(commandContext(cmd), ctrl, model.DisplayName, render.OptionsFromConfig(cfg.Markdown, 0))

	// Speech heard after the UI closed is dropped; a voice submission may
	// still be streaming.
	voice.Close()
	ctrl.Wait()
	return err
}
