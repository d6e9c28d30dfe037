package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/geminivoice/internal/config"
	"github.com/diogo/geminivoice/internal/models"
)

// clearPersona as the argument of persona default removes the default
const clearPersona = "none"

var (
	personaDescriptionFlag string
	personaInstructionFlag string
)

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Manage chat personas",
	Long: `A persona is a named system instruction, optionally tied to a model.
Built-in personas are always available; custom ones are stored next to the
config file. Pick one per run with --persona or set a default.`,
}

var personaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and custom personas",
	Args:  cobra.NoArgs,
	RunE:  runPersonaList,
}

var personaShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a persona and its system instruction",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonaShow,
}

var personaAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a custom persona",
	Long: `Create a custom persona. Description and instruction come from
--description and --instruction; whatever is missing is read from standard
input (the instruction ends at the first empty line). --model sets the
persona's preferred model.`,
	Args: cobra.ExactArgs(1),
	RunE: runPersonaAdd,
}

var personaDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a custom persona",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonaDelete,
}

var personaSetDefaultCmd = &cobra.Command{
	Use:   "default <name|" + clearPersona + ">",
	Short: "Set the persona used when --persona is not given",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonaSetDefault,
}

func init() {
	personaAddCmd.Flags().StringVarP(&personaDescriptionFlag, "description", "d", "", "One-line description")
	personaAddCmd.Flags().StringVarP(&personaInstructionFlag, "instruction", "i", "", "System instruction")

	personaCmd.AddCommand(personaListCmd, personaShowCmd, personaAddCmd, personaDeleteCmd, personaSetDefaultCmd)
}

func loadPersonas() (*config.PersonaConfig, string, error) {
	path, err := config.GetPersonasPath()
	if err != nil {
		return nil, "", err
	}
	pc, err := config.LoadPersonasFrom(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load personas: %w", err)
	}
	return pc, path, nil
}

func isBuiltInPersona(name string) bool {
	for _, p := range config.DefaultPersonas() {
		if p.Name == name {
			return true
		}
	}
	return false
}

func runPersonaList(cmd *cobra.Command, args []string) error {
	pc, _, err := loadPersonas()
	if err != nil {
		return err
	}
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION\tMODEL\tSOURCE\tDEFAULT")
	for _, p := range pc.Personas {
		source := "custom"
		if isBuiltInPersona(p.Name) {
			source = "built-in"
		}
		mark := ""
		if p.Name == cfg.Persona {
			mark = "✓"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.Description, firstNonEmpty(p.Model, "-"), source, mark)
	}
	return w.Flush()
}

func runPersonaShow(cmd *cobra.Command, args []string) error {
	pc, _, err := loadPersonas()
	if err != nil {
		return err
	}
	p, err := pc.Find(args[0])
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", p.Description)
	}
	if p.Model != "" {
		fmt.Fprintf(&sb, "Preferred Model: %s\n", models.ModelFromName(p.Model).DisplayName)
	}
	fmt.Fprintf(&sb, "\nSystem Instruction:\n%s\n", p.SystemInstruction)

	_, err = io.WriteString(cmd.OutOrStdout(), sb.String())
	return err
}

func runPersonaAdd(cmd *cobra.Command, args []string) error {
	_, path, err := loadPersonas()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	desc := personaDescriptionFlag
	if desc == "" {
		fmt.Fprint(out, "Description: ")
		line, err := in.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read description: %w", err)
		}
		desc = line
	}

	instruction := personaInstructionFlag
	if instruction == "" {
		fmt.Fprintln(out, "System instruction (finish with an empty line):")
		instruction = readParagraph(in)
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return fmt.Errorf("system instruction cannot be empty")
	}

	p := config.Persona{
		Name:              args[0],
		Description:       strings.TrimSpace(desc),
		SystemInstruction: instruction,
		Model:             modelFlag,
	}
	if err := config.AddPersonaTo(path, p); err != nil {
		return err
	}

	fmt.Fprintf(out, "Persona '%s' created.\n", p.Name)
	return nil
}

// readParagraph reads lines up to the first empty line or end of input
func readParagraph(r *bufio.Reader) string {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
		if err != nil {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func runPersonaDelete(cmd *cobra.Command, args []string) error {
	_, path, err := loadPersonas()
	if err != nil {
		return err
	}
	if err := config.DeletePersonaFrom(path, args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Persona '%s' deleted.\n", args[0])
	return nil
}

func runPersonaSetDefault(cmd *cobra.Command, args []string) error {
	name := args[0]
	if name == clearPersona {
		name = ""
	} else {
		pc, _, err := loadPersonas()
		if err != nil {
			return err
		}
		if _, err := pc.Find(name); err != nil {
			return err
		}
	}

	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Set(&cfg, "persona", name); err != nil {
		return err
	}
	path, err := deps.ConfigPath()
	if err != nil {
		return err
	}
	if err := config.SaveConfigTo(path, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if name == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Default persona cleared.")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Default persona set to '%s'.\n", name)
	}
	return nil
}
